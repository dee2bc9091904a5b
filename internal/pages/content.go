package pages

// Category is a main service category shown on the landing page.
type Category struct {
	Name          string
	Icon          string
	Subcategories int
}

type Feature struct {
	Title       string
	Description string
}

type Step struct {
	Number      string
	Title       string
	Description string
}

type landingContent struct {
	Categories          []Category
	FeaturedCategory    string
	FeaturedSubcategory []string
	Benefits            []Feature
	Steps               []Step
}

var landing = landingContent{
	Categories: []Category{
		{"Plumbing", "💧", 10},
		{"Electrical", "⚡", 10},
		{"Cleaning", "🧹", 14},
		{"Handyman", "🔧", 10},
		{"Gardening", "🌿", 8},
		{"IT Support", "💻", 11},
		{"Babysitting", "👶", 7},
		{"Photography", "📷", 8},
		{"Vehicle Services", "🚗", 10},
		{"Tutoring", "📚", 8},
		{"Welding", "🔥", 8},
		{"Crocheting", "🧶", 8},
		{"Agent Services", "🤝", 11},
		{"Tiling", "🧱", 8},
		{"Car Services", "🚙", 10},
	},
	FeaturedCategory: "Plumbing",
	FeaturedSubcategory: []string{
		"Water Supply Services",
		"Drainage & Wastewater",
		"Toilet Services",
		"Tap & Faucet Services",
		"Bathroom Services",
		"Kitchen Plumbing",
		"Geyser/Water Heater",
		"Gas Plumbing",
		"Stormwater & Outdoor",
		"Maintenance & Inspections",
	},
	Benefits: []Feature{
		{"Comprehensive Coverage", "15+ main categories with detailed subcategories for every specialty"},
		{"Specialized Profiles", "Highlight your specific skills and certifications within your category"},
		{"Category-Specific Tools", "Features tailored to different types of service work"},
		{"Targeted Matching", "Connect with clients looking for your specific expertise"},
	},
	Steps: []Step{
		{"01", "Register Your Service", "Choose your main category and specific subcategories"},
		{"02", "Get Early Access", "Be among the first to join when we launch"},
		{"03", "Complete Your Profile", "Add your services, certifications, and portfolio"},
		{"04", "Start Earning", "Connect with clients and grow your business"},
	},
}

// LegalSection is one numbered section of a legal document.
type LegalSection struct {
	Heading    string   `json:"heading"`
	Paragraphs []string `json:"paragraphs,omitempty"`
	Items      []string `json:"items,omitempty"`
	Closing    string   `json:"closing,omitempty"`
}

type LegalNote struct {
	Title string   `json:"title"`
	Body  string   `json:"body,omitempty"`
	Items []string `json:"items,omitempty"`
}

// LegalDocument backs both the full legal pages and the in-form modals.
type LegalDocument struct {
	Slug     string         `json:"slug"`
	Title    string         `json:"title"`
	Subtitle string         `json:"subtitle,omitempty"`
	Sections []LegalSection `json:"sections"`
	Note     LegalNote      `json:"note"`
}

const (
	DocTerms             = "terms"
	DocPrivacy           = "privacy"
	DocProviderAgreement = "provider-agreement"
)

var legalDocuments = map[string]LegalDocument{
	DocTerms: {
		Slug:  DocTerms,
		Title: "Terms & Conditions",
		Sections: []LegalSection{
			{Heading: "1. Introduction", Paragraphs: []string{
				`VektorKite ("the Platform") is a digital marketplace operated by Starkite Technologies, registered in the Republic of Namibia. VektorKite connects users with independent service providers such as handymen, plumbers, cleaners, and other professionals.`,
				"By using the Platform, you agree to these Terms.",
			}},
			{Heading: "2. Platform Nature", Items: []string{
				"VektorKite does not provide services directly",
				"All service providers are independent contractors",
				"Starkite Technologies is not an employer, agent, or partner of service providers",
			}},
			{Heading: "3. Eligibility", Paragraphs: []string{"You must:"}, Items: []string{
				"Be 18 years or older",
				"Provide accurate information",
				"Use the Platform lawfully",
			}},
			{Heading: "4. Bookings & Payments", Items: []string{
				"Prices are shown before booking confirmation",
				"Payments may be processed via third-party providers",
				"VektorKite may charge a platform service fee or commission",
			}},
			{Heading: "5. Cancellations & Refunds", Items: []string{
				"Cancellation rules may vary per service",
				"Refunds are subject to provider and platform policies",
			}},
			{Heading: "6. Ratings & Reviews", Paragraphs: []string{
				"Users may submit honest feedback. Fake, abusive, or misleading content may be removed.",
			}},
			{Heading: "7. Liability Disclaimer", Paragraphs: []string{"To the fullest extent permitted by Namibian law:"}, Items: []string{
				"Starkite Technologies and VektorKite are not liable for service quality, damages, injuries, or losses",
				"Services are used at the user's own risk",
			}},
			{Heading: "8. Disputes", Paragraphs: []string{
				"Disputes should be resolved between the user and service provider. VektorKite may assist but is not obligated to mediate.",
			}},
			{Heading: "9. Intellectual Property", Paragraphs: []string{"All platform content belongs to Starkite Technologies."}},
			{Heading: "10. Termination", Paragraphs: []string{"We may suspend or terminate accounts for violations."}},
			{Heading: "11. Governing Law", Paragraphs: []string{
				"Governed by the laws of the Republic of Namibia, including the Electronic Transactions Act, 2019.",
			}},
		},
		Note: LegalNote{
			Title: "Acceptance Required",
			Body:  "By proceeding with registration, you confirm that you have read, understood, and agree to these Terms & Conditions.",
		},
	},
	DocPrivacy: {
		Slug:  DocPrivacy,
		Title: "Privacy Policy",
		Sections: []LegalSection{
			{Heading: "1. Data Controller", Paragraphs: []string{"Starkite Technologies operates VektorKite and controls user data."}},
			{Heading: "2. Data We Collect", Items: []string{
				"Name",
				"Phone number",
				"Email",
				"Location data",
				"Booking history",
				"Ratings & reviews",
				"Payment data (handled by third parties)",
			}},
			{Heading: "3. Use of Data", Paragraphs: []string{"We use your data for:"}, Items: []string{
				"Account management",
				"Service matching",
				"Payments & bookings",
				"Security & fraud prevention",
				"Customer support",
			}},
			{Heading: "4. Data Sharing", Paragraphs: []string{"We share data only with:"}, Items: []string{
				"Service providers (booking-related info only)",
				"Payment processors",
				"Authorities if legally required",
			}, Closing: "We do not sell your personal data to third parties."},
			{Heading: "5. Data Security", Paragraphs: []string{
				"We implement reasonable technical and organizational safeguards to protect your data.",
			}},
			{Heading: "6. User Rights", Paragraphs: []string{"You have the right to:"}, Items: []string{
				"Access your data",
				"Request correction or deletion",
				"Withdraw consent",
			}},
			{Heading: "7. Location Services", Paragraphs: []string{
				"Used only to match nearby providers. Users can disable location permissions.",
			}},
			{Heading: "8. Children", Paragraphs: []string{"Our platform is not intended for users under 18 years of age."}},
			{Heading: "9. Updates", Paragraphs: []string{
				"Policy updates will be posted on the platform. Continued use constitutes acceptance.",
			}},
		},
		Note: LegalNote{
			Title: "Your Privacy Matters",
			Body:  "By proceeding with registration, you acknowledge that you have read and understood how we handle your personal information.",
		},
	},
	DocProviderAgreement: {
		Slug:     DocProviderAgreement,
		Title:    "Service Provider Agreement",
		Subtitle: "For registered service providers on VektorKite",
		Sections: []LegalSection{
			{Heading: "1. Relationship", Items: []string{
				"Service providers are independent contractors, not employees",
				"No employment benefits, salary, or guaranteed work",
			}},
			{Heading: "2. Provider Obligations", Paragraphs: []string{"Providers must:"}, Items: []string{
				"Perform services professionally",
				"Use own tools & materials",
				"Comply with Namibian laws",
				"Maintain accurate profile info",
			}},
			{Heading: "3. Payments", Items: []string{
				"Providers receive payments minus platform commission",
				"Payments processed via approved methods",
			}},
			{Heading: "4. Ratings & Deactivation", Paragraphs: []string{
				"Poor ratings, misconduct, or fraud may lead to suspension or removal from the platform.",
			}},
			{Heading: "5. Liability", Paragraphs: []string{"Providers are solely responsible for:"}, Items: []string{
				"Service quality",
				"Safety",
				"Damages or losses",
			}},
			{Heading: "6. Termination", Paragraphs: []string{
				"Either party may terminate access at any time in accordance with platform policies.",
			}},
			{Heading: "7. Governing Law", Paragraphs: []string{
				"This agreement is governed by the laws of the Republic of Namibia.",
			}},
		},
		Note: LegalNote{
			Title: "Important Notes for Service Providers",
			Items: []string{
				"You are responsible for your own business insurance and certifications",
				"You set your own rates and availability",
				"The platform facilitates connections but you manage client relationships",
				"Tax obligations remain your responsibility",
			},
		},
	},
}

// Document looks up a legal document by its route slug.
func Document(slug string) (LegalDocument, bool) {
	doc, ok := legalDocuments[slug]
	return doc, ok
}
