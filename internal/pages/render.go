package pages

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	pageLanding     = "landing.html"
	pageRegister    = "register.html"
	pageVerifyEmail = "verify_email.html"
	pageThankYou    = "thank_you.html"
	pageLegal       = "legal.html"
)

var allPages = []string{pageLanding, pageRegister, pageVerifyEmail, pageThankYou, pageLegal}

// refresh schedules a client-side move via <meta http-equiv="refresh">.
type refresh struct {
	URL     string
	Seconds int
}

// Content is the attribute value, e.g. "3;url=/thank-you".
func (r refresh) Content() string {
	return strconv.Itoa(r.Seconds) + ";url=" + r.URL
}

// view is the data every template receives; page-specific fields stay nil
// on other pages.
type view struct {
	SupportEmail string
	Year         int
	Refresh      *refresh
	Landing      *landingContent
	Doc          *LegalDocument
	Form         *registerForm
}

type renderer struct {
	pages map[string]*template.Template
}

// newRenderer parses each page together with the shared layout so that the
// "title" and "content" blocks do not collide across pages.
func newRenderer() (*renderer, error) {
	r := &renderer{pages: make(map[string]*template.Template, len(allPages))}
	for _, page := range allPages {
		tmpl, err := template.New(page).ParseFS(templatesFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		r.pages[page] = tmpl
	}
	return r, nil
}

// render buffers the page first so a template error never yields a half
// written 200.
func (r *renderer) render(w http.ResponseWriter, status int, page string, v view) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", v); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

func secondsCeil(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	s := int(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	return s
}
