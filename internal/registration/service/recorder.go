package service

import (
	"context"
	"sync"
	"time"
)

// Recorder collects the notification and navigation a submission produced so
// an HTTP handler can render them into its response: a banner plus a meta
// refresh for pages, fields for the JSON API.
type Recorder struct {
	mu            sync.Mutex
	notifications []Notification
	redirectTo    string
	redirectAfter time.Duration
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *Recorder) Navigate(to string, after time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirectTo = to
	r.redirectAfter = after
}

func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notifications...)
}

// Redirect returns the scheduled navigation, if any.
func (r *Recorder) Redirect() (string, time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.redirectTo, r.redirectAfter, r.redirectTo != ""
}
