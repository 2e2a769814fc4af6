// Package waitlist captures interested users from the landing page
// before they register.
package waitlist

import (
	"context"
	"time"
)

// Entry is one landing-page signup.
type Entry struct {
	ID        string
	Name      string
	Email     string
	Role      string
	Center    string
	Plan      string
	Consent   bool
	Source    string
	CreatedAt time.Time
}

// DefaultSource is recorded when a signup does not say where it came from.
const DefaultSource = "landing"

// Store defines persistence for waitlist entries.
type Store interface {
	// AddEntry persists a new entry. Duplicate emails are allowed; the
	// waitlist is an append-only capture, deduplication happens offline.
	AddEntry(ctx context.Context, e *Entry) error
}
