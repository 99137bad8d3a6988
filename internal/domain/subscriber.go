package domain

import (
	"errors"
	"strings"
	"time"
)

// ErrTokenInUse means a verification token already belongs to a subscriber
// with a different e-mail address.
var ErrTokenInUse = errors.New("verification token belongs to another subscriber")

// TimestampLayout is the ISO-8601 form stored in the lead magnet map.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Subscriber mirrors the externally persisted subscriber record.
type Subscriber struct {
	Email             string            `json:"email"`
	VerificationToken string            `json:"verification_token"`
	LeadMagnets       map[string]string `json:"lead_magnet_generated"`
}

// Owns reports whether email is this subscriber's address. E-mail addresses
// compare case-insensitively.
func (s *Subscriber) Owns(email string) bool {
	return s != nil && strings.EqualFold(strings.TrimSpace(s.Email), strings.TrimSpace(email))
}

// GeneratedAt returns the stored timestamp for a lead magnet. ok is false if
// the key is absent or does not parse.
func (s *Subscriber) GeneratedAt(magnet string) (t time.Time, raw string, ok bool) {
	if s == nil || s.LeadMagnets == nil {
		return time.Time{}, "", false
	}
	raw, present := s.LeadMagnets[magnet]
	if !present || raw == "" {
		return time.Time{}, "", false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, raw, false
	}
	return t, raw, true
}

// FormatTimestamp renders t the way the lead magnet map stores it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
