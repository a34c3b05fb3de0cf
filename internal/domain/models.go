package domain

import "time"

// Session is one temporary mailbox issued by the provider.
type Session struct {
	SessionID string `json:"sessionID"`
	Address   string `json:"email"`
	// ExpiresAt is an absolute timestamp in epoch milliseconds.
	ExpiresAt int64 `json:"expiration"`
}

// Complete reports whether all three fields are set.
func (s *Session) Complete() bool {
	return s != nil && s.SessionID != "" && s.Address != "" && s.ExpiresAt > 0
}

// ValidAt reports whether the session is still valid at now.
func (s *Session) ValidAt(now time.Time) bool {
	return s.ExpiresAt > now.UnixMilli()
}

// Expiry returns ExpiresAt as a time.Time.
func (s *Session) Expiry() time.Time {
	return time.UnixMilli(s.ExpiresAt)
}

type Message struct {
	Sender     string     `json:"fromAddr"`
	Subject    string     `json:"headerSubject"`
	Body       string     `json:"text"`
	Size       int64      `json:"rawSize,omitempty"`
	ReceivedAt *time.Time `json:"receivedAt,omitempty"`
}
