// Package notify raises a user notification when new mail shows up while the
// user is not looking at the inbox.
package notify

import (
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	Title = "dropinbox"
	Body  = "New e-mail received!"
)

// Focus reports whether the user is currently looking at the inbox.
type Focus interface {
	Focused() bool
}

type Notifier interface {
	Notify(title, body string) error
}

// Signal compares each snapshot size with the previous one.
type Signal struct {
	perm     Permission
	focus    Focus
	notifier Notifier
	log      logrus.FieldLogger

	mu   sync.Mutex
	prev int
}

func NewSignal(perm Permission, focus Focus, notifier Notifier, log logrus.FieldLogger) *Signal {
	return &Signal{perm: perm, focus: focus, notifier: notifier, log: log}
}

// Observe records count and emits one notification when it grew while the
// inbox is unfocused and permission is granted. It reports whether a
// notification was sent.
func (s *Signal) Observe(count int) bool {
	s.mu.Lock()
	prev := s.prev
	s.prev = count
	s.mu.Unlock()

	if count <= prev {
		return false
	}
	if s.perm.State() != Granted || s.focus.Focused() {
		return false
	}

	if err := s.notifier.Notify(Title, Body); err != nil {
		s.log.WithError(err).Warn("failed to send notification")
		return false
	}
	return true
}
