// Package sessionstore persists the single active Session.
//
// A Session is stored as one record: Save replaces it as a unit, Load
// returns nil unless all three fields are present, and Clear removes it.
// Implementations never contact the mailbox provider.
package sessionstore

import (
	"context"

	"dropinbox/internal/domain"
)

type Store interface {
	Save(ctx context.Context, sess domain.Session) error
	// Load returns nil, nil when no complete session is stored.
	Load(ctx context.Context) (*domain.Session, error)
	Clear(ctx context.Context) error
}
