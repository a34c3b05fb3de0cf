// Package provider defines the client side of the mailbox provider.
package provider

import (
	"context"

	"dropinbox/internal/domain"
)

// Provider issues temporary mailboxes and lists the mail they received.
// Failures are reported as *domain.ProviderError. There is no retry.
type Provider interface {
	// CreateMailbox requests a new mailbox and returns its session.
	CreateMailbox(ctx context.Context) (*domain.Session, error)

	// ListMessages returns the current mail snapshot for sessionID. An unknown
	// session or an empty mailbox yields an empty slice, not an error.
	ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error)

	// Name returns a short identifier used in logs.
	Name() string
}
