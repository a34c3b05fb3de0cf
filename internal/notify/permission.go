package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

type PermissionState string

const (
	Granted     PermissionState = "granted"
	Denied      PermissionState = "denied"
	Default     PermissionState = "default"
	Unsupported PermissionState = "unsupported"
)

// ErrPermissionBlocked is returned by Request when the user blocked
// notifications earlier. Only the user can lift it.
var ErrPermissionBlocked = errors.New("notifications are blocked; enable them and restart to use this feature")

// ParsePermission maps a configured value to a state. Unknown values map to
// Default.
func ParsePermission(s string) PermissionState {
	switch PermissionState(strings.ToLower(strings.TrimSpace(s))) {
	case Granted:
		return Granted
	case Denied:
		return Denied
	case Unsupported:
		return Unsupported
	default:
		return Default
	}
}

// Permission is the host-owned capability to show notifications. It is never
// persisted by this program.
type Permission interface {
	State() PermissionState
	// Request asks for permission when the state is Default.
	Request(ctx context.Context) (PermissionState, error)
}

// StaticPermission always reports the same state.
type StaticPermission PermissionState

func (p StaticPermission) State() PermissionState {
	return PermissionState(p)
}

func (p StaticPermission) Request(context.Context) (PermissionState, error) {
	if PermissionState(p) == Denied {
		return Denied, ErrPermissionBlocked
	}
	return PermissionState(p), nil
}

// AskFunc asks the user a yes/no question.
type AskFunc func(ctx context.Context, question string) (bool, error)

// PromptPermission starts from a configured state and, while it is Default,
// asks the user through ask. The answer lives for the process only.
type PromptPermission struct {
	ask AskFunc

	mu    sync.Mutex
	state PermissionState
}

func NewPromptPermission(initial PermissionState, ask AskFunc) *PromptPermission {
	if ask == nil && initial == Default {
		initial = Unsupported
	}
	return &PromptPermission{ask: ask, state: initial}
}

func (p *PromptPermission) State() PermissionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *PromptPermission) Request(ctx context.Context) (PermissionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case Granted, Unsupported:
		return p.state, nil
	case Denied:
		return Denied, ErrPermissionBlocked
	}

	ok, err := p.ask(ctx, "Show a notification when new e-mail arrives?")
	if err != nil {
		return p.state, fmt.Errorf("ask for notification permission: %w", err)
	}
	if ok {
		p.state = Granted
	} else {
		p.state = Denied
	}
	return p.state, nil
}
