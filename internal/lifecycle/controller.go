// Package lifecycle owns the session state machine of the inbox client.
//
// There are two states. NoSession is left by Resume (a valid stored session)
// or Generate (a new mailbox). Active is left by End, which clears the store,
// the message list and the selection, and stops the poller in the same
// transition. Expiry is only checked by Resume; an Active session is never
// expired by a timer.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"dropinbox/internal/domain"
	"dropinbox/internal/poller"
	"dropinbox/internal/provider"
	"dropinbox/internal/sessionstore"
)

type State int

const (
	NoSession State = iota
	Active
)

func (s State) String() string {
	switch s {
	case NoSession:
		return "no-session"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

type Options struct {
	Store    sessionstore.Store
	Provider provider.Provider
	// PollInterval defaults to poller.DefaultInterval.
	PollInterval time.Duration
	// Manual disables the background poller; callers use Refresh instead.
	Manual bool
	// OnMessages is called after every applied snapshot, outside the lock.
	OnMessages func(msgs []domain.Message)
	Now        func() time.Time
	Logger     logrus.FieldLogger
}

type Controller struct {
	store      sessionstore.Store
	provider   provider.Provider
	interval   time.Duration
	manual     bool
	onMessages func([]domain.Message)
	now        func() time.Time
	log        logrus.FieldLogger

	mu       sync.Mutex
	state    State
	session  *domain.Session
	messages []domain.Message
	selected *domain.Message
	creating bool
	// generation changes on every transition so snapshots fetched for an
	// earlier Active period are dropped.
	generation uint64
	poller     *poller.Poller
}

func New(opts Options) *Controller {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var log logrus.FieldLogger = logrus.StandardLogger()
	if opts.Logger != nil {
		log = opts.Logger
	}
	if opts.Provider != nil {
		log = log.WithField("provider", opts.Provider.Name())
	}
	return &Controller{
		store:      opts.Store,
		provider:   opts.Provider,
		interval:   opts.PollInterval,
		manual:     opts.Manual,
		onMessages: opts.OnMessages,
		now:        now,
		log:        log,
	}
}

// Resume reads the stored session once. A session whose expiry is strictly
// in the future makes the controller Active; anything else leaves it in
// NoSession and removes what was stored. Storage errors are logged.
func (c *Controller) Resume(ctx context.Context) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Active {
		return Active
	}

	sess, err := c.store.Load(ctx)
	if err != nil {
		c.log.WithError(err).Warn("discarding unreadable stored session")
		c.clearStore(ctx)
		return NoSession
	}
	if sess == nil {
		// Partial records read as absent; make sure none linger.
		c.clearStore(ctx)
		return NoSession
	}

	if !sess.ValidAt(c.now()) {
		c.log.WithFields(logrus.Fields{
			"session_id": sess.SessionID,
			"expired_at": sess.Expiry(),
		}).Info("stored session expired")
		c.clearStore(ctx)
		return NoSession
	}

	c.log.WithField("session_id", sess.SessionID).Info("resuming session")
	c.enterActive(*sess)
	return Active
}

// Generate creates a mailbox and makes it the active session. On failure the
// controller stays in NoSession and the error is returned for display.
func (c *Controller) Generate(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()
	if c.state == Active || c.creating {
		c.mu.Unlock()
		return nil, domain.ErrSessionActive
	}
	c.creating = true
	c.mu.Unlock()

	sess, err := c.provider.CreateMailbox(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.creating = false

	if err != nil {
		c.log.WithError(err).Error("failed to create mailbox")
		return nil, err
	}
	if err := c.store.Save(ctx, *sess); err != nil {
		c.log.WithError(err).Error("failed to persist session")
		return nil, fmt.Errorf("persist session: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"session_id": sess.SessionID,
		"address":    sess.Address,
		"expires_at": sess.Expiry(),
	}).Info("mailbox created")
	c.enterActive(*sess)

	out := *sess
	return &out, nil
}

// End leaves Active. It is a no-op in NoSession. The poller has stopped by
// the time End returns.
func (c *Controller) End(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Active {
		c.mu.Unlock()
		return nil
	}

	sessionID := c.session.SessionID
	p := c.leaveActive()
	err := c.store.Clear(ctx)
	c.mu.Unlock()

	if p != nil {
		p.Stop()
	}

	c.log.WithField("session_id", sessionID).Info("session ended")
	if err != nil {
		c.log.WithError(err).Error("failed to clear stored session")
		return err
	}
	return nil
}

// Close stops polling without touching the store, for process teardown.
func (c *Controller) Close() {
	c.mu.Lock()
	p := c.poller
	c.poller = nil
	c.generation++
	c.mu.Unlock()

	if p != nil {
		p.Stop()
	}
}

// Refresh fetches one snapshot synchronously and applies it.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Active {
		c.mu.Unlock()
		return domain.ErrSessionAbsent
	}
	sessionID := c.session.SessionID
	gen := c.generation
	c.mu.Unlock()

	msgs, err := c.provider.ListMessages(ctx, sessionID)
	if err != nil {
		c.log.WithError(err).Warn("refresh failed")
		return err
	}
	c.apply(gen, msgs)
	return nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a copy of the active session, or nil.
func (c *Controller) Session() *domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	sess := *c.session
	return &sess
}

// Messages returns a copy of the latest snapshot.
func (c *Controller) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Message(nil), c.messages...)
}

// Select marks the i-th message of the current snapshot as selected.
func (c *Controller) Select(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.messages) {
		return fmt.Errorf("no message at position %d (inbox has %d)", i+1, len(c.messages))
	}
	msg := c.messages[i]
	c.selected = &msg
	return nil
}

// Selected returns the selected message. The selection is dropped on every
// session transition.
func (c *Controller) Selected() (domain.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return domain.Message{}, false
	}
	return *c.selected, true
}

// enterActive must be called with c.mu held.
func (c *Controller) enterActive(sess domain.Session) {
	c.state = Active
	c.session = &sess
	c.messages = nil
	c.selected = nil
	c.generation++

	if c.manual {
		return
	}

	gen := c.generation
	c.poller = poller.Start(poller.Config{
		Interval: c.interval,
		Fetch: func(ctx context.Context) ([]domain.Message, error) {
			return c.provider.ListMessages(ctx, sess.SessionID)
		},
		Deliver: func(msgs []domain.Message) { c.apply(gen, msgs) },
		Logger:  c.log.WithField("session_id", sess.SessionID),
	})
}

// leaveActive must be called with c.mu held. It returns the poller for the
// caller to stop once the lock is released.
func (c *Controller) leaveActive() *poller.Poller {
	p := c.poller
	c.poller = nil
	c.state = NoSession
	c.session = nil
	c.messages = nil
	c.selected = nil
	c.generation++
	return p
}

// apply replaces the message list with msgs if gen is still current.
func (c *Controller) apply(gen uint64, msgs []domain.Message) {
	c.mu.Lock()
	if c.state != Active || c.generation != gen {
		c.mu.Unlock()
		return
	}
	c.messages = append(make([]domain.Message, 0, len(msgs)), msgs...)
	snapshot := append([]domain.Message(nil), c.messages...)
	c.mu.Unlock()

	if c.onMessages != nil {
		c.onMessages(snapshot)
	}
}

func (c *Controller) clearStore(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.log.WithError(err).Error("failed to clear stored session")
	}
}
