// Package poller runs the periodic inbox fetch for an active session.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"dropinbox/internal/domain"
)

// DefaultInterval is the period between two polls.
const DefaultInterval = 15 * time.Second

// FetchFunc returns the current mail snapshot.
type FetchFunc func(ctx context.Context) ([]domain.Message, error)

// DeliverFunc receives every successful snapshot.
type DeliverFunc func(msgs []domain.Message)

type Config struct {
	Interval time.Duration
	Fetch    FetchFunc
	Deliver  DeliverFunc
	Logger   logrus.FieldLogger
}

// Poller fetches once immediately and then every Interval until Stop.
//
// Polls never overlap: a tick that fires while the previous fetch is still
// in flight is skipped.
type Poller struct {
	interval time.Duration
	fetch    FetchFunc
	deliver  DeliverFunc
	log      logrus.FieldLogger

	inflight *semaphore.Weighted
	polls    sync.WaitGroup

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// Start launches the poll loop. The first fetch is issued before Start returns.
func Start(cfg Config) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{
		interval: interval,
		fetch:    cfg.Fetch,
		deliver:  cfg.Deliver,
		log:      log,
		inflight: semaphore.NewWeighted(1),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	p.tick(ctx)
	go p.run(ctx)
	return p
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick starts one poll unless another is still running.
func (p *Poller) tick(ctx context.Context) {
	if !p.inflight.TryAcquire(1) {
		p.log.Debug("previous poll still in flight, skipping tick")
		return
	}

	p.polls.Add(1)
	go func() {
		defer p.polls.Done()
		defer p.inflight.Release(1)
		p.poll(ctx)
	}()
}

func (p *Poller) poll(ctx context.Context) {
	log := p.log.WithField("poll_id", ulid.Make().String())
	started := time.Now()

	msgs, err := p.fetch(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.WithError(err).Warn("poll failed")
		return
	}

	log.WithFields(logrus.Fields{
		"messages": len(msgs),
		"duration": time.Since(started),
	}).Debug("poll completed")
	p.deliver(msgs)
}

// Stop cancels the loop and any in-flight fetch, then waits for both to
// return. Nothing is delivered once Stop has returned. Stop is idempotent.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		<-p.done
		p.polls.Wait()
	})
}
