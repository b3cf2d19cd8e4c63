package sched

import (
	"context"
	"sync"
	"time"

	"vidnag-tracker/internal/domain/ports/repository"
	"vidnag-tracker/internal/infra/metrics"
	"vidnag-tracker/internal/usecase"

	"github.com/rs/zerolog"
)

var _ usecase.PollTrigger = (*Poller)(nil)

// Poller runs reconciliation ticks while the registry has entries.
// Scheduling is "finish the tick, wait interval, tick again", so a slow
// server can never cause overlapping ticks.
type Poller struct {
	interval   time.Duration
	reconciler usecase.ReconcileUseCase
	registry   repository.JobRegistry
	log        *zerolog.Logger

	mu      sync.Mutex
	base    context.Context
	running bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPoller constructs a poller ticking every interval. If interval <= 0 it defaults to 2 seconds.
func NewPoller(interval time.Duration, reconciler usecase.ReconcileUseCase, registry repository.JobRegistry, logger *zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{
		interval:   interval,
		reconciler: reconciler,
		registry:   registry,
		log:        logger,
	}
}

// Start ties future loops to parent and kicks one off if there is already work.
func (p *Poller) Start(parent context.Context) {
	p.mu.Lock()
	p.base = parent
	p.mu.Unlock()
	if !p.registry.IsEmpty() {
		p.Ensure()
	}
}

// Ensure starts the loop unless it is running or the poller was stopped.
func (p *Poller) Ensure() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running || p.stopped {
		return
	}
	base := p.base
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)
	p.running = true
	p.cancel = cancel
	p.done = make(chan struct{})
	metrics.SetPollerActive(true)
	p.log.Debug().Dur("interval", p.interval).Msg("poller started")

	go p.loop(ctx, cancel, p.done)
}

// Running reports whether a loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Stop cancels the loop and waits for it to exit. It is idempotent; after
// Stop, Ensure is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.stopped = true
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.log.Debug().Msg("poller stopped")
}

func (p *Poller) loop(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	timer := time.NewTimer(p.interval)
	defer func() {
		timer.Stop()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			p.finish(cancel)
			return
		case <-timer.C:
		}

		// the tick always runs to completion, even if ctx is cancelled mid-way
		p.reconciler.Tick(ctx)

		if p.finishIfIdle(cancel) {
			return
		}
		timer.Reset(p.interval)
	}
}

// finishIfIdle marks the loop stopped when the registry is empty. Checking
// and clearing running under one lock means an Ensure racing with the exit
// either sees running=true before the check (and the check sees its job) or
// running=false after it (and starts a fresh loop).
func (p *Poller) finishIfIdle(cancel context.CancelFunc) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.registry.IsEmpty() {
		return false
	}
	p.markIdleLocked(cancel)
	p.log.Debug().Msg("registry empty; poller idle")
	return true
}

func (p *Poller) finish(cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markIdleLocked(cancel)
}

func (p *Poller) markIdleLocked(cancel context.CancelFunc) {
	cancel()
	p.running = false
	metrics.SetPollerActive(false)
}
