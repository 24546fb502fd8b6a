package model

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval is the default time between scheduled refreshes.
const DefaultPollInterval = 5 * time.Minute

// Poller refreshes a model immediately and then on a fixed interval.
type Poller struct {
	model    *Model
	interval time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	ticker   *time.Ticker
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
	wg       sync.WaitGroup

	onPass func(*Pass)
	last   *Pass
}

// NewPoller creates a poller. A non-positive interval uses DefaultPollInterval.
func NewPoller(m *Model, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Poller{model: m, interval: interval, ctx: ctx, cancel: cancel}
}

// OnPass sets a func called with each scheduled pass once it finishes, so
// warnings from background refreshes reach the host. Call it before Start.
// A pass joined by several ticks is reported once.
func (p *Poller) OnPass(fn func(*Pass)) *Poller {
	p.onPass = fn
	return p
}

// Start begins polling. Calling it more than once has no effect.
func (p *Poller) Start() {
	p.startMu.Lock()
	defer p.startMu.Unlock()

	if p.started || p.ctx.Err() != nil {
		return
	}

	p.started = true
	p.ticker = time.NewTicker(p.interval)
	p.wg.Add(1)

	go p.pollLoop()
}

// Stop ends polling and abandons in-flight checks. Safe to call multiple times.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()

		p.startMu.Lock()
		if p.ticker != nil {
			p.ticker.Stop()
		}
		p.startMu.Unlock()

		p.wg.Wait()
	})
}

func (p *Poller) pollLoop() {
	defer p.wg.Done()

	p.report(p.model.Refresh(p.ctx))

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.ticker.C:
			p.report(p.model.Refresh(p.ctx))
		}
	}
}

func (p *Poller) report(pass *Pass) {
	if p.onPass == nil || pass == p.last {
		return
	}

	p.last = pass
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()

		select {
		case <-pass.Done():
			p.onPass(pass)
		case <-p.ctx.Done():
		}
	}()
}
