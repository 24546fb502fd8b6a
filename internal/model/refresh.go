package model

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	aserr "github.com/kyleking/gh-actionstatus/internal/errors"
	"github.com/kyleking/gh-actionstatus/internal/github"
	"github.com/kyleking/gh-actionstatus/internal/repo"
	"golang.org/x/sync/errgroup"
)

// check is the in-flight marker for one repo. stale is guarded by Model.mu.
type check struct {
	id     uuid.UUID
	target repo.Repo
	ctx    context.Context
	cancel context.CancelFunc
	stale  bool
}

// abandoned reports whether the check can no longer apply a result. Callers
// hold Model.mu.
func (c *check) abandoned() bool {
	return c.stale || c.ctx.Err() != nil
}

// Pass is one refresh round over the collection.
type Pass struct {
	done      chan struct{}
	checks    int
	cancelled bool // guarded by Model.mu

	mu       sync.Mutex
	applied  int
	warnings []error
}

func newPass(checks int) *Pass {
	return &Pass{done: make(chan struct{}), checks: checks}
}

// Done is closed once every check of the pass has returned.
func (p *Pass) Done() <-chan struct{} {
	return p.done
}

// Checks is the number of repos the pass dispatched.
func (p *Pass) Checks() int {
	return p.checks
}

// Applied is the number of verdicts written to the collection so far.
func (p *Pass) Applied() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.applied
}

// Wait blocks until the pass finishes or ctx is done, then returns the
// surfaced check errors joined together.
func (p *Pass) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the check errors surfaced so far, each wrapped in a *RefreshError.
func (p *Pass) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return errors.Join(p.warnings...)
}

func (p *Pass) warn(err error) {
	p.mu.Lock()
	p.warnings = append(p.warnings, err)
	p.mu.Unlock()
}

func (p *Pass) markApplied() {
	p.mu.Lock()
	p.applied++
	p.mu.Unlock()
}

// Refresh starts a reconciliation pass over every checkable repo. While a pass
// is running further calls are coalesced into it and return the same *Pass,
// unless that pass was cancelled. Repos that still have a live check in flight
// are skipped. ctx bounds the pass.
func (m *Model) Refresh(ctx context.Context) *Pass {
	m.mu.Lock()

	if m.pass != nil && !m.pass.cancelled {
		pass := m.pass
		m.mu.Unlock()

		return pass
	}

	passCtx, cancelPass := context.WithCancel(ctx)

	var checks []*check

	for _, r := range m.items {
		if !r.Checkable() {
			continue
		}

		if c, busy := m.inflight[r.ID]; busy && !c.abandoned() {
			continue
		}

		cctx, cancel := context.WithCancel(passCtx)
		c := &check{id: r.ID, target: r.Clone(), ctx: cctx, cancel: cancel}
		m.inflight[r.ID] = c
		checks = append(checks, c)
	}

	pass := newPass(len(checks))

	if len(checks) == 0 {
		m.mu.Unlock()
		cancelPass()
		close(pass.done)

		return pass
	}

	m.pass = pass
	m.mu.Unlock()

	m.logger.Debug("refresh started", "checks", len(checks))

	go func() {
		defer cancelPass()
		defer close(pass.done)

		var g errgroup.Group
		g.SetLimit(m.opts.Concurrency)

		for _, c := range checks {
			g.Go(func() error {
				m.runCheck(c, pass)
				return nil
			})
		}

		_ = g.Wait()

		m.mu.Lock()
		if m.pass == pass {
			m.pass = nil
		}
		m.mu.Unlock()

		m.logger.Debug("refresh finished", "checks", len(checks), "applied", pass.Applied())
	}()

	return pass
}

// CancelRefresh abandons every in-flight check. Verdicts already applied stay;
// abandoned checks never touch their repo's state. The next Refresh starts a
// new pass even while the cancelled one is still winding down.
func (m *Model) CancelRefresh() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pass != nil {
		m.pass.cancelled = true
	}

	for _, c := range m.inflight {
		c.cancel()
	}
}

// Refreshing reports whether a pass is running.
func (m *Model) Refreshing() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.pass != nil
}

// InFlight returns the number of repos with a check in flight.
func (m *Model) InFlight() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.inflight)
}

type verdict struct {
	state repo.State
	apply bool
	err   error
}

func (m *Model) runCheck(c *check, pass *Pass) {
	defer c.cancel()

	v := m.evaluate(c.ctx, c.target)
	m.apply(c, v, pass)
}

// evaluate checks every configured branch (or the default branch) and combines
// the results. Any failed branch, or a workflow the remote does not know, fails
// the repo. Other check errors leave the state alone. All branches succeeding
// passes the repo; anything else is unknown.
func (m *Model) evaluate(ctx context.Context, target repo.Repo) verdict {
	branches := target.Branches
	if len(branches) == 0 {
		branches = []string{""}
	}

	statuses := make([]github.RunStatus, len(branches))
	errs := make([]error, len(branches))

	var g errgroup.Group

	for i, branch := range branches {
		g.Go(func() error {
			statuses[i], errs[i] = m.checkBranch(ctx, target, branch)
			return nil
		})
	}

	_ = g.Wait()

	failed := false
	allSucceeded := true

	var surfaced, notFound []error

	for i := range branches {
		switch {
		case errs[i] != nil && aserr.IsCheckKind(errs[i], aserr.CheckNotFound):
			failed = true
			notFound = append(notFound, errs[i])
		case errs[i] != nil:
			allSucceeded = false
			surfaced = append(surfaced, errs[i])
		case statuses[i] == github.RunFailed:
			failed = true
		case statuses[i] != github.RunSucceeded:
			allSucceeded = false
		}
	}

	switch {
	case failed:
		return verdict{state: repo.StateFailing, apply: true, err: errors.Join(append(notFound, surfaced...)...)}
	case len(surfaced) > 0:
		return verdict{err: errors.Join(surfaced...)}
	case allSucceeded:
		return verdict{state: repo.StatePassing, apply: true}
	default:
		return verdict{state: repo.StateUnknown, apply: true}
	}
}

// checkBranch retries network errors with exponential backoff. Rate limiting
// and authorization failures are returned immediately.
func (m *Model) checkBranch(ctx context.Context, target repo.Repo, branch string) (github.RunStatus, error) {
	backoff := m.opts.RetryBackoff

	for attempt := 0; ; attempt++ {
		status, err := m.client.CheckStatus(ctx, target.Owner, target.Name, target.Workflow, branch)
		if err == nil {
			return status, nil
		}

		if ctx.Err() != nil {
			return github.RunUnknown, ctx.Err()
		}

		if !aserr.IsCheckKind(err, aserr.CheckNetwork) || attempt >= m.opts.Retries {
			return github.RunUnknown, err
		}

		m.logger.Debug("retrying status check", "repo", target.StatusKey(), "branch", branch, "attempt", attempt+1, "error", err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return github.RunUnknown, ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
	}
}

// apply writes a verdict on the serialized mutation path. Results of cancelled,
// invalidated or removed checks are discarded.
func (m *Model) apply(c *check, v verdict, pass *Pass) {
	m.mu.Lock()

	current := m.inflight[c.id] == c
	if current {
		delete(m.inflight, c.id)
	}

	idx := m.indexLocked(c.id)

	if !current || c.stale || c.ctx.Err() != nil || idx < 0 {
		m.mu.Unlock()
		m.logger.Debug("discarded status result", "repo", c.target.StatusKey(), "id", c.id)

		return
	}

	if v.err != nil {
		pass.warn(&aserr.RefreshError{RepoID: c.id.String(), Key: c.target.StatusKey(), Err: v.err})
		m.logger.Warn("status check failed", "repo", c.target.StatusKey(), "error", v.err)
	}

	if !v.apply {
		m.mu.Unlock()
		return
	}

	changed := m.items[idx].State != v.state
	m.items[idx].State = v.state
	m.mu.Unlock()

	pass.markApplied()

	if changed {
		m.notify()
	}
}
