// Package model owns the monitored repo collection and reconciles each repo's
// state against the remote status API.
package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	aserr "github.com/kyleking/gh-actionstatus/internal/errors"
	"github.com/kyleking/gh-actionstatus/internal/github"
	"github.com/kyleking/gh-actionstatus/internal/logging"
	"github.com/kyleking/gh-actionstatus/internal/repo"
	"github.com/sahilm/fuzzy"
)

// StatusClient answers run-status queries. It must be safe for concurrent use.
type StatusClient interface {
	CheckStatus(ctx context.Context, owner, name, workflow, branch string) (github.RunStatus, error)
}

// Persister loads and saves the ordered collection.
type Persister interface {
	Load() ([]repo.Repo, error)
	Save(repos []repo.Repo) error
}

// FolderResolver derives a repo description from a local folder.
type FolderResolver interface {
	Resolve(ctx context.Context, dir string) (repo.Repo, error)
}

// Defaults for Options fields left at zero.
const (
	DefaultConcurrency  = 4
	DefaultRetries      = 2
	DefaultRetryBackoff = 500 * time.Millisecond
)

// Options configures a Model.
type Options struct {
	// Concurrency bounds how many repos are checked at once.
	Concurrency int
	// Retries is the number of extra attempts for network errors within a pass.
	// Negative disables retries.
	Retries      int
	RetryBackoff time.Duration
	Resolver     FolderResolver
	// OnSelect runs when a host shell selects an item.
	OnSelect func(r repo.Repo)
	Logger   *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}

	if o.Retries == 0 {
		o.Retries = DefaultRetries
	} else if o.Retries < 0 {
		o.Retries = 0
	}

	if o.RetryBackoff <= 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}

	if o.Logger == nil {
		o.Logger = logging.New("model")
	}

	return o
}

// Model is the repo collection plus its refresh engine. All mutation goes
// through its methods; callers only ever receive copies.
type Model struct {
	client StatusClient
	store  Persister
	opts   Options
	logger *slog.Logger

	mu          sync.RWMutex
	items       []repo.Repo
	inflight    map[uuid.UUID]*check
	pass        *Pass
	composingID uuid.UUID
	isComposing bool
	isSaving    bool
	exportURL   string

	listenersMu  sync.RWMutex
	listeners    []subscription
	nextListener int

	saveMu   sync.Mutex
	notifyMu sync.Mutex
}

// New creates an empty model. store may be nil for an in-memory collection.
func New(client StatusClient, store Persister, opts Options) *Model {
	opts = opts.withDefaults()

	return &Model{
		client:   client,
		store:    store,
		opts:     opts,
		logger:   opts.Logger,
		inflight: make(map[uuid.UUID]*check),
	}
}

// Load replaces the collection with the persisted one. Every repo starts unknown.
func (m *Model) Load() error {
	if m.store == nil {
		return nil
	}

	repos, err := m.store.Load()
	if err != nil {
		return err
	}

	m.mu.Lock()
	for id := range m.inflight {
		m.invalidateLocked(id)
	}

	m.items = dedupe(repos)
	m.mu.Unlock()

	m.notify()

	return nil
}

// Reload re-reads the store after an external change. Repos whose target is
// unchanged keep their state; changed or removed ones lose any in-flight check.
func (m *Model) Reload() error {
	if m.store == nil {
		return nil
	}

	repos, err := m.store.Load()
	if err != nil {
		return err
	}

	repos = dedupe(repos)

	m.mu.Lock()
	previous := make(map[uuid.UUID]repo.Repo, len(m.items))
	for _, r := range m.items {
		previous[r.ID] = r
	}

	for i, r := range repos {
		old, ok := previous[r.ID]
		if ok && old.SameTarget(r) {
			repos[i].State = old.State
			continue
		}

		if ok {
			m.invalidateLocked(r.ID)
		}
	}

	kept := make(map[uuid.UUID]bool, len(repos))
	for _, r := range repos {
		kept[r.ID] = true
	}

	for id := range previous {
		if !kept[id] {
			m.invalidateLocked(id)
		}
	}

	if m.isComposing && !kept[m.composingID] {
		m.isComposing = false
	}

	m.items = repos
	m.mu.Unlock()

	m.logger.Debug("reloaded collection", "count", len(repos))
	m.notify()

	return nil
}

// AddRepo appends a repo with a fresh id and placeholder fields. The repo is
// added even when the returned error reports a failed save.
func (m *Model) AddRepo() (repo.Repo, error) {
	m.mu.Lock()
	r := repo.New()

	for m.indexLocked(r.ID) >= 0 {
		r.ID = uuid.New()
	}

	m.items = append(m.items, r)
	m.mu.Unlock()

	m.notify()

	return r.Clone(), m.save()
}

// Update replaces the repo with the same id. The record is normalized; state is
// kept unless the queried target changed, in which case it resets to unknown and
// any in-flight check for it is discarded.
func (m *Model) Update(r repo.Repo) error {
	r = r.Normalized()

	m.mu.Lock()
	idx := m.indexLocked(r.ID)
	if idx < 0 {
		m.mu.Unlock()
		return &aserr.NotFoundError{IDs: []string{r.ID.String()}}
	}

	old := m.items[idx]
	r.State = old.State

	if !old.SameTarget(r) {
		r.State = repo.StateUnknown
		m.invalidateLocked(r.ID)
	}

	m.items[idx] = r.Clone()
	m.mu.Unlock()

	m.notify()

	return m.save()
}

// Remove deletes the repos with the given ids. Unknown ids are reported with a
// *NotFoundError after the known ones are removed.
func (m *Model) Remove(ids ...uuid.UUID) error {
	m.mu.Lock()
	removed, missing := m.removeLocked(ids)
	m.mu.Unlock()

	return m.afterRemove(removed, missing, nil)
}

// RemoveAt deletes the repos at the given display indexes.
func (m *Model) RemoveAt(indexes ...int) error {
	m.mu.Lock()

	ids := make([]uuid.UUID, 0, len(indexes))

	var badIndexes []int

	for _, i := range indexes {
		if i < 0 || i >= len(m.items) {
			badIndexes = append(badIndexes, i)
			continue
		}

		ids = append(ids, m.items[i].ID)
	}

	removed, _ := m.removeLocked(ids)
	m.mu.Unlock()

	return m.afterRemove(removed, nil, badIndexes)
}

func (m *Model) afterRemove(removed int, missing []string, badIndexes []int) error {
	var errs []error

	if len(missing) > 0 || len(badIndexes) > 0 {
		errs = append(errs, &aserr.NotFoundError{IDs: missing, Indexes: badIndexes})
	}

	if removed > 0 {
		m.notify()

		if err := m.save(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m *Model) removeLocked(ids []uuid.UUID) (int, []string) {
	targets := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		targets[id] = true
	}

	found := make(map[uuid.UUID]bool, len(ids))
	kept := m.items[:0:0]

	for _, r := range m.items {
		if targets[r.ID] {
			found[r.ID] = true
			m.invalidateLocked(r.ID)

			continue
		}

		kept = append(kept, r)
	}

	m.items = kept

	if m.isComposing && found[m.composingID] {
		m.isComposing = false
	}

	var missing []string

	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id.String())
		}
	}

	return len(found), missing
}

// Items returns a copy of the collection in display order.
func (m *Model) Items() []repo.Repo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return cloneAll(m.items)
}

// Len returns the number of monitored repos.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.items)
}

// Repo returns the repo with id.
func (m *Model) Repo(id uuid.UUID) (repo.Repo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := m.indexLocked(id)
	if idx < 0 {
		return repo.Repo{}, false
	}

	return m.items[idx].Clone(), true
}

// FailingCount counts repos whose latest verdict is failing.
func (m *Model) FailingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0

	for _, r := range m.items {
		if r.State == repo.StateFailing {
			count++
		}
	}

	return count
}

// Passing reports whether no repo is failing.
func (m *Model) Passing() bool {
	return m.FailingCount() == 0
}

// Summary is the one-line footer shown under the repo list.
func (m *Model) Summary() string {
	n := m.Len()
	if n == 1 {
		return "Monitoring 1 repo."
	}

	return fmt.Sprintf("Monitoring %d repos.", n)
}

// Find resolves a user query to repos: an exact id, an exact owner/name or
// owner/name/workflow key, or else fuzzy matches on the workflow key, best first.
func (m *Model) Find(query string) []repo.Repo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id, err := uuid.Parse(query); err == nil {
		if idx := m.indexLocked(id); idx >= 0 {
			return []repo.Repo{m.items[idx].Clone()}
		}

		return nil
	}

	var exact []repo.Repo

	for _, r := range m.items {
		if r.StatusKey() == query || r.WorkflowKey() == query {
			exact = append(exact, r.Clone())
		}
	}

	if len(exact) > 0 {
		return exact
	}

	keys := make([]string, len(m.items))
	for i, r := range m.items {
		keys[i] = r.WorkflowKey()
	}

	matches := fuzzy.Find(query, keys)
	result := make([]repo.Repo, 0, len(matches))

	for _, match := range matches {
		result = append(result, m.items[match.Index].Clone())
	}

	return result
}

// ShowComposeWindow targets r for workflow generation.
func (m *Model) ShowComposeWindow(r repo.Repo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.composingID = r.ID
	m.isComposing = true
}

// HideComposeWindow ends the compose flow.
func (m *Model) HideComposeWindow() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.isComposing = false
}

// IsComposing reports whether a compose flow is active.
func (m *Model) IsComposing() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.isComposing
}

// RepoToCompose returns the repo targeted by ShowComposeWindow. It reports false
// when no compose flow is active or the repo has since been removed.
func (m *Model) RepoToCompose() (repo.Repo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.isComposing {
		return repo.Repo{}, false
	}

	idx := m.indexLocked(m.composingID)
	if idx < 0 {
		return repo.Repo{}, false
	}

	return m.items[idx].Clone(), true
}

// save writes the latest collection. Saves are serialized so the last one to
// finish always carries the newest snapshot.
func (m *Model) save() error {
	if m.store == nil {
		return nil
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.RLock()
	items := cloneAll(m.items)
	m.mu.RUnlock()

	if err := m.store.Save(items); err != nil {
		m.logger.Error("failed to save collection", "error", err)
		return err
	}

	return nil
}

func (m *Model) indexLocked(id uuid.UUID) int {
	for i, r := range m.items {
		if r.ID == id {
			return i
		}
	}

	return -1
}

// invalidateLocked makes any in-flight check for id discard its result. The
// marker itself stays until the check returns.
func (m *Model) invalidateLocked(id uuid.UUID) {
	if c, ok := m.inflight[id]; ok {
		c.stale = true
		c.cancel()
	}
}

func cloneAll(items []repo.Repo) []repo.Repo {
	result := make([]repo.Repo, len(items))
	for i, r := range items {
		result[i] = r.Clone()
	}

	return result
}

// dedupe keeps the first repo for each id and resets every state to unknown.
func dedupe(repos []repo.Repo) []repo.Repo {
	seen := make(map[uuid.UUID]bool, len(repos))
	result := make([]repo.Repo, 0, len(repos))

	for _, r := range repos {
		if seen[r.ID] {
			continue
		}

		seen[r.ID] = true
		r = r.Clone()
		r.State = repo.StateUnknown
		result = append(result, r)
	}

	return result
}
