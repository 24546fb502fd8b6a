// Package testutil provides fakes shared by package tests.
package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/kyleking/gh-actionstatus/internal/bridge"
	"github.com/kyleking/gh-actionstatus/internal/repo"
)

// MemoryStore implements model.Persister in memory.
type MemoryStore struct {
	mu      sync.Mutex
	repos   []repo.Repo
	saves   int
	LoadErr error
	SaveErr error
}

// NewMemoryStore creates a store holding repos.
func NewMemoryStore(repos ...repo.Repo) *MemoryStore {
	return &MemoryStore{repos: cloneAll(repos)}
}

func (s *MemoryStore) Load() ([]repo.Repo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.LoadErr != nil {
		return nil, s.LoadErr
	}

	return cloneAll(s.repos), nil
}

func (s *MemoryStore) Save(repos []repo.Repo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SaveErr != nil {
		return s.SaveErr
	}

	s.saves++
	s.repos = cloneAll(repos)

	return nil
}

// Repos returns the last saved collection.
func (s *MemoryStore) Repos() []repo.Repo {
	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneAll(s.repos)
}

// Saves counts successful saves.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saves
}

// Replace swaps the stored collection, as another process would.
func (s *MemoryStore) Replace(repos ...repo.Repo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.repos = cloneAll(repos)
}

// Notification is one recorded listener call.
type Notification struct {
	Items   []bridge.Item
	Passing bool
}

// RecordingListener implements bridge.Listener and keeps every notification.
type RecordingListener struct {
	mu    sync.Mutex
	calls []Notification
}

func (l *RecordingListener) StatusChanged(src bridge.DataSource, passing bool) {
	items := make([]bridge.Item, src.ItemCount())
	for i := range items {
		items[i] = bridge.Item{Name: src.Name(i), Status: src.Status(i)}
	}

	l.mu.Lock()
	l.calls = append(l.calls, Notification{Items: items, Passing: passing})
	l.mu.Unlock()
}

// Count returns the number of notifications received.
func (l *RecordingListener) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.calls)
}

// Last returns the most recent notification.
func (l *RecordingListener) Last() (Notification, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.calls) == 0 {
		return Notification{}, false
	}

	return l.calls[len(l.calls)-1], true
}

// WaitFor polls cond until it holds or timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatal("timeout waiting for condition")
}

// WaitStarted waits for n calls to begin on a mock client.
func WaitStarted(t *testing.T, client *MockStatusClient, n int, timeout time.Duration) []string {
	t.Helper()

	deadline := time.After(timeout)
	keys := make([]string, 0, n)

	for len(keys) < n {
		select {
		case key := <-client.Started():
			keys = append(keys, key)
		case <-deadline:
			t.Fatalf("timeout waiting for %d checks to start, got %d", n, len(keys))
		}
	}

	return keys
}

func cloneAll(repos []repo.Repo) []repo.Repo {
	result := make([]repo.Repo, len(repos))
	for i, r := range repos {
		result[i] = r.Clone()
	}

	return result
}
