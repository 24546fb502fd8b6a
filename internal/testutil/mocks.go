package testutil

import (
	"context"
	"sync"

	"github.com/kyleking/gh-actionstatus/internal/github"
)

// Result is one canned answer of MockStatusClient.
type Result struct {
	Status github.RunStatus
	Err    error
}

// MockStatusClient implements model.StatusClient with canned results keyed by
// "owner/name/workflow@branch". Queued results are consumed one per call; the
// last one repeats.
type MockStatusClient struct {
	mu        sync.Mutex
	results   map[string][]Result
	fallback  Result
	calls     map[string]int
	active    map[string]int
	maxActive map[string]int
	gate      chan struct{}
	started   chan string
}

// NewMockStatusClient creates a client answering RunSucceeded by default.
func NewMockStatusClient() *MockStatusClient {
	return &MockStatusClient{
		results:   make(map[string][]Result),
		fallback:  Result{Status: github.RunSucceeded},
		calls:     make(map[string]int),
		active:    make(map[string]int),
		maxActive: make(map[string]int),
		started:   make(chan string, 1024),
	}
}

// Key builds the lookup key for a check.
func Key(owner, name, workflow, branch string) string {
	return owner + "/" + name + "/" + workflow + "@" + branch
}

// WithResult queues answers for one check.
func (m *MockStatusClient) WithResult(key string, results ...Result) *MockStatusClient {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results[key] = append(m.results[key], results...)

	return m
}

// WithDefault sets the answer for checks without queued results.
func (m *MockStatusClient) WithDefault(r Result) *MockStatusClient {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fallback = r

	return m
}

// Block makes every call wait until Release or its context is done.
func (m *MockStatusClient) Block() *MockStatusClient {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gate = make(chan struct{})

	return m
}

// Release lets blocked calls proceed.
func (m *MockStatusClient) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

// Started receives the key of every call as it begins.
func (m *MockStatusClient) Started() <-chan string {
	return m.started
}

// Calls returns how often key was checked.
func (m *MockStatusClient) Calls(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls[key]
}

// TotalCalls returns the number of checks made.
func (m *MockStatusClient) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, n := range m.calls {
		total += n
	}

	return total
}

// MaxConcurrent returns the peak number of simultaneous calls for owner/name.
func (m *MockStatusClient) MaxConcurrent(owner, name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.maxActive[owner+"/"+name]
}

func (m *MockStatusClient) CheckStatus(ctx context.Context, owner, name, workflow, branch string) (github.RunStatus, error) {
	key := Key(owner, name, workflow, branch)
	repoKey := owner + "/" + name

	m.mu.Lock()
	m.calls[key]++
	m.active[repoKey]++

	if m.active[repoKey] > m.maxActive[repoKey] {
		m.maxActive[repoKey] = m.active[repoKey]
	}

	gate := m.gate
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active[repoKey]--
		m.mu.Unlock()
	}()

	select {
	case m.started <- key:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return github.RunUnknown, ctx.Err()
		}
	}

	m.mu.Lock()
	result := m.fallback

	if queued := m.results[key]; len(queued) > 0 {
		result = queued[0]
		if len(queued) > 1 {
			m.results[key] = queued[1:]
		}
	}
	m.mu.Unlock()

	return result.Status, result.Err
}

// DrainStarted discards start notifications from earlier calls.
func (m *MockStatusClient) DrainStarted() {
	for {
		select {
		case <-m.started:
		default:
			return
		}
	}
}
