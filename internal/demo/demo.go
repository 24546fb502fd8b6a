// Package demo provides an offline status client and sample repos so the
// monitor can be exercised without network access or a GitHub token.
package demo

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	aserr "github.com/kyleking/gh-actionstatus/internal/errors"
	"github.com/kyleking/gh-actionstatus/internal/github"
	"github.com/kyleking/gh-actionstatus/internal/repo"
)

// Owner is the account every sample repo belongs to.
const Owner = "demo-org"

// Client answers status checks from a fixed table. Unknown targets get a
// status derived from a hash of the target so results are stable across runs.
type Client struct {
	latency time.Duration

	mu        sync.Mutex
	overrides map[string]github.RunStatus
	missing   map[string]bool
	calls     int
}

// NewClient creates a client with the sample outcomes installed.
func NewClient() *Client {
	c := &Client{
		overrides: make(map[string]github.RunStatus),
		missing:   make(map[string]bool),
	}

	c.Set("api-server", "main", github.RunSucceeded)
	c.Set("api-server", "develop", github.RunSucceeded)
	c.Set("web-frontend", "main", github.RunFailed)
	c.Set("cli-tool", "main", github.RunUnknown)
	c.missing["archived-service"] = true

	return c
}

// WithLatency delays every answer to make refresh progress visible.
func (c *Client) WithLatency(d time.Duration) *Client {
	c.latency = d
	return c
}

// Set pins the outcome for one repo and branch.
func (c *Client) Set(name, branch string, status github.RunStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.overrides[name+"@"+branch] = status
}

// Calls returns how many checks were answered.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls
}

// CheckStatus implements the model's status client.
func (c *Client) CheckStatus(ctx context.Context, owner, name, workflow, branch string) (github.RunStatus, error) {
	if c.latency > 0 {
		timer := time.NewTimer(c.latency)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return github.RunUnknown, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return github.RunUnknown, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++

	if c.missing[name] {
		return github.RunUnknown, &aserr.CheckError{
			Kind:     aserr.CheckNotFound,
			Owner:    owner,
			Name:     name,
			Workflow: workflow,
			Branch:   branch,
			Err:      aserr.ErrNotFound,
		}
	}

	if status, ok := c.overrides[name+"@"+branch]; ok {
		return status, nil
	}

	return hashed(owner, name, workflow, branch), nil
}

func hashed(parts ...string) github.RunStatus {
	h := fnv.New32a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}

	if h.Sum32()%5 == 0 {
		return github.RunFailed
	}

	return github.RunSucceeded
}

// Repos returns the sample collection shown in demo mode.
func Repos() []repo.Repo {
	samples := []struct {
		name     string
		workflow string
		branches []string
	}{
		{"api-server", "ci", []string{"main", "develop"}},
		{"web-frontend", "tests", []string{"main"}},
		{"cli-tool", "build", []string{"main"}},
		{"archived-service", "ci", []string{"main"}},
	}

	repos := make([]repo.Repo, 0, len(samples))

	for _, s := range samples {
		r := repo.New()
		r.Owner = Owner
		r.Name = s.name
		r.Workflow = s.workflow
		r.Branches = append([]string(nil), s.branches...)
		repos = append(repos, r)
	}

	return repos
}

// Store is an in-memory persister pre-filled with Repos.
type Store struct {
	mu    sync.Mutex
	repos []repo.Repo
}

// NewStore creates a store holding the sample collection.
func NewStore() *Store {
	return &Store{repos: Repos()}
}

func (s *Store) Load() ([]repo.Repo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]repo.Repo, len(s.repos))
	for i, r := range s.repos {
		out[i] = r.Clone()
	}

	return out, nil
}

func (s *Store) Save(repos []repo.Repo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.repos = make([]repo.Repo, len(repos))
	for i, r := range repos {
		s.repos[i] = r.Clone()
	}

	return nil
}
