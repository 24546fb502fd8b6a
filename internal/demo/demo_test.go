package demo_test

import (
	"context"
	"testing"
	"time"

	"github.com/kyleking/gh-actionstatus/internal/demo"
	aserr "github.com/kyleking/gh-actionstatus/internal/errors"
	"github.com/kyleking/gh-actionstatus/internal/github"
	"github.com/kyleking/gh-actionstatus/internal/logging"
	"github.com/kyleking/gh-actionstatus/internal/model"
	"github.com/kyleking/gh-actionstatus/internal/repo"
)

func TestClient_SampleOutcomes(t *testing.T) {
	c := demo.NewClient()
	ctx := context.Background()

	tests := []struct {
		name   string
		branch string
		want   github.RunStatus
	}{
		{"api-server", "main", github.RunSucceeded},
		{"web-frontend", "main", github.RunFailed},
		{"cli-tool", "main", github.RunUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.CheckStatus(ctx, demo.Owner, tt.name, "ci", tt.branch)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	_, err := c.CheckStatus(ctx, demo.Owner, "archived-service", "ci", "main")
	if !aserr.IsCheckKind(err, aserr.CheckNotFound) {
		t.Errorf("expected not-found check error, got %v", err)
	}

	if c.Calls() != 4 {
		t.Errorf("Calls() = %d, want 4", c.Calls())
	}
}

func TestClient_Deterministic(t *testing.T) {
	a, _ := demo.NewClient().CheckStatus(context.Background(), "x", "y", "ci", "feature")
	b, _ := demo.NewClient().CheckStatus(context.Background(), "x", "y", "ci", "feature")

	if a != b {
		t.Errorf("expected stable outcome, got %v and %v", a, b)
	}
}

func TestClient_LatencyHonorsContext(t *testing.T) {
	c := demo.NewClient().WithLatency(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.CheckStatus(ctx, demo.Owner, "api-server", "ci", "main"); err == nil {
		t.Error("expected context error")
	}
}

func TestRepos(t *testing.T) {
	repos := demo.Repos()
	if len(repos) != 4 {
		t.Fatalf("expected 4 sample repos, got %d", len(repos))
	}

	for _, r := range repos {
		if !r.Checkable() {
			t.Errorf("sample repo %s should be checkable", r.StatusKey())
		}

		if r.State != repo.StateUnknown {
			t.Errorf("sample repo %s should start unknown", r.StatusKey())
		}
	}
}

func TestDemoModel(t *testing.T) {
	m := model.New(demo.NewClient(), demo.NewStore(), model.Options{Retries: -1, Logger: logging.Discard()})
	if err := m.Load(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pass := m.Refresh(ctx)

	err := pass.Wait(ctx)
	if !aserr.IsCheckKind(err, aserr.CheckNotFound) {
		t.Fatalf("expected the archived repo to surface a not-found warning, got %v", err)
	}

	want := map[string]repo.State{
		"api-server":       repo.StatePassing,
		"web-frontend":     repo.StateFailing,
		"cli-tool":         repo.StateUnknown,
		"archived-service": repo.StateFailing,
	}

	for _, r := range m.Items() {
		if r.State != want[r.Name] {
			t.Errorf("%s: state = %v, want %v", r.Name, r.State, want[r.Name])
		}
	}

	if m.Passing() {
		t.Error("demo collection should not be passing")
	}
}
