package shell

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kyleking/gh-actionstatus/internal/bridge"
	aserr "github.com/kyleking/gh-actionstatus/internal/errors"
	"github.com/kyleking/gh-actionstatus/internal/github"
	"github.com/kyleking/gh-actionstatus/internal/logging"
	"github.com/kyleking/gh-actionstatus/internal/model"
	"github.com/kyleking/gh-actionstatus/internal/repo"
	"github.com/kyleking/gh-actionstatus/internal/testutil"
	"github.com/kyleking/gh-actionstatus/internal/ui"
	"github.com/kyleking/gh-actionstatus/internal/ui/theme"
)

type harness struct {
	engine   *model.Model
	client   *testutil.MockStatusClient
	selected []repo.Repo
	copied   []string
	view     Model
}

func newHarness(t *testing.T, repos ...repo.Repo) *harness {
	t.Helper()

	h := &harness{client: testutil.NewMockStatusClient()}
	h.engine = model.New(h.client, testutil.NewMemoryStore(repos...), model.Options{
		Retries:  -1,
		Logger:   logging.Discard(),
		OnSelect: func(r repo.Repo) { h.selected = append(h.selected, r) },
	})

	if err := h.engine.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h.view = New(ctx, h.engine, ui.NewStyles(theme.Latte())).WithClipboard(func(s string) error {
		h.copied = append(h.copied, s)
		return nil
	})

	detach := h.view.Attach()
	t.Cleanup(detach)

	h.drain(t)

	return h
}

// drain feeds the latest pushed snapshot into the view.
func (h *harness) drain(t *testing.T) {
	t.Helper()

	msg := h.view.waitForStatus()()
	if _, ok := msg.(StatusMsg); !ok {
		t.Fatalf("expected StatusMsg, got %T", msg)
	}

	h.update(msg)
}

func (h *harness) update(msg tea.Msg) tea.Cmd {
	next, cmd := h.view.Update(msg)
	h.view = next.(Model)

	return cmd
}

func (h *harness) press(keys string) tea.Cmd {
	if keys == "enter" {
		return h.update(tea.KeyMsg{Type: tea.KeyEnter})
	}

	return h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)})
}

func TestView_RendersPushedItems(t *testing.T) {
	h := newHarness(t,
		testutil.RepoFixture("octo", "alpha", "ci", "main"),
		testutil.RepoFixture("octo", "beta", "ci", "main"),
	)

	view := h.view.View()
	for _, want := range []string{"alpha", "beta", "Monitoring 2 repos.", "? alpha"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestView_Empty(t *testing.T) {
	h := newHarness(t)

	if !strings.Contains(h.view.View(), "No repos monitored") {
		t.Errorf("expected empty hint, got:\n%s", h.view.View())
	}
}

func TestCursorMovement(t *testing.T) {
	h := newHarness(t,
		testutil.RepoFixture("octo", "alpha", "ci"),
		testutil.RepoFixture("octo", "beta", "ci"),
	)

	h.press("k")
	if h.view.Cursor() != 0 {
		t.Errorf("cursor should stay at top, got %d", h.view.Cursor())
	}

	h.press("j")
	h.press("j")

	if h.view.Cursor() != 1 {
		t.Errorf("cursor should stop at last item, got %d", h.view.Cursor())
	}
}

func TestCursorClampedAfterRemoval(t *testing.T) {
	a := testutil.RepoFixture("octo", "alpha", "ci")
	b := testutil.RepoFixture("octo", "beta", "ci")
	h := newHarness(t, a, b)

	h.press("j")

	if err := h.engine.Remove(b.ID); err != nil {
		t.Fatal(err)
	}

	h.drain(t)

	if h.view.Cursor() != 0 {
		t.Errorf("cursor = %d, want 0", h.view.Cursor())
	}
}

func TestSelectForwardsToEngine(t *testing.T) {
	a := testutil.RepoFixture("octo", "alpha", "ci")
	b := testutil.RepoFixture("octo", "beta", "ci")
	h := newHarness(t, a, b)

	h.press("j")
	h.press("enter")

	if len(h.selected) != 1 || h.selected[0].ID != b.ID {
		t.Errorf("expected beta to be selected, got %v", h.selected)
	}
}

func TestRefreshKey(t *testing.T) {
	r := testutil.RepoFixture("octo", "alpha", "ci", "main")
	h := newHarness(t, r)
	h.client.WithResult(testutil.Key("octo", "alpha", "ci", "main"), testutil.Result{Status: github.RunFailed})

	cmd := h.press("r")
	if cmd == nil {
		t.Fatal("expected refresh command")
	}

	done, ok := cmd().(RefreshDoneMsg)
	if !ok || done.Err != nil {
		t.Fatalf("unexpected refresh result: %#v", done)
	}

	h.update(done)
	h.drain(t)

	view := h.view.View()
	if !strings.Contains(view, "✗ alpha") || !strings.Contains(view, "failing") {
		t.Errorf("expected failing alpha, got:\n%s", view)
	}
}

func TestRefreshWarning(t *testing.T) {
	h := newHarness(t, testutil.RepoFixture("octo", "alpha", "ci"))

	h.update(RefreshDoneMsg{Err: errors.Join(errors.New("rate limited"), errors.New("second"))})

	view := h.view.View()
	if !strings.Contains(view, "rate limited (and more)") {
		t.Errorf("expected first warning line, got:\n%s", view)
	}
}

func TestBackgroundReport(t *testing.T) {
	h := newHarness(t, testutil.RepoFixture("octo", "alpha", "ci"))
	h.update(RefreshDoneMsg{})
	h.client.WithDefault(testutil.Result{Err: testutil.CheckErr(aserr.CheckRateLimited)})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pass := h.engine.Refresh(ctx)
	_ = pass.Wait(ctx)

	h.view.Report(pass)
	h.update(h.view.waitForReport()())

	if !strings.Contains(h.view.View(), "refresh octo/alpha") {
		t.Errorf("expected background warning, got:\n%s", h.view.View())
	}

	h.client.WithDefault(testutil.Result{Status: github.RunSucceeded})

	pass = h.engine.Refresh(ctx)
	if err := pass.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	h.view.Report(pass)
	h.update(h.view.waitForReport()())

	if strings.Contains(h.view.View(), "refresh octo/alpha") {
		t.Error("clean background pass did not clear the warning")
	}
}

func TestBackgroundReport_IgnoredWhileRefreshing(t *testing.T) {
	h := newHarness(t, testutil.RepoFixture("octo", "alpha", "ci"))

	h.update(backgroundMsg{err: errors.New("stale warning")})

	if strings.Contains(h.view.View(), "stale warning") {
		t.Error("background report overrode an in-progress refresh")
	}
}

func TestCancelKey(t *testing.T) {
	h := newHarness(t, testutil.RepoFixture("octo", "alpha", "ci", "main"))
	h.client.Block()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pass := h.engine.Refresh(ctx)
	testutil.WaitStarted(t, h.client, 1, 5*time.Second)

	h.press("x")

	if err := pass.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	h.client.Release()

	if !strings.Contains(h.view.View(), "Refresh cancelled") {
		t.Error("expected cancel status")
	}
}

func TestCancelThenRefreshKey(t *testing.T) {
	h := newHarness(t, testutil.RepoFixture("octo", "alpha", "ci", "main"))
	h.client.Block()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cancelled := h.engine.Refresh(ctx)
	testutil.WaitStarted(t, h.client, 1, 5*time.Second)

	h.press("x")
	h.client.Release()

	done, ok := h.press("r")().(RefreshDoneMsg)
	if !ok || done.Err != nil {
		t.Fatalf("unexpected refresh result: %#v", done)
	}

	_ = cancelled.Wait(ctx)
	h.update(done)
	h.drain(t)

	if !strings.Contains(h.view.View(), "✓ alpha") {
		t.Errorf("expected alpha re-checked as passing, got:\n%s", h.view.View())
	}
}

func TestCopyKey(t *testing.T) {
	h := newHarness(t, testutil.RepoFixture("octo", "alpha", "ci"))

	cmd := h.press("c")
	if cmd == nil {
		t.Fatal("expected copy command")
	}

	h.update(cmd())

	if len(h.copied) != 1 || h.copied[0] != "alpha" {
		t.Errorf("copied = %v", h.copied)
	}

	if !strings.Contains(h.view.View(), "Copied alpha") {
		t.Error("expected copy confirmation")
	}
}

func TestQuitKey(t *testing.T) {
	h := newHarness(t)

	cmd := h.press("q")
	if cmd == nil {
		t.Fatal("expected quit command")
	}

	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestPushCoalesces(t *testing.T) {
	h := newHarness(t)

	first := bridge.NewSnapshot([]bridge.Item{{Name: "old"}}, nil)
	latest := bridge.NewSnapshot([]bridge.Item{{Name: "new"}}, nil)

	h.view.push(StatusMsg{Source: first})
	h.view.push(StatusMsg{Source: latest, Passing: true})

	msg := h.view.waitForStatus()().(StatusMsg)
	if msg.Source.Name(0) != "new" {
		t.Errorf("expected latest snapshot, got %q", msg.Source.Name(0))
	}
}

func TestCopyKey_CustomText(t *testing.T) {
	h := newHarness(t, testutil.RepoFixture("octo", "alpha", "ci"))
	h.view = h.view.WithCopyText(func(src bridge.DataSource, item int) (string, error) {
		return "workflow for " + src.Name(item), nil
	})

	h.update(h.press("c")())

	if len(h.copied) != 1 || h.copied[0] != "workflow for alpha" {
		t.Errorf("copied = %v", h.copied)
	}
}

func TestCopyKey_TextError(t *testing.T) {
	h := newHarness(t, testutil.RepoFixture("octo", "alpha", "ci"))
	h.view = h.view.WithCopyText(func(bridge.DataSource, int) (string, error) {
		return "", errors.New("invalid branch")
	})

	h.update(h.press("c")())

	if len(h.copied) != 0 {
		t.Errorf("nothing should be copied, got %v", h.copied)
	}

	if !strings.Contains(h.view.View(), "copy failed: invalid branch") {
		t.Errorf("expected failure status, got:\n%s", h.view.View())
	}
}
