// Package browser opens monitored workflows in the user's web browser.
package browser

import (
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"runtime"

	"github.com/kyleking/gh-actionstatus/internal/repo"
)

// execCommand is overridden in tests to avoid launching a browser.
var execCommand = func(name string, args ...string) cmdRunner {
	return exec.Command(name, args...)
}

type cmdRunner interface {
	Start() error
}

// command returns the launcher for the current platform.
func command(goos, target string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		return "cmd", []string{"/c", "start", target}
	default:
		return "xdg-open", []string{target}
	}
}

// Open opens target in the default browser. Only http and https URLs are accepted.
func Open(target string) error {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("refusing to open %q: not an http(s) URL", target)
	}

	name, args := command(runtime.GOOS, target)
	if err := execCommand(name, args...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}

// OpenWorkflow opens the runs page of r's monitored workflow.
func OpenWorkflow(r repo.Repo) error {
	if !r.Checkable() {
		return fmt.Errorf("repo %s has no workflow to open", r.StatusKey())
	}

	return Open(r.WorkflowURL())
}

// SelectHandler returns a model select callback that opens the workflow page
// and logs failures instead of returning them.
func SelectHandler(logger *slog.Logger) func(repo.Repo) {
	return func(r repo.Repo) {
		if err := OpenWorkflow(r); err != nil {
			logger.Warn("failed to open workflow", "repo", r.StatusKey(), "error", err)
		}
	}
}
