// Package git reads repository metadata from local checkouts.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandRunner executes git commands and returns their output.
type CommandRunner interface {
	RunCommand(ctx context.Context, args ...string) ([]byte, error)
}

type defaultCommandRunner struct{}

func (r *defaultCommandRunner) RunCommand(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	return cmd.Output()
}

// Client runs git against arbitrary checkout directories.
type Client struct {
	runner CommandRunner
}

// NewClient creates a client that shells out to the git binary.
func NewClient() *Client {
	return NewClientWithRunner(&defaultCommandRunner{})
}

// NewClientWithRunner creates a client with a custom runner (for testing).
func NewClientWithRunner(r CommandRunner) *Client {
	return &Client{runner: r}
}

// TopLevel returns the root of the working tree containing dir.
func (c *Client) TopLevel(ctx context.Context, dir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	output, err := c.runner.RunCommand(ctx, "-C", dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("failed to find work tree for %s: %w", dir, err)
	}

	return strings.TrimSpace(string(output)), nil
}

// RemoteURL returns the fetch URL of the named remote.
func (c *Client) RemoteURL(ctx context.Context, dir, remote string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	output, err := c.runner.RunCommand(ctx, "-C", dir, "remote", "get-url", remote)
	if err != nil {
		return "", fmt.Errorf("failed to read remote %s in %s: %w", remote, dir, err)
	}

	url := strings.TrimSpace(string(output))
	if url == "" {
		return "", fmt.Errorf("remote %s in %s has no url", remote, dir)
	}

	return url, nil
}

// DefaultBranch returns the branch origin/HEAD points at, or "" if unknown.
func (c *Client) DefaultBranch(ctx context.Context, dir string) string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	output, err := c.runner.RunCommand(ctx, "-C", dir, "symbolic-ref", "refs/remotes/origin/HEAD")
	if err != nil {
		return ""
	}

	ref := strings.TrimSpace(string(output))

	return strings.TrimPrefix(ref, "refs/remotes/origin/")
}

// CurrentBranch returns the checked out branch, or "" for a detached HEAD.
func (c *Client) CurrentBranch(ctx context.Context, dir string) string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	output, err := c.runner.RunCommand(ctx, "-C", dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return ""
	}

	branch := strings.TrimSpace(string(output))
	if branch == "HEAD" {
		return ""
	}

	return branch
}
