// Package github implements the run-status client over the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/cli/go-gh/v2/pkg/api"
	aserr "github.com/kyleking/gh-actionstatus/internal/errors"
)

// Requester is the subset of api.RESTClient used by Client.
type Requester interface {
	RequestWithContext(ctx context.Context, method string, path string, body io.Reader) (*http.Response, error)
}

// Client answers "what is the latest run status for owner/name, workflow, branch".
// It is safe for concurrent use.
type Client struct {
	rest Requester

	mu            sync.Mutex
	defaultBranch map[string]string
}

// NewClient creates a client using gh's stored credentials for the default host.
func NewClient() (*Client, error) {
	rest, err := api.DefaultRESTClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create REST client: %w", err)
	}

	return NewClientWithRequester(rest), nil
}

// NewClientWithOptions creates a client for an explicit host and token.
func NewClientWithOptions(opts api.ClientOptions) (*Client, error) {
	rest, err := api.NewRESTClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create REST client: %w", err)
	}

	return NewClientWithRequester(rest), nil
}

// NewClientWithRequester creates a client with a custom requester (for testing).
func NewClientWithRequester(rest Requester) *Client {
	return &Client{
		rest:          rest,
		defaultBranch: make(map[string]string),
	}
}

// CheckStatus returns the verdict of the latest completed run of workflow on branch.
// An empty branch means the repository's default branch.
func (c *Client) CheckStatus(ctx context.Context, owner, name, workflow, branch string) (RunStatus, error) {
	wrap := func(kind aserr.CheckErrorKind, err error) error {
		return &aserr.CheckError{Kind: kind, Owner: owner, Name: name, Workflow: workflow, Branch: branch, Err: err}
	}

	if branch == "" {
		resolved, err := c.DefaultBranch(ctx, owner, name)
		if err != nil {
			return RunUnknown, err
		}

		branch = resolved
	}

	query := url.Values{}
	query.Set("per_page", "1")
	query.Set("status", StatusCompleted)
	query.Set("exclude_pull_requests", "true")

	if branch != "" {
		query.Set("branch", branch)
	}

	path := fmt.Sprintf("repos/%s/%s/actions/workflows/%s/runs?%s",
		url.PathEscape(owner), url.PathEscape(name), url.PathEscape(workflow+".yml"), query.Encode())

	var runs RunsResponse
	if err := c.get(ctx, path, &runs); err != nil {
		if ce, ok := asCheckError(err); ok {
			ce.Owner, ce.Name, ce.Workflow, ce.Branch = owner, name, workflow, branch
			return RunUnknown, ce
		}

		if ctx.Err() != nil {
			return RunUnknown, err
		}

		return RunUnknown, wrap(aserr.CheckNetwork, err)
	}

	if len(runs.WorkflowRuns) == 0 {
		return RunUnknown, nil
	}

	return StatusOf(&runs.WorkflowRuns[0]), nil
}

// DefaultBranch returns the repository's default branch, cached per client.
func (c *Client) DefaultBranch(ctx context.Context, owner, name string) (string, error) {
	key := owner + "/" + name

	c.mu.Lock()
	branch, ok := c.defaultBranch[key]
	c.mu.Unlock()

	if ok {
		return branch, nil
	}

	var repository Repository

	path := fmt.Sprintf("repos/%s/%s", url.PathEscape(owner), url.PathEscape(name))
	if err := c.get(ctx, path, &repository); err != nil {
		if ce, ok := asCheckError(err); ok {
			ce.Owner, ce.Name = owner, name
			return "", ce
		}

		if ctx.Err() != nil {
			return "", err
		}

		return "", &aserr.CheckError{Kind: aserr.CheckNetwork, Owner: owner, Name: name, Err: err}
	}

	c.mu.Lock()
	c.defaultBranch[key] = repository.DefaultBranch
	c.mu.Unlock()

	return repository.DefaultBranch, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	resp, err := c.rest.RequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return classify(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &aserr.CheckError{Kind: aserr.CheckNetwork, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &aserr.CheckError{Kind: aserr.CheckMalformedResponse, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	return nil
}

// classify maps transport and HTTP errors onto check error kinds.
// Context cancellation is passed through unchanged.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var httpErr *api.HTTPError
	if !errors.As(err, &httpErr) {
		return &aserr.CheckError{Kind: aserr.CheckNetwork, Err: err}
	}

	kind := aserr.CheckNetwork

	switch {
	case httpErr.StatusCode == http.StatusUnauthorized:
		kind = aserr.CheckAuthorization
	case httpErr.StatusCode == http.StatusTooManyRequests:
		kind = aserr.CheckRateLimited
	case httpErr.StatusCode == http.StatusForbidden:
		kind = aserr.CheckAuthorization
		if isRateLimited(httpErr) {
			kind = aserr.CheckRateLimited
		}
	case httpErr.StatusCode == http.StatusNotFound:
		kind = aserr.CheckNotFound
	}

	return &aserr.CheckError{Kind: kind, Err: err}
}

func isRateLimited(httpErr *api.HTTPError) bool {
	if httpErr.Headers != nil && httpErr.Headers.Get("X-RateLimit-Remaining") == "0" {
		return true
	}

	return strings.Contains(strings.ToLower(httpErr.Message), "rate limit")
}

func asCheckError(err error) (*aserr.CheckError, bool) {
	var ce *aserr.CheckError
	if errors.As(err, &ce) {
		return ce, true
	}

	return nil, false
}
