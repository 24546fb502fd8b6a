package github_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/cli/go-gh/v2/pkg/api"
	aserr "github.com/kyleking/gh-actionstatus/internal/errors"
	"github.com/kyleking/gh-actionstatus/internal/github"
)

type response struct {
	body string
	err  error
}

type fakeRequester struct {
	mu        sync.Mutex
	responses map[string]response
	requested []string
}

func newFakeRequester() *fakeRequester {
	return &fakeRequester{responses: make(map[string]response)}
}

func (f *fakeRequester) add(path, body string, err error) {
	f.responses[path] = response{body: body, err: err}
}

func (f *fakeRequester) RequestWithContext(ctx context.Context, method, path string, _ io.Reader) (*http.Response, error) {
	f.mu.Lock()
	f.requested = append(f.requested, method+" "+path)
	resp, ok := f.responses[path]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !ok {
		return nil, &api.HTTPError{StatusCode: http.StatusNotFound, Message: "Not Found"}
	}

	if resp.err != nil {
		return nil, resp.err
	}

	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(resp.body)),
	}, nil
}

func runsJSON(t *testing.T, runs ...github.WorkflowRun) string {
	t.Helper()

	data, err := json.Marshal(github.RunsResponse{TotalCount: len(runs), WorkflowRuns: runs})
	if err != nil {
		t.Fatalf("failed to marshal runs: %v", err)
	}

	return string(data)
}

const runsPath = "repos/octo/hello/actions/workflows/ci.yml/runs?branch=main&exclude_pull_requests=true&per_page=1&status=completed"

func TestClient_CheckStatus(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*testing.T, *fakeRequester)
		want     github.RunStatus
		wantKind *aserr.CheckErrorKind
	}{
		{
			name: "latest run succeeded",
			setup: func(t *testing.T, f *fakeRequester) {
				f.add(runsPath, runsJSON(t, github.WorkflowRun{ID: 1, Status: github.StatusCompleted, Conclusion: github.ConclusionSuccess}), nil)
			},
			want: github.RunSucceeded,
		},
		{
			name: "latest run failed",
			setup: func(t *testing.T, f *fakeRequester) {
				f.add(runsPath, runsJSON(t, github.WorkflowRun{ID: 2, Status: github.StatusCompleted, Conclusion: github.ConclusionFailure}), nil)
			},
			want: github.RunFailed,
		},
		{
			name: "no runs",
			setup: func(t *testing.T, f *fakeRequester) {
				f.add(runsPath, runsJSON(t), nil)
			},
			want: github.RunUnknown,
		},
		{
			name: "malformed body",
			setup: func(_ *testing.T, f *fakeRequester) {
				f.add(runsPath, "not json", nil)
			},
			wantKind: kind(aserr.CheckMalformedResponse),
		},
		{
			name: "workflow not found",
			setup: func(_ *testing.T, f *fakeRequester) {
				f.add(runsPath, "", &api.HTTPError{StatusCode: http.StatusNotFound})
			},
			wantKind: kind(aserr.CheckNotFound),
		},
		{
			name: "unauthorized",
			setup: func(_ *testing.T, f *fakeRequester) {
				f.add(runsPath, "", &api.HTTPError{StatusCode: http.StatusUnauthorized})
			},
			wantKind: kind(aserr.CheckAuthorization),
		},
		{
			name: "forbidden by rate limit header",
			setup: func(_ *testing.T, f *fakeRequester) {
				f.add(runsPath, "", &api.HTTPError{
					StatusCode: http.StatusForbidden,
					Headers:    http.Header{"X-Ratelimit-Remaining": []string{"0"}},
				})
			},
			wantKind: kind(aserr.CheckRateLimited),
		},
		{
			name: "forbidden by rate limit message",
			setup: func(_ *testing.T, f *fakeRequester) {
				f.add(runsPath, "", &api.HTTPError{StatusCode: http.StatusForbidden, Message: "API rate limit exceeded"})
			},
			wantKind: kind(aserr.CheckRateLimited),
		},
		{
			name: "too many requests",
			setup: func(_ *testing.T, f *fakeRequester) {
				f.add(runsPath, "", &api.HTTPError{StatusCode: http.StatusTooManyRequests})
			},
			wantKind: kind(aserr.CheckRateLimited),
		},
		{
			name: "server error",
			setup: func(_ *testing.T, f *fakeRequester) {
				f.add(runsPath, "", &api.HTTPError{StatusCode: http.StatusBadGateway})
			},
			wantKind: kind(aserr.CheckNetwork),
		},
		{
			name: "transport error",
			setup: func(_ *testing.T, f *fakeRequester) {
				f.add(runsPath, "", errors.New("dial tcp: connection refused"))
			},
			wantKind: kind(aserr.CheckNetwork),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeRequester()
			tt.setup(t, fake)

			client := github.NewClientWithRequester(fake)
			got, err := client.CheckStatus(context.Background(), "octo", "hello", "ci", "main")

			if tt.wantKind != nil {
				if !aserr.IsCheckKind(err, *tt.wantKind) {
					t.Fatalf("expected %v check error, got %v", *tt.wantKind, err)
				}

				var ce *aserr.CheckError
				if errors.As(err, &ce) && (ce.Owner != "octo" || ce.Branch != "main") {
					t.Errorf("check error missing target: %+v", ce)
				}

				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != tt.want {
				t.Errorf("CheckStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_CheckStatus_DefaultBranch(t *testing.T) {
	fake := newFakeRequester()
	fake.add("repos/octo/hello", `{"full_name":"octo/hello","default_branch":"main"}`, nil)
	fake.add(runsPath, runsJSON(t, github.WorkflowRun{ID: 1, Status: github.StatusCompleted, Conclusion: github.ConclusionSuccess}), nil)

	client := github.NewClientWithRequester(fake)

	for range 2 {
		got, err := client.CheckStatus(context.Background(), "octo", "hello", "ci", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got != github.RunSucceeded {
			t.Errorf("CheckStatus() = %v, want succeeded", got)
		}
	}

	repoLookups := 0

	for _, r := range fake.requested {
		if r == "GET repos/octo/hello" {
			repoLookups++
		}
	}

	if repoLookups != 1 {
		t.Errorf("expected default branch to be cached, looked up %d times", repoLookups)
	}
}

func TestClient_CheckStatus_Cancelled(t *testing.T) {
	fake := newFakeRequester()
	client := github.NewClientWithRequester(fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.CheckStatus(ctx, "octo", "hello", "ci", "main")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		conclusion string
		want       github.RunStatus
	}{
		{"success", github.StatusCompleted, github.ConclusionSuccess, github.RunSucceeded},
		{"skipped", github.StatusCompleted, github.ConclusionSkipped, github.RunSucceeded},
		{"failure", github.StatusCompleted, github.ConclusionFailure, github.RunFailed},
		{"timed out", github.StatusCompleted, github.ConclusionTimedOut, github.RunFailed},
		{"cancelled", github.StatusCompleted, github.ConclusionCancelled, github.RunUnknown},
		{"in progress", github.StatusInProgress, "", github.RunUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := &github.WorkflowRun{Status: tt.status, Conclusion: tt.conclusion}
			if got := github.StatusOf(run); got != tt.want {
				t.Errorf("StatusOf() = %v, want %v", got, tt.want)
			}
		})
	}

	if github.StatusOf(nil) != github.RunUnknown {
		t.Error("expected nil run to be unknown")
	}
}

func kind(k aserr.CheckErrorKind) *aserr.CheckErrorKind {
	return &k
}
