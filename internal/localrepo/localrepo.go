// Package localrepo derives monitored repo settings from local checkouts.
package localrepo

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cli/go-gh/v2/pkg/repository"
	"github.com/kyleking/gh-actionstatus/internal/repo"
	"github.com/kyleking/gh-actionstatus/internal/workflow"
	"github.com/sahilm/fuzzy"
)

// DefaultHost is the only host accepted unless overridden.
const DefaultHost = "github.com"

// preferredWorkflows are matched in order against workflow base names.
var preferredWorkflows = []string{"tests", "test", "ci", "build"}

// Git is the subset of git operations the resolver needs.
type Git interface {
	TopLevel(ctx context.Context, dir string) (string, error)
	RemoteURL(ctx context.Context, dir, remote string) (string, error)
}

// Resolver turns a folder into a repo description.
type Resolver struct {
	git    Git
	host   string
	remote string
}

// NewResolver creates a resolver reading the origin remote through g.
func NewResolver(g Git) *Resolver {
	return &Resolver{git: g, host: DefaultHost, remote: "origin"}
}

// WithHost accepts remotes on host instead of github.com.
func (r *Resolver) WithHost(host string) *Resolver {
	if host != "" {
		r.host = host
	}

	return r
}

// Resolve reads owner and name from the remote URL, picks the workflow most
// likely to run tests and copies its literal push branches. The returned repo
// has no id.
func (r *Resolver) Resolve(ctx context.Context, dir string) (repo.Repo, error) {
	root, err := r.git.TopLevel(ctx, dir)
	if err != nil {
		return repo.Repo{}, err
	}

	url, err := r.git.RemoteURL(ctx, root, r.remote)
	if err != nil {
		return repo.Repo{}, err
	}

	parsed, err := repository.Parse(url)
	if err != nil {
		return repo.Repo{}, fmt.Errorf("failed to parse remote %q: %w", url, err)
	}

	if parsed.Host != r.host {
		return repo.Repo{}, fmt.Errorf("remote %q is not on %s", url, r.host)
	}

	result := repo.Repo{
		Owner:    parsed.Owner,
		Name:     parsed.Name,
		Workflow: repo.PlaceholderWorkflow,
		State:    repo.StateUnknown,
	}

	workflows, err := workflow.Discover(root)
	if err != nil {
		return repo.Repo{}, fmt.Errorf("failed to read workflows in %s: %w", filepath.Join(root, ".github", "workflows"), err)
	}

	if wf, ok := ChooseWorkflow(workflows); ok {
		result.Workflow = wf.BaseName()
		result.Branches = wf.PushBranches()
	}

	return result.Normalized(), nil
}

// ChooseWorkflow prefers push-triggered workflows whose names look like a
// test or CI pipeline, falling back to the first push-triggered one.
func ChooseWorkflow(workflows []workflow.WorkflowFile) (workflow.WorkflowFile, bool) {
	candidates := make([]workflow.WorkflowFile, 0, len(workflows))
	for _, wf := range workflows {
		if wf.RunsOnPush() {
			candidates = append(candidates, wf)
		}
	}

	if len(candidates) == 0 {
		candidates = workflows
	}

	if len(candidates) == 0 {
		return workflow.WorkflowFile{}, false
	}

	names := make([]string, len(candidates))
	for i, wf := range candidates {
		names[i] = wf.BaseName()
	}

	for _, pattern := range preferredWorkflows {
		if matches := fuzzy.Find(pattern, names); len(matches) > 0 {
			return candidates[matches[0].Index], true
		}
	}

	return candidates[0], true
}

// RepositoryDetector detects the repository of the current directory.
type RepositoryDetector interface {
	Current() (repository.Repository, error)
}

type defaultRepositoryDetector struct{}

func (defaultRepositoryDetector) Current() (repository.Repository, error) {
	return repository.Current()
}

// Current returns owner and name of the repository gh would operate on,
// honoring GH_REPO.
func Current() (repo.Repo, error) {
	return CurrentWithDetector(defaultRepositoryDetector{})
}

// CurrentWithDetector is Current with an injected detector.
func CurrentWithDetector(det RepositoryDetector) (repo.Repo, error) {
	current, err := det.Current()
	if err != nil {
		return repo.Repo{}, fmt.Errorf("failed to detect repository: %w", err)
	}

	return repo.Repo{Owner: current.Owner, Name: current.Name, Workflow: repo.PlaceholderWorkflow}, nil
}
