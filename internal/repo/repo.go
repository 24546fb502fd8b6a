// Package repo defines the monitored repository entity and its derived helpers.
package repo

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// State is the last known CI verdict for a repo.
type State int

const (
	StateUnknown State = iota
	StatePassing
	StateFailing
)

func (s State) String() string {
	switch s {
	case StatePassing:
		return "passing"
	case StateFailing:
		return "failing"
	default:
		return "unknown"
	}
}

// Placeholder values for a freshly added repo.
const (
	PlaceholderName     = "Untitled"
	PlaceholderOwner    = "Untitled"
	PlaceholderWorkflow = "Tests"
)

// Repo is one monitored repository. ID never changes once assigned.
type Repo struct {
	ID       uuid.UUID
	Name     string
	Owner    string
	Workflow string
	Branches []string
	State    State
}

// New returns a repo with a fresh id and placeholder fields.
func New() Repo {
	return Repo{
		ID:       uuid.New(),
		Name:     PlaceholderName,
		Owner:    PlaceholderOwner,
		Workflow: PlaceholderWorkflow,
		State:    StateUnknown,
	}
}

// Equal compares by identity only.
func (r Repo) Equal(other Repo) bool {
	return r.ID == other.ID
}

// Clone returns a copy that shares no slices with r.
func (r Repo) Clone() Repo {
	if r.Branches != nil {
		r.Branches = append([]string(nil), r.Branches...)
	}

	return r
}

// BadgeName returns the status badge identifier for the current state.
func (r Repo) BadgeName() string {
	return "status-" + r.State.String()
}

// StatusKey identifies the repo for status lookups: owner/name.
func (r Repo) StatusKey() string {
	return r.Owner + "/" + r.Name
}

// WorkflowKey identifies the monitored workflow: owner/name/workflow.
func (r Repo) WorkflowKey() string {
	return r.Owner + "/" + r.Name + "/" + r.Workflow
}

// WorkflowFile is the workflow definition filename under .github/workflows.
func (r Repo) WorkflowFile() string {
	return r.Workflow + ".yml"
}

// RepoURL is the repository's web page.
func (r Repo) RepoURL() string {
	return "https://github.com/" + r.Owner + "/" + r.Name
}

// WorkflowURL is the web page listing runs of the monitored workflow.
func (r Repo) WorkflowURL() string {
	return r.RepoURL() + "/actions?query=" + url.QueryEscape("workflow:"+r.Workflow)
}

// Checkable reports whether enough is configured to query the remote status.
// A repo still carrying the placeholder owner and name is not checkable.
func (r Repo) Checkable() bool {
	if r.Placeholder() {
		return false
	}

	return strings.TrimSpace(r.Owner) != "" &&
		strings.TrimSpace(r.Name) != "" &&
		strings.TrimSpace(r.Workflow) != ""
}

// Placeholder reports whether owner and name were never edited after New.
func (r Repo) Placeholder() bool {
	return r.Owner == PlaceholderOwner && r.Name == PlaceholderName
}

// SameTarget reports whether both repos query the same remote workflow and branches.
func (r Repo) SameTarget(other Repo) bool {
	if r.Owner != other.Owner || r.Name != other.Name || r.Workflow != other.Workflow {
		return false
	}

	if len(r.Branches) != len(other.Branches) {
		return false
	}

	for i := range r.Branches {
		if r.Branches[i] != other.Branches[i] {
			return false
		}
	}

	return true
}

// Normalized trims user-entered fields the way the edit form stores them.
func (r Repo) Normalized() Repo {
	r.Name = strings.TrimSpace(r.Name)
	r.Owner = strings.TrimSpace(r.Owner)
	r.Workflow = TrimWorkflow(r.Workflow)
	r.Branches = normalizeBranches(r.Branches)

	return r
}

// TrimWorkflow strips whitespace and a .yml/.yaml extension.
func TrimWorkflow(workflow string) string {
	workflow = strings.TrimSpace(workflow)
	for _, ext := range []string{".yml", ".yaml"} {
		if strings.HasSuffix(workflow, ext) {
			return strings.TrimSuffix(workflow, ext)
		}
	}

	return workflow
}

// ParseBranches splits a comma-separated branch list.
func ParseBranches(list string) []string {
	return normalizeBranches(strings.Split(list, ","))
}

// FormatBranches joins branches for display in an edit field.
func FormatBranches(branches []string) string {
	return strings.Join(branches, ", ")
}

func normalizeBranches(branches []string) []string {
	if len(branches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(branches))
	result := make([]string, 0, len(branches))

	for _, b := range branches {
		b = strings.TrimSpace(b)
		if b == "" || seen[b] {
			continue
		}

		seen[b] = true

		result = append(result, b)
	}

	if len(result) == 0 {
		return nil
	}

	return result
}
