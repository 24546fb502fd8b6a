package workflow

import (
	"path/filepath"
	"strings"
)

// WorkflowFile represents a parsed GitHub Actions workflow file.
type WorkflowFile struct {
	Name     string         `yaml:"name"`
	Filename string         `yaml:"-"`
	On       OnTrigger      `yaml:"on"`
	Jobs     map[string]Job `yaml:"jobs"`
}

// OnTrigger holds the triggers the monitor cares about.
type OnTrigger struct {
	Push             *BranchFilter     `yaml:"push"`
	PullRequest      *BranchFilter     `yaml:"pull_request"`
	WorkflowDispatch *WorkflowDispatch `yaml:"workflow_dispatch"`
}

// BranchFilter is the branches section of a push or pull_request trigger.
type BranchFilter struct {
	Branches       []string `yaml:"branches"`
	BranchesIgnore []string `yaml:"branches-ignore"`
}

// WorkflowDispatch represents the workflow_dispatch trigger configuration.
type WorkflowDispatch struct {
	Inputs map[string]WorkflowInput `yaml:"inputs"`
}

// WorkflowInput represents a single input definition for workflow_dispatch.
type WorkflowInput struct {
	Description string   `yaml:"description"`
	Required    bool     `yaml:"required"`
	Default     string   `yaml:"default"`
	Type        string   `yaml:"type"`
	Options     []string `yaml:"options"`
}

// Job is the subset of a job definition used for display and verification.
type Job struct {
	Name   string `yaml:"name"`
	RunsOn any    `yaml:"runs-on"`
	Steps  []Step `yaml:"steps"`
}

// Step is one job step.
type Step struct {
	Name string            `yaml:"name"`
	Uses string            `yaml:"uses"`
	Run  string            `yaml:"run"`
	With map[string]string `yaml:"with"`
}

// BaseName is the filename without its .yml/.yaml extension, as used by the
// runs API and the repo's Workflow field.
func (w WorkflowFile) BaseName() string {
	return strings.TrimSuffix(w.Filename, filepath.Ext(w.Filename))
}

// IsDispatchable returns true if the workflow has workflow_dispatch trigger.
func (w WorkflowFile) IsDispatchable() bool {
	return w.On.WorkflowDispatch != nil
}

// RunsOnPush reports whether the workflow is triggered by pushes.
func (w WorkflowFile) RunsOnPush() bool {
	return w.On.Push != nil
}

// PushBranches returns the literal branch names of the push trigger.
// Glob patterns are dropped since they cannot be queried directly.
func (w WorkflowFile) PushBranches() []string {
	if w.On.Push == nil {
		return nil
	}

	var branches []string

	for _, b := range w.On.Push.Branches {
		if b == "" || strings.ContainsAny(b, "*?[]!+") {
			continue
		}

		branches = append(branches, b)
	}

	return branches
}
