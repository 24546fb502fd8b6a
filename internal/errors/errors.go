// Package errors defines the error types surfaced by the monitoring engine.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is matched by NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

// NotFoundError reports repo ids or indexes that do not exist in the collection.
type NotFoundError struct {
	IDs     []string
	Indexes []int
}

func (e *NotFoundError) Error() string {
	var parts []string
	if len(e.IDs) > 0 {
		parts = append(parts, "ids "+strings.Join(e.IDs, ", "))
	}

	if len(e.Indexes) > 0 {
		parts = append(parts, fmt.Sprintf("indexes %v", e.Indexes))
	}

	return fmt.Sprintf("repo not found: %s", strings.Join(parts, "; "))
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// CheckErrorKind classifies a failed status check.
type CheckErrorKind int

const (
	CheckNetwork CheckErrorKind = iota
	CheckAuthorization
	CheckNotFound
	CheckRateLimited
	CheckMalformedResponse
)

func (k CheckErrorKind) String() string {
	switch k {
	case CheckNetwork:
		return "network"
	case CheckAuthorization:
		return "authorization"
	case CheckNotFound:
		return "not found"
	case CheckRateLimited:
		return "rate limited"
	case CheckMalformedResponse:
		return "malformed response"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// CheckError is returned by a status client when the remote check itself failed.
// It says nothing about the monitored build.
type CheckError struct {
	Kind     CheckErrorKind
	Owner    string
	Name     string
	Workflow string
	Branch   string
	Err      error
}

func (e *CheckError) Error() string {
	target := e.Owner + "/" + e.Name
	if e.Workflow != "" {
		target += "/" + e.Workflow
	}

	if e.Branch != "" {
		target += "@" + e.Branch
	}

	if e.Err == nil {
		return fmt.Sprintf("status check %s: %s", target, e.Kind)
	}

	return fmt.Sprintf("status check %s: %s: %v", target, e.Kind, e.Err)
}

func (e *CheckError) Unwrap() error {
	return e.Err
}

// IsCheckKind reports whether err wraps a CheckError of the given kind.
func IsCheckKind(err error, kind CheckErrorKind) bool {
	var ce *CheckError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}

	return false
}

// PersistenceError reports a failed save or load of the repo collection.
type PersistenceError struct {
	Op   string // "load" or "save"
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// RefreshError ties a surfaced check failure to the repo it happened on.
type RefreshError struct {
	RepoID string
	Key    string // owner/name
	Err    error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refresh %s (%s): %v", e.Key, e.RepoID, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// InvalidBranchError is returned by the composer for branch names that cannot be
// emitted into a workflow trigger list.
type InvalidBranchError struct {
	Branch string
	Reason string
}

func (e *InvalidBranchError) Error() string {
	return fmt.Sprintf("invalid branch %q: %s", e.Branch, e.Reason)
}
