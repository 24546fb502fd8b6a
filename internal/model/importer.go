package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kyleking/gh-actionstatus/internal/repo"
)

// ErrNoResolver is returned for every folder when no FolderResolver is configured.
var ErrNoResolver = errors.New("no folder resolver configured")

// SkippedFolder records why a folder was not imported.
type SkippedFolder struct {
	Path string
	Err  error
}

// ImportResult lists what AddFromFolders did.
type ImportResult struct {
	Added   []repo.Repo
	Skipped []SkippedFolder
}

// Err joins the reasons for skipped folders.
func (r ImportResult) Err() error {
	errs := make([]error, 0, len(r.Skipped))
	for _, s := range r.Skipped {
		errs = append(errs, fmt.Errorf("%s: %w", s.Path, s.Err))
	}

	return errors.Join(errs...)
}

// AddFromFolders adds one repo per folder that resolves to a usable repository.
// Folders that fail to resolve, or that duplicate an already monitored
// workflow, are skipped without aborting the batch. The collection is saved
// once at the end; a save failure is returned alongside the result.
func (m *Model) AddFromFolders(ctx context.Context, paths []string) (ImportResult, error) {
	var result ImportResult

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			result.Skipped = append(result.Skipped, SkippedFolder{Path: path, Err: err})
			continue
		}

		if m.opts.Resolver == nil {
			result.Skipped = append(result.Skipped, SkippedFolder{Path: path, Err: ErrNoResolver})
			continue
		}

		resolved, err := m.opts.Resolver.Resolve(ctx, path)
		if err != nil {
			m.logger.Debug("skipped folder", "path", path, "error", err)
			result.Skipped = append(result.Skipped, SkippedFolder{Path: path, Err: err})

			continue
		}

		resolved = resolved.Normalized()
		if !resolved.Checkable() {
			result.Skipped = append(result.Skipped, SkippedFolder{Path: path, Err: fmt.Errorf("could not determine owner, name and workflow")})
			continue
		}

		added, ok := m.addResolved(resolved)
		if !ok {
			result.Skipped = append(result.Skipped, SkippedFolder{Path: path, Err: fmt.Errorf("%s is already monitored", resolved.WorkflowKey())})
			continue
		}

		result.Added = append(result.Added, added)
	}

	if len(result.Added) == 0 {
		return result, nil
	}

	m.logger.Info("imported folders", "added", len(result.Added), "skipped", len(result.Skipped))
	m.notify()

	return result, m.save()
}

// addResolved appends r under a fresh id unless its workflow is already monitored.
func (m *Model) addResolved(r repo.Repo) (repo.Repo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.items {
		if existing.WorkflowKey() == r.WorkflowKey() {
			return repo.Repo{}, false
		}
	}

	r.ID = uuid.New()
	for m.indexLocked(r.ID) >= 0 {
		r.ID = uuid.New()
	}

	r.State = repo.StateUnknown
	m.items = append(m.items, r.Clone())

	return r.Clone(), true
}
