package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/kyleking/gh-actionstatus/internal/compose"
	aserr "github.com/kyleking/gh-actionstatus/internal/errors"
)

// ComposeWorkflow renders the workflow definition for the repo with id.
func (m *Model) ComposeWorkflow(id uuid.UUID, opts compose.Options) (string, error) {
	r, ok := m.Repo(id)
	if !ok {
		return "", &aserr.NotFoundError{IDs: []string{id.String()}}
	}

	return compose.Compose(r, opts)
}

// ExportWorkflow writes the composed workflow to dir/<workflow>.yml and returns
// the path. The export stays active, reported by ExportState, until EndExport.
func (m *Model) ExportWorkflow(id uuid.UUID, dir string, opts compose.Options) (string, error) {
	r, ok := m.Repo(id)
	if !ok {
		return "", &aserr.NotFoundError{IDs: []string{id.String()}}
	}

	text, err := compose.Compose(r, opts)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, r.WorkflowFile())

	m.mu.Lock()
	m.isSaving = true
	m.exportURL = path
	m.mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		m.EndExport()
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		m.EndExport()
		return "", fmt.Errorf("failed to write workflow: %w", err)
	}

	m.logger.Info("exported workflow", "repo", r.StatusKey(), "path", path)

	return path, nil
}

// ExportState reports whether an export is active and where it was written.
func (m *Model) ExportState() (saving bool, url string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.isSaving, m.exportURL
}

// EndExport clears the export state.
func (m *Model) EndExport() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.isSaving = false
	m.exportURL = ""
}
