// Package store persists the ordered repo collection as JSON.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	aserr "github.com/kyleking/gh-actionstatus/internal/errors"
	"github.com/kyleking/gh-actionstatus/internal/repo"
)

// Version is the document version written by Save.
const Version = 1

// Record is the persisted form of a repo. State is never stored.
type Record struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Owner    string    `json:"owner"`
	Workflow string    `json:"workflow"`
	Branches []string  `json:"branches"`
}

// Document is the on-disk layout.
type Document struct {
	Version int      `json:"version"`
	Repos   []Record `json:"repos"`
}

// DefaultPath returns the store location under the XDG data directory.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "actionstatus", "repos.json")
	}

	home, _ := os.UserHomeDir()

	return filepath.Join(home, ".local", "share", "actionstatus", "repos.json")
}

// Store reads and writes one collection file.
type Store struct {
	path string

	mu          sync.Mutex
	lastWritten []byte
}

// New creates a store for path. An empty path uses DefaultPath.
func New(path string) *Store {
	if path == "" {
		path = DefaultPath()
	}

	return &Store{path: path}
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Load reads the collection, returning an empty one if the file does not exist.
// Every loaded repo starts as unknown. Records with a missing or duplicate id
// are given a fresh one so ids stay unique.
func (s *Store) Load() ([]repo.Repo, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, &aserr.PersistenceError{Op: "load", Path: s.path, Err: err}
	}

	repos, err := Decode(data)
	if err != nil {
		return nil, &aserr.PersistenceError{Op: "load", Path: s.path, Err: err}
	}

	return repos, nil
}

// Save writes the collection, replacing the file atomically.
func (s *Store) Save(repos []repo.Repo) error {
	data, err := Encode(repos)
	if err != nil {
		return &aserr.PersistenceError{Op: "save", Path: s.path, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return &aserr.PersistenceError{Op: "save", Path: s.path, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".repos-*.json")
	if err != nil {
		return &aserr.PersistenceError{Op: "save", Path: s.path, Err: err}
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return &aserr.PersistenceError{Op: "save", Path: s.path, Err: err}
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return &aserr.PersistenceError{Op: "save", Path: s.path, Err: err}
	}

	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		_ = os.Remove(tmp.Name())
		return &aserr.PersistenceError{Op: "save", Path: s.path, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return &aserr.PersistenceError{Op: "save", Path: s.path, Err: err}
	}

	s.lastWritten = data

	return nil
}

// wroteLast reports whether data is what this store last saved.
func (s *Store) wroteLast(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastWritten != nil && bytes.Equal(s.lastWritten, data)
}

// Encode renders repos as a versioned document.
func Encode(repos []repo.Repo) ([]byte, error) {
	doc := Document{Version: Version, Repos: make([]Record, 0, len(repos))}

	for _, r := range repos {
		branches := r.Branches
		if branches == nil {
			branches = []string{}
		}

		doc.Repos = append(doc.Repos, Record{
			ID:       r.ID,
			Name:     r.Name,
			Owner:    r.Owner,
			Workflow: r.Workflow,
			Branches: branches,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode repos: %w", err)
	}

	return append(data, '\n'), nil
}

// Decode parses a document, resetting state and repairing ids.
func Decode(data []byte) ([]repo.Repo, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse repos: %w", err)
	}

	if doc.Version > Version {
		return nil, fmt.Errorf("unsupported store version %d (max %d)", doc.Version, Version)
	}

	seen := make(map[uuid.UUID]bool, len(doc.Repos))
	repos := make([]repo.Repo, 0, len(doc.Repos))

	for _, rec := range doc.Repos {
		id := rec.ID
		for id == uuid.Nil || seen[id] {
			id = uuid.New()
		}

		seen[id] = true

		var branches []string
		if len(rec.Branches) > 0 {
			branches = append([]string(nil), rec.Branches...)
		}

		repos = append(repos, repo.Repo{
			ID:       id,
			Name:     rec.Name,
			Owner:    rec.Owner,
			Workflow: rec.Workflow,
			Branches: branches,
			State:    repo.StateUnknown,
		})
	}

	return repos, nil
}
