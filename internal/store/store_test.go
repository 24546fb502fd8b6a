package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	aserr "github.com/kyleking/gh-actionstatus/internal/errors"
	"github.com/kyleking/gh-actionstatus/internal/repo"
	"github.com/kyleking/gh-actionstatus/internal/store"
)

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "repos.json")
	s := store.New(path)

	original := []repo.Repo{
		{ID: uuid.New(), Name: "hello-world", Owner: "octo", Workflow: "ci", Branches: []string{"main", "dev"}, State: repo.StatePassing},
		{ID: uuid.New(), Name: "widgets", Owner: "acme", Workflow: "tests", State: repo.StateFailing},
		{ID: uuid.New(), Name: "", Owner: "", Workflow: "", State: repo.StateUnknown},
	}

	if err := s.Save(original); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := make([]repo.Repo, len(original))
	for i, r := range original {
		want[i] = r.Clone()
		want[i].State = repo.StateUnknown
	}

	if diff := cmp.Diff(want, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	s := store.New(filepath.Join(t.TempDir(), "missing.json"))

	repos, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(repos) != 0 {
		t.Errorf("expected empty collection, got %d", len(repos))
	}
}

func TestStore_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repos.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := store.New(path).Load()

	var pe *aserr.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}

	if pe.Op != "load" || pe.Path != path {
		t.Errorf("unexpected error fields: %+v", pe)
	}
}

func TestStore_SaveFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")

	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}

	err := store.New(filepath.Join(blocker, "repos.json")).Save(nil)

	var pe *aserr.PersistenceError
	if !errors.As(err, &pe) || pe.Op != "save" {
		t.Fatalf("expected save PersistenceError, got %v", err)
	}
}

func TestDecode(t *testing.T) {
	dup := uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2")

	tests := []struct {
		name    string
		data    string
		wantLen int
		wantErr bool
	}{
		{
			name:    "empty document",
			data:    `{"version":1,"repos":[]}`,
			wantLen: 0,
		},
		{
			name:    "unversioned document",
			data:    `{"repos":[{"id":"` + dup.String() + `","name":"a"}]}`,
			wantLen: 1,
		},
		{
			name:    "future version",
			data:    `{"version":2,"repos":[]}`,
			wantErr: true,
		},
		{
			name:    "wrong shape",
			data:    `{"repos":{"id":1}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repos, err := store.Decode([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}

			if !tt.wantErr && len(repos) != tt.wantLen {
				t.Errorf("Decode() returned %d repos, want %d", len(repos), tt.wantLen)
			}
		})
	}
}

func TestDecode_RepairsIDs(t *testing.T) {
	dup := uuid.New().String()
	data := `{"version":1,"repos":[
		{"id":"` + dup + `","name":"first"},
		{"id":"` + dup + `","name":"second"},
		{"name":"third"}
	]}`

	repos, err := store.Decode([]byte(data))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if len(repos) != 3 {
		t.Fatalf("expected 3 repos, got %d", len(repos))
	}

	if repos[0].ID.String() != dup {
		t.Errorf("first occurrence should keep its id, got %s", repos[0].ID)
	}

	seen := map[uuid.UUID]bool{}

	for _, r := range repos {
		if r.ID == uuid.Nil {
			t.Errorf("repo %q has nil id", r.Name)
		}

		if seen[r.ID] {
			t.Errorf("duplicate id %s", r.ID)
		}

		seen[r.ID] = true
	}

	names := []string{repos[0].Name, repos[1].Name, repos[2].Name}
	if diff := cmp.Diff([]string{"first", "second", "third"}, names); diff != "" {
		t.Errorf("order changed (-want +got):\n%s", diff)
	}
}

func TestEncode_EmptyBranches(t *testing.T) {
	data, err := store.Encode([]repo.Repo{{ID: uuid.New(), Name: "a"}})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	if !strings.Contains(string(data), `"branches": []`) {
		t.Errorf("expected empty branch list to be written, got %s", data)
	}

	if strings.Contains(string(data), "state") {
		t.Errorf("state must not be persisted, got %s", data)
	}
}

func TestStore_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repos.json")
	s := store.New(path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 8)
	done := make(chan error, 1)

	go func() {
		done <- s.Watch(ctx, func() { changed <- struct{}{} })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	if err := s.Save([]repo.Repo{{ID: uuid.New(), Name: "own"}}); err != nil {
		t.Fatal(err)
	}

	other := store.New(path)
	if err := other.Save([]repo.Repo{{ID: uuid.New(), Name: "external"}}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected change notification for external write")
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")

	if got := store.DefaultPath(); got != "/tmp/xdg-data/actionstatus/repos.json" {
		t.Errorf("DefaultPath() = %q", got)
	}

	if got := store.New("").Path(); got != "/tmp/xdg-data/actionstatus/repos.json" {
		t.Errorf("New(\"\").Path() = %q", got)
	}
}
