package workflow

import (
	"os"
	"path/filepath"
	"testing"
)

func writeWorkflow(t *testing.T, root, name, content string) {
	t.Helper()

	dir := Dir(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeWorkflow(t, root, "tests.yml", "name: Tests\non: push\n")
	writeWorkflow(t, root, "deploy.yaml", "name: Deploy\non: workflow_dispatch\n")
	writeWorkflow(t, root, "broken.yml", "on: [push\n")
	writeWorkflow(t, root, "README.md", "not a workflow")

	workflows, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if len(workflows) != 2 {
		t.Fatalf("expected 2 workflows, got %d", len(workflows))
	}

	if workflows[0].Filename != "deploy.yaml" || workflows[1].Filename != "tests.yml" {
		t.Errorf("unexpected order: %s, %s", workflows[0].Filename, workflows[1].Filename)
	}

	if workflows[1].BaseName() != "tests" {
		t.Errorf("expected base name 'tests', got %q", workflows[1].BaseName())
	}
}

func TestDiscover_NonExistentDir(t *testing.T) {
	workflows, err := Discover("/nonexistent/path")
	if err != nil {
		t.Fatalf("Discover should not error on missing dir: %v", err)
	}

	if len(workflows) != 0 {
		t.Errorf("expected 0 workflows for missing dir, got %d", len(workflows))
	}
}

func TestDiscover_EmptyDir(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(Dir(root), 0755); err != nil {
		t.Fatal(err)
	}

	workflows, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if len(workflows) != 0 {
		t.Errorf("expected 0 workflows for empty dir, got %d", len(workflows))
	}
}
