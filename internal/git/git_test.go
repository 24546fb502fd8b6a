package git

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeRunner struct {
	outputs map[string]string
	calls   []string
}

func (f *fakeRunner) RunCommand(ctx context.Context, args ...string) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("expected a timeout on git commands")
	}

	key := strings.Join(args, " ")
	f.calls = append(f.calls, key)

	out, ok := f.outputs[key]
	if !ok {
		return nil, errors.New("exit status 128")
	}

	return []byte(out), nil
}

func TestClient_RemoteURL(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"-C /src/hello remote get-url origin": "git@github.com:octo/hello.git\n",
		"-C /src/blank remote get-url origin": "\n",
	}}
	client := NewClientWithRunner(runner)

	url, err := client.RemoteURL(context.Background(), "/src/hello", "origin")
	if err != nil {
		t.Fatalf("RemoteURL() error = %v", err)
	}

	if url != "git@github.com:octo/hello.git" {
		t.Errorf("RemoteURL() = %q", url)
	}

	if _, err := client.RemoteURL(context.Background(), "/src/blank", "origin"); err == nil {
		t.Error("expected error for empty remote url")
	}

	if _, err := client.RemoteURL(context.Background(), "/src/none", "origin"); err == nil {
		t.Error("expected error when remote is missing")
	}
}

func TestClient_Branches(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"-C /src symbolic-ref refs/remotes/origin/HEAD": "refs/remotes/origin/trunk\n",
		"-C /src rev-parse --abbrev-ref HEAD":           "feature/x\n",
		"-C /detached rev-parse --abbrev-ref HEAD":      "HEAD\n",
	}}
	client := NewClientWithRunner(runner)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"default branch", client.DefaultBranch(context.Background(), "/src"), "trunk"},
		{"default branch unknown", client.DefaultBranch(context.Background(), "/other"), ""},
		{"current branch", client.CurrentBranch(context.Background(), "/src"), "feature/x"},
		{"detached head", client.CurrentBranch(context.Background(), "/detached"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestClient_TopLevel(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"-C /src/hello/sub rev-parse --show-toplevel": "/src/hello\n",
	}}
	client := NewClientWithRunner(runner)

	root, err := client.TopLevel(context.Background(), "/src/hello/sub")
	if err != nil {
		t.Fatalf("TopLevel() error = %v", err)
	}

	if root != "/src/hello" {
		t.Errorf("TopLevel() = %q", root)
	}

	if _, err := client.TopLevel(context.Background(), "/tmp"); err == nil {
		t.Error("expected error outside a work tree")
	}
}
