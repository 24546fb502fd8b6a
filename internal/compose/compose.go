// Package compose renders a GitHub Actions workflow definition for a repo.
package compose

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	aserr "github.com/kyleking/gh-actionstatus/internal/errors"
	"github.com/kyleking/gh-actionstatus/internal/repo"
)

// Platform selects a runner image.
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformMacOS   Platform = "macos"
	PlatformWindows Platform = "windows"
)

// Toolchain selects the setup, build and test steps.
type Toolchain string

const (
	ToolchainGo      Toolchain = "go"
	ToolchainSwift   Toolchain = "swift"
	ToolchainGeneric Toolchain = "generic"
)

// Options controls what the generated workflow contains.
type Options struct {
	Platforms []Platform
	Toolchain Toolchain
	Build     bool
	Test      bool
}

// DefaultOptions builds and tests with Go on Linux.
func DefaultOptions() Options {
	return Options{
		Platforms: []Platform{PlatformLinux},
		Toolchain: ToolchainGo,
		Build:     true,
		Test:      true,
	}
}

var platforms = map[Platform]struct {
	title  string
	runner string
}{
	PlatformLinux:   {"Linux", "ubuntu-latest"},
	PlatformMacOS:   {"macOS", "macos-latest"},
	PlatformWindows: {"Windows", "windows-latest"},
}

type step struct {
	Name string
	Uses string
	With [][2]string
	Run  string
}

type toolchain struct {
	setup []step
	build string
	test  string
}

var toolchains = map[Toolchain]toolchain{
	ToolchainGo: {
		setup: []step{{Name: "Set up Go", Uses: "actions/setup-go@v5", With: [][2]string{{"go-version", "stable"}}}},
		build: "go build ./...",
		test:  "go test ./...",
	},
	ToolchainSwift: {
		setup: []step{{Name: "Set up Swift", Uses: "swift-actions/setup-swift@v2"}},
		build: "swift build",
		test:  "swift test",
	},
	ToolchainGeneric: {
		build: "make",
		test:  "make test",
	},
}

type job struct {
	ID     string
	Title  string
	Runner string
	Steps  []step
}

type document struct {
	Name     string
	Repo     string
	Branches []string
	Jobs     []job
}

var workflowTemplate = template.Must(template.New("workflow").Funcs(template.FuncMap{
	"quote": strconv.Quote,
}).Parse(`name: {{ quote .Name }}
run-name: {{ quote .Repo }}

on:
{{- if .Branches }}
  push:
    branches:
{{- range .Branches }}
      - {{ quote . }}
{{- end }}
  pull_request:
    branches:
{{- range .Branches }}
      - {{ quote . }}
{{- end }}
{{- else }}
  push:
  pull_request:
{{- end }}
  workflow_dispatch:

jobs:
{{- range .Jobs }}
  {{ .ID }}:
    name: {{ quote .Title }}
    runs-on: {{ .Runner }}
    steps:
{{- range .Steps }}
      - name: {{ quote .Name }}
{{- if .Uses }}
        uses: {{ .Uses }}
{{- end }}
{{- if .With }}
        with:
{{- range .With }}
          {{ index . 0 }}: {{ quote (index . 1) }}
{{- end }}
{{- end }}
{{- if .Run }}
        run: {{ quote .Run }}
{{- end }}
{{- end }}
{{- end }}
`))

// Compose renders the workflow for r. The output depends only on its inputs.
func Compose(r repo.Repo, opts Options) (string, error) {
	r = r.Normalized()

	for _, b := range r.Branches {
		if err := ValidateBranch(b); err != nil {
			return "", err
		}
	}

	tc, ok := toolchains[opts.Toolchain]
	if opts.Toolchain == "" {
		tc, ok = toolchains[ToolchainGo], true
	}

	if !ok {
		return "", fmt.Errorf("unknown toolchain %q", opts.Toolchain)
	}

	selected := opts.Platforms
	if len(selected) == 0 {
		selected = []Platform{PlatformLinux}
	}

	doc := document{
		Name:     r.Workflow,
		Repo:     r.StatusKey(),
		Branches: r.Branches,
	}

	if doc.Name == "" {
		doc.Name = repo.PlaceholderWorkflow
	}

	seen := make(map[Platform]bool, len(selected))

	for _, p := range selected {
		info, ok := platforms[p]
		if !ok {
			return "", fmt.Errorf("unknown platform %q", p)
		}

		if seen[p] {
			continue
		}

		seen[p] = true

		steps := []step{{Name: "Checkout", Uses: "actions/checkout@v4"}}
		steps = append(steps, tc.setup...)

		if opts.Build {
			steps = append(steps, step{Name: "Build", Run: tc.build})
		}

		if opts.Test {
			steps = append(steps, step{Name: "Test", Run: tc.test})
		}

		doc.Jobs = append(doc.Jobs, job{
			ID:     string(p),
			Title:  info.title,
			Runner: info.runner,
			Steps:  steps,
		})
	}

	var sb strings.Builder
	if err := workflowTemplate.Execute(&sb, doc); err != nil {
		return "", fmt.Errorf("failed to render workflow: %w", err)
	}

	return sb.String(), nil
}

// ValidateBranch rejects names that are not valid git branch names or that
// cannot be matched literally by a workflow branch filter.
func ValidateBranch(branch string) error {
	invalid := func(reason string) error {
		return &aserr.InvalidBranchError{Branch: branch, Reason: reason}
	}

	switch {
	case branch == "":
		return invalid("empty")
	case strings.HasPrefix(branch, "-"):
		return invalid("starts with '-'")
	case strings.HasPrefix(branch, "/") || strings.HasSuffix(branch, "/"):
		return invalid("starts or ends with '/'")
	case strings.HasSuffix(branch, ".") || strings.HasSuffix(branch, ".lock"):
		return invalid("ends with '.' or '.lock'")
	case strings.Contains(branch, ".."):
		return invalid("contains '..'")
	case strings.Contains(branch, "//"):
		return invalid("contains '//'")
	case strings.Contains(branch, "@{"):
		return invalid("contains '@{'")
	}

	for _, r := range branch {
		if unicode.IsSpace(r) {
			return invalid("contains whitespace")
		}

		if unicode.IsControl(r) {
			return invalid("contains a control character")
		}

		if strings.ContainsRune(`~^:\?*[!`, r) {
			return invalid(fmt.Sprintf("contains %q", r))
		}
	}

	return nil
}

// ParsePlatforms converts names such as "linux,macos" into platforms.
func ParsePlatforms(names []string) ([]Platform, error) {
	var result []Platform

	for _, n := range names {
		p := Platform(strings.ToLower(strings.TrimSpace(n)))
		if p == "" {
			continue
		}

		if _, ok := platforms[p]; !ok {
			return nil, fmt.Errorf("unknown platform %q", n)
		}

		result = append(result, p)
	}

	return result, nil
}

// ParseToolchain converts a toolchain name, defaulting to Go.
func ParseToolchain(name string) (Toolchain, error) {
	tc := Toolchain(strings.ToLower(strings.TrimSpace(name)))
	if tc == "" {
		return ToolchainGo, nil
	}

	if _, ok := toolchains[tc]; !ok {
		return "", fmt.Errorf("unknown toolchain %q", name)
	}

	return tc, nil
}
