// Package workflow provides discovery and parsing of GitHub Actions workflow files.
package workflow

import (
	"os"
	"path/filepath"
	"sort"
)

// Dir returns the workflow directory of a repository checkout.
func Dir(repoRoot string) string {
	return filepath.Join(repoRoot, ".github", "workflows")
}

// Discover finds and parses all workflow files in the .github/workflows directory.
// Unparseable files are skipped. The result is sorted by filename.
func Discover(repoRoot string) ([]WorkflowFile, error) {
	workflowDir := Dir(repoRoot)

	patterns := []string{
		filepath.Join(workflowDir, "*.yml"),
		filepath.Join(workflowDir, "*.yaml"),
	}

	var files []string

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}

		files = append(files, matches...)
	}

	var workflows []WorkflowFile

	for _, file := range files {
		wf, err := ParseFile(file)
		if err != nil {
			continue
		}

		workflows = append(workflows, wf)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].Filename < workflows[j].Filename
	})

	return workflows, nil
}

// ParseFile reads and parses one workflow file.
func ParseFile(path string) (WorkflowFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WorkflowFile{}, err
	}

	wf, err := Parse(data)
	if err != nil {
		return WorkflowFile{}, err
	}

	wf.Filename = filepath.Base(path)

	return wf, nil
}
