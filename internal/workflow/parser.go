package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Parse parses workflow YAML content into a WorkflowFile struct.
func Parse(data []byte) (WorkflowFile, error) {
	var raw rawWorkflow
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return WorkflowFile{}, fmt.Errorf("failed to parse workflow: %w", err)
	}

	return WorkflowFile{
		Name: raw.Name,
		On:   raw.On.OnTrigger,
		Jobs: raw.Jobs,
	}, nil
}

// rawWorkflow handles the flexible "on" field parsing.
type rawWorkflow struct {
	Name string         `yaml:"name"`
	On   rawOnTrigger   `yaml:"on"`
	Jobs map[string]Job `yaml:"jobs"`
}

// rawOnTrigger handles "on" being either a string, list, or map.
type rawOnTrigger struct {
	OnTrigger
}

func (t *rawOnTrigger) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		t.enable(node.Value)
	case yaml.SequenceNode:
		var triggers []string
		if err := node.Decode(&triggers); err != nil {
			return err
		}

		for _, trigger := range triggers {
			t.enable(trigger)
		}
	case yaml.MappingNode:
		// A trigger key with no value (push:) decodes to nil, so walk the keys.
		for i := 0; i < len(node.Content)-1; i += 2 {
			key, value := node.Content[i], node.Content[i+1]

			switch key.Value {
			case "push":
				t.Push = &BranchFilter{}
				if err := decodeOptional(value, t.Push); err != nil {
					return err
				}
			case "pull_request":
				t.PullRequest = &BranchFilter{}
				if err := decodeOptional(value, t.PullRequest); err != nil {
					return err
				}
			case "workflow_dispatch":
				t.WorkflowDispatch = &WorkflowDispatch{}
				if err := decodeOptional(value, t.WorkflowDispatch); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func (t *rawOnTrigger) enable(trigger string) {
	switch trigger {
	case "push":
		t.Push = &BranchFilter{}
	case "pull_request":
		t.PullRequest = &BranchFilter{}
	case "workflow_dispatch":
		t.WorkflowDispatch = &WorkflowDispatch{}
	}
}

func decodeOptional(node *yaml.Node, out any) error {
	if node.Kind != yaml.MappingNode {
		return nil
	}

	return node.Decode(out)
}
