package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/cli/go-gh/v2/pkg/repository"
	"github.com/google/uuid"
	"github.com/kyleking/gh-actionstatus/internal/compose"
	aserr "github.com/kyleking/gh-actionstatus/internal/errors"
	"github.com/kyleking/gh-actionstatus/internal/localrepo"
	"github.com/kyleking/gh-actionstatus/internal/model"
	"github.com/kyleking/gh-actionstatus/internal/repo"
	"github.com/spf13/cobra"
)

type repoJSON struct {
	ID       string   `json:"id"`
	Owner    string   `json:"owner"`
	Name     string   `json:"name"`
	Workflow string   `json:"workflow"`
	Branches []string `json:"branches"`
	State    string   `json:"state"`
}

func newListCmd(e *env) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List monitored repos",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := e.openModel(false)
			if err != nil {
				return err
			}

			return printRepos(cmd.OutOrStdout(), m, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}

func printRepos(out io.Writer, m *model.Model, asJSON bool) error {
	items := m.Items()

	if asJSON {
		views := make([]repoJSON, len(items))
		for i, r := range items {
			branches := r.Branches
			if branches == nil {
				branches = []string{}
			}

			views[i] = repoJSON{
				ID:       r.ID.String(),
				Owner:    r.Owner,
				Name:     r.Name,
				Workflow: r.Workflow,
				Branches: branches,
				State:    r.State.String(),
			}
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		return enc.Encode(views)
	}

	if len(items) == 0 {
		fmt.Fprintln(out, "No repos monitored. Add one with 'actionstatus add owner/name'.")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "REPO", "WORKFLOW", "BRANCHES", "STATE", "ID")

	for i, r := range items {
		branches := repo.FormatBranches(r.Branches)
		if branches == "" {
			branches = "(default)"
		}

		t.Row(strconv.Itoa(i), r.StatusKey(), r.Workflow, branches, r.State.String(), r.ID.String()[:8])
	}

	fmt.Fprintln(out, t.String())
	fmt.Fprintln(out, m.Summary())

	return nil
}

type repoFlags struct {
	name     string
	owner    string
	workflow string
	branches string
}

func (f *repoFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.workflow, "workflow", "", "workflow file base name (e.g. ci)")
	fl.StringVarP(&f.branches, "branches", "b", "", "comma-separated branches (empty for the default branch)")
}

// apply copies the flags the user set onto r.
func (f *repoFlags) apply(cmd *cobra.Command, r repo.Repo) (repo.Repo, error) {
	fl := cmd.Flags()

	if fl.Changed("name") {
		r.Name = f.name
	}

	if fl.Changed("owner") {
		r.Owner = f.owner
	}

	if fl.Changed("workflow") {
		r.Workflow = f.workflow
	}

	if fl.Changed("branches") {
		r.Branches = repo.ParseBranches(f.branches)
	}

	for _, b := range r.Branches {
		if err := compose.ValidateBranch(b); err != nil {
			return r, err
		}
	}

	return r, nil
}

func newAddCmd(e *env) *cobra.Command {
	var flags repoFlags

	cmd := &cobra.Command{
		Use:   "add [owner/name]",
		Short: "Start monitoring a repo",
		Long: "Add a repo by owner/name (or URL). Without an argument the repository of the\n" +
			"current directory is used, as gh would resolve it.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := repo.New()

			if len(args) == 0 {
				current, err := localrepo.Current()
				if err != nil {
					return err
				}

				target.Owner, target.Name = current.Owner, current.Name
			} else {
				parsed, err := repository.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid repository %q: %w", args[0], err)
				}

				target.Owner, target.Name = parsed.Owner, parsed.Name
			}

			target, err := flags.apply(cmd, target)
			if err != nil {
				return err
			}

			m, err := e.openModel(false)
			if err != nil {
				return err
			}

			r, err := m.AddRepo()
			if err != nil {
				return err
			}

			target.ID = r.ID
			if err := m.Update(target); err != nil {
				return err
			}

			added, _ := m.Repo(r.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", added.WorkflowKey(), added.ID)

			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

func newEditCmd(e *env) *cobra.Command {
	var flags repoFlags

	cmd := &cobra.Command{
		Use:   "edit <repo>",
		Short: "Change a monitored repo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := e.openModel(false)
			if err != nil {
				return err
			}

			r, err := resolveOne(m, args[0])
			if err != nil {
				return err
			}

			if r, err = flags.apply(cmd, r); err != nil {
				return err
			}

			if err := m.Update(r); err != nil {
				return err
			}

			updated, _ := m.Repo(r.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", updated.WorkflowKey())

			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&flags.name, "name", "", "repository name")
	cmd.Flags().StringVar(&flags.owner, "owner", "", "repository owner")

	return cmd
}

func newRemoveCmd(e *env) *cobra.Command {
	var indexes []int

	cmd := &cobra.Command{
		Use:     "remove [repo...]",
		Aliases: []string{"rm"},
		Short:   "Stop monitoring repos",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(indexes) == 0 {
				return fmt.Errorf("specify repos or --index")
			}

			m, err := e.openModel(false)
			if err != nil {
				return err
			}

			before := m.Len()

			if len(indexes) > 0 {
				if err := m.RemoveAt(indexes...); err != nil {
					return err
				}
			}

			if len(args) > 0 {
				ids := make([]uuid.UUID, 0, len(args))

				for _, query := range args {
					r, err := resolveOne(m, query)
					if err != nil {
						return err
					}

					ids = append(ids, r.ID)
				}

				if err := m.Remove(ids...); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d repo(s). %s\n", before-m.Len(), m.Summary())

			return nil
		},
	}

	cmd.Flags().IntSliceVar(&indexes, "index", nil, "remove by list position (see 'list')")

	return cmd
}

func newImportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "import [folder...]",
		Short: "Add repos from local git checkouts",
		Long: "Each folder's origin remote gives owner and name; the workflow most likely\n" +
			"to run tests is picked from .github/workflows, along with its push branches.\n" +
			"Defaults to the current directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}

			m, err := e.openModel(false)
			if err != nil {
				return err
			}

			result, err := m.AddFromFolders(cmd.Context(), args)

			out := cmd.OutOrStdout()
			for _, r := range result.Added {
				branches := repo.FormatBranches(r.Branches)
				if branches == "" {
					branches = "default branch"
				}

				fmt.Fprintf(out, "Added %s (%s)\n", r.WorkflowKey(), branches)
			}

			for _, s := range result.Skipped {
				fmt.Fprintf(out, "Skipped %s: %v\n", s.Path, s.Err)
			}

			if err != nil {
				return err
			}

			if len(result.Added) == 0 {
				return fmt.Errorf("nothing imported")
			}

			return nil
		},
	}
}

// resolveOne maps a user query to exactly one repo.
func resolveOne(m *model.Model, query string) (repo.Repo, error) {
	matches := m.Find(query)

	switch len(matches) {
	case 0:
		return repo.Repo{}, &aserr.NotFoundError{IDs: []string{query}}
	case 1:
		return matches[0], nil
	}

	keys := make([]string, len(matches))
	for i, r := range matches {
		keys[i] = r.WorkflowKey()
	}

	return repo.Repo{}, fmt.Errorf("%q matches %d repos: %s", query, len(matches), strings.Join(keys, ", "))
}
