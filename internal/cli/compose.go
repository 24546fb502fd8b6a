package cli

import (
	"fmt"

	"github.com/kyleking/gh-actionstatus/internal/compose"
	"github.com/spf13/cobra"
)

func newComposeCmd(e *env) *cobra.Command {
	var (
		platforms []string
		toolchain string
		noBuild   bool
		noTest    bool
		copyOut   bool
		outDir    string
	)

	cmd := &cobra.Command{
		Use:   "compose <repo>",
		Short: "Generate a workflow file matching a monitored repo",
		Long: "Render a GitHub Actions workflow whose name, branches and dispatch trigger\n" +
			"match what actionstatus monitors. Prints it, copies it (--copy) or writes\n" +
			"<dir>/<workflow>.yml (--out).",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := e.cfg.ComposeOptions()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("platform") {
				if opts.Platforms, err = compose.ParsePlatforms(platforms); err != nil {
					return err
				}
			}

			if cmd.Flags().Changed("toolchain") {
				if opts.Toolchain, err = compose.ParseToolchain(toolchain); err != nil {
					return err
				}
			}

			opts.Build = opts.Build && !noBuild
			opts.Test = opts.Test && !noTest

			m, err := e.openModel(false)
			if err != nil {
				return err
			}

			found, err := resolveOne(m, args[0])
			if err != nil {
				return err
			}

			m.ShowComposeWindow(found)
			defer m.HideComposeWindow()

			target, ok := m.RepoToCompose()
			if !ok {
				return fmt.Errorf("%s was removed", found.StatusKey())
			}

			out := cmd.OutOrStdout()

			if outDir != "" {
				path, err := m.ExportWorkflow(target.ID, outDir, opts)
				if err != nil {
					return err
				}
				defer m.EndExport()

				fmt.Fprintf(out, "Wrote %s\n", path)

				return nil
			}

			text, err := m.ComposeWorkflow(target.ID, opts)
			if err != nil {
				return err
			}

			if copyOut {
				if err := e.copy(text); err != nil {
					return fmt.Errorf("failed to copy to clipboard: %w", err)
				}

				fmt.Fprintf(out, "Copied workflow for %s to the clipboard\n", target.WorkflowKey())

				return nil
			}

			fmt.Fprint(out, text)

			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&platforms, "platform", nil, "runner platforms: linux, macos, windows")
	f.StringVar(&toolchain, "toolchain", "", "build toolchain: go, swift, generic")
	f.BoolVar(&noBuild, "no-build", false, "omit the build step")
	f.BoolVar(&noTest, "no-test", false, "omit the test step")
	f.BoolVar(&copyOut, "copy", false, "copy to the clipboard instead of printing")
	f.StringVarP(&outDir, "out", "o", "", "write <workflow>.yml into this directory")

	return cmd
}
