package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// FailingError is returned by status when at least one repo is failing, so
// scripts can rely on the exit code.
type FailingError struct {
	Count int
}

func (e *FailingError) Error() string {
	if e.Count == 1 {
		return "1 repo failing"
	}

	return fmt.Sprintf("%d repos failing", e.Count)
}

func newStatusCmd(e *env) *cobra.Command {
	var (
		asJSON  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Refresh every repo once and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := e.openModel(true)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			warnings := m.Refresh(ctx).Wait(ctx)
			if errors.Is(warnings, context.DeadlineExceeded) || errors.Is(warnings, context.Canceled) {
				m.CancelRefresh()
				return fmt.Errorf("refresh did not finish: %w", warnings)
			}

			if err := printRepos(cmd.OutOrStdout(), m, asJSON); err != nil {
				return err
			}

			if warnings != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", warnings)
			}

			if n := m.FailingCount(); n > 0 {
				return &FailingError{Count: n}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "give up after this long")

	return cmd
}
