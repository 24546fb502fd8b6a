package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/kyleking/gh-actionstatus/internal/bridge"
	"github.com/kyleking/gh-actionstatus/internal/logging"
	"github.com/kyleking/gh-actionstatus/internal/model"
	"github.com/kyleking/gh-actionstatus/internal/server"
	"github.com/kyleking/gh-actionstatus/internal/shell"
	"github.com/kyleking/gh-actionstatus/internal/ui"
	"github.com/kyleking/gh-actionstatus/internal/ui/theme"
	"github.com/spf13/cobra"
)

// startBackground begins periodic refresh and, for file-backed stores, reloads
// the collection when another process rewrites it. onPass, when set, receives
// every finished scheduled pass. The returned func stops both.
func (e *env) startBackground(ctx context.Context, m *model.Model, onPass func(*model.Pass)) func() {
	poller := model.NewPoller(m, e.cfg.RefreshInterval).OnPass(onPass)
	poller.Start()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		if e.store == nil {
			<-ctx.Done()
			return
		}

		err := e.store.Watch(ctx, func() {
			if err := m.Reload(); err != nil {
				e.logger.Warn("failed to reload store", "error", err)
			}
		})
		if err != nil {
			e.logger.Warn("store watch stopped", "error", err)
		}
	}()

	return func() {
		cancel()
		poller.Stop()
		<-done
	}
}

func newWatchCmd(e *env) *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show a live status view that refreshes periodically",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The view owns the terminal; logs go to a file or nowhere.
			var logOut io.Writer = io.Discard

			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
				if err != nil {
					return fmt.Errorf("failed to open log file: %w", err)
				}
				defer f.Close()

				logOut = f
			}

			level, _ := logging.ParseLevel(e.cfg.Log.Level)
			logging.Init(level, e.cfg.Log.Format, logOut)
			e.logger = logging.New("cli")

			m, err := e.openModel(true)
			if err != nil {
				return err
			}

			opts, err := e.cfg.ComposeOptions()
			if err != nil {
				return err
			}

			view := shell.New(cmd.Context(), m, ui.NewStyles(theme.Detect())).
				WithCopyText(func(_ bridge.DataSource, item int) (string, error) {
					items := m.Items()
					if item < 0 || item >= len(items) {
						return "", fmt.Errorf("no repo at position %d", item)
					}

					return m.ComposeWorkflow(items[item].ID, opts)
				})

			stop := e.startBackground(cmd.Context(), m, view.Report)
			defer stop()

			return shell.Run(cmd.Context(), view)
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "", "append logs to this file")

	return cmd
}

func newServeCmd(e *env) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the status over a local JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := e.openModel(true)
			if err != nil {
				return err
			}

			opts, err := e.cfg.ComposeOptions()
			if err != nil {
				return err
			}

			if addr == "" {
				addr = e.cfg.Serve.Addr
			}

			// Check failures are already logged by the model.
			stop := e.startBackground(cmd.Context(), m, nil)
			defer stop()

			srv := server.New(m, server.Options{
				Version: cmd.Root().Version,
				Compose: opts,
				Logger:  logging.New("server"),
			})

			return srv.Listen(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:8787)")

	return cmd
}
