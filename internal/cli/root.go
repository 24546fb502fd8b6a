// Package cli implements the actionstatus command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/cli/go-gh/v2/pkg/api"
	"github.com/kyleking/gh-actionstatus/internal/browser"
	"github.com/kyleking/gh-actionstatus/internal/config"
	"github.com/kyleking/gh-actionstatus/internal/demo"
	"github.com/kyleking/gh-actionstatus/internal/git"
	"github.com/kyleking/gh-actionstatus/internal/github"
	"github.com/kyleking/gh-actionstatus/internal/localrepo"
	"github.com/kyleking/gh-actionstatus/internal/logging"
	"github.com/kyleking/gh-actionstatus/internal/model"
	"github.com/kyleking/gh-actionstatus/internal/store"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	storePath  string
	logLevel   string
	demo       bool
}

// env carries what every subcommand needs once flags and config are resolved.
type env struct {
	flags  globalFlags
	cfg    *config.Config
	logger *slog.Logger

	// Overridable in tests.
	newClient func(cfg *config.Config) (model.StatusClient, error)
	copy      func(text string) error

	// Set by setup.
	persister model.Persister
	store     *store.Store
}

// Execute runs the root command with os.Args.
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCmd(version).ExecuteContext(ctx)
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	return newRootCmd(version, &env{newClient: newStatusClient, copy: clipboard.WriteAll})
}

func newRootCmd(version string, e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "actionstatus",
		Short: "Monitor GitHub Actions workflow status across repositories",
		Long: "actionstatus tracks the latest completed run of one workflow per repository\n" +
			"and reports whether each is passing, failing or unknown.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.setup(cmd.ErrOrStderr())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&e.flags.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/actionstatus/config.yml)")
	pf.StringVar(&e.flags.storePath, "store", "", "repo store file (default $XDG_DATA_HOME/actionstatus/repos.json)")
	pf.StringVar(&e.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&e.flags.demo, "demo", false, "use sample repos and an offline status client")

	root.AddCommand(
		newListCmd(e),
		newAddCmd(e),
		newImportCmd(e),
		newEditCmd(e),
		newRemoveCmd(e),
		newStatusCmd(e),
		newComposeCmd(e),
		newWatchCmd(e),
		newServeCmd(e),
	)

	return root
}

func (e *env) setup(logOut io.Writer) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	cfg, err := config.Load(e.flags.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if e.flags.logLevel != "" {
		cfg.Log.Level = e.flags.logLevel
	}

	if e.flags.storePath != "" {
		cfg.Store = e.flags.storePath
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}

	logging.Init(level, cfg.Log.Format, logOut)

	e.cfg = cfg
	e.logger = logging.New("cli")

	if e.flags.demo {
		e.persister = demo.NewStore()
		return nil
	}

	e.store = store.New(cfg.Store)
	e.persister = e.store

	return nil
}

// openModel loads the collection. withClient is false for commands that never
// refresh, so they work without credentials.
func (e *env) openModel(withClient bool) (*model.Model, error) {
	var client model.StatusClient

	if withClient {
		var err error
		if e.flags.demo {
			client = demo.NewClient()
		} else if client, err = e.newClient(e.cfg); err != nil {
			return nil, err
		}
	}

	resolver := localrepo.NewResolver(git.NewClient()).WithHost(e.cfg.Host)

	m := model.New(client, e.persister, model.Options{
		Concurrency:  e.cfg.Concurrency,
		Retries:      e.cfg.Retries,
		RetryBackoff: e.cfg.RetryBackoff,
		Resolver:     resolver,
		OnSelect:     browser.SelectHandler(logging.New("browser")),
		Logger:       logging.New("model"),
	})

	if err := m.Load(); err != nil {
		return nil, err
	}

	return m, nil
}

func newStatusClient(cfg *config.Config) (model.StatusClient, error) {
	if cfg.Token == "" && (cfg.Host == "" || cfg.Host == localrepo.DefaultHost) {
		return github.NewClient()
	}

	return github.NewClientWithOptions(api.ClientOptions{
		Host:      cfg.Host,
		AuthToken: cfg.Token,
	})
}
