// Package cmd implements the pocket command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agentic-research/pocket/internal/config"
	"github.com/agentic-research/pocket/internal/lang"
	"github.com/agentic-research/pocket/internal/logging"
	"github.com/agentic-research/pocket/internal/metrics"
	"github.com/agentic-research/pocket/internal/registry"
	"github.com/agentic-research/pocket/internal/run"
	"github.com/agentic-research/pocket/internal/session"
	"github.com/agentic-research/pocket/internal/storage"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// app holds what the commands share. It is filled in by the root command's
// PersistentPreRunE; the session pieces are built on first use.
type app struct {
	configPath string
	logLevel   string

	cfg     *config.Config
	langs   *lang.Resolver
	log     *zap.Logger
	metrics *metrics.Collector
	reg     *registry.SQLite
	mgr     *session.Manager
}

// manager opens the registry and builds the session manager.
func (a *app) manager() (*session.Manager, error) {
	if a.mgr != nil {
		return a.mgr, nil
	}
	if err := os.MkdirAll(a.cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("document root: %w", err)
	}
	reg, err := registry.Open(a.cfg.Registry)
	if err != nil {
		return nil, err
	}
	catalog, err := session.LoadCatalog(a.cfg.Templates)
	if err != nil {
		_ = reg.Close()
		return nil, err
	}
	a.reg = reg
	a.mgr = session.NewManager(storage.NewOSProvider(a.cfg.Root), reg, session.Options{
		Namespace:  a.cfg.Namespace,
		SavePolicy: a.cfg.SavePolicy,
		Templates:  catalog,
		Languages:  a.langs,
		Metrics:    a.metrics,
		Log:        logging.Named("session"),
	})
	return a.mgr, nil
}

func (a *app) dispatcher() *run.Dispatcher {
	return run.NewDispatcher(
		run.NewLocal(a.cfg.LocalTimeout(), a.cfg.Execution.MaxCallStack),
		run.NewPHP(a.cfg.Execution.Endpoint, a.cfg.RemoteTimeout()),
		run.WithMetrics(a.metrics),
		run.WithLogger(logging.Named("run")),
	)
}

func (a *app) close() {
	if a.mgr != nil {
		a.mgr.CloseProject()
	}
	if a.reg != nil {
		_ = a.reg.Close()
	}
	_ = logging.Sync()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "pocket",
		Short:         "Pocket: a small code editor core for projects on local storage",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = a.logLevel
			}
			if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
				return fmt.Errorf("init logging: %w", err)
			}
			a.cfg = cfg
			a.langs = cfg.Resolver()
			a.log = logging.L()
			a.metrics = metrics.New()
			a.log.Debug("config loaded",
				zap.String("root", cfg.Root),
				zap.String("registry", cfg.Registry),
				zap.String("save_policy", cfg.SavePolicy),
			)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file (default "+config.DefaultPath()+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	root.AddCommand(
		newProjectCmd(a),
		openCmd(a),
		treeCmd(a),
		recentCmd(a),
		runCmd(a),
		checkCmd(a),
		fmtCmd(a),
		templatesCmd(a),
		mcpCmd(a),
	)
	closeAfterRun(a, root)
	return root
}

// closeAfterRun releases shared resources when any command finishes.
// PersistentPostRun is skipped when RunE fails, so the RunE funcs are wrapped.
func closeAfterRun(a *app, c *cobra.Command) {
	if run := c.RunE; run != nil {
		c.RunE = func(cmd *cobra.Command, args []string) error {
			defer a.close()
			return run(cmd, args)
		}
	}
	for _, sub := range c.Commands() {
		closeAfterRun(a, sub)
	}
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
