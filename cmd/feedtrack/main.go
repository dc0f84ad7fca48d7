package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"feedtrack/internal/client/app"
	"feedtrack/internal/client/config"
	"feedtrack/internal/client/credentials"
	"feedtrack/internal/logging"
	"feedtrack/internal/tui"
)

// cli carries everything a command needs once the root pre-run has built it.
type cli struct {
	configPath string
	server     string
	profile    string
	verbose    bool

	cfg        *config.Config
	logger     *zap.Logger
	store      *credentials.Store
	closeStore func() error
	session    *app.Session
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "feedtrack",
		Short: "Track course project feedback from the terminal",
		Long: `feedtrack is the client for a feedtrackd server.

Run without arguments to start the interactive interface. The subcommands
cover the same operations for scripting.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			c.teardown()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runInteractive(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", config.DefaultPath(), "path to the client config file")
	flags.StringVar(&c.server, "server", "", "feedtrackd base URL (overrides config)")
	flags.StringVar(&c.profile, "profile", "default", "credential profile (sqlite token backend only)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		c.loginCmd(),
		c.registerCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.projectsCmd(),
		c.feedbackCmd(),
		c.commentCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.server != "" {
		cfg.Server = c.server
	}
	if c.verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg

	// The interactive screen owns stdout and stderr, so it logs to a file.
	if cmd.Parent() == nil {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o700); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		c.logger, err = logging.NewFile(cfg.LogLevel, cfg.LogFile)
	} else {
		c.logger, err = logging.New(cfg.LogLevel, "console")
	}
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if cfg.TokenBackend == config.BackendFile {
		if err := os.MkdirAll(filepath.Dir(cfg.TokenPath), 0o700); err != nil {
			return fmt.Errorf("failed to create token directory: %w", err)
		}
	}
	c.store, c.closeStore, err = credentials.Open(cmd.Context(), cfg.TokenBackend, cfg.TokenPath, cfg.DatabasePath, c.profile, c.logger.Named("credentials"))
	if err != nil {
		return err
	}

	c.session = app.New(cfg.Server, c.store,
		app.WithLogger(c.logger),
		app.WithCheckTimeout(cfg.CheckTimeout),
		app.WithRequestTimeout(cfg.RequestTimeout),
	)
	c.logger.Debug("client ready",
		zap.String("server", cfg.Server),
		zap.String("token_backend", cfg.TokenBackend),
	)
	return nil
}

func (c *cli) teardown() {
	if c.session != nil {
		c.session.Close()
	}
	if c.closeStore != nil {
		if err := c.closeStore(); err != nil && c.logger != nil {
			c.logger.Warn("credential store close failed", zap.Error(err))
		}
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

// runInteractive starts the TUI and, for backends that support it, follows
// token changes made by other feedtrack processes.
func (c *cli) runInteractive(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.store.Watch(gctx); err != nil {
			c.logger.Warn("token watch stopped", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return tui.Run(gctx, c.session, c.logger.Named("tui"))
	})
	return g.Wait()
}
