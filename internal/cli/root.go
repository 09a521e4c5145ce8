package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"waitlist-server/internal/bootstrap"
	"waitlist-server/internal/config"
	"waitlist-server/internal/observability"
	"waitlist-server/internal/server"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the command tree. Running the binary without a
// subcommand starts the HTTP server.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "waitlist-server",
		Short:         "Waitlist signup service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server",
			RunE:  runServe,
		},
		newListCommand(),
		newLimitsCommand(),
	)
	return root
}

// Execute runs the root command against os.Args.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := observability.New(cfg.Logging.Level, cfg.IsProduction())
	if err != nil {
		return err
	}

	deps, err := bootstrap.Initialize(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "failed to initialize dependencies", err)
		return err
	}

	srv := server.New(cfg, deps, logger)
	srv.Setup()
	if err := srv.Start(ctx); err != nil {
		logger.Error(ctx, "failed to start server", err)
		return err
	}
	return srv.WaitForShutdown(ctx)
}

// loadStores opens the persisted files with logging limited to warnings so
// command output stays readable. Mail and server settings are not required.
func loadStores() (*config.Config, *bootstrap.Dependencies, error) {
	cfg, err := config.LoadStores()
	if err != nil {
		return nil, nil, err
	}
	logger, err := observability.New("warn", false)
	if err != nil {
		return nil, nil, err
	}
	return cfg, bootstrap.InitializeStores(cfg, logger), nil
}

// Main is the process entrypoint. It returns the exit code.
func Main() int {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
