package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kebairia/rdhist/internal/config"
	"github.com/kebairia/rdhist/internal/logger"
	"github.com/kebairia/rdhist/internal/operations"
)

var (
	// ConfigFile is the path to the YAML configuration.
	ConfigFile string
	// LogLevel overrides log.level from the configuration.
	LogLevel string

	cfg    config.Config
	cancel context.CancelFunc = func() {}

	// rootCmd is the base command for rdhist.
	rootCmd = &cobra.Command{
		Use:   "rdhist",
		Short: "Inspect the history of rdiff-backup repositories",
		Long: `rdhist reads rdiff-backup repositories and reports, for any path,
the sessions at which it changed and the dates it can be restored from.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

// Execute runs the root command.
func Execute() {
	// cobra prints the error itself.
	if err := execute(context.Background()); err != nil {
		os.Exit(1)
	}
}

// execute runs the root command and releases the timeout and logger
// whether or not the command failed.
func execute(ctx context.Context) error {
	defer func() {
		cancel()
		cancel = func() {}
		logger.Cleanup()
	}()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().
		StringVarP(&ConfigFile, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().
		StringVar(&LogLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(sizesCmd)
	rootCmd.AddCommand(lsCmd)
}

// setup loads the configuration, starts the logger and bounds the command
// by scan.timeout.
func setup(cmd *cobra.Command, args []string) error {
	cfg = config.Config{}
	if err := cfg.Load(ConfigFile); err != nil {
		return err
	}
	if LogLevel != "" {
		cfg.Log.Level = LogLevel
	}
	if _, err := logger.Init(logger.Options{Level: cfg.Log.Level, Development: cfg.Log.Development}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	// cobra keeps a subcommand's context across executions; start from the
	// one given to this run.
	ctx := cmd.Root().Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Scan.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.Scan.Timeout)
	}
	cmd.SetContext(ctx)
	return nil
}

// open builds an OperationManager for the command and opens repo.
func open(cmd *cobra.Command, repo string) (*operations.OperationManager, *operations.Repository, error) {
	om := operations.NewOperationManager(cmd.Context(), cfg)
	r, err := om.OpenRepository(repo)
	if err != nil {
		return nil, nil, err
	}
	return om, r, nil
}
