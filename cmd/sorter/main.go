package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-sorter/internal/cli"
	"github.com/Veraticus/spice-sorter/internal/common"
	"github.com/Veraticus/spice-sorter/internal/config"
)

var version = "dev"

// rootOptions is shared by every subcommand of one root command.
type rootOptions struct {
	v       *viper.Viper
	cfg     *config.Config
	cfgFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "sorter",
		Short: "Rule-based transaction classification",
		Long: `sorter classifies bank transactions into budgeting categories.

It imports statements, assigns each transaction a category from your own
corrections or a built-in rule table, and remembers every manual edit so
the next similar transaction lands in the right place.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.initConfig(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default: $HOME/.config/sorter/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "database path (default: $HOME/.local/share/sorter/sorter.db)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")

	_ = opts.v.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
	_ = opts.v.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = opts.v.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(classifyCmd(opts))
	rootCmd.AddCommand(transactionsCmd(opts))
	rootCmd.AddCommand(importCmd(opts))
	rootCmd.AddCommand(reclassifyCmd(opts))
	rootCmd.AddCommand(overridesCmd(opts))
	rootCmd.AddCommand(categoriesCmd(opts))
	rootCmd.AddCommand(checkpointCmd(opts))
	rootCmd.AddCommand(serveCmd(opts))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received interrupt signal, shutting down gracefully...")
		cancel()
	}()

	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(err.Error()))
		os.Exit(1)
	}
}

func (o *rootOptions) initConfig(cmd *cobra.Command) error {
	if err := config.Setup(o.v, o.cfgFile); err != nil {
		return err
	}
	cfg, err := config.Load(o.v)
	if err != nil {
		return err
	}
	o.cfg = cfg

	if err := setupLogging(cmd, cfg.Logging); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.Debug("Configuration loaded", "config_file", o.v.ConfigFileUsed(), "database", cfg.Database.Path)
	return nil
}

func setupLogging(cmd *cobra.Command, cfg config.LoggingConfig) error {
	level, err := common.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	common.SetupLogger(cmd.ErrOrStderr(), level, cfg.Format)
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sorter %s\n", version)
		},
	}
}
