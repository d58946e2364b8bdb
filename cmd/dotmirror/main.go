package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dotmirror/dotmirror/internal/config"
	"github.com/dotmirror/dotmirror/internal/git"
	"github.com/dotmirror/dotmirror/internal/output"
	"github.com/dotmirror/dotmirror/internal/sync"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
	dryRun    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dotmirror",
	Short: "Mirror dotfiles into a version-controlled directory",
	Long: `dotmirror copies a declared set of files and directories from your home
directory into a version-controlled mirror, then optionally commits and
pushes that mirror to a remote git repository.

Declare mappings in the configuration file, run sync to update the mirror,
and push to publish it.`,
	SilenceUsage: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile all declared mappings into the mirror",
	Long: `Sync compares every declared source with its mirrored copy and reproduces
the source state in the mirror: plain files are copied byte-for-byte and
directory trees are mirrored recursively, including deletions.

With --dry-run the would-be changes are reported and nothing is written.`,
	RunE: runSync,
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Sync the mirror, then commit and push it to the remote",
	Long: `Push performs an apply-mode sync, stages the mirror's full contents,
creates a timestamped commit and pushes it to the configured branch,
establishing upstream tracking on the first push.

A failed push never rolls back already-applied file changes.`,
	RunE: runPush,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List declared mappings with their existence status",
	RunE:  runList,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dotmirror %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/dotmirror/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	// Sync command flags
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be done without making changes")

	// Add commands
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	mode := sync.Apply
	if dryRun {
		mode = sync.Preview
	}

	summary := sync.NewRunner(cfg, logger).Run(mode)
	output.PrintSummary(summary, mode)

	return nil
}

func runPush(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	// The external git tool is required before any mapping is processed.
	client := git.NewShellClient()
	if err := client.Available(); err != nil {
		return err
	}

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	summary := sync.NewRunner(cfg, logger).Run(sync.Apply)
	output.PrintSummary(summary, sync.Apply)

	logger.Info("publishing mirror",
		"remote", cfg.Repository.URL,
		"branch", cfg.Repository.Branch,
		"provider", string(cfg.Repository.Provider()))

	result := client.Publish(ctx, cfg.Paths.MirrorDir, cfg.Repository)
	output.PrintPublishResult(result)

	switch result.Status {
	case git.PushFailed, git.Failed:
		return fmt.Errorf("publish failed: %s", result.Reason)
	}

	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	output.PrintMappings(cfg)
	return nil
}

func setupLogger() *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	// Determine config file path
	configPath := cfgFile
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		configPath = fmt.Sprintf("%s/.config/dotmirror/config.yaml", home)
	}

	logger.Info("loading configuration", "path", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"repository", cfg.Repository.URL,
		"branch", cfg.Repository.Branch,
		"mirror_dir", cfg.Paths.MirrorDir,
		"mappings", len(cfg.Files))

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
