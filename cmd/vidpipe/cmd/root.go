// Package cmd implements the CLI commands for vidpipe.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matchvision/vidpipe/internal/config"
	"github.com/matchvision/vidpipe/internal/observability"
	"github.com/matchvision/vidpipe/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "vidpipe",
	Short:   "Sports video ML pipeline orchestration service",
	Version: version.Short(),
	Long: `vidpipe orchestrates the machine learning pipeline for sports video:
frame decoding, player detection, and ball tracking.

Processing runs asynchronously with a checkpoint after every completed
stage, so interrupted pipelines can resume from where they left off.
Stage lifecycle events are published to Kafka and live progress is
streamed to WebSocket subscribers.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	// These flags are not bound to viper; they override the loaded config
	// only when explicitly set, preserving the priority
	// CLI flag > env var > config file > default.
	rootCmd.PersistentFlags().SetNormalizeFunc(normalizeFlags)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./configs, /etc/vidpipe, $HOME/.vidpipe)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
}

// normalizeFlags lets underscore spellings of flag names resolve to their
// dashed form, matching the config file key style.
func normalizeFlags(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// loadConfig loads the configuration, applies CLI flag overrides, and
// installs the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if rootCmd.PersistentFlags().Changed("log-level") {
		level, _ := rootCmd.PersistentFlags().GetString("log-level")
		cfg.Logging.Level = strings.ToLower(level)
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		format, _ := rootCmd.PersistentFlags().GetString("log-format")
		cfg.Logging.Format = strings.ToLower(format)
	}

	logger := observability.NewLoggerWithWriter(cfg.Logging, os.Stderr)
	observability.SetDefault(logger)

	return cfg, nil
}
