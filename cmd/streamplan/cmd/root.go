// Package cmd implements the CLI commands for streamplan.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/streamplan/streamplan/internal/config"
	"github.com/streamplan/streamplan/internal/observability"
	"github.com/streamplan/streamplan/internal/policy"
	"github.com/streamplan/streamplan/internal/version"
)

// cfgFile holds the config file path from CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "streamplan",
	Short:   "Stream-aware media file conversion",
	Version: version.Short(),
	Long: `streamplan inspects media files with ffprobe, evaluates per-stream
policies against them, and drives ffmpeg to re-encode or strip streams
that do not match the desired library layout.

Built-in policies cover audio re-encoding to a target codec and removal
of audio/subtitle streams by language or title.`,
	// PersistentPreRunE is set in init() to avoid initialization cycle
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initLogging()
	}

	// Global flags
	// These are NOT bound to viper. We check if they were explicitly set
	// using Changed() and only then override the config/env values, which
	// preserves the priority: CLI flag > env var > config > default.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.streamplan/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/streamplan")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home + "/.streamplan")
		}
	}

	viper.SetEnvPrefix("STREAMPLAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// initLogging configures the slog logger based on configuration.
//
// Priority order (highest to lowest):
//  1. CLI flags (--log-level, --log-format) - only if explicitly provided
//  2. Environment variables (STREAMPLAN_LOGGING_LEVEL, STREAMPLAN_LOGGING_FORMAT)
//  3. Config file values
//  4. Built-in defaults
func initLogging() error {
	level := viper.GetString("logging.level")
	format := viper.GetString("logging.format")

	if rootCmd.PersistentFlags().Changed("log-level") {
		level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}

	if level == "" {
		level = "info"
	}
	if format == "" {
		format = "text"
	}

	logCfg := config.LoggingConfig{
		Level:      strings.ToLower(level),
		Format:     strings.ToLower(format),
		AddSource:  viper.GetBool("logging.add_source"),
		TimeFormat: viper.GetString("logging.time_format"),
	}

	if logCfg.Level == "warning" {
		logCfg.Level = "warn"
	}

	logger := observability.NewLoggerWithWriter(logCfg, os.Stderr)
	observability.SetDefault(logger)

	return nil
}

// loadConfig unmarshals the merged viper state into a validated Config.
func loadConfig() (*config.Config, error) {
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// buildPolicies constructs the enabled policies from configuration. A policy
// that fails validation is logged and skipped so the remaining policies
// still run; only unexpected construction errors propagate.
func buildPolicies(cfg *config.Config, logger *slog.Logger) ([]*policy.Policy, error) {
	var policies []*policy.Policy

	appendPolicy := func(p *policy.Policy, err error) error {
		if err != nil {
			var confErr *policy.ConfigurationError
			if errors.As(err, &confErr) {
				logger.Warn("skipping misconfigured policy",
					slog.String("policy", confErr.Policy),
					slog.String("option", confErr.Option),
					slog.String("reason", confErr.Reason),
				)
				return nil
			}
			return err
		}
		policies = append(policies, p)
		return nil
	}

	if cfg.Policies.AudioEncoder.Enabled {
		p, err := policy.NewAudioEncoder(policy.EncodeOptions{
			AcceptableCodec: cfg.Policies.AudioEncoder.AcceptableCodec,
			Encoder:         cfg.Policies.AudioEncoder.Encoder,
			BitrateKbps:     cfg.Policies.AudioEncoder.Bitrate,
			ExtraOptions:    cfg.Policies.AudioEncoder.ExtraOptions,
			Advanced:        cfg.Policies.AudioEncoder.Advanced,
		}, logger)
		if err := appendPolicy(p, err); err != nil {
			return nil, err
		}
	}

	if cfg.Policies.LanguageStrip.Enabled {
		p, err := policy.NewLanguageStrip(policy.StripOptions{
			AudioLanguages:    cfg.Policies.LanguageStrip.AudioLanguages,
			SubtitleLanguages: cfg.Policies.LanguageStrip.SubtitleLanguages,
			TitlePhrases:      cfg.Policies.LanguageStrip.TitlePhrases,
		}, logger)
		if err := appendPolicy(p, err); err != nil {
			return nil, err
		}
	}

	return policies, nil
}
