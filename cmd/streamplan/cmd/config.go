package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/streamplan/streamplan/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing streamplan configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

Redirect this output to a file to create a configuration template:

  streamplan config dump > config.yaml

Configuration can be set via:
  - Config file (config.yaml, /etc/streamplan/config.yaml, ~/.streamplan/config.yaml)
  - Environment variables (STREAMPLAN_FFMPEG_BINARY_PATH, STREAMPLAN_DATABASE_DSN, etc.)
  - Command-line flags (for some options)

Environment variables use the STREAMPLAN_ prefix and underscores for nesting.
Example: policies.audio_encoder.encoder -> STREAMPLAN_POLICIES_AUDIO_ENCODER_ENCODER`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Println("# streamplan Configuration File")
	fmt.Println("# =============================")
	fmt.Println("#")
	fmt.Println("# All values shown below are defaults.")
	fmt.Println("#")
	fmt.Println("# Environment variable overrides:")
	fmt.Println("#   STREAMPLAN_LOGGING_LEVEL, STREAMPLAN_LOGGING_FORMAT")
	fmt.Println("#   STREAMPLAN_DATABASE_DRIVER, STREAMPLAN_DATABASE_DSN")
	fmt.Println("#   STREAMPLAN_FFMPEG_BINARY_PATH, STREAMPLAN_FFMPEG_PROBE_PATH")
	fmt.Println("#   etc.")
	fmt.Println("#")
	fmt.Println("")
	fmt.Print(string(yamlData))

	return nil
}
