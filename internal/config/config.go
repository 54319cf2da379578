// Package config provides configuration management for streamplan using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultProbeTimeout    = 30 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxIdleTime = 30 * time.Minute
	defaultMaxCPUPercent   = 90.0
)

// Config holds all configuration for the application.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	FFmpeg   FFmpegConfig   `mapstructure:"ffmpeg" yaml:"ffmpeg"`
	Process  ProcessConfig  `mapstructure:"process" yaml:"process"`
	Policies PoliciesConfig `mapstructure:"policies" yaml:"policies"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source" yaml:"add_source"`
	TimeFormat string `mapstructure:"time_format" yaml:"time_format"`
}

// DatabaseConfig holds outcome-history database configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"` // silent, error, warn, info
}

// FFmpegConfig holds FFmpeg binary configuration.
type FFmpegConfig struct {
	BinaryPath   string        `mapstructure:"binary_path" yaml:"binary_path"`     // Path to ffmpeg binary (empty = look up in PATH)
	ProbePath    string        `mapstructure:"probe_path" yaml:"probe_path"`       // Path to ffprobe binary (empty = look up in PATH)
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"` // Timeout for a single ffprobe call
}

// ProcessConfig holds worker-phase configuration.
type ProcessConfig struct {
	// WorkDir is where in-progress output files are written before being
	// moved next to the source. Empty means the source file's directory.
	WorkDir string `mapstructure:"work_dir" yaml:"work_dir"`

	// MaxCPUPercent defers processing of a file when host CPU utilisation
	// is above this threshold at the time the file is picked up. 0 disables
	// the gate.
	MaxCPUPercent float64 `mapstructure:"max_cpu_percent" yaml:"max_cpu_percent"`

	// ProgressInterval controls how often transcode progress is logged.
	ProgressInterval time.Duration `mapstructure:"progress_interval" yaml:"progress_interval"`
}

// PoliciesConfig holds the configuration surface of the built-in policies.
type PoliciesConfig struct {
	AudioEncoder  AudioEncoderConfig  `mapstructure:"audio_encoder" yaml:"audio_encoder"`
	LanguageStrip LanguageStripConfig `mapstructure:"language_strip" yaml:"language_strip"`
}

// AudioEncoderConfig configures the "re-encode audio unless already the
// acceptable codec" policy.
type AudioEncoderConfig struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	AcceptableCodec string `mapstructure:"acceptable_codec" yaml:"acceptable_codec"` // codec_name that needs no work (e.g. "opus")
	Encoder         string `mapstructure:"encoder" yaml:"encoder"`                   // encoder library to convert with (e.g. "libopus")
	Bitrate         int    `mapstructure:"bitrate" yaml:"bitrate"`                   // per-stream bitrate in kbit/s, 0 = channels*64
	Advanced        bool   `mapstructure:"advanced" yaml:"advanced"`                 // append extra_options verbatim
	ExtraOptions    string `mapstructure:"extra_options" yaml:"extra_options"`       // custom audio options, whitespace separated
}

// LanguageStripConfig configures the "remove streams by language or title"
// policy.
type LanguageStripConfig struct {
	Enabled           bool     `mapstructure:"enabled" yaml:"enabled"`
	AudioLanguages    []string `mapstructure:"audio_languages" yaml:"audio_languages"`       // language codes to strip from audio
	SubtitleLanguages []string `mapstructure:"subtitle_languages" yaml:"subtitle_languages"` // language codes to strip from subtitles
	TitlePhrases      []string `mapstructure:"title_phrases" yaml:"title_phrases"`           // title substrings marking a stream for removal
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration and are
// prefixed with STREAMPLAN_, using underscores for nesting.
// Example: STREAMPLAN_FFMPEG_BINARY_PATH=/usr/local/bin/ffmpeg.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/streamplan")
		v.AddConfigPath("$HOME/.streamplan")
	}

	v.SetEnvPrefix("STREAMPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file not found is OK - defaults and env vars still apply.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults
// are in place.
func SetDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "streamplan.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// FFmpeg defaults
	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")
	v.SetDefault("ffmpeg.probe_timeout", defaultProbeTimeout)

	// Process defaults
	v.SetDefault("process.work_dir", "")
	v.SetDefault("process.max_cpu_percent", defaultMaxCPUPercent)
	v.SetDefault("process.progress_interval", 10*time.Second)

	// Policy defaults mirror the classic audio re-encode setup.
	v.SetDefault("policies.audio_encoder.enabled", true)
	v.SetDefault("policies.audio_encoder.acceptable_codec", "opus")
	v.SetDefault("policies.audio_encoder.encoder", "libopus")
	v.SetDefault("policies.audio_encoder.bitrate", 0)
	v.SetDefault("policies.audio_encoder.advanced", false)
	v.SetDefault("policies.audio_encoder.extra_options", "")

	v.SetDefault("policies.language_strip.enabled", false)
	v.SetDefault("policies.language_strip.audio_languages", []string{})
	v.SetDefault("policies.language_strip.subtitle_languages", []string{})
	v.SetDefault("policies.language_strip.title_phrases", []string{})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.FFmpeg.ProbeTimeout <= 0 {
		return fmt.Errorf("ffmpeg.probe_timeout must be positive")
	}

	if c.Process.MaxCPUPercent < 0 || c.Process.MaxCPUPercent > 100 {
		return fmt.Errorf("process.max_cpu_percent must be between 0 and 100")
	}

	if c.Policies.AudioEncoder.Bitrate < 0 {
		return fmt.Errorf("policies.audio_encoder.bitrate must not be negative")
	}

	return nil
}
