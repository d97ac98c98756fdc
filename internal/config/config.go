package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Delimiters DelimiterConfig `mapstructure:"delimiters"`
	Paths      PathsConfig     `mapstructure:"paths"`
	Writer     WriterConfig    `mapstructure:"writer"`
	Logging    LoggingConfig   `mapstructure:"logging"`
}

// DelimiterConfig controls the chunk recognizer's lexical configuration.
type DelimiterConfig struct {
	Open           string   `mapstructure:"open"`
	Close          string   `mapstructure:"close"`
	ChunkEnd       string   `mapstructure:"chunk_end"`
	CommentMarkers []string `mapstructure:"comment_markers"`
}

// PathsConfig names the three directories the safe writer manages.
type PathsConfig struct {
	GenDir     string `mapstructure:"gen_dir"`
	PrivateDir string `mapstructure:"private_dir"`
}

// WriterConfig mirrors writer.Config as a mapstructure-tagged mirror so it
// can be loaded from file/env before being translated into writer.Config.
type WriterConfig struct {
	BackupEnabled     bool `mapstructure:"backup_enabled"`
	AllowOverwrites   bool `mapstructure:"allow_overwrites"`
	ModificationCheck bool `mapstructure:"modification_check"`
	BufferSize        int  `mapstructure:"buffer_size"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
	JSONFormat bool   `mapstructure:"json_format"`
}

// DefaultConfig returns a configuration with the noweb-style defaults named
// in the delimiter and directory conventions: "<<", ">>", "@", comment
// markers "{#, //}", gen/ and _azadi_work/ as the managed roots.
func DefaultConfig() *Config {
	return &Config{
		Delimiters: DelimiterConfig{
			Open:           "<<",
			Close:          ">>",
			ChunkEnd:       "@",
			CommentMarkers: []string{"#", "//"},
		},
		Paths: PathsConfig{
			GenDir:     "./gen",
			PrivateDir: "./_azadi_work",
		},
		Writer: WriterConfig{
			BackupEnabled:     true,
			AllowOverwrites:   false,
			ModificationCheck: true,
			BufferSize:        8192,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stderr",
			JSONFormat: false,
		},
	}
}

// Load loads configuration from file and environment variables, falling
// back to DefaultConfig values for anything unset.
func Load(configPath string) (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("azaditangle")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.azadi-tangle")
		viper.AddConfigPath("/etc/azadi-tangle")
	}

	viper.SetEnvPrefix("AZADI")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration and normalizes paths to absolute
// form, creating the managed directories if they do not yet exist.
func (c *Config) Validate() error {
	if c.Delimiters.Open == "" || c.Delimiters.Close == "" {
		return fmt.Errorf("delimiters.open and delimiters.close must not be empty")
	}
	if c.Delimiters.ChunkEnd == "" {
		return fmt.Errorf("delimiters.chunk_end must not be empty")
	}

	if c.Paths.GenDir != "" {
		absDir, err := filepath.Abs(c.Paths.GenDir)
		if err != nil {
			return fmt.Errorf("invalid gen directory path %s: %w", c.Paths.GenDir, err)
		}
		if err := os.MkdirAll(absDir, 0o755); err != nil {
			return fmt.Errorf("failed to create gen directory %s: %w", absDir, err)
		}
		c.Paths.GenDir = absDir
	}

	if c.Paths.PrivateDir != "" {
		absDir, err := filepath.Abs(c.Paths.PrivateDir)
		if err != nil {
			return fmt.Errorf("invalid private directory path %s: %w", c.Paths.PrivateDir, err)
		}
		if err := os.MkdirAll(absDir, 0o755); err != nil {
			return fmt.Errorf("failed to create private directory %s: %w", absDir, err)
		}
		c.Paths.PrivateDir = absDir
	}

	if c.Writer.BufferSize <= 0 {
		c.Writer.BufferSize = 8192
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Logging.Level] {
		c.Logging.Level = "info"
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Logging.Format] {
		c.Logging.Format = "console"
	}

	return nil
}
