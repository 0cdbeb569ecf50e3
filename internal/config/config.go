package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Watch modes supported by the watcher package.
const (
	WatchModeNotify = "notify"
	WatchModePoll   = "poll"
)

// Config represents the main configuration structure.
// It is built once at startup and passed explicitly to every component.
type Config struct {
	SourceDir        string        `mapstructure:"source_dir"`
	CompressedDir    string        `mapstructure:"compressed_dir"`
	Quality          int           `mapstructure:"compression_quality"`
	Lossless         bool          `mapstructure:"lossless"`
	ConvertToWebP    bool          `mapstructure:"convert_to_webp"`
	AutoOrient       bool          `mapstructure:"auto_orient"`
	PreserveMetadata bool          `mapstructure:"preserve_metadata"`
	Watch            WatchConfig   `mapstructure:"watch"`
	Logging          LoggingConfig `mapstructure:"log"`
}

// WatchConfig contains settings for the watch source
type WatchConfig struct {
	Mode         string        `mapstructure:"mode"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	RenameWindow time.Duration `mapstructure:"rename_window"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	FilePath   string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		SourceDir:        "/app/source",
		CompressedDir:    "/app/compressed",
		Quality:          100,
		Lossless:         false,
		ConvertToWebP:    true,
		AutoOrient:       true,
		PreserveMetadata: false,
		Watch: WatchConfig{
			Mode:         WatchModeNotify,
			PollInterval: time.Second,
			RenameWindow: 250 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// Load reads the configuration from environment variables.
// Keys map to upper-case env names with dots replaced by underscores,
// so "watch.poll_interval" is read from WATCH_POLL_INTERVAL.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	config := DefaultConfig()
	setDefaults(v, config)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// setDefaults registers every key with viper. AutomaticEnv only consults
// the environment for keys viper already knows about.
func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("source_dir", c.SourceDir)
	v.SetDefault("compressed_dir", c.CompressedDir)
	v.SetDefault("compression_quality", c.Quality)
	v.SetDefault("lossless", c.Lossless)
	v.SetDefault("convert_to_webp", c.ConvertToWebP)
	v.SetDefault("auto_orient", c.AutoOrient)
	v.SetDefault("preserve_metadata", c.PreserveMetadata)

	v.SetDefault("watch.mode", c.Watch.Mode)
	v.SetDefault("watch.poll_interval", c.Watch.PollInterval)
	v.SetDefault("watch.rename_window", c.Watch.RenameWindow)

	v.SetDefault("log.level", c.Logging.Level)
	v.SetDefault("log.format", c.Logging.Format)
	v.SetDefault("log.file", c.Logging.FilePath)
	v.SetDefault("log.max_size", c.Logging.MaxSize)
	v.SetDefault("log.max_backups", c.Logging.MaxBackups)
	v.SetDefault("log.max_age", c.Logging.MaxAge)
	v.SetDefault("log.compress", c.Logging.Compress)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.SourceDir == "" {
		return fmt.Errorf("SOURCE_DIR is required")
	}
	if c.CompressedDir == "" {
		return fmt.Errorf("COMPRESSED_DIR is required")
	}

	// Outputs written into the watched folder would be picked up again.
	if samePath(c.SourceDir, c.CompressedDir) {
		return fmt.Errorf("COMPRESSED_DIR must differ from SOURCE_DIR: %s", c.SourceDir)
	}

	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("invalid COMPRESSION_QUALITY: %d (valid: 1-100)", c.Quality)
	}

	c.Watch.Mode = strings.ToLower(c.Watch.Mode)
	switch c.Watch.Mode {
	case WatchModeNotify, WatchModePoll:
	default:
		return fmt.Errorf("invalid WATCH_MODE: %s (valid: notify, poll)", c.Watch.Mode)
	}
	if c.Watch.PollInterval <= 0 {
		return fmt.Errorf("invalid WATCH_POLL_INTERVAL: %s", c.Watch.PollInterval)
	}
	if c.Watch.RenameWindow < 0 {
		c.Watch.RenameWindow = 0
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	c.Logging.Format = strings.ToLower(c.Logging.Format)
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s (valid: json, text)", c.Logging.Format)
	}

	return nil
}

// Conflicts returns warnings for settings that are valid but contradict
// each other. None of them prevent the service from starting.
func (c *Config) Conflicts() []string {
	var warnings []string
	if c.Lossless && c.Quality < 100 {
		warnings = append(warnings, fmt.Sprintf(
			"both lossless compression (LOSSLESS=true) and lossy quality setting (COMPRESSION_QUALITY=%d) are enabled; "+
				"in lossless mode the quality setting is ignored and images are saved at highest quality",
			c.Quality))
	}
	return warnings
}

// EnsureDirectories creates the source and output directories, including parents.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.SourceDir, c.CompressedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// OutputExt returns the extension written for a source with the given extension.
func (c *Config) OutputExt(sourceExt string) string {
	if c.ConvertToWebP {
		return ".webp"
	}
	return sourceExt
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
