package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Library        string   `mapstructure:"library"`
	Inbox          string   `mapstructure:"inbox"`
	ImageExt       []string `mapstructure:"image_extensions"`
	VideoExt       []string `mapstructure:"video_extensions"`
	RawExt         []string `mapstructure:"raw_extensions"`
	UnsupportedExt []string `mapstructure:"unsupported_video_formats"`

	ImageToolTimeoutSec int `mapstructure:"image_tool_timeout_seconds"`
	VideoToolTimeoutSec int `mapstructure:"video_tool_timeout_seconds"`

	MinFreeSpacePct     int `mapstructure:"min_free_space_percent"`
	ProgressEveryFiles  int `mapstructure:"progress_every_files"`
	ProgressEveryMillis int `mapstructure:"progress_every_millis"`
}

func (c *Config) ImageToolTimeout() time.Duration {
	return time.Duration(c.ImageToolTimeoutSec) * time.Second
}

func (c *Config) VideoToolTimeout() time.Duration {
	return time.Duration(c.VideoToolTimeoutSec) * time.Second
}

func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.ProgressEveryMillis) * time.Millisecond
}

func LoadConfig() (*Config, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to find user config dir: %w", err)
	}

	viper.SetConfigName("lumen")
	viper.SetConfigType("toml")
	viper.AddConfigPath(filepath.Join(configDir, "lumen"))

	// Set defaults:
	viper.SetDefault("library", filepath.Join(os.Getenv("HOME"), "lumen/library"))
	viper.SetDefault("inbox", filepath.Join(os.Getenv("HOME"), "lumen/inbox"))
	viper.SetDefault("image_extensions", []string{
		".jpg", ".jpeg", ".heic", ".heif", ".png", ".gif", ".bmp",
		".tiff", ".tif", ".webp", ".avif", ".jp2",
	})
	viper.SetDefault("video_extensions", []string{
		".mov", ".mp4", ".m4v", ".mkv", ".wmv", ".webm", ".flv",
		".3gp", ".mpg", ".mpeg", ".vob", ".ts", ".mts", ".avi",
	})
	viper.SetDefault("raw_extensions", []string{".raw", ".cr2", ".nef", ".arw", ".dng"})
	// Containers where a metadata rewrite risks corruption or would require
	// re-encoding; rejected before the external call is ever attempted.
	viper.SetDefault("unsupported_video_formats", []string{
		".mpg", ".mpeg", ".vob", ".ts", ".mts", ".avi", ".wmv",
	})
	viper.SetDefault("image_tool_timeout_seconds", 30)
	viper.SetDefault("video_tool_timeout_seconds", 60)
	viper.SetDefault("min_free_space_percent", 10)
	viper.SetDefault("progress_every_files", 10)
	viper.SetDefault("progress_every_millis", 500)

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found; that's OK, just use defaults
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}
