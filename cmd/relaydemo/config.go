package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the demo settings. Values come from flags, RELAYDEMO_*
// environment variables and an optional relaydemo.yaml, in that order of
// precedence.
type Config struct {
	Backend     string        `mapstructure:"backend"`
	Width       int           `mapstructure:"width"`
	Height      int           `mapstructure:"height"`
	Slots       int           `mapstructure:"slots"`
	Buffers     int           `mapstructure:"buffers"`
	FPS         int           `mapstructure:"fps"`
	RenderFPS   int           `mapstructure:"render_fps"`
	ResizeEvery int           `mapstructure:"resize_every"`
	Duration    time.Duration `mapstructure:"duration"`
	Output      string        `mapstructure:"output"`
	LogLevel    string        `mapstructure:"log_level"`
}

func setDefaults() {
	viper.SetDefault("backend", "")
	viper.SetDefault("width", 640)
	viper.SetDefault("height", 360)
	viper.SetDefault("slots", 3)
	viper.SetDefault("buffers", 3)
	viper.SetDefault("fps", 60)
	viper.SetDefault("render_fps", 60)
	viper.SetDefault("resize_every", 0)
	viper.SetDefault("duration", 3*time.Second)
	viper.SetDefault("output", "")
	viper.SetDefault("log_level", "info")
}

// bindFlags exposes flags to viper under their config keys. Flag names use
// dashes, keys use underscores.
func bindFlags(flags *pflag.FlagSet) error {
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		errs = append(errs, viper.BindPFlag(key, f))
	})
	return errors.Join(errs...)
}

// loadConfig reads the config file, if any, and unmarshals the merged
// settings.
func loadConfig(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("relaydemo")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("RELAYDEMO")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("invalid size %dx%d", c.Width, c.Height)
	case c.Slots < 2:
		return fmt.Errorf("slots must be at least 2, got %d", c.Slots)
	case c.Buffers < 1:
		return fmt.Errorf("buffers must be at least 1, got %d", c.Buffers)
	case c.FPS <= 0 || c.RenderFPS <= 0:
		return fmt.Errorf("frame rates must be positive, got %d and %d", c.FPS, c.RenderFPS)
	case c.ResizeEvery < 0:
		return fmt.Errorf("resize_every must not be negative, got %d", c.ResizeEvery)
	}
	return nil
}

func (c *Config) level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
