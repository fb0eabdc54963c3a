/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"strings"
	"time"

	commport "github.com/allbin/go-commport"
	"github.com/spf13/viper"
)

// Config is the CLI configuration loaded by viper.
type Config struct {
	Driver  string        `mapstructure:"driver"`
	Scan    bool          `mapstructure:"scan"`
	Ports   []PortAlias   `mapstructure:"ports"`
	Log     LogConfig     `mapstructure:"log"`
	Monitor MonitorConfig `mapstructure:"monitor"`
}

// PortAlias maps a logical port name onto a device path.
type PortAlias struct {
	Name string `mapstructure:"name"`
	Path string `mapstructure:"path"`
	Kind string `mapstructure:"kind"`
}

// LogConfig defines logging settings
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// MonitorConfig controls the event monitors of opened ports.
type MonitorConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	StopTimeout  time.Duration `mapstructure:"stop_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("driver", defaultDriver)
	v.SetDefault("scan", true)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("monitor.poll_interval", 100*time.Millisecond)
	v.SetDefault("monitor.stop_timeout", 5*time.Second)
}

// loadConfig decodes and validates the settings held by v.
func loadConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	var errors ValidationErrors

	switch c.Driver {
	case "termios", "bugst", "sim":
	default:
		errors = append(errors, ValidationError{
			Field:   "driver",
			Message: fmt.Sprintf("unknown driver: %s (must be termios, bugst or sim)", c.Driver),
		})
	}

	namesSeen := make(map[string]bool)
	for i, p := range c.Ports {
		errors = append(errors, validateAlias(p, i, namesSeen)...)
	}

	if c.Monitor.PollInterval <= 0 {
		errors = append(errors, ValidationError{
			Field:   "monitor.poll_interval",
			Message: "must be greater than 0",
		})
	}
	if c.Monitor.StopTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "monitor.stop_timeout",
			Message: "must be greater than 0",
		})
	}
	if c.Log.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "log.max_size_mb",
			Message: "must not be negative",
		})
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func validateAlias(p PortAlias, index int, namesSeen map[string]bool) ValidationErrors {
	var errors ValidationErrors
	prefix := fmt.Sprintf("ports[%d]", index)

	if p.Name == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".name",
			Message: "name is required",
		})
	} else if namesSeen[p.Name] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".name",
			Message: fmt.Sprintf("duplicate port name: %s", p.Name),
		})
	} else {
		namesSeen[p.Name] = true
	}

	if p.Path == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".path",
			Message: "path is required",
		})
	}

	if p.Kind != "" {
		if _, err := commport.ParsePortKind(p.Kind); err != nil {
			errors = append(errors, ValidationError{
				Field:   prefix + ".kind",
				Message: fmt.Sprintf("invalid kind: %s (must be serial or parallel)", p.Kind),
			})
		}
	}
	return errors
}

// portKind resolves the configured kind, falling back to the device name.
func (p PortAlias) portKind() commport.PortKind {
	if p.Kind == "" {
		return commport.KindForPath(p.Path)
	}
	kind, _ := commport.ParsePortKind(p.Kind)
	return kind
}
