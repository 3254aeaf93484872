// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"forgeenv-cli/internal/retry"
)

var (
	// ErrInvalidRetryConfig is the sentinel error wrapped by InvalidRetryConfigError.
	ErrInvalidRetryConfig = errors.New("invalid retry config")
	// ErrInvalidPathSetting is the sentinel error wrapped by InvalidPathSettingError.
	ErrInvalidPathSetting = errors.New("invalid path setting")
)

type (
	// RetryConfig holds the retry policy applied to every externally
	// fallible provisioning step.
	RetryConfig struct {
		// Attempts is the total number of tries per step, including
		// the first one.
		Attempts int `mapstructure:"attempts"`
		// Delay is the fixed pause between consecutive attempts.
		Delay time.Duration `mapstructure:"delay"`
	}

	// InvalidRetryConfigError is returned when a retry setting is out
	// of range. It wraps ErrInvalidRetryConfig for errors.Is().
	InvalidRetryConfigError struct {
		Field  string
		Reason string
	}

	// InvalidPathSettingError is returned when a path setting is
	// whitespace-only. It wraps ErrInvalidPathSetting for errors.Is().
	InvalidPathSettingError struct {
		Field string
	}

	// Config is the resolved forgeenv application configuration.
	Config struct {
		// CacheDir is where downloaded archives are kept between runs.
		// Empty means the platform cache directory.
		CacheDir string `mapstructure:"cache_dir"`
		// InstallPrefix is the root directory tools are installed
		// under. Relative plan destinations resolve against it.
		InstallPrefix string `mapstructure:"install_prefix"`
		// Plan is the default plan file path used when --plan is not
		// given.
		Plan string `mapstructure:"plan"`
		// Verbose enables debug-level diagnostics.
		Verbose bool `mapstructure:"verbose"`
		// Retry is the step retry policy.
		Retry RetryConfig `mapstructure:"retry"`
	}
)

func (e *InvalidRetryConfigError) Error() string {
	return fmt.Sprintf("retry.%s: %s", e.Field, e.Reason)
}

func (e *InvalidRetryConfigError) Unwrap() error { return ErrInvalidRetryConfig }

func (e *InvalidPathSettingError) Error() string {
	return fmt.Sprintf("%s must not be blank", e.Field)
}

func (e *InvalidPathSettingError) Unwrap() error { return ErrInvalidPathSetting }

// DefaultConfig returns the built-in configuration values.
func DefaultConfig() *Config {
	return &Config{
		Plan: DefaultPlanFileName,
		Retry: RetryConfig{
			Attempts: retry.DefaultAttempts,
			Delay:    retry.DefaultDelay,
		},
	}
}

// Policy converts the retry settings into an executor policy.
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{Attempts: r.Attempts, Delay: r.Delay}
}

// Validate checks configuration invariants the file format cannot
// express.
func (c *Config) Validate() error {
	var errs []error

	if c.Retry.Attempts < 1 {
		errs = append(errs, &InvalidRetryConfigError{Field: "attempts", Reason: "must be at least 1"})
	}

	if c.Retry.Delay < 0 {
		errs = append(errs, &InvalidRetryConfigError{Field: "delay", Reason: "must not be negative"})
	}

	for field, value := range map[string]string{
		"cache_dir":      c.CacheDir,
		"install_prefix": c.InstallPrefix,
		"plan":           c.Plan,
	} {
		if value != "" && strings.TrimSpace(value) == "" {
			errs = append(errs, &InvalidPathSettingError{Field: field})
		}
	}

	return errors.Join(errs...)
}
