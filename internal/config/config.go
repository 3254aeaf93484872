// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"forgeenv-cli/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "forgeenv"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "toml"
	// DefaultPlanFileName is the plan file looked up in the working
	// directory when no --plan flag or config entry names one.
	DefaultPlanFileName = "forgeenv.toml"

	envPrefix = "FORGEENV"
)

// LoadOptions defines explicit configuration loading inputs.
type LoadOptions struct {
	// ConfigFilePath forces loading from a specific config file when set.
	ConfigFilePath string
	// ConfigDirPath overrides the config directory lookup when set.
	ConfigDirPath string
}

// Provider loads configuration from explicit options.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (*Config, error)
}

type fileProvider struct{}

// NewProvider creates a configuration provider.
func NewProvider() Provider {
	return &fileProvider{}
}

// Load reads configuration from the requested source.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg, _, err := loadWithOptions(ctx, opts)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ConfigDir returns the forgeenv configuration directory using
// platform-specific conventions: Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, and Linux/others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// CacheDir returns the forgeenv download cache directory, honoring the
// platform cache conventions via os.UserCacheDir.
func CacheDir() (string, error) {
	if cacheDirOverride != "" {
		return cacheDirOverride, nil
	}

	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get cache directory: %w", err)
	}

	return filepath.Join(base, AppName), nil
}

// InstallPrefixDir returns the default install prefix, derived from the
// platform data directory ($XDG_DATA_HOME or ~/.local/share on Linux).
func InstallPrefixDir() (string, error) {
	if runtime.GOOS == "linux" {
		if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
			return filepath.Join(dataHome, AppName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".local", "share", AppName), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. The second return value is the resolved config
// file path, empty when only defaults and env vars applied.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("cache_dir", defaults.CacheDir)
	v.SetDefault("install_prefix", defaults.InstallPrefix)
	v.SetDefault("plan", defaults.Plan)
	v.SetDefault("verbose", defaults.Verbose)
	v.SetDefault("retry.attempts", defaults.Retry.Attempts)
	v.SetDefault("retry.delay", defaults.Retry.Delay)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""

	// If a custom config file path is set via --config, use it exclusively.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithSuggestion("Use 'forgeenv config show' to see default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}

		if err := readFileIntoViper(v, opts.ConfigFilePath); err != nil {
			return nil, "", wrapConfigParseError(opts.ConfigFilePath, err)
		}

		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}

		tomlPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(tomlPath) {
			if err := readFileIntoViper(v, tomlPath); err != nil {
				return nil, "", wrapConfigParseError(tomlPath, err)
			}

			resolvedPath = tomlPath
		}
		// If no config file found, use defaults (no error)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check retry.attempts is at least 1 and retry.delay is not negative").
			WithSuggestion("See 'forgeenv config --help' for configuration options").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

func readFileIntoViper(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	v.SetConfigType(ConfigFileExt)

	return v.ReadInConfig()
}

func wrapConfigParseError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid TOML syntax").
		WithSuggestion("Verify the configuration keys match the documented settings").
		WithSuggestion("See 'forgeenv config --help' for configuration options").
		Wrap(err).
		BuildError()
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(cfgDir, 0o755)
}

// GenerateTOML renders a TOML representation of the configuration,
// suitable for seeding a new config file or for 'config show'.
func GenerateTOML(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("# forgeenv configuration file.\n\n")

	if cfg.CacheDir != "" {
		sb.WriteString(fmt.Sprintf("cache_dir = %q\n", cfg.CacheDir))
	}

	if cfg.InstallPrefix != "" {
		sb.WriteString(fmt.Sprintf("install_prefix = %q\n", cfg.InstallPrefix))
	}

	sb.WriteString(fmt.Sprintf("plan = %q\n", cfg.Plan))
	sb.WriteString(fmt.Sprintf("verbose = %v\n", cfg.Verbose))

	sb.WriteString("\n[retry]\n")
	sb.WriteString(fmt.Sprintf("attempts = %d\n", cfg.Retry.Attempts))
	sb.WriteString(fmt.Sprintf("delay = %q\n", cfg.Retry.Delay))

	return sb.String()
}
