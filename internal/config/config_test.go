// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"forgeenv-cli/internal/retry"
)

func TestLoadDefaults(t *testing.T) {
	SetConfigDirOverride(t.TempDir())
	t.Cleanup(Reset)

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Plan != DefaultPlanFileName {
		t.Errorf("Plan = %q, want %q", cfg.Plan, DefaultPlanFileName)
	}

	if cfg.Retry.Attempts != retry.DefaultAttempts {
		t.Errorf("Retry.Attempts = %d, want %d", cfg.Retry.Attempts, retry.DefaultAttempts)
	}

	if cfg.Retry.Delay != retry.DefaultDelay {
		t.Errorf("Retry.Delay = %v, want %v", cfg.Retry.Delay, retry.DefaultDelay)
	}

	if cfg.Verbose {
		t.Error("Verbose should default to false")
	}
}

func TestLoadFromConfigDir(t *testing.T) {
	dir := t.TempDir()
	SetConfigDirOverride(dir)
	t.Cleanup(Reset)

	content := `
cache_dir = "/var/cache/forge"
plan = "builder.toml"

[retry]
attempts = 3
delay = "2s"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.CacheDir != "/var/cache/forge" {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}

	if cfg.Plan != "builder.toml" {
		t.Errorf("Plan = %q", cfg.Plan)
	}

	if cfg.Retry.Attempts != 3 {
		t.Errorf("Retry.Attempts = %d, want 3", cfg.Retry.Attempts)
	}

	if cfg.Retry.Delay != 2*time.Second {
		t.Errorf("Retry.Delay = %v, want 2s", cfg.Retry.Delay)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	SetConfigDirOverride(t.TempDir())
	t.Cleanup(Reset)

	path := filepath.Join(t.TempDir(), "custom.toml")
	if err := os.WriteFile(path, []byte(`install_prefix = "/opt/forge"`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.InstallPrefix != "/opt/forge" {
		t.Errorf("InstallPrefix = %q", cfg.InstallPrefix)
	}
}

func TestLoadExplicitFileMissing(t *testing.T) {
	SetConfigDirOverride(t.TempDir())
	t.Cleanup(Reset)

	_, err := NewProvider().Load(context.Background(), LoadOptions{
		ConfigFilePath: filepath.Join(t.TempDir(), "absent.toml"),
	})
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}

	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	SetConfigDirOverride(dir)
	t.Cleanup(Reset)

	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("retry = {{"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewProvider().Load(context.Background(), LoadOptions{}); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	SetConfigDirOverride(t.TempDir())
	t.Cleanup(Reset)

	t.Setenv("FORGEENV_RETRY_ATTEMPTS", "2")
	t.Setenv("FORGEENV_VERBOSE", "true")

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Retry.Attempts != 2 {
		t.Errorf("Retry.Attempts = %d, want 2", cfg.Retry.Attempts)
	}

	if !cfg.Verbose {
		t.Error("Verbose should be true from env")
	}
}

func TestLoadCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewProvider().Load(ctx, LoadOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Retry.Attempts = 0 },
			wantErr: ErrInvalidRetryConfig,
		},
		{
			name:    "negative delay",
			mutate:  func(c *Config) { c.Retry.Delay = -time.Second },
			wantErr: ErrInvalidRetryConfig,
		},
		{
			name:    "blank cache dir",
			mutate:  func(c *Config) { c.CacheDir = "   " },
			wantErr: ErrInvalidPathSetting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate failed: %v", err)
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateTOMLRoundTrips(t *testing.T) {
	SetConfigDirOverride(t.TempDir())
	t.Cleanup(Reset)

	cfg := DefaultConfig()
	cfg.CacheDir = "/tmp/cache"
	cfg.Retry.Attempts = 4

	path := filepath.Join(t.TempDir(), "gen.toml")
	if err := os.WriteFile(path, []byte(GenerateTOML(cfg)), 0o600); err != nil {
		t.Fatal(err)
	}

	loaded, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.CacheDir != cfg.CacheDir || loaded.Retry.Attempts != cfg.Retry.Attempts {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}
