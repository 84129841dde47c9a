// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ethos-cli/ethos/internal/issue"
	"github.com/ethos-cli/ethos/internal/testutil"
)

// isolateEnv clears every variable that can change what loadWithOptions
// returns, so ambient ETHOS_* settings do not leak into the test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		ConfigEnvVar, "ETHOS_HOME", "ETHOS_UPDATES_ENABLED", "ETHOS_UPDATES_REPOSITORY",
		"ETHOS_UPDATES_API_URL", "ETHOS_UPDATES_CHECK_INTERVAL", "ETHOS_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	testutil.MustWriteFile(t, path, []byte(content), 0o644)
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Home != "" {
		t.Errorf("default home = %q, want empty", cfg.Home)
	}
	if !cfg.Updates.Enabled {
		t.Error("updates should be enabled by default")
	}
	if cfg.Updates.Repository != "ethos-cli/ethos" || cfg.Updates.APIURL != "https://api.github.com" {
		t.Errorf("default updates = %+v", cfg.Updates)
	}
	if cfg.Updates.CheckIntervalDuration() != 24*time.Hour {
		t.Errorf("default check interval = %v", cfg.Updates.CheckIntervalDuration())
	}
	if cfg.Log.Level != LogLevelWarn {
		t.Errorf("default log level = %q", cfg.Log.Level)
	}
	if valid, errs := cfg.IsValid(); !valid {
		t.Errorf("DefaultConfig() is invalid: %v", errs)
	}
}

func TestConfigDir(t *testing.T) {
	if runtime.GOOS == "linux" {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/test-xdg-config")
		dir, err := ConfigDir()
		if err != nil {
			t.Fatalf("ConfigDir() error: %v", err)
		}
		if want := filepath.Join("/tmp/test-xdg-config", AppName); dir != want {
			t.Errorf("ConfigDir() = %q, want %q", dir, want)
		}
	}
}

func TestLoad_DefaultsWhenNoConfigFile(t *testing.T) {
	isolateEnv(t)

	loaded, err := Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Path != "" {
		t.Errorf("Path = %q, want empty when no file exists", loaded.Path)
	}
	if *loaded.Config != *DefaultConfig() {
		t.Errorf("Config = %+v, want defaults", loaded.Config)
	}
}

func TestLoad_FromConfigDir(t *testing.T) {
	isolateEnv(t)

	dir := t.TempDir()
	path := writeConfig(t, dir, `
home: "/opt/ethos"
updates: {
	enabled: false
	repository: "acme/ethos-fork"
}
log: level: "debug"
`)

	loaded, err := Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Path != path {
		t.Errorf("Path = %q, want %q", loaded.Path, path)
	}

	cfg := loaded.Config
	if cfg.Home != "/opt/ethos" || cfg.Updates.Enabled || cfg.Updates.Repository != "acme/ethos-fork" || cfg.Log.Level != LogLevelDebug {
		t.Errorf("Config = %+v", cfg)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Updates.APIURL != DefaultAPIURL || cfg.Updates.CheckInterval != DefaultCheckInterval {
		t.Errorf("defaults lost for unset keys: %+v", cfg.Updates)
	}
}

func TestLoad_ExplicitPath(t *testing.T) {
	isolateEnv(t)

	path := writeConfig(t, t.TempDir(), `updates: check_interval: "90m"`)
	loaded, err := Load(context.Background(), LoadOptions{ConfigFilePath: path, ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	cfg := loaded.Config
	if cfg.Updates.CheckIntervalDuration() != 90*time.Minute {
		t.Errorf("check interval = %v, want 90m", cfg.Updates.CheckIntervalDuration())
	}
}

func TestLoad_ConfigEnvVar(t *testing.T) {
	isolateEnv(t)

	path := writeConfig(t, t.TempDir(), `log: level: "error"`)
	t.Setenv(ConfigEnvVar, path)

	loaded, err := Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Path != path || loaded.Config.Log.Level != LogLevelError {
		t.Errorf("loaded = %+v from %q", loaded.Config, loaded.Path)
	}
}

func TestLoad_ExplicitPathNotFound(t *testing.T) {
	isolateEnv(t)

	missing := filepath.Join(t.TempDir(), "nope.cue")
	_, err := Load(context.Background(), LoadOptions{ConfigFilePath: missing})

	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("Load() error = %v, want *issue.ActionableError", err)
	}
	if ae.Resource != missing || !ae.HasSuggestions() {
		t.Errorf("ActionableError = %+v", ae)
	}
	if !strings.Contains(ae.Format(false), "config file not found") {
		t.Errorf("Format() = %q", ae.Format(false))
	}
}

func TestLoad_SchemaViolations(t *testing.T) {
	isolateEnv(t)

	tests := []struct {
		name     string
		content  string
		wantPath string
	}{
		{"unknown field", `colour: "red"`, "colour"},
		{"malformed repository", `updates: repository: "no-slash"`, "updates.repository"},
		{"unknown log level", `log: level: "loud"`, "log.level"},
		{"wrong type", `updates: enabled: "yes"`, "updates.enabled"},
		{"bad duration", `updates: check_interval: "daily"`, "updates.check_interval"},
		{"non-http api url", `updates: api_url: "ftp://mirror"`, "updates.api_url"},
		{"blank home", `home: "   "`, "home"},
		{"syntax error", `updates: {`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.content)

			_, err := Load(context.Background(), LoadOptions{ConfigDirPath: dir})
			if err == nil {
				t.Fatal("Load() = nil error")
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) || ae.Operation != "load configuration" {
				t.Errorf("Load() error = %v, want a load configuration ActionableError", err)
			}
			if tt.wantPath != "" && !strings.Contains(err.Error(), tt.wantPath) {
				t.Errorf("error %q does not name %q", err, tt.wantPath)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolateEnv(t)

	dir := t.TempDir()
	writeConfig(t, dir, `updates: repository: "acme/from-file"`)
	t.Setenv("ETHOS_UPDATES_ENABLED", "false")
	t.Setenv("ETHOS_UPDATES_REPOSITORY", "acme/from-env")
	t.Setenv("ETHOS_LOG_LEVEL", "debug")
	t.Setenv("ETHOS_HOME", "/srv/ethos")

	loaded, err := Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	cfg := loaded.Config
	if cfg.Updates.Enabled || cfg.Updates.Repository != "acme/from-env" || cfg.Log.Level != LogLevelDebug || cfg.Home != "/srv/ethos" {
		t.Errorf("Config = %+v, want environment values", cfg)
	}
}

func TestLoad_InvalidEnvOverride(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ETHOS_LOG_LEVEL", "loud")

	_, err := Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if !errors.Is(err, ErrInvalidConfig) || !strings.Contains(err.Error(), `"loud"`) {
		t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Load(ctx, LoadOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestLoad_InvalidOptions(t *testing.T) {
	t.Parallel()

	_, err := Load(context.Background(), LoadOptions{ConfigFilePath: "  ", ConfigDirPath: "\t"})
	var optsErr *InvalidLoadOptionsError
	if !errors.As(err, &optsErr) || !errors.Is(err, ErrInvalidLoadOptions) {
		t.Fatalf("Load() error = %v, want *InvalidLoadOptionsError", err)
	}
	if len(optsErr.FieldErrors) != 2 {
		t.Errorf("FieldErrors = %v, want 2", optsErr.FieldErrors)
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	isolateEnv(t)

	want := &Config{
		Home: "/opt/ethos",
		Updates: UpdatesConfig{
			Enabled:       false,
			Repository:    "acme/ethos",
			APIURL:        "https://ghe.example.test/api/v3",
			CheckInterval: "6h",
		},
		Log: LogConfig{Level: LogLevelInfo},
	}

	dir := t.TempDir()
	writeConfig(t, dir, GenerateCUE(want))

	loaded, err := Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("loading generated config: %v\n%s", err, GenerateCUE(want))
	}
	if got := loaded.Config; *got != *want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}

	if strings.Contains(GenerateCUE(DefaultConfig()), "home:") {
		t.Error("GenerateCUE() should omit an empty home")
	}
}
