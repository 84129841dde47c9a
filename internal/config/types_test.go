// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"
	"time"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level LogLevel
		want  bool
	}{
		{LogLevelDebug, true},
		{LogLevelInfo, true},
		{LogLevelWarn, true},
		{LogLevelError, true},
		{"", false},
		{"WARN", false},
		{"trace", false},
	}
	for _, tt := range tests {
		valid, errs := tt.level.IsValid()
		if valid != tt.want {
			t.Errorf("LogLevel(%q).IsValid() = %v, want %v", tt.level, valid, tt.want)
		}
		if !tt.want && (len(errs) != 1 || !errors.Is(errs[0], ErrInvalidLogLevel)) {
			t.Errorf("LogLevel(%q) errors = %v", tt.level, errs)
		}
	}
}

func TestRepository_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		repo Repository
		want bool
	}{
		{"ethos-cli/ethos", true},
		{"a/b", true},
		{"", false},
		{"ethos", false},
		{"/ethos", false},
		{"ethos-cli/", false},
		{"a/b/c", false},
		{" ethos-cli/ethos", false},
	}
	for _, tt := range tests {
		valid, errs := tt.repo.IsValid()
		if valid != tt.want {
			t.Errorf("Repository(%q).IsValid() = %v, want %v", tt.repo, valid, tt.want)
		}
		if !tt.want && !errors.Is(errs[0], ErrInvalidRepository) {
			t.Errorf("Repository(%q) error = %v", tt.repo, errs[0])
		}
	}
}

func TestHomeDirPath_IsValid(t *testing.T) {
	t.Parallel()

	for path, want := range map[HomeDirPath]bool{"": true, "/opt/ethos": true, "  ": false, "\t\n": false} {
		if valid, _ := path.IsValid(); valid != want {
			t.Errorf("HomeDirPath(%q).IsValid() = %v, want %v", path, valid, want)
		}
	}
}

func TestUpdatesConfig_IsValid(t *testing.T) {
	t.Parallel()

	base := DefaultConfig().Updates
	tests := []struct {
		name   string
		mutate func(*UpdatesConfig)
		want   bool
	}{
		{"defaults", func(*UpdatesConfig) {}, true},
		{"enterprise api", func(c *UpdatesConfig) { c.APIURL = "http://ghe.local/api/v3" }, true},
		{"relative api url", func(c *UpdatesConfig) { c.APIURL = "/api" }, false},
		{"zero interval", func(c *UpdatesConfig) { c.CheckInterval = "0s" }, false},
		{"negative interval", func(c *UpdatesConfig) { c.CheckInterval = "-1h" }, false},
		{"bad repository", func(c *UpdatesConfig) { c.Repository = "nope" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := base
			tt.mutate(&c)
			valid, errs := c.IsValid()
			if valid != tt.want {
				t.Fatalf("IsValid() = %v (%v), want %v", valid, errs, tt.want)
			}
			if !tt.want && !errors.Is(errs[0], ErrInvalidUpdatesConfig) {
				t.Errorf("error = %v, want ErrInvalidUpdatesConfig", errs[0])
			}
		})
	}
}

func TestConfig_IsValid_CollectsFieldErrors(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Home = " "
	cfg.Log.Level = "loud"

	valid, errs := cfg.IsValid()
	if valid || len(errs) != 1 {
		t.Fatalf("IsValid() = %v, %v", valid, errs)
	}
	var cfgErr *InvalidConfigError
	if !errors.As(errs[0], &cfgErr) || len(cfgErr.FieldErrors) != 2 {
		t.Errorf("error = %v, want two field errors", errs[0])
	}
}

func TestCheckIntervalDuration_FallsBack(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "soon", "-5m", "0"} {
		c := UpdatesConfig{CheckInterval: raw}
		if got := c.CheckIntervalDuration(); got != 24*time.Hour {
			t.Errorf("CheckIntervalDuration(%q) = %v, want 24h", raw, got)
		}
	}
}
