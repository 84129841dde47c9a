// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// LogLevelDebug logs update decisions, cache hits and HTTP failures.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs staging and activation.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs only problems the user may want to act on.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs failures only.
	LogLevelError LogLevel = "error"

	// DefaultRepository is the GitHub repository ethos releases are published to.
	DefaultRepository Repository = "ethos-cli/ethos"
	// DefaultAPIURL is the public GitHub REST API.
	DefaultAPIURL = "https://api.github.com"
	// DefaultCheckInterval is how long a release check is cached.
	DefaultCheckInterval = "24h"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidRepository is returned when a Repository is not "owner/name".
	ErrInvalidRepository = errors.New("invalid repository")
	// ErrInvalidHomeDirPath is returned when a HomeDirPath is whitespace-only.
	ErrInvalidHomeDirPath = errors.New("invalid home directory path")
	// ErrInvalidUpdatesConfig is the sentinel error wrapped by InvalidUpdatesConfigError.
	ErrInvalidUpdatesConfig = errors.New("invalid updates config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level the foreground logger prints.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// Repository names a GitHub repository as "owner/name".
	Repository string

	// InvalidRepositoryError is returned when a Repository is malformed.
	InvalidRepositoryError struct {
		Value Repository
	}

	// HomeDirPath is the root of the self-managed installation.
	// The zero value ("") is valid and means "use $ETHOS_HOME or ~/.ethos".
	HomeDirPath string

	// InvalidHomeDirPathError is returned when a HomeDirPath value is
	// non-empty but whitespace-only.
	InvalidHomeDirPathError struct {
		Value HomeDirPath
	}

	// InvalidUpdatesConfigError collects the field errors of an UpdatesConfig.
	InvalidUpdatesConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError collects the field errors of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Home overrides the installation root
		Home HomeDirPath `json:"home" mapstructure:"home"`
		// Updates configures the self-update path
		Updates UpdatesConfig `json:"updates" mapstructure:"updates"`
		// Log configures diagnostic output
		Log LogConfig `json:"log" mapstructure:"log"`
	}

	// UpdatesConfig configures release checks and automatic updates.
	UpdatesConfig struct {
		// Enabled turns the startup check and background staging on or off (default: true)
		Enabled bool `json:"enabled" mapstructure:"enabled"`
		// Repository is the GitHub repository releases come from
		Repository Repository `json:"repository" mapstructure:"repository"`
		// APIURL is the GitHub REST API base URL
		APIURL string `json:"api_url" mapstructure:"api_url"`
		// CheckInterval is the version cache TTL as a Go duration string
		CheckInterval string `json:"check_interval" mapstructure:"check_interval"`
	}

	// LogConfig configures diagnostic logging.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level"`
	}
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Home: "", // $ETHOS_HOME or ~/.ethos
		Updates: UpdatesConfig{
			Enabled:       true,
			Repository:    DefaultRepository,
			APIURL:        DefaultAPIURL,
			CheckInterval: DefaultCheckInterval,
		},
		Log: LogConfig{Level: LogLevelWarn},
	}
}

// CheckIntervalDuration parses CheckInterval. Unparseable or non-positive
// values fall back to the default interval.
func (c UpdatesConfig) CheckIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.CheckInterval)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultCheckInterval)
	}
	return d
}

// IsValid returns whether the UpdatesConfig has valid fields.
func (c UpdatesConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Repository.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if u, err := url.Parse(c.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api_url %q must be an absolute http(s) URL", c.APIURL))
	}
	if d, err := time.ParseDuration(c.CheckInterval); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("check_interval %q must be a positive duration", c.CheckInterval))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidUpdatesConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidUpdatesConfigError.
func (e *InvalidUpdatesConfigError) Error() string {
	return fmt.Sprintf("invalid updates config: %s", joinErrors(e.FieldErrors))
}

// Unwrap returns ErrInvalidUpdatesConfig for errors.Is() compatibility.
func (e *InvalidUpdatesConfigError) Unwrap() error { return ErrInvalidUpdatesConfig }

// IsValid returns whether the Config has valid fields.
// It delegates to Home.IsValid(), Updates.IsValid() and Log.Level.IsValid().
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Home.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Updates.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Log.Level.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s", joinErrors(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

func (r Repository) String() string { return string(r) }

// IsValid returns whether the Repository has exactly one "/" with non-empty
// owner and name.
func (r Repository) IsValid() (bool, []error) {
	owner, name, ok := strings.Cut(string(r), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") || strings.TrimSpace(string(r)) != string(r) {
		return false, []error{&InvalidRepositoryError{Value: r}}
	}
	return true, nil
}

// Error implements the error interface for InvalidRepositoryError.
func (e *InvalidRepositoryError) Error() string {
	return fmt.Sprintf("invalid repository %q (expected owner/name)", e.Value)
}

// Unwrap returns ErrInvalidRepository for errors.Is() compatibility.
func (e *InvalidRepositoryError) Unwrap() error { return ErrInvalidRepository }

func (p HomeDirPath) String() string { return string(p) }

// IsValid returns whether the HomeDirPath is empty or contains non-whitespace.
func (p HomeDirPath) IsValid() (bool, []error) {
	if p != "" && strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidHomeDirPathError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidHomeDirPathError.
func (e *InvalidHomeDirPathError) Error() string {
	return fmt.Sprintf("invalid home directory path %q: must not be whitespace-only", e.Value)
}

// Unwrap returns ErrInvalidHomeDirPath for errors.Is() compatibility.
func (e *InvalidHomeDirPathError) Unwrap() error { return ErrInvalidHomeDirPath }

func joinErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
