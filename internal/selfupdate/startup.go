// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
)

// Startup runs the update path once at the start of an invocation: activate a
// pending release if there is one, otherwise check for a newer release and
// either stage it in the background or tell the user how to update.
type Startup struct {
	Info     InstallInfo
	Applier  *Applier
	Checker  *Checker
	Fetcher  BackgroundFetcher
	Notifier Notifier
	Logger   *log.Logger
}

// GuardActive reports whether value, the content of GuardEnvVar, disables
// the update path.
func GuardActive(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// Run executes the update path for args, the invocation's arguments without
// the program name. When exit is true the caller must terminate with code: the
// command has already run under the newly activated version.
func (s *Startup) Run(ctx context.Context, args []string) (code int, exit bool) {
	logger := orDiscard(s.Logger)

	if s.Applier != nil {
		res := s.Applier.Apply(ctx, s.Info, args)
		logger.Debug("pending update", "state", res.State, "version", res.Version)
		if res.State == ApplyApplied {
			if res.Reexeced {
				return res.ExitCode, true
			}
			// This process is still the old version; checking now would
			// compare against a stale running version.
			return 0, false
		}
	}

	if s.Checker == nil {
		return 0, false
	}

	check := s.Checker.CheckForUpdate(ctx)
	logger.Debug("update check", "current", check.CurrentVersion, "latest", check.LatestVersion,
		"available", check.UpdateAvailable, "cached", check.FromCache)
	if !check.UpdateAvailable {
		return 0, false
	}

	if !s.Info.SupportsAutoUpdate {
		if s.Notifier != nil {
			command := s.Info.UpdateCommand
			if s.Info.Method == InstallMethodUnknown && check.ReleaseURL != "" {
				command = check.ReleaseURL
			}
			s.Notifier.Available(check.LatestVersion, command)
		}
		return 0, false
	}

	if check.DownloadURL == "" {
		logger.Debug("no release asset for this platform", "platform", CurrentPlatform(), "version", check.LatestVersion)
		return 0, false
	}

	// Only a live query starts a download. Within the TTL window a failed
	// stager is therefore not retried on every invocation. Any pending marker
	// has already been consumed by the applier above.
	if check.FromCache {
		return 0, false
	}

	if s.Fetcher != nil {
		req := StageRequest{
			Version:      check.LatestVersion,
			DownloadURL:  check.DownloadURL,
			ChecksumsURL: check.ChecksumsURL,
		}
		if err := s.Fetcher.Spawn(req); err != nil {
			logger.Debug("starting background update", "err", err)
		}
	}
	return 0, false
}
