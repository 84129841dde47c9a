// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultCacheTTL is how long a release check is trusted before the release
// index is queried again.
const DefaultCacheTTL = 24 * time.Hour

type (
	// CheckResult is the answer to "is there a newer ethos?".
	CheckResult struct {
		CurrentVersion  string
		LatestVersion   string
		UpdateAvailable bool
		DownloadURL     string
		ChecksumsURL    string
		ReleaseURL      string
		Notes           string // release notes; only set by live queries
		CheckedAt       time.Time
		FromCache       bool
	}

	// Checker answers update checks from the version cache while it is fresh
	// and from the ReleaseSource otherwise.
	Checker struct {
		currentVersion string
		source         ReleaseSource
		store          Store
		ttl            time.Duration
		now            func() time.Time
		logger         *log.Logger
	}

	// CheckerOption configures a Checker during construction.
	CheckerOption func(*Checker)
)

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(ttl time.Duration) CheckerOption {
	return func(c *Checker) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock sets the time source used for cache freshness and timestamps.
func WithClock(now func() time.Time) CheckerOption {
	return func(c *Checker) {
		c.now = now
	}
}

// WithLogger sets the logger for cache and query diagnostics.
func WithLogger(l *log.Logger) CheckerOption {
	return func(c *Checker) {
		c.logger = orDiscard(l)
	}
}

// NewChecker returns a Checker comparing releases against currentVersion.
func NewChecker(currentVersion string, source ReleaseSource, store Store, opts ...CheckerOption) *Checker {
	c := &Checker{
		currentVersion: currentVersion,
		source:         source,
		store:          store,
		ttl:            DefaultCacheTTL,
		now:            time.Now,
		logger:         orDiscard(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckForUpdate answers from the cache when it is younger than the TTL and
// otherwise queries the release source and rewrites the cache. It never
// fails: an unreachable source is reported as "no update".
func (c *Checker) CheckForUpdate(ctx context.Context) *CheckResult {
	cache, err := c.store.LoadCache()
	if err != nil {
		c.logger.Debug("ignoring unreadable version cache", "err", err)
	}
	if cache != nil && c.fresh(cache) {
		return c.fromCache(cache)
	}

	result, err := c.Refresh(ctx)
	if err != nil {
		c.logger.Debug("release check failed", "err", err)
	}
	return result
}

// Refresh queries the release source regardless of the cache and persists
// the outcome. On failure the cache records the running version, so the
// source is not retried until the TTL elapses, and the error is returned
// alongside a result that reports no update.
func (c *Checker) Refresh(ctx context.Context) (*CheckResult, error) {
	result, entry, err := c.query(ctx)
	if saveErr := c.store.SaveCache(entry); saveErr != nil {
		c.logger.Debug("writing version cache", "err", saveErr)
	}
	return result, err
}

// Query asks the release source like Refresh but leaves the cache alone, so
// a background stager is still started by the next cache miss.
func (c *Checker) Query(ctx context.Context) (*CheckResult, error) {
	result, _, err := c.query(ctx)
	return result, err
}

func (c *Checker) query(ctx context.Context) (*CheckResult, *VersionCache, error) {
	latest, fetchErr := c.source.FetchLatest(ctx)
	entry := &VersionCache{CheckedAt: c.now(), LatestVersion: c.currentVersion}
	if fetchErr == nil {
		entry.LatestVersion = latest.Version
		entry.DownloadURL = latest.DownloadURL
		entry.ChecksumsURL = latest.ChecksumsURL
		entry.ReleaseURL = latest.ReleaseURL
	}

	result := c.fromCache(entry)
	result.FromCache = false
	if fetchErr == nil {
		result.Notes = latest.Notes
	}
	return result, entry, fetchErr
}

// fresh reports whether cache was written less than one TTL ago. An entry
// stamped in the future (clock skew) is never fresh.
func (c *Checker) fresh(cache *VersionCache) bool {
	age := c.now().Sub(cache.CheckedAt)
	return age >= 0 && age < c.ttl
}

func (c *Checker) fromCache(cache *VersionCache) *CheckResult {
	return &CheckResult{
		CurrentVersion:  c.currentVersion,
		LatestVersion:   cache.LatestVersion,
		UpdateAvailable: IsNewer(cache.LatestVersion, c.currentVersion),
		DownloadURL:     cache.DownloadURL,
		ChecksumsURL:    cache.ChecksumsURL,
		ReleaseURL:      cache.ReleaseURL,
		CheckedAt:       cache.CheckedAt,
		FromCache:       true,
	}
}
