// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAPIURL is the public GitHub REST API endpoint.
	DefaultAPIURL = "https://api.github.com"

	// DefaultRepository is the owner/name of the ethos release repository.
	DefaultRepository = "ethos-cli/ethos"

	// DefaultRequestTimeout bounds a single release index query.
	DefaultRequestTimeout = 10 * time.Second

	// maxJSONResponseBytes caps a release index response (10 MB).
	maxJSONResponseBytes = 10 << 20
)

var (
	// ErrReleaseNotFound is returned when a requested release tag does not exist.
	ErrReleaseNotFound = errors.New("release not found")

	// ErrMalformedRelease is returned when the release index answers with a
	// document that has no usable tag.
	ErrMalformedRelease = errors.New("malformed release document")
)

type (
	// ReleaseSource reports the newest published ethos release.
	ReleaseSource interface {
		FetchLatest(ctx context.Context) (*LatestRelease, error)
	}

	// LatestRelease is the part of a release the update path acts on.
	// DownloadURL is empty when no asset targets the current platform; the
	// release is still reported so users can be told a new version exists.
	LatestRelease struct {
		Version      string // without the leading "v"
		DownloadURL  string
		AssetName    string
		ChecksumsURL string
		ReleaseURL   string
		Notes        string
	}

	// RateLimitError is returned when the GitHub API rate limit is exceeded.
	RateLimitError struct {
		Limit     int
		Remaining int
		ResetAt   time.Time
	}

	// Release represents a GitHub Release with its assets.
	Release struct {
		TagName    string
		Name       string
		Body       string // Markdown release notes
		Prerelease bool
		Draft      bool
		Assets     []Asset
		HTMLURL    string
	}

	// Asset represents a single downloadable file in a GitHub Release.
	Asset struct {
		Name               string
		BrowserDownloadURL string
		Size               int64
	}

	githubRelease struct {
		TagName    string        `json:"tag_name"`
		Name       string        `json:"name"`
		Body       string        `json:"body"`
		Prerelease bool          `json:"prerelease"`
		Draft      bool          `json:"draft"`
		HTMLURL    string        `json:"html_url"`
		Assets     []githubAsset `json:"assets"`
	}

	githubAsset struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
		Size               int64  `json:"size"`
	}

	// GitHubClient is the ReleaseSource backed by the GitHub Releases API.
	GitHubClient struct {
		httpClient *http.Client
		owner      string
		repo       string
		baseURL    string // overridable for tests and GitHub Enterprise
		token      string
		userAgent  string
		timeout    time.Duration
		platform   Platform
	}

	// ClientOption configures a GitHubClient during construction.
	ClientOption func(*GitHubClient)
)

// Error formats the rate limit details as a human-readable message.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API rate limit exceeded (%d remaining, resets at %s)",
		e.Remaining, e.ResetAt.UTC().Format("15:04 UTC"))
}

// WithHTTPClient sets a custom HTTP client, useful for tests or proxy configurations.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(g *GitHubClient) {
		g.httpClient = c
	}
}

// WithBaseURL overrides the GitHub API base URL.
func WithBaseURL(base string) ClientOption {
	return func(g *GitHubClient) {
		if base != "" {
			g.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithToken sets a GitHub token for authenticated requests, which have a
// higher rate limit (5000/hour vs 60/hour).
func WithToken(token string) ClientOption {
	return func(g *GitHubClient) {
		g.token = token
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(g *GitHubClient) {
		g.userAgent = ua
	}
}

// WithRepository sets the release repository from an "owner/name" string.
// Malformed values are ignored.
func WithRepository(ownerRepo string) ClientOption {
	return func(g *GitHubClient) {
		owner, repo, ok := strings.Cut(ownerRepo, "/")
		if ok && owner != "" && repo != "" && !strings.Contains(repo, "/") {
			g.owner = owner
			g.repo = repo
		}
	}
}

// WithRequestTimeout bounds each release index query.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(g *GitHubClient) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithPlatform selects assets for p instead of the running platform.
func WithPlatform(p Platform) ClientOption {
	return func(g *GitHubClient) {
		g.platform = p
	}
}

// NewGitHubClient creates a GitHubClient for the default ethos repository on
// api.github.com, selecting assets for the running platform.
func NewGitHubClient(opts ...ClientOption) *GitHubClient {
	owner, repo, _ := strings.Cut(DefaultRepository, "/")
	c := &GitHubClient{
		httpClient: http.DefaultClient,
		owner:      owner,
		repo:       repo,
		baseURL:    DefaultAPIURL,
		userAgent:  BinaryName + "/dev",
		timeout:    DefaultRequestTimeout,
		platform:   CurrentPlatform(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Repository returns the "owner/name" the client queries.
func (c *GitHubClient) Repository() string {
	return c.owner + "/" + c.repo
}

// FetchLatest implements ReleaseSource using /releases/latest, which GitHub
// resolves to the newest non-draft, non-prerelease release.
func (c *GitHubClient) FetchLatest(ctx context.Context) (*LatestRelease, error) {
	latestURL := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, c.owner, c.repo)

	rel, err := c.getRelease(ctx, latestURL)
	if err != nil {
		return nil, fmt.Errorf("fetching latest release: %w", err)
	}
	return c.Resolve(rel), nil
}

// GetReleaseByTag fetches a single release by its Git tag (e.g., "v1.0.0").
// Returns ErrReleaseNotFound if the tag does not correspond to a release.
func (c *GitHubClient) GetReleaseByTag(ctx context.Context, tag string) (*Release, error) {
	tagURL := fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s",
		c.baseURL, c.owner, c.repo, url.PathEscape(tag))

	rel, err := c.getRelease(ctx, tagURL)
	if err != nil {
		return nil, fmt.Errorf("getting release %s: %w", tag, err)
	}
	return rel, nil
}

// Resolve reduces a release to what the update path needs, selecting the
// archive for the client's platform.
func (c *GitHubClient) Resolve(rel *Release) *LatestRelease {
	latest := &LatestRelease{
		Version:    strings.TrimPrefix(rel.TagName, "v"),
		ReleaseURL: rel.HTMLURL,
		Notes:      rel.Body,
	}
	if asset, ok := c.platform.SelectAsset(rel.Assets); ok {
		latest.DownloadURL = asset.BrowserDownloadURL
		latest.AssetName = asset.Name
		// Only worth verifying when there is something to download.
		if sums, ok := findChecksumsAsset(rel.Assets); ok {
			latest.ChecksumsURL = sums.BrowserDownloadURL
		}
	}
	return latest
}

func (c *GitHubClient) getRelease(ctx context.Context, reqURL string) (*Release, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.doRequest(ctx, http.MethodGet, reqURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if err := checkRateLimit(resp); err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrReleaseNotFound
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var gr githubRelease
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&gr); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRelease, err)
	}
	if strings.TrimSpace(gr.TagName) == "" {
		return nil, fmt.Errorf("%w: empty tag_name", ErrMalformedRelease)
	}

	rel := toRelease(gr)
	return &rel, nil
}

// doRequest creates and executes an HTTP request with common GitHub API headers.
func (c *GitHubClient) doRequest(ctx context.Context, method, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.userAgent)

	// The token never leaves GitHub hosts.
	if c.token != "" && isGitHubHost(req.URL, c.baseURL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request to %s: %w", redactURL(reqURL), err)
	}

	return resp, nil
}

// checkRateLimit returns a RateLimitError when a 403 or 429 response carries
// an exhausted X-RateLimit-Remaining header. A successful response that used
// the last request of the quota is still a valid answer. Missing or malformed
// headers are ignored.
func checkRateLimit(resp *http.Response) error {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return nil
	}
	rem, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))
	if err != nil || rem > 0 {
		return nil //nolint:nilerr // Absent or non-numeric header is non-fatal.
	}

	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))                 //nolint:errcheck // Best-effort header parsing.
	resetUnix, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64) //nolint:errcheck // Best-effort header parsing.

	return &RateLimitError{
		Limit:     limit,
		Remaining: 0,
		ResetAt:   time.Unix(resetUnix, 0),
	}
}

func toRelease(gr githubRelease) Release {
	assets := make([]Asset, 0, len(gr.Assets))
	for _, ga := range gr.Assets {
		assets = append(assets, Asset(ga))
	}

	return Release{
		TagName:    gr.TagName,
		Name:       gr.Name,
		Body:       gr.Body,
		Prerelease: gr.Prerelease,
		Draft:      gr.Draft,
		Assets:     assets,
		HTMLURL:    gr.HTMLURL,
	}
}

// isGitHubHost reports whether reqURL targets the configured API host or, for
// the public API, github.com itself.
func isGitHubHost(reqURL *url.URL, baseURL string) bool {
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	if strings.EqualFold(reqURL.Host, base.Host) {
		return true
	}
	return strings.EqualFold(base.Host, "api.github.com") && strings.EqualFold(reqURL.Host, "github.com")
}

// redactURL strips query parameters and fragments from a URL for error messages.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
