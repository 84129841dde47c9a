// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/ethos-cli/ethos/internal/issue"
	"github.com/ethos-cli/ethos/internal/selfupdate"
)

var (
	errInvalidTargetVersion = errors.New("invalid target version")
	errNoReleaseAsset       = errors.New("release has no archive for this platform")
	errCheckFailed          = errors.New("checking for upgrade")
	errActivationFailed     = errors.New("activating update")
)

type (
	// releaseLookup resolves a pinned release tag.
	releaseLookup interface {
		GetReleaseByTag(ctx context.Context, tag string) (*selfupdate.Release, error)
		Resolve(rel *selfupdate.Release) *selfupdate.LatestRelease
	}

	// upgradeParams bundles the dependencies and flags for the upgrade command,
	// enabling the core logic in runUpgrade to be tested without a real Cobra
	// command or live GitHub API calls.
	upgradeParams struct {
		stdout   io.Writer
		stderr   io.Writer
		info     selfupdate.InstallInfo
		current  string
		checker  *selfupdate.Checker
		releases releaseLookup
		stager   *selfupdate.Stager
		applier  *selfupdate.Applier
		mdStyle  string
		target   string // target version (empty = latest)
		check    bool   // --check mode: report availability without installing
	}
)

// newUpgradeCommand creates the `ethos upgrade` command, the foreground
// counterpart of the background update path.
func newUpgradeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upgrade [version]",
		Short: "Update ethos to the latest release or a specific version",
		Long: `Update ethos to the latest release or a specific version.

The release index is always queried, ignoring the cached answer of the
background check. For installations made with the install script the
release is downloaded, its SHA256 checksum verified, and it is activated
immediately. Other installations are told which package manager to use.`,
		Example: `  # Upgrade to the latest release
  ethos upgrade

  # Check for updates without installing
  ethos upgrade --check

  # Install a specific version
  ethos upgrade v1.2.0`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			checkFlag, _ := cmd.Flags().GetBool("check")

			var target string
			if len(args) > 0 {
				target = args[0]
			}

			client := a.releaseClient(selfupdate.DefaultRequestTimeout)
			p := upgradeParams{
				stdout:   cmd.OutOrStdout(),
				stderr:   cmd.ErrOrStderr(),
				info:     a.installInfo(),
				current:  a.version,
				checker:  a.checker(client),
				releases: client,
				stager:   a.stager(a.logger),
				applier:  a.applier(nil),
				mdStyle:  a.mdStyle,
				target:   target,
				check:    checkFlag,
			}

			if err := runUpgrade(cmd.Context(), p); err != nil {
				fmt.Fprintln(p.stderr, formatUpgradeError(err, p.mdStyle))
				return &ExitError{Code: classifyUpgradeExitCode(err), Err: err}
			}
			return nil
		},
	}

	cmd.Flags().Bool("check", false, "Check for available upgrade without installing")

	return cmd
}

// runUpgrade is the core upgrade logic, separated from Cobra for testability.
//
// Flow:
//  1. Resolve the target: the latest release (refreshing the version cache)
//     or the pinned tag.
//  2. If the target is the running version, report and return.
//  3. If --check, print availability and release notes and return.
//  4. If the install is not self-managed, print the matching guidance.
//  5. Otherwise stage the release and activate it.
func runUpgrade(ctx context.Context, p upgradeParams) error {
	target, available, err := resolveUpgradeTarget(ctx, p)
	if err != nil {
		return err
	}

	fmt.Fprintf(p.stdout, "Current version: %s\n", displayVersion(p.current))
	fmt.Fprintf(p.stdout, "Target version:  %s\n", displayVersion(target.Version))

	if !available {
		fmt.Fprintln(p.stdout, "\nethos is up to date.")
		return nil
	}

	if p.check {
		fmt.Fprintf(p.stdout, "\nAn upgrade is available: %s → %s\n",
			displayVersion(p.current), displayVersion(target.Version))
		if notes := strings.TrimSpace(target.Notes); notes != "" {
			rendered, renderErr := glamour.Render(notes, p.mdStyle)
			if renderErr != nil {
				rendered = notes + "\n"
			}
			fmt.Fprint(p.stdout, rendered)
		}
		fmt.Fprintf(p.stdout, "Update with: %s\n", CmdStyle.Render(p.info.UpdateCommand))
		return nil
	}

	if !p.info.SupportsAutoUpdate {
		printIssue(p.stdout, manualUpdateIssue(p.info.Method), p.mdStyle)
		return nil
	}

	if target.DownloadURL == "" {
		return fmt.Errorf("%w (%s)", errNoReleaseAsset, selfupdate.CurrentPlatform())
	}

	fmt.Fprintf(p.stdout, "\nDownloading ethos %s...\n", displayVersion(target.Version))

	pending, err := p.stager.Stage(ctx, selfupdate.StageRequest{
		Version:      target.Version,
		DownloadURL:  target.DownloadURL,
		ChecksumsURL: target.ChecksumsURL,
	})
	if err != nil {
		return fmt.Errorf("downloading update: %w", err)
	}

	if err := p.applier.Activate(pending.Version, pending.Path); err != nil {
		return fmt.Errorf("%w: %w", errActivationFailed, err)
	}

	fmt.Fprintln(p.stdout, SuccessStyle.Render("Successfully upgraded to "+displayVersion(pending.Version)))
	return nil
}

// resolveUpgradeTarget returns the release to install and whether it differs
// from the running version. A pinned version may be older than the running
// one; only the latest release must be newer.
//
// --check does not write the version cache: the background path only stages
// after a cache miss, and a fresh "available" entry would hold it back.
func resolveUpgradeTarget(ctx context.Context, p upgradeParams) (*selfupdate.LatestRelease, bool, error) {
	if p.target == "" {
		query := p.checker.Refresh
		if p.check {
			query = p.checker.Query
		}
		res, err := query(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %w", errCheckFailed, err)
		}
		return &selfupdate.LatestRelease{
			Version:      res.LatestVersion,
			DownloadURL:  res.DownloadURL,
			ChecksumsURL: res.ChecksumsURL,
			ReleaseURL:   res.ReleaseURL,
			Notes:        res.Notes,
		}, res.UpdateAvailable, nil
	}

	tag := p.target
	if !strings.HasPrefix(tag, "v") {
		tag = "v" + tag
	}
	if !semver.IsValid(tag) {
		return nil, false, fmt.Errorf("%w: %q", errInvalidTargetVersion, p.target)
	}

	rel, err := p.releases.GetReleaseByTag(ctx, tag)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", errCheckFailed, err)
	}
	target := p.releases.Resolve(rel)
	return target, selfupdate.CompareVersions(target.Version, p.current) != 0, nil
}

// manualUpdateIssue picks the guidance for an install the updater does not own.
func manualUpdateIssue(method selfupdate.InstallMethod) issue.Id {
	switch method {
	case selfupdate.InstallMethodHomebrew:
		return issue.HomebrewUpdateRequiredId
	case selfupdate.InstallMethodNPM:
		return issue.NpmUpdateRequiredId
	case selfupdate.InstallMethodDev:
		return issue.DevBuildUpdateRequiredId
	default:
		return issue.UnknownInstallUpdateRequiredId
	}
}

// printIssue renders the issue with glamour, falling back to its raw markdown.
func printIssue(w io.Writer, id issue.Id, style string) {
	fmt.Fprint(w, renderIssue(id, style))
}

func renderIssue(id issue.Id, style string) string {
	is := issue.Get(id)
	if is == nil {
		return ""
	}
	out, err := is.Render(style)
	if err != nil {
		return is.Markdown()
	}
	return out
}

// classifyUpgradeExitCode maps an upgrade error to the appropriate process exit code.
// User-correctable failures use exit code 1; all other failures use exit
// code 2 (unexpected/transient).
func classifyUpgradeExitCode(err error) int {
	switch {
	case errors.Is(err, os.ErrPermission),
		errors.Is(err, selfupdate.ErrReleaseNotFound),
		errors.Is(err, errInvalidTargetVersion),
		errors.Is(err, errNoReleaseAsset):
		return 1
	default:
		return 2
	}
}

// formatUpgradeError renders err followed by the catalogued guidance for its kind.
func formatUpgradeError(err error, style string) string {
	msg := err.Error()
	var checksumErr *selfupdate.ChecksumError
	if errors.As(err, &checksumErr) {
		msg = fmt.Sprintf("checksum verification failed for %s\n\nExpected: %s\nGot:      %s",
			checksumErr.Filename, checksumErr.Expected, checksumErr.Got)
	}

	switch {
	case errors.Is(err, selfupdate.ErrReleaseNotFound):
		return fmt.Sprintf("%s\n\nSee %s for published versions.", msg, strings.TrimSuffix(selfupdate.ReleasesPageURL, "/latest"))
	case errors.Is(err, errInvalidTargetVersion):
		return fmt.Sprintf("%s\n\nVersions look like v1.2.3.", msg)
	}

	id, ok := upgradeIssue(err)
	if !ok {
		return fmt.Sprintf("%s\n\nCheck your network connection and try again.", msg)
	}
	return msg + "\n" + renderIssue(id, style)
}

// upgradeIssue picks the catalogued guidance for an upgrade failure.
// Permission problems win over the step that hit them.
func upgradeIssue(err error) (issue.Id, bool) {
	var checksumErr *selfupdate.ChecksumError
	var rateLimitErr *selfupdate.RateLimitError
	switch {
	case errors.As(err, &checksumErr):
		return issue.ChecksumMismatchId, true
	case errors.Is(err, os.ErrPermission):
		return issue.PermissionDeniedId, true
	case errors.Is(err, errNoReleaseAsset):
		return issue.NoReleaseAssetId, true
	case errors.Is(err, errActivationFailed):
		return issue.SwapFailedId, true
	case errors.As(err, &rateLimitErr), errors.Is(err, errCheckFailed):
		return issue.UpdateCheckFailedId, true
	}
	return 0, false
}
