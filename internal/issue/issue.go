// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	HomebrewUpdateRequiredId Id = iota + 1
	NpmUpdateRequiredId
	DevBuildUpdateRequiredId
	UnknownInstallUpdateRequiredId
	UpdateCheckFailedId
	NoReleaseAssetId
	ChecksumMismatchId
	SwapFailedId
	ConfigLoadFailedId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Markdown returns the message with a "See also" section listing the links.
func (i *Issue) Markdown() string {
	var sb strings.Builder
	sb.WriteString(string(i.mdMsg))

	links := append(i.DocLinks(), i.extLinks...)
	if len(links) > 0 {
		sb.WriteString("\n\n## See also:\n")
		for _, link := range links {
			sb.WriteString("- <" + string(link) + ">\n")
		}
	}
	return sb.String()
}

// Render renders the issue for the terminal. stylePath is a glamour style
// name ("dark", "light", "notty", ...) or a path to a JSON style file.
func (i *Issue) Render(stylePath string) (string, error) {
	return render(i.Markdown(), stylePath)
}

const releasesURL HttpLink = "https://github.com/ethos-cli/ethos/releases"

var (
	render = glamour.Render

	homebrewUpdateRequiredIssue = &Issue{
		id: HomebrewUpdateRequiredId,
		mdMsg: `
# ethos is managed by Homebrew

This copy of ethos was installed with Homebrew, so it cannot replace itself.

## Things you can try:
- Upgrade through Homebrew:
~~~
$ brew upgrade ethos
~~~

- Or switch to the self-updating install:
~~~
$ brew uninstall ethos
$ curl -fsSL https://ethos.dev/install.sh | sh
~~~`,
		extLinks: []HttpLink{"https://docs.brew.sh/FAQ#how-do-i-update-my-local-packages"},
	}

	npmUpdateRequiredIssue = &Issue{
		id: NpmUpdateRequiredId,
		mdMsg: `
# ethos is managed by npm

This copy of ethos lives in a global node_modules directory and is updated
through npm.

## Things you can try:
- Install the latest release:
~~~
$ npm install -g @ethos-cli/ethos@latest
~~~

- If the command fails with EACCES, fix the npm prefix permissions instead of
  running npm with sudo.`,
		extLinks: []HttpLink{"https://docs.npmjs.com/resolving-eacces-permissions-errors-when-installing-packages-globally"},
	}

	devBuildUpdateRequiredIssue = &Issue{
		id: DevBuildUpdateRequiredId,
		mdMsg: `
# This is a development build

ethos was built from source with the Go toolchain, so updates come from your
checkout.

## Things you can try:
- Rebuild from the latest sources:
~~~
$ git pull && go install .
~~~`,
	}

	unknownInstallUpdateRequiredIssue = &Issue{
		id: UnknownInstallUpdateRequiredId,
		mdMsg: `
# ethos cannot update this installation

The running executable is not inside the ethos home directory
(` + "`$ETHOS_HOME`" + `, by default ` + "`~/.ethos`" + `) and was not installed by a
package manager ethos recognizes.

## Things you can try:
- Download the release archive for your platform and replace the binary
- Reinstall with the installer script to get automatic updates:
~~~
$ curl -fsSL https://ethos.dev/install.sh | sh
~~~`,
		docLinks: []HttpLink{releasesURL},
	}

	updateCheckFailedIssue = &Issue{
		id: UpdateCheckFailedId,
		mdMsg: `
# Could not reach the release server

ethos could not fetch the latest release information.

## Common causes:
- No network connection, or a proxy blocking api.github.com
- The GitHub API rate limit for unauthenticated requests was reached

## Things you can try:
- Set a token to raise the rate limit:
~~~
$ export GITHUB_TOKEN=<token>
~~~

- Retry later; background checks run at most once a day`,
		extLinks: []HttpLink{"https://docs.github.com/rest/using-the-rest-api/rate-limits-for-the-rest-api"},
	}

	noReleaseAssetIssue = &Issue{
		id: NoReleaseAssetId,
		mdMsg: `
# No download for this platform

The latest release does not publish an archive for this operating system
and architecture.

## Things you can try:
- Check the release page for a compatible build
- Build from source with ` + "`go install`",
		docLinks: []HttpLink{releasesURL},
	}

	checksumMismatchIssue = &Issue{
		id: ChecksumMismatchId,
		mdMsg: `
# Downloaded release failed verification

The archive's SHA-256 digest does not match the release's checksums.txt.
Nothing was installed.

## Things you can try:
- Run ` + "`ethos upgrade`" + ` again; a truncated download is the usual cause
- If the mismatch persists, report it: the published archive may have been
  replaced`,
		docLinks: []HttpLink{releasesURL},
	}

	swapFailedIssue = &Issue{
		id: SwapFailedId,
		mdMsg: `
# Could not activate the new version

The release was downloaded but the ` + "`current`" + ` link could not be switched to
it. The previously installed version is still active.

## Things you can try:
- Check that ` + "`$ETHOS_HOME/current`" + ` and ` + "`$ETHOS_HOME/bin/ethos`" + ` are symlinks
  and not regular files or directories
- Reinstall with the installer script`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load the ethos configuration file.

## Configuration file locations:
- Linux: ~/.config/ethos/config.cue
- macOS: ~/Library/Application Support/ethos/config.cue
- Windows: %APPDATA%\ethos\config.cue

## Things you can try:
- Check the configuration syntax
- Remove the config file to use defaults

## Example configuration:
~~~cue
updates: {
  enabled: true
  repository: "ethos-cli/ethos"
}

log: level: "warn"
~~~`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied

ethos cannot write to its home directory, so updates cannot be staged or
activated.

## Things you can try:
- Make sure you own the directory:
~~~
$ ls -ld ~/.ethos
~~~

- Do not run ethos with sudo; a root-owned file inside the home directory
  blocks later updates`,
	}

	issues = map[Id]*Issue{
		homebrewUpdateRequiredIssue.Id():       homebrewUpdateRequiredIssue,
		npmUpdateRequiredIssue.Id():            npmUpdateRequiredIssue,
		devBuildUpdateRequiredIssue.Id():       devBuildUpdateRequiredIssue,
		unknownInstallUpdateRequiredIssue.Id(): unknownInstallUpdateRequiredIssue,
		updateCheckFailedIssue.Id():            updateCheckFailedIssue,
		noReleaseAssetIssue.Id():               noReleaseAssetIssue,
		checksumMismatchIssue.Id():             checksumMismatchIssue,
		swapFailedIssue.Id():                   swapFailedIssue,
		configLoadFailedIssue.Id():             configLoadFailedIssue,
		permissionDeniedIssue.Id():             permissionDeniedIssue,
	}
)

// Values returns every registered issue ordered by Id.
func Values() []*Issue {
	all := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		all = append(all, i)
	}
	slices.SortFunc(all, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return all
}

func Get(id Id) *Issue {
	return issues[id]
}
