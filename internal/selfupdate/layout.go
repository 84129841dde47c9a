// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
)

const (
	// BinaryName is the stable name of the ethos executable.
	BinaryName = "ethos"

	// HomeEnvVar overrides the root of the self-managed installation.
	HomeEnvVar = "ETHOS_HOME"

	// GuardEnvVar disables the update check and apply path for one invocation.
	// It is set on re-exec and on the background stager so neither recurses.
	GuardEnvVar = "ETHOS_NO_UPDATE_CHECK"

	defaultHomeDirName = ".ethos"
	versionsDirName    = "versions"
	currentLinkName    = "current"
	binDirName         = "bin"
	updatesDirName     = "updates"
	cacheFileName      = "version-cache.json"
	pendingFileName    = "pending.json"
	stageLogFileName   = "stage.log"

	// stagingPrefix marks in-progress extraction directories inside versions/.
	// They are never referenced by current and are pruned on activation.
	stagingPrefix = ".staging-"
	downloadGlob  = ".download-*"
)

// Layout is the directory convention shared by every component of the
// self-update path:
//
//	<Root>/versions/<version>/bin/ethos
//	<Root>/current -> versions/<version>
//	<Root>/bin/ethos -> ../current/bin/ethos
//	<Root>/updates/version-cache.json
//	<Root>/updates/pending.json
//
// Layout only computes paths; it never creates anything.
type Layout struct {
	Root string
}

// NewLayout returns a Layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{Root: filepath.Clean(root)}
}

// DefaultHome returns $ETHOS_HOME when set, otherwise ~/.ethos.
func DefaultHome() (string, error) {
	if home := os.Getenv(HomeEnvVar); home != "" {
		return filepath.Abs(home)
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving user home directory: %w", err)
	}
	return filepath.Join(userHome, defaultHomeDirName), nil
}

// VersionsDir holds one fully extracted release per subdirectory.
func (l Layout) VersionsDir() string { return filepath.Join(l.Root, versionsDirName) }

// VersionDir returns the directory a release is (or will be) extracted into.
// A leading "v" is dropped so "v2.0.0" and "2.0.0" share a directory.
func (l Layout) VersionDir(version string) string {
	return filepath.Join(l.VersionsDir(), versionDirName(version))
}

// CurrentLink is the symlink naming the active release.
func (l Layout) CurrentLink() string { return filepath.Join(l.Root, currentLinkName) }

// BinDir is the directory users put on PATH.
func (l Layout) BinDir() string { return filepath.Join(l.Root, binDirName) }

// BinLink is the stable executable symlink that resolves through current.
func (l Layout) BinLink() string { return filepath.Join(l.BinDir(), binaryFileName()) }

// UpdatesDir holds the cache, the pending marker and the stager log.
func (l Layout) UpdatesDir() string { return filepath.Join(l.Root, updatesDirName) }

// StageLog is the log file written by the detached stager.
func (l Layout) StageLog() string { return filepath.Join(l.UpdatesDir(), stageLogFileName) }

// Contains reports whether path lies strictly inside the installation root.
// Both paths are compared as given and, failing that, with symlinks resolved,
// so a root reached through a symlinked parent (e.g. /var -> /private/var)
// still matches the path returned by os.Executable.
func (l Layout) Contains(path string) bool {
	if path == "" || l.Root == "" {
		return false
	}
	if isWithin(l.Root, path) {
		return true
	}

	root, err := evalSymlinks(l.Root)
	if err != nil {
		return false
	}
	if resolved, err := evalSymlinks(path); err == nil {
		path = resolved
	}
	return isWithin(root, path)
}

// ActiveVersion returns the version current points at, or "" if current does
// not exist.
func (l Layout) ActiveVersion() (string, error) {
	target, err := os.Readlink(l.CurrentLink())
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", l.CurrentLink(), err)
	}
	return filepath.Base(target), nil
}

// InstalledVersions lists the extracted releases under versions/, newest
// first. Staging directories and temporary downloads are skipped.
func (l Layout) InstalledVersions() ([]string, error) {
	entries, err := os.ReadDir(l.VersionsDir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", l.VersionsDir(), err)
	}

	var versions []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		versions = append(versions, e.Name())
	}
	slices.SortFunc(versions, func(a, b string) int {
		return CompareVersions(b, a)
	})
	return versions, nil
}

// binaryFileName is the platform file name of the ethos executable.
func binaryFileName() string {
	if runtime.GOOS == "windows" {
		return BinaryName + ".exe"
	}
	return BinaryName
}

// versionBinary is the executable inside an extracted release directory.
func versionBinary(dir string) string {
	return filepath.Join(dir, binDirName, binaryFileName())
}

func versionDirName(version string) string {
	return strings.TrimPrefix(strings.TrimSpace(version), "v")
}

// validVersionDirName rejects versions that would escape versions/ or collide
// with the hidden staging entries.
func validVersionDirName(version string) bool {
	name := versionDirName(version)
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

// isWithin reports whether path is a strict descendant of root.
func isWithin(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil || rel == "." || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
