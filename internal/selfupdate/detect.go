// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
)

const (
	// homebrewMacARM is the Homebrew prefix on macOS ARM (Apple Silicon).
	homebrewMacARM = "/opt/homebrew/"

	// homebrewMacIntel is the Homebrew Cellar path on macOS Intel.
	homebrewMacIntel = "/usr/local/Cellar/"

	// homebrewLinux is the Linuxbrew prefix.
	homebrewLinux = "/home/linuxbrew/.linuxbrew/"

	// homebrewCellar catches custom Homebrew prefixes.
	homebrewCellar = "/Cellar/"

	// npmPackagesDir is present in every path npm installs a package under.
	npmPackagesDir = "/node_modules/"

	// goRunCacheDir is the toolchain's build cache; `go run` executes from it.
	goRunCacheDir = "/go-build"

	// modulePath confirms a GOPATH/bin binary was built from ethos sources.
	modulePath = "github.com/ethos-cli/ethos"

	// ReleasesPageURL is where users of unrecognized installs download releases.
	ReleasesPageURL = "https://github.com/ethos-cli/ethos/releases/latest"
)

const (
	// InstallMethodUnknown indicates the install method could not be determined,
	// typically a manual download or custom installation.
	InstallMethodUnknown InstallMethod = iota

	// InstallMethodCurl is the self-managed install created by the curl
	// installer under ETHOS_HOME. It is the only method that updates itself.
	InstallMethodCurl

	// InstallMethodHomebrew indicates installation via Homebrew.
	InstallMethodHomebrew

	// InstallMethodNPM indicates installation via the npm wrapper package.
	InstallMethodNPM

	// InstallMethodDev indicates a binary built from a source checkout.
	InstallMethodDev
)

var (
	// readBuildInfo is a test seam for debug.ReadBuildInfo.
	//
	//nolint:gochecknoglobals // Test seam requires a package-level variable.
	readBuildInfo = debug.ReadBuildInfo

	//nolint:gochecknoglobals // Test seam for os.Executable().
	osExecutable = os.Executable

	//nolint:gochecknoglobals // Test seam for filepath.EvalSymlinks().
	evalSymlinks = filepath.EvalSymlinks
)

type (
	// InstallMethod identifies how ethos was installed on the current system.
	InstallMethod int

	// InstallInfo is the classification of the running executable. It is
	// derived fresh on every invocation and never persisted.
	InstallInfo struct {
		Method             InstallMethod
		SupportsAutoUpdate bool
		UpdateCommand      string
	}
)

// String returns a human-readable name for the install method.
func (m InstallMethod) String() string {
	switch m {
	case InstallMethodCurl:
		return "curl"
	case InstallMethodHomebrew:
		return "homebrew"
	case InstallMethodNPM:
		return "npm"
	case InstallMethodDev:
		return "dev"
	case InstallMethodUnknown:
		return "unknown"
	}
	return "unknown"
}

// DetectInstallMethod classifies the executable at execPath. The first
// matching rule wins:
//  1. inside the self-managed layout root -> curl
//  2. a `go run` build cache path, or GOPATH/bin with ethos build info -> dev
//  3. a Homebrew prefix or Cellar -> homebrew
//  4. a node_modules directory -> npm
//  5. anything else -> unknown
//
// The self-managed check runs first because ETHOS_HOME may itself live under a
// path that looks like one of the others.
func DetectInstallMethod(execPath string, layout Layout) InstallInfo {
	method := classify(execPath, layout)
	return InstallInfo{
		Method:             method,
		SupportsAutoUpdate: method == InstallMethodCurl,
		UpdateCommand:      updateCommand(method),
	}
}

// ExecutablePath returns the absolute, symlink-resolved path of the running
// binary.
func ExecutablePath() (string, error) {
	p, err := osExecutable()
	if err != nil {
		return "", fmt.Errorf("determining executable path: %w", err)
	}

	resolved, err := evalSymlinks(p)
	if err != nil {
		return "", fmt.Errorf("resolving symlinks for %s: %w", p, err)
	}

	return resolved, nil
}

func classify(execPath string, layout Layout) InstallMethod {
	if layout.Contains(execPath) {
		return InstallMethodCurl
	}

	slashed := filepath.ToSlash(execPath)

	if strings.Contains(slashed, goRunCacheDir) || (isInGOPATHBin(execPath) && hasEthosModulePath()) {
		return InstallMethodDev
	}

	if strings.Contains(slashed, homebrewMacARM) ||
		strings.Contains(slashed, homebrewMacIntel) ||
		strings.Contains(slashed, homebrewLinux) ||
		strings.Contains(slashed, homebrewCellar) {
		return InstallMethodHomebrew
	}

	if strings.Contains(slashed, npmPackagesDir) {
		return InstallMethodNPM
	}

	return InstallMethodUnknown
}

func updateCommand(method InstallMethod) string {
	switch method {
	case InstallMethodCurl:
		return BinaryName + " upgrade"
	case InstallMethodHomebrew:
		return "brew upgrade " + BinaryName
	case InstallMethodNPM:
		return "npm install -g @ethos-cli/ethos@latest"
	case InstallMethodDev:
		return "git pull && go install ."
	case InstallMethodUnknown:
		return ReleasesPageURL
	}
	return ReleasesPageURL
}

// isInGOPATHBin checks whether the given path is inside $GOPATH/bin, falling
// back to ~/go when GOPATH is unset like the Go toolchain does.
func isInGOPATHBin(execPath string) bool {
	gopath := os.Getenv("GOPATH")
	if gopath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return false
		}
		gopath = filepath.Join(home, "go")
	}

	// The trailing separator matches the directory boundary, not a prefix
	// like /home/user/gobin vs /home/user/go/bin.
	gopathBin := filepath.Clean(filepath.Join(gopath, "bin"))
	return strings.HasPrefix(filepath.Clean(execPath), gopathBin+string(filepath.Separator))
}

// hasEthosModulePath reports whether the running binary's build info names the
// ethos module, which separates `go install` builds from binaries that were
// merely copied into GOPATH/bin.
func hasEthosModulePath() bool {
	info, ok := readBuildInfo()
	if !ok || info == nil {
		return false
	}
	return strings.HasPrefix(info.Path, modulePath)
}
