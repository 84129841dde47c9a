// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"runtime"
	"strings"
)

const (
	// ArchiveSuffix is the only archive format release assets are published in.
	ArchiveSuffix = ".tar.gz"

	// checksumsAssetName is the sha256sum manifest attached to each release.
	checksumsAssetName = "checksums.txt"
)

//nolint:gochecknoglobals // Read-only alias tables.
var (
	osAliases = map[string][]string{
		"darwin":  {"darwin", "macos"},
		"linux":   {"linux"},
		"windows": {"windows", "win"},
		"freebsd": {"freebsd"},
	}

	archAliases = map[string][]string{
		"amd64": {"amd64", "x86_64", "x64"},
		"arm64": {"arm64", "aarch64"},
		"386":   {"386", "i386"},
		"arm":   {"armv7", "arm"},
	}
)

// Platform identifies the OS and architecture a release asset must target.
type Platform struct {
	OS   string
	Arch string
}

// CurrentPlatform returns the platform of the running binary.
func CurrentPlatform() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// String returns the canonical "<os>-<arch>" tag.
func (p Platform) String() string {
	return p.OS + "-" + p.Arch
}

// Tags returns every "<os><sep><arch>" spelling release pipelines commonly use
// for p, with "-" and "_" as separators.
func (p Platform) Tags() []string {
	oses := aliasesFor(osAliases, strings.ToLower(p.OS))
	arches := aliasesFor(archAliases, strings.ToLower(p.Arch))

	tags := make([]string, 0, len(oses)*len(arches)*2)
	for _, o := range oses {
		for _, a := range arches {
			tags = append(tags, o+"-"+a, o+"_"+a)
		}
	}
	return tags
}

// SelectAsset returns the first asset whose name carries one of p's tags and
// ends in ArchiveSuffix. Matching is case-insensitive.
func (p Platform) SelectAsset(assets []Asset) (Asset, bool) {
	tags := p.Tags()
	for _, a := range assets {
		name := strings.ToLower(a.Name)
		if !strings.HasSuffix(name, ArchiveSuffix) {
			continue
		}
		for _, tag := range tags {
			if matchesTag(name, tag) {
				return a, true
			}
		}
	}
	return Asset{}, false
}

// findChecksumsAsset returns the release's sha256sum manifest, if any.
func findChecksumsAsset(assets []Asset) (Asset, bool) {
	for _, a := range assets {
		name := strings.ToLower(a.Name)
		if name == checksumsAssetName || strings.HasSuffix(name, "_"+checksumsAssetName) {
			return a, true
		}
	}
	return Asset{}, false
}

// matchesTag requires the tag to sit between word boundaries so "linux-arm"
// does not claim "linux-arm64" and "win-x64" does not claim "darwin-x64".
func matchesTag(name, tag string) bool {
	for from := 0; from < len(name); {
		i := strings.Index(name[from:], tag)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(tag)
		startOK := start == 0 || !isAlnum(name[start-1])
		endOK := end == len(name) || !isAlnum(name[end])
		if startOK && endOK {
			return true
		}
		from = start + 1
	}
	return false
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

func aliasesFor(table map[string][]string, key string) []string {
	if aliases, ok := table[key]; ok {
		return aliases
	}
	return []string{key}
}
