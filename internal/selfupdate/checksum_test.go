// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethos-cli/ethos/internal/testutil"
)

func TestParseChecksums(t *testing.T) {
	t.Parallel()

	hashA := strings.Repeat("a", 64)
	hashB := strings.Repeat("B", 64)
	input := strings.Join([]string{
		hashA + "  ethos-linux-amd64.tar.gz",
		"",
		"not a checksum line",
		hashB + " *ethos-darwin-arm64.tar.gz",
		strings.Repeat("z", 64) + "  bad-hex.tar.gz",
		"abc123  too-short.tar.gz",
	}, "\n")

	sums, err := ParseChecksums(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseChecksums() error: %v", err)
	}
	if len(sums) != 2 {
		t.Fatalf("ParseChecksums() returned %d entries, want 2: %v", len(sums), sums)
	}

	got, err := sums.Lookup("ethos-linux-amd64.tar.gz")
	if err != nil || got != hashA {
		t.Errorf("Lookup(linux) = %q, %v", got, err)
	}
	got, err = sums.Lookup("ethos-darwin-arm64.tar.gz")
	if err != nil || got != strings.ToLower(hashB) {
		t.Errorf("Lookup(darwin) = %q, %v; want lowercased digest", got, err)
	}
	if _, err := sums.Lookup("missing.tar.gz"); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("Lookup(missing) error = %v, want ErrAssetNotFound", err)
	}
}

func TestParseChecksums_NoEntries(t *testing.T) {
	t.Parallel()

	if _, err := ParseChecksums(strings.NewReader("\n\ngarbage\n")); err == nil {
		t.Error("ParseChecksums() on garbage = nil error, want failure")
	}
}

func TestVerifyFile(t *testing.T) {
	t.Parallel()

	content := []byte("release archive bytes")
	path := filepath.Join(t.TempDir(), "archive.tar.gz")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	digest := testutil.SHA256Hex(content)

	if err := VerifyFile(path, "archive.tar.gz", strings.ToUpper(digest)); err != nil {
		t.Errorf("VerifyFile() with matching digest = %v", err)
	}

	err := VerifyFile(path, "archive.tar.gz", strings.Repeat("0", 64))
	var csErr *ChecksumError
	if !errors.As(err, &csErr) {
		t.Fatalf("VerifyFile() mismatch error = %v, want *ChecksumError", err)
	}
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Error("ChecksumError does not unwrap to ErrChecksumMismatch")
	}
	if csErr.Filename != "archive.tar.gz" || csErr.Got != digest {
		t.Errorf("ChecksumError = %+v", csErr)
	}

	if err := VerifyFile(filepath.Join(t.TempDir(), "missing"), "x", digest); err == nil {
		t.Error("VerifyFile() on missing file = nil error")
	}
}
