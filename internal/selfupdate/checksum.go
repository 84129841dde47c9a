// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	// ErrChecksumMismatch indicates a downloaded archive does not hash to the
	// value published in the release's checksums.txt.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrAssetNotFound indicates the archive is not listed in checksums.txt.
	ErrAssetNotFound = errors.New("asset not found in checksums")

	errNoValidEntries = errors.New("no valid checksum entries found")
)

type (
	// Checksums maps asset file names to lowercase hex SHA-256 digests.
	Checksums map[string]string

	// ChecksumError reports a digest mismatch. It unwraps to ErrChecksumMismatch.
	ChecksumError struct {
		Filename string
		Expected string
		Got      string
	}
)

// Error returns a human-readable description of the checksum mismatch.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum verification failed for %s\nExpected: %s\nGot:      %s", e.Filename, e.Expected, e.Got)
}

// Unwrap returns ErrChecksumMismatch so callers can use errors.Is.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// ParseChecksums reads sha256sum output: one "<hex digest> <mode><name>" per
// line, where mode is a space (text) or "*" (binary). Lines that do not carry
// a 64-character hex digest are skipped; an input with no usable lines is an
// error.
func ParseChecksums(r io.Reader) (Checksums, error) {
	sums := Checksums{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		hash, rest, ok := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		if !ok || !isValidHexHash(hash) {
			continue
		}
		name := strings.TrimPrefix(strings.TrimLeft(rest, " "), "*")
		if name == "" {
			continue
		}
		sums[name] = strings.ToLower(hash)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading checksums: %w", err)
	}
	if len(sums) == 0 {
		return nil, errNoValidEntries
	}
	return sums, nil
}

// Lookup returns the digest recorded for filename.
func (c Checksums) Lookup(filename string) (string, error) {
	if hash, ok := c[filename]; ok {
		return hash, nil
	}
	return "", fmt.Errorf("%w: %s", ErrAssetNotFound, filename)
}

// VerifyFile hashes the file at path and compares it with expectedHash,
// ignoring case. A mismatch is reported as a *ChecksumError naming label.
func VerifyFile(path, label, expectedHash string) error {
	got, err := ComputeFileHash(path)
	if err != nil {
		return err
	}

	if !strings.EqualFold(got, expectedHash) {
		return &ChecksumError{
			Filename: label,
			Expected: strings.ToLower(expectedHash),
			Got:      got,
		}
	}
	return nil
}

// ComputeFileHash streams the file at path through SHA-256 and returns the
// lowercase hex digest.
func ComputeFileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }() // read-only file handle

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func isValidHexHash(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
