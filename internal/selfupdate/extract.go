// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// maxExtractedBytes caps the total uncompressed size of a release (1 GB).
const maxExtractedBytes = 1 << 30

var (
	// ErrUnsafeArchiveEntry is returned for entries that would land outside
	// the extraction directory.
	ErrUnsafeArchiveEntry = errors.New("unsafe archive entry")

	// ErrMissingBinary is returned when an extracted release has no bin/ethos.
	ErrMissingBinary = errors.New("release archive does not contain the ethos binary")
)

// extractTarGz unpacks the gzipped tarball at archivePath into destDir, which
// must already exist. Directories, regular files and symlinks that resolve
// inside destDir are created; other entry types are skipped.
func extractTarGz(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer func() { _ = f.Close() }() // read-only file handle

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer func() { _ = gz.Close() }()

	budget := int64(maxExtractedBytes)
	tr := tar.NewReader(gz)
	for {
		hdr, nextErr := tr.Next()
		if errors.Is(nextErr, io.EOF) {
			return nil
		}
		if nextErr != nil {
			return fmt.Errorf("reading tar entry: %w", nextErr)
		}

		target, err := entryPath(destDir, hdr.Name)
		if err != nil {
			return err
		}
		if target == "" {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if hdr.Size > budget {
				return fmt.Errorf("extracting %s: %w", hdr.Name, ErrDownloadTooLarge)
			}
			budget -= hdr.Size
			if err := writeEntry(target, tr, hdr); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := linkEntry(destDir, target, hdr); err != nil {
				return err
			}
		}
	}
}

// entryPath maps an archive name to a path under destDir. The archive root
// itself maps to "". Absolute names and names that climb out of destDir are
// rejected.
func entryPath(destDir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." {
		return "", nil
	}
	if filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeArchiveEntry, name)
	}
	return filepath.Join(destDir, clean), nil
}

func writeEntry(target string, r io.Reader, hdr *tar.Header) (err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", hdr.Name, err)
	}

	mode := fs.FileMode(hdr.Mode).Perm() | 0o600
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating %s: %w", hdr.Name, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", hdr.Name, closeErr)
		}
	}()

	if _, err := io.CopyN(out, r, hdr.Size); err != nil {
		return fmt.Errorf("extracting %s: %w", hdr.Name, err)
	}
	return nil
}

func linkEntry(destDir, target string, hdr *tar.Header) error {
	link := filepath.FromSlash(hdr.Linkname)
	if filepath.IsAbs(link) || !isWithin(destDir, filepath.Join(filepath.Dir(target), link)) {
		return fmt.Errorf("%w: symlink %q -> %q", ErrUnsafeArchiveEntry, hdr.Name, hdr.Linkname)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", hdr.Name, err)
	}
	if err := os.Symlink(link, target); err != nil {
		return fmt.Errorf("creating symlink %s: %w", hdr.Name, err)
	}
	return nil
}

// releaseRoot returns the directory inside an extraction that holds bin/ethos.
// Archives are either flat or wrap everything in one top-level directory
// (ethos_2.0.0_linux_amd64/bin/ethos); both are accepted.
func releaseRoot(extracted string) (string, error) {
	if isRegularFile(versionBinary(extracted)) {
		return extracted, nil
	}

	entries, err := os.ReadDir(extracted)
	if err != nil {
		return "", fmt.Errorf("reading extracted release: %w", err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		nested := filepath.Join(extracted, entries[0].Name())
		if isRegularFile(versionBinary(nested)) {
			return nested, nil
		}
	}
	return "", ErrMissingBinary
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
