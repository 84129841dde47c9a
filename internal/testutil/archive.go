// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

// ArchiveEntry is one member of a test tarball. Entries with a Linkname are
// written as symlinks, names ending in "/" as directories, everything else as
// regular files.
type ArchiveEntry struct {
	Name     string
	Body     []byte
	Mode     int64
	Linkname string
}

// TarGz builds a gzipped tarball from entries in order.
func TarGz(t testing.TB, entries ...ArchiveEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)

	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: e.Mode}
		switch {
		case e.Linkname != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.Linkname
		case len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/':
			hdr.Typeflag = tar.TypeDir
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.Body))
		}
		if hdr.Mode == 0 {
			hdr.Mode = 0o755
		}

		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("writing tar header for %s: %v", e.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write(e.Body); err != nil {
				t.Fatalf("writing tar body for %s: %v", e.Name, err)
			}
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar writer: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("closing gzip writer: %v", err)
	}
	return buf.Bytes()
}

// ReleaseArchive builds a release tarball that wraps bin/<binary> in a single
// top-level directory, the way published releases are packaged.
func ReleaseArchive(t testing.TB, topDir, binary string, content []byte) []byte {
	t.Helper()
	prefix := ""
	if topDir != "" {
		prefix = topDir + "/"
	}
	return TarGz(t,
		ArchiveEntry{Name: prefix + "bin/" + binary, Body: content},
		ArchiveEntry{Name: prefix + "README.md", Body: []byte("ethos\n"), Mode: 0o644},
	)
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
