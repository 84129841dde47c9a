// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// ErrInvalidVersion indicates a version string that cannot name a directory
// under versions/.
var ErrInvalidVersion = errors.New("invalid version")

type (
	// StageRequest describes a release to download and stage.
	StageRequest struct {
		Version      string
		DownloadURL  string
		ChecksumsURL string // optional; verification is skipped when empty
	}

	// Stager downloads, verifies and extracts a release into versions/ and
	// records it as the pending update. It runs in the detached child process
	// and in the foreground `ethos upgrade` command.
	Stager struct {
		layout     Layout
		store      Store
		downloader *Downloader
		logger     *log.Logger
	}
)

// NewStager returns a Stager for layout. A nil logger discards output.
func NewStager(layout Layout, store Store, downloader *Downloader, logger *log.Logger) *Stager {
	return &Stager{
		layout:     layout,
		store:      store,
		downloader: downloader,
		logger:     orDiscard(logger),
	}
}

// Stage runs the whole pipeline for req. The pending marker is written last,
// only after versions/<version> is complete; any earlier failure leaves no
// marker and removes the temp archive and staging directory.
func (s *Stager) Stage(ctx context.Context, req StageRequest) (*PendingUpdate, error) {
	if !validVersionDirName(req.Version) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, req.Version)
	}
	if req.DownloadURL == "" {
		return nil, errors.New("no download URL for this platform")
	}

	versionsDir := s.layout.VersionsDir()
	if err := os.MkdirAll(versionsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", versionsDir, err)
	}

	dest, err := filepath.Abs(s.layout.VersionDir(req.Version))
	if err != nil {
		return nil, fmt.Errorf("resolving version directory: %w", err)
	}

	if isRegularFile(versionBinary(dest)) {
		s.logger.Info("version already extracted", "version", req.Version, "path", dest)
	} else if err := s.fetchAndExtract(ctx, req, dest); err != nil {
		return nil, err
	}

	pending := &PendingUpdate{Version: versionDirName(req.Version), Path: dest}
	if err := s.store.SavePending(pending); err != nil {
		return nil, fmt.Errorf("recording pending update: %w", err)
	}
	s.logger.Info("update staged", "version", pending.Version, "path", pending.Path)
	return pending, nil
}

func (s *Stager) fetchAndExtract(ctx context.Context, req StageRequest, dest string) error {
	versionsDir := s.layout.VersionsDir()

	s.logger.Debug("downloading release", "version", req.Version, "url", redactURL(req.DownloadURL))
	archive, err := s.downloader.DownloadToTemp(ctx, req.DownloadURL, versionsDir)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(archive) }()

	if req.ChecksumsURL != "" {
		if err := s.verify(ctx, archive, req); err != nil {
			return err
		}
		s.logger.Debug("checksum verified", "version", req.Version)
	}

	staging, err := os.MkdirTemp(versionsDir, stagingPrefix+"*")
	if err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	if err := extractTarGz(archive, staging); err != nil {
		return fmt.Errorf("extracting release %s: %w", req.Version, err)
	}

	root, err := releaseRoot(staging)
	if err != nil {
		return fmt.Errorf("extracting release %s: %w", req.Version, err)
	}

	// A directory without a binary is debris from an interrupted manual
	// cleanup; a complete one means a concurrent stager won the race.
	if isDir(dest) && !isRegularFile(versionBinary(dest)) {
		if err := os.RemoveAll(dest); err != nil {
			return fmt.Errorf("removing incomplete %s: %w", dest, err)
		}
	}
	if err := os.Rename(root, dest); err != nil {
		if isRegularFile(versionBinary(dest)) {
			s.logger.Debug("version extracted concurrently", "version", req.Version)
			return nil
		}
		return fmt.Errorf("moving release into place: %w", err)
	}
	return nil
}

func (s *Stager) verify(ctx context.Context, archive string, req StageRequest) error {
	data, err := s.downloader.Fetch(ctx, req.ChecksumsURL, maxChecksumsBytes)
	if err != nil {
		return fmt.Errorf("downloading checksums: %w", err)
	}

	sums, err := ParseChecksums(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parsing checksums: %w", err)
	}

	name := assetFileName(req.DownloadURL)
	expected, err := sums.Lookup(name)
	if err != nil {
		return err
	}
	return VerifyFile(archive, name, expected)
}

// assetFileName is the last path segment of an asset URL, which GitHub sets
// to the asset's name.
func assetFileName(assetURL string) string {
	u, err := url.Parse(assetURL)
	if err != nil {
		return ""
	}
	return path.Base(u.Path)
}

func orDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return log.New(io.Discard)
	}
	return l
}
