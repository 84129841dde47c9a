// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	// MaxRedirects is the longest redirect chain a download follows.
	// Release assets redirect once to a CDN; anything deeper is treated as a
	// loop or a hijack.
	MaxRedirects = 5

	// DefaultDownloadTimeout bounds a single asset download end to end.
	DefaultDownloadTimeout = 5 * time.Minute

	// maxArchiveBytes caps a downloaded release archive (500 MB).
	maxArchiveBytes = 500 << 20

	// maxChecksumsBytes caps a downloaded checksums.txt (1 MB).
	maxChecksumsBytes = 1 << 20
)

var (
	// ErrTooManyRedirects is returned when a download exceeds MaxRedirects.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrDownloadTooLarge is returned when a response exceeds its size cap.
	ErrDownloadTooLarge = errors.New("download exceeds size limit")
)

// Downloader fetches release assets over HTTP.
type Downloader struct {
	client    *http.Client
	userAgent string
}

// NewDownloader returns a Downloader using a copy of base (http.DefaultClient
// when nil) whose redirect policy is capped at MaxRedirects.
func NewDownloader(base *http.Client, userAgent string) *Downloader {
	if base == nil {
		base = http.DefaultClient
	}
	client := *base
	client.CheckRedirect = limitRedirects
	if client.Timeout == 0 {
		client.Timeout = DefaultDownloadTimeout
	}
	return &Downloader{client: &client, userAgent: userAgent}
}

func limitRedirects(_ *http.Request, via []*http.Request) error {
	if len(via) > MaxRedirects {
		return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, MaxRedirects)
	}
	return nil
}

// DownloadToTemp writes the body at assetURL to a new temp file in dir and
// returns its path. The caller removes the file. On error nothing is left
// behind.
func (d *Downloader) DownloadToTemp(ctx context.Context, assetURL, dir string) (_ string, err error) {
	body, err := d.open(ctx, assetURL)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }() // read-only HTTP response body

	tmp, err := os.CreateTemp(dir, downloadGlob)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if closeErr := tmp.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing temp file: %w", closeErr)
		}
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := copyCapped(tmp, body, maxArchiveBytes); err != nil {
		return "", fmt.Errorf("downloading %s: %w", redactURL(assetURL), err)
	}
	return tmp.Name(), nil
}

// Fetch returns the body at assetURL, which must be no larger than limit.
func (d *Downloader) Fetch(ctx context.Context, assetURL string, limit int64) ([]byte, error) {
	body, err := d.open(ctx, assetURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }() // read-only HTTP response body

	var buf bytes.Buffer
	if err := copyCapped(&buf, body, limit); err != nil {
		return nil, fmt.Errorf("downloading %s: %w", redactURL(assetURL), err)
	}
	return buf.Bytes(), nil
}

func (d *Downloader) open(ctx context.Context, assetURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading asset %s: %w", redactURL(assetURL), err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("downloading asset %s: unexpected status %d", redactURL(assetURL), resp.StatusCode)
	}
	return resp.Body, nil
}

// copyCapped copies src to dst and fails if src holds more than limit bytes.
func copyCapped(dst io.Writer, src io.Reader, limit int64) error {
	n, err := io.Copy(dst, io.LimitReader(src, limit+1))
	if err != nil {
		return err
	}
	if n > limit {
		return ErrDownloadTooLarge
	}
	return nil
}
