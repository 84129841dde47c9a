// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ethos-cli/ethos/internal/selfupdate"
)

// stageTimeout bounds a whole background download. The child has no user
// waiting on it, so this only has to stop a stalled transfer from lingering.
const stageTimeout = 30 * time.Minute

type stageParams struct {
	home      string
	version   string
	url       string
	checksums string
	userAgent string
}

// newStageCommand creates the hidden entry point of the detached stager.
// It always exits 0: nobody reads the exit code, and the outcome is in
// updates/stage.log.
func newStageCommand(a *app) *cobra.Command {
	var p stageParams

	cmd := &cobra.Command{
		Use:           selfupdate.StageCommand,
		Short:         "Download and stage a release (internal)",
		Hidden:        true,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if p.home == "" {
				p.home = a.layout.Root
			}
			p.userAgent = a.userAgent()
			_ = runStage(cmd.Context(), p)
			return nil
		},
	}

	cmd.Flags().StringVar(&p.home, "home", "", "installation root")
	cmd.Flags().StringVar(&p.version, "version", "", "release version to stage")
	cmd.Flags().StringVar(&p.url, "url", "", "release archive URL")
	cmd.Flags().StringVar(&p.checksums, "checksums", "", "checksums manifest URL")

	return cmd
}

func runStage(ctx context.Context, p stageParams) error {
	if p.home == "" {
		return errors.New("no installation root")
	}
	layout := selfupdate.NewLayout(p.home)

	logger, closeLog := openStageLog(layout)
	defer closeLog()

	ctx, cancel := context.WithTimeout(ctx, stageTimeout)
	defer cancel()

	logger.Info("staging update", "version", p.version, "pid", os.Getpid())

	stager := selfupdate.NewStager(layout, selfupdate.NewOSFileStore(layout),
		selfupdate.NewDownloader(nil, p.userAgent), logger)
	_, err := stager.Stage(ctx, selfupdate.StageRequest{
		Version:      p.version,
		DownloadURL:  p.url,
		ChecksumsURL: p.checksums,
	})
	if err != nil {
		logger.Error("staging update failed", "version", p.version, "err", err)
	}
	return err
}

// openStageLog truncates updates/stage.log so it only ever describes the most
// recent attempt. When the file cannot be opened the stager runs silently.
func openStageLog(layout selfupdate.Layout) (*log.Logger, func()) {
	discard := func() {}
	if err := os.MkdirAll(layout.UpdatesDir(), 0o755); err != nil {
		return log.New(io.Discard), discard
	}
	f, err := os.OpenFile(layout.StageLog(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return log.New(io.Discard), discard
	}

	logger := log.NewWithOptions(f, log.Options{
		Prefix:          "stage",
		Level:           log.DebugLevel,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	return logger, func() { _ = f.Close() }
}
