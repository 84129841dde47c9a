// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// StageCommand is the hidden subcommand the detached child runs.
const StageCommand = "__stage-update"

type (
	// BackgroundFetcher starts staging a release without waiting for it.
	BackgroundFetcher interface {
		Spawn(req StageRequest) error
	}

	// Spawner is the BackgroundFetcher that re-launches the running ethos
	// binary as a detached `__stage-update` process. The child gets its own
	// session, null stdio and the guard variable; its handle is released
	// immediately so the parent can exit while the download continues.
	Spawner struct {
		home       string
		executable func() (string, error)
		start      func(cmd *exec.Cmd) error
	}
)

// NewSpawner returns a Spawner whose child stages into the installation
// rooted at home.
func NewSpawner(home string) *Spawner {
	return &Spawner{
		home:       home,
		executable: os.Executable,
		start:      startDetached,
	}
}

// Spawn implements BackgroundFetcher.
func (s *Spawner) Spawn(req StageRequest) error {
	if req.Version == "" || req.DownloadURL == "" {
		return errors.New("stage request needs a version and a download URL")
	}

	exe, err := s.executable()
	if err != nil {
		return fmt.Errorf("determining executable path: %w", err)
	}

	cmd := exec.Command(exe, StageArgs(s.home, req)...) //nolint:gosec // Re-launching our own binary.
	cmd.Env = append(os.Environ(), GuardEnvVar+"=1")
	// nil stdio is wired to the null device by os/exec.
	cmd.Stdin, cmd.Stdout, cmd.Stderr = nil, nil, nil
	cmd.SysProcAttr = detachedSysProcAttr()

	if err := s.start(cmd); err != nil {
		return fmt.Errorf("starting background stager: %w", err)
	}
	return nil
}

// StageArgs builds the argument list of a `__stage-update` invocation.
func StageArgs(home string, req StageRequest) []string {
	args := []string{StageCommand, "--home", home, "--version", req.Version, "--url", req.DownloadURL}
	if req.ChecksumsURL != "" {
		args = append(args, "--checksums", req.ChecksumsURL)
	}
	return args
}

func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	// Never waited on; releasing drops the handle so no zombie bookkeeping
	// ties the child to this process.
	return cmd.Process.Release()
}
