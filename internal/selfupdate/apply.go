// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// ApplyNoPending through ApplyApplied are the terminal states of one Apply run.
const (
	// ApplyNoPending means there was nothing to activate, or the marker was
	// stale or unreadable and has been discarded.
	ApplyNoPending ApplyState = iota

	// ApplyRejected means a marker existed but could not be activated here.
	// The marker has been deleted and current is unchanged.
	ApplyRejected

	// ApplyApplied means current now points at the staged version.
	ApplyApplied
)

// ErrNotSelfManaged is the rejection reason for installs the updater does not own.
var ErrNotSelfManaged = errors.New("installation is not self-managed")

type (
	// ApplyState is the outcome of Applier.Apply.
	ApplyState int

	// ApplyResult describes what Apply did. ExitCode is meaningful only when
	// Reexeced is true.
	ApplyResult struct {
		State    ApplyState
		Version  string
		Reexeced bool
		ExitCode int
		Err      error
	}

	// Notifier receives the user-visible messages of the update path.
	Notifier interface {
		Updated(version string)
		Available(version, updateCommand string)
	}

	// Applier activates a staged release at the start of an invocation.
	Applier struct {
		layout   Layout
		store    Store
		runner   Runner
		notifier Notifier
		logger   *log.Logger
	}
)

// String returns the state name.
func (s ApplyState) String() string {
	switch s {
	case ApplyNoPending:
		return "no-pending"
	case ApplyRejected:
		return "rejected"
	case ApplyApplied:
		return "applied"
	}
	return "unknown"
}

// NewApplier returns an Applier. A nil runner disables the re-exec step; a nil
// notifier or logger discards output.
func NewApplier(layout Layout, store Store, runner Runner, notifier Notifier, logger *log.Logger) *Applier {
	return &Applier{
		layout:   layout,
		store:    store,
		runner:   runner,
		notifier: notifier,
		logger:   orDiscard(logger),
	}
}

// Apply consumes the pending marker, if any. The marker is deleted on every
// path that finds one, so a failed activation is never retried.
//
// When the swap succeeds, args are re-run through the stable bin link with the
// guard variable set, and the child's exit code is returned for the caller to
// exit with. A re-exec that fails to start is logged and otherwise ignored:
// the new version is already active for the next invocation.
func (a *Applier) Apply(ctx context.Context, info InstallInfo, args []string) ApplyResult {
	pending, err := a.store.LoadPending()
	if err != nil {
		a.logger.Debug("discarding unreadable pending marker", "err", err)
		a.discard()
		return ApplyResult{State: ApplyNoPending, Err: err}
	}
	if pending == nil {
		return ApplyResult{State: ApplyNoPending}
	}

	if !isDir(pending.Path) {
		a.logger.Debug("discarding stale pending marker", "version", pending.Version, "path", pending.Path)
		a.discard()
		return ApplyResult{State: ApplyNoPending, Version: pending.Version}
	}

	if info.Method != InstallMethodCurl {
		a.logger.Debug("pending update cannot apply", "version", pending.Version, "method", info.Method)
		a.discard()
		return ApplyResult{State: ApplyRejected, Version: pending.Version, Err: ErrNotSelfManaged}
	}

	if err := a.Activate(pending.Version, pending.Path); err != nil {
		a.logger.Debug("activating update failed", "version", pending.Version, "err", err)
		a.discard()
		return ApplyResult{State: ApplyRejected, Version: pending.Version, Err: err}
	}

	if a.notifier != nil {
		a.notifier.Updated(pending.Version)
	}

	result := ApplyResult{State: ApplyApplied, Version: pending.Version}
	if a.runner == nil {
		return result
	}

	env := append(os.Environ(), GuardEnvVar+"=1")
	code, err := a.runner.Run(ctx, a.layout.BinLink(), args, env)
	if err != nil {
		a.logger.Debug("re-exec after update failed", "err", err)
		return result
	}
	result.Reexeced = true
	result.ExitCode = code
	return result
}

// Activate makes the extracted release at dir the active one:
//  1. repoint current at dir
//  2. repoint bin/ethos through current
//  3. delete the pending marker
//  4. prune every other entry of versions/
//
// Each step is idempotent, so a crash between steps is repaired by repeating
// the same activation. A failure in step 1 or 2 leaves current as it was.
// dir must be a direct child of versions/.
func (a *Applier) Activate(version, dir string) error {
	dir = filepath.Clean(dir)
	if !sameDir(filepath.Dir(dir), a.layout.VersionsDir()) {
		return fmt.Errorf("staged release %s is not in %s", dir, a.layout.VersionsDir())
	}
	if !isRegularFile(versionBinary(dir)) {
		return fmt.Errorf("staged release %s: %w", version, ErrMissingBinary)
	}

	if err := os.MkdirAll(a.layout.BinDir(), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", a.layout.BinDir(), err)
	}

	previous, prevErr := os.Readlink(a.layout.CurrentLink())
	rel := filepath.Join(versionsDirName, filepath.Base(dir))
	if err := replaceSymlink(rel, a.layout.CurrentLink()); err != nil {
		return fmt.Errorf("switching current to %s: %w", version, err)
	}

	binTarget := filepath.Join("..", currentLinkName, binDirName, binaryFileName())
	if err := replaceSymlink(binTarget, a.layout.BinLink()); err != nil {
		switch {
		case prevErr == nil:
			_ = replaceSymlink(previous, a.layout.CurrentLink())
		case errors.Is(prevErr, os.ErrNotExist):
			_ = os.Remove(a.layout.CurrentLink())
		}
		return fmt.Errorf("refreshing %s: %w", a.layout.BinLink(), err)
	}

	if err := a.store.DeletePending(); err != nil {
		a.logger.Debug("removing pending marker", "err", err)
	}

	a.prune(filepath.Base(dir))
	return nil
}

// prune removes everything in versions/ except keep. Failures are logged;
// a leftover directory only costs disk space.
func (a *Applier) prune(keep string) {
	entries, err := os.ReadDir(a.layout.VersionsDir())
	if err != nil {
		a.logger.Debug("listing versions for pruning", "err", err)
		return
	}
	for _, e := range entries {
		if e.Name() == keep {
			continue
		}
		p := filepath.Join(a.layout.VersionsDir(), e.Name())
		if err := os.RemoveAll(p); err != nil {
			a.logger.Debug("pruning old version", "path", p, "err", err)
		}
	}
}

func (a *Applier) discard() {
	if err := a.store.DeletePending(); err != nil {
		a.logger.Debug("removing pending marker", "err", err)
	}
}

// sameDir reports whether a and b name the same directory, textually or on disk.
func sameDir(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

// tmpLinkSeq distinguishes temp links of concurrent swaps within one process.
var tmpLinkSeq atomic.Uint64

// replaceSymlink points link at target by renaming a freshly created symlink
// over it. rename(2) is atomic, so readers see the old or the new target and
// never a missing link. Concurrent callers with the same target converge.
func replaceSymlink(target, link string) error {
	tmp := filepath.Join(filepath.Dir(link), fmt.Sprintf(".%s.tmp-%d-%d",
		filepath.Base(link), os.Getpid(), tmpLinkSeq.Add(1)))
	_ = os.Remove(tmp)

	if err := os.Symlink(target, tmp); err != nil {
		return fmt.Errorf("creating symlink: %w", err)
	}
	if err := os.Rename(tmp, link); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing symlink: %w", err)
	}
	return nil
}
