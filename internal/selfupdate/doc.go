// SPDX-License-Identifier: MPL-2.0

// Package selfupdate keeps a self-managed ethos installation current without
// blocking the command the user actually ran.
//
// The package is organized around a small on-disk state machine:
//   - layout.go: the ETHOS_HOME directory convention (versions, current, bin, updates)
//   - store.go: the version cache and pending-update marker (JSON over afero)
//   - checker.go: TTL-bounded release checks against a ReleaseSource
//   - github.go, platform.go: GitHub Releases API client and asset selection
//   - detect.go: install method detection from the running executable's path
//   - spawn.go, stage.go: the detached background download and staging step
//   - apply.go, reexec.go: activation of a staged version and hand-off to it
//   - startup.go: the per-invocation orchestration of all of the above
//
// Nothing in the startup path returns an error to the caller. Update checks are
// best-effort; failures are logged at debug level and the invoked command runs
// unchanged.
package selfupdate
