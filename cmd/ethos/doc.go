// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the CLI commands for ethos.
//
// Besides the user-facing commands, the root command runs the self-update
// path once per invocation before cobra dispatches: a staged release is
// activated and the command re-run under it, or the release index is
// consulted and a detached `__stage-update` child is started.
package cmd
