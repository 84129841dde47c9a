// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package selfupdate

import "syscall"

// detachedSysProcAttr starts the child in a new session so it survives the
// parent's exit and does not receive the terminal's SIGHUP or SIGINT.
func detachedSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
