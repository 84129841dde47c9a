// SPDX-License-Identifier: MPL-2.0

//go:build windows

package selfupdate

import "syscall"

// detachedProcess is DETACHED_PROCESS from the Win32 process creation flags.
const detachedProcess = 0x00000008

// detachedSysProcAttr starts the child without a console and in its own
// process group so Ctrl+C in the parent's console does not reach it.
func detachedSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: detachedProcess | syscall.CREATE_NEW_PROCESS_GROUP,
		HideWindow:    true,
	}
}
