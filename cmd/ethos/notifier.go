// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
)

// notifier prints the update path's one-line notices. They go to stderr so
// that command output on stdout stays machine-readable.
type notifier struct {
	w io.Writer
}

func newNotifier(w io.Writer) notifier {
	return notifier{w: w}
}

// Updated implements selfupdate.Notifier.
func (n notifier) Updated(version string) {
	fmt.Fprintln(n.w, SuccessStyle.Render("ethos updated to "+displayVersion(version)))
}

// Available implements selfupdate.Notifier.
func (n notifier) Available(version, updateCommand string) {
	fmt.Fprintf(n.w, "%s update with: %s\n",
		WarningStyle.Render("ethos "+displayVersion(version)+" is available,"),
		CmdStyle.Render(updateCommand))
}

// displayVersion prefixes a bare semantic version with "v".
func displayVersion(version string) string {
	if version == "" || version[0] == 'v' {
		return version
	}
	return "v" + version
}
