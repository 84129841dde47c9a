// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ethos-cli/ethos/internal/config"
	"github.com/ethos-cli/ethos/internal/selfupdate"
)

const none = "(none)"

func newSelfCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "self",
		Short: "Inspect the ethos installation",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show installation and update state",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runSelfStatus(a, cmd.OutOrStdout(), os.Getenv(selfupdate.GuardEnvVar))
			},
		},
		&cobra.Command{
			Use:   "config",
			Short: "Print the effective configuration as CUE",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				fmt.Fprint(cmd.OutOrStdout(), config.GenerateCUE(a.cfg))
				return nil
			},
		},
	)
	return cmd
}

// runSelfStatus prints one labelled line per fact. Read failures are shown
// inline rather than aborting, since status is what users run when
// something looks wrong.
func runSelfStatus(a *app, w io.Writer, guard string) error {
	line := func(label, value string) {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(label+":"), value)
	}

	info := a.installInfo()

	fmt.Fprintln(w, TitleStyle.Render("ethos "+displayVersion(a.version)))
	line("Install method", info.Method.String())
	if info.SupportsAutoUpdate {
		line("Auto-update", SuccessStyle.Render("supported"))
	} else {
		line("Auto-update", "not supported, update with: "+CmdStyle.Render(info.UpdateCommand))
	}
	line("Update checks", updateChecksState(a, guard))
	line("Executable", orNone(a.execPath))
	line("Config file", orDefault(a.cfgPath))

	if a.layout.Root == "" {
		line("Home", WarningStyle.Render("(unresolved)"))
		return nil
	}
	line("Home", a.layout.Root)

	active, err := a.layout.ActiveVersion()
	line("Active version", valueOrError(active, err))

	installed, err := a.layout.InstalledVersions()
	line("Installed", valueOrError(strings.Join(installed, ", "), err))

	store := a.store()
	cache, err := store.LoadCache()
	switch {
	case err != nil:
		line("Latest release", WarningStyle.Render("unreadable cache: "+err.Error()))
	case cache == nil:
		line("Latest release", "(never checked)")
	default:
		age := a.now().Sub(cache.CheckedAt).Round(time.Second)
		line("Latest release", fmt.Sprintf("%s (checked %s ago)", displayVersion(cache.LatestVersion), age))
	}

	pending, err := store.LoadPending()
	switch {
	case err != nil:
		line("Pending update", WarningStyle.Render("unreadable marker: "+err.Error()))
	case pending == nil:
		line("Pending update", none)
	default:
		line("Pending update", displayVersion(pending.Version)+" in "+pending.Path)
	}
	return nil
}

func updateChecksState(a *app, guard string) string {
	switch {
	case selfupdate.GuardActive(guard):
		return "disabled by " + selfupdate.GuardEnvVar
	case !a.cfg.Updates.Enabled:
		return "disabled in configuration"
	case a.version == "" || a.version == "dev":
		return "disabled for development builds"
	}
	return fmt.Sprintf("every %s", a.cfg.Updates.CheckIntervalDuration())
}

func valueOrError(v string, err error) string {
	if err != nil {
		return WarningStyle.Render(err.Error())
	}
	return orNone(v)
}

func orNone(v string) string {
	if v == "" {
		return none
	}
	return v
}

func orDefault(v string) string {
	if v == "" {
		return "(defaults)"
	}
	return v
}
