// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/ethos-cli/ethos/internal/config"
	"github.com/ethos-cli/ethos/internal/issue"
	"github.com/ethos-cli/ethos/internal/selfupdate"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// newRootCommand builds the command tree around a.
func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   selfupdate.BinaryName,
		Short: "Keep ethos current without thinking about it",
		Long: TitleStyle.Render("ethos") + SubtitleStyle.Render(" - a self-updating command line tool") + `

Installations made with the install script live in ~/.ethos (or $ETHOS_HOME)
and update themselves: a newer release is downloaded in the background and
activated the next time ethos starts.

` + SubtitleStyle.Render("Examples:") + `
  ethos upgrade             Install the latest release now
  ethos upgrade --check     Show whether a newer release exists
  ethos self status         Show installation and update state
  ethos self config         Print the effective configuration`,
		SilenceUsage: true,
	}

	// Already applied by parseGlobalOptions; declared so cobra accepts them.
	root.PersistentFlags().BoolVarP(&a.opts.verbose, "verbose", "v", a.opts.verbose, "enable verbose output")
	root.PersistentFlags().StringVar(&a.opts.configFile, "config", a.opts.configFile,
		"config file (default is <config dir>/ethos/config.cue)")

	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.AddCommand(newUpgradeCommand(a))
	root.AddCommand(newSelfCommand(a))
	root.AddCommand(newStageCommand(a))

	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the update path and then the requested command.
// This is called by main.main().
func Execute() {
	ctx := context.Background()
	args := os.Args[1:]

	a := newApp(ctx, parseGlobalOptions(args), config.LoadOptions{}, os.Stdout, os.Stderr)

	if a.updatePathEnabled(os.Getenv(selfupdate.GuardEnvVar)) {
		// The command already ran under the activated version.
		if code, exit := a.startup().Run(ctx, args); exit {
			os.Exit(code)
		}
	}

	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	if err := fang.Execute(
		ctx,
		newRootCommand(a),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
