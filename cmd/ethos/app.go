// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ethos-cli/ethos/internal/config"
	"github.com/ethos-cli/ethos/internal/issue"
	"github.com/ethos-cli/ethos/internal/selfupdate"
)

// startupCheckTimeout bounds the release query made before a command runs,
// so an unreachable network delays the user's command by at most this much.
const startupCheckTimeout = 3 * time.Second

type (
	// globalOptions are the persistent flags. They are scanned from the raw
	// arguments before cobra parses them because the update path runs first.
	globalOptions struct {
		configFile string
		verbose    bool
		// command is the first positional argument, "" for the bare root.
		command string
	}

	// app is the state shared by every command once configuration is loaded.
	app struct {
		opts    globalOptions
		version string
		cfg     *config.Config
		cfgPath string
		layout  selfupdate.Layout
		logger  *log.Logger
		stdout  io.Writer
		stderr  io.Writer
		// execPath is the resolved path of the running binary, "" if unknown.
		execPath string
		// mdStyle is the glamour style for release notes and issues.
		mdStyle string
		now     func() time.Time

		// Overridable for tests; nil selects the real implementation.
		runner  selfupdate.Runner
		fetcher selfupdate.BackgroundFetcher
	}
)

// parseGlobalOptions extracts --config, --verbose and the subcommand name from
// args, stopping at "--".
func parseGlobalOptions(args []string) globalOptions {
	var opts globalOptions
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return opts
		case arg == "--verbose" || arg == "-v":
			opts.verbose = true
		case strings.HasPrefix(arg, "--verbose="):
			opts.verbose, _ = strconv.ParseBool(strings.TrimPrefix(arg, "--verbose="))
		case arg == "--config":
			if i+1 < len(args) {
				opts.configFile = args[i+1]
				i++
			}
		case strings.HasPrefix(arg, "--config="):
			opts.configFile = strings.TrimPrefix(arg, "--config=")
		case strings.HasPrefix(arg, "-"):
			// Flags of subcommands are cobra's business.
		default:
			if opts.command == "" {
				opts.command = arg
			}
		}
	}
	return opts
}

// newApp loads configuration and resolves the installation layout. A broken
// config file is reported on stderr and replaced by defaults; ethos keeps
// working either way.
func newApp(ctx context.Context, opts globalOptions, loadOpts config.LoadOptions, stdout, stderr io.Writer) *app {
	a := &app{
		opts:    opts,
		version: Version,
		stdout:  stdout,
		stderr:  stderr,
		mdStyle: "auto",
		now:     time.Now,
	}

	loadOpts.ConfigFilePath = opts.configFile
	loaded, err := config.Load(ctx, loadOpts)
	if err != nil {
		fmt.Fprintln(stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, opts.verbose))
		printIssue(stderr, issue.ConfigLoadFailedId, a.mdStyle)
		a.cfg = config.DefaultConfig()
	} else {
		a.cfg, a.cfgPath = loaded.Config, loaded.Path
	}

	a.logger = newLogger(stderr, a.cfg.Log.Level, opts.verbose)

	home, err := resolveHome(a.cfg.Home)
	if err != nil {
		a.logger.Warn("self-update disabled", "err", err)
		a.cfg.Updates.Enabled = false
	} else {
		a.layout = selfupdate.NewLayout(home)
	}

	if exe, err := selfupdate.ExecutablePath(); err == nil {
		a.execPath = exe
	} else {
		a.logger.Debug("locating running binary", "err", err)
	}
	return a
}

// newLogger returns the foreground logger. --verbose wins over the configured level.
func newLogger(w io.Writer, level config.LogLevel, verbose bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{Prefix: "selfupdate"})
	lvl, err := log.ParseLevel(string(level))
	if err != nil {
		lvl = log.WarnLevel
	}
	if verbose {
		lvl = log.DebugLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func resolveHome(configured config.HomeDirPath) (string, error) {
	if configured != "" {
		return filepath.Abs(string(configured))
	}
	return selfupdate.DefaultHome()
}

// updatePathEnabled reports whether the startup update path should run for
// this invocation. guard is the value of the guard environment variable.
func (a *app) updatePathEnabled(guard string) bool {
	if selfupdate.GuardActive(guard) || !a.cfg.Updates.Enabled || a.layout.Root == "" {
		return false
	}
	if a.version == "" || a.version == "dev" {
		return false
	}
	switch a.opts.command {
	case selfupdate.StageCommand, "upgrade", "completion",
		cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return false
	}
	return true
}

func (a *app) store() *selfupdate.FileStore {
	return selfupdate.NewOSFileStore(a.layout)
}

func (a *app) installInfo() selfupdate.InstallInfo {
	return selfupdate.DetectInstallMethod(a.execPath, a.layout)
}

func (a *app) userAgent() string {
	return selfupdate.BinaryName + "/" + a.version
}

// releaseClient builds the GitHub client from configuration. GITHUB_TOKEN,
// when set, raises the API rate limit.
func (a *app) releaseClient(timeout time.Duration) *selfupdate.GitHubClient {
	opts := []selfupdate.ClientOption{
		selfupdate.WithBaseURL(a.cfg.Updates.APIURL),
		selfupdate.WithRepository(a.cfg.Updates.Repository.String()),
		selfupdate.WithUserAgent(a.userAgent()),
		selfupdate.WithRequestTimeout(timeout),
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		opts = append(opts, selfupdate.WithToken(token))
	}
	return selfupdate.NewGitHubClient(opts...)
}

func (a *app) checker(source selfupdate.ReleaseSource) *selfupdate.Checker {
	return selfupdate.NewChecker(a.version, source, a.store(),
		selfupdate.WithCacheTTL(a.cfg.Updates.CheckIntervalDuration()),
		selfupdate.WithClock(a.now),
		selfupdate.WithLogger(a.logger),
	)
}

func (a *app) applier(runner selfupdate.Runner) *selfupdate.Applier {
	return selfupdate.NewApplier(a.layout, a.store(), runner, newNotifier(a.stderr), a.logger)
}

func (a *app) stager(logger *log.Logger) *selfupdate.Stager {
	return selfupdate.NewStager(a.layout, a.store(), selfupdate.NewDownloader(nil, a.userAgent()), logger)
}

// startup wires the update path run before every command.
func (a *app) startup() *selfupdate.Startup {
	runner := a.runner
	if runner == nil {
		runner = selfupdate.NewStdioRunner()
	}
	fetcher := a.fetcher
	if fetcher == nil {
		fetcher = selfupdate.NewSpawner(a.layout.Root)
	}
	return &selfupdate.Startup{
		Info:     a.installInfo(),
		Applier:  a.applier(runner),
		Checker:  a.checker(a.releaseClient(startupCheckTimeout)),
		Fetcher:  fetcher,
		Notifier: newNotifier(a.stderr),
		Logger:   a.logger,
	}
}
