// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ethos-cli/ethos/internal/selfupdate"
	"github.com/ethos-cli/ethos/internal/testutil"
)

func TestRunSelfStatus(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("installation fixture uses symlinks")
	}

	a, _ := testApp(t, nil, "1.1.0")
	clock := testutil.NewFakeClock(time.Time{})
	a.now = clock.Now
	a.execPath = filepath.Join(a.layout.VersionDir("1.1.0"), "bin", "ethos")

	for _, v := range []string{"1.0.0", "1.1.0", "1.2.0"} {
		testutil.MustWriteFile(t, filepath.Join(a.layout.VersionDir(v), "bin", "ethos"), []byte("bin"), 0o755)
	}
	testutil.MustSymlink(t, filepath.Join("versions", "1.1.0"), a.layout.CurrentLink())

	store := a.store()
	if err := store.SaveCache(&selfupdate.VersionCache{
		CheckedAt:     clock.Now().Add(-2 * time.Hour),
		LatestVersion: "1.2.0",
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.SavePending(&selfupdate.PendingUpdate{Version: "1.2.0", Path: a.layout.VersionDir("1.2.0")}); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := runSelfStatus(a, &out, ""); err != nil {
		t.Fatalf("runSelfStatus() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"ethos v1.1.0",
		"curl",
		"supported",
		a.layout.Root,
		"1.2.0, 1.1.0, 1.0.0",
		"v1.2.0 (checked 2h0m0s ago)",
		"v1.2.0 in " + a.layout.VersionDir("1.2.0"),
		"every 24h0m0s",
		"(defaults)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("status missing %q:\n%s", want, got)
		}
	}
}

func TestRunSelfStatus_FreshInstallAndBadState(t *testing.T) {
	t.Parallel()

	a, _ := testApp(t, nil, "1.0.0")
	a.execPath = "/opt/tools/ethos"
	testutil.MustWriteFile(t, selfupdate.NewOSFileStore(a.layout).PendingPath(), []byte("{not json"), 0o644)

	var out bytes.Buffer
	if err := runSelfStatus(a, &out, ""); err != nil {
		t.Fatalf("runSelfStatus() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"unknown", "not supported", "(never checked)", "unreadable marker"} {
		if !strings.Contains(got, want) {
			t.Errorf("status missing %q:\n%s", want, got)
		}
	}
	// Reading status must not consume the marker.
	if _, err := os.Stat(selfupdate.NewOSFileStore(a.layout).PendingPath()); err != nil {
		t.Errorf("pending marker gone after status: %v", err)
	}
}

func TestUpdateChecksState(t *testing.T) {
	t.Parallel()

	a, _ := testApp(t, nil, "1.0.0")
	if got := updateChecksState(a, "true"); got != "disabled by "+selfupdate.GuardEnvVar {
		t.Errorf("guard: got %q", got)
	}

	a.version = "dev"
	if got := updateChecksState(a, ""); got != "disabled for development builds" {
		t.Errorf("dev: got %q", got)
	}

	a.cfg.Updates.Enabled = false
	if got := updateChecksState(a, ""); got != "disabled in configuration" {
		t.Errorf("config: got %q", got)
	}
}

func TestSelfConfigCommand(t *testing.T) {
	t.Parallel()

	a, _ := testApp(t, nil, "1.0.0")
	var out bytes.Buffer
	a.stdout = &out

	root := newRootCommand(a)
	root.SetArgs([]string{"self", "config"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("self config: %v", err)
	}

	for _, want := range []string{`repository: "ethos-cli/ethos"`, `check_interval: "24h"`, `level: "warn"`} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("self config output missing %q:\n%s", want, out.String())
		}
	}
}
