// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/ethos-cli/ethos/internal/selfupdate"
	"github.com/ethos-cli/ethos/internal/testutil"
)

func readStageLog(t *testing.T, layout selfupdate.Layout) string {
	t.Helper()
	data, err := os.ReadFile(layout.StageLog())
	if err != nil {
		t.Fatalf("reading stage log: %v", err)
	}
	return string(data)
}

func TestRunStage_StagesAndLogs(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("release archives carry a unix binary name")
	}

	srv := newReleaseServer(t, "1.1.0", nil)
	layout := selfupdate.NewLayout(t.TempDir())
	testutil.MustWriteFile(t, layout.StageLog(), []byte("output of an earlier attempt\n"), 0o644)

	err := runStage(context.Background(), stageParams{
		home:      layout.Root,
		version:   "1.1.0",
		url:       srv.URL + "/download/" + platformAsset(),
		checksums: srv.URL + "/download/checksums.txt",
		userAgent: "ethos/test",
	})
	if err != nil {
		t.Fatalf("runStage() error = %v", err)
	}

	pending, err := selfupdate.NewOSFileStore(layout).LoadPending()
	if err != nil || pending == nil {
		t.Fatalf("LoadPending() = %v, %v; want a marker", pending, err)
	}
	if pending.Version != "1.1.0" || pending.Path != layout.VersionDir("1.1.0") {
		t.Errorf("pending = %+v", pending)
	}

	logText := readStageLog(t, layout)
	if !strings.Contains(logText, "update staged") {
		t.Errorf("stage log = %q, want success entry", logText)
	}
	if strings.Contains(logText, "earlier attempt") {
		t.Error("stage log was not truncated")
	}
}

func TestRunStage_FailureLeavesOnlyTheLog(t *testing.T) {
	t.Parallel()

	srv := newReleaseServer(t, "1.1.0", nil)
	layout := selfupdate.NewLayout(t.TempDir())

	err := runStage(context.Background(), stageParams{
		home:    layout.Root,
		version: "1.1.0",
		url:     srv.URL + "/download/missing.tar.gz",
	})
	if err == nil {
		t.Fatal("runStage() succeeded for a missing asset")
	}

	if logText := readStageLog(t, layout); !strings.Contains(logText, "staging update failed") {
		t.Errorf("stage log = %q, want failure entry", logText)
	}
	if _, statErr := os.Stat(selfupdate.NewOSFileStore(layout).PendingPath()); !os.IsNotExist(statErr) {
		t.Errorf("pending marker written after failure (err = %v)", statErr)
	}
	if _, statErr := os.Stat(layout.VersionDir("1.1.0")); !os.IsNotExist(statErr) {
		t.Errorf("version dir created after failure (err = %v)", statErr)
	}
}

func TestStageCommand_AlwaysExitsZero(t *testing.T) {
	t.Parallel()

	a, _ := testApp(t, nil, "1.0.0")
	home := filepath.Join(t.TempDir(), "elsewhere")

	root := newRootCommand(a)
	root.SetArgs([]string{selfupdate.StageCommand, "--home", home, "--version", "../escape", "--url", "http://127.0.0.1:1/x.tar.gz"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("stage command returned %v", err)
	}

	// --home wins over the app's own layout.
	if _, err := os.Stat(selfupdate.NewLayout(home).StageLog()); err != nil {
		t.Errorf("stage log not written under --home: %v", err)
	}
	if _, err := os.Stat(a.layout.StageLog()); !os.IsNotExist(err) {
		t.Errorf("stage log written under the default home (err = %v)", err)
	}
}

func TestStageCommand_IsHidden(t *testing.T) {
	t.Parallel()

	a, _ := testApp(t, nil, "1.0.0")
	root := newRootCommand(a)

	found, _, err := root.Find([]string{selfupdate.StageCommand})
	if err != nil {
		t.Fatalf("Find(%s): %v", selfupdate.StageCommand, err)
	}
	if !found.Hidden {
		t.Error("stage command is listed in help")
	}
	for _, name := range []string{"upgrade", "self"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("Find(%s) = %v, %v", name, c, err)
		}
	}
}
