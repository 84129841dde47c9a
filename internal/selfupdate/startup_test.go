// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethos-cli/ethos/internal/testutil"
)

type recordingFetcher struct {
	requests []StageRequest
	err      error
}

func (f *recordingFetcher) Spawn(req StageRequest) error {
	f.requests = append(f.requests, req)
	return f.err
}

func newStartup(info InstallInfo, store Store, source ReleaseSource, clock *testutil.FakeClock) (*Startup, *recordingFetcher, *recordingNotifier) {
	fetcher := &recordingFetcher{}
	notifier := &recordingNotifier{}
	return &Startup{
		Info:     info,
		Checker:  NewChecker("2.5.0", source, store, WithClock(clock.Now)),
		Fetcher:  fetcher,
		Notifier: notifier,
	}, fetcher, notifier
}

func TestStartup_SpawnsStagerForNewRelease(t *testing.T) {
	t.Parallel()

	clock := testutil.NewFakeClock(time.Time{})
	s, fetcher, notifier := newStartup(curlInstall, memStore(), &stubSource{latest: release("3.0.0")}, clock)

	if code, exit := s.Run(context.Background(), nil); exit || code != 0 {
		t.Errorf("Run() = %d, %v; want 0, false", code, exit)
	}
	if len(fetcher.requests) != 1 {
		t.Fatalf("Spawn called %d times, want 1", len(fetcher.requests))
	}
	req := fetcher.requests[0]
	if req.Version != "3.0.0" || req.DownloadURL == "" || req.ChecksumsURL == "" {
		t.Errorf("stage request = %+v", req)
	}
	if len(notifier.available) != 0 {
		t.Error("self-managed install was told to update manually")
	}

	// A second invocation inside the TTL answers from cache and does not
	// start another download.
	clock.Advance(time.Minute)
	s.Run(context.Background(), nil)
	if len(fetcher.requests) != 1 {
		t.Errorf("Spawn called %d times after a cached check, want 1", len(fetcher.requests))
	}
}

func TestStartup_StaleMarkerIsConsumedBeforeTheCheck(t *testing.T) {
	t.Parallel()

	store := memStore()
	if err := store.SavePending(&PendingUpdate{Version: "3.0.0", Path: "/home/u/.ethos/versions/3.0.0"}); err != nil {
		t.Fatal(err)
	}
	s, fetcher, _ := newStartup(curlInstall, store, &stubSource{latest: release("3.0.0")}, testutil.NewFakeClock(time.Time{}))
	s.Applier = NewApplier(NewLayout("/home/u/.ethos"), store, nil, nil, nil)

	if _, exit := s.Run(context.Background(), nil); exit {
		t.Fatal("Run() asked to exit without an activation")
	}
	if p, err := store.LoadPending(); p != nil || err != nil {
		t.Errorf("LoadPending() = %+v, %v; want the stale marker removed", p, err)
	}
	if len(fetcher.requests) != 1 || fetcher.requests[0].Version != "3.0.0" {
		t.Errorf("Spawn requests = %+v, want one for 3.0.0", fetcher.requests)
	}
}

func TestStartup_NoAssetMeansNoSpawn(t *testing.T) {
	t.Parallel()

	rel := release("3.0.0")
	rel.DownloadURL = ""
	s, fetcher, _ := newStartup(curlInstall, memStore(), &stubSource{latest: rel}, testutil.NewFakeClock(time.Time{}))

	s.Run(context.Background(), nil)
	if len(fetcher.requests) != 0 {
		t.Errorf("Spawn called without a download URL")
	}
}

func TestStartup_NotifiesUnmanagedInstalls(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		info        InstallInfo
		wantCommand string
	}{
		{
			name:        "homebrew",
			info:        InstallInfo{Method: InstallMethodHomebrew, UpdateCommand: "brew upgrade ethos"},
			wantCommand: "brew upgrade ethos",
		},
		{
			name:        "unknown uses the release page",
			info:        InstallInfo{Method: InstallMethodUnknown, UpdateCommand: ReleasesPageURL},
			wantCommand: "https://github.com/ethos-cli/ethos/releases/tag/v3.0.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, fetcher, notifier := newStartup(tt.info, memStore(), &stubSource{latest: release("3.0.0")}, testutil.NewFakeClock(time.Time{}))
			s.Run(context.Background(), nil)

			if len(fetcher.requests) != 0 {
				t.Error("Spawn called for an install the updater does not manage")
			}
			if len(notifier.available) != 1 || notifier.available[0] != "3.0.0" || notifier.commands[0] != tt.wantCommand {
				t.Errorf("Available notifications = %v %v", notifier.available, notifier.commands)
			}
		})
	}
}

func TestStartup_UpToDate(t *testing.T) {
	t.Parallel()

	s, fetcher, notifier := newStartup(curlInstall, memStore(), &stubSource{latest: release("2.5.0")}, testutil.NewFakeClock(time.Time{}))
	s.Run(context.Background(), nil)
	if len(fetcher.requests) != 0 || len(notifier.available) != 0 {
		t.Error("up-to-date install triggered update activity")
	}
}

func TestStartup_SpawnErrorIsSwallowed(t *testing.T) {
	t.Parallel()

	s, fetcher, _ := newStartup(curlInstall, memStore(), &stubSource{latest: release("3.0.0")}, testutil.NewFakeClock(time.Time{}))
	fetcher.err = errors.New("fork: resource temporarily unavailable")

	if code, exit := s.Run(context.Background(), nil); exit || code != 0 {
		t.Errorf("Run() = %d, %v; want 0, false", code, exit)
	}
}

func TestStartup_AppliesBeforeChecking(t *testing.T) {
	t.Parallel()

	layout, store := installFixture(t, "2.5.0", "3.0.0")
	markPending(t, store, layout, "3.0.0")

	source := &stubSource{latest: release("3.1.0")}
	runner := &fakeRunner{code: 7}
	s, fetcher, notifier := newStartup(curlInstall, store, source, testutil.NewFakeClock(time.Time{}))
	s.Applier = NewApplier(layout, store, runner, notifier, nil)

	code, exit := s.Run(context.Background(), []string{"version"})
	if !exit || code != 7 {
		t.Errorf("Run() = %d, %v; want 7, true", code, exit)
	}
	if source.calls != 0 || len(fetcher.requests) != 0 {
		t.Error("update check ran in the process that re-executed")
	}
	if v, _ := layout.ActiveVersion(); v != "3.0.0" {
		t.Errorf("active version = %q, want 3.0.0", v)
	}
}

func TestStartup_AppliedWithoutReexecSkipsCheck(t *testing.T) {
	t.Parallel()

	layout, store := installFixture(t, "2.5.0", "3.0.0")
	markPending(t, store, layout, "3.0.0")

	source := &stubSource{latest: release("3.1.0")}
	s, _, _ := newStartup(curlInstall, store, source, testutil.NewFakeClock(time.Time{}))
	s.Applier = NewApplier(layout, store, nil, nil, nil)

	if code, exit := s.Run(context.Background(), nil); exit || code != 0 {
		t.Errorf("Run() = %d, %v; want 0, false", code, exit)
	}
	if source.calls != 0 {
		t.Error("stale process checked for updates after activation")
	}
}

func TestGuardActive(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"1":     true,
		"true":  true,
		"TRUE":  true,
		" yes ": true,
		"":      false,
		"0":     false,
		"false": false,
		"no":    false,
		"on":    false,
	}
	for value, want := range tests {
		if got := GuardActive(value); got != want {
			t.Errorf("GuardActive(%q) = %v, want %v", value, got, want)
		}
	}
}
