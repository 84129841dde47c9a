// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"path/filepath"
	"runtime/debug"
	"testing"
)

// stubBuildInfo replaces readBuildInfo for the duration of the test.
func stubBuildInfo(t *testing.T, path string) {
	t.Helper()
	saved := readBuildInfo
	t.Cleanup(func() { readBuildInfo = saved })
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		if path == "" {
			return nil, false
		}
		return &debug.BuildInfo{Path: path}, true
	}
}

func TestDetectInstallMethod(t *testing.T) {
	// Not parallel: mutates readBuildInfo and GOPATH.
	gopath := t.TempDir()
	t.Setenv("GOPATH", gopath)
	stubBuildInfo(t, "")

	layout := NewLayout("/home/user/.ethos")

	tests := []struct {
		name       string
		path       string
		want       InstallMethod
		autoUpdate bool
		command    string
	}{
		{
			name:       "self-managed versioned binary",
			path:       "/home/user/.ethos/versions/1.2.0/bin/ethos",
			want:       InstallMethodCurl,
			autoUpdate: true,
			command:    "ethos upgrade",
		},
		{
			name:    "homebrew on apple silicon",
			path:    "/opt/homebrew/Cellar/ethos/1.2.0/bin/ethos",
			want:    InstallMethodHomebrew,
			command: "brew upgrade ethos",
		},
		{
			name: "homebrew on intel",
			path: "/usr/local/Cellar/ethos/1.2.0/bin/ethos",
			want: InstallMethodHomebrew,
		},
		{
			name: "linuxbrew",
			path: "/home/linuxbrew/.linuxbrew/bin/ethos",
			want: InstallMethodHomebrew,
		},
		{
			name: "custom homebrew prefix",
			path: "/srv/brew/Cellar/ethos/1.2.0/bin/ethos",
			want: InstallMethodHomebrew,
		},
		{
			name:    "npm global",
			path:    "/usr/lib/node_modules/@ethos-cli/ethos/bin/ethos",
			want:    InstallMethodNPM,
			command: "npm install -g @ethos-cli/ethos@latest",
		},
		{
			name: "go run",
			path: "/tmp/go-build1234567/b001/exe/ethos",
			want: InstallMethodDev,
		},
		{
			name:    "manual download",
			path:    "/usr/local/bin/ethos",
			want:    InstallMethodUnknown,
			command: ReleasesPageURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectInstallMethod(tt.path, layout)
			if got.Method != tt.want {
				t.Errorf("DetectInstallMethod(%q).Method = %v, want %v", tt.path, got.Method, tt.want)
			}
			if got.SupportsAutoUpdate != tt.autoUpdate {
				t.Errorf("SupportsAutoUpdate = %v, want %v", got.SupportsAutoUpdate, tt.autoUpdate)
			}
			if tt.command != "" && got.UpdateCommand != tt.command {
				t.Errorf("UpdateCommand = %q, want %q", got.UpdateCommand, tt.command)
			}
		})
	}
}

func TestDetectInstallMethod_SelfManagedWinsOverLookalikes(t *testing.T) {
	// Not parallel: mutates readBuildInfo.
	stubBuildInfo(t, modulePath)

	// ETHOS_HOME placed under paths that match every other rule.
	for _, root := range []string{
		"/opt/homebrew/Cellar/share/ethos-home",
		"/srv/app/node_modules/.ethos",
		"/tmp/go-build99/.ethos",
	} {
		layout := NewLayout(root)
		exe := filepath.Join(root, "versions", "1.0.0", "bin", "ethos")
		if got := DetectInstallMethod(exe, layout); got.Method != InstallMethodCurl {
			t.Errorf("DetectInstallMethod(%q) with root %q = %v, want curl", exe, root, got.Method)
		}
	}
}

func TestDetectInstallMethod_GOPATHBin(t *testing.T) {
	// Not parallel: mutates GOPATH and readBuildInfo.
	gopath := t.TempDir()
	t.Setenv("GOPATH", gopath)
	exe := filepath.Join(gopath, "bin", "ethos")
	layout := NewLayout(t.TempDir())

	stubBuildInfo(t, modulePath)
	if got := DetectInstallMethod(exe, layout); got.Method != InstallMethodDev {
		t.Errorf("go install build = %v, want dev", got.Method)
	}

	stubBuildInfo(t, "example.com/other")
	if got := DetectInstallMethod(exe, layout); got.Method != InstallMethodUnknown {
		t.Errorf("foreign binary in GOPATH/bin = %v, want unknown", got.Method)
	}
}

func TestInstallMethod_String(t *testing.T) {
	t.Parallel()

	want := map[InstallMethod]string{
		InstallMethodUnknown:  "unknown",
		InstallMethodCurl:     "curl",
		InstallMethodHomebrew: "homebrew",
		InstallMethodNPM:      "npm",
		InstallMethodDev:      "dev",
		InstallMethod(42):     "unknown",
	}
	for m, s := range want {
		if got := m.String(); got != s {
			t.Errorf("InstallMethod(%d).String() = %q, want %q", int(m), got, s)
		}
	}
}

func TestExecutablePath(t *testing.T) {
	// Not parallel: replaces osExecutable and evalSymlinks.
	savedExec, savedEval := osExecutable, evalSymlinks
	t.Cleanup(func() { osExecutable, evalSymlinks = savedExec, savedEval })

	osExecutable = func() (string, error) { return "/home/u/.ethos/bin/ethos", nil }
	evalSymlinks = func(p string) (string, error) {
		return "/home/u/.ethos/versions/2.0.0/bin/ethos", nil
	}

	got, err := ExecutablePath()
	if err != nil {
		t.Fatalf("ExecutablePath() error: %v", err)
	}
	if got != "/home/u/.ethos/versions/2.0.0/bin/ethos" {
		t.Errorf("ExecutablePath() = %q", got)
	}
}
