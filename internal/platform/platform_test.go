package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDetect(t *testing.T) {
	p := Detect()
	if p == "" {
		t.Fatal("Detect() returned empty kind")
	}

	switch runtime.GOOS {
	case "darwin":
		if p != MacOS {
			t.Errorf("expected MacOS on darwin, got %s", p)
		}
	case "linux":
		if p != Linux && p != WSL {
			t.Errorf("expected Linux or WSL on linux, got %s", p)
		}
	}

	if p2 := Detect(); p2 != p {
		t.Errorf("Detect() not stable: got %s then %s", p, p2)
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{MacOS, "macOS"},
		{Linux, "Linux"},
		{WSL, "WSL"},
		{Windows, "Windows"},
		{Unknown, "unknown"},
		{Kind("bogus"), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("%q.String() = %q, want %q", string(tt.kind), got, tt.want)
		}
	}
}

func TestMountTypeLongestMatch(t *testing.T) {
	mounts := filepath.Join(t.TempDir(), "mounts")
	content := `proc /proc proc rw 0 0
/dev/sda1 / ext4 rw,relatime 0 0
drvfs /mnt/c 9p rw,noatime 0 0
server:/export /mnt/c/deep nfs4 rw 0 0
`
	if err := os.WriteFile(mounts, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want string
	}{
		{"/home/user/.slacksift/state.json", "ext4"},
		{"/mnt/c/Users/me", "9p"},
		{"/mnt/c/deep/dir", "nfs4"},
	}
	for _, tt := range tests {
		if got := mountType(tt.path, mounts); got != tt.want {
			t.Errorf("mountType(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestMountTypeMissingFile(t *testing.T) {
	if got := mountType("/anything", "/nonexistent/mounts"); got != "" {
		t.Errorf("expected empty type for unreadable mounts file, got %q", got)
	}
}

func TestFsnotifyWarningLocalDisk(t *testing.T) {
	// The test binary's own directory is on a real local filesystem in CI
	// and development, so no warning is expected.
	if runtime.GOOS != "linux" {
		t.Skip("linux-only check")
	}
	dir := t.TempDir()
	if w := FsnotifyWarning(filepath.Join(dir, "state.json")); w != "" {
		t.Logf("warning on temp dir (network-mounted build env?): %s", w)
	}
}
