// Package platform identifies the host environment so callers can pick the
// right system integration: which clipboard tool to shell out to, and
// whether filesystem notifications can be trusted.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Kind is the detected host environment.
type Kind string

const (
	MacOS   Kind = "macos"
	Linux   Kind = "linux"
	WSL     Kind = "wsl"
	Windows Kind = "windows"
	Unknown Kind = "unknown"
)

var (
	detectOnce sync.Once
	detected   Kind
)

// Detect reports the host kind. The result is cached for the process.
func Detect() Kind {
	detectOnce.Do(func() { detected = detect() })
	return detected
}

func detect() Kind {
	switch runtime.GOOS {
	case "darwin":
		return MacOS
	case "windows":
		return Windows
	case "linux":
		if isWSL() {
			return WSL
		}
		return Linux
	default:
		return Unknown
	}
}

// isWSL checks the env marker first and falls back to the kernel version
// string, which carries a "microsoft" signature on both WSL1 and WSL2.
func isWSL() bool {
	if os.Getenv("WSL_DISTRO_NAME") != "" {
		return true
	}
	raw, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(raw)), "microsoft")
}

func (k Kind) String() string {
	switch k {
	case MacOS:
		return "macOS"
	case Linux:
		return "Linux"
	case WSL:
		return "WSL"
	case Windows:
		return "Windows"
	default:
		return "unknown"
	}
}

// FsnotifyWarning reports a human-readable warning when path sits on a
// filesystem where inotify events never arrive or arrive unreliably (9p,
// NFS, CIFS, SSHFS). An empty string means events should work.
func FsnotifyWarning(path string) string {
	if runtime.GOOS != "linux" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	switch fsType := mountType(abs, "/proc/mounts"); {
	case fsType == "9p":
		return "watched file is on a 9p mount (WSL Windows drive); change events are unavailable"
	case fsType == "nfs", fsType == "nfs4":
		return "watched file is on an NFS mount; change events may be unreliable"
	case fsType == "cifs", fsType == "smbfs":
		return "watched file is on a CIFS/SMB mount; change events may be unreliable"
	case strings.HasPrefix(fsType, "fuse.sshfs"):
		return "watched file is on an SSHFS mount; change events are unavailable"
	}
	return ""
}

// mountType returns the filesystem type of the longest mount point that
// prefixes abs, parsed from a mounts file in /proc/mounts format.
func mountType(abs, mountsFile string) string {
	raw, err := os.ReadFile(mountsFile)
	if err != nil {
		return ""
	}
	var best, bestType string
	for _, line := range strings.Split(string(raw), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		if strings.HasPrefix(abs, fields[1]) && len(fields[1]) > len(best) {
			best, bestType = fields[1], fields[2]
		}
	}
	return bestType
}
