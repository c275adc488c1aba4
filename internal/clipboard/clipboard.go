// Package clipboard copies text to the system clipboard. It prefers the
// platform's native tool and falls back to the OSC 52 escape sequence, which
// reaches the local clipboard even over SSH when the terminal supports it.
package clipboard

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/slacksift/slacksift/internal/platform"
)

// CopyResult describes how a copy was performed.
type CopyResult struct {
	Method string
	Lines  int
}

// Copy places text on the clipboard.
func Copy(text string) (*CopyResult, error) {
	if text == "" {
		return nil, errors.New("nothing to copy")
	}
	lines := countLines(text)

	if method, err := nativeCopy(text); err == nil {
		return &CopyResult{Method: method, Lines: lines}, nil
	}

	if err := osc52Copy(text); err != nil {
		return nil, fmt.Errorf("no native clipboard tool and OSC 52 failed: %w", err)
	}
	return &CopyResult{Method: "osc52", Lines: lines}, nil
}

// nativeCopy shells out to the host's clipboard tool. exec.Command resolves
// PATH itself; LookPath is only used to choose between candidates on Linux.
func nativeCopy(text string) (string, error) {
	switch kind := platform.Detect(); kind {
	case platform.MacOS:
		return "pbcopy", pipeTo(text, "pbcopy")
	case platform.WSL:
		return "clip.exe", pipeTo(text, "clip.exe")
	case platform.Linux:
		if os.Getenv("WAYLAND_DISPLAY") != "" {
			if _, err := exec.LookPath("wl-copy"); err == nil {
				return "wl-copy", pipeTo(text, "wl-copy")
			}
		}
		if _, err := exec.LookPath("xclip"); err == nil {
			return "xclip", pipeTo(text, "xclip", "-selection", "clipboard")
		}
		if _, err := exec.LookPath("xsel"); err == nil {
			return "xsel", pipeTo(text, "xsel", "--clipboard", "--input")
		}
		return "", errors.New("no clipboard tool installed (xclip, xsel, or wl-copy)")
	default:
		return "", fmt.Errorf("no clipboard tool for %s", kind)
	}
}

func pipeTo(text, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}

// osc52Copy writes the OSC 52 sequence straight to the controlling terminal
// so it survives stdout redirection. Under tmux the sequence needs a DCS
// passthrough wrapper or tmux swallows it.
func osc52Copy(text string) error {
	seq := osc52Sequence(base64.StdEncoding.EncodeToString([]byte(text)), os.Getenv("TMUX") != "")

	tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer tty.Close()

	_, err = tty.WriteString(seq)
	return err
}

func osc52Sequence(encoded string, inTmux bool) string {
	seq := "\x1b]52;c;" + encoded + "\x07"
	if inTmux {
		return "\x1bPtmux;\x1b" + seq + "\x1b\\"
	}
	return seq
}

// countLines counts lines without charging for a trailing newline.
func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
