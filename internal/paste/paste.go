// Package paste triggers the host's paste keystroke in a target application.
//
// Each platform has its own Injector; the target is platform specific:
//
//	darwin   application name to activate first (osascript)
//	linux    X11 window id to activate first (xdotool); ignored under wtype
//	windows  window handle to bring to the foreground (SendInput)
//
// An empty target pastes into whatever currently has focus.
package paste

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsupported is returned when the host has no way to synthesise a paste.
var ErrUnsupported = errors.New("paste injection not supported on this host")

// Injector sends the paste keystroke.
type Injector interface {
	InjectPaste(target string) error
}

// Nop records nothing and always succeeds. Headless mode uses it.
type Nop struct{}

func (Nop) InjectPaste(string) error { return nil }

// appleScript builds the osascript program that activates target and presses
// Command-V.
func appleScript(target string) string {
	var b strings.Builder
	if target != "" {
		fmt.Fprintf(&b, "tell application %s to activate\n", strconv.Quote(target))
		b.WriteString("delay 0.1\n")
	}
	b.WriteString(`tell application "System Events" to keystroke "v" using command down`)
	return b.String()
}

// xdotoolArgs builds the xdotool invocation for target, an X11 window id.
func xdotoolArgs(target string) ([]string, error) {
	if target == "" {
		return []string{"key", "--clearmodifiers", "ctrl+v"}, nil
	}
	if _, err := strconv.ParseUint(target, 0, 64); err != nil {
		return nil, fmt.Errorf("invalid window id %q", target)
	}
	return []string{"windowactivate", "--sync", target, "key", "--clearmodifiers", "ctrl+v"}, nil
}

// wtypeArgs presses Ctrl+V on Wayland. wtype cannot address a window.
func wtypeArgs() []string {
	return []string{"-M", "ctrl", "v", "-m", "ctrl"}
}
