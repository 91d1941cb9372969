//go:build linux

package paste

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

type command struct {
	name string
	args func(target string) ([]string, error)
}

// New returns an injector backed by wtype on Wayland or xdotool on X11.
// Without either tool every paste fails with ErrUnsupported.
func New() Injector {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		if _, err := exec.LookPath("wtype"); err == nil {
			return command{name: "wtype", args: func(target string) ([]string, error) {
				if target != "" {
					slog.Debug("wtype cannot target a window, pasting into the focused one", "target", target)
				}
				return wtypeArgs(), nil
			}}
		}
	}
	if _, err := exec.LookPath("xdotool"); err == nil {
		return command{name: "xdotool", args: xdotoolArgs}
	}
	slog.Warn("neither wtype nor xdotool found, paste injection disabled")
	return command{}
}

func (c command) InjectPaste(target string) error {
	if c.name == "" {
		return ErrUnsupported
	}
	args, err := c.args(target)
	if err != nil {
		return err
	}
	out, err := exec.Command(c.name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", c.name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
