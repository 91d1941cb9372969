//go:build darwin

package paste

import (
	"fmt"
	"os/exec"
	"strings"
)

type osascript struct{}

// New returns the macOS injector. It needs the Accessibility permission for
// System Events keystrokes.
func New() Injector { return osascript{} }

func (osascript) InjectPaste(target string) error {
	out, err := exec.Command("osascript", "-e", appleScript(target)).CombinedOutput()
	if err != nil {
		return fmt.Errorf("osascript: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
