//go:build !darwin && !windows && !linux

package clip

import "log/slog"

// New returns the in-memory backend; there is no host clipboard integration
// on this platform.
func New() Backend {
	slog.Warn("no clipboard integration on this platform, running headless")
	return NewMemory()
}
