// Package ipc locates and opens the local control socket that CLI tools use
// to talk to a running cliptext daemon.
//
// The socket carries both the gRPC command service and the line-protocol
// watch stream; see package control for the split.
package ipc

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// EnvSocket overrides the socket path.
const EnvSocket = "CLIPTEXT_SOCKET"

const socketName = "cliptext.sock"

// SocketPath returns the control socket path.
//
//   - $CLIPTEXT_SOCKET when set
//   - $XDG_RUNTIME_DIR/cliptext.sock (Linux sessions)
//   - $TMPDIR/cliptext.sock otherwise (macOS, Windows)
func SocketPath() string {
	if s := os.Getenv(EnvSocket); s != "" {
		return s
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, socketName)
	}
	return filepath.Join(os.TempDir(), socketName)
}

// Resolve returns path, or SocketPath() when path is empty.
func Resolve(path string) string {
	if path != "" {
		return path
	}
	return SocketPath()
}

// ErrInUse is returned by Listen when another daemon answers on the socket.
var ErrInUse = errors.New("control socket in use")

// Listen creates a listener on path, removing a stale socket file left by a
// crashed daemon. The socket is restricted to the owner.
func Listen(path string) (net.Listener, error) {
	if IsRunning(path) {
		return nil, fmt.Errorf("%w: %s", ErrInUse, path)
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("chmod %s: %w", path, err)
	}
	return ln, nil
}

// Dial connects to the socket at path.
func Dial(path string) (net.Conn, error) {
	return net.DialTimeout("unix", path, 2*time.Second)
}

// IsRunning reports whether a daemon appears to be listening on path. It
// does a cheap dial-and-close; no data is exchanged.
func IsRunning(path string) bool {
	c, err := net.DialTimeout("unix", path, 500*time.Millisecond)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}
