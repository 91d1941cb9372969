//go:build linux

package clip

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.design/x/clipboard"

	"go.klb.dev/cliptext/internal/content"
)

const (
	linuxPollInterval = 250 * time.Millisecond
	toolTimeout       = 500 * time.Millisecond
)

// extraTypes are fetched through wl-paste or xclip, since
// golang.design/x/clipboard only speaks text and PNG.
var extraTypes = []string{content.MIMEURIList, content.MIMEHTML, content.MIMERTF, content.MIMETIFF, content.MIMEBMP}

// selection is the text and image clipboard, golang.design/x/clipboard in
// production.
type selection interface {
	read(f clipboard.Format) []byte
	write(f clipboard.Format, data []byte)
}

type xSelection struct{}

func (xSelection) read(f clipboard.Format) []byte        { return clipboard.Read(f) }
func (xSelection) write(f clipboard.Format, data []byte) { clipboard.Write(f, data) }

type linuxBackend struct {
	sel     selection
	tool    selectionTool
	count   atomic.Int64
	mu      sync.Mutex
	lastSum uint64
	done    chan struct{}
}

// New returns the Linux clipboard backend, or the in-memory backend if the
// display environment is unavailable (e.g. a headless server without X11 or
// Wayland). clipboard.Init is called here rather than in init() so that CLI
// sub-commands don't trigger the warning.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return NewMemory()
	}
	b := newLinuxBackend(xSelection{}, detectTool())
	if b.tool == nil {
		slog.Info("neither wl-paste nor xclip found, only text and images are captured")
	}
	go b.poll()
	return b
}

func newLinuxBackend(sel selection, tool selectionTool) *linuxBackend {
	b := &linuxBackend{sel: sel, tool: tool, done: make(chan struct{})}
	b.lastSum = b.fingerprint()
	return b
}

func (b *linuxBackend) Name() string {
	if b.tool != nil {
		return "Linux clipboard (" + b.tool.name() + ")"
	}
	return "Linux clipboard (poll)"
}

func (b *linuxBackend) ChangeCount() int64 { return b.count.Load() }

// poll stands in for a host change counter: X11 and Wayland offer none, so
// the text and image targets are hashed on a short interval.
func (b *linuxBackend) poll() {
	t := time.NewTicker(linuxPollInterval)
	defer t.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			b.check()
		}
	}
}

// check bumps the change count if the selection differs from the last one
// seen.
func (b *linuxBackend) check() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sum := b.fingerprint(); sum != b.lastSum {
		b.lastSum = sum
		b.count.Add(1)
	}
}

func (b *linuxBackend) fingerprint() uint64 {
	h := fnv.New64a()
	h.Write(b.sel.read(clipboard.FmtText))
	h.Write([]byte{0})
	h.Write(b.sel.read(clipboard.FmtImage))
	if b.tool != nil {
		h.Write([]byte{0})
		h.Write([]byte(strings.Join(b.tool.types(), "\n")))
	}
	return h.Sum64()
}

func (b *linuxBackend) Read() (content.Payload, error) {
	p := content.Payload{}
	if text := b.sel.read(clipboard.FmtText); text != nil {
		p[content.MIMEText] = text
	}
	if img := b.sel.read(clipboard.FmtImage); img != nil {
		p[content.MIMEPNG] = img
	}
	if b.tool == nil {
		return p, nil
	}
	offered := b.tool.types()
	for _, mime := range extraTypes {
		if !slices.Contains(offered, mime) {
			continue
		}
		data, err := b.tool.read(mime)
		if err != nil {
			slog.Debug("clipboard target read failed", "type", mime, "err", err)
			continue
		}
		p[mime] = data
	}
	return p, nil
}

// Write publishes p. X11 and Wayland selections are owned by one process per
// write, so only one representation survives: file lists and images win, rich
// text degrades to its plain fallback.
//
// The poller is held off until the new fingerprint is recorded, so a write
// bumps the change count exactly once.
func (b *linuxBackend) Write(p content.Payload) error {
	p, err := pngOnly(p)
	if err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case p.Has(content.MIMEURIList):
		if b.tool == nil {
			return fmt.Errorf("write file list: %w", ErrUnavailable)
		}
		if err := b.tool.write(content.MIMEURIList, p[content.MIMEURIList]); err != nil {
			return fmt.Errorf("write file list: %w", err)
		}
	case p.Has(content.MIMEPNG):
		b.sel.write(clipboard.FmtImage, p[content.MIMEPNG])
	case p.Has(content.MIMEText):
		b.sel.write(clipboard.FmtText, p[content.MIMEText])
	default:
		return fmt.Errorf("write clipboard: unsupported types %v", p.Types())
	}
	b.lastSum = b.fingerprint()
	b.count.Add(1)
	return nil
}

func (b *linuxBackend) Close() { close(b.done) }

// selectionTool shells out to a command-line selection helper.
type selectionTool interface {
	name() string
	types() []string
	read(mime string) ([]byte, error)
	write(mime string, data []byte) error
}

func detectTool() selectionTool {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		if _, err := exec.LookPath("wl-paste"); err == nil {
			return wlTool{}
		}
	}
	if _, err := exec.LookPath("xclip"); err == nil {
		return xclipTool{}
	}
	return nil
}

type wlTool struct{}

func (wlTool) name() string { return "wl-clipboard" }

func (wlTool) types() []string {
	out, err := run("wl-paste", "--no-newline", "--list-types")
	if err != nil {
		return nil
	}
	return lines(out)
}

func (wlTool) read(mime string) ([]byte, error) {
	return run("wl-paste", "--no-newline", "--type", mime)
}

func (wlTool) write(mime string, data []byte) error {
	return feed(data, "wl-copy", "--type", mime)
}

type xclipTool struct{}

func (xclipTool) name() string { return "xclip" }

func (xclipTool) types() []string {
	out, err := run("xclip", "-selection", "clipboard", "-t", "TARGETS", "-o")
	if err != nil {
		return nil
	}
	return lines(out)
}

func (xclipTool) read(mime string) ([]byte, error) {
	return run("xclip", "-selection", "clipboard", "-t", mime, "-o")
}

func (xclipTool) write(mime string, data []byte) error {
	return feed(data, "xclip", "-selection", "clipboard", "-t", mime, "-i")
}

func run(name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), toolTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// feed pipes data into a copy helper. Both helpers fork a child that keeps
// owning the selection, so stdout is left unattached to avoid waiting on it.
func feed(data []byte, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = bytes.NewReader(data)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func lines(b []byte) []string {
	var out []string
	for _, l := range strings.Split(string(b), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
