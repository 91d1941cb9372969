// Package clip provides a unified interface to the system clipboard across
// platforms. Build constraints select the appropriate implementation:
//
//	clip_darwin.go   macOS via NSPasteboard (cgo) and golang.design/x/clipboard
//	clip_windows.go  Windows via GetClipboardSequenceNumber and CF_HDROP
//	clip_linux.go    Linux via golang.design/x/clipboard with wl-paste/xclip extras
//	clip_other.go    everything else gets the in-memory backend
package clip

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"maps"
	"slices"
	"sync"

	"go.klb.dev/cliptext/internal/content"
)

// ErrUnavailable is returned by Write when the host clipboard cannot be
// reached at all.
var ErrUnavailable = errors.New("clipboard unavailable")

// Backend is the interface that all platform clipboard implementations satisfy.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// ChangeCount returns an opaque counter that differs whenever the
	// clipboard contents have changed since the last call. Only equality is
	// meaningful.
	ChangeCount() int64

	// Read returns every representation currently on the clipboard that the
	// backend knows how to fetch, keyed by MIME type. An empty clipboard
	// yields an empty payload and no error.
	Read() (content.Payload, error)

	// Write replaces the clipboard contents with p. Each representation is
	// written together so readers see one consistent change.
	Write(p content.Payload) error

	// Close releases any resources held by the backend.
	Close()
}

// pngOnly rewrites image representations whose MIME type is not in keep as
// PNG, for hosts that cannot carry TIFF or BMP natively.
func pngOnly(p content.Payload, keep ...string) (content.Payload, error) {
	out := maps.Clone(p)
	for _, mime := range []string{content.MIMETIFF, content.MIMEBMP} {
		data, ok := out[mime]
		if !ok || slices.Contains(keep, mime) {
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", mime, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		delete(out, mime)
		if !out.Has(content.MIMEPNG) {
			out[content.MIMEPNG] = buf.Bytes()
		}
	}
	return out, nil
}

// Memory is an in-process clipboard. It backs --headless mode and tests.
type Memory struct {
	mu      sync.Mutex
	count   int64
	payload content.Payload
	// failWrite, when set, is returned by the next Write.
	failWrite error
}

// NewMemory returns an empty in-memory clipboard.
func NewMemory() *Memory {
	return &Memory{payload: content.Payload{}}
}

func (m *Memory) Name() string { return "in-memory" }

func (m *Memory) ChangeCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

func (m *Memory) Read() (content.Payload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.payload), nil
}

func (m *Memory) Write(p content.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failWrite; err != nil {
		m.failWrite = nil
		return err
	}
	m.payload = maps.Clone(p)
	m.count++
	return nil
}

// Set replaces the contents as another application would. It is Write
// without the injected failure.
func (m *Memory) Set(p content.Payload) {
	m.mu.Lock()
	m.payload = maps.Clone(p)
	m.count++
	m.mu.Unlock()
}

// FailNextWrite makes the next Write return err without touching the contents.
func (m *Memory) FailNextWrite(err error) {
	m.mu.Lock()
	m.failWrite = err
	m.mu.Unlock()
}

func (m *Memory) Close() {}
