// Package writeback puts a history entry back on the clipboard and triggers
// a paste into the application that had focus.
//
// The coordinator marks its own clipboard write through the monitor's
// Suppression Flag before writing, so the monitor does not re-capture it. The
// paste keystroke is deferred by a short settle delay to let the target
// application regain focus; a newer request replaces a pending one.
package writeback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.klb.dev/cliptext/internal/content"
	"go.klb.dev/cliptext/internal/history"
)

// DefaultSettleDelay is the pause between the clipboard write and the paste.
const DefaultSettleDelay = 100 * time.Millisecond

var (
	// ErrStale is returned when the referenced entry has been evicted or removed.
	ErrStale = errors.New("entry no longer in history")
	// ErrNoPlainText is returned by the plain variant for content with no
	// textual projection.
	ErrNoPlainText = errors.New("entry has no plain text")
)

// Source resolves entry references. *history.Store satisfies it.
type Source interface {
	Get(id uuid.UUID) (history.Entry, bool)
}

// Clipboard is the write side of the host clipboard.
type Clipboard interface {
	Write(content.Payload) error
}

// Suppressor marks the next clipboard change as self-inflicted.
// *monitor.Monitor satisfies it.
type Suppressor interface {
	Suppress()
}

// Injector sends the paste keystroke to target. An empty target means the
// application that currently has focus.
type Injector interface {
	InjectPaste(target string) error
}

// Task is a scheduled callback that can be cancelled.
type Task interface {
	// Stop cancels the task, reporting whether it had not yet run.
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Task
}

// TimerScheduler schedules on the runtime timer.
type TimerScheduler struct{}

func (TimerScheduler) AfterFunc(d time.Duration, f func()) Task {
	return time.AfterFunc(d, f)
}

// Options tunes a Coordinator. Zero values select defaults.
type Options struct {
	SettleDelay time.Duration
	Scheduler   Scheduler
}

// Coordinator performs write-back requests.
type Coordinator struct {
	source   Source
	clip     Clipboard
	suppress Suppressor
	inject   Injector
	sched    Scheduler
	log      *slog.Logger

	mu      sync.Mutex
	delay   time.Duration
	pending Task
	seq     uint64
}

// New returns a coordinator.
func New(source Source, clip Clipboard, suppress Suppressor, inject Injector, opts Options) *Coordinator {
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.Scheduler == nil {
		opts.Scheduler = TimerScheduler{}
	}
	return &Coordinator{
		source:   source,
		clip:     clip,
		suppress: suppress,
		inject:   inject,
		sched:    opts.Scheduler,
		log:      slog.With("component", "writeback"),
		delay:    opts.SettleDelay,
	}
}

// WriteAndPaste writes the entry's full content to the clipboard and
// schedules a paste into target.
func (c *Coordinator) WriteAndPaste(id uuid.UUID, target string) error {
	e, ok := c.source.Get(id)
	if !ok {
		return ErrStale
	}
	return c.write(e, content.Encode(e.Content), target)
}

// WriteAndPastePlain writes only the plain-text projection of the entry.
// Images and file lists have none: the call returns ErrNoPlainText and
// touches neither the clipboard nor the Suppression Flag.
func (c *Coordinator) WriteAndPastePlain(id uuid.UUID, target string) error {
	e, ok := c.source.Get(id)
	if !ok {
		return ErrStale
	}
	p, ok := content.EncodePlain(e.Content)
	if !ok {
		return ErrNoPlainText
	}
	return c.write(e, p, target)
}

func (c *Coordinator) write(e history.Entry, p content.Payload, target string) error {
	// The flag goes up before the write so the monitor cannot observe the
	// change first. On failure it stays set; the next external change is
	// then swallowed, which is the documented cost of a failed write.
	c.suppress.Suppress()
	if err := c.clip.Write(p); err != nil {
		c.log.Warn("clipboard write failed", "id", e.ID, "err", err)
		return fmt.Errorf("write entry %s: %w", e.ID, err)
	}
	c.log.Debug("entry written to clipboard", "id", e.ID, "types", p.Types())
	c.schedule(target)
	return nil
}

func (c *Coordinator) schedule(target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.pending.Stop()
	}
	c.seq++
	seq := c.seq
	c.pending = c.sched.AfterFunc(c.delay, func() { c.fire(seq, target) })
}

func (c *Coordinator) fire(seq uint64, target string) {
	c.mu.Lock()
	if seq != c.seq {
		// replaced after the timer had already fired
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.mu.Unlock()

	if err := c.inject.InjectPaste(target); err != nil {
		c.log.Warn("paste injection failed", "target", target, "err", err)
		return
	}
	c.log.Debug("paste injected", "target", target)
}

// Cancel drops a pending paste, reporting whether there was one.
func (c *Coordinator) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return false
	}
	c.pending.Stop()
	c.pending = nil
	c.seq++
	return true
}

// Pending reports whether a paste is scheduled but has not fired.
func (c *Coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// SettleDelay returns the configured delay.
func (c *Coordinator) SettleDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delay
}

// SetSettleDelay changes the delay for subsequent requests.
func (c *Coordinator) SetSettleDelay(d time.Duration) {
	if d <= 0 {
		d = DefaultSettleDelay
	}
	c.mu.Lock()
	c.delay = d
	c.mu.Unlock()
}
