// Package monitor polls the host clipboard for changes and feeds decoded
// snapshots into the history.
//
// Detection relies on the host's opaque change counter: the common case is a
// cheap counter read that shows nothing changed. When the counter moves, the
// current payload is read and decoded. Between the counter read and the
// payload read the clipboard may change again; the monitor only ever sees the
// latest payload, so intermediate copies can be coalesced. Clipboard history
// is best effort on intermediate states.
//
// The Suppression Flag lets the write-back path mark its own clipboard write
// so the next observed change is swallowed instead of re-captured.
package monitor

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.klb.dev/cliptext/internal/content"
	"go.klb.dev/cliptext/internal/history"
)

// DefaultInterval is the poll interval used when none is configured.
const DefaultInterval = 500 * time.Millisecond

// Clipboard is the read side of the host clipboard.
type Clipboard interface {
	ChangeCount() int64
	Read() (content.Payload, error)
}

// Sink receives decoded entries. *history.Store satisfies it.
type Sink interface {
	Push(history.Entry) bool
}

// State is the monitor's lifecycle state.
type State int

const (
	Idle State = iota
	Watching
)

func (s State) String() string {
	if s == Watching {
		return "watching"
	}
	return "idle"
}

// Outcome describes what a single poll tick did.
type Outcome int

const (
	Unchanged Outcome = iota
	Suppressed
	ReadFailed
	Undecodable
	Duplicate
	Captured
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Suppressed:
		return "suppressed"
	case ReadFailed:
		return "read-failed"
	case Undecodable:
		return "undecodable"
	case Duplicate:
		return "duplicate"
	case Captured:
		return "captured"
	default:
		return "unknown"
	}
}

// Options tunes a Monitor. Zero values select defaults.
type Options struct {
	Interval time.Duration
	// Now stamps captured entries; defaults to time.Now.
	Now func() time.Time
}

// Monitor is the change-detection state machine.
type Monitor struct {
	clip Clipboard
	sink Sink
	now  func() time.Time
	log  *slog.Logger

	suppress atomic.Bool

	// tickMu serialises ticks; lastCount is only touched under it.
	tickMu    sync.Mutex
	lastCount int64

	mu       sync.Mutex
	state    State
	interval time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
}

// New returns an idle monitor. The current change counter is taken as the
// baseline so whatever is on the clipboard at startup is not captured.
func New(clip Clipboard, sink Sink, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Monitor{
		clip:      clip,
		sink:      sink,
		now:       opts.Now,
		log:       slog.With("component", "monitor"),
		lastCount: clip.ChangeCount(),
		interval:  opts.Interval,
	}
}

// Start begins polling. Calling Start while already watching restarts the
// ticker.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	m.startLocked()
	m.log.Info("clipboard monitor started", "interval", m.interval)
}

// Stop cancels polling and waits for the poll goroutine to exit. No tick
// fires after Stop returns.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopLocked() {
		m.log.Info("clipboard monitor stopped")
	}
}

// State reports whether the monitor is polling.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Interval returns the configured poll interval.
func (m *Monitor) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// SetInterval changes the poll interval, restarting the ticker if watching.
func (m *Monitor) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultInterval
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if d == m.interval {
		return
	}
	m.interval = d
	if m.stopLocked() {
		m.startLocked()
		m.log.Info("poll interval changed", "interval", d)
	}
}

// Suppress sets the Suppression Flag: the next observed clipboard change is
// treated as self-inflicted and not captured.
func (m *Monitor) Suppress() {
	m.suppress.Store(true)
}

// Suppressed reports whether the Suppression Flag is set.
func (m *Monitor) Suppressed() bool {
	return m.suppress.Load()
}

// Tick runs one poll cycle synchronously. The timer calls it; tests call it
// directly instead of waiting on wall-clock time.
func (m *Monitor) Tick() Outcome {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	count := m.clip.ChangeCount()
	if count == m.lastCount {
		return Unchanged
	}
	// Record first so a decode failure is not retried on every tick.
	m.lastCount = count

	if m.suppress.CompareAndSwap(true, false) {
		m.log.Debug("ignoring self-inflicted clipboard change", "count", count)
		return Suppressed
	}

	payload, err := m.clip.Read()
	if err != nil {
		m.log.Warn("clipboard read failed", "err", err)
		return ReadFailed
	}
	c, ok := content.Decode(payload)
	if !ok {
		m.log.Debug("clipboard change not decodable", "types", payload.Types())
		return Undecodable
	}

	e := history.NewEntry(c, m.now())
	if !m.sink.Push(e) {
		m.log.Debug("duplicate clipboard entry dropped", "kind", c.Kind())
		return Duplicate
	}
	m.log.Debug("clipboard entry captured", "id", e.ID, "kind", c.Kind(), "label", content.Label(c))
	return Captured
}

func (m *Monitor) startLocked() {
	done := make(chan struct{})
	m.done = done
	m.state = Watching
	m.wg.Add(1)
	go m.poll(m.interval, done)
}

// stopLocked reports whether the monitor was watching.
func (m *Monitor) stopLocked() bool {
	if m.state != Watching {
		return false
	}
	close(m.done)
	m.wg.Wait()
	m.done = nil
	m.state = Idle
	return true
}

func (m *Monitor) poll(interval time.Duration, done <-chan struct{}) {
	defer m.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			// A stop may race the ticker; done wins.
			select {
			case <-done:
				return
			default:
			}
			m.Tick()
		}
	}
}
