// Package engine wires the history store, change monitor, write-back
// coordinator and snapshot hub into one clipboard history engine.
//
// The engine itself never fails: decode problems, stale references and write
// errors are reported to the caller or logged, and polling carries on.
package engine

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.klb.dev/cliptext/internal/clip"
	"go.klb.dev/cliptext/internal/config"
	"go.klb.dev/cliptext/internal/content"
	"go.klb.dev/cliptext/internal/history"
	"go.klb.dev/cliptext/internal/hub"
	"go.klb.dev/cliptext/internal/message"
	"go.klb.dev/cliptext/internal/monitor"
	"go.klb.dev/cliptext/internal/paste"
	"go.klb.dev/cliptext/internal/writeback"
)

// Re-exported so callers need not import writeback for error checks.
var (
	ErrStale       = writeback.ErrStale
	ErrNoPlainText = writeback.ErrNoPlainText
)

// Options configures an Engine.
type Options struct {
	Capacity     int
	PollInterval time.Duration
	SettleDelay  time.Duration

	Clipboard clip.Backend
	Injector  paste.Injector

	// Scheduler and Now default to the wall clock.
	Scheduler writeback.Scheduler
	Now       func() time.Time
}

// OptionsFrom maps a validated config onto engine options.
func OptionsFrom(cfg config.Config, cb clip.Backend, inj paste.Injector) Options {
	return Options{
		Capacity:     cfg.Capacity,
		PollInterval: cfg.PollInterval,
		SettleDelay:  cfg.SettleDelay,
		Clipboard:    cb,
		Injector:     inj,
	}
}

// Status summarises the engine for the control interface.
type Status struct {
	State        string                `json:"state"`
	Backend      string                `json:"backend"`
	Capacity     int                   `json:"capacity"`
	Entries      int                   `json:"entries"`
	Pinned       int                   `json:"pinned"`
	PollInterval string                `json:"poll_interval"`
	SettleDelay  string                `json:"settle_delay"`
	Suppressed   bool                  `json:"suppressed"`
	PendingPaste bool                  `json:"pending_paste"`
	StartedAt    time.Time             `json:"started_at"`
	Watchers     []message.WatcherInfo `json:"watchers"`
}

// Engine is the clipboard history engine.
type Engine struct {
	store *history.Store
	mon   *monitor.Monitor
	co    *writeback.Coordinator
	hub   *hub.Hub
	clip  clip.Backend
	log   *slog.Logger

	// publishMu keeps snapshots reaching the hub in mutation order.
	publishMu sync.Mutex
	startedAt time.Time
}

// New builds an idle engine. Call Start to begin polling.
func New(opts Options) *Engine {
	if opts.Injector == nil {
		opts.Injector = paste.Nop{}
	}
	store := history.New(opts.Capacity)
	mon := monitor.New(opts.Clipboard, store, monitor.Options{
		Interval: opts.PollInterval,
		Now:      opts.Now,
	})
	co := writeback.New(store, opts.Clipboard, mon, opts.Injector, writeback.Options{
		SettleDelay: opts.SettleDelay,
		Scheduler:   opts.Scheduler,
	})
	e := &Engine{
		store: store,
		mon:   mon,
		co:    co,
		hub:   hub.New(),
		clip:  opts.Clipboard,
		log:   slog.With("component", "engine"),
	}
	store.SetChangeListener(e)
	e.publish()
	return e
}

// OnHistoryChange implements history.ChangeListener.
func (e *Engine) OnHistoryChange() { e.publish() }

func (e *Engine) publish() {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()
	e.hub.Publish(e.View())
}

// Start begins polling the clipboard.
func (e *Engine) Start() {
	e.publishMu.Lock()
	e.startedAt = time.Now()
	e.publishMu.Unlock()
	e.mon.Start()
}

// Stop halts polling and drops any pending paste. The history is kept.
func (e *Engine) Stop() {
	e.mon.Stop()
	if e.co.Cancel() {
		e.log.Debug("pending paste cancelled on stop")
	}
}

// State reports whether the engine is polling.
func (e *Engine) State() monitor.State { return e.mon.State() }

// Poll runs one monitor tick synchronously.
func (e *Engine) Poll() monitor.Outcome { return e.mon.Tick() }

// Hub returns the snapshot hub watchers register with.
func (e *Engine) Hub() *hub.Hub { return e.hub }

// View returns the current history as a presentation snapshot.
func (e *Engine) View() message.HistoryView {
	return message.ViewOfSnapshot(e.store.Snapshot(), e.store.Capacity())
}

// Entry returns the entry with the given ID.
func (e *Engine) Entry(id uuid.UUID) (history.Entry, bool) { return e.store.Get(id) }

// Text returns the full plain-text projection of an entry. Views only carry
// a preview.
func (e *Engine) Text(id uuid.UUID) (string, error) {
	entry, ok := e.store.Get(id)
	if !ok {
		return "", ErrStale
	}
	s, ok := content.PlainText(entry.Content)
	if !ok {
		return "", ErrNoPlainText
	}
	return s, nil
}

// TogglePin flips the pin state and returns the new state.
func (e *Engine) TogglePin(id uuid.UUID) (bool, error) {
	if !e.store.TogglePin(id) {
		return false, ErrStale
	}
	entry, ok := e.store.Get(id)
	if !ok {
		// removed between the toggle and the lookup
		return false, ErrStale
	}
	return entry.Pinned, nil
}

// Remove deletes an entry.
func (e *Engine) Remove(id uuid.UUID) error {
	if !e.store.Remove(id) {
		return ErrStale
	}
	return nil
}

// Clear removes every unpinned entry and returns how many went.
func (e *Engine) Clear() int {
	n := e.store.Clear()
	e.log.Info("history cleared", "removed", n)
	return n
}

// Paste writes the entry back to the clipboard and schedules the paste
// keystroke into target. With plain set only the plain-text projection is
// written.
func (e *Engine) Paste(id uuid.UUID, plain bool, target string) error {
	var err error
	if plain {
		err = e.co.WriteAndPastePlain(id, target)
	} else {
		err = e.co.WriteAndPaste(id, target)
	}
	switch {
	case err == nil:
		e.log.Debug("paste scheduled", "id", id, "plain", plain)
	case errors.Is(err, ErrStale), errors.Is(err, ErrNoPlainText):
		e.log.Debug("paste skipped", "id", id, "reason", err)
	}
	return err
}

// Apply pushes live-reloadable settings into the running engine.
func (e *Engine) Apply(cfg config.Config) {
	e.store.SetCapacity(cfg.Capacity)
	e.mon.SetInterval(cfg.PollInterval)
	e.co.SetSettleDelay(cfg.SettleDelay)
	e.log.Info("configuration applied",
		"capacity", cfg.Capacity,
		"poll_interval", cfg.PollInterval,
		"settle_delay", cfg.SettleDelay,
	)
}

// Status reports the engine's current state.
func (e *Engine) Status() Status {
	snap := e.store.Snapshot()
	e.publishMu.Lock()
	started := e.startedAt
	e.publishMu.Unlock()
	return Status{
		State:        e.mon.State().String(),
		Backend:      e.clip.Name(),
		Capacity:     e.store.Capacity(),
		Entries:      snap.Len(),
		Pinned:       len(snap.Pinned),
		PollInterval: e.mon.Interval().String(),
		SettleDelay:  e.co.SettleDelay().String(),
		Suppressed:   e.mon.Suppressed(),
		PendingPaste: e.co.Pending(),
		StartedAt:    started,
		Watchers:     e.hub.Watchers(),
	}
}
