// Package hub fans history snapshots out to registered watchers.
// It is transport-agnostic: watchers register, receive views through Send,
// and the engine publishes a fresh view after every history change.
package hub

import (
	"log/slog"
	"sort"
	"sync"

	"go.klb.dev/cliptext/internal/message"
)

// Watcher is anything that can receive history snapshots from the hub.
type Watcher interface {
	ID() string
	Info() message.WatcherInfo
	// Send delivers a snapshot to the watcher. Must be non-blocking.
	Send(message.HistoryView)
}

// WatcherChangeListener is notified whenever the set of registered watchers
// changes.
type WatcherChangeListener interface {
	OnWatcherChange(count int)
}

// Hub routes history snapshots to all registered watchers.
type Hub struct {
	mu       sync.RWMutex
	watchers map[string]Watcher
	latest   *message.HistoryView
	seq      uint64

	listenerMu sync.RWMutex
	listener   WatcherChangeListener
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{watchers: make(map[string]Watcher)}
}

// SetWatcherChangeListener registers a listener that is called whenever the
// watcher set changes. Only one listener is supported; calling again replaces
// it.
func (h *Hub) SetWatcherChangeListener(l WatcherChangeListener) {
	h.listenerMu.Lock()
	h.listener = l
	h.listenerMu.Unlock()
}

// Register adds a watcher and immediately delivers the latest snapshot.
func (h *Hub) Register(w Watcher) {
	h.mu.Lock()
	h.watchers[w.ID()] = w
	latest := h.latest
	total := len(h.watchers)
	h.mu.Unlock()

	info := w.Info()
	slog.Info("watcher registered",
		"watcher", w.ID(),
		"source", info.Source,
		"total", total,
	)

	h.notifyListener(total)

	if latest != nil {
		w.Send(*latest)
	}
}

// Unregister removes a watcher from the hub.
func (h *Hub) Unregister(w Watcher) {
	h.mu.Lock()
	if _, ok := h.watchers[w.ID()]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.watchers, w.ID())
	total := len(h.watchers)
	h.mu.Unlock()

	slog.Info("watcher unregistered",
		"watcher", w.ID(),
		"source", w.Info().Source,
		"total", total,
	)

	h.notifyListener(total)
}

// Publish stores v as the latest snapshot and fans it out to every watcher.
func (h *Hub) Publish(v message.HistoryView) {
	h.mu.Lock()
	h.latest = &v
	h.seq++
	targets := make([]Watcher, 0, len(h.watchers))
	for _, w := range h.watchers {
		targets = append(targets, w)
	}
	h.mu.Unlock()

	LogHistory("history published", v)
	for _, w := range targets {
		w.Send(v)
	}
}

// Latest returns the most recent snapshot, if one was ever published.
func (h *Hub) Latest() (message.HistoryView, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.latest == nil {
		return message.HistoryView{}, false
	}
	return *h.latest, true
}

// Published returns how many snapshots have been published.
func (h *Hub) Published() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// Watchers returns metadata for every registered watcher, oldest first.
func (h *Hub) Watchers() []message.WatcherInfo {
	h.mu.RLock()
	out := make([]message.WatcherInfo, 0, len(h.watchers))
	for _, w := range h.watchers {
		out = append(out, w.Info())
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out
}

// notifyListener calls the registered WatcherChangeListener if one is set.
func (h *Hub) notifyListener(count int) {
	h.listenerMu.RLock()
	l := h.listener
	h.listenerMu.RUnlock()
	if l != nil {
		l.OnWatcherChange(count)
	}
}
