// Package history implements the bounded, newest-first clipboard history.
//
// Entries are inserted at the front. Capacity bounds the unpinned entries:
// once there are more than capacity of them the oldest unpinned entry is
// evicted. Pinned entries are never evicted, so the total exceeds capacity as
// soon as anything is pinned. Pinning does not reorder entries.
//
// No operation returns an error: references to entries that are already gone
// are treated as no-ops, since a UI action racing an eviction is legitimate.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"go.klb.dev/cliptext/internal/content"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 10

// Entry is one captured clipboard snapshot.
type Entry struct {
	ID         uuid.UUID
	CapturedAt time.Time
	Content    content.Content
	Pinned     bool
}

// NewEntry returns an unpinned entry with a fresh ID.
func NewEntry(c content.Content, at time.Time) Entry {
	return Entry{ID: uuid.New(), CapturedAt: at, Content: c}
}

// Snapshot is the history partitioned for presentation. Both groups keep
// insertion order, newest first.
type Snapshot struct {
	Unpinned []Entry
	Pinned   []Entry
}

// Len returns the total number of entries in the snapshot.
func (s Snapshot) Len() int { return len(s.Unpinned) + len(s.Pinned) }

// ChangeListener is notified after every mutation that changed the store.
// It is called without the store lock held.
type ChangeListener interface {
	OnHistoryChange()
}

// ChangeFunc adapts a plain function to ChangeListener.
type ChangeFunc func()

func (f ChangeFunc) OnHistoryChange() { f() }

// Store is the history. The zero value is not usable; call New.
type Store struct {
	mu       sync.Mutex
	entries  []*Entry // newest first
	capacity int

	listenerMu sync.RWMutex
	listener   ChangeListener
}

// New returns an empty store holding at most capacity unpinned entries.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity}
}

// SetChangeListener registers l. Only one listener is supported; calling
// again replaces it.
func (s *Store) SetChangeListener(l ChangeListener) {
	s.listenerMu.Lock()
	s.listener = l
	s.listenerMu.Unlock()
}

// Push inserts e at the front and trims to capacity. If e duplicates the
// newest unpinned entry it is dropped and Push returns false.
func (s *Store) Push(e Entry) bool {
	s.mu.Lock()
	if latest := s.newestUnpinnedLocked(); latest != nil && content.Equal(latest.Content, e.Content) {
		s.mu.Unlock()
		return false
	}
	s.entries = append(s.entries, nil)
	copy(s.entries[1:], s.entries)
	s.entries[0] = &e
	s.trimLocked()
	s.mu.Unlock()

	s.notify()
	return true
}

// TogglePin flips the pinned flag of the entry with the given ID. It returns
// false if the entry is no longer present.
func (s *Store) TogglePin(id uuid.UUID) bool {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.entries[i].Pinned = !s.entries[i].Pinned
	s.mu.Unlock()

	s.notify()
	return true
}

// Remove deletes the entry with the given ID, reporting whether it was present.
func (s *Store) Remove(id uuid.UUID) bool {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.removeAtLocked(i)
	s.mu.Unlock()

	s.notify()
	return true
}

// Clear removes every unpinned entry and returns how many were removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.Pinned {
			kept = append(kept, e)
		}
	}
	removed := len(s.entries) - len(kept)
	clear(s.entries[len(kept):])
	s.entries = kept
	s.mu.Unlock()

	if removed > 0 {
		s.notify()
	}
	return removed
}

// SetCapacity changes the capacity and evicts unpinned entries if the store
// is now over it. Non-positive values select DefaultCapacity.
func (s *Store) SetCapacity(n int) {
	if n <= 0 {
		n = DefaultCapacity
	}
	s.mu.Lock()
	before := len(s.entries)
	s.capacity = n
	s.trimLocked()
	changed := len(s.entries) != before
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// Capacity returns the current capacity.
func (s *Store) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity
}

// Len returns the number of entries, pinned included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Get returns a copy of the entry with the given ID.
func (s *Store) Get(id uuid.UUID) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return *s.entries[i], true
	}
	return Entry{}, false
}

// Entries returns copies of all entries, newest first, pinned included.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = *e
	}
	return out
}

// Snapshot returns copies of all entries split into unpinned and pinned groups.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var snap Snapshot
	for _, e := range s.entries {
		if e.Pinned {
			snap.Pinned = append(snap.Pinned, *e)
		} else {
			snap.Unpinned = append(snap.Unpinned, *e)
		}
	}
	return snap
}

// trimLocked evicts the oldest unpinned entries until at most capacity of
// them remain.
func (s *Store) trimLocked() {
	unpinned := 0
	for _, e := range s.entries {
		if !e.Pinned {
			unpinned++
		}
	}
	for ; unpinned > s.capacity; unpinned-- {
		s.removeAtLocked(s.oldestUnpinnedLocked())
	}
}

func (s *Store) newestUnpinnedLocked() *Entry {
	for _, e := range s.entries {
		if !e.Pinned {
			return e
		}
	}
	return nil
}

func (s *Store) oldestUnpinnedLocked() int {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if !s.entries[i].Pinned {
			return i
		}
	}
	return -1
}

func (s *Store) indexLocked(id uuid.UUID) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) removeAtLocked(i int) {
	copy(s.entries[i:], s.entries[i+1:])
	s.entries[len(s.entries)-1] = nil
	s.entries = s.entries[:len(s.entries)-1]
}

func (s *Store) notify() {
	s.listenerMu.RLock()
	l := s.listener
	s.listenerMu.RUnlock()
	if l != nil {
		l.OnHistoryChange()
	}
}
