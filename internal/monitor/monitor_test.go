package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/cliptext/internal/clip"
	"go.klb.dev/cliptext/internal/content"
	"go.klb.dev/cliptext/internal/history"
)

func textPayload(s string) content.Payload {
	return content.Payload{content.MIMEText: []byte(s)}
}

func setup(t *testing.T) (*clip.Memory, *history.Store, *Monitor) {
	t.Helper()
	cb := clip.NewMemory()
	store := history.New(10)
	return cb, store, New(cb, store, Options{})
}

// flakyClipboard fails reads on demand.
type flakyClipboard struct {
	*clip.Memory
	err error
}

func (f *flakyClipboard) Read() (content.Payload, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.Memory.Read()
}

func TestNew_IgnoresExistingContents(t *testing.T) {
	cb := clip.NewMemory()
	cb.Set(textPayload("already there"))
	store := history.New(10)
	m := New(cb, store, Options{})

	assert.Equal(t, Unchanged, m.Tick())
	assert.Zero(t, store.Len())
}

func TestTick_CapturesChange(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	cb := clip.NewMemory()
	store := history.New(10)
	m := New(cb, store, Options{Now: func() time.Time { return at }})

	cb.Set(textPayload("hello"))
	assert.Equal(t, Captured, m.Tick())
	assert.Equal(t, Unchanged, m.Tick())

	entries := store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, content.Text{Value: "hello"}, entries[0].Content)
	assert.Equal(t, at, entries[0].CapturedAt)
	assert.False(t, entries[0].Pinned)
}

func TestTick_Duplicate(t *testing.T) {
	cb, store, m := setup(t)
	cb.Set(textPayload("same"))
	require.Equal(t, Captured, m.Tick())
	cb.Set(textPayload("same"))
	assert.Equal(t, Duplicate, m.Tick())
	assert.Equal(t, 1, store.Len())
}

func TestTick_Undecodable(t *testing.T) {
	cb, store, m := setup(t)
	cb.Set(content.Payload{"application/x-custom": []byte{1, 2, 3}})
	assert.Equal(t, Undecodable, m.Tick())
	// the counter was recorded, so the same change is not retried
	assert.Equal(t, Unchanged, m.Tick())
	assert.Zero(t, store.Len())
}

func TestTick_ReadFailed(t *testing.T) {
	cb := &flakyClipboard{Memory: clip.NewMemory()}
	store := history.New(10)
	m := New(cb, store, Options{})

	cb.err = errors.New("locked by another process")
	cb.Set(textPayload("x"))
	assert.Equal(t, ReadFailed, m.Tick())

	cb.err = nil
	cb.Set(textPayload("y"))
	assert.Equal(t, Captured, m.Tick())
	assert.Equal(t, 1, store.Len())
}

func TestSuppression_SwallowsNextChange(t *testing.T) {
	cb, store, m := setup(t)
	m.Suppress()
	assert.True(t, m.Suppressed())

	// no change yet: the flag survives
	assert.Equal(t, Unchanged, m.Tick())
	assert.True(t, m.Suppressed())

	cb.Set(textPayload("self"))
	assert.Equal(t, Suppressed, m.Tick())
	assert.False(t, m.Suppressed())
	assert.Zero(t, store.Len())

	cb.Set(textPayload("external"))
	assert.Equal(t, Captured, m.Tick())
	assert.Equal(t, 1, store.Len())
}

func TestTick_CoalescesIntermediateChanges(t *testing.T) {
	cb, store, m := setup(t)
	cb.Set(textPayload("first"))
	cb.Set(textPayload("second"))
	assert.Equal(t, Captured, m.Tick())

	entries := store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, content.Text{Value: "second"}, entries[0].Content)
}

func TestStartStop(t *testing.T) {
	cb, store, m := setup(t)
	assert.Equal(t, Idle, m.State())
	m.SetInterval(5 * time.Millisecond)

	m.Start()
	assert.Equal(t, Watching, m.State())
	cb.Set(textPayload("polled"))
	require.Eventually(t, func() bool { return store.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	m.Stop()
	assert.Equal(t, Idle, m.State())

	// nothing is captured after Stop returns
	cb.Set(textPayload("late"))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, store.Len())

	// stopping twice is harmless
	m.Stop()
}

func TestStart_Restarts(t *testing.T) {
	cb, store, m := setup(t)
	m.SetInterval(5 * time.Millisecond)
	m.Start()
	m.Start()
	defer m.Stop()

	cb.Set(textPayload("once"))
	require.Eventually(t, func() bool { return store.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, Watching, m.State())
}

func TestSetInterval(t *testing.T) {
	_, _, m := setup(t)
	assert.Equal(t, DefaultInterval, m.Interval())
	m.SetInterval(0)
	assert.Equal(t, DefaultInterval, m.Interval())

	m.Start()
	defer m.Stop()
	m.SetInterval(time.Second)
	assert.Equal(t, time.Second, m.Interval())
	assert.Equal(t, Watching, m.State())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "suppressed", Suppressed.String())
	assert.Equal(t, "captured", Captured.String())
	assert.Equal(t, "watching", Watching.String())
	assert.Equal(t, "idle", Idle.String())
}
