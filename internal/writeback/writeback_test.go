package writeback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/cliptext/internal/clip"
	"go.klb.dev/cliptext/internal/content"
	"go.klb.dev/cliptext/internal/history"
	"go.klb.dev/cliptext/internal/monitor"
)

// manualScheduler runs tasks only when Advance is called.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTask) Stop() bool {
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTask{delay: d, f: f}
	s.tasks = append(s.tasks, t)
	return t
}

// Advance fires every live task.
func (s *manualScheduler) Advance() int {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()
	n := 0
	for _, t := range tasks {
		if t.stopped || t.fired {
			continue
		}
		t.fired = true
		t.f()
		n++
	}
	return n
}

type recordingInjector struct {
	targets []string
	err     error
}

func (r *recordingInjector) InjectPaste(target string) error {
	r.targets = append(r.targets, target)
	return r.err
}

type fixture struct {
	cb     *clip.Memory
	store  *history.Store
	mon    *monitor.Monitor
	inject *recordingInjector
	sched  *manualScheduler
	co     *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		cb:     clip.NewMemory(),
		store:  history.New(10),
		inject: &recordingInjector{},
		sched:  &manualScheduler{},
	}
	f.mon = monitor.New(f.cb, f.store, monitor.Options{})
	f.co = New(f.store, f.cb, f.mon, f.inject, Options{Scheduler: f.sched})
	return f
}

func (f *fixture) capture(t *testing.T, p content.Payload) history.Entry {
	t.Helper()
	f.cb.Set(p)
	require.Equal(t, monitor.Captured, f.mon.Tick())
	return f.store.Entries()[0]
}

func TestWriteAndPaste_SuppressionRoundTrip(t *testing.T) {
	f := newFixture(t)
	old := f.capture(t, content.Payload{content.MIMEText: []byte("old")})
	f.capture(t, content.Payload{content.MIMEText: []byte("new")})
	require.Equal(t, 2, f.store.Len())

	require.NoError(t, f.co.WriteAndPaste(old.ID, "editor"))
	assert.True(t, f.mon.Suppressed())

	got, _ := f.cb.Read()
	assert.Equal(t, []byte("old"), got[content.MIMEText])

	// the monitor sees its own write and drops it
	assert.Equal(t, monitor.Suppressed, f.mon.Tick())
	assert.False(t, f.mon.Suppressed())
	assert.Equal(t, 2, f.store.Len())

	assert.True(t, f.co.Pending())
	assert.Equal(t, 1, f.sched.Advance())
	assert.Equal(t, []string{"editor"}, f.inject.targets)
	assert.False(t, f.co.Pending())
}

func TestWriteAndPaste_RichTextWritesAllRepresentations(t *testing.T) {
	f := newFixture(t)
	rtf := []byte(`{\rtf1 bold}`)
	e := f.capture(t, content.Payload{content.MIMERTF: rtf, content.MIMEText: []byte("bold")})

	require.NoError(t, f.co.WriteAndPaste(e.ID, ""))
	got, _ := f.cb.Read()
	assert.Equal(t, content.Payload{content.MIMERTF: rtf, content.MIMEText: []byte("bold")}, got)
}

func TestWriteAndPastePlain_RichText(t *testing.T) {
	f := newFixture(t)
	e := f.capture(t, content.Payload{content.MIMEHTML: []byte("<b>hi</b>"), content.MIMEText: []byte("hi")})

	require.NoError(t, f.co.WriteAndPastePlain(e.ID, ""))
	got, _ := f.cb.Read()
	assert.Equal(t, content.Payload{content.MIMEText: []byte("hi")}, got)
	assert.True(t, f.mon.Suppressed())
}

func TestWriteAndPastePlain_ImageIsNoOp(t *testing.T) {
	f := newFixture(t)
	img := history.NewEntry(content.Image{MIME: content.MIMEPNG, Data: []byte{1}, Width: 1, Height: 1}, time.Now())
	f.store.Push(img)
	before := f.cb.ChangeCount()

	err := f.co.WriteAndPastePlain(img.ID, "")
	assert.ErrorIs(t, err, ErrNoPlainText)
	assert.False(t, f.mon.Suppressed())
	assert.Equal(t, before, f.cb.ChangeCount())
	assert.False(t, f.co.Pending())
	assert.Zero(t, f.sched.Advance())
	assert.Empty(t, f.inject.targets)
}

func TestWriteAndPastePlain_FilesIsNoOp(t *testing.T) {
	f := newFixture(t)
	e := f.capture(t, content.Payload{content.MIMEURIList: []byte("file:///tmp/a\n")})
	assert.ErrorIs(t, f.co.WriteAndPastePlain(e.ID, ""), ErrNoPlainText)
	assert.False(t, f.mon.Suppressed())
}

func TestWriteAndPaste_StaleReference(t *testing.T) {
	f := newFixture(t)
	before := f.cb.ChangeCount()

	assert.ErrorIs(t, f.co.WriteAndPaste(uuid.New(), ""), ErrStale)
	assert.ErrorIs(t, f.co.WriteAndPastePlain(uuid.New(), ""), ErrStale)
	assert.False(t, f.mon.Suppressed())
	assert.Equal(t, before, f.cb.ChangeCount())
	assert.False(t, f.co.Pending())
}

func TestWriteAndPaste_WriteFailureLeavesFlagSet(t *testing.T) {
	f := newFixture(t)
	e := f.capture(t, content.Payload{content.MIMEText: []byte("x")})
	boom := errors.New("clipboard busy")
	f.cb.FailNextWrite(boom)

	err := f.co.WriteAndPaste(e.ID, "")
	require.ErrorIs(t, err, boom)
	assert.True(t, f.mon.Suppressed())
	assert.False(t, f.co.Pending())

	// the flag swallows the next external change
	f.cb.Set(content.Payload{content.MIMEText: []byte("external")})
	assert.Equal(t, monitor.Suppressed, f.mon.Tick())
	assert.Equal(t, 1, f.store.Len())
}

func TestWriteAndPaste_NewerRequestReplacesPending(t *testing.T) {
	f := newFixture(t)
	a := f.capture(t, content.Payload{content.MIMEText: []byte("a")})
	b := f.capture(t, content.Payload{content.MIMEText: []byte("b")})

	require.NoError(t, f.co.WriteAndPaste(a.ID, "first"))
	require.NoError(t, f.co.WriteAndPaste(b.ID, "second"))

	assert.Equal(t, 1, f.sched.Advance())
	assert.Equal(t, []string{"second"}, f.inject.targets)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	e := f.capture(t, content.Payload{content.MIMEText: []byte("a")})
	assert.False(t, f.co.Cancel())

	require.NoError(t, f.co.WriteAndPaste(e.ID, ""))
	assert.True(t, f.co.Cancel())
	assert.False(t, f.co.Pending())
	assert.Zero(t, f.sched.Advance())
	assert.Empty(t, f.inject.targets)
}

func TestInjectionErrorIsNotSurfaced(t *testing.T) {
	f := newFixture(t)
	f.inject.err = errors.New("no accessibility permission")
	e := f.capture(t, content.Payload{content.MIMEText: []byte("a")})

	require.NoError(t, f.co.WriteAndPaste(e.ID, ""))
	assert.Equal(t, 1, f.sched.Advance())
	assert.False(t, f.co.Pending())
}

func TestSettleDelay(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, DefaultSettleDelay, f.co.SettleDelay())
	f.co.SetSettleDelay(250 * time.Millisecond)

	e := f.capture(t, content.Payload{content.MIMEText: []byte("a")})
	require.NoError(t, f.co.WriteAndPaste(e.ID, ""))
	require.Len(t, f.sched.tasks, 1)
	assert.Equal(t, 250*time.Millisecond, f.sched.tasks[0].delay)

	f.co.SetSettleDelay(-1)
	assert.Equal(t, DefaultSettleDelay, f.co.SettleDelay())
}

func TestTimerScheduler(t *testing.T) {
	done := make(chan struct{})
	task := TimerScheduler{}.AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
	assert.False(t, task.Stop())
}
