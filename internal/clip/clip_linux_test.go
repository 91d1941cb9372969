//go:build linux

package clip

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.design/x/clipboard"

	"go.klb.dev/cliptext/internal/content"
)

type fakeSelection struct {
	mu      sync.Mutex
	data    map[clipboard.Format][]byte
	onWrite func()
}

func (s *fakeSelection) read(f clipboard.Format) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[f]
}

func (s *fakeSelection) write(f clipboard.Format, data []byte) {
	s.mu.Lock()
	s.data = map[clipboard.Format][]byte{f: data}
	hook := s.onWrite
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func TestLinuxCheck_CountsExternalChanges(t *testing.T) {
	sel := &fakeSelection{}
	b := newLinuxBackend(sel, nil)

	b.check()
	assert.Equal(t, int64(0), b.ChangeCount())

	sel.write(clipboard.FmtText, []byte("from another app"))
	b.check()
	b.check()
	assert.Equal(t, int64(1), b.ChangeCount())

	p, err := b.Read()
	require.NoError(t, err)
	assert.Equal(t, "from another app", string(p[content.MIMEText]))
}

// The poller runs while the selection is being replaced; the write must still
// count once, or a monitor tick between two bumps spends the suppression flag
// early and the next tick captures our own write.
func TestLinuxWrite_CountsOnceWithPollerRacing(t *testing.T) {
	sel := &fakeSelection{}
	b := newLinuxBackend(sel, nil)

	for i := 0; i < 50; i++ {
		checked := make(chan struct{})
		sel.onWrite = func() {
			go func() {
				b.check()
				close(checked)
			}()
		}
		before := b.ChangeCount()
		require.NoError(t, b.Write(content.Payload{content.MIMEText: []byte{byte('a' + i%26), byte(i)}}))
		<-checked
		b.check()
		assert.Equal(t, before+1, b.ChangeCount(), "write %d", i)
	}
}

func TestLinuxWrite_FilesNeedTool(t *testing.T) {
	b := newLinuxBackend(&fakeSelection{}, nil)
	err := b.Write(content.Payload{content.MIMEURIList: []byte("file:///tmp/a\r\n")})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int64(0), b.ChangeCount())
}
