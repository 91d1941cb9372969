package linepeer

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/cliptext/internal/crypto"
	"go.klb.dev/cliptext/internal/hub"
	"go.klb.dev/cliptext/internal/message"
	"go.klb.dev/cliptext/internal/wire"
)

var errEnough = errors.New("enough")

func view(labels ...string) message.HistoryView {
	v := message.HistoryView{Capacity: 10, Unpinned: []message.EntryView{}, Pinned: []message.EntryView{}}
	for _, l := range labels {
		v.Unpinned = append(v.Unpinned, message.EntryView{ID: l, Label: l})
	}
	return v
}

func serve(t *testing.T, h *hub.Hub, token string, key *crypto.Key) (net.Conn, context.CancelFunc) {
	t.Helper()
	srv, cli := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		New(srv, h, token, key).Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		cli.Close()
		<-done
	})
	return cli, cancel
}

func TestWatch_ReceivesLatestAndUpdates(t *testing.T) {
	h := hub.New()
	h.Publish(view("first"))
	cli, _ := serve(t, h, "", nil)

	var got []message.HistoryView
	err := Watch(context.Background(), cli, "", "test", nil, func(v message.HistoryView) error {
		got = append(got, v)
		if len(got) == 1 {
			go h.Publish(view("second", "first"))
			return nil
		}
		return errEnough
	})
	require.ErrorIs(t, err, errEnough)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Unpinned[0].Label)
	assert.Equal(t, 2, got[1].Len())
}

func TestWatch_WithTokenAndEncryption(t *testing.T) {
	key, err := crypto.DeriveKey("s3cret")
	require.NoError(t, err)
	h := hub.New()
	h.Publish(view("x"))
	cli, _ := serve(t, h, "s3cret", key)

	err = Watch(context.Background(), cli, "s3cret", "test", key, func(v message.HistoryView) error {
		assert.Equal(t, "x", v.Unpinned[0].Label)
		// registration completes before the first snapshot is sent
		infos := h.Watchers()
		require.Len(t, infos, 1)
		assert.Equal(t, "test", infos[0].Source)
		return errEnough
	})
	require.ErrorIs(t, err, errEnough)
}

func TestServe_WrongTokenRejected(t *testing.T) {
	h := hub.New()
	cli, _ := serve(t, h, "right", nil)
	wc := wire.New(cli, nil)
	go wc.WriteMsg(message.NewAuth("test", "wrong"))

	msg, err := wc.ReadMsg()
	require.NoError(t, err)
	assert.Equal(t, message.TypeError, msg.Type)
	assert.Equal(t, "auth_failed", msg.Error)
	assert.Empty(t, h.Watchers())
}

func TestServe_WrongKeyRejectedInClear(t *testing.T) {
	right, err := crypto.DeriveKey("right")
	require.NoError(t, err)
	wrong, err := crypto.DeriveKey("wrong")
	require.NoError(t, err)
	h := hub.New()
	cli, _ := serve(t, h, "right", right)
	wc := wire.New(cli, wrong)
	go wc.WriteMsg(message.NewAuth("test", "wrong"))

	msg, err := wc.ReadMsg()
	require.NoError(t, err)
	assert.Equal(t, message.TypeError, msg.Type)
	assert.Equal(t, "auth_failed", msg.Error)
}

func TestWatch_MissingTokenRejected(t *testing.T) {
	h := hub.New()
	cli, _ := serve(t, h, "right", nil)

	err := Watch(context.Background(), cli, "", "test", nil, func(message.HistoryView) error { return nil })
	assert.ErrorIs(t, err, ErrRejected)
}

func TestServe_AnswersPing(t *testing.T) {
	h := hub.New()
	cli, _ := serve(t, h, "", nil)
	wc := wire.New(cli, nil)

	go func() {
		_ = wc.WriteMsg(&message.Message{Type: message.TypeWatch})
		_ = wc.WriteMsg(&message.Message{Type: message.TypePing})
	}()
	msg, err := wc.ReadMsg()
	require.NoError(t, err)
	assert.Equal(t, message.TypePong, msg.Type)
}

func TestServe_UnregistersOnDisconnect(t *testing.T) {
	h := hub.New()
	cli, _ := serve(t, h, "", nil)
	wc := wire.New(cli, nil)
	go wc.WriteMsg(&message.Message{Type: message.TypeWatch})

	require.Eventually(t, func() bool { return len(h.Watchers()) == 1 }, time.Second, 5*time.Millisecond)
	cli.Close()
	require.Eventually(t, func() bool { return len(h.Watchers()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestServe_ContextCancelCloses(t *testing.T) {
	h := hub.New()
	cli, cancel := serve(t, h, "", nil)
	wc := wire.New(cli, nil)
	go wc.WriteMsg(&message.Message{Type: message.TypeWatch})
	require.Eventually(t, func() bool { return len(h.Watchers()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return len(h.Watchers()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestServe_PongTimeout(t *testing.T) {
	oldPing, oldPong := pingInterval, pongDeadline
	pingInterval, pongDeadline = 10*time.Millisecond, 20*time.Millisecond
	t.Cleanup(func() { pingInterval, pongDeadline = oldPing, oldPong })

	h := hub.New()
	cli, _ := serve(t, h, "", nil)
	wc := wire.New(cli, nil)
	go func() {
		_ = wc.WriteMsg(&message.Message{Type: message.TypeWatch})
		// drain without answering PINGs
		for {
			if _, err := wc.ReadMsg(); err != nil {
				return
			}
		}
	}()

	require.Eventually(t, func() bool { return len(h.Watchers()) == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return len(h.Watchers()) == 0 }, 2*time.Second, 5*time.Millisecond)
}
