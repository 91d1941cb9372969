package linepeer

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.klb.dev/cliptext/internal/crypto"
	"go.klb.dev/cliptext/internal/message"
	"go.klb.dev/cliptext/internal/wire"
)

// ErrRejected is returned by Watch when the daemon answers the handshake with
// an ERROR message.
var ErrRejected = errors.New("watch rejected")

// Watch is the client side of the line protocol. It sends the handshake on
// conn and calls fn for every HISTORY snapshot until ctx is cancelled, the
// connection drops, or fn returns an error. PINGs are answered in place.
func Watch(ctx context.Context, conn net.Conn, token, source string, key *crypto.Key, fn func(message.HistoryView) error) error {
	wc := wire.New(conn, key)
	defer wc.Close()
	stop := context.AfterFunc(ctx, func() { wc.Close() })
	defer stop()

	if token != "" {
		if err := wc.WriteMsg(message.NewAuth(source, token)); err != nil {
			return fmt.Errorf("send auth: %w", err)
		}
	}
	if err := wc.WriteMsg(&message.Message{Type: message.TypeWatch, Source: source}); err != nil {
		return fmt.Errorf("send watch: %w", err)
	}

	for {
		msg, err := wc.ReadMsg()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		switch msg.Type {
		case message.TypeHistory:
			if msg.History == nil {
				continue
			}
			if err := fn(*msg.History); err != nil {
				return err
			}
		case message.TypePing:
			if err := wc.WriteMsg(&message.Message{Type: message.TypePong}); err != nil {
				return fmt.Errorf("send pong: %w", err)
			}
		case message.TypeError:
			return fmt.Errorf("%w: %s", ErrRejected, msg.Error)
		}
	}
}
