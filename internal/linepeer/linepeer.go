// Package linepeer adapts a line-protocol connection into a hub.Watcher.
package linepeer

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"go.klb.dev/cliptext/internal/crypto"
	"go.klb.dev/cliptext/internal/hub"
	"go.klb.dev/cliptext/internal/message"
	"go.klb.dev/cliptext/internal/wire"
)

const sendBuffer = 8

// Timing knobs, variables so tests can shorten them.
var (
	pingInterval  = 15 * time.Second
	pongDeadline  = 10 * time.Second
	handshakeWait = 10 * time.Second
)

// Peer wraps a single watcher connection as a hub.Watcher.
type Peer struct {
	id     string
	conn   *wire.Conn
	h      *hub.Hub
	token  string
	sendCh chan *message.Message
	pongCh chan struct{}
	done   chan struct{}
	once   sync.Once

	pingEvery time.Duration
	pongWait  time.Duration

	mu       sync.RWMutex
	info     message.WatcherInfo
	lastSeen atomic.Int64 // UnixNano
}

// New creates a Peer for conn. token may be empty to disable auth; key is
// derived from the same token and may be nil.
func New(conn net.Conn, h *hub.Hub, token string, key *crypto.Key) *Peer {
	now := time.Now()
	id := "watch-" + uuid.NewString()[:8]
	addr := conn.RemoteAddr().String()
	if addr == "" || addr == "@" {
		addr = "local"
	}
	p := &Peer{
		id:     id,
		conn:   wire.New(conn, key),
		h:      h,
		token:  token,
		sendCh: make(chan *message.Message, sendBuffer),
		pongCh: make(chan struct{}, 1),
		done:   make(chan struct{}),

		pingEvery: pingInterval,
		pongWait:  pongDeadline,
		info: message.WatcherInfo{
			ID:          id,
			Addr:        addr,
			ConnectedAt: now,
			LastSeen:    now,
		},
	}
	p.lastSeen.Store(now.UnixNano())
	return p
}

func (p *Peer) ID() string { return p.id }

func (p *Peer) Info() message.WatcherInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	info := p.info
	info.LastSeen = time.Unix(0, p.lastSeen.Load())
	return info
}

// Send queues a snapshot. When the watcher falls behind the oldest queued
// message is dropped: every snapshot supersedes the ones before it.
func (p *Peer) Send(v message.HistoryView) {
	p.enqueue(&message.Message{Type: message.TypeHistory, History: &v})
}

func (p *Peer) enqueue(msg *message.Message) {
	for {
		select {
		case <-p.done:
			return
		case p.sendCh <- msg:
			return
		default:
		}
		select {
		case <-p.sendCh:
			slog.Warn("watcher send queue full, dropping oldest", "watcher", p.id)
		default:
		}
	}
}

func (p *Peer) notifyAlive() {
	p.lastSeen.Store(time.Now().UnixNano())
	select {
	case p.pongCh <- struct{}{}:
	default:
	}
}

func (p *Peer) close() {
	p.once.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}

// Serve performs the handshake, registers with the hub, and runs the
// read/write/ping loops until the connection drops or ctx is cancelled.
func (p *Peer) Serve(ctx context.Context) {
	defer p.close()
	log := slog.With("watcher", p.id)

	stop := context.AfterFunc(ctx, p.close)
	defer stop()

	if err := p.handshake(); err != nil {
		log.Warn("handshake failed", "err", err)
		_ = p.conn.WriteClear(&message.Message{Type: message.TypeError, Error: err.Error()})
		return
	}
	log.Info("watching", "source", p.Info().Source)

	p.h.Register(p)
	defer p.h.Unregister(p)

	// Writer
	go func() {
		for {
			select {
			case <-p.done:
				return
			case msg := <-p.sendCh:
				if err := p.conn.WriteMsg(msg); err != nil {
					log.Debug("write failed", "err", err)
					p.close()
					return
				}
			}
		}
	}()

	// Ping loop
	go func() {
		ticker := time.NewTicker(p.pingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-p.done:
				return
			case <-ticker.C:
			}
			p.enqueue(&message.Message{Type: message.TypePing})
			select {
			case <-p.done:
				return
			case <-p.pongCh:
			case <-time.After(p.pongWait):
				log.Warn("pong timeout, closing")
				p.close()
				return
			}
		}
	}()

	// Reader
	for {
		msg, err := p.conn.ReadMsg()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
				log.Info("connection closed", "err", err)
			}
			return
		}

		p.notifyAlive()

		switch msg.Type {
		case message.TypePong:
			// handled by notifyAlive

		case message.TypePing:
			p.enqueue(&message.Message{Type: message.TypePong})

		default:
			log.Warn("unexpected message type", "type", msg.Type)
		}
	}
}

var (
	errAuth       = errors.New("auth_failed")
	errNotWatched = errors.New("expected WATCH")
)

// handshake reads the optional AUTH and the mandatory WATCH.
func (p *Peer) handshake() error {
	p.conn.SetReadDeadline(handshakeWait)
	defer p.conn.SetReadDeadline(0)

	msg, err := p.readHandshake()
	if err != nil {
		return err
	}
	if msg.Type == message.TypeAuth {
		tok, err := msg.Token()
		if err != nil {
			return errAuth
		}
		if p.token != "" && subtle.ConstantTimeCompare([]byte(tok), []byte(p.token)) != 1 {
			return errAuth
		}
		p.setSource(msg.Source)
		if msg, err = p.readHandshake(); err != nil {
			return err
		}
	} else if p.token != "" {
		return errAuth
	}

	if msg.Type != message.TypeWatch {
		return errNotWatched
	}
	if msg.Source != "" {
		p.setSource(msg.Source)
	}
	return nil
}

// readHandshake maps a message that fails to open with our key to errAuth:
// the client holds a different token or none.
func (p *Peer) readHandshake() (*message.Message, error) {
	msg, err := p.conn.ReadMsg()
	if errors.Is(err, wire.ErrUnreadable) {
		return nil, errAuth
	}
	return msg, err
}

func (p *Peer) setSource(s string) {
	p.mu.Lock()
	p.info.Source = s
	p.mu.Unlock()
}
