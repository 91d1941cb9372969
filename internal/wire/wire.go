// Package wire handles reading and writing newline-delimited JSON messages
// over a net.Conn, with optional NaCl secretbox encryption.
//
// Wire format (unencrypted):
//
//	<json>\n
//
// Wire format (encrypted):
//
//	<base64(nonce+ciphertext)>\n
//
// The encrypted form is just a base64 blob on the wire so that the framing
// logic is identical in both cases: every line is a single message.
package wire

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"time"

	"go.klb.dev/cliptext/internal/crypto"
	"go.klb.dev/cliptext/internal/message"
)

const (
	// MaxMessageSize is the largest line we will read (4 MiB). History views
	// carry labels and text, never image bytes.
	MaxMessageSize = 4 * 1024 * 1024

	writeDeadline = 5 * time.Second
)

var (
	// ErrTooLarge is returned by ReadMsg for a line over MaxMessageSize.
	ErrTooLarge = errors.New("message too large")
	// ErrUnreadable is returned by ReadMsg on an encrypted connection for a
	// line that does not open with the key.
	ErrUnreadable = errors.New("unreadable message")
)

// Conn wraps a net.Conn with buffered newline-delimited JSON framing
// and optional encryption.
type Conn struct {
	conn net.Conn
	br   *bufio.Reader
	key  *crypto.Key // nil = no encryption
}

// New wraps conn. If key is non-nil every message is encrypted with NaCl
// secretbox before being written and decrypted after being read.
func New(conn net.Conn, key *crypto.Key) *Conn {
	return &Conn{
		conn: conn,
		br:   bufio.NewReaderSize(conn, 64*1024),
		key:  key,
	}
}

// Underlying returns the underlying net.Conn.
func (c *Conn) Underlying() net.Conn { return c.conn }

// SetReadDeadline sets or clears the read deadline.
func (c *Conn) SetReadDeadline(d time.Duration) {
	if d == 0 {
		_ = c.conn.SetReadDeadline(time.Time{})
	} else {
		_ = c.conn.SetReadDeadline(time.Now().Add(d))
	}
}

// SetWriteDeadline sets or clears the write deadline.
func (c *Conn) SetWriteDeadline(d time.Duration) {
	if d == 0 {
		_ = c.conn.SetWriteDeadline(time.Time{})
	} else {
		_ = c.conn.SetWriteDeadline(time.Now().Add(d))
	}
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.conn.Close() }

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// WriteMsg serialises msg to JSON, optionally encrypts it, and writes it
// followed by a newline.
func (c *Conn) WriteMsg(msg *message.Message) error {
	raw, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if c.key == nil {
		return c.writeLine(raw)
	}
	ct, err := c.key.Seal(raw)
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	return c.writeLine([]byte(base64.StdEncoding.EncodeToString(ct)))
}

// WriteClear writes msg unencrypted even when the connection has a key. It
// is used for handshake rejections, which the peer must be able to read
// without the right key.
func (c *Conn) WriteClear(msg *message.Message) error {
	raw, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return c.writeLine(raw)
}

func (c *Conn) writeLine(b []byte) error {
	line := append(b, '\n')
	c.SetWriteDeadline(writeDeadline)
	_, err := c.conn.Write(line)
	c.SetWriteDeadline(0)
	return err
}

// ReadMsg reads one newline-terminated line, optionally decrypts it, and
// deserialises it into a Message. On an encrypted connection the only clear
// message accepted is ERROR; anything else fails with ErrUnreadable.
func (c *Conn) ReadMsg() (*message.Message, error) {
	line, err := c.readLine()
	if err != nil {
		return nil, err
	}
	if c.key == nil {
		return message.Decode(line)
	}

	if bytes.HasPrefix(line, []byte("{")) {
		msg, err := message.Decode(line)
		if err == nil && msg.Type == message.TypeError {
			return msg, nil
		}
		return nil, fmt.Errorf("%w: unencrypted message", ErrUnreadable)
	}
	ct, err := base64.StdEncoding.DecodeString(string(line))
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrUnreadable, err)
	}
	raw, err := c.key.Open(ct)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return message.Decode(raw)
}

// readLine returns one line without its newline, refusing to buffer more
// than MaxMessageSize.
func (c *Conn) readLine() ([]byte, error) {
	var line []byte
	for {
		frag, err := c.br.ReadSlice('\n')
		if len(line)+len(frag) > MaxMessageSize+1 {
			return nil, fmt.Errorf("%w (over %d bytes)", ErrTooLarge, MaxMessageSize)
		}
		line = append(line, frag...)
		switch {
		case err == nil:
			return line[:len(line)-1], nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return nil, err
		}
	}
}
