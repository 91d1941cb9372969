// Package message defines the line protocol spoken on the control socket by
// history watchers.
//
// All messages are newline-delimited JSON, one message per line. The client
// sends AUTH (when a token is configured) and WATCH; the server answers with
// a HISTORY snapshot and sends another on every change. PING/PONG keep idle
// connections honest.
//
// Entry views never carry raw image bytes or unbounded text; they describe the
// entry well enough for a picker to label it and refer back to it by ID.
package message

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"go.klb.dev/cliptext/internal/content"
	"go.klb.dev/cliptext/internal/history"
)

// Type identifies the kind of message.
type Type string

const (
	TypeAuth    Type = "AUTH"
	TypeWatch   Type = "WATCH"
	TypeHistory Type = "HISTORY"
	TypePing    Type = "PING"
	TypePong    Type = "PONG"
	TypeError   Type = "ERROR"
)

// PreviewRunes caps the text carried in an EntryView. The full text is
// fetched per entry.
const PreviewRunes = 256

// EntryView is the serialisable description of a history entry.
type EntryView struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Label      string    `json:"label"`
	Pinned     bool      `json:"pinned"`
	CapturedAt time.Time `json:"captured_at"`

	// Text is at most PreviewRunes of the plain-text projection; HasText
	// distinguishes an empty string from none at all.
	Text      string `json:"text,omitempty"`
	HasText   bool   `json:"has_text"`
	Truncated bool   `json:"truncated,omitempty"`

	Format string   `json:"format,omitempty"` // rich text and image MIME type
	Width  int      `json:"width,omitempty"`
	Height int      `json:"height,omitempty"`
	Paths  []string `json:"paths,omitempty"`
}

// ViewOf describes e.
func ViewOf(e history.Entry) EntryView {
	v := EntryView{
		ID:         e.ID.String(),
		Kind:       e.Content.Kind().String(),
		Label:      content.Label(e.Content),
		Pinned:     e.Pinned,
		CapturedAt: e.CapturedAt,
	}
	var text string
	text, v.HasText = content.PlainText(e.Content)
	v.Text, v.Truncated = preview(text)
	switch c := e.Content.(type) {
	case content.Image:
		v.Format, v.Width, v.Height = c.MIME, c.Width, c.Height
	case content.Files:
		v.Paths = c.Paths
	case content.RichText:
		v.Format = c.Format
	}
	return v
}

func preview(s string) (string, bool) {
	n := 0
	for i := range s {
		if n == PreviewRunes {
			return s[:i], true
		}
		n++
	}
	return s, false
}

// HistoryView is a presentation snapshot of the whole history.
type HistoryView struct {
	Capacity int         `json:"capacity"`
	Unpinned []EntryView `json:"unpinned"`
	Pinned   []EntryView `json:"pinned"`
}

// ViewOfSnapshot describes s. Both groups are always non-nil so clients see
// empty arrays rather than null.
func ViewOfSnapshot(s history.Snapshot, capacity int) HistoryView {
	v := HistoryView{
		Capacity: capacity,
		Unpinned: make([]EntryView, 0, len(s.Unpinned)),
		Pinned:   make([]EntryView, 0, len(s.Pinned)),
	}
	for _, e := range s.Unpinned {
		v.Unpinned = append(v.Unpinned, ViewOf(e))
	}
	for _, e := range s.Pinned {
		v.Pinned = append(v.Pinned, ViewOf(e))
	}
	return v
}

// Len returns the number of entries in the view.
func (v HistoryView) Len() int { return len(v.Unpinned) + len(v.Pinned) }

// WatcherInfo carries metadata about a connected watcher, used in status
// responses.
type WatcherInfo struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Addr        string    `json:"addr"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`
}

// Message is the top-level wire envelope.
type Message struct {
	// Always present
	Type   Type   `json:"type"`
	Source string `json:"source,omitempty"`

	// AUTH: the token, base64-encoded
	Payload string `json:"payload,omitempty"`

	// HISTORY
	History *HistoryView `json:"history,omitempty"`

	// ERROR
	Error string `json:"error,omitempty"`
}

// NewAuth returns an AUTH message carrying token.
func NewAuth(source, token string) *Message {
	return &Message{
		Type:    TypeAuth,
		Source:  source,
		Payload: base64.StdEncoding.EncodeToString([]byte(token)),
	}
}

// Token decodes the AUTH payload.
func (m *Message) Token() (string, error) {
	b, err := base64.StdEncoding.DecodeString(m.Payload)
	if err != nil {
		return "", fmt.Errorf("auth payload: %w", err)
	}
	return string(b), nil
}

// Encode serialises the message to JSON without a trailing newline.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode deserialises a message from raw JSON bytes.
func Decode(b []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("message decode: %w", err)
	}
	return &m, nil
}
