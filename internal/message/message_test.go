package message

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/cliptext/internal/content"
	"go.klb.dev/cliptext/internal/history"
)

var at = time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

func TestViewOf(t *testing.T) {
	tests := []struct {
		name string
		c    content.Content
		want EntryView
	}{
		{
			name: "text",
			c:    content.Text{Value: "hello\nworld"},
			want: EntryView{Kind: "text", Label: "hello world", Text: "hello\nworld", HasText: true},
		},
		{
			name: "empty text keeps has_text",
			c:    content.Text{Value: ""},
			want: EntryView{Kind: "text", Label: "[Empty Text]", HasText: true},
		},
		{
			name: "image carries dimensions only",
			c:    content.Image{MIME: content.MIMEPNG, Data: []byte{1, 2, 3}, Width: 4, Height: 5},
			want: EntryView{Kind: "image", Label: "Image (4 × 5)", Format: content.MIMEPNG, Width: 4, Height: 5},
		},
		{
			name: "files",
			c:    content.Files{Paths: []string{"/a/x.txt", "/b"}},
			want: EntryView{Kind: "files", Label: "2 files", Paths: []string{"/a/x.txt", "/b"}},
		},
		{
			name: "rich text",
			c:    content.RichText{Format: content.MIMEHTML, Data: []byte("<b>x</b>"), Plain: "x"},
			want: EntryView{Kind: "rich-text", Label: "x", Text: "x", HasText: true, Format: content.MIMEHTML},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := history.NewEntry(tt.c, at)
			tt.want.ID = e.ID.String()
			tt.want.CapturedAt = at
			assert.Equal(t, tt.want, ViewOf(e))
		})
	}
}

func TestViewOf_LongTextIsPreviewed(t *testing.T) {
	long := strings.Repeat("é", PreviewRunes) + strings.Repeat("x", 5<<20)
	v := ViewOf(history.NewEntry(content.Text{Value: long}, at))
	assert.True(t, v.HasText)
	assert.True(t, v.Truncated)
	assert.Equal(t, strings.Repeat("é", PreviewRunes), v.Text)
	assert.LessOrEqual(t, len(v.Label), 4*PreviewRunes)

	v = ViewOf(history.NewEntry(content.Text{Value: strings.Repeat("y", PreviewRunes)}, at))
	assert.False(t, v.Truncated)
	assert.Len(t, v.Text, PreviewRunes)
}

func TestViewOfSnapshot_NeverNull(t *testing.T) {
	v := ViewOfSnapshot(history.Snapshot{}, 10)
	msg := &Message{Type: TypeHistory, History: &v}
	raw, err := msg.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"unpinned":[]`)
	assert.Contains(t, string(raw), `"pinned":[]`)
	assert.Contains(t, string(raw), `"capacity":10`)
}

func TestViewOfSnapshot_KeepsGroups(t *testing.T) {
	s := history.New(5)
	a := history.NewEntry(content.Text{Value: "a"}, at)
	b := history.NewEntry(content.Text{Value: "b"}, at)
	s.Push(a)
	s.Push(b)
	s.TogglePin(a.ID)

	v := ViewOfSnapshot(s.Snapshot(), s.Capacity())
	assert.Equal(t, 2, v.Len())
	require.Len(t, v.Pinned, 1)
	assert.Equal(t, a.ID.String(), v.Pinned[0].ID)
	assert.True(t, v.Pinned[0].Pinned)
	require.Len(t, v.Unpinned, 1)
	assert.Equal(t, b.ID.String(), v.Unpinned[0].ID)
}

func TestAuthToken(t *testing.T) {
	m := NewAuth("cli", "s3cret")
	raw, err := m.Encode()
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "s3cret")

	back, err := Decode(raw)
	require.NoError(t, err)
	tok, err := back.Token()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", tok)
	assert.Equal(t, "cli", back.Source)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	assert.Error(t, err)

	m := &Message{Type: TypeAuth, Payload: "%%%"}
	_, err = m.Token()
	assert.Error(t, err)
}
