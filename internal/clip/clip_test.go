package clip

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"go.klb.dev/cliptext/internal/content"
)

func TestMemory_CounterMovesOnEveryChange(t *testing.T) {
	m := NewMemory()
	start := m.ChangeCount()

	m.Set(content.Payload{content.MIMEText: []byte("a")})
	assert.NotEqual(t, start, m.ChangeCount())

	before := m.ChangeCount()
	require.NoError(t, m.Write(content.Payload{content.MIMEText: []byte("b")}))
	assert.NotEqual(t, before, m.ChangeCount())

	got, err := m.Read()
	require.NoError(t, err)
	assert.Equal(t, content.Payload{content.MIMEText: []byte("b")}, got)
}

func TestMemory_ReadReturnsCopy(t *testing.T) {
	m := NewMemory()
	m.Set(content.Payload{content.MIMEText: []byte("a")})
	got, _ := m.Read()
	delete(got, content.MIMEText)

	again, _ := m.Read()
	assert.True(t, again.Has(content.MIMEText))
}

func TestMemory_FailNextWrite(t *testing.T) {
	m := NewMemory()
	m.Set(content.Payload{content.MIMEText: []byte("keep")})
	before := m.ChangeCount()

	boom := errors.New("boom")
	m.FailNextWrite(boom)
	assert.ErrorIs(t, m.Write(content.Payload{content.MIMEText: []byte("lost")}), boom)
	assert.Equal(t, before, m.ChangeCount())

	got, _ := m.Read()
	assert.Equal(t, []byte("keep"), got[content.MIMEText])

	// only the next write fails
	require.NoError(t, m.Write(content.Payload{content.MIMEText: []byte("ok")}))
}

func TestPNGOnly_ConvertsBMP(t *testing.T) {
	var raw bytes.Buffer
	require.NoError(t, bmp.Encode(&raw, image.NewRGBA(image.Rect(0, 0, 3, 2))))

	out, err := pngOnly(content.Payload{content.MIMEBMP: raw.Bytes()})
	require.NoError(t, err)
	assert.False(t, out.Has(content.MIMEBMP))
	cfg, err := png.DecodeConfig(bytes.NewReader(out[content.MIMEPNG]))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Width)
	assert.Equal(t, 2, cfg.Height)
}

func TestPNGOnly_KeepsListedTypes(t *testing.T) {
	in := content.Payload{content.MIMETIFF: []byte("opaque"), content.MIMEText: []byte("x")}
	out, err := pngOnly(in, content.MIMETIFF)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestPNGOnly_CorruptImage(t *testing.T) {
	_, err := pngOnly(content.Payload{content.MIMEBMP: []byte("nope")})
	assert.Error(t, err)
}
