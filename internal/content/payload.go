package content

import (
	"bytes"
	"image"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	// Decoders for image.DecodeConfig / image.Decode.
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// MIME types understood by Decode and produced by Encode.
const (
	MIMEText    = "text/plain"
	MIMEURIList = "text/uri-list"
	MIMEPNG     = "image/png"
	MIMETIFF    = "image/tiff"
	MIMEBMP     = "image/bmp"
	MIMERTF     = "text/rtf"
	MIMEHTML    = "text/html"
)

// imageTypes is the image lookup order when a snapshot carries several.
var imageTypes = []string{MIMEPNG, MIMETIFF, MIMEBMP}

// Payload is one raw clipboard snapshot: every representation the host
// exposed at read time, keyed by MIME type.
type Payload map[string][]byte

// Types returns the MIME types present, sorted.
func (p Payload) Types() []string {
	out := make([]string, 0, len(p))
	for t := range p {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Has reports whether p carries a representation of type mime.
func (p Payload) Has(mime string) bool {
	_, ok := p[mime]
	return ok
}

// Decode classifies a snapshot into exactly one Content variant. The first
// matching rule wins: file references, image, rich text with a plain
// fallback, plain text. ok is false when nothing supported is present.
func Decode(p Payload) (c Content, ok bool) {
	if raw, has := p[MIMEURIList]; has {
		if paths, ok := ParseFileList(raw); ok {
			return Files{Paths: paths}, true
		}
	}

	for _, mime := range imageTypes {
		data := p[mime]
		if len(data) == 0 {
			continue
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
			continue
		}
		return Image{MIME: mime, Data: data, Width: cfg.Width, Height: cfg.Height}, true
	}

	plain, hasPlain := p[MIMEText]
	if hasPlain {
		if text, ok := DecodeText(plain); ok {
			if rich, ok := richText(p, text); ok {
				return rich, true
			}
			return Text{Value: text}, true
		}
	}
	return nil, false
}

func richText(p Payload, plain string) (RichText, bool) {
	if rtf := p[MIMERTF]; bytes.HasPrefix(bytes.TrimLeft(rtf, " \t\r\n"), []byte(`{\rtf`)) {
		return RichText{Format: MIMERTF, Data: rtf, Plain: plain}, true
	}
	if html := p[MIMEHTML]; len(bytes.TrimSpace(html)) > 0 {
		if _, ok := DecodeText(html); ok {
			return RichText{Format: MIMEHTML, Data: html, Plain: plain}, true
		}
	}
	return RichText{}, false
}

// ParseFileList parses an RFC 2483 uri-list. It succeeds only when the list
// is non-empty and every entry is a file:// URL.
func ParseFileList(raw []byte) ([]string, bool) {
	var paths []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, err := url.Parse(line)
		if err != nil || u.Scheme != "file" || u.Path == "" {
			return nil, false
		}
		if u.Host != "" && u.Host != "localhost" {
			return nil, false
		}
		paths = append(paths, fromURLPath(u.Path))
	}
	return paths, len(paths) > 0
}

// fromURLPath turns "/C:/dir/x" into "C:/dir/x" before converting separators.
func fromURLPath(p string) string {
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p)
}

// EncodeFileList renders paths as a CRLF-terminated file:// uri-list.
func EncodeFileList(paths []string) []byte {
	lines := make([]string, len(paths))
	for i, p := range paths {
		p = filepath.ToSlash(p)
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		lines[i] = (&url.URL{Scheme: "file", Path: p}).String()
	}
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

// Encode serialises c back into the representations the host expects. Rich
// text is written as its formatted payload and its plain fallback together.
func Encode(c Content) Payload {
	switch c := c.(type) {
	case Text:
		return Payload{MIMEText: []byte(c.Value)}
	case Image:
		return Payload{c.MIME: c.Data}
	case Files:
		return Payload{MIMEURIList: EncodeFileList(c.Paths)}
	case RichText:
		return Payload{c.Format: c.Data, MIMEText: []byte(c.Plain)}
	default:
		return nil
	}
}

// EncodePlain serialises only the plain-text projection of c.
func EncodePlain(c Content) (Payload, bool) {
	text, ok := PlainText(c)
	if !ok {
		return nil, false
	}
	return Payload{MIMEText: []byte(text)}, true
}
