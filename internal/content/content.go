// Package content defines the typed payload of a captured clipboard entry and
// the read-only projections the presentation layer renders from it.
//
// A Content is exactly one of Text, Image, Files or RichText. Values are
// immutable once decoded; byte slices are shared, never modified.
package content

import "slices"

// Kind identifies the active Content variant.
type Kind int

const (
	KindText Kind = iota
	KindImage
	KindFiles
	KindRichText
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindFiles:
		return "files"
	case KindRichText:
		return "rich-text"
	default:
		return "unknown"
	}
}

// Content is the sealed sum of the supported clipboard representations.
type Content interface {
	Kind() Kind
	sealed()
}

// Text is plain text. The empty string is a legitimate value.
type Text struct {
	Value string
}

// Image is a raw bitmap in its native encoding (MIME is one of the image
// types in payload.go) with its pixel dimensions.
type Image struct {
	MIME   string
	Data   []byte
	Width  int
	Height int
}

// Files is an ordered, non-empty list of local file paths.
type Files struct {
	Paths []string
}

// RichText is a formatted payload (RTF or HTML, identified by Format) paired
// with the plain text the host published alongside it.
type RichText struct {
	Format string
	Data   []byte
	Plain  string
}

func (Text) Kind() Kind     { return KindText }
func (Image) Kind() Kind    { return KindImage }
func (Files) Kind() Kind    { return KindFiles }
func (RichText) Kind() Kind { return KindRichText }

func (Text) sealed()     {}
func (Image) sealed()    {}
func (Files) sealed()    {}
func (RichText) sealed() {}

// Equal reports whether a and b count as duplicates for history purposes.
// Text compares exactly, Files compares the ordered path list, RichText
// compares only the plain fallback, and images are never equal.
func Equal(a, b Content) bool {
	switch a := a.(type) {
	case Text:
		b, ok := b.(Text)
		return ok && a.Value == b.Value
	case Files:
		b, ok := b.(Files)
		return ok && slices.Equal(a.Paths, b.Paths)
	case RichText:
		b, ok := b.(RichText)
		return ok && a.Plain == b.Plain
	default:
		return false
	}
}

// PlainText returns the plain-text projection of c. Only Text and RichText
// have one.
func PlainText(c Content) (string, bool) {
	switch c := c.(type) {
	case Text:
		return c.Value, true
	case RichText:
		return c.Plain, true
	default:
		return "", false
	}
}
