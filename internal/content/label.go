package content

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rivo/uniseg"
)

const (
	// MaxLabelLen is the longest label Label returns, in grapheme clusters.
	MaxLabelLen = 60
	ellipsis    = "..."

	emptyTextLabel = "[Empty Text]"
	emptyRichLabel = "[Rich Text]"
)

// Label returns a single-line, human-readable summary of c, at most
// MaxLabelLen characters long.
func Label(c Content) string {
	switch c := c.(type) {
	case Text:
		if s := oneLine(c.Value); s != "" {
			return truncate(s)
		}
		return emptyTextLabel
	case Image:
		return fmt.Sprintf("Image (%d × %d)", c.Width, c.Height)
	case Files:
		if len(c.Paths) == 1 {
			return truncate(filepath.Base(c.Paths[0]))
		}
		return fmt.Sprintf("%d files", len(c.Paths))
	case RichText:
		if s := oneLine(c.Plain); s != "" {
			return truncate(s)
		}
		return emptyRichLabel
	default:
		return ""
	}
}

func oneLine(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}

func truncate(s string) string {
	if uniseg.GraphemeClusterCount(s) <= MaxLabelLen {
		return s
	}
	keep := MaxLabelLen - len(ellipsis)
	var b strings.Builder
	g := uniseg.NewGraphemes(s)
	for n := 0; n < keep && g.Next(); n++ {
		b.WriteString(g.Str())
	}
	b.WriteString(ellipsis)
	return b.String()
}
