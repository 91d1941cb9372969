package content

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// charsetAliases maps chardet names that htmlindex does not know.
var charsetAliases = map[string]string{
	"GB-18030":   "gb18030",
	"IBM424_rtl": "",
	"IBM424_ltr": "",
	"IBM420_rtl": "",
	"IBM420_ltr": "",
}

// DecodeText converts raw clipboard text to a UTF-8 string. Valid UTF-8 is
// returned as is, a UTF-16 byte order mark selects UTF-16, and anything else
// goes through charset detection. Trailing NULs are dropped.
func DecodeText(raw []byte) (string, bool) {
	if utf8.Valid(raw) {
		return strings.TrimRight(string(raw), "\x00"), true
	}

	var dec *encoding.Decoder
	switch {
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}):
		dec = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
	case bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		dec = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
	default:
		dec = detectDecoder(raw)
	}
	if dec == nil {
		return "", false
	}

	out, err := dec.Bytes(raw)
	if err != nil || !utf8.Valid(out) {
		return "", false
	}
	return strings.TrimRight(string(out), "\x00"), true
}

func detectDecoder(raw []byte) *encoding.Decoder {
	res, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil {
		return nil
	}
	name := res.Charset
	if alias, ok := charsetAliases[name]; ok {
		if alias == "" {
			return nil
		}
		name = alias
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil
	}
	return enc.NewDecoder()
}
