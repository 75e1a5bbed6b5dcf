package xmlfeed

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// Encoding names reported by toUTF8
const (
	encUTF8      = "utf-8"
	encUTF16LE   = "utf-16le"
	encUTF16BE   = "utf-16be"
	encISO88599  = "iso-8859-9"
	encUTF8Lossy = "utf-8 (replaced)"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}

	declPattern = regexp.MustCompile(`^\s*<\?xml[^>]*encoding\s*=\s*["']([A-Za-z0-9._:-]+)["']`)
)

// toUTF8 converts a raw feed payload to UTF-8. The byte order mark wins,
// then the declared encoding (override first, then the XML declaration),
// then plain UTF-8, then ISO-8859-9 for undeclared legacy Turkish feeds.
// A payload declared as UTF-8 with invalid sequences is repaired with U+FFFD.
func toUTF8(raw []byte, override string) ([]byte, string, error) {
	switch {
	case bytes.HasPrefix(raw, bomUTF8):
		return repairUTF8(raw[len(bomUTF8):])
	case bytes.HasPrefix(raw, bomUTF16LE):
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(raw)
		return out, encUTF16LE, err
	case bytes.HasPrefix(raw, bomUTF16BE):
		out, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(raw)
		return out, encUTF16BE, err
	}

	declared := strings.TrimSpace(override)
	if declared == "" {
		declared = declaredEncoding(raw)
	}
	if declared != "" {
		enc, name, ok := lookupEncoding(declared)
		if ok {
			if name == encUTF8 {
				return repairUTF8(raw)
			}
			out, err := enc.NewDecoder().Bytes(raw)
			if err != nil {
				return nil, "", fmt.Errorf("decode %s: %w", name, err)
			}
			return out, name, nil
		}
	}

	if utf8.Valid(raw) {
		return raw, encUTF8, nil
	}
	out, err := charmap.ISO8859_9.NewDecoder().Bytes(raw)
	if err != nil {
		return repairUTF8(raw)
	}
	return out, encISO88599, nil
}

func repairUTF8(raw []byte) ([]byte, string, error) {
	if utf8.Valid(raw) {
		return raw, encUTF8, nil
	}
	return bytes.ToValidUTF8(raw, []byte("�")), encUTF8Lossy, nil
}

func declaredEncoding(raw []byte) string {
	head := raw
	if len(head) > 256 {
		head = head[:256]
	}
	m := declPattern.FindSubmatch(head)
	if m == nil {
		return ""
	}
	return string(m[1])
}

func lookupEncoding(label string) (encoding.Encoding, string, bool) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, "", false
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = strings.ToLower(label)
	}
	return enc, name, true
}
