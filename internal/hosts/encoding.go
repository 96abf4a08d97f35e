package hosts

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// Encoding is a named text codec used to read and rewrite the hosts file.
// A nil codec means UTF-8, which is validated strictly instead of being
// decoded with replacement characters.
type Encoding struct {
	Name  string
	codec encoding.Encoding
}

// Built-in encodings, in the default preference order.
var (
	UTF8        = Encoding{Name: "utf-8"}
	GBK         = Encoding{Name: "gbk", codec: simplifiedchinese.GBK}
	Windows1252 = Encoding{Name: "windows-1252", codec: charmap.Windows1252}
)

// DefaultEncodings returns the decode preference order used when none is
// configured: UTF-8, then the legacy GBK code page, then the Windows ANSI
// code page.
func DefaultEncodings() []Encoding {
	return []Encoding{UTF8, GBK, Windows1252}
}

// LookupEncoding resolves an encoding by name. "ansi" is accepted as an
// alias for windows-1252; any other WHATWG label is resolved via htmlindex.
func LookupEncoding(name string) (Encoding, error) {
	label := strings.ToLower(strings.TrimSpace(name))
	switch label {
	case "utf-8", "utf8":
		return UTF8, nil
	case "gbk", "cp936":
		return GBK, nil
	case "ansi", "windows-1252", "cp1252":
		return Windows1252, nil
	}

	codec, err := htmlindex.Get(label)
	if err != nil {
		return Encoding{}, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
	}
	canonical, err := htmlindex.Name(codec)
	if err != nil {
		canonical = label
	}
	if canonical == "utf-8" {
		return UTF8, nil
	}
	return Encoding{Name: canonical, codec: codec}, nil
}

// Decode converts raw bytes to text. It reports false unless the bytes
// round-trip exactly, so a lossy decode is never accepted.
func (e Encoding) Decode(raw []byte) (string, bool) {
	if e.codec == nil {
		if !utf8.Valid(raw) {
			return "", false
		}
		return string(raw), true
	}

	text, err := e.codec.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	back, err := e.codec.NewEncoder().Bytes(text)
	if err != nil || !bytes.Equal(back, raw) {
		return "", false
	}
	return string(text), true
}

// Encode converts text back to raw bytes in this encoding.
func (e Encoding) Encode(text string) ([]byte, error) {
	if e.codec == nil {
		return []byte(text), nil
	}
	out, err := e.codec.NewEncoder().String(text)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding as %s: %w", ErrUnsupportedEncoding, e.Name, err)
	}
	return []byte(out), nil
}

// detect returns the first encoding in order that decodes raw losslessly.
func detect(raw []byte, order []Encoding) (string, Encoding, error) {
	for _, enc := range order {
		if text, ok := enc.Decode(raw); ok {
			return text, enc, nil
		}
	}
	names := make([]string, len(order))
	for i, enc := range order {
		names[i] = enc.Name
	}
	return "", Encoding{}, fmt.Errorf("%w: tried %s", ErrUnsupportedEncoding, strings.Join(names, ", "))
}
