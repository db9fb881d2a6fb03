// Package text decodes scanned file content and measures it in UTF-16 code
// units, which is the unit every match offset and context window uses.
package text

import (
	"unicode/utf16"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decode converts raw file bytes to a string. Content is treated as UTF-8
// unless a byte order mark says otherwise; a UTF-8 BOM is stripped and
// invalid sequences become U+FFFD.
func Decode(data []byte) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", errors.Wrap(err, "error decoding text")
	}
	return string(out), nil
}

type Text struct {
	s     string
	ascii bool
	units []uint16
}

func New(s string) *Text {
	return &Text{s: s, ascii: isASCII(s)}
}

func (t *Text) String() string {
	return t.s
}

// Len returns the length of the text in UTF-16 code units.
func (t *Text) Len() int {
	if t.ascii {
		return len(t.s)
	}
	return len(t.encoded())
}

// Slice returns the text between the UTF-16 offsets start and end. Offsets
// are clamped to the text bounds. A surrogate pair cut in half by either
// bound decodes as U+FFFD.
func (t *Text) Slice(start, end int) string {
	n := t.Len()
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start >= end {
		return ""
	}
	if t.ascii {
		return t.s[start:end]
	}
	return string(utf16.Decode(t.encoded()[start:end]))
}

func (t *Text) encoded() []uint16 {
	if t.units == nil {
		t.units = utf16.Encode([]rune(t.s))
	}
	return t.units
}

// Offsets returns a cursor that converts byte offsets into UTF-16 offsets.
func (t *Text) Offsets() *Cursor {
	return &Cursor{s: t.s, ascii: t.ascii}
}

// Cursor walks the text once while converting byte offsets. Offsets passed
// to Unit must not decrease; call Reset before walking again.
type Cursor struct {
	s     string
	ascii bool
	b     int
	u     int
}

func (c *Cursor) Unit(byteOffset int) int {
	if c.ascii {
		return byteOffset
	}
	if byteOffset < c.b {
		c.Reset()
	}
	for c.b < byteOffset && c.b < len(c.s) {
		r, size := utf8.DecodeRuneInString(c.s[c.b:])
		c.u += runeUnits(r)
		c.b += size
	}
	return c.u
}

func (c *Cursor) Reset() {
	c.b, c.u = 0, 0
}

// UnitLen returns the length of s in UTF-16 code units.
func UnitLen(s string) int {
	n := 0
	for _, r := range s {
		n += runeUnits(r)
	}
	return n
}

func runeUnits(r rune) int {
	if r >= 0x10000 && r <= utf8.MaxRune {
		return 2
	}
	return 1
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
