package findings

import (
	"strings"
	"unicode"

	"github.com/joelanford/axscan/utils/matcher"
	"github.com/joelanford/axscan/utils/text"
)

const DefaultContext = 40

type Finding struct {
	Keyword  string `json:"keyword" yaml:"keyword"`
	Snippet  string `json:"snippet" yaml:"snippet"`
	Position int    `json:"position" yaml:"position"`
}

type Extractor struct {
	context int
}

// NewExtractor returns an extractor capturing context code units on each
// side of a match. Negative values are treated as zero.
func NewExtractor(context int) *Extractor {
	if context < 0 {
		context = 0
	}
	return &Extractor{context: context}
}

func Extract(s string, matches []matcher.Match) []Finding {
	return NewExtractor(DefaultContext).Extract(text.New(s), matches)
}

func (e *Extractor) Extract(t *text.Text, matches []matcher.Match) []Finding {
	n := t.Len()
	fs := make([]Finding, 0, len(matches))
	for _, m := range matches {
		start, end := Window(n, m.Offset, text.UnitLen(m.Keyword), e.context)
		fs = append(fs, Finding{
			Keyword:  m.Keyword,
			Snippet:  Sanitize(t.Slice(start, end)),
			Position: m.Offset,
		})
	}
	return fs
}

// Window returns the clamped [start, end) bounds of the context around a
// match of keywordLen units at offset in a text of textLen units.
func Window(textLen, offset, keywordLen, context int) (int, int) {
	start := offset - context
	if start < 0 {
		start = 0
	}
	end := offset + keywordLen + context
	if end > textLen {
		end = textLen
	}
	if start > end {
		start = end
	}
	return start, end
}

var markupReplacer = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// Sanitize escapes markup delimiters and trims surrounding whitespace.
func Sanitize(s string) string {
	return strings.TrimFunc(markupReplacer.Replace(s), isTrimSpace)
}

func isTrimSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}
