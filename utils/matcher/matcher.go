// Package matcher finds literal, case-insensitive keyword occurrences in text.
//
// Each keyword gets its own Aho-Corasick automaton. Occurrences of one
// keyword never overlap each other; occurrences of different keywords may
// share offsets.
package matcher

import (
	aho "github.com/petar-dambovaliev/aho-corasick"
	"github.com/pkg/errors"

	"github.com/joelanford/axscan/utils/text"
)

// Match is one keyword occurrence. Offset counts UTF-16 code units from the
// start of the text.
type Match struct {
	Keyword string
	Offset  int
}

type Matcher struct {
	keywords []string
	automata []aho.AhoCorasick
}

func New(keywords []string) (*Matcher, error) {
	if len(keywords) == 0 {
		return nil, errors.New("no keywords to match")
	}

	m := &Matcher{
		keywords: make([]string, len(keywords)),
		automata: make([]aho.AhoCorasick, len(keywords)),
	}
	copy(m.keywords, keywords)

	for i, kw := range m.keywords {
		if kw == "" {
			return nil, errors.Errorf("keyword %d is empty", i)
		}
		builder := aho.NewAhoCorasickBuilder(aho.Opts{
			AsciiCaseInsensitive: true,
			MatchKind:            aho.LeftMostFirstMatch,
			DFA:                  true,
		})
		m.automata[i] = builder.Build([]string{kw})
	}
	return m, nil
}

// FindString is a one-shot helper for callers that scan a single text.
func FindString(s string, keywords []string) ([]Match, error) {
	m, err := New(keywords)
	if err != nil {
		return nil, err
	}
	return m.Find(text.New(s)), nil
}

func (m *Matcher) Keywords() []string {
	kw := make([]string, len(m.keywords))
	copy(kw, m.keywords)
	return kw
}

// Find returns matches grouped by keyword in keyword order, ascending by
// offset within a group.
func (m *Matcher) Find(t *text.Text) []Match {
	s := t.String()
	if s == "" {
		return nil
	}

	var matches []Match
	cursor := t.Offsets()
	for i, kw := range m.keywords {
		found := m.automata[i].FindAll(s)
		if len(found) == 0 {
			continue
		}
		cursor.Reset()
		// FindAll reports every start position of a keyword that overlaps
		// itself ("aa" in "aaaa"); keep only the leftmost chain.
		end := 0
		for j := range found {
			if found[j].Start() < end {
				continue
			}
			end = found[j].End()
			matches = append(matches, Match{
				Keyword: kw,
				Offset:  cursor.Unit(found[j].Start()),
			})
		}
	}
	return matches
}
