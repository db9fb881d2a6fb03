package keywords

import (
	"io/ioutil"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// defaultWords are literal fragments associated with ActiveX and VB
// component usage. Order matters: it is the order findings are reported in.
var defaultWords = []string{
	"CreateObject(",
	"GetObject(",
	"MSComctlLib",
	"Forms.CommandButton",
	"ClassId={",
	"Object=",
	"VBComponent",
	"ActiveX",
}

type Keywords struct {
	keywords []*Keyword
	reasons  map[string]string
}

type Keyword struct {
	Word   string `yaml:"word"`
	Reason string `yaml:"reason,omitempty"`
}

func Default() *Keywords {
	kw := make([]*Keyword, 0, len(defaultWords))
	for _, w := range defaultWords {
		kw = append(kw, &Keyword{Word: w})
	}
	k, err := New(kw)
	if err != nil {
		panic(errors.Wrap(err, "invalid built-in keywords"))
	}
	return k
}

func New(keywordList []*Keyword) (*Keywords, error) {
	if len(keywordList) == 0 {
		return nil, errors.New("no keywords defined")
	}

	//
	// Keep the first occurrence of each word so the original order
	// decides reporting order.
	//
	k := &Keywords{reasons: make(map[string]string)}
	for i, keyword := range keywordList {
		if keyword == nil || keyword.Word == "" {
			return nil, errors.Errorf("keyword %d is empty", i)
		}
		if _, ok := k.reasons[keyword.Word]; ok {
			continue
		}
		k.reasons[keyword.Word] = keyword.Reason
		k.keywords = append(k.keywords, keyword)
	}
	return k, nil
}

func Load(wordsFile string) (*Keywords, error) {
	data, err := ioutil.ReadFile(wordsFile)
	if err != nil {
		return nil, errors.Wrap(err, "error reading keywords file")
	}

	var keywordList []*Keyword
	err = yaml.Unmarshal(data, &keywordList)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing keywords file")
	}

	k, err := New(keywordList)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid keywords file %s", wordsFile)
	}
	return k, nil
}

// Words returns the keyword literals in reporting order.
func (k *Keywords) Words() []string {
	words := make([]string, 0, len(k.keywords))
	for _, keyword := range k.keywords {
		words = append(words, keyword.Word)
	}
	return words
}

func (k *Keywords) Reason(word string) string {
	return k.reasons[word]
}

func (k *Keywords) Len() int {
	return len(k.keywords)
}
