package text

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// OOV is the id given to tokens missing from an encoder's dictionary.
const OOV = 0

// TextEncoder turns raw text into token ids through a bijective
// dictionary.
type TextEncoder interface {
	Dictionary() *Bijection
	// Encode returns one decimal token id per token of text.
	Encode(text string) []string
	// Decode maps a decimal token id back to its surface string.
	Decode(token string) string
}

// EncodeIDs runs enc over text and parses the ids. Anything that does
// not parse becomes OOV.
func EncodeIDs(enc TextEncoder, text string) []int {
	toks := enc.Encode(text)
	ids := make([]int, len(toks))
	for i, t := range toks {
		id, err := strconv.Atoi(t)
		if err != nil {
			id = OOV
		}
		ids[i] = id
	}
	return ids
}

// Encoder splits on spaces and tabs and looks every token up in its
// dictionary.
type Encoder struct {
	dict *Bijection
}

// NewToyEncoder is the three-letter vocabulary used in tests and demos.
func NewToyEncoder() *Encoder {
	d, _ := BijectionFrom(map[string]int32{"a": 1, "b": 2, "c": 3})
	return &Encoder{dict: d}
}

// NewEncoder wraps an existing dictionary.
func NewEncoder(d *Bijection) *Encoder { return &Encoder{dict: d} }

// NewLexiconEncoder binds the surface string of every lexicon entry to
// the entry's index. A trailing eos code is not part of the surface
// string; other codes missing from a decode to "".
func NewLexiconEncoder(l *Lexicon, a *Alphabet) (*Encoder, error) {
	d := NewBijection()
	for i, seq := range l.Entries() {
		chars := seq.Characters
		if n := len(chars); n > 0 && chars[n-1] == a.EOS {
			chars = chars[:n-1]
		}
		var b strings.Builder
		for _, c := range chars {
			b.WriteString(a.Symbol(c))
		}
		if err := d.Insert(b.String(), int32(i)); err != nil {
			return nil, errors.Wrapf(err, "lexicon entry %d", i)
		}
	}
	return &Encoder{dict: d}, nil
}

func (e *Encoder) Dictionary() *Bijection { return e.dict }

// Encode looks up every token of SplitTokens(text). Empty tokens are
// OOV like any other unknown token.
func (e *Encoder) Encode(text string) []string {
	toks := SplitTokens(text)
	out := make([]string, len(toks))
	for i, tok := range toks {
		out[i] = strconv.FormatInt(int64(e.dict.ValueOr(tok, OOV)), 10)
	}
	return out
}

// isTokenSeparator is true for tabs and space separators (Unicode Zs).
// Newlines are part of a token.
func isTokenSeparator(r rune) bool {
	return r == '\t' || unicode.Is(unicode.Zs, r)
}

// SplitTokens splits text at every tab or space separator. Consecutive,
// leading and trailing separators yield empty tokens, so n separators
// always give n+1 tokens.
func SplitTokens(text string) []string {
	var toks []string
	start := 0
	for i, r := range text {
		if isTokenSeparator(r) {
			toks = append(toks, text[start:i])
			start = i + utf8.RuneLen(r)
		}
	}
	return append(toks, text[start:])
}

func (e *Encoder) Decode(token string) string {
	id, err := strconv.ParseInt(token, 10, 32)
	if err != nil {
		return ""
	}
	s, _ := e.dict.Key(int32(id))
	return s
}
