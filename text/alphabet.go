package text

import (
	"sort"

	"github.com/pkg/errors"
)

// Alphabet maps every observed character, plus the three reserved
// symbols, to a dense code. Observed characters take codes 0..n-1 in
// code-point order; eos, eow and pad follow in that order.
type Alphabet struct {
	Dictionary    *Bijection
	EOS, EOW, PAD int32
	// The reserved symbols themselves.
	EOSSymbol, EOWSymbol, PADSymbol string
}

// NewAlphabet builds an Alphabet from already sorted, deduplicated
// letters. A reserved symbol that is also a letter keeps the letter's
// code.
func NewAlphabet(letters []rune, eos, eow, pad string) (*Alphabet, error) {
	if eos == eow || eos == pad || eow == pad {
		return nil, errors.Errorf("reserved symbols must differ: eos=%q eow=%q pad=%q", eos, eow, pad)
	}
	d := NewBijection()
	for i, r := range letters {
		if err := d.Insert(string(r), int32(i)); err != nil {
			return nil, errors.Wrap(err, "letters must be deduplicated")
		}
	}
	a := &Alphabet{Dictionary: d, EOSSymbol: eos, EOWSymbol: eow, PADSymbol: pad}
	var err error
	for _, r := range []struct {
		sym  string
		code *int32
	}{{eos, &a.EOS}, {eow, &a.EOW}, {pad, &a.PAD}} {
		if *r.code, err = a.reserve(r.sym); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// reserve returns the code of sym, appending it as code Len() if absent.
func (a *Alphabet) reserve(sym string) (int32, error) {
	if c, ok := a.Dictionary.Value(sym); ok {
		return c, nil
	}
	c := int32(a.Dictionary.Len())
	if err := a.Dictionary.Insert(sym, c); err != nil {
		return 0, errors.Wrapf(err, "reserve %q", sym)
	}
	return c, nil
}

// BuildAlphabet collects every character of documents and returns the
// sorted Alphabet.
func BuildAlphabet(documents []string, eos, eow, pad string) (*Alphabet, error) {
	seen := map[rune]struct{}{}
	for _, doc := range documents {
		for _, r := range doc {
			seen[r] = struct{}{}
		}
	}
	letters := make([]rune, 0, len(seen))
	for r := range seen {
		letters = append(letters, r)
	}
	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })
	return NewAlphabet(letters, eos, eow, pad)
}

// Len is the number of codes including reserved symbols.
func (a *Alphabet) Len() int { return a.Dictionary.Len() }

// Code returns the code of a single character.
func (a *Alphabet) Code(r rune) (int32, bool) { return a.Dictionary.Value(string(r)) }

// Symbol returns the string for code, "" when the code is unknown.
func (a *Alphabet) Symbol(code int32) string {
	s, _ := a.Dictionary.Key(code)
	return s
}
