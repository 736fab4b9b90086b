package text

import (
	"sort"

	"github.com/pkg/errors"
)

// DefaultMinFrequency is the lexicon cutoff used by the dataset loaders.
const DefaultMinFrequency = 3

// Lexicon is a bijection between distinct CharacterSequences and dense
// indices 0..Len()-1.
type Lexicon struct {
	entries []CharacterSequence
	index   map[string]int32
}

// NewLexicon indexes sequences in order. Duplicates are an error.
func NewLexicon(sequences []CharacterSequence) (*Lexicon, error) {
	l := &Lexicon{index: make(map[string]int32, len(sequences))}
	for _, s := range sequences {
		k := s.key()
		if i, ok := l.index[k]; ok {
			return nil, errors.Wrapf(ErrNotBijective, "sequence %v already at index %d", s.Characters, i)
		}
		l.index[k] = int32(len(l.entries))
		l.entries = append(l.entries, s)
	}
	return l, nil
}

// BuildLexicon keeps every whole sequence seen at least minFreq times.
// Indices follow first-seen order.
func BuildLexicon(sequences []CharacterSequence, minFreq int) *Lexicon {
	c := newCounter()
	for _, s := range sequences {
		c.add(s)
	}
	return c.lexicon(minFreq)
}

// BuildSegmentLexicon tallies every substring of 1..maxLength codes that
// contains neither eos nor eow, and keeps those seen at least minFreq
// times. A trailing eos on each sequence is ignored.
func BuildSegmentLexicon(sequences []CharacterSequence, a *Alphabet, maxLength, minFreq int) *Lexicon {
	c := newCounter()
	for _, s := range sequences {
		chars := s.Characters
		if n := len(chars); n > 0 && chars[n-1] == a.EOS {
			chars = chars[:n-1]
		}
		for i := range chars {
			for j := 1; j <= maxLength && i+j <= len(chars); j++ {
				seg := chars[i : i+j]
				if containsCode(seg, a.EOS) || containsCode(seg, a.EOW) {
					// Every longer segment from i contains it too.
					break
				}
				c.add(CharacterSequence{Characters: append([]int32(nil), seg...), EOS: a.EOS})
			}
		}
	}
	return c.lexicon(minFreq)
}

func containsCode(seg []int32, c int32) bool {
	for _, x := range seg {
		if x == c {
			return true
		}
	}
	return false
}

type counted struct {
	seq   CharacterSequence
	freq  int
	first int
}

type counter struct {
	byKey map[string]*counted
}

func newCounter() *counter { return &counter{byKey: map[string]*counted{}} }

func (c *counter) add(s CharacterSequence) {
	k := s.key()
	if e, ok := c.byKey[k]; ok {
		e.freq++
		return
	}
	c.byKey[k] = &counted{seq: s, freq: 1, first: len(c.byKey)}
}

func (c *counter) lexicon(minFreq int) *Lexicon {
	arr := make([]*counted, 0, len(c.byKey))
	for _, e := range c.byKey {
		if e.freq >= minFreq {
			arr = append(arr, e)
		}
	}
	sort.Slice(arr, func(i, j int) bool { return arr[i].first < arr[j].first })
	l := &Lexicon{
		entries: make([]CharacterSequence, len(arr)),
		index:   make(map[string]int32, len(arr)),
	}
	for i, e := range arr {
		l.entries[i] = e.seq
		l.index[e.seq.key()] = int32(i)
	}
	return l
}

func (l *Lexicon) Len() int { return len(l.entries) }

// Index returns the index of s.
func (l *Lexicon) Index(s CharacterSequence) (int32, bool) {
	i, ok := l.index[s.key()]
	return i, ok
}

// Entry returns the sequence at index i.
func (l *Lexicon) Entry(i int32) (CharacterSequence, bool) {
	if i < 0 || int(i) >= len(l.entries) {
		return CharacterSequence{}, false
	}
	return l.entries[i], true
}

// Entries returns the sequences in index order. Do not modify.
func (l *Lexicon) Entries() []CharacterSequence { return l.entries }
