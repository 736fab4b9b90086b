package text

import (
	"fmt"
	"strconv"
	"strings"
)

// UnknownCharacterError reports a character missing from the Alphabet.
type UnknownCharacterError struct {
	Char     rune
	Document int // index in the converted slice, -1 for a lone string
	Offset   int // byte offset in the document
}

func (e *UnknownCharacterError) Error() string {
	if e.Document < 0 {
		return fmt.Sprintf("unknown character %q at byte %d", e.Char, e.Offset)
	}
	return fmt.Sprintf("unknown character %q in document %d at byte %d", e.Char, e.Document, e.Offset)
}

// CharacterSequence is a document expressed as Alphabet codes.
type CharacterSequence struct {
	Characters []int32
	EOS        int32
}

// NewCharacterSequence converts s and appends the alphabet's eos code.
func NewCharacterSequence(s string, a *Alphabet) (CharacterSequence, error) {
	codes := make([]int32, 0, len(s)+1)
	for off, r := range s {
		c, ok := a.Code(r)
		if !ok {
			return CharacterSequence{}, &UnknownCharacterError{Char: r, Document: -1, Offset: off}
		}
		codes = append(codes, c)
	}
	codes = append(codes, a.EOS)
	return CharacterSequence{Characters: codes, EOS: a.EOS}, nil
}

// ConvertDocuments converts every document against a. The first unknown
// character aborts the whole conversion.
func ConvertDocuments(documents []string, a *Alphabet) ([]CharacterSequence, error) {
	out := make([]CharacterSequence, 0, len(documents))
	for i, doc := range documents {
		seq, err := NewCharacterSequence(doc, a)
		if err != nil {
			if uc, ok := err.(*UnknownCharacterError); ok {
				uc.Document = i
			}
			return nil, err
		}
		out = append(out, seq)
	}
	return out, nil
}

func (s CharacterSequence) Len() int { return len(s.Characters) }

// String decodes s through a; unknown codes become "".
func (s CharacterSequence) String(a *Alphabet) string {
	var b strings.Builder
	for _, c := range s.Characters {
		b.WriteString(a.Symbol(c))
	}
	return b.String()
}

// key is a map key for the code sequence.
func (s CharacterSequence) key() string {
	var b strings.Builder
	for i, c := range s.Characters {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(int64(c), 10))
	}
	return b.String()
}
