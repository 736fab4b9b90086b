package IO

import (
	"strconv"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"

	"github.com/manningwu07/textdata/text"
)

// BPEEncoder is a byte-pair encoder loaded from a tokenizer.json
// (e.g. GPT-2's). It satisfies text.TextEncoder.
type BPEEncoder struct {
	tok  *tk.Tokenizer
	dict *text.Bijection
}

// LoadBPE loads a tokenizer.json from tokPath.
func LoadBPE(tokPath string) (*BPEEncoder, error) {
	t, err := pretrained.FromFile(tokPath)
	if err != nil {
		return nil, errors.Wrapf(err, "load tokenizer %s", tokPath)
	}
	return newBPEEncoder(t)
}

// LoadPretrainedBPE fetches (or reuses the cached) tokenizer.json of a
// hub model such as "gpt2".
func LoadPretrainedBPE(modelName string) (*BPEEncoder, error) {
	p, err := tk.CachedPath(modelName, "tokenizer.json")
	if err != nil {
		return nil, errors.Wrapf(err, "fetch tokenizer for %s", modelName)
	}
	return LoadBPE(p)
}

func newBPEEncoder(t *tk.Tokenizer) (*BPEEncoder, error) {
	vocab := t.GetVocab(true)
	m := make(map[string]int32, len(vocab))
	for tok, id := range vocab {
		m[tok] = int32(id)
	}
	d, err := text.BijectionFrom(m)
	if err != nil {
		return nil, errors.Wrap(err, "tokenizer vocab")
	}
	return &BPEEncoder{tok: t, dict: d}, nil
}

func (e *BPEEncoder) Dictionary() *text.Bijection { return e.dict }

// Encode returns the BPE ids of s (without BOS/EOS).
func (e *BPEEncoder) Encode(s string) []string {
	enc, err := e.tok.EncodeSingle(s)
	if err != nil {
		glog.Warningf("bpe: %v", err)
		return nil
	}
	out := make([]string, len(enc.Ids))
	for i, id := range enc.Ids {
		out[i] = strconv.Itoa(id)
	}
	return out
}

func (e *BPEEncoder) Decode(token string) string {
	id, err := strconv.ParseInt(token, 10, 32)
	if err != nil {
		return ""
	}
	s, _ := e.dict.Key(int32(id))
	return s
}
