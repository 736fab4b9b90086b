package IO

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/manningwu07/textdata/text"
)

type vocabJSON struct {
	TokenToID map[string]int32 `json:"TokenToID"`
	// IDToToken is ordered by id; informational only.
	IDToToken []string `json:"IDToToken"`
}

// ExportVocabJSON writes an encoder dictionary to path.
func ExportVocabJSON(path string, d *text.Bijection) error {
	if d == nil {
		return errors.New("vocab is not initialized")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(vocabJSON{TokenToID: d.Map(), IDToToken: d.Keys()})
}

// ImportVocabJSON loads a dictionary written by ExportVocabJSON.
func ImportVocabJSON(path string) (*text.Bijection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var data vocabJSON
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	d, err := text.BijectionFrom(data.TokenToID)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return d, nil
}
