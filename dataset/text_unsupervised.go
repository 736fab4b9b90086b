package dataset

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/manningwu07/textdata/IO"
	"github.com/manningwu07/textdata/params"
	"github.com/manningwu07/textdata/text"
)

// ErrEncoderOrEncoded is returned when no encoder is given for a variant
// without a pre-encoded archive.
var ErrEncoderOrEncoded = errors.New("an encoder is required when the variant has no encoded archive")

// ErrNoStorageRoot is returned when Config.StorageRoot is empty.
var ErrNoStorageRoot = errors.New("storage root not set")

// TextUnsupervised owns every artifact derived from one corpus variant.
// Nothing here is modified after NewTextUnsupervised returns.
type TextUnsupervised struct {
	Variant params.Variant
	Details params.VariantDetails
	// Dir is StorageRoot/<Variant>; archives are extracted below it.
	Dir string

	TrainingRaw       []string
	TrainingDataset   *LanguageModelDataset
	ValidationDataset *LanguageModelDataset
	// Encoder is nil when the datasets came from the encoded archive.
	Encoder  text.TextEncoder
	Alphabet *text.Alphabet
	Lexicon  *text.Lexicon
	// LexiconErr is the conversion error that emptied Lexicon, if any.
	LexiconErr error
}

// Option customizes NewTextUnsupervised.
type Option func(*Loader)

// WithEncoder encodes raw documents with enc instead of reading the
// pre-encoded archive.
func WithEncoder(enc text.TextEncoder) Option { return func(l *Loader) { l.Encoder = enc } }

// WithFetcher replaces the default HTTP fetcher.
func WithFetcher(f *IO.Fetcher) Option { return func(l *Loader) { l.Fetcher = f } }

// WithAlphabet uses a instead of building the alphabet from the
// training documents.
func WithAlphabet(a *text.Alphabet) Option { return func(l *Loader) { l.Alphabet = a } }

// WithCache shares derived artifacts across builds.
func WithCache(c *ArtifactCache) Option { return func(l *Loader) { l.Cache = c } }

// Loader runs the individual pipeline stages. The zero value downloads
// over HTTP and caches nothing.
type Loader struct {
	Fetcher *IO.Fetcher
	Cache   *ArtifactCache
	Encoder text.TextEncoder
	// Alphabet, when set, replaces the one built from the documents.
	Alphabet *text.Alphabet
}

func (l *Loader) fetcher() *IO.Fetcher {
	if l.Fetcher == nil {
		l.Fetcher = IO.NewFetcher()
	}
	return l.Fetcher
}

// stageError tags err with the variant and the failing stage.
func stageError(v params.Variant, stage string, err error) error {
	return errors.Wrapf(err, "%v: %s", v, stage)
}

// NewTextUnsupervised downloads (once), reads, and encodes the variant
// named by cfg and assembles its training and validation datasets. Any
// failing stage fails the whole build.
func NewTextUnsupervised(ctx context.Context, cfg params.Config, opts ...Option) (*TextUnsupervised, error) {
	cfg = cfg.WithDefaults()
	l := &Loader{}
	for _, o := range opts {
		o(l)
	}

	d, err := params.DetailsOf(cfg.Variant)
	if err != nil {
		return nil, err
	}
	if cfg.StorageRoot == "" {
		return nil, stageError(cfg.Variant, "configure", ErrNoStorageRoot)
	}
	if l.Encoder == nil && !d.HasEncoded() {
		return nil, stageError(cfg.Variant, "configure", ErrEncoderOrEncoded)
	}

	ds := &TextUnsupervised{
		Variant: cfg.Variant,
		Details: d,
		Dir:     filepath.Join(cfg.StorageRoot, cfg.Variant.String()),
		Encoder: l.Encoder,
	}

	if ds.TrainingRaw, err = l.LoadRaw(ctx, ds.Dir, cfg.Variant, d.TrainingFilePath, cfg.TrainingDocumentCount); err != nil {
		return nil, err
	}
	if ds.Alphabet = l.Alphabet; ds.Alphabet == nil {
		if ds.Alphabet, err = l.LoadAlphabet(ctx, ds.Dir, cfg.Variant, cfg.TrainingDocumentCount, cfg.EOS, cfg.EOW, cfg.PAD); err != nil {
			return nil, err
		}
	}
	if ds.Lexicon, ds.LexiconErr, err = l.LoadLexicon(ctx, ds.Dir, cfg); err != nil {
		return nil, err
	}

	dropLast := cfg.DropLastFor(d)
	if ds.TrainingDataset, err = l.loadSplit(ctx, ds.Dir, d, d.TrainingFilePath,
		cfg.TrainingBatchSize, cfg.SequenceLength, cfg.TrainingDocumentCount, dropLast); err != nil {
		return nil, err
	}
	if ds.ValidationDataset, err = l.loadSplit(ctx, ds.Dir, d, d.ValidationFilePath,
		cfg.ValidationBatchSize, cfg.SequenceLength, cfg.ValidationDocumentCount, dropLast); err != nil {
		return nil, err
	}
	glog.Infof("%v: %d training batches, %d validation batches, alphabet %d, lexicon %d",
		cfg.Variant, ds.TrainingDataset.Count(), ds.ValidationDataset.Count(), ds.Alphabet.Len(), ds.Lexicon.Len())
	return ds, nil
}

// LoadRaw returns the first documentCount documents of one split file,
// downloading the raw archive if needed.
func (l *Loader) LoadRaw(ctx context.Context, dir string, v params.Variant, split string, documentCount int) ([]string, error) {
	key := artifactKey{kind: kindRaw, dir: dir, variant: v, count: documentCount, extra: split}
	if cached, ok := l.Cache.get(key); ok {
		return cached.([]string), nil
	}
	d, err := params.DetailsOf(v)
	if err != nil {
		return nil, err
	}
	if err := l.fetcher().EnsurePresent(ctx, dir, d, false); err != nil {
		return nil, stageError(v, "download", err)
	}
	path := filepath.Join(IO.ArchiveDir(dir, d, false), split)
	docs, err := IO.ReadDocuments(path, d.Format, documentCount)
	if err != nil {
		return nil, stageError(v, "read "+split, err)
	}
	l.Cache.add(key, docs)
	return docs, nil
}

// LoadAlphabet builds the alphabet of the first documentCount training
// documents.
func (l *Loader) LoadAlphabet(ctx context.Context, dir string, v params.Variant, documentCount int, eos, eow, pad string) (*text.Alphabet, error) {
	key := artifactKey{kind: kindAlphabet, dir: dir, variant: v, count: documentCount, extra: eos + "\x00" + eow + "\x00" + pad}
	if cached, ok := l.Cache.get(key); ok {
		return cached.(*text.Alphabet), nil
	}
	d, err := params.DetailsOf(v)
	if err != nil {
		return nil, err
	}
	docs, err := l.LoadRaw(ctx, dir, v, d.TrainingFilePath, documentCount)
	if err != nil {
		return nil, err
	}
	a, err := text.BuildAlphabet(docs, eos, eow, pad)
	if err != nil {
		return nil, stageError(v, "alphabet", err)
	}
	l.Cache.add(key, a)
	return a, nil
}

// LoadLexicon builds the lexicon of the first cfg.TrainingDocumentCount
// training documents against the loader's alphabet, or the one
// LoadAlphabet builds from the same documents. Only lexicons built
// without a conversion error and from a loaded alphabet are cached.
func (l *Loader) LoadLexicon(ctx context.Context, dir string, cfg params.Config) (lex *text.Lexicon, convErr error, err error) {
	cfg = cfg.WithDefaults()
	if l.Alphabet != nil {
		return l.LoadLexiconWith(ctx, dir, cfg, l.Alphabet)
	}
	key := artifactKey{
		kind:    kindLexicon,
		dir:     dir,
		variant: cfg.Variant,
		count:   cfg.TrainingDocumentCount,
		extra:   cfg.EOS + "\x00" + cfg.EOW + "\x00" + cfg.PAD + "\x00" + strconv.Itoa(cfg.MinFrequency) + "\x00" + strconv.Itoa(cfg.SegmentLength),
	}
	if cached, ok := l.Cache.get(key); ok {
		return cached.(*text.Lexicon), nil, nil
	}
	a, err := l.LoadAlphabet(ctx, dir, cfg.Variant, cfg.TrainingDocumentCount, cfg.EOS, cfg.EOW, cfg.PAD)
	if err != nil {
		return nil, nil, err
	}
	lex, convErr, err = l.LoadLexiconWith(ctx, dir, cfg, a)
	if err == nil && convErr == nil {
		l.Cache.add(key, lex)
	}
	return lex, convErr, err
}

// LoadLexiconWith builds the lexicon of the first
// cfg.TrainingDocumentCount training documents against a. When a document
// holds a character outside a the lexicon comes back empty and convErr
// says why, unless cfg.StrictLexicon makes that fatal.
func (l *Loader) LoadLexiconWith(ctx context.Context, dir string, cfg params.Config, a *text.Alphabet) (lex *text.Lexicon, convErr error, err error) {
	cfg = cfg.WithDefaults()
	v := cfg.Variant
	d, err := params.DetailsOf(v)
	if err != nil {
		return nil, nil, err
	}
	docs, err := l.LoadRaw(ctx, dir, v, d.TrainingFilePath, cfg.TrainingDocumentCount)
	if err != nil {
		return nil, nil, err
	}

	seqs, convErr := text.ConvertDocuments(docs, a)
	if convErr != nil {
		if cfg.StrictLexicon {
			return nil, nil, stageError(v, "lexicon", convErr)
		}
		glog.Warningf("%v: lexicon built from no sequences: %v", v, convErr)
		seqs = nil
	}
	if cfg.SegmentLength > 0 {
		lex = text.BuildSegmentLexicon(seqs, a, cfg.SegmentLength, cfg.MinFrequency)
	} else {
		lex = text.BuildLexicon(seqs, cfg.MinFrequency)
	}
	return lex, convErr, nil
}

// loadSplit encodes (or reads pre-encoded) documents of one split and
// assembles them.
func (l *Loader) loadSplit(ctx context.Context, dir string, d params.VariantDetails, split string,
	batchSize, sequenceLength, documentCount int, dropLast bool) (*LanguageModelDataset, error) {
	var docs [][]int
	if l.Encoder != nil {
		raw, err := l.LoadRaw(ctx, dir, d.Variant, split, documentCount)
		if err != nil {
			return nil, err
		}
		docs = make([][]int, len(raw))
		for i, s := range raw {
			docs[i] = text.EncodeIDs(l.Encoder, s)
		}
	} else {
		if err := l.fetcher().EnsurePresent(ctx, dir, d, true); err != nil {
			return nil, stageError(d.Variant, "download encoded", err)
		}
		var err error
		docs, err = IO.ReadEncodedDocuments(filepath.Join(IO.ArchiveDir(dir, d, true), split), documentCount)
		if err != nil {
			return nil, stageError(d.Variant, "read encoded "+split, err)
		}
	}
	ds, err := NewLanguageModelDataset(docs, batchSize, sequenceLength, dropLast)
	if err != nil {
		return nil, stageError(d.Variant, "assemble "+split, err)
	}
	if glog.V(1) {
		glog.Infof("%v: %s: %d documents, %d tokens, %d windows", d.Variant, split, len(docs), ds.TokenCount(), ds.WindowCount())
	}
	return ds, nil
}
