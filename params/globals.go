package params

// Reserved alphabet symbols appended after the observed characters.
const (
	EOS = "</s>"
	EOW = "</w>"
	PAD = "</pad>"
)

// Config drives one TextUnsupervised build.
type Config struct {
	Variant Variant
	// StorageRoot holds one directory per variant. Nothing falls back to
	// os.TempDir(); the command picks the root explicitly.
	StorageRoot string

	TrainingBatchSize       int
	ValidationBatchSize     int
	SequenceLength          int // tokens per window
	TrainingDocumentCount   int
	ValidationDocumentCount int

	// DropLast overrides the variant's truncation policy when non-nil.
	DropLast *bool

	// Lexicon parameters
	MinFrequency int
	// SegmentLength > 0 builds a segmental lexicon of substrings up to
	// this many characters instead of whole documents.
	SegmentLength int
	// StrictLexicon fails the build on an unconvertible document instead
	// of falling back to an empty lexicon.
	StrictLexicon bool

	EOS, EOW, PAD string
}

var DefaultConfig = Config{
	Variant: WikiText2,

	TrainingBatchSize:       8,
	ValidationBatchSize:     4,
	SequenceLength:          1024,
	TrainingDocumentCount:   4,
	ValidationDocumentCount: 4,

	MinFrequency: 3,

	EOS: EOS,
	EOW: EOW,
	PAD: PAD,
}

// DropLastFor resolves the truncation policy for d.
func (c Config) DropLastFor(d VariantDetails) bool {
	if c.DropLast != nil {
		return *c.DropLast
	}
	return d.DropLast
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	if c.TrainingBatchSize <= 0 {
		c.TrainingBatchSize = DefaultConfig.TrainingBatchSize
	}
	if c.ValidationBatchSize <= 0 {
		c.ValidationBatchSize = DefaultConfig.ValidationBatchSize
	}
	if c.SequenceLength <= 0 {
		c.SequenceLength = DefaultConfig.SequenceLength
	}
	if c.TrainingDocumentCount <= 0 {
		c.TrainingDocumentCount = DefaultConfig.TrainingDocumentCount
	}
	if c.ValidationDocumentCount <= 0 {
		c.ValidationDocumentCount = DefaultConfig.ValidationDocumentCount
	}
	if c.MinFrequency <= 0 {
		c.MinFrequency = DefaultConfig.MinFrequency
	}
	if c.EOS == "" {
		c.EOS = EOS
	}
	if c.EOW == "" {
		c.EOW = EOW
	}
	if c.PAD == "" {
		c.PAD = PAD
	}
	return c
}
