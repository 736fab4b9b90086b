package params

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Variant names one of the unsupervised text corpora.
type Variant int

const (
	WikiText103 Variant = iota
	WikiText2
	WordSeg
)

// ErrUnknownVariant is returned for a Variant outside the table below.
var ErrUnknownVariant = errors.New("unknown corpus variant")

var variantNames = [...]string{
	WikiText103: "WikiText103",
	WikiText2:   "WikiText2",
	WordSeg:     "WordSeg",
}

// Variants lists every known corpus variant.
func Variants() []Variant { return []Variant{WikiText103, WikiText2, WordSeg} }

func (v Variant) String() string {
	if v < 0 || int(v) >= len(variantNames) {
		return "Variant(" + strconv.Itoa(int(v)) + ")"
	}
	return variantNames[v]
}

// ParseVariant accepts the String() form, case-insensitively.
func ParseVariant(s string) (Variant, error) {
	for i, name := range variantNames {
		if strings.EqualFold(name, s) {
			return Variant(i), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownVariant, "%q", s)
}

// Format is the raw layout of a corpus file.
type Format int

const (
	// FormatCSV is one quoted blob with documents separated by `"\n"`.
	FormatCSV Format = iota
	// FormatTXT has one document per line.
	FormatTXT
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatTXT:
		return "txt"
	}
	return "Format(" + strconv.Itoa(int(f)) + ")"
}

// VariantDetails is where a variant lives and how its files are laid out.
type VariantDetails struct {
	Variant            Variant
	Location           string // remote root, always ends in "/"
	ArchiveFileName    string
	ArchiveExtension   string
	TrainingFilePath   string // relative to the extracted archive directory
	ValidationFilePath string
	EncodedFileName    string // "" when no pre-encoded archive is published
	Format             Format
	// DropLast discards a final under-full batch.
	DropLast bool
}

// HasEncoded reports whether a pre-encoded archive exists for the variant.
func (d VariantDetails) HasEncoded() bool { return d.EncodedFileName != "" }

// ArchiveURL is the download URL of the raw (or encoded) archive.
func (d VariantDetails) ArchiveURL(encoded bool) string {
	name := d.ArchiveFileName
	if encoded {
		name = d.EncodedFileName
	}
	return d.Location + name + "." + d.ArchiveExtension
}

var details = [...]VariantDetails{
	WikiText103: {
		Variant:            WikiText103,
		Location:           "https://s3.amazonaws.com/fast-ai-nlp/",
		ArchiveFileName:    "wikitext-103",
		ArchiveExtension:   "tgz",
		TrainingFilePath:   "train.csv",
		ValidationFilePath: "test.csv",
		Format:             FormatCSV,
	},
	WikiText2: {
		Variant:            WikiText2,
		Location:           "https://storage.googleapis.com/s4tf-hosted-binaries/datasets/WikiText2/",
		ArchiveFileName:    "wikitext-2",
		ArchiveExtension:   "tgz",
		TrainingFilePath:   "train.csv",
		ValidationFilePath: "test.csv",
		EncodedFileName:    "wikitext-2-encoded",
		Format:             FormatCSV,
	},
	WordSeg: {
		Variant:            WordSeg,
		Location:           "https://s3.eu-west-2.amazonaws.com/k-kawakami/",
		ArchiveFileName:    "seg",
		ArchiveExtension:   "zip",
		TrainingFilePath:   "br/br-text/tr.txt",
		ValidationFilePath: "br/br-text/va.txt",
		Format:             FormatTXT,
		DropLast:           true,
	},
}

// DetailsOf returns a copy of the variant's details.
func DetailsOf(v Variant) (VariantDetails, error) {
	if v < 0 || int(v) >= len(details) {
		return VariantDetails{}, errors.Wrapf(ErrUnknownVariant, "%d", int(v))
	}
	return details[v], nil
}
