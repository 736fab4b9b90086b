package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/manningwu07/textdata/IO"
	"github.com/manningwu07/textdata/dataset"
	"github.com/manningwu07/textdata/params"
	"github.com/manningwu07/textdata/text"
	"github.com/manningwu07/textdata/utils"
)

var (
	variantFlag   = flag.String("variant", "", "WikiText103, WikiText2 or WordSeg (default $TEXTDATA_VARIANT or WikiText2)")
	rootFlag      = flag.String("root", "", "storage root (default $TEXTDATA_ROOT)")
	trainDocs     = flag.Int("train-docs", params.DefaultConfig.TrainingDocumentCount, "training documents to read")
	validDocs     = flag.Int("valid-docs", params.DefaultConfig.ValidationDocumentCount, "validation documents to read")
	trainBatch    = flag.Int("train-batch", params.DefaultConfig.TrainingBatchSize, "training batch size")
	validBatch    = flag.Int("valid-batch", params.DefaultConfig.ValidationBatchSize, "validation batch size")
	seqLen        = flag.Int("seq-len", params.DefaultConfig.SequenceLength, "tokens per window")
	minFreq       = flag.Int("min-freq", params.DefaultConfig.MinFrequency, "lexicon frequency cutoff")
	segLen        = flag.Int("seg-len", 0, "build a segmental lexicon of substrings up to this length")
	encoderFlag   = flag.String("encoder", "lexicon", "toy, lexicon, bpe, vocab or none (use the encoded archive)")
	bpeFlag       = flag.String("bpe", "", "tokenizer.json path, or a hub model name such as gpt2, for -encoder=bpe")
	vocabFlag     = flag.String("vocab", "", "vocab.json written by -export, for -encoder=vocab")
	s3Flag        = flag.Bool("s3", false, "download S3-hosted archives with the AWS SDK")
	exportFlag    = flag.String("export", "", "write vocab.json, encoded documents and ID shards under this directory")
	maxShardBytes = flag.Int64("shard-bytes", 1<<30, "maximum bytes per exported ID shard")
	forceFlag     = flag.Bool("force", false, "re-export ID shards that already exist")
	cliFlag       = flag.Bool("cli", false, "interactive encoder shell")
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(errors.Cause(err)) {
		glog.Warningf("load .env: %v", err)
	}
	flag.Parse()
	defer glog.Flush()

	cfg, err := configFromFlags()
	if err != nil {
		glog.Fatal(err)
	}
	ctx := context.Background()

	f := IO.NewFetcher()
	if *s3Flag {
		f.S3 = &IO.S3Getter{}
		f.PreferS3 = true
	}

	enc, err := buildEncoder(ctx, cfg, f)
	if err != nil {
		glog.Fatal(err)
	}

	if *cliFlag {
		if enc == nil {
			glog.Fatal("-cli needs an encoder")
		}
		EncoderCLI(os.Stdin, os.Stdout, enc)
		return
	}

	opts := []dataset.Option{dataset.WithFetcher(f)}
	if enc != nil {
		opts = append(opts, dataset.WithEncoder(enc))
	}
	ds, err := dataset.NewTextUnsupervised(ctx, cfg, opts...)
	if err != nil {
		glog.Fatal(err)
	}
	fmt.Printf("%v: alphabet %d, lexicon %d\n", ds.Variant, ds.Alphabet.Len(), ds.Lexicon.Len())
	fmt.Printf("training:   %d tokens, %d windows, %d batches\n",
		ds.TrainingDataset.TokenCount(), ds.TrainingDataset.WindowCount(), ds.TrainingDataset.Count())
	fmt.Printf("validation: %d tokens, %d windows, %d batches\n",
		ds.ValidationDataset.TokenCount(), ds.ValidationDataset.WindowCount(), ds.ValidationDataset.Count())

	if *exportFlag != "" {
		if err := export(*exportFlag, ds, enc, *forceFlag); err != nil {
			glog.Fatal(err)
		}
		fmt.Println("Export complete:", *exportFlag)
	}
}

func configFromFlags() (params.Config, error) {
	cfg := params.DefaultConfig
	name := *variantFlag
	if name == "" {
		name = os.Getenv("TEXTDATA_VARIANT")
	}
	if name != "" {
		v, err := params.ParseVariant(name)
		if err != nil {
			return cfg, err
		}
		cfg.Variant = v
	}
	cfg.StorageRoot = *rootFlag
	if cfg.StorageRoot == "" {
		cfg.StorageRoot = os.Getenv("TEXTDATA_ROOT")
	}
	if cfg.StorageRoot == "" {
		return cfg, errors.New("no storage root: pass -root or set TEXTDATA_ROOT")
	}
	cfg.TrainingDocumentCount = *trainDocs
	cfg.ValidationDocumentCount = *validDocs
	cfg.TrainingBatchSize = *trainBatch
	cfg.ValidationBatchSize = *validBatch
	cfg.SequenceLength = *seqLen
	cfg.MinFrequency = *minFreq
	cfg.SegmentLength = *segLen
	return cfg.WithDefaults(), nil
}

// buildEncoder returns nil for -encoder=none.
func buildEncoder(ctx context.Context, cfg params.Config, f *IO.Fetcher) (text.TextEncoder, error) {
	switch *encoderFlag {
	case "none":
		return nil, nil
	case "toy":
		return text.NewToyEncoder(), nil
	case "vocab":
		if *vocabFlag == "" {
			return nil, errors.New("-encoder=vocab needs -vocab")
		}
		d, err := IO.ImportVocabJSON(*vocabFlag)
		if err != nil {
			return nil, err
		}
		return text.NewEncoder(d), nil
	case "bpe":
		if *bpeFlag == "" {
			return nil, errors.New("-encoder=bpe needs -bpe")
		}
		if utils.FileExists(*bpeFlag) {
			return IO.LoadBPE(*bpeFlag)
		}
		return IO.LoadPretrainedBPE(*bpeFlag)
	case "lexicon":
		l := &dataset.Loader{Fetcher: f}
		dir := filepath.Join(cfg.StorageRoot, cfg.Variant.String())
		a, err := l.LoadAlphabet(ctx, dir, cfg.Variant, cfg.TrainingDocumentCount, cfg.EOS, cfg.EOW, cfg.PAD)
		if err != nil {
			return nil, err
		}
		lex, convErr, err := l.LoadLexicon(ctx, dir, cfg)
		if err != nil {
			return nil, err
		}
		if convErr != nil {
			glog.Warningf("lexicon encoder has an empty vocabulary: %v", convErr)
		}
		return text.NewLexiconEncoder(lex, a)
	}
	return nil, errors.Errorf("unknown encoder %q", *encoderFlag)
}

// shardMissing is true if no shard has been exported for prefix yet.
func shardMissing(prefix string) bool {
	return !utils.FileExists(prefix + "-000.bin")
}

// export writes the vocabulary, the encoded documents and the ID shards of
// both splits. Existing shards are kept unless force is set.
func export(dir string, ds *dataset.TextUnsupervised, enc text.TextEncoder, force bool) error {
	if enc != nil {
		if err := IO.ExportVocabJSON(filepath.Join(dir, "vocab.json"), enc.Dictionary()); err != nil {
			return err
		}
	}
	for _, split := range []struct {
		name string
		ds   *dataset.LanguageModelDataset
		path string
	}{
		{"train", ds.TrainingDataset, ds.Details.TrainingFilePath},
		{"valid", ds.ValidationDataset, ds.Details.ValidationFilePath},
	} {
		docs := splitDocuments(split.ds)
		if err := IO.WriteEncodedDocuments(filepath.Join(dir, "encoded", split.path), docs); err != nil {
			return errors.Wrapf(err, "export %s", split.name)
		}
		prefix := filepath.Join(dir, "ids", split.name)
		if !force && !shardMissing(prefix) {
			glog.Infof("%s: using cached shards %s", split.name, prefix)
			continue
		}
		n, err := IO.ExportTokenIDsBinary(docs, prefix, *maxShardBytes)
		if err != nil {
			return errors.Wrapf(err, "export %s", split.name)
		}
		glog.Infof("%s: %d documents in %d shards", split.name, len(docs), n)
	}
	return nil
}

// splitDocuments recovers the per-document ids from the dataset stream.
func splitDocuments(ds *dataset.LanguageModelDataset) [][]int {
	stream := ds.Stream()
	lengths := ds.Lengths()
	docs := make([][]int, len(lengths))
	off := 0
	for i, n := range lengths {
		docs[i] = make([]int, n)
		for j := 0; j < n; j++ {
			docs[i][j] = int(stream[off+j])
		}
		off += n
	}
	return docs
}
