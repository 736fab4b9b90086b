package dataset

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/manningwu07/textdata/IO"
	"github.com/manningwu07/textdata/params"
	"github.com/manningwu07/textdata/text"
)

func makeTgz(t *testing.T, files map[string]string) []byte {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// mapGetter serves archives by URL base name.
type mapGetter struct {
	mu       sync.Mutex
	archives map[string][]byte
	gets     []string
}

func (g *mapGetter) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	name := path.Base(url)
	g.gets = append(g.gets, name)
	b, ok := g.archives[name]
	if !ok {
		return nil, errors.Errorf("GET %s: 404 Not Found", url)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func wikiText2Getter(t *testing.T) *mapGetter {
	return &mapGetter{archives: map[string][]byte{
		"wikitext-2.tgz": makeTgz(t, map[string]string{
			"wikitext-2/train.csv": "\"a b\"\n\"a b\"\n\"a b\"\n\"c\"\n\"c c c\"\n",
			"wikitext-2/test.csv":  "\"a b c\"\n",
		}),
		"wikitext-2-encoded.tgz": makeTgz(t, map[string]string{
			"wikitext-2-encoded/train.csv/doc_0.txt": "5\n6\n7\n",
			"wikitext-2-encoded/train.csv/doc_1.txt": "8\n9\n",
			"wikitext-2-encoded/test.csv/doc_0.txt":  "1\n2\n3\n",
		}),
	}}
}

func TestTextUnsupervisedWithEncoder(t *testing.T) {
	g := wikiText2Getter(t)
	cfg := params.Config{
		Variant:             params.WikiText2,
		StorageRoot:         t.TempDir(),
		TrainingBatchSize:   2,
		ValidationBatchSize: 4,
		SequenceLength:      2,
	}
	ds, err := NewTextUnsupervised(context.Background(), cfg,
		WithEncoder(text.NewToyEncoder()), WithFetcher(&IO.Fetcher{HTTP: g}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ds.TrainingRaw) != 4 || ds.TrainingRaw[3] != "c" {
		t.Errorf("expected the first 4 training documents; got %q", ds.TrainingRaw)
	}
	// ' ', a, b, c plus three reserved symbols.
	if ds.Alphabet.Len() != 7 {
		t.Errorf("expected alphabet of 7; got %d", ds.Alphabet.Len())
	}
	if ds.Lexicon.Len() != 1 || ds.LexiconErr != nil {
		t.Fatalf("expected one lexicon entry; got %d (%v)", ds.Lexicon.Len(), ds.LexiconErr)
	}
	if e, _ := ds.Lexicon.Entry(0); e.String(ds.Alphabet) != "a b"+params.EOS {
		t.Errorf("unexpected lexicon entry %q", e.String(ds.Alphabet))
	}

	// Stream 1 2 1 2 1 2 3: three windows of two, batches of two, last one short.
	if ds.TrainingDataset.TokenCount() != 7 || ds.TrainingDataset.Count() != 2 {
		t.Errorf("unexpected training dataset: %d tokens, %d batches",
			ds.TrainingDataset.TokenCount(), ds.TrainingDataset.Count())
	}
	if rows := ds.TrainingDataset.Batch(1).Rows(); rows != 1 {
		t.Errorf("expected a short final batch; got %d rows", rows)
	}
	if ds.ValidationDataset.Count() != 1 {
		t.Errorf("expected one validation batch; got %d", ds.ValidationDataset.Count())
	}
	if len(g.gets) != 1 || g.gets[0] != "wikitext-2.tgz" {
		t.Errorf("expected only the raw archive to be fetched; got %v", g.gets)
	}
}

func TestTextUnsupervisedEncodedArchive(t *testing.T) {
	g := wikiText2Getter(t)
	cfg := params.Config{
		Variant:        params.WikiText2,
		StorageRoot:    t.TempDir(),
		SequenceLength: 1,
	}
	ds, err := NewTextUnsupervised(context.Background(), cfg, WithFetcher(&IO.Fetcher{HTTP: g}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Encoder != nil {
		t.Error("expected no encoder")
	}
	if !equalInts(ds.TrainingDataset.Lengths(), []int{3, 2}) {
		t.Errorf("unexpected encoded lengths %v", ds.TrainingDataset.Lengths())
	}
	in, tgt := ds.TrainingDataset.Batch(0).Row(0)
	if in[0] != 5 || tgt[0] != 6 {
		t.Errorf("unexpected first window %v -> %v", in, tgt)
	}
	if len(g.gets) != 2 {
		t.Errorf("expected raw and encoded archives; got %v", g.gets)
	}
}

func TestTextUnsupervisedPreconditions(t *testing.T) {
	g := wikiText2Getter(t)
	f := &IO.Fetcher{HTTP: g}

	_, err := NewTextUnsupervised(context.Background(),
		params.Config{Variant: params.WikiText103, StorageRoot: t.TempDir()}, WithFetcher(f))
	if errors.Cause(err) != ErrEncoderOrEncoded {
		t.Errorf("expected ErrEncoderOrEncoded; got %v", err)
	}
	_, err = NewTextUnsupervised(context.Background(), params.Config{Variant: params.WikiText2}, WithFetcher(f))
	if errors.Cause(err) != ErrNoStorageRoot {
		t.Errorf("expected ErrNoStorageRoot; got %v", err)
	}
	_, err = NewTextUnsupervised(context.Background(),
		params.Config{Variant: params.Variant(9), StorageRoot: t.TempDir()}, WithFetcher(f))
	if errors.Cause(err) != params.ErrUnknownVariant {
		t.Errorf("expected ErrUnknownVariant; got %v", err)
	}
	if len(g.gets) != 0 {
		t.Errorf("precondition failures fetched %v", g.gets)
	}

	// WordSeg is not served, so the download stage fails and says so.
	_, err = NewTextUnsupervised(context.Background(),
		params.Config{Variant: params.WordSeg, StorageRoot: t.TempDir()},
		WithFetcher(f), WithEncoder(text.NewToyEncoder()))
	if err == nil || !strings.Contains(err.Error(), "WordSeg: download") {
		t.Errorf("expected a WordSeg download error; got %v", err)
	}
}

func TestTextUnsupervisedCache(t *testing.T) {
	g := wikiText2Getter(t)
	cache, err := NewArtifactCache(0)
	if err != nil {
		t.Fatal(err)
	}
	cfg := params.Config{Variant: params.WikiText2, StorageRoot: t.TempDir(), SequenceLength: 2}
	opts := []Option{WithEncoder(text.NewToyEncoder()), WithFetcher(&IO.Fetcher{HTTP: g}), WithCache(cache)}

	first, err := NewTextUnsupervised(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n := cache.Len()
	if n == 0 {
		t.Fatal("expected cached artifacts")
	}
	second, err := NewTextUnsupervised(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Alphabet != second.Alphabet || first.Lexicon != second.Lexicon {
		t.Error("expected the second build to reuse cached artifacts")
	}
	if cache.Len() != n || len(g.gets) != 1 {
		t.Errorf("second build grew the cache to %d or fetched again: %v", cache.Len(), g.gets)
	}

	// A different minimum frequency is a different lexicon.
	cfg.MinFrequency = 1
	third, err := NewTextUnsupervised(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third.Alphabet != first.Alphabet || third.Lexicon == first.Lexicon || third.Lexicon.Len() != 2 {
		t.Errorf("unexpected reuse with MinFrequency=1: lexicon len %d", third.Lexicon.Len())
	}

	cache.Purge()
	if cache.Len() != 0 {
		t.Errorf("expected empty cache after Purge; got %d", cache.Len())
	}
	var nilCache *ArtifactCache
	nilCache.Purge()
	if nilCache.Len() != 0 {
		t.Error("expected nil cache to be empty")
	}
}

func TestLoadLexiconSegments(t *testing.T) {
	l := &Loader{Fetcher: &IO.Fetcher{HTTP: wikiText2Getter(t)}}
	cfg := params.Config{Variant: params.WikiText2, SegmentLength: 1, MinFrequency: 4}
	lex, convErr, err := l.LoadLexicon(context.Background(), t.TempDir(), cfg)
	if err != nil || convErr != nil {
		t.Fatalf("unexpected error: %v, %v", err, convErr)
	}
	// a, ' ' and b are each seen 3 times; c once.
	if lex.Len() != 0 {
		t.Errorf("expected no segment seen 4 times; got %d", lex.Len())
	}
	cfg.MinFrequency = 3
	lex, _, _ = l.LoadLexicon(context.Background(), t.TempDir(), cfg)
	if lex.Len() != 3 {
		t.Errorf("expected a, ' ', b; got %d entries", lex.Len())
	}
}

func TestLoadLexiconUnknownCharacter(t *testing.T) {
	cache, _ := NewArtifactCache(0)
	l := &Loader{Fetcher: &IO.Fetcher{HTTP: wikiText2Getter(t)}, Cache: cache}
	dir := t.TempDir()
	// The training documents also hold ' ' and b.
	a, err := text.BuildAlphabet([]string{"ac"}, params.EOS, params.EOW, params.PAD)
	if err != nil {
		t.Fatal(err)
	}
	cfg := params.Config{Variant: params.WikiText2, MinFrequency: 1}

	lex, convErr, err := l.LoadLexiconWith(context.Background(), dir, cfg, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uc, ok := convErr.(*text.UnknownCharacterError); !ok || uc.Char != ' ' || uc.Document != 0 {
		t.Errorf("expected unknown ' ' in document 0; got %v", convErr)
	}
	if lex.Len() != 0 {
		t.Errorf("expected an empty lexicon; got %d entries", lex.Len())
	}
	n := cache.Len()

	l.Alphabet = a
	if lex, convErr, _ = l.LoadLexicon(context.Background(), dir, cfg); convErr == nil || lex.Len() != 0 {
		t.Errorf("expected the loader alphabet to be used; got %d entries, %v", lex.Len(), convErr)
	}
	if cache.Len() != n {
		t.Errorf("a failed conversion was cached: %d -> %d", n, cache.Len())
	}

	cfg.StrictLexicon = true
	_, _, err = l.LoadLexiconWith(context.Background(), dir, cfg, a)
	if _, ok := errors.Cause(err).(*text.UnknownCharacterError); !ok || !strings.Contains(err.Error(), "WikiText2: lexicon") {
		t.Errorf("expected a lexicon stage error; got %v", err)
	}
}

func TestTextUnsupervisedLexiconFallback(t *testing.T) {
	g := wikiText2Getter(t)
	a, _ := text.BuildAlphabet([]string{"ab"}, params.EOS, params.EOW, params.PAD)
	cfg := params.Config{Variant: params.WikiText2, StorageRoot: t.TempDir(), SequenceLength: 2}
	opts := []Option{WithEncoder(text.NewToyEncoder()), WithFetcher(&IO.Fetcher{HTTP: g}), WithAlphabet(a)}

	ds, err := NewTextUnsupervised(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Alphabet != a || ds.LexiconErr == nil || ds.Lexicon.Len() != 0 {
		t.Errorf("expected the given alphabet and an empty lexicon; got lexicon %d, %v", ds.Lexicon.Len(), ds.LexiconErr)
	}
	if ds.TrainingDataset.TokenCount() != 7 {
		t.Errorf("expected the datasets to be built anyway; got %d tokens", ds.TrainingDataset.TokenCount())
	}

	cfg.StrictLexicon = true
	if _, err := NewTextUnsupervised(context.Background(), cfg, opts...); err == nil {
		t.Error("expected StrictLexicon to fail the build")
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
