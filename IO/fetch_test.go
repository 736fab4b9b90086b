package IO

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"

	"github.com/manningwu07/textdata/params"
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

func makeZip(t *testing.T, files map[string]string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(w, body)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// archiveServer serves archives by path and counts requests.
func archiveServer(t *testing.T, archives map[string][]byte) (*httptest.Server, *int32) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		body, ok := archives[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestEnsurePresentIdempotent(t *testing.T) {
	tgz := makeTgz(t, map[string]string{
		"wikitext-2/train.csv": "\"a\"\n\"b\"\n",
		"wikitext-2/test.csv":  "\"c\"\n",
	})
	srv, hits := archiveServer(t, map[string][]byte{"/wikitext-2.tgz": tgz})

	d, _ := params.DetailsOf(params.WikiText2)
	d.Location = srv.URL + "/"
	dir := t.TempDir()
	f := NewFetcher()

	for i := 0; i < 2; i++ {
		if err := f.EnsurePresent(context.Background(), dir, d, false); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Errorf("expected 1 download; got %d", n)
	}
	if b, err := os.ReadFile(filepath.Join(dir, "wikitext-2", "train.csv")); err != nil || string(b) != "\"a\"\n\"b\"\n" {
		t.Errorf("unexpected extracted content %q, %v", b, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "wikitext-2.tgz")); !os.IsNotExist(err) {
		t.Errorf("expected archive to be removed; stat err = %v", err)
	}
}

func TestEnsurePresentZip(t *testing.T) {
	zipped := makeZip(t, map[string]string{"seg/br/br-text/tr.txt": "a b\nc\n"})
	srv, _ := archiveServer(t, map[string][]byte{"/seg.zip": zipped})

	d, _ := params.DetailsOf(params.WordSeg)
	d.Location = srv.URL + "/"
	dir := t.TempDir()
	if err := NewFetcher().EnsurePresent(context.Background(), dir, d, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "seg", "br", "br-text", "tr.txt")); err != nil {
		t.Errorf("expected extracted file: %v", err)
	}
}

func TestEnsurePresentErrors(t *testing.T) {
	srv, hits := archiveServer(t, nil)
	dir := t.TempDir()

	d, _ := params.DetailsOf(params.WikiText103)
	d.Location = srv.URL + "/"
	err := NewFetcher().EnsurePresent(context.Background(), dir, d, true)
	if errors.Cause(err) != ErrNoEncodedArchive {
		t.Errorf("expected ErrNoEncodedArchive; got %v", err)
	}
	if n := atomic.LoadInt32(hits); n != 0 {
		t.Errorf("precondition failure still hit the network %d times", n)
	}

	err = NewFetcher().EnsurePresent(context.Background(), dir, d, false)
	if err == nil || !strings.Contains(err.Error(), "WikiText103") {
		t.Errorf("expected a download error naming the variant; got %v", err)
	}

	// An archive without the expected top-level directory.
	tgz := makeTgz(t, map[string]string{"other/train.csv": "x"})
	srv2, _ := archiveServer(t, map[string][]byte{"/wikitext-103.tgz": tgz})
	d.Location = srv2.URL + "/"
	if err := NewFetcher().EnsurePresent(context.Background(), dir, d, false); err == nil {
		t.Error("expected error for archive missing wikitext-103/")
	}
}

func TestExtractRejectsEscapes(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "evil.tgz")
	os.WriteFile(p, makeTgz(t, map[string]string{"../evil.txt": "x"}), 0o644)
	if err := Extract(p, filepath.Join(dir, "out")); err == nil {
		t.Error("expected error for entry escaping the destination")
	}
	if err := Extract(filepath.Join(dir, "x.rar"), dir); err == nil || !strings.Contains(err.Error(), "unsupported archive") {
		t.Errorf("expected error for unsupported archive; got %v", err)
	}
}

func TestParseS3URL(t *testing.T) {
	for _, i := range []struct {
		URL, Region, Bucket, Key string
		OK                       bool
	}{
		{"https://s3.amazonaws.com/fast-ai-nlp/wikitext-103.tgz", "us-east-1", "fast-ai-nlp", "wikitext-103.tgz", true},
		{"https://s3.eu-west-2.amazonaws.com/k-kawakami/seg.zip", "eu-west-2", "k-kawakami", "seg.zip", true},
		{"https://s3-eu-west-1.amazonaws.com/b/k", "eu-west-1", "b", "k", true},
		{"https://my.bucket.s3.amazonaws.com/a/b.tgz", "us-east-1", "my.bucket", "a/b.tgz", true},
		{"https://bucket.s3.us-west-2.amazonaws.com/k", "us-west-2", "bucket", "k", true},
		{"https://storage.googleapis.com/s4tf-hosted-binaries/x.tgz", "", "", "", false},
		{"https://s3.amazonaws.com/only-bucket", "", "", "", false},
	} {
		region, bucket, key, ok := ParseS3URL(i.URL)
		if ok != i.OK || region != i.Region || bucket != i.Bucket || key != i.Key {
			t.Errorf("ParseS3URL(%q) = %q, %q, %q, %v", i.URL, region, bucket, key, ok)
		}
	}
}

type fakeS3 struct {
	region string
	gets   []string
}

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error) {
	f.gets = append(f.gets, aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key))
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.region))}, nil
}

func TestS3Getter(t *testing.T) {
	clients := map[string]*fakeS3{}
	g := &S3Getter{NewClient: func(region string) (S3Client, error) {
		c := &fakeS3{region: region}
		clients[region] = c
		return c, nil
	}}
	for _, u := range []string{
		"https://s3.eu-west-2.amazonaws.com/k-kawakami/seg.zip",
		"https://s3.eu-west-2.amazonaws.com/k-kawakami/other.zip",
	} {
		rc, err := g.Get(context.Background(), u)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		if string(b) != "eu-west-2" {
			t.Errorf("expected body from eu-west-2 client; got %q", b)
		}
	}
	if len(clients) != 1 || len(clients["eu-west-2"].gets) != 2 {
		t.Errorf("expected one cached client with 2 gets; got %v", clients)
	}
	if _, err := g.Get(context.Background(), "https://example.com/x"); err == nil {
		t.Error("expected error for non-S3 URL")
	}

	f := &Fetcher{HTTP: HTTPGetter{}, S3: g, PreferS3: true}
	if f.getterFor("https://s3.amazonaws.com/fast-ai-nlp/x.tgz") != Getter(g) {
		t.Error("expected S3 getter for S3 URL")
	}
	if _, ok := f.getterFor("https://storage.googleapis.com/x.tgz").(HTTPGetter); !ok {
		t.Error("expected HTTP getter for non-S3 URL")
	}
}
