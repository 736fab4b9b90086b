package IO

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/manningwu07/textdata/params"
	"github.com/manningwu07/textdata/utils"
)

// ErrNoEncodedArchive is returned when an encoded download is requested
// for a variant that does not publish one.
var ErrNoEncodedArchive = errors.New("variant has no encoded archive")

// Getter opens a remote resource.
type Getter interface {
	Get(ctx context.Context, url string) (io.ReadCloser, error)
}

// HTTPGetter fetches with a plain GET.
type HTTPGetter struct {
	Client *http.Client // nil means http.DefaultClient
}

func (g HTTPGetter) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c := g.Client
	if c == nil {
		c = http.DefaultClient
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Errorf("GET %s: %s", url, resp.Status)
	}
	return resp.Body, nil
}

// Fetcher downloads and extracts variant archives into a local directory.
type Fetcher struct {
	HTTP Getter
	// S3 is used for S3-hosted locations when PreferS3 is set.
	S3       Getter
	PreferS3 bool
}

// NewFetcher returns a Fetcher using plain HTTP for everything.
func NewFetcher() *Fetcher {
	return &Fetcher{HTTP: HTTPGetter{}}
}

func (f *Fetcher) getterFor(url string) Getter {
	if f.PreferS3 && f.S3 != nil {
		if _, _, _, ok := ParseS3URL(url); ok {
			return f.S3
		}
	}
	if f.HTTP == nil {
		return HTTPGetter{}
	}
	return f.HTTP
}

// ArchiveDir is where the (encoded) archive of d extracts to under dir.
func ArchiveDir(dir string, d params.VariantDetails, encoded bool) string {
	if encoded {
		return filepath.Join(dir, d.EncodedFileName)
	}
	return filepath.Join(dir, d.ArchiveFileName)
}

// EnsurePresent downloads and extracts the archive of d into dir unless
// its directory already exists and is non-empty.
func (f *Fetcher) EnsurePresent(ctx context.Context, dir string, d params.VariantDetails, wantEncoded bool) error {
	if wantEncoded && !d.HasEncoded() {
		return errors.Wrapf(ErrNoEncodedArchive, "%v", d.Variant)
	}
	target := ArchiveDir(dir, d, wantEncoded)
	if !utils.DirEmpty(target) {
		if glog.V(1) {
			glog.Infof("%v: using cached %s", d.Variant, target)
		}
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "%v: create %s", d.Variant, dir)
	}

	url := d.ArchiveURL(wantEncoded)
	glog.Infof("%v: downloading %s", d.Variant, url)
	archive, err := f.download(ctx, url, dir)
	if err != nil {
		return errors.Wrapf(err, "%v: download", d.Variant)
	}
	defer os.Remove(archive)

	glog.Infof("%v: extracting %s", d.Variant, archive)
	if err := Extract(archive, dir); err != nil {
		return errors.Wrapf(err, "%v: extract", d.Variant)
	}
	if utils.DirEmpty(target) {
		return errors.Errorf("%v: archive %s did not produce %s", d.Variant, filepath.Base(archive), target)
	}
	return nil
}

// download saves url into dir and returns the file path.
func (f *Fetcher) download(ctx context.Context, url, dir string) (string, error) {
	body, err := f.getterFor(url).Get(ctx, url)
	if err != nil {
		return "", err
	}
	defer body.Close()

	dst := filepath.Join(dir, filepath.Base(url))
	tmp, err := os.CreateTemp(dir, filepath.Base(url)+".part-")
	if err != nil {
		return "", err
	}
	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	glog.Infof("downloaded %s (%.1f MB)", dst, float64(n)/float64(1<<20))
	return dst, nil
}

// Extract unpacks a .tgz/.tar.gz or .zip archive into dir.
func Extract(archive, dir string) error {
	switch name := strings.ToLower(archive); {
	case strings.HasSuffix(name, ".tgz"), strings.HasSuffix(name, ".tar.gz"):
		return extractTarGz(archive, dir)
	case strings.HasSuffix(name, ".zip"):
		return extractZip(archive, dir)
	default:
		return errors.Errorf("unsupported archive %q", archive)
	}
}

// safeJoin refuses entries that would land outside dir.
func safeJoin(dir, name string) (string, error) {
	p := filepath.Join(dir, name)
	rel, err := filepath.Rel(dir, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("archive entry %q escapes %s", name, dir)
	}
	return p, nil
}

func extractTarGz(archive, dir string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		p, err := safeJoin(dir, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(p, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(p, tr); err != nil {
				return err
			}
		default:
			glog.Warningf("skipping %s (tar type %c)", hdr.Name, hdr.Typeflag)
		}
	}
}

func extractZip(archive, dir string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer zr.Close()
	for _, zf := range zr.File {
		p, err := safeJoin(dir, zf.Name)
		if err != nil {
			return err
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(p, 0o755); err != nil {
				return err
			}
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return err
		}
		err = writeFile(p, rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeFile(p string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	out, err := os.Create(p)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
