package IO

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/yargevad/filepathx"

	"github.com/manningwu07/textdata/params"
)

// csvDelimiter separates documents in the quoted CSV dumps. A document
// whose text contains this sequence is split in two.
const csvDelimiter = "\"\n\""

// ReadDocuments reads path as format and keeps at most documentCount
// documents (documentCount <= 0 keeps all).
func ReadDocuments(path string, format params.Format, documentCount int) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var docs []string
	switch format {
	case params.FormatCSV:
		docs = SplitCSV(string(raw))
	case params.FormatTXT:
		docs = SplitTXT(string(raw))
	default:
		return nil, errors.Errorf("unknown format %v", format)
	}
	if documentCount > 0 && documentCount < len(docs) {
		docs = docs[:documentCount]
	}
	return docs, nil
}

// SplitCSV splits a quoted blob on `"\n"` and strips the outer quotes.
func SplitCSV(raw string) []string {
	rows := strings.Split(raw, csvDelimiter)
	rows[0] = strings.TrimPrefix(rows[0], "\"")
	last := len(rows) - 1
	if strings.HasSuffix(rows[last], "\"\n") {
		rows[last] = strings.TrimSuffix(rows[last], "\"\n")
	} else {
		rows[last] = strings.TrimSuffix(rows[last], "\"")
	}
	return rows
}

// SplitTXT returns every line, including a trailing empty one.
func SplitTXT(raw string) []string {
	return strings.Split(raw, "\n")
}

// ReadEncoded reads one token id per line. Lines that are not integers
// are skipped.
func ReadEncoded(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var ids []int
	skipped := 0
	for sc.Scan() {
		id, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
		if err != nil {
			skipped++
			continue
		}
		ids = append(ids, id)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if skipped > 0 && glog.V(1) {
		glog.Infof("%s: skipped %d non-integer lines", path, skipped)
	}
	return ids, nil
}

// EncodedDocName is the file name of the i-th pre-encoded document.
func EncodedDocName(i int) string { return "doc_" + strconv.Itoa(i) + ".txt" }

// ReadEncodedDocuments reads doc_0.txt, doc_1.txt, ... from dir, stopping
// at documentCount or at the first missing index.
func ReadEncodedDocuments(dir string, documentCount int) ([][]int, error) {
	paths, err := filepathx.Glob(filepath.Join(dir, "doc_*.txt"))
	if err != nil {
		return nil, err
	}
	present := map[int]string{}
	for _, p := range paths {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), "doc_"), ".txt")
		if i, err := strconv.Atoi(name); err == nil && i >= 0 {
			present[i] = p
		}
	}
	if len(present) == 0 {
		return nil, errors.Errorf("no encoded documents in %s", dir)
	}
	if documentCount <= 0 {
		documentCount = len(present)
	}

	docs := make([][]int, 0, documentCount)
	for i := 0; i < documentCount; i++ {
		p, ok := present[i]
		if !ok {
			glog.Warningf("%s: only %d of %d encoded documents present", dir, i, documentCount)
			break
		}
		ids, err := ReadEncoded(p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, ids)
	}
	return docs, nil
}
