package IO

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// WriteEncodedDocuments writes docs in the pre-encoded layout read by
// ReadEncodedDocuments: dir/doc_<i>.txt, one id per line.
func WriteEncodedDocuments(dir string, docs [][]int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i, ids := range docs {
		p := filepath.Join(dir, EncodedDocName(i))
		f, err := os.Create(p)
		if err != nil {
			return err
		}
		w := bufio.NewWriter(f)
		for _, id := range ids {
			w.WriteString(strconv.Itoa(id))
			w.WriteByte('\n')
		}
		if err := w.Flush(); err != nil {
			f.Close()
			return errors.Wrapf(err, "write %s", p)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}

// ExportTokenIDsBinary writes token id sequences to binary data files plus an index:
//
//   - .bin = concatenated little-endian int32 token sequences
//   - .idx = int64 (byte offset, length) per document
//
// Shards roll over once a .bin reaches maxShardBytes; <= 0 disables
// rollover. Returns the number of shards written.
func ExportTokenIDsBinary(docs [][]int, outPrefix string, maxShardBytes int64) (int, error) {
	if err := os.MkdirAll(filepath.Dir(outPrefix), 0o755); err != nil {
		return 0, err
	}

	shard := 0
	var (
		dataF, idxF *os.File
		wData, wIdx *bufio.Writer
		cur         int64
	)

	// closeShard flushes and closes the open shard, always releasing both
	// files.
	closeShard := func() error {
		if dataF == nil {
			return nil
		}
		err := wData.Flush()
		if ferr := wIdx.Flush(); err == nil {
			err = ferr
		}
		if cerr := dataF.Close(); err == nil {
			err = cerr
		}
		if cerr := idxF.Close(); err == nil {
			err = cerr
		}
		dataF, idxF = nil, nil
		return err
	}
	// abort closes the open shard after a failed write.
	abort := func(err error) error {
		closeShard()
		return err
	}

	openShard := func() error {
		if err := closeShard(); err != nil {
			return err
		}
		var err error
		dataF, err = os.Create(fmt.Sprintf("%s-%03d.bin", outPrefix, shard))
		if err != nil {
			dataF = nil
			return err
		}
		idxF, err = os.Create(fmt.Sprintf("%s-%03d.idx", outPrefix, shard))
		if err != nil {
			dataF.Close()
			dataF = nil
			return err
		}
		wData = bufio.NewWriter(dataF)
		wIdx = bufio.NewWriter(idxF)
		cur = 0
		return nil
	}

	if err := openShard(); err != nil {
		return 0, err
	}

	buf4 := make([]byte, 4)
	buf8 := make([]byte, 8)
	for i, ids := range docs {
		// write offset + length to idx
		binary.LittleEndian.PutUint64(buf8, uint64(cur))
		if _, err := wIdx.Write(buf8); err != nil {
			return shard + 1, abort(err)
		}
		binary.LittleEndian.PutUint64(buf8, uint64(len(ids)))
		if _, err := wIdx.Write(buf8); err != nil {
			return shard + 1, abort(err)
		}

		// write ids to bin
		for _, id := range ids {
			binary.LittleEndian.PutUint32(buf4, uint32(int32(id)))
			if _, err := wData.Write(buf4); err != nil {
				return shard + 1, abort(err)
			}
		}
		cur += int64(4 * len(ids))

		// rollover if shard too big
		if maxShardBytes > 0 && cur >= maxShardBytes && i+1 < len(docs) {
			shard++
			if err := openShard(); err != nil {
				return shard, err
			}
		}
	}
	return shard + 1, closeShard()
}

// ReadTokenIDsBinary loads every document of one shard written by
// ExportTokenIDsBinary.
func ReadTokenIDsBinary(binPath, idxPath string) ([][]int, error) {
	data, err := os.ReadFile(binPath)
	if err != nil {
		return nil, err
	}
	idx, err := os.ReadFile(idxPath)
	if err != nil {
		return nil, err
	}
	if len(idx)%16 != 0 {
		return nil, errors.Errorf("%s: truncated index (%d bytes)", idxPath, len(idx))
	}
	docs := make([][]int, 0, len(idx)/16)
	for off := 0; off < len(idx); off += 16 {
		start := binary.LittleEndian.Uint64(idx[off:])
		n := binary.LittleEndian.Uint64(idx[off+8:])
		end := start + 4*n
		if end > uint64(len(data)) {
			return nil, errors.Errorf("%s: document %d overruns data", idxPath, off/16)
		}
		ids := make([]int, n)
		for j := range ids {
			ids[j] = int(int32(binary.LittleEndian.Uint32(data[start+4*uint64(j):])))
		}
		docs = append(docs, ids)
	}
	return docs, nil
}
