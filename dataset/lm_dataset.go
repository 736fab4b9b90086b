package dataset

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"github.com/manningwu07/textdata/utils"
)

// LanguageModelDataset cuts the concatenation of encoded documents into
// contiguous windows of SequenceLength ids. Each window's target is the
// window shifted by one, so a window needs SequenceLength+1 ids of
// stream. Windows are grouped into batches of BatchSize in stream order.
type LanguageModelDataset struct {
	BatchSize      int
	SequenceLength int
	// DropLast discards a final batch with fewer than BatchSize rows.
	// When false that batch is emitted short, never padded.
	DropLast bool

	stream  []int32
	lengths []int
	windows int
}

// NewLanguageModelDataset concatenates docs and precomputes the window
// count.
func NewLanguageModelDataset(docs [][]int, batchSize, sequenceLength int, dropLast bool) (*LanguageModelDataset, error) {
	if batchSize <= 0 || sequenceLength <= 0 {
		return nil, errors.Errorf("batch size and sequence length must be positive; got %d, %d", batchSize, sequenceLength)
	}
	total := 0
	lengths := make([]int, len(docs))
	for i, d := range docs {
		lengths[i] = len(d)
		total += len(d)
	}
	stream := make([]int32, 0, total)
	for i, d := range docs {
		for j, id := range d {
			if id < math.MinInt32 || id > math.MaxInt32 {
				return nil, errors.Errorf("document %d: id %d at %d does not fit in int32", i, id, j)
			}
			stream = append(stream, int32(id))
		}
	}
	ds := &LanguageModelDataset{
		BatchSize:      batchSize,
		SequenceLength: sequenceLength,
		DropLast:       dropLast,
		stream:         stream,
		lengths:        lengths,
	}
	if total > 1 {
		ds.windows = (total - 1) / sequenceLength
	}
	return ds, nil
}

// TokenCount is the number of ids across all documents.
func (ds *LanguageModelDataset) TokenCount() int { return len(ds.stream) }

// Stream is the concatenated ids. Do not modify.
func (ds *LanguageModelDataset) Stream() []int32 { return ds.stream }

// Lengths returns the length of every source document.
func (ds *LanguageModelDataset) Lengths() []int {
	return append([]int(nil), ds.lengths...)
}

// WindowCount is the number of (input, target) windows before batching.
func (ds *LanguageModelDataset) WindowCount() int { return ds.windows }

// Count is the number of batches the dataset yields. A window needs
// SequenceLength+1 ids because its target runs one id past it, so there
// are (TokenCount()-1)/SequenceLength windows and Count is that divided
// by BatchSize, plus one short batch when DropLast is false and windows
// remain. With T=4, B=2, L=2 that is one window and no full batch.
func (ds *LanguageModelDataset) Count() int {
	n := ds.windows / ds.BatchSize
	if !ds.DropLast && ds.windows%ds.BatchSize > 0 {
		n++
	}
	return n
}

// Batch builds batch i. It panics when i is out of range.
func (ds *LanguageModelDataset) Batch(i int) Batch {
	if i < 0 || i >= ds.Count() {
		panic(fmt.Sprintf("batch %d out of range [0, %d)", i, ds.Count()))
	}
	first := i * ds.BatchSize
	rows := ds.BatchSize
	if first+rows > ds.windows {
		rows = ds.windows - first
	}
	n := ds.SequenceLength
	in := make([]int32, rows*n)
	tgt := make([]int32, rows*n)
	for r := 0; r < rows; r++ {
		start := (first + r) * n
		copy(in[r*n:(r+1)*n], ds.stream[start:start+n])
		copy(tgt[r*n:(r+1)*n], ds.stream[start+1:start+n+1])
	}
	return Batch{
		Index:  i,
		Input:  tensor.New(tensor.WithShape(rows, n), tensor.WithBacking(in)),
		Target: tensor.New(tensor.WithShape(rows, n), tensor.WithBacking(tgt)),
		input:  in,
		target: tgt,
	}
}

// Iterator returns a fresh pass over the batches.
func (ds *LanguageModelDataset) Iterator() *Iterator {
	return &Iterator{ds: ds}
}

// Iterator walks a dataset once. Call Iterator() again for another
// epoch.
type Iterator struct {
	ds   *LanguageModelDataset
	next int
}

// Next returns the next batch, or false when the pass is over.
func (it *Iterator) Next() (Batch, bool) {
	if it.next >= it.ds.Count() {
		return Batch{}, false
	}
	b := it.ds.Batch(it.next)
	it.next++
	return b, true
}

// Batch is one (input, target) pair of Int32 tensors shaped
// [rows, SequenceLength].
type Batch struct {
	Index         int
	Input, Target *tensor.Dense

	input, target []int32
}

// Rows is the first dimension of the batch.
func (b Batch) Rows() int { return b.Input.Shape()[0] }

// Row returns row r of the input and target. Do not modify.
func (b Batch) Row(r int) (input, target []int32) {
	n := b.Input.Shape()[1]
	return b.input[r*n : (r+1)*n], b.target[r*n : (r+1)*n]
}

// Matrices converts the batch into gonum matrices for models built on
// gonum.
func (b Batch) Matrices() (input, target *mat.Dense) {
	rows := b.Rows()
	n := b.Input.Shape()[1]
	in := make([][]int32, rows)
	tg := make([][]int32, rows)
	for r := 0; r < rows; r++ {
		in[r], tg[r] = b.Row(r)
	}
	return utils.IDsToDense(in, n), utils.IDsToDense(tg, n)
}
