package utils

import (
	"os"

	"gonum.org/v1/gonum/mat"
)

// FileExists is true if path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DirEmpty is true when dir is missing, unreadable or has no entries.
func DirEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err != nil || len(entries) == 0
}

// IDsToDense lays out rows of token ids as a (len(rows) x cols) matrix.
// Short rows are zero-filled.
func IDsToDense(rows [][]int32, cols int) *mat.Dense {
	if len(rows) == 0 || cols == 0 {
		return &mat.Dense{}
	}
	data := make([]float64, len(rows)*cols)
	for i, r := range rows {
		for j := 0; j < cols && j < len(r); j++ {
			data[i*cols+j] = float64(r[j])
		}
	}
	return mat.NewDense(len(rows), cols, data)
}
