// Package matrix provides a dense row-major float32 matrix used for corpus batches.
package matrix

import "fmt"

// Matrix is a dense row-major matrix of float32 values.
// Row i occupies Data[i*Cols : (i+1)*Cols].
type Matrix struct {
	Rows int
	Cols int
	Data []float32
}

// New allocates a zeroed rows x cols matrix.
func New(rows, cols int) *Matrix {
	return &Matrix{
		Rows: rows,
		Cols: cols,
		Data: make([]float32, rows*cols),
	}
}

// FromRows copies rows into a new matrix. All rows must share the same length.
func FromRows(rows [][]float32) (*Matrix, error) {
	if len(rows) == 0 {
		return &Matrix{}, nil
	}
	cols := len(rows[0])
	m := New(len(rows), cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("matrix: row %d has %d columns, expected %d", i, len(r), cols)
		}
		copy(m.Row(i), r)
	}
	return m, nil
}

// Row returns a view of row i. Writes through the view mutate the matrix.
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// Clone returns a deep copy of m.
func (m *Matrix) Clone() *Matrix {
	c := &Matrix{Rows: m.Rows, Cols: m.Cols, Data: make([]float32, len(m.Data))}
	copy(c.Data, m.Data)
	return c
}

// Empty reports whether the matrix has no rows.
func (m *Matrix) Empty() bool {
	return m == nil || m.Rows == 0
}
