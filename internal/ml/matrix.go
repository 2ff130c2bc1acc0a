package ml

import "gonum.org/v1/gonum/mat"

// Matrix is a row-major float64 matrix with exported fields so that fitted
// parameters survive a gob round-trip. Computation happens on the gonum view.
type Matrix struct {
	Rows, Cols int
	Data       []float64
}

// NewMatrix allocates a zeroed Rows x Cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// FromDense copies a gonum dense matrix.
func FromDense(d *mat.Dense) *Matrix {
	r, c := d.Dims()
	m := NewMatrix(r, c)
	for i := 0; i < r; i++ {
		copy(m.Data[i*c:(i+1)*c], d.RawRowView(i))
	}
	return m
}

// Dense returns a gonum view sharing this matrix's backing slice.
func (m *Matrix) Dense() *mat.Dense {
	return mat.NewDense(m.Rows, m.Cols, m.Data)
}

// Row returns row i of the backing slice (no copy).
func (m *Matrix) Row(i int) []float64 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// At returns the element at (i, j).
func (m *Matrix) At(i, j int) float64 { return m.Data[i*m.Cols+j] }

// Set assigns the element at (i, j).
func (m *Matrix) Set(i, j int, v float64) { m.Data[i*m.Cols+j] = v }

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	c := NewMatrix(m.Rows, m.Cols)
	copy(c.Data, m.Data)
	return c
}
