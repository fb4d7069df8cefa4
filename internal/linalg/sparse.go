package linalg

import (
	"math"
	"math/cmplx"
	"sort"
)

// CMat is a complex sparse matrix in compressed-sparse-row form.
type CMat struct {
	Rows, Cols int
	RowPtr     []int
	ColIdx     []int
	Data       []complex128
}

// CBuilder accumulates triplets and compresses them into a CMat.
// Duplicate entries are summed.
type CBuilder struct {
	rows, cols int
	ri, ci     []int
	val        []complex128
}

func NewCBuilder(rows, cols int) *CBuilder {
	return &CBuilder{rows: rows, cols: cols}
}

func (b *CBuilder) Add(i, j int, v complex128) {
	b.ri = append(b.ri, i)
	b.ci = append(b.ci, j)
	b.val = append(b.val, v)
}

func (b *CBuilder) Build() *CMat {
	order := make([]int, len(b.ri))
	for k := range order {
		order[k] = k
	}
	sort.Slice(order, func(x, y int) bool {
		kx, ky := order[x], order[y]
		if b.ri[kx] != b.ri[ky] {
			return b.ri[kx] < b.ri[ky]
		}
		return b.ci[kx] < b.ci[ky]
	})

	m := &CMat{
		Rows:   b.rows,
		Cols:   b.cols,
		RowPtr: make([]int, b.rows+1),
	}
	lastRow, lastCol := -1, -1
	for _, k := range order {
		i, j, v := b.ri[k], b.ci[k], b.val[k]
		if i == lastRow && j == lastCol {
			m.Data[len(m.Data)-1] += v
			continue
		}
		m.ColIdx = append(m.ColIdx, j)
		m.Data = append(m.Data, v)
		for r := lastRow + 1; r <= i; r++ {
			m.RowPtr[r] = len(m.Data) - 1
		}
		lastRow, lastCol = i, j
	}
	for r := lastRow + 1; r <= b.rows; r++ {
		m.RowPtr[r] = len(m.Data)
	}
	return m
}

// MulVec computes y = A·x.
func (m *CMat) MulVec(x []complex128) []complex128 {
	y := make([]complex128, m.Rows)
	for i := 0; i < m.Rows; i++ {
		var s complex128
		for k := m.RowPtr[i]; k < m.RowPtr[i+1]; k++ {
			s += m.Data[k] * x[m.ColIdx[k]]
		}
		y[i] = s
	}
	return y
}

// Transpose returns Aᵀ (no conjugation).
func (m *CMat) Transpose() *CMat {
	b := NewCBuilder(m.Cols, m.Rows)
	for i := 0; i < m.Rows; i++ {
		for k := m.RowPtr[i]; k < m.RowPtr[i+1]; k++ {
			b.Add(m.ColIdx[k], i, m.Data[k])
		}
	}
	return b.Build()
}

// AddDiag returns A + diag(d).
func (m *CMat) AddDiag(d []complex128) *CMat {
	b := NewCBuilder(m.Rows, m.Cols)
	for i := 0; i < m.Rows; i++ {
		for k := m.RowPtr[i]; k < m.RowPtr[i+1]; k++ {
			b.Add(i, m.ColIdx[k], m.Data[k])
		}
	}
	for i, v := range d {
		b.Add(i, i, v)
	}
	return b.Build()
}

// Dense expands the matrix into a row-major dense slice.
func (m *CMat) Dense() []complex128 {
	d := make([]complex128, m.Rows*m.Cols)
	for i := 0; i < m.Rows; i++ {
		for k := m.RowPtr[i]; k < m.RowPtr[i+1]; k++ {
			d[i*m.Cols+m.ColIdx[k]] += m.Data[k]
		}
	}
	return d
}

// NNZ reports the number of stored entries.
func (m *CMat) NNZ() int { return len(m.Data) }

// Norm2 is the L2 norm of a complex vector.
func Norm2(v []complex128) float64 {
	var s float64
	for _, x := range v {
		s += real(x)*real(x) + imag(x)*imag(x)
	}
	return math.Sqrt(s)
}

// Conj returns the elementwise conjugate of v.
func Conj(v []complex128) []complex128 {
	c := make([]complex128, len(v))
	for i, x := range v {
		c[i] = cmplx.Conj(x)
	}
	return c
}
