package linalg

import "sort"

// Mat is a real sparse matrix in compressed-sparse-row form. It backs the
// density filter weights, which stay real through the whole chain.
type Mat struct {
	Rows, Cols int
	RowPtr     []int
	ColIdx     []int
	Data       []float64
}

type Builder struct {
	rows, cols int
	ri, ci     []int
	val        []float64
}

func NewBuilder(rows, cols int) *Builder {
	return &Builder{rows: rows, cols: cols}
}

func (b *Builder) Add(i, j int, v float64) {
	b.ri = append(b.ri, i)
	b.ci = append(b.ci, j)
	b.val = append(b.val, v)
}

func (b *Builder) Build() *Mat {
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

	m := &Mat{
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

// MulVec computes y = W·x.
func (m *Mat) MulVec(x []float64) []float64 {
	y := make([]float64, m.Rows)
	for i := 0; i < m.Rows; i++ {
		var s float64
		for k := m.RowPtr[i]; k < m.RowPtr[i+1]; k++ {
			s += m.Data[k] * x[m.ColIdx[k]]
		}
		y[i] = s
	}
	return y
}

// MulTransVec computes y = Wᵀ·x without forming the transpose.
func (m *Mat) MulTransVec(x []float64) []float64 {
	y := make([]float64, m.Cols)
	for i := 0; i < m.Rows; i++ {
		for k := m.RowPtr[i]; k < m.RowPtr[i+1]; k++ {
			y[m.ColIdx[k]] += m.Data[k] * x[i]
		}
	}
	return y
}
