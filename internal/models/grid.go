package models

import (
	"math"
)

// Grid is a dense 2D array of real values. The first index runs over rows
// (readout samples), the second over columns (phase-encode lines).
type Grid struct {
	// Rows is the number of rows
	Rows int

	// Cols is the number of columns
	Cols int

	// Data holds the values in row-major order, index r*Cols + c
	Data []float64
}

// NewGrid allocates a zeroed rows x cols grid.
func NewGrid(rows, cols int) *Grid {
	return &Grid{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// At returns the value at row r, column c.
func (g *Grid) At(r, c int) float64 {
	return g.Data[r*g.Cols+c]
}

// Set stores v at row r, column c.
func (g *Grid) Set(r, c int, v float64) {
	g.Data[r*g.Cols+c] = v
}

// Transpose returns a new grid with rows and columns swapped.
func (g *Grid) Transpose() *Grid {
	t := NewGrid(g.Cols, g.Rows)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			t.Set(c, r, g.At(r, c))
		}
	}
	return t
}

// FiniteRange returns the smallest and largest finite values. ok is false
// when the grid holds no finite value.
func (g *Grid) FiniteRange() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range g.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		ok = true
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}

// ComplexGrid is the complex counterpart of Grid, used for k-space and
// intermediate transform results.
type ComplexGrid struct {
	// Rows is the number of rows
	Rows int

	// Cols is the number of columns
	Cols int

	// Data holds the values in row-major order, index r*Cols + c
	Data []complex128
}

// NewComplexGrid allocates a zeroed rows x cols grid.
func NewComplexGrid(rows, cols int) *ComplexGrid {
	return &ComplexGrid{Rows: rows, Cols: cols, Data: make([]complex128, rows*cols)}
}

// At returns the value at row r, column c.
func (g *ComplexGrid) At(r, c int) complex128 {
	return g.Data[r*g.Cols+c]
}

// Set stores v at row r, column c.
func (g *ComplexGrid) Set(r, c int, v complex128) {
	g.Data[r*g.Cols+c] = v
}

// Map returns a real grid of f applied to every element.
func (g *ComplexGrid) Map(f func(complex128) float64) *Grid {
	out := NewGrid(g.Rows, g.Cols)
	for i, v := range g.Data {
		out.Data[i] = f(v)
	}
	return out
}
