package reconstruction

import (
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/MRsources/Article-MAGMA24-RMRI/internal/models"
)

// fft2D performs the unnormalised forward 2D FFT of g, rows first, then
// columns.
//
// Parameters:
//   - g: input grid, left untouched
//
// Returns:
//   - a new grid holding the transform
func fft2D(g *models.ComplexGrid) *models.ComplexGrid {
	// Work on a copy so the caller's grid is preserved
	out := models.NewComplexGrid(g.Rows, g.Cols)
	copy(out.Data, g.Data)

	// Perform row-wise FFT in place
	rowFFT := fourier.NewCmplxFFT(g.Cols)
	for r := 0; r < g.Rows; r++ {
		row := out.Data[r*g.Cols : (r+1)*g.Cols]
		rowFFT.Coefficients(row, append([]complex128(nil), row...))
	}

	// Temporary storage for column FFT
	colFFT := fourier.NewCmplxFFT(g.Rows)
	col := make([]complex128, g.Rows)
	coeff := make([]complex128, g.Rows)

	// Perform column-wise FFT on the row results
	for c := 0; c < g.Cols; c++ {
		// Extract column
		for r := 0; r < g.Rows; r++ {
			col[r] = out.At(r, c)
		}

		colFFT.Coefficients(coeff, col)

		// Store column FFT results
		for r := 0; r < g.Rows; r++ {
			out.Set(r, c, coeff[r])
		}
	}
	return out
}

// fftShift2D moves the zero-frequency element from index 0 to the centre
// along both axes.
func fftShift2D(g *models.ComplexGrid) *models.ComplexGrid {
	rows, cols := fourier.NewCmplxFFT(g.Rows), fourier.NewCmplxFFT(g.Cols)
	return remap(g, rows.ShiftIdx, cols.ShiftIdx)
}

// ifftShift2D is the inverse of fftShift2D.
func ifftShift2D(g *models.ComplexGrid) *models.ComplexGrid {
	rows, cols := fourier.NewCmplxFFT(g.Rows), fourier.NewCmplxFFT(g.Cols)
	return remap(g, rows.UnshiftIdx, cols.UnshiftIdx)
}

// remap returns out with out[r][c] = g[rowIdx(r)][colIdx(c)].
func remap(g *models.ComplexGrid, rowIdx, colIdx func(int) int) *models.ComplexGrid {
	out := models.NewComplexGrid(g.Rows, g.Cols)
	for r := 0; r < g.Rows; r++ {
		sr := rowIdx(r)
		for c := 0; c < g.Cols; c++ {
			out.Set(r, c, g.At(sr, colIdx(c)))
		}
	}
	return out
}
