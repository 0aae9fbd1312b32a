// Package reconstruction turns a flat TSE signal into an image: the samples
// are arranged into a readout x phase k-space matrix, the phase-encode lines
// are put back into ascending order, and a centred 2D FFT yields the
// magnitude image.
package reconstruction

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"

	"github.com/MRsources/Article-MAGMA24-RMRI/internal/models"
)

// ErrSignalLength is returned when the signal does not hold exactly N*N
// samples for a schedule of N phase encodes.
var ErrSignalLength = errors.New("signal length does not match schedule")

// Result holds the outputs of one reconstruction.
type Result struct {
	// Image is the magnitude image, rows along readout, columns along
	// phase encode
	Image *models.Grid

	// KSpaceLog is log|k| of the reordered k-space; empty samples are -Inf
	KSpaceLog *models.Grid

	// KSpace is the reordered k-space, column c holding encode c - N/2
	KSpace *models.ComplexGrid
}

// Reconstruct rebuilds the image from signal. Samples are stored echo by
// echo, so sample p*N + r is readout sample r of the p-th acquired echo, and
// schedule[p] is that echo's signed phase-encode index.
func Reconstruct(signal []complex128, schedule []int) (*Result, error) {
	n := len(schedule)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty schedule", ErrSignalLength)
	}
	if len(signal) != n*n {
		return nil, fmt.Errorf("%w: got %d samples, want %d for %d encodes", ErrSignalLength, len(signal), n*n, n)
	}

	order := sortOrder(schedule)

	kspace := models.NewComplexGrid(n, n)
	for c, p := range order {
		for r := 0; r < n; r++ {
			kspace.Set(r, c, signal[p*n+r])
		}
	}

	img := ifftShift2D(fft2D(fftShift2D(kspace)))

	return &Result{
		Image:     img.Map(cmplx.Abs),
		KSpaceLog: kspace.Map(func(v complex128) float64 { return math.Log(cmplx.Abs(v)) }),
		KSpace:    kspace,
	}, nil
}

// sortOrder returns the acquisition indices that put schedule in ascending
// order.
func sortOrder(schedule []int) []int {
	keys := make([]float64, len(schedule))
	for i, s := range schedule {
		keys[i] = float64(s)
	}
	inds := make([]int, len(schedule))
	floats.ArgsortStable(keys, inds)
	return inds
}
