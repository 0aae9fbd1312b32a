// Package sequence provides the building blocks of a pulse sequence: RF
// pulses, trapezoidal gradients, ADC windows and delays, grouped into
// timed blocks. It follows the event/block model used by Pulseq so that a
// sequence description reads the same way it would on a scanner.
//
// Units throughout the package: time in seconds, gradient amplitude in
// Hz/m, gradient area in 1/m, RF amplitude in Hz, angles in radians.
package sequence

import (
	"errors"
	"math"
)

// Gamma is the proton gyromagnetic ratio in Hz/T.
const Gamma = 42.576e6

var (
	// ErrGradientLimit is returned when a requested gradient cannot be
	// realised within the amplitude or slew limits.
	ErrGradientLimit = errors.New("gradient exceeds system limits")

	// ErrInvalidDelay is returned for negative or non-finite delays.
	ErrInvalidDelay = errors.New("invalid delay")

	// ErrInvalidEvent is returned when an event or block is malformed.
	ErrInvalidEvent = errors.New("invalid event")
)

// Limits holds the hardware limits and raster times of the scanner.
type Limits struct {
	// MaxGrad is the maximum gradient amplitude in Hz/m
	MaxGrad float64

	// MaxSlew is the maximum slew rate in Hz/m/s
	MaxSlew float64

	RFRingdownTime float64
	RFDeadTime     float64
	ADCDeadTime    float64

	GradRasterTime      float64
	RFRasterTime        float64
	ADCRasterTime       float64
	BlockDurationRaster float64
}

// DefaultLimits returns the limits used for the TSE figure:
// 28 mT/m, 150 T/m/s, 20 us RF ringdown, 100 us RF dead time,
// 20 us ADC dead time and a 10 us gradient raster.
func DefaultLimits() Limits {
	return Limits{
		MaxGrad:             GradFromMilliTesla(28),
		MaxSlew:             SlewFromTeslaPerMeterPerSecond(150),
		RFRingdownTime:      20e-6,
		RFDeadTime:          100e-6,
		ADCDeadTime:         20e-6,
		GradRasterTime:      10e-6,
		RFRasterTime:        1e-6,
		ADCRasterTime:       100e-9,
		BlockDurationRaster: 10e-6,
	}
}

// GradFromMilliTesla converts a gradient amplitude in mT/m to Hz/m.
func GradFromMilliTesla(mTm float64) float64 {
	return mTm * 1e-3 * Gamma
}

// SlewFromTeslaPerMeterPerSecond converts a slew rate in T/m/s to Hz/m/s.
func SlewFromTeslaPerMeterPerSecond(tms float64) float64 {
	return tms * Gamma
}

// ceilToRaster rounds t up to the next multiple of raster. Values already
// on the raster (within floating point noise) are kept.
func ceilToRaster(t, raster float64) float64 {
	n := t / raster
	if r := math.Round(n); math.Abs(n-r) < 1e-9 {
		return r * raster
	}
	return math.Ceil(n) * raster
}

// onRaster reports whether t is an integer multiple of raster.
func onRaster(t, raster float64) bool {
	if raster <= 0 {
		return true
	}
	n := t / raster
	return math.Abs(n-math.Round(n)) < 1e-6
}
