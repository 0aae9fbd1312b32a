package tse

import "math"

// echoRaster is the granularity of the echo-time delays.
const echoRaster = 100e-6

// PhaseEncodeSchedule returns the signed phase-encode index acquired at each
// echo. Linear ordering sweeps -n/2..n/2-1; centric ordering starts at zero
// and alternates outward: 0, -1, 1, -2, 2, ..., -n/2.
func PhaseEncodeSchedule(n int, ordering Ordering) []int {
	s := make([]int, n)
	for i := range s {
		if ordering == OrderingCentric {
			if i%2 == 0 {
				s[i] = i / 2
			} else {
				s[i] = -(i + 1) / 2
			}
			continue
		}
		s[i] = i - n/2
	}
	return s
}

// EchoTiming describes how the requested echo time was realised.
type EchoTiming struct {
	Requested float64

	// MinHalfTE is the shortest refocus-to-echo interval the train allows
	MinHalfTE float64

	// Delay is inserted before and after every encoding period
	Delay float64

	Effective float64

	// Clamped is set when the requested TE was at or below the floor
	Clamped bool
}

// ComputeEchoTiming derives the echo spacing from the durations of the
// refocusing block, the readout and one phase-encode block. One echo
// period holds a refocusing pulse, a readout and two phase-encode blocks,
// so half of it is the shortest possible TE/2.
func ComputeEchoTiming(te, refocus, readout, phaseEncode float64) EchoTiming {
	minHalf := roundToRaster((refocus+readout+2*phaseEncode)/2, echoRaster)
	delay := roundToRaster(math.Max(0, te/2-minHalf), echoRaster)
	return EchoTiming{
		Requested: te,
		MinHalfTE: minHalf,
		Delay:     delay,
		Effective: 2 * (minHalf + delay),
		Clamped:   delay == 0,
	}
}

func roundToRaster(t, raster float64) float64 {
	return math.Round(t/raster) * raster
}
