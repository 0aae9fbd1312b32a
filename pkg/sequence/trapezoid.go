package sequence

import (
	"fmt"
	"math"
)

// Channel is a gradient axis.
type Channel string

const (
	ChannelX Channel = "x"
	ChannelY Channel = "y"
	ChannelZ Channel = "z"
)

// Trapezoid is a trapezoidal gradient waveform on one axis.
type Trapezoid struct {
	Channel   Channel
	Amplitude float64
	RiseTime  float64
	FlatTime  float64
	FallTime  float64
	Delay     float64

	// Area is the total area including ramps
	Area float64

	// FlatArea is the area of the flat top only
	FlatArea float64
}

func (*Trapezoid) isEvent() {}

// Duration returns delay plus rise, flat and fall time.
func (g *Trapezoid) Duration() float64 {
	return g.Delay + g.RiseTime + g.FlatTime + g.FallTime
}

// AmplitudeAt returns the gradient amplitude at time t measured from the
// start of the block.
func (g *Trapezoid) AmplitudeAt(t float64) float64 {
	t -= g.Delay
	switch {
	case t <= 0:
		return 0
	case t < g.RiseTime:
		return g.Amplitude * t / g.RiseTime
	case t < g.RiseTime+g.FlatTime:
		return g.Amplitude
	case t < g.RiseTime+g.FlatTime+g.FallTime:
		return g.Amplitude * (g.RiseTime + g.FlatTime + g.FallTime - t) / g.FallTime
	}
	return 0
}

// MomentAt returns the gradient area accumulated from the start of the
// block up to time t.
func (g *Trapezoid) MomentAt(t float64) float64 {
	t -= g.Delay
	if t <= 0 {
		return 0
	}

	var m float64
	if t < g.RiseTime {
		return 0.5 * g.Amplitude * t * t / g.RiseTime
	}
	m += 0.5 * g.Amplitude * g.RiseTime
	t -= g.RiseTime

	if t < g.FlatTime {
		return m + g.Amplitude*t
	}
	m += g.Amplitude * g.FlatTime
	t -= g.FlatTime

	if t < g.FallTime {
		return m + g.Amplitude*(t-0.5*t*t/g.FallTime)
	}
	return m + 0.5*g.Amplitude*g.FallTime
}

// TrapezoidOption configures MakeTrapezoid.
type TrapezoidOption func(*trapezoidSpec)

type trapezoidSpec struct {
	area, flatArea, flatTime, duration, riseTime float64

	hasArea, hasFlatArea, hasFlatTime, hasDuration bool
}

// WithArea requests a total area including ramps.
func WithArea(area float64) TrapezoidOption {
	return func(s *trapezoidSpec) {
		s.area = area
		s.hasArea = true
	}
}

// WithFlatArea requests the area of the flat top; it requires WithFlatTime.
func WithFlatArea(area float64) TrapezoidOption {
	return func(s *trapezoidSpec) {
		s.flatArea = area
		s.hasFlatArea = true
	}
}

// WithFlatTime fixes the flat-top duration.
func WithFlatTime(t float64) TrapezoidOption {
	return func(s *trapezoidSpec) {
		s.flatTime = t
		s.hasFlatTime = true
	}
}

// WithDuration fixes the total ramp-to-ramp duration.
func WithDuration(d float64) TrapezoidOption {
	return func(s *trapezoidSpec) {
		s.duration = d
		s.hasDuration = true
	}
}

// WithRiseTime fixes the ramp time; the fall time always equals it.
func WithRiseTime(t float64) TrapezoidOption {
	return func(s *trapezoidSpec) {
		s.riseTime = t
	}
}

// MakeTrapezoid designs a trapezoid on channel ch.
//
// Three forms are supported:
//   - WithFlatTime (+ WithFlatArea): the flat top carries the given area,
//     ramps are as short as the slew rate allows.
//   - WithDuration + WithArea: the shortest ramps are chosen, then the
//     amplitude is readjusted so the total area is exact.
//   - WithArea alone: the shortest triangle or trapezoid.
func MakeTrapezoid(ch Channel, lim Limits, opts ...TrapezoidOption) (*Trapezoid, error) {
	var s trapezoidSpec
	for _, o := range opts {
		o(&s)
	}

	raster := lim.GradRasterTime
	var amp, rise, flat, fall float64

	switch {
	case s.hasFlatTime:
		// Flat top carries the area; ramps follow from the slew rate
		if !s.hasFlatArea {
			return nil, fmt.Errorf("%w: flat time given without flat area", ErrInvalidEvent)
		}
		if s.flatTime <= 0 {
			return nil, fmt.Errorf("%w: flat time %g must be positive", ErrInvalidEvent, s.flatTime)
		}
		amp = s.flatArea / s.flatTime
		rise = s.riseTime
		if rise == 0 {
			rise = ceilToRaster(math.Abs(amp)/lim.MaxSlew, raster)
			if rise == 0 {
				rise = raster
			}
		}
		fall = rise
		flat = s.flatTime

	case s.hasDuration:
		if !s.hasArea {
			return nil, fmt.Errorf("%w: duration given without area", ErrInvalidEvent)
		}
		rise = s.riseTime
		if rise == 0 {
			// Solve for the amplitude of the shortest ramps that fit the
			// duration, then round the ramps up to the raster
			dC := 1 / math.Abs(lim.MaxSlew)
			disc := s.duration*s.duration - 4*math.Abs(s.area)*dC
			if disc < 0 {
				return nil, fmt.Errorf("%w: area %g needs at least %.0f us, got %.0f us",
					ErrGradientLimit, s.area, math.Sqrt(4*math.Abs(s.area)*dC)*1e6, s.duration*1e6)
			}
			amp = (s.duration - math.Sqrt(disc)) / (2 * dC)
			rise = ceilToRaster(math.Abs(amp)/lim.MaxSlew, raster)
			if rise == 0 {
				rise = raster
			}
		}
		fall = rise
		flat = s.duration - rise - fall
		if flat < 0 {
			return nil, fmt.Errorf("%w: duration %g too short for ramps", ErrGradientLimit, s.duration)
		}
		// Readjust the amplitude so the total area is exact after rounding
		amp = s.area / (rise/2 + fall/2 + flat)

	case s.hasArea:
		// Start from a triangle; add a flat top if it exceeds the amplitude limit
		rise = ceilToRaster(math.Sqrt(math.Abs(s.area)/lim.MaxSlew), raster)
		if rise < raster {
			rise = raster
		}
		amp = s.area / rise
		tEff := rise
		if math.Abs(amp) > lim.MaxGrad {
			tEff = ceilToRaster(math.Abs(s.area)/lim.MaxGrad, raster)
			amp = s.area / tEff
			rise = ceilToRaster(math.Abs(amp)/lim.MaxSlew, raster)
			if rise == 0 {
				rise = raster
			}
		}
		flat = tEff - rise
		fall = rise

	default:
		return nil, fmt.Errorf("%w: trapezoid needs an area or flat time", ErrInvalidEvent)
	}

	if math.Abs(amp) > lim.MaxGrad*(1+1e-9) {
		return nil, fmt.Errorf("%w: amplitude %.0f Hz/m > %.0f Hz/m", ErrGradientLimit, math.Abs(amp), lim.MaxGrad)
	}

	return &Trapezoid{
		Channel:   ch,
		Amplitude: amp,
		RiseTime:  rise,
		FlatTime:  flat,
		FallTime:  fall,
		Area:      amp * (flat + rise/2 + fall/2),
		FlatArea:  amp * flat,
	}, nil
}
