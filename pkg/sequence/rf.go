package sequence

import (
	"fmt"
	"math"
	"math/cmplx"
)

// RF is a radio-frequency pulse. Signal holds the real-valued B1 shape in
// Hz sampled on the RF raster; the pulse phase is carried by PhaseOffset.
type RF struct {
	Kind        string
	FlipAngle   float64
	PhaseOffset float64
	Duration    float64
	Delay       float64
	Signal      []float64
	Dwell       float64

	// Center is the time of the pulse centre measured from the pulse start
	Center float64

	RingdownTime float64
	DeadTime     float64
}

func (*RF) isEvent() {}

// end is the time the RF event occupies within its block, ringdown included.
func (rf *RF) end() float64 {
	return rf.Delay + rf.Duration + rf.RingdownTime
}

// CenterTime returns the pulse centre measured from the block start.
func (rf *RF) CenterTime() float64 {
	return rf.Delay + rf.Center
}

// Profile returns the small-tip excitation profile at an off-resonance of
// freq Hz, normalised to 1 on resonance.
func (rf *RF) Profile(freq float64) float64 {
	if freq == 0 || len(rf.Signal) == 0 {
		return 1
	}
	var on, off complex128
	for i, s := range rf.Signal {
		t := (float64(i)+0.5)*rf.Dwell - rf.Center
		on += complex(s, 0)
		off += complex(s, 0) * cmplx.Exp(complex(0, -2*math.Pi*freq*t))
	}
	if cmplx.Abs(on) == 0 {
		return 0
	}
	return cmplx.Abs(off) / cmplx.Abs(on)
}

// SincOption configures MakeSincPulse.
type SincOption func(*sincSpec)

type sincSpec struct {
	duration       float64
	phaseOffset    float64
	sliceThickness float64
	apodization    float64
	timeBW         float64
	centerPos      float64
}

// WithPulseDuration sets the RF duration (default 1 ms).
func WithPulseDuration(d float64) SincOption {
	return func(s *sincSpec) { s.duration = d }
}

// WithPhaseOffset sets the RF phase in radians.
func WithPhaseOffset(p float64) SincOption {
	return func(s *sincSpec) { s.phaseOffset = p }
}

// WithSliceThickness sets the slice thickness in metres.
func WithSliceThickness(t float64) SincOption {
	return func(s *sincSpec) { s.sliceThickness = t }
}

// WithApodization sets the Hanning-type apodization (default 0.5).
func WithApodization(a float64) SincOption {
	return func(s *sincSpec) { s.apodization = a }
}

// WithTimeBandwidth sets the time-bandwidth product (default 4).
func WithTimeBandwidth(tbw float64) SincOption {
	return func(s *sincSpec) { s.timeBW = tbw }
}

// MakeSincPulse returns a slice-selective sinc pulse together with its
// slice-select gradient and the gradient that rephases it.
func MakeSincPulse(flip float64, lim Limits, opts ...SincOption) (*RF, *Trapezoid, *Trapezoid, error) {
	s := sincSpec{
		duration:    1e-3,
		apodization: 0.5,
		timeBW:      4,
		centerPos:   0.5,
	}
	for _, o := range opts {
		o(&s)
	}
	if s.duration <= 0 || s.sliceThickness <= 0 {
		return nil, nil, nil, fmt.Errorf("%w: sinc pulse needs positive duration and slice thickness", ErrInvalidEvent)
	}

	bandwidth := s.timeBW / s.duration
	dwell := lim.RFRasterTime
	n := int(math.Round(s.duration / dwell))
	signal := make([]float64, n)
	var sum float64
	for i := range signal {
		tt := (float64(i)+0.5)*dwell - s.duration*s.centerPos
		window := 1 - s.apodization + s.apodization*math.Cos(2*math.Pi*tt/s.duration)
		signal[i] = window * sinc(bandwidth*tt)
		sum += signal[i]
	}
	scale := flip / (sum * dwell * 2 * math.Pi)
	for i := range signal {
		signal[i] *= scale
	}

	rf := &RF{
		Kind:         "sinc",
		FlipAngle:    flip,
		PhaseOffset:  s.phaseOffset,
		Duration:     s.duration,
		Delay:        lim.RFDeadTime,
		Signal:       signal,
		Dwell:        dwell,
		Center:       s.duration * s.centerPos,
		RingdownTime: lim.RFRingdownTime,
		DeadTime:     lim.RFDeadTime,
	}

	amplitude := bandwidth / s.sliceThickness
	area := amplitude * s.duration
	gz, err := MakeTrapezoid(ChannelZ, lim, WithFlatTime(s.duration), WithFlatArea(area))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("slice select gradient: %w", err)
	}
	gzr, err := MakeTrapezoid(ChannelZ, lim, WithArea(-area*(1-s.centerPos)-0.5*(gz.Area-area)))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("slice rephaser: %w", err)
	}

	if rf.Delay > gz.RiseTime {
		gz.Delay = ceilToRaster(rf.Delay-gz.RiseTime, lim.GradRasterTime)
	}
	if rf.Delay < gz.RiseTime+gz.Delay {
		rf.Delay = gz.RiseTime + gz.Delay
	}

	return rf, gz, gzr, nil
}

// MakeBlockPulse returns a non-selective rectangular pulse.
func MakeBlockPulse(flip, duration float64, lim Limits) (*RF, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("%w: block pulse duration %g", ErrInvalidEvent, duration)
	}
	dwell := lim.RFRasterTime
	n := int(math.Round(duration / dwell))
	signal := make([]float64, n)
	amp := flip / (2 * math.Pi * duration)
	for i := range signal {
		signal[i] = amp
	}
	return &RF{
		Kind:         "block",
		FlipAngle:    flip,
		Duration:     duration,
		Delay:        lim.RFDeadTime,
		Signal:       signal,
		Dwell:        dwell,
		Center:       duration / 2,
		RingdownTime: lim.RFRingdownTime,
		DeadTime:     lim.RFDeadTime,
	}, nil
}

// sinc is the normalised sinc, sin(pi x)/(pi x).
func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}
