package simulation

import (
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/sequence"
)

type stepKind int

const (
	stepNone stepKind = iota
	stepRF
	stepSample
)

// step is one free-precession interval followed by an optional action.
// The plan is shared read-only by all workers.
type step struct {
	dk [3]float64
	dt float64

	kind stepKind

	// rf indexes plan.rotations
	rf int

	sample int
	demod  complex128
}

type plan struct {
	steps []step

	// rotations[rf][z] is the RF rotation seen by spins at slice position z
	rotations [][]r3.Rotation

	samples int
}

type profileKey struct {
	signal *float64
	grad   float64
	z      float64
}

// buildPlan flattens the sequence into precession intervals, RF rotations
// and ADC samples.
//
// Parameters:
//   - seq: the assembled sequence
//   - zs: slice positions of the spin layers
//
// Returns:
//   - the plan, with one rotation set per RF event and one step per
//     RF centre, ADC sample and block end
func buildPlan(seq *sequence.Sequence, zs []float64) *plan {
	p := &plan{samples: seq.NumSamples()}
	profiles := make(map[profileKey]float64)
	sample := 0

	type event struct {
		t    float64
		kind stepKind
	}

	for _, b := range seq.Blocks() {
		// Collect the instants inside the block where something happens
		var events []event
		if b.RF != nil {
			events = append(events, event{t: b.RF.CenterTime(), kind: stepRF})
		}
		if b.ADC != nil {
			for i := 0; i < b.ADC.NumSamples; i++ {
				events = append(events, event{t: b.ADC.SampleTime(i), kind: stepSample})
			}
		}
		// The block end closes the last precession interval
		events = append(events, event{t: b.Duration(), kind: stepNone})
		sort.SliceStable(events, func(i, j int) bool { return events[i].t < events[j].t })

		grads := [3]*sequence.Trapezoid{b.GX, b.GY, b.GZ}
		var t0 float64
		for _, ev := range events {
			// Gradient moment accumulated since the previous event
			st := step{dt: ev.t - t0, kind: ev.kind}
			for axis, g := range grads {
				if g != nil {
					st.dk[axis] = g.MomentAt(ev.t) - g.MomentAt(t0)
				}
			}
			t0 = ev.t

			switch ev.kind {
			case stepRF:
				// The slice gradient at the pulse centre sets the off-resonance
				// of each layer
				var grad float64
				if b.GZ != nil {
					grad = b.GZ.AmplitudeAt(ev.t)
				}
				st.rf = len(p.rotations)
				p.rotations = append(p.rotations, rfRotations(b.RF, grad, zs, profiles))
			case stepSample:
				st.sample = sample
				st.demod = cmplx.Exp(complex(0, -b.ADC.PhaseOffset))
				sample++
			}
			p.steps = append(p.steps, st)
		}
	}
	return p
}

// rfRotations returns the rotation of rf for each slice position. The
// nominal flip is scaled by the small-tip slice profile at the spin's
// off-resonance under the slice-select gradient.
func rfRotations(rf *sequence.RF, grad float64, zs []float64, cache map[profileKey]float64) []r3.Rotation {
	s, c := math.Sincos(rf.PhaseOffset)
	axis := r3.Vec{X: c, Y: s}

	rots := make([]r3.Rotation, len(zs))
	for i, z := range zs {
		scale := 1.0
		if grad != 0 && len(rf.Signal) > 0 {
			key := profileKey{signal: &rf.Signal[0], grad: grad, z: z}
			v, ok := cache[key]
			if !ok {
				v = rf.Profile(grad * z)
				cache[key] = v
			}
			scale = v
		}
		rots[i] = r3.NewRotation(rf.FlipAngle*scale, axis)
	}
	return rots
}
