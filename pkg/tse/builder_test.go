package tse

import (
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/sequence"
)

// TestLinearSchedule checks the linear sweep for a range of resolutions
func TestLinearSchedule(t *testing.T) {
	for n := 2; n <= 112; n += 2 {
		s := PhaseEncodeSchedule(n, OrderingLinear)
		if len(s) != n {
			t.Fatalf("Expected %d encodes, got %d", n, len(s))
		}
		if s[0] != -n/2 || s[n-1] != n/2-1 {
			t.Errorf("n=%d: expected range [%d, %d], got [%d, %d]", n, -n/2, n/2-1, s[0], s[n-1])
		}
		for i := 1; i < n; i++ {
			if s[i] != s[i-1]+1 {
				t.Errorf("n=%d: schedule not strictly increasing by one at %d", n, i)
				break
			}
		}
	}
}

// TestCentricScheduleIsPermutation checks every index appears exactly once
func TestCentricScheduleIsPermutation(t *testing.T) {
	for n := 2; n <= 112; n += 2 {
		s := PhaseEncodeSchedule(n, OrderingCentric)
		sorted := append([]int(nil), s...)
		sort.Ints(sorted)
		if diff := cmp.Diff(PhaseEncodeSchedule(n, OrderingLinear), sorted); diff != "" {
			t.Errorf("n=%d: sorted centric schedule mismatch (-want +got):\n%s", n, diff)
		}
	}

	want := []int{0, -1, 1, -2, 2, -3, 3, -4}
	if diff := cmp.Diff(want, PhaseEncodeSchedule(8, OrderingCentric)); diff != "" {
		t.Errorf("centric schedule mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeEchoTiming(t *testing.T) {
	// 64x64 readout: refocus 1.12 ms, readout 6.5 ms, phase encode 1 ms
	timing := ComputeEchoTiming(10e-3, 1.12e-3, 6.5e-3, 1e-3)
	assert.InDelta(t, 4.8e-3, timing.MinHalfTE, 1e-12)
	assert.InDelta(t, 0.2e-3, timing.Delay, 1e-12)
	assert.InDelta(t, 10e-3, timing.Effective, 1e-12)
	assert.False(t, timing.Clamped)
}

// TestEchoTimeClamping requests a TE below the floor
func TestEchoTimeClamping(t *testing.T) {
	timing := ComputeEchoTiming(2e-3, 1.12e-3, 6.5e-3, 1e-3)
	assert.True(t, timing.Clamped)
	assert.Equal(t, 0.0, timing.Delay)
	assert.InDelta(t, 2*timing.MinHalfTE, timing.Effective, 1e-15)
	assert.InDelta(t, 9.6e-3, timing.Effective, 1e-12)
	assert.Equal(t, 2e-3, timing.Requested)
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	mutate := []func(*Params){
		func(p *Params) { p.Resolution = 7 },
		func(p *Params) { p.Resolution = 0 },
		func(p *Params) { p.TE = -1 },
		func(p *Params) { p.TI = -1 },
		func(p *Params) { p.FOV = 0 },
		func(p *Params) { p.SliceThickness = 0 },
		func(p *Params) { p.Dwell = 0 },
		func(p *Params) { p.SpoilerRatio = -1 },
		func(p *Params) { p.Ordering = "spiral" },
		func(p *Params) { p.ADCPhase = "random" },
	}
	for i, m := range mutate {
		p := DefaultParams()
		m(&p)
		err := p.Validate()
		if !errors.Is(err, ErrInvalidParams) {
			t.Errorf("case %d: expected ErrInvalidParams, got %v", i, err)
		}
	}
}

func TestFigureVariants(t *testing.T) {
	vs := FigureVariants()
	require.Len(t, vs, 5)

	labels := []string{"a)", "b)", "c)", "d)", "e)"}
	for i, v := range vs {
		assert.Equal(t, labels[i], v.Label)
		assert.NoError(t, v.Validate(), v.Name)
	}
	assert.Equal(t, ADCPhaseAlternating, vs[1].ADCPhase)
	assert.Equal(t, 0.0, vs[2].SpoilerRatio)
	assert.Equal(t, OrderingCentric, vs[3].Ordering)
	assert.Equal(t, 0.0, vs[0].ExcitationPhase)
	assert.Equal(t, 90.0, vs[4].ExcitationPhase)
}

// TestBuildDefault builds the reference sequence and checks its structure
func TestBuildDefault(t *testing.T) {
	p := DefaultParams()
	res, err := Build(p, sequence.DefaultLimits())
	require.NoError(t, err)

	assert.Empty(t, res.Violations)
	assert.Equal(t, p.Resolution*p.Resolution, res.Sequence.NumSamples())
	assert.False(t, res.Timing.Clamped)

	// inversion (3) + excitation (2) + fill (1) + 6 blocks per echo
	assert.Len(t, res.Sequence.Blocks(), 3+2+1+6*p.Resolution)

	// the inversion delay dominates the total duration
	assert.Greater(t, res.Sequence.Duration(), p.TI)
}

// TestBuildSpinEchoTiming checks excitation, refocusing and echo are spaced
// by TE/2
func TestBuildSpinEchoTiming(t *testing.T) {
	p := DefaultParams()
	p.TI = 0
	res, err := Build(p, sequence.DefaultLimits())
	require.NoError(t, err)

	var starts []float64
	var now float64
	for _, b := range res.Sequence.Blocks() {
		starts = append(starts, now)
		now += b.Duration()
	}
	blocks := res.Sequence.Blocks()

	excitation := starts[0] + blocks[0].RF.CenterTime()
	refocus := starts[3] + blocks[3].RF.CenterTime()
	require.NotNil(t, blocks[6].ADC)
	echo := starts[6] + blocks[6].ADC.SampleTime(p.Resolution/2)

	assert.InDelta(t, p.TE/2, refocus-excitation, 1e-9)
	assert.InDelta(t, p.TE/2, echo-refocus, 30e-6)
}

// TestBuildADCPhase checks the receiver phase per readout in both modes
func TestBuildADCPhase(t *testing.T) {
	lim := sequence.DefaultLimits()
	for _, mode := range []ADCPhaseMode{ADCPhaseSameAsExcitation, ADCPhaseAlternating} {
		p := DefaultParams()
		p.Resolution = 8
		p.TI = 0
		p.ADCPhase = mode
		res, err := Build(p, lim)
		require.NoError(t, err)

		var phases []float64
		for _, b := range res.Sequence.Blocks() {
			if b.ADC != nil {
				phases = append(phases, b.ADC.PhaseOffset)
			}
		}
		require.Len(t, phases, p.Resolution)

		for i, ph := range phases {
			want := math.Pi / 2
			if mode == ADCPhaseAlternating {
				want += float64(i+1) * math.Pi
			}
			assert.InDelta(t, want, ph, 1e-12, "mode %s readout %d", mode, i)
		}
	}
}

// TestBuildPhaseEncodeAreas checks encode and rewind areas follow the
// schedule and the gradient flags
func TestBuildPhaseEncodeAreas(t *testing.T) {
	p := DefaultParams()
	p.Resolution = 8
	p.TI = 0
	p.Ordering = OrderingCentric
	res, err := Build(p, sequence.DefaultLimits())
	require.NoError(t, err)

	var encodes []float64
	blocks := res.Sequence.Blocks()
	for i, b := range blocks {
		if b.ADC == nil {
			continue
		}
		encodes = append(encodes, blocks[i-1].GY.Area)
		assert.InDelta(t, -blocks[i-1].GY.Area, blocks[i+1].GY.Area, 1e-9)
	}
	for i, idx := range res.Schedule {
		assert.InDelta(t, float64(idx)/p.FOV, encodes[i], 1e-9)
	}

	p.PhaseEncodeOn = false
	p.ReadoutOn = false
	res, err = Build(p, sequence.DefaultLimits())
	require.NoError(t, err)
	for _, b := range res.Sequence.Blocks() {
		if b.GY != nil {
			assert.Equal(t, 0.0, b.GY.Area)
		}
		if b.ADC != nil {
			assert.Equal(t, 0.0, b.GX.Area)
		}
	}
}

func TestBuildClampsEchoTime(t *testing.T) {
	p := DefaultParams()
	p.TE = 1e-3
	res, err := Build(p, sequence.DefaultLimits())
	require.NoError(t, err)
	assert.True(t, res.Timing.Clamped)
	assert.InDelta(t, 2*res.Timing.MinHalfTE, res.Timing.Effective, 1e-15)
	assert.Empty(t, res.Violations)
}

// TestBuildShortFill rejects an echo time whose first half cannot hold the
// excitation and pre-spoiler
func TestBuildShortFill(t *testing.T) {
	p := DefaultParams()
	p.Resolution = 8
	p.TE = 0
	_, err := Build(p, sequence.DefaultLimits())
	require.Error(t, err)
	assert.True(t, errors.Is(err, sequence.ErrInvalidDelay))
}

func TestBuildRejectsInvalidParams(t *testing.T) {
	p := DefaultParams()
	p.Resolution = 3
	_, err := Build(p, sequence.DefaultLimits())
	assert.True(t, errors.Is(err, ErrInvalidParams))
}
