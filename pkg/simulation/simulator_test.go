package simulation

import (
	"context"
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/phantom"
	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/sequence"
	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/tse"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var still = phantom.Tissue{PD: 1, T1: math.Inf(1), T2: math.Inf(1)}

// fid builds a non-selective excitation followed by an ADC
func fid(t *testing.T, flip, phase float64) *sequence.Sequence {
	t.Helper()
	lim := sequence.DefaultLimits()
	rf, err := sequence.MakeBlockPulse(flip, 1e-3, lim)
	require.NoError(t, err)
	rf.PhaseOffset = phase
	adc, err := sequence.MakeADC(8, 8e-4, lim)
	require.NoError(t, err)

	seq := sequence.NewSequence(lim)
	require.NoError(t, seq.AddBlock(rf))
	require.NoError(t, seq.AddBlock(adc))
	return seq
}

// TestFreeInductionDecay checks a 90 degree pulse about x tips the
// magnetisation onto -y
func TestFreeInductionDecay(t *testing.T) {
	seq := fid(t, math.Pi/2, 0)
	sim := New(WithOptions(Options{Workers: 2, SpinsPerVoxel: 3}))

	signal, err := sim.Simulate(context.Background(), seq, phantom.Point(8, 0.2, still))
	require.NoError(t, err)
	require.Len(t, signal, 8)
	for i, s := range signal {
		assert.InDelta(t, 0, real(s), 1e-9, "sample %d", i)
		assert.InDelta(t, -1, imag(s), 1e-9, "sample %d", i)
	}
}

// TestRelaxation checks T2 decay and that the ADC phase demodulates
func TestRelaxation(t *testing.T) {
	seq := fid(t, math.Pi/2, math.Pi/2)
	tissue := phantom.Tissue{PD: 0.5, T1: 1, T2: 0.01}
	signal, err := New(WithOptions(Options{SpinsPerVoxel: 1})).
		Simulate(context.Background(), seq, phantom.Point(4, 0.2, tissue))
	require.NoError(t, err)

	// rotation about y tips onto +x; decay runs from the pulse centre
	blocks := seq.Blocks()
	elapsed := blocks[0].Duration() - blocks[0].RF.CenterTime() + blocks[1].ADC.SampleTime(0)
	want := 0.5 * math.Exp(-elapsed/0.01)
	assert.InDelta(t, want, real(signal[0]), 1e-9)
	assert.InDelta(t, 0, imag(signal[0]), 1e-9)
	assert.Less(t, cmplx.Abs(signal[7]), cmplx.Abs(signal[0]))
}

func TestEmptyPhantom(t *testing.T) {
	_, err := New().Simulate(context.Background(), fid(t, 1, 0), phantom.New(4, 0.2))
	assert.True(t, errors.Is(err, ErrEmptyPhantom))
}

func TestSimulateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Simulate(ctx, fid(t, 1, 0), phantom.Point(4, 0.2, still))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

// TestSliceProfile checks spins outside the excited slice contribute little
func TestSliceProfile(t *testing.T) {
	lim := sequence.DefaultLimits()
	thickness := 5e-3
	rf, gz, gzr, err := sequence.MakeSincPulse(math.Pi/2, lim, sequence.WithSliceThickness(thickness))
	require.NoError(t, err)
	adc, err := sequence.MakeADC(4, 4e-4, lim)
	require.NoError(t, err)

	seq := sequence.NewSequence(lim)
	require.NoError(t, seq.AddBlock(rf, gz))
	require.NoError(t, seq.AddBlock(gzr))
	require.NoError(t, seq.AddBlock(adc))

	measure := func(slab float64) float64 {
		sim := New(WithOptions(Options{SpinsPerVoxel: 1, SpinsAcrossSlice: 32, Slab: slab, Seed: 3}))
		signal, err := sim.Simulate(context.Background(), seq, phantom.Point(4, 0.2, still))
		require.NoError(t, err)
		return cmplx.Abs(signal[0])
	}

	assert.InDelta(t, 1, measure(0), 1e-9)
	thick := measure(4 * thickness)
	assert.Less(t, thick, 0.6)
	assert.Greater(t, thick, 0.1)
}

// TestSpinEchoTrain checks every echo of a 90/180 CPMG train refocuses
// to full amplitude
func TestSpinEchoTrain(t *testing.T) {
	p := tse.DefaultParams()
	p.Resolution = 8
	p.TI = 0
	p.ExcitationFlip, p.RefocusingFlip = 90, 180
	res, err := tse.Build(p, sequence.DefaultLimits())
	require.NoError(t, err)

	signal, err := New(WithOptions(Options{SpinsPerVoxel: 3})).
		Simulate(context.Background(), res.Sequence, phantom.Point(8, p.FOV, still))
	require.NoError(t, err)
	require.Len(t, signal, 64)

	for echo := 0; echo < 8; echo++ {
		var peak float64
		for _, s := range signal[echo*8 : (echo+1)*8] {
			peak = math.Max(peak, cmplx.Abs(s))
		}
		assert.Greater(t, peak, 0.8, "echo %d", echo)
	}
}

// TestDeterministicAcrossWorkers checks the worker count does not change
// the result
func TestDeterministicAcrossWorkers(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping multi-worker simulation in short mode")
	}
	p := tse.DefaultParams()
	p.Resolution = 16
	p.TI = 0
	res, err := tse.Build(p, sequence.DefaultLimits())
	require.NoError(t, err)
	ph, err := phantom.Brain(16, p.FOV, phantom.DefaultTissues(), phantom.DefaultEllipses())
	require.NoError(t, err)

	run := func(workers int) []complex128 {
		sim := New(WithOptions(Options{
			Workers:          workers,
			SpinsPerVoxel:    3,
			SpinsAcrossSlice: 4,
			Slab:             1.5 * p.SliceThickness,
			Seed:             7,
		}))
		signal, err := sim.Simulate(context.Background(), res.Sequence, ph)
		require.NoError(t, err)
		return signal
	}

	one := run(1)
	assert.Equal(t, one, run(4))
	assert.Len(t, one, 256)
}

func TestSplitChunks(t *testing.T) {
	assert.Equal(t, [][2]int{{0, 3}, {3, 6}, {6, 7}}, splitChunks(7, 3))
	assert.Empty(t, splitChunks(0, 3))
	assert.Len(t, splitChunks(5, 0), 5)
}

func TestNewNormalisesOptions(t *testing.T) {
	o := New(WithOptions(Options{SpinsAcrossSlice: 8})).Options()
	assert.Equal(t, 1, o.SpinsAcrossSlice, "no slab means a single layer")
	assert.Equal(t, 1, o.SpinsPerVoxel)
	assert.Greater(t, o.Workers, 0)
}
