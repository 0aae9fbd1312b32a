// Package simulation computes the ADC signal a sequence produces on a
// phantom. Each voxel is represented by a small set of isochromats spread
// along the readout direction and through the slice; RF pulses are applied
// as instantaneous rotations at their centre and everything between is free
// precession with T1/T2 relaxation in the gradient field.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/phantom"
	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/sequence"
)

// ErrEmptyPhantom is returned when the phantom has no signal-carrying voxel.
var ErrEmptyPhantom = errors.New("phantom has no occupied voxels")

// chunkSize is the number of spins one task evolves. It is fixed so the
// partition, and with it the summation order, does not depend on Workers.
const chunkSize = 512

// Options controls the isochromat model and the worker pool.
type Options struct {
	// Workers bounds the number of goroutines; 0 uses one per CPU
	Workers int

	// SpinsPerVoxel isochromats are spread evenly across each voxel along x
	SpinsPerVoxel int

	// SpinsAcrossSlice isochromat layers are spread over Slab along z
	SpinsAcrossSlice int

	// Slab is the simulated extent in z in metres; 0 puts all spins at z=0
	Slab float64

	// Seed drives the jitter of the slice layers
	Seed int64
}

// DefaultOptions returns settings that resolve the slice profile well
// enough for the 2D figure.
func DefaultOptions() Options {
	return Options{
		SpinsPerVoxel:    3,
		SpinsAcrossSlice: 16,
		Seed:             1,
	}
}

// Simulator runs sequences against phantoms.
type Simulator struct {
	opts   Options
	logger *zap.Logger
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// WithOptions replaces the simulation options.
func WithOptions(o Options) Option {
	return func(s *Simulator) { s.opts = o }
}

// New returns a Simulator.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		opts:   DefaultOptions(),
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.opts.Workers <= 0 {
		s.opts.Workers = defaultWorkers()
	}
	if s.opts.SpinsPerVoxel <= 0 {
		s.opts.SpinsPerVoxel = 1
	}
	if s.opts.SpinsAcrossSlice <= 0 || s.opts.Slab <= 0 {
		s.opts.SpinsAcrossSlice = 1
	}
	return s
}

// Options returns the effective options.
func (s *Simulator) Options() Options {
	return s.opts
}

// Simulate returns one complex sample per ADC sample of seq, in acquisition
// order. The result is deterministic for a given seed regardless of the
// number of workers.
func (s *Simulator) Simulate(ctx context.Context, seq *sequence.Sequence, ph *phantom.Phantom) ([]complex128, error) {
	start := time.Now()

	if ph.Occupied() == 0 {
		return nil, ErrEmptyPhantom
	}
	zs := s.slicePositions()
	sp := s.spins(ph, len(zs))
	pl := buildPlan(seq, zs)

	chunks := splitChunks(sp.len(), chunkSize)
	partials := make([][]complex128, len(chunks))

	s.logger.Debug("simulation started",
		zap.Int("voxels", ph.Occupied()),
		zap.Int("spins", sp.len()),
		zap.Int("slice_layers", len(zs)),
		zap.Int("steps", len(pl.steps)),
		zap.Int("samples", pl.samples),
		zap.Int("chunks", len(chunks)),
		zap.Int("workers", s.opts.Workers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for c, ch := range chunks {
		c, ch := c, ch
		g.Go(func() error {
			out, err := run(ctx, pl, zs, sp.slice(ch[0], ch[1]))
			if err != nil {
				return err
			}
			partials[c] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("simulation: %w", err)
	}

	// Summing in chunk order keeps the floating-point result independent of
	// scheduling.
	signal := make([]complex128, pl.samples)
	for _, p := range partials {
		for i, v := range p {
			signal[i] += v
		}
	}

	s.logger.Debug("simulation finished", zap.Duration("elapsed", time.Since(start)))
	return signal, nil
}

// slicePositions returns stratified, jittered layer positions across the
// slab.
func (s *Simulator) slicePositions() []float64 {
	n := s.opts.SpinsAcrossSlice
	if n == 1 {
		return []float64{0}
	}
	rng := rand.New(rand.NewSource(s.opts.Seed))
	step := s.opts.Slab / float64(n)
	zs := make([]float64, n)
	for i := range zs {
		zs[i] = -s.opts.Slab/2 + (float64(i)+rng.Float64())*step
	}
	return zs
}

// spins lays out the isochromats of every occupied voxel. Each isochromat
// carries an equal share of the voxel's proton density.
func (s *Simulator) spins(ph *phantom.Phantom, layers int) *spinSet {
	perX := s.opts.SpinsPerVoxel
	d := ph.VoxelSize()
	weight := 1 / float64(perX*layers)

	sp := &spinSet{}
	for iy := 0; iy < ph.N; iy++ {
		for ix := 0; ix < ph.N; ix++ {
			i := iy*ph.N + ix
			if ph.PD[i] <= 0 {
				continue
			}
			cx, cy := ph.VoxelCenter(ix, iy)
			for k := 0; k < perX; k++ {
				x := cx + d*((float64(k)+0.5)/float64(perX)-0.5)
				for z := 0; z < layers; z++ {
					sp.add(x, cy, z, ph.PD[i]*weight, ph.T1[i], ph.T2[i])
				}
			}
		}
	}
	return sp
}

// run evolves a set of spins through the plan and returns their summed,
// demodulated signal.
//
// Parameters:
//   - ctx: checked before every RF event
//   - pl: the shared, read-only plan
//   - zs: slice positions indexed by the spins' layer
//   - sp: the spins of one chunk
//
// Returns:
//   - one complex sample per ADC sample of the plan
func run(ctx context.Context, pl *plan, zs []float64, sp *spinSet) ([]complex128, error) {
	n := sp.len()
	out := make([]complex128, pl.samples)

	// Start from equilibrium: no transverse magnetization, mz = m0
	mxy := make([]complex128, n)
	mz := append([]float64(nil), sp.m0...)

	// precession factors are reused while the interval stays the same, as
	// on a readout flat top
	rot := make([]complex128, n)
	e1 := make([]float64, n)
	var last step
	valid := false

	for _, st := range pl.steps {
		// Free precession and relaxation over the interval
		if st.dt > 0 || st.dk != [3]float64{} {
			if !valid || !sameInterval(last, st) {
				for i := 0; i < n; i++ {
					phase := -2 * math.Pi * (st.dk[0]*sp.x[i] + st.dk[1]*sp.y[i] + st.dk[2]*zs[sp.z[i]])
					rot[i] = cmplx.Rect(math.Exp(-st.dt*sp.r2[i]), phase)
					e1[i] = math.Exp(-st.dt * sp.r1[i])
				}
				last, valid = st, true
			}
			for i := 0; i < n; i++ {
				mxy[i] *= rot[i]
				mz[i] = sp.m0[i] + (mz[i]-sp.m0[i])*e1[i]
			}
		}

		switch st.kind {
		case stepRF:
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			// Apply the instantaneous rotation of this layer
			rots := pl.rotations[st.rf]
			for i := 0; i < n; i++ {
				v := rots[sp.z[i]].Rotate(r3.Vec{X: real(mxy[i]), Y: imag(mxy[i]), Z: mz[i]})
				mxy[i] = complex(v.X, v.Y)
				mz[i] = v.Z
			}
		case stepSample:
			// Sum the transverse magnetization and demodulate by the ADC phase
			var sum complex128
			for i := 0; i < n; i++ {
				sum += mxy[i]
			}
			out[st.sample] = sum * st.demod
		}
	}
	return out, nil
}

func sameInterval(a, b step) bool {
	const tol = 1e-12
	if math.Abs(a.dt-b.dt) > tol {
		return false
	}
	for i := range a.dk {
		if math.Abs(a.dk[i]-b.dk[i]) > 1e-9*math.Max(1, math.Abs(a.dk[i])) {
			return false
		}
	}
	return true
}

// splitChunks cuts [0, n) into contiguous ranges of at most size.
func splitChunks(n, size int) [][2]int {
	if size < 1 {
		size = 1
	}
	var chunks [][2]int
	for lo := 0; lo < n; lo += size {
		chunks = append(chunks, [2]int{lo, min(lo+size, n)})
	}
	return chunks
}
