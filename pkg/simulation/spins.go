package simulation

import (
	"math"
	"runtime"
)

// spinSet stores isochromats as parallel slices. z holds the index of the
// slice layer rather than the position so RF rotations can be shared.
type spinSet struct {
	x, y   []float64
	z      []int
	m0     []float64
	r1, r2 []float64
}

func (s *spinSet) len() int { return len(s.x) }

func (s *spinSet) add(x, y float64, z int, m0, t1, t2 float64) {
	s.x = append(s.x, x)
	s.y = append(s.y, y)
	s.z = append(s.z, z)
	s.m0 = append(s.m0, m0)
	s.r1 = append(s.r1, rate(t1))
	s.r2 = append(s.r2, rate(t2))
}

// slice returns a view of spins [lo, hi).
func (s *spinSet) slice(lo, hi int) *spinSet {
	return &spinSet{
		x:  s.x[lo:hi],
		y:  s.y[lo:hi],
		z:  s.z[lo:hi],
		m0: s.m0[lo:hi],
		r1: s.r1[lo:hi],
		r2: s.r2[lo:hi],
	}
}

// rate converts a relaxation time to a rate; non-positive or infinite times
// mean no relaxation.
func rate(t float64) float64 {
	if t <= 0 || math.IsInf(t, 1) {
		return 0
	}
	return 1 / t
}

func defaultWorkers() int {
	return runtime.NumCPU()
}
