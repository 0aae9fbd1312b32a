// Package phantom provides a simplified numerical 2D brain phantom: a
// voxel grid of proton density and relaxation times built from a few
// overlapping ellipses of white matter, grey matter and CSF.
package phantom

import (
	"fmt"
	"math"
)

// Tissue holds the MR properties of one tissue class.
type Tissue struct {
	PD float64 `yaml:"pd"`
	T1 float64 `yaml:"t1"`
	T2 float64 `yaml:"t2"`
}

// Ellipse paints a tissue into the phantom. Centre and radii are given as
// fractions of the field of view, Angle in degrees.
type Ellipse struct {
	Tissue string  `yaml:"tissue"`
	CX     float64 `yaml:"cx"`
	CY     float64 `yaml:"cy"`
	RX     float64 `yaml:"rx"`
	RY     float64 `yaml:"ry"`
	Angle  float64 `yaml:"angle"`
}

// contains reports whether the point (x, y), in FOV fractions, lies inside.
func (e Ellipse) contains(x, y float64) bool {
	s, c := math.Sincos(e.Angle * math.Pi / 180)
	dx, dy := x-e.CX, y-e.CY
	u := c*dx + s*dy
	v := -s*dx + c*dy
	return (u*u)/(e.RX*e.RX)+(v*v)/(e.RY*e.RY) <= 1
}

// DefaultTissues returns approximate 3 T values.
func DefaultTissues() map[string]Tissue {
	return map[string]Tissue{
		"csf": {PD: 1.0, T1: 4.0, T2: 2.0},
		"gm":  {PD: 0.8, T1: 1.4, T2: 0.09},
		"wm":  {PD: 0.7, T1: 0.8, T2: 0.07},
	}
}

// DefaultEllipses returns the brain layout. Later ellipses overwrite
// earlier ones.
func DefaultEllipses() []Ellipse {
	return []Ellipse{
		{Tissue: "csf", RX: 0.40, RY: 0.36},
		{Tissue: "gm", RX: 0.38, RY: 0.34},
		{Tissue: "wm", RX: 0.29, RY: 0.25},
		{Tissue: "gm", CX: -0.10, CY: -0.06, RX: 0.05, RY: 0.045},
		{Tissue: "gm", CX: 0.10, CY: -0.06, RX: 0.05, RY: 0.045},
		{Tissue: "csf", CX: -0.05, CY: 0.03, RX: 0.035, RY: 0.11, Angle: -15},
		{Tissue: "csf", CX: 0.05, CY: 0.03, RX: 0.035, RY: 0.11, Angle: 15},
		{Tissue: "csf", CY: 0.33, RX: 0.015, RY: 0.04},
	}
}

// Phantom is an N x N voxel grid. Index ix runs along x (readout), iy
// along y (phase encode); maps are stored row-major as [iy*N + ix].
type Phantom struct {
	N   int
	FOV float64
	PD  []float64
	T1  []float64
	T2  []float64
}

// New returns an empty phantom.
func New(n int, fov float64) *Phantom {
	return &Phantom{
		N:   n,
		FOV: fov,
		PD:  make([]float64, n*n),
		T1:  make([]float64, n*n),
		T2:  make([]float64, n*n),
	}
}

// VoxelCenter returns the position of voxel (ix, iy) in metres. Voxel N/2
// sits at the isocentre.
func (p *Phantom) VoxelCenter(ix, iy int) (x, y float64) {
	d := p.VoxelSize()
	return float64(ix-p.N/2) * d, float64(iy-p.N/2) * d
}

// VoxelSize returns the edge length of one voxel.
func (p *Phantom) VoxelSize() float64 {
	return p.FOV / float64(p.N)
}

// Set assigns tissue t to voxel (ix, iy).
func (p *Phantom) Set(ix, iy int, t Tissue) {
	i := iy*p.N + ix
	p.PD[i], p.T1[i], p.T2[i] = t.PD, t.T1, t.T2
}

// Occupied returns the number of voxels with non-zero proton density.
func (p *Phantom) Occupied() int {
	var n int
	for _, pd := range p.PD {
		if pd > 0 {
			n++
		}
	}
	return n
}

// Brain paints the ellipses into an n x n phantom over fov.
func Brain(n int, fov float64, tissues map[string]Tissue, ellipses []Ellipse) (*Phantom, error) {
	if n <= 0 || fov <= 0 {
		return nil, fmt.Errorf("phantom needs positive size, got n=%d fov=%g", n, fov)
	}
	for _, e := range ellipses {
		if _, ok := tissues[e.Tissue]; !ok {
			return nil, fmt.Errorf("ellipse references unknown tissue %q", e.Tissue)
		}
		if e.RX <= 0 || e.RY <= 0 {
			return nil, fmt.Errorf("ellipse %q has non-positive radius", e.Tissue)
		}
	}

	p := New(n, fov)
	for iy := 0; iy < n; iy++ {
		for ix := 0; ix < n; ix++ {
			x, y := p.VoxelCenter(ix, iy)
			x, y = x/fov, y/fov
			for _, e := range ellipses {
				if e.contains(x, y) {
					p.Set(ix, iy, tissues[e.Tissue])
				}
			}
		}
	}
	return p, nil
}

// Point returns a phantom with a single occupied voxel at the isocentre.
func Point(n int, fov float64, t Tissue) *Phantom {
	p := New(n, fov)
	p.Set(n/2, n/2, t)
	return p
}
