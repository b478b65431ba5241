// Package vecpot seeds a divergence-free magnetic field from a magnetic vector
// potential tabulated on a uniform lattice. The potential is interpolated to
// cell faces with a triangular-shaped-cloud kernel and the face field is its
// discrete curl.
package vecpot

import (
	"fmt"
	"math"
)

// Lattice is a uniform 3-D grid of vector-potential samples. Component c of
// the potential at node (i, j, k) is A[c][(i*ny+j)*nz+k].
type Lattice struct {
	Coords  [3][]float64
	A       [3][]float64
	Spacing [3]float64
	// Min and Max are the outer cell edges of the lattice.
	Min, Max [3]float64
}

// NewLattice derives spacing and extent from the node coordinates. Each axis
// needs at least two nodes and every component must cover every node.
func NewLattice(coords [3][]float64, a [3][]float64) (*Lattice, error) {
	l := &Lattice{Coords: coords, A: a}
	n := 1
	for ax := 0; ax < 3; ax++ {
		c := coords[ax]
		if len(c) < 2 {
			return nil, fmt.Errorf("%w: axis %d has %d nodes", ErrInvalidLattice, ax, len(c))
		}
		d := c[1] - c[0]
		if !(d > 0) || math.IsInf(d, 0) {
			return nil, fmt.Errorf("%w: axis %d spacing %g", ErrInvalidLattice, ax, d)
		}
		l.Spacing[ax] = d
		l.Min[ax] = c[0] - 0.5*d
		l.Max[ax] = c[len(c)-1] + 0.5*d
		n *= len(c)
	}
	for comp := 0; comp < 3; comp++ {
		if len(a[comp]) != n {
			return nil, fmt.Errorf("%w: component %d has %d values, want %d",
				ErrInvalidLattice, comp, len(a[comp]), n)
		}
	}
	return l, nil
}

func (l *Lattice) Dims() [3]int {
	return [3]int{len(l.Coords[0]), len(l.Coords[1]), len(l.Coords[2])}
}

// CheckDomain verifies that the lattice covers [lo, hi] with two lattice
// cells of padding on every side.
func (l *Lattice) CheckDomain(lo, hi [3]float64) error {
	for a := 0; a < 3; a++ {
		d := l.Spacing[a]
		if lo[a] < l.Min[a]+2*d || hi[a] >= l.Max[a]-2*d {
			return fmt.Errorf("%w: axis %d domain [%g, %g] lattice [%g, %g]",
				ErrDomainCoverage, a, lo[a], hi[a], l.Min[a], l.Max[a])
		}
	}
	return nil
}

// Patch is the window of the lattice that serves one block.
type Patch struct {
	l     *Lattice
	Begin [3]int
	Dims  [3]int
	A     [3][]float64
}

// Patch cuts out the nodes needed to sample anywhere in [lo, hi], with two
// extra nodes on every side for the kernel and the differencing.
func (l *Lattice) Patch(lo, hi [3]float64) (*Patch, error) {
	p := &Patch{l: l}
	dims := l.Dims()
	var end [3]int
	for a := 0; a < 3; a++ {
		p.Begin[a] = int((lo[a]-l.Min[a])/l.Spacing[a]) - 2
		end[a] = int((hi[a]-l.Min[a])/l.Spacing[a]) + 2
		if p.Begin[a] < 0 || end[a] >= dims[a] {
			return nil, fmt.Errorf("%w: axis %d window [%d, %d] of %d nodes",
				ErrDomainCoverage, a, p.Begin[a], end[a], dims[a])
		}
		p.Dims[a] = end[a] - p.Begin[a] + 1
	}

	n := p.Dims[0] * p.Dims[1] * p.Dims[2]
	for comp := 0; comp < 3; comp++ {
		dst := make([]float64, 0, n)
		src := l.A[comp]
		for i := p.Begin[0]; i <= end[0]; i++ {
			for j := p.Begin[1]; j <= end[1]; j++ {
				off := (i*dims[1]+j)*dims[2] + p.Begin[2]
				dst = append(dst, src[off:off+p.Dims[2]]...)
			}
		}
		p.A[comp] = dst
	}
	return p, nil
}

// Sample interpolates component comp of the potential at (x, y, z). A point
// whose nearest node sits on the patch edge is rejected rather than clamped.
func (p *Patch) Sample(comp int, x, y, z float64) (float64, error) {
	l := p.l
	pos := [3]float64{x, y, z}
	var node, local [3]int
	for a := 0; a < 3; a++ {
		node[a] = int(math.Floor((pos[a] - l.Min[a]) / l.Spacing[a]))
		local[a] = node[a] - p.Begin[a]
		if local[a] <= 0 || local[a] >= p.Dims[a]-1 {
			return 0, fmt.Errorf("%w: (%g, %g, %g) axis %d", ErrSampleOutsidePatch, x, y, z, a)
		}
	}

	var wx, wy, wz [3]float64
	for m := -1; m <= 1; m++ {
		wx[m+1] = TSCWeight((x - l.Coords[0][node[0]+m]) / l.Spacing[0])
		wy[m+1] = TSCWeight((y - l.Coords[1][node[1]+m]) / l.Spacing[1])
		wz[m+1] = TSCWeight((z - l.Coords[2][node[2]+m]) / l.Spacing[2])
	}

	field := p.A[comp]
	ny, nz := p.Dims[1], p.Dims[2]
	var pot float64
	for di := -1; di <= 1; di++ {
		for dj := -1; dj <= 1; dj++ {
			base := ((local[0]+di)*ny + local[1] + dj) * nz
			for dk := -1; dk <= 1; dk++ {
				pot += field[base+local[2]+dk] * wx[di+1] * wy[dj+1] * wz[dk+1]
			}
		}
	}
	return pot, nil
}

// TSCWeight is the triangular-shaped-cloud kernel at offset x in lattice
// cells.
func TSCWeight(x float64) float64 {
	x = math.Abs(x)
	switch {
	case x <= 0.5:
		return 0.75 - x*x
	case x <= 1.5:
		return 0.5 * (1.5 - x) * (1.5 - x)
	}
	return 0
}
