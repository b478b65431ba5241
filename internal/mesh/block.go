// Package mesh describes the slice of the host grid that the cluster physics
// consumes: one block of cells with ghost zones, its coordinates, its fluid
// arrays and its face-centred magnetic field.
//
// All arrays cover the block including ghost zones. Interior cells along each
// axis run from Is..Ie (Js..Je, Ks..Ke); face index i is the left face of cell i.
package mesh

import "fmt"

// Conserved variable indices.
const (
	IDN = iota
	IM1
	IM2
	IM3
	IEN
	NHydro
)

// Primitive variable indices. Density shares IDN.
const (
	IVX = IM1
	IVY = IM2
	IVZ = IM3
	IPR = IEN
)

// Coords holds per-axis face positions, cell centres and cell widths.
// Xf[a] has one more entry than Xv[a].
type Coords struct {
	Xf  [3][]float64
	Xv  [3][]float64
	Dxv [3][]float64
}

type Block struct {
	ID     int
	Level  int
	NX     [3]int
	NGhost int

	// Min and Max are the interior extent of the block.
	Min, Max [3]float64

	Coords

	Cons *Array
	Prim *Array
	// Flux[a] carries the mass flux through faces normal to axis a, indexed as a
	// cell array whose entry (k, j, i) is the left face of that cell along a.
	Flux [3]*Array
	B    *FaceField
}

// NewBlock allocates a uniform block spanning [min, max] with nx interior cells
// per axis and ng ghost cells on every side.
func NewBlock(id, level int, nx [3]int, ng int, min, max [3]float64) (*Block, error) {
	for a := 0; a < 3; a++ {
		if nx[a] <= 0 {
			return nil, fmt.Errorf("mesh: block %d axis %d has %d cells", id, a, nx[a])
		}
		if max[a] <= min[a] {
			return nil, fmt.Errorf("mesh: block %d axis %d has empty extent [%g, %g]", id, a, min[a], max[a])
		}
	}
	if ng < 1 {
		return nil, fmt.Errorf("mesh: block %d needs at least one ghost cell, got %d", id, ng)
	}

	b := &Block{ID: id, Level: level, NX: nx, NGhost: ng, Min: min, Max: max}
	for a := 0; a < 3; a++ {
		ntot := nx[a] + 2*ng
		dx := (max[a] - min[a]) / float64(nx[a])
		b.Xf[a] = make([]float64, ntot+1)
		b.Xv[a] = make([]float64, ntot)
		b.Dxv[a] = make([]float64, ntot)
		for i := 0; i <= ntot; i++ {
			b.Xf[a][i] = min[a] + float64(i-ng)*dx
		}
		for i := 0; i < ntot; i++ {
			b.Xv[a][i] = 0.5 * (b.Xf[a][i] + b.Xf[a][i+1])
			b.Dxv[a][i] = dx
		}
	}

	n1, n2, n3 := b.Total(0), b.Total(1), b.Total(2)
	b.Cons = NewArray(NHydro, n3, n2, n1)
	b.Prim = NewArray(NHydro, n3, n2, n1)
	b.Flux[0] = NewArray(1, n3, n2, n1+1)
	b.Flux[1] = NewArray(1, n3, n2+1, n1)
	b.Flux[2] = NewArray(1, n3+1, n2, n1)
	return b, nil
}

// Total is the cell count along axis a including ghosts.
func (b *Block) Total(a int) int { return b.NX[a] + 2*b.NGhost }

func (b *Block) Is() int { return b.NGhost }
func (b *Block) Ie() int { return b.NGhost + b.NX[0] - 1 }
func (b *Block) Js() int { return b.NGhost }
func (b *Block) Je() int { return b.NGhost + b.NX[1] - 1 }
func (b *Block) Ks() int { return b.NGhost }
func (b *Block) Ke() int { return b.NGhost + b.NX[2] - 1 }

// Is3D reports whether the block has more than one cell along every axis.
func (b *Block) Is3D() bool {
	return b.NX[0] > 1 && b.NX[1] > 1 && b.NX[2] > 1
}

// EnableField allocates the face-centred magnetic field.
func (b *Block) EnableField() {
	b.B = NewFaceField(b.NX[0], b.NX[1], b.NX[2])
}

// CellVolume of interior cell (k, j, i).
func (b *Block) CellVolume(k, j, i int) float64 {
	return b.Dxv[0][i] * b.Dxv[1][j] * b.Dxv[2][k]
}
