package mesh

import (
	"fmt"
	"math"
)

// Mesh is a uniform partition of a box domain into equally sized root blocks.
// It stands in for the host's block tree; refinement decisions are reported,
// not applied.
type Mesh struct {
	Min, Max  [3]float64
	Cells     [3]int
	BlockSize [3]int
	NGhost    int
	RootLevel int
	MaxLevel  int
	Blocks    []*Block
}

type Spec struct {
	Min, Max  [3]float64
	Cells     [3]int
	BlockSize [3]int
	NGhost    int
	RootLevel int
	MaxLevel  int
}

func New(s Spec) (*Mesh, error) {
	m := &Mesh{
		Min:       s.Min,
		Max:       s.Max,
		Cells:     s.Cells,
		BlockSize: s.BlockSize,
		NGhost:    s.NGhost,
		RootLevel: s.RootLevel,
		MaxLevel:  s.MaxLevel,
	}
	if m.MaxLevel < m.RootLevel {
		m.MaxLevel = m.RootLevel
	}

	var nb [3]int
	for a := 0; a < 3; a++ {
		if s.BlockSize[a] <= 0 || s.Cells[a]%s.BlockSize[a] != 0 {
			return nil, fmt.Errorf("mesh: %d cells along axis %d not divisible by block size %d",
				s.Cells[a], a, s.BlockSize[a])
		}
		nb[a] = s.Cells[a] / s.BlockSize[a]
	}

	id := 0
	for bk := 0; bk < nb[2]; bk++ {
		for bj := 0; bj < nb[1]; bj++ {
			for bi := 0; bi < nb[0]; bi++ {
				loc := [3]int{bi, bj, bk}
				var lo, hi [3]float64
				for a := 0; a < 3; a++ {
					w := (s.Max[a] - s.Min[a]) / float64(nb[a])
					lo[a] = s.Min[a] + float64(loc[a])*w
					hi[a] = s.Min[a] + float64(loc[a]+1)*w
				}
				b, err := NewBlock(id, s.RootLevel, s.BlockSize, s.NGhost, lo, hi)
				if err != nil {
					return nil, err
				}
				m.Blocks = append(m.Blocks, b)
				id++
			}
		}
	}
	return m, nil
}

// Center of the domain.
func (m *Mesh) Center() [3]float64 {
	var c [3]float64
	for a := 0; a < 3; a++ {
		c[a] = 0.5 * (m.Min[a] + m.Max[a])
	}
	return c
}

// FillGhosts copies the nearest interior value of every variable into the
// ghost zones of arr (zero-gradient extension).
func FillGhosts(b *Block, arr *Array) {
	is, ie, js, je, ks, ke := b.Is(), b.Ie(), b.Js(), b.Je(), b.Ks(), b.Ke()
	for n := 0; n < arr.NVar; n++ {
		for k := 0; k < arr.NZ; k++ {
			kk := clamp(k, ks, ke)
			for j := 0; j < arr.NY; j++ {
				jj := clamp(j, js, je)
				for i := 0; i < arr.NX; i++ {
					ii := clamp(i, is, ie)
					if ii == i && jj == j && kk == k {
						continue
					}
					arr.Set(n, k, j, i, arr.At(n, kk, jj, ii))
				}
			}
		}
	}
}

// ConsToPrim converts conserved to primitive variables over the whole block
// for an ideal gas with adiabatic index gamma. Barotropic models keep the
// energy slot at zero pressure.
func ConsToPrim(b *Block, gamma float64, barotropic bool) {
	gm1 := gamma - 1
	for k := 0; k < b.Total(2); k++ {
		for j := 0; j < b.Total(1); j++ {
			for i := 0; i < b.Total(0); i++ {
				d := b.Cons.At(IDN, k, j, i)
				m1 := b.Cons.At(IM1, k, j, i)
				m2 := b.Cons.At(IM2, k, j, i)
				m3 := b.Cons.At(IM3, k, j, i)
				b.Prim.Set(IDN, k, j, i, d)
				if d <= 0 {
					b.Prim.Set(IVX, k, j, i, 0)
					b.Prim.Set(IVY, k, j, i, 0)
					b.Prim.Set(IVZ, k, j, i, 0)
					b.Prim.Set(IPR, k, j, i, 0)
					continue
				}
				b.Prim.Set(IVX, k, j, i, m1/d)
				b.Prim.Set(IVY, k, j, i, m2/d)
				b.Prim.Set(IVZ, k, j, i, m3/d)
				if barotropic {
					b.Prim.Set(IPR, k, j, i, 0)
					continue
				}
				e := b.Cons.At(IEN, k, j, i) - 0.5*(m1*m1+m2*m2+m3*m3)/d
				if b.B != nil && inInterior(b, k, j, i) {
					b1, b2, b3 := b.B.CellCentered(k-b.Ks(), j-b.Js(), i-b.Is())
					e -= 0.5 * (b1*b1 + b2*b2 + b3*b3)
				}
				b.Prim.Set(IPR, k, j, i, math.Max(gm1*e, 0))
			}
		}
	}
}

// UpwindMassFlux fills Flux with the donor-cell mass flux built from Prim.
func UpwindMassFlux(b *Block) {
	for a := 0; a < 3; a++ {
		f := b.Flux[a]
		for k := 0; k < f.NZ; k++ {
			for j := 0; j < f.NY; j++ {
				for i := 0; i < f.NX; i++ {
					lk, lj, li := k, j, i
					switch a {
					case 0:
						li--
					case 1:
						lj--
					case 2:
						lk--
					}
					if li < 0 || lj < 0 || lk < 0 || i >= b.Total(0) || j >= b.Total(1) || k >= b.Total(2) {
						f.Set(0, k, j, i, 0)
						continue
					}
					vl := b.Prim.At(IVX+a, lk, lj, li)
					vr := b.Prim.At(IVX+a, k, j, i)
					v := 0.5 * (vl + vr)
					if v >= 0 {
						f.Set(0, k, j, i, b.Prim.At(IDN, lk, lj, li)*v)
					} else {
						f.Set(0, k, j, i, b.Prim.At(IDN, k, j, i)*v)
					}
				}
			}
		}
	}
}

func inInterior(b *Block, k, j, i int) bool {
	return i >= b.Is() && i <= b.Ie() && j >= b.Js() && j <= b.Je() && k >= b.Ks() && k <= b.Ke()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
