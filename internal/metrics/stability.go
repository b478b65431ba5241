package metrics

import (
	"math"

	"github.com/san-kum/clustersim/internal/mesh"
	"github.com/san-kum/clustersim/internal/sim"
)

// Stability is the fraction of observed steps on which every interior cell
// held finite conserved values and a non-negative density.
type Stability struct {
	violations int
	samples    int
}

func NewStability() *Stability { return &Stability{} }

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Observe(snap sim.Snapshot) {
	s.samples++
	for _, b := range snap.Mesh.Blocks {
		if !healthy(b) {
			s.violations++
			return
		}
	}
}

func healthy(b *mesh.Block) bool {
	for k := b.Ks(); k <= b.Ke(); k++ {
		for j := b.Js(); j <= b.Je(); j++ {
			for i := b.Is(); i <= b.Ie(); i++ {
				if b.Cons.At(mesh.IDN, k, j, i) < 0 {
					return false
				}
				for n := 0; n < mesh.NHydro; n++ {
					v := b.Cons.At(n, k, j, i)
					if math.IsNaN(v) || math.IsInf(v, 0) {
						return false
					}
				}
			}
		}
	}
	return true
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
