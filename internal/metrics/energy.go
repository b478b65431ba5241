package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/clustersim/internal/mesh"
	"github.com/san-kum/clustersim/internal/sim"
)

// Integral is the volume integral of conserved variable n over the interior
// of every block.
func Integral(m *mesh.Mesh, n int) float64 {
	var total float64
	for _, b := range m.Blocks {
		var s float64
		for k := b.Ks(); k <= b.Ke(); k++ {
			for j := b.Js(); j <= b.Je(); j++ {
				s += floats.Sum(b.Cons.Row(n, k, j)[b.Is() : b.Ie()+1])
			}
		}
		total += s * b.CellVolume(b.Ks(), b.Js(), b.Is())
	}
	return total
}

// TotalMass reports the gas mass on the mesh at the last observed step.
type TotalMass struct {
	mass float64
}

func NewTotalMass() *TotalMass { return &TotalMass{} }

func (t *TotalMass) Name() string { return "total_mass" }

func (t *TotalMass) Observe(s sim.Snapshot) { t.mass = Integral(s.Mesh, mesh.IDN) }

func (t *TotalMass) Value() float64 { return t.mass }

func (t *TotalMass) Reset() { t.mass = 0 }

// TotalMomentum reports the magnitude of the summed gas momentum.
type TotalMomentum struct {
	p float64
}

func NewTotalMomentum() *TotalMomentum { return &TotalMomentum{} }

func (t *TotalMomentum) Name() string { return "total_momentum" }

func (t *TotalMomentum) Observe(s sim.Snapshot) {
	p := []float64{
		Integral(s.Mesh, mesh.IM1),
		Integral(s.Mesh, mesh.IM2),
		Integral(s.Mesh, mesh.IM3),
	}
	t.p = floats.Norm(p, 2)
}

func (t *TotalMomentum) Value() float64 { return t.p }

func (t *TotalMomentum) Reset() { t.p = 0 }

// EnergyDrift is the largest relative change of the total gas energy seen
// since the first observation.
type EnergyDrift struct {
	initial  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift() *EnergyDrift { return &EnergyDrift{} }

func (e *EnergyDrift) Name() string { return "energy_drift" }

func (e *EnergyDrift) Observe(s sim.Snapshot) {
	energy := Integral(s.Mesh, mesh.IEN)
	if e.samples == 0 {
		e.initial = energy
	}
	e.samples++

	if e.initial != 0 {
		drift := math.Abs(energy-e.initial) / math.Abs(e.initial)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.maxDrift = 0
	e.samples = 0
}
