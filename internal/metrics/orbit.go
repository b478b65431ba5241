package metrics

import (
	"math"

	"github.com/san-kum/clustersim/internal/sim"
)

// Pericentre is the closest approach of the subhalo to the main halo.
type Pericentre struct {
	min float64
}

func NewPericentre() *Pericentre { return &Pericentre{min: math.Inf(1)} }

func (p *Pericentre) Name() string { return "pericentre" }

func (p *Pericentre) Observe(s sim.Snapshot) {
	if s.State.NumHalo < 2 {
		return
	}
	p.min = math.Min(p.min, s.Separation)
}

// Value is 0 until a two-halo step has been observed.
func (p *Pericentre) Value() float64 {
	if math.IsInf(p.min, 1) {
		return 0
	}
	return p.min
}

func (p *Pericentre) Reset() { p.min = math.Inf(1) }
