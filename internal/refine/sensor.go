// Package refine classifies mesh blocks for adaptive refinement from the
// curvature of density and pressure and the proximity of the halo centres.
package refine

import (
	"fmt"

	"github.com/san-kum/clustersim/internal/mesh"
	"github.com/san-kum/clustersim/internal/orbit"
	"gonum.org/v1/gonum/floats"
)

type Decision int

const (
	Derefine Decision = -1
	Neutral  Decision = 0
	Refine   Decision = 1
)

func (d Decision) String() string {
	switch d {
	case Derefine:
		return "derefine"
	case Neutral:
		return "neutral"
	case Refine:
		return "refine"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// Curvature thresholds.
const (
	RefineAbove   = 0.6
	DerefineBelow = 0.3
)

type Options struct {
	// MinDensity is the floor the block's peak density must exceed before
	// curvature is trusted; below it the block derefines.
	MinDensity float64
	// Radius holds the proximity radii around the main halo and the subhalo.
	// A zero radius disables the rule for that halo.
	Radius [2]float64
	// RootLevel and LevelCap bound the proximity rule: with LevelCap > 0 it
	// stops forcing refinement once a block reaches RootLevel+LevelCap.
	// A capped block inside a radius keeps its curvature verdict but never
	// derefines.
	RootLevel int
	LevelCap  int
	// DerefineOutside turns a neutral verdict into derefine for blocks that
	// are outside every proximity radius.
	DerefineOutside bool
}

// Sensor is stateless between checks and safe for concurrent use.
type Sensor struct {
	opts Options
	r2   [2]float64
}

func NewSensor(opts Options) *Sensor {
	return &Sensor{
		opts: opts,
		r2:   [2]float64{opts.Radius[0] * opts.Radius[0], opts.Radius[1] * opts.Radius[1]},
	}
}

// Report is the breakdown behind one decision.
type Report struct {
	MaxDensity float64
	Curvature  float64
	DistSq     [2]float64
	// Near is set when the block lies within a proximity radius, Capped when
	// its level is past the proximity rule's cap.
	Near       bool
	Capped     bool
	Decision   Decision
}

// Check classifies b against the halo centres in st.
func (s *Sensor) Check(b *mesh.Block, st orbit.State) Decision {
	return s.Evaluate(b, st).Decision
}

func (s *Sensor) Evaluate(b *mesh.Block, st orbit.State) Report {
	var rep Report
	rep.MaxDensity = MaxDensity(b)

	rep.Decision = Derefine
	if rep.MaxDensity > s.opts.MinDensity {
		rep.Curvature = floats.Max([]float64{Curvature(b, mesh.IDN), Curvature(b, mesh.IPR)})
		switch {
		case rep.Curvature > RefineAbove:
			rep.Decision = Refine
		case rep.Curvature < DerefineBelow:
			rep.Decision = Derefine
		default:
			rep.Decision = Neutral
		}
	}

	rep.DistSq[0] = BoxDistanceSq(b.Min, b.Max, st.Main.Pos)
	rep.Near = rep.DistSq[0] < s.r2[0]
	if st.NumHalo > 1 {
		rep.DistSq[1] = BoxDistanceSq(b.Min, b.Max, st.Sub.Pos)
		rep.Near = rep.Near || rep.DistSq[1] < s.r2[1]
	}
	rep.Capped = s.opts.LevelCap > 0 && b.Level >= s.opts.RootLevel+s.opts.LevelCap

	switch {
	case rep.Near && !rep.Capped:
		rep.Decision = Refine
	case rep.Near:
		rep.Decision = max(rep.Decision, Neutral)
	case s.opts.DerefineOutside && rep.Decision < Refine:
		rep.Decision = Derefine
	}
	return rep
}

// MaxDensity is the largest interior density of b.
func MaxDensity(b *mesh.Block) float64 {
	m := 0.0
	for k := b.Ks(); k <= b.Ke(); k++ {
		for j := b.Js(); j <= b.Je(); j++ {
			row := b.Prim.Row(mesh.IDN, k, j)[b.Is() : b.Ie()+1]
			if v := floats.Max(row); v > m {
				m = v
			}
		}
	}
	return m
}

// BoxDistanceSq is the squared distance from c to the box [lo, hi]. Axes on
// which c lies within the box contribute nothing.
func BoxDistanceSq(lo, hi [3]float64, c orbit.Vec3) float64 {
	var d2 float64
	for a := 0; a < 3; a++ {
		l, r := lo[a]-c[a], hi[a]-c[a]
		if l*r > 0 {
			d2 += min(l*l, r*r)
		}
	}
	return d2
}
