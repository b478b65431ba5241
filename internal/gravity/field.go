// Package gravity turns the superposed halo potentials into momentum and
// energy source terms on a mesh block.
package gravity

import (
	"math"

	"github.com/san-kum/clustersim/internal/orbit"
	"github.com/san-kum/clustersim/internal/profile"
)

type Options struct {
	// RCut is the distance from the main halo beyond which the non-inertial
	// correction is damped with e-folding length RScale.
	RCut   float64
	RScale float64
	// Barotropic models carry no energy equation.
	Barotropic bool
}

// Field is the gravitational field of the halos frozen at one trajectory
// state. It is immutable and safe for concurrent use across blocks.
type Field struct {
	main, sub *profile.Table
	st        orbit.State
	opts      Options

	nonInertial bool
}

func NewField(main, sub *profile.Table, st orbit.State, opts Options) *Field {
	if st.NumHalo < 2 {
		sub = nil
	}
	return &Field{
		main:        main,
		sub:         sub,
		st:          st,
		opts:        opts,
		nonInertial: st.Fixed && sub != nil,
	}
}

// NonInertialActive reports whether the frame of the pinned main halo needs
// the pseudo-force correction.
func (f *Field) NonInertialActive() bool { return f.nonInertial }

// Potential is the summed gravitational potential of the halos at (x1, x2, x3).
func (f *Field) Potential(x1, x2, x3 float64) float64 {
	phi := f.main.PotentialAt(dist(x1, x2, x3, f.st.Main.Pos))
	if f.sub != nil {
		phi += f.sub.PotentialAt(dist(x1, x2, x3, f.st.Sub.Pos))
	}
	return phi
}

// NonInertial is the main halo's acceleration along axis, damped
// exponentially beyond RCut from the main halo centre.
func (f *Field) NonInertial(axis int, x1, x2, x3 float64) float64 {
	accel := f.st.Main.Acc[axis]
	r := dist(x1, x2, x3, f.st.Main.Pos)
	if r > f.opts.RCut {
		accel *= math.Exp(-(r - f.opts.RCut) / f.opts.RScale)
	}
	return accel
}

func (f *Field) State() orbit.State { return f.st }

func dist(x1, x2, x3 float64, c orbit.Vec3) float64 {
	d1, d2, d3 := x1-c[0], x2-c[1], x3-c[2]
	return math.Sqrt(d1*d1 + d2*d2 + d3*d3)
}
