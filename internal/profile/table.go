// Package profile holds the tabulated radial structure of a halo and answers
// power-law interpolation queries against it.
package profile

import (
	"fmt"
	"math"
)

type Field int

const (
	Density Field = iota
	Pressure
	Potential
	GravityField
)

func (f Field) String() string {
	switch f {
	case Density:
		return "density"
	case Pressure:
		return "pressure"
	case Potential:
		return "potential"
	case GravityField:
		return "gravity_field"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// ParseField maps a column name onto a Field.
func ParseField(name string) (Field, error) {
	switch name {
	case "density", "dens":
		return Density, nil
	case "pressure", "pres":
		return Pressure, nil
	case "potential", "gpot", "gravitational_potential":
		return Potential, nil
	case "gravity_field", "grav", "gravitational_field":
		return GravityField, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Table is one halo's radial profile. Potential and GravityField hold
// magnitudes (positive numbers); the signed values are returned by
// PotentialAt and AccelAt. A Table is read-only after construction and safe
// for concurrent use.
type Table struct {
	radius  []float64
	columns [4][]float64

	logR0    float64
	logRange float64
	mass     float64
}

// New builds a table from equal-length columns. Density and pressure may be
// nil for a gas-free halo, in which case they read as zero.
func New(radius, density, pressure, potential, gravity []float64) (*Table, error) {
	n := len(radius)
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 samples, got %d", ErrInvalidTable, n)
	}
	if radius[0] <= 0 {
		return nil, fmt.Errorf("%w: first radius must be positive, got %g", ErrInvalidTable, radius[0])
	}
	for i := 1; i < n; i++ {
		if !(radius[i] > radius[i-1]) {
			return nil, fmt.Errorf("%w: radius not strictly increasing at index %d", ErrInvalidTable, i)
		}
	}

	t := &Table{radius: append([]float64(nil), radius...)}
	cols := [4][]float64{density, pressure, potential, gravity}
	for f, c := range cols {
		switch {
		case c == nil && (Field(f) == Density || Field(f) == Pressure):
			t.columns[f] = make([]float64, n)
		case len(c) != n:
			return nil, fmt.Errorf("%w: %s has %d samples, radius has %d", ErrInvalidTable, Field(f), len(c), n)
		default:
			t.columns[f] = append([]float64(nil), c...)
		}
	}

	t.logR0 = math.Log10(radius[0])
	t.logRange = math.Log10(radius[n-1]) - t.logR0
	rmax := radius[n-1]
	t.mass = t.columns[GravityField][n-1] * rmax * rmax
	return t, nil
}

func (t *Table) Len() int { return len(t.radius) }

// RMax is the outermost tabulated radius.
func (t *Table) RMax() float64 { return t.radius[len(t.radius)-1] }

// Mass is the enclosed mass implied by the outermost gravity sample.
func (t *Table) Mass() float64 { return t.mass }

func (t *Table) Radius() []float64 { return t.radius }

func (t *Table) Column(f Field) []float64 { return t.columns[f] }

// Query interpolates field f at radius r as a power law between the two
// bracketing samples in log-radius. A non-positive lower bracket yields 0.
// Radii inside the first sample, the origin included, read the innermost
// value. Radii beyond RMax extrapolate the outermost segment; callers that
// need the point-mass law there use PotentialAt/AccelAt.
func (t *Table) Query(f Field, r float64) float64 {
	a := t.columns[f]
	n := len(t.radius)
	if r < t.radius[0] {
		r = t.radius[0]
	}

	idx := (math.Log10(r) - t.logR0) * float64(n-1) / t.logRange
	i := int(math.Floor(idx))
	if i < 0 {
		i = 0
	} else if i > n-2 {
		i = n - 2
	}

	if a[i] > 0 {
		return a[i] * math.Pow(a[i+1]/a[i], idx-float64(i))
	}
	return 0
}

// PotentialAt is the signed gravitational potential of the halo at distance r.
func (t *Table) PotentialAt(r float64) float64 {
	if r < t.RMax() {
		return -t.Query(Potential, r)
	}
	return -t.mass / r
}

// AccelAt is the signed radial gravitational acceleration at distance r.
func (t *Table) AccelAt(r float64) float64 {
	if r < t.RMax() {
		return -t.Query(GravityField, r)
	}
	return -t.mass / (r * r)
}
