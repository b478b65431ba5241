package profile

import (
	"fmt"
	"math"
)

// Hernquist describes a Hernquist sphere in code units with G = 1: Mass is the
// total mass and Scale the break radius. Its gas traces the total density
// scaled by GasFraction and sits in hydrostatic equilibrium.
type Hernquist struct {
	Mass        float64 `yaml:"mass" json:"mass"`
	Scale       float64 `yaml:"scale" json:"scale"`
	RMax        float64 `yaml:"r_max" json:"r_max"`
	Points      int     `yaml:"points" json:"points"`
	GasFraction float64 `yaml:"gas_fraction" json:"gas_fraction"`
}

// Table samples h on a logarithmic radius grid from RMax/1e4 to RMax.
// Potential and field are stored as positive magnitudes.
func (h Hernquist) Table() (*Table, error) {
	if h.Mass <= 0 || h.Scale <= 0 {
		return nil, fmt.Errorf("%w: hernquist mass %g scale %g", ErrInvalidTable, h.Mass, h.Scale)
	}
	n := h.Points
	if n == 0 {
		n = 256
	}
	rmax := h.RMax
	if rmax == 0 {
		rmax = 10 * h.Scale
	}
	if n < 2 || rmax <= 0 {
		return nil, fmt.Errorf("%w: hernquist points %d r_max %g", ErrInvalidTable, n, rmax)
	}

	m, a := h.Mass, h.Scale
	rmin := rmax * 1e-4
	radius := make([]float64, n)
	dens := make([]float64, n)
	pres := make([]float64, n)
	pot := make([]float64, n)
	grav := make([]float64, n)
	for i := 0; i < n; i++ {
		r := rmin * math.Pow(rmax/rmin, float64(i)/float64(n-1))
		radius[i] = r
		dens[i] = h.GasFraction * m * a / (2 * math.Pi * r * math.Pow(r+a, 3))
		pot[i] = m / (r + a)
		grav[i] = m / ((r + a) * (r + a))
	}

	// Integrate dp/dr = -rho g inwards from a scale-height estimate at RMax.
	pres[n-1] = dens[n-1] * grav[n-1] * radius[n-1]
	for i := n - 2; i >= 0; i-- {
		dr := radius[i+1] - radius[i]
		pres[i] = pres[i+1] + 0.5*(dens[i]*grav[i]+dens[i+1]*grav[i+1])*dr
	}
	return New(radius, dens, pres, pot, grav)
}
