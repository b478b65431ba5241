package cluster

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/clustersim/internal/config"
	"github.com/san-kum/clustersim/internal/profile"
	"github.com/san-kum/clustersim/internal/vecpot"
)

// loadTable reads a halo profile on rank 0 and broadcasts it. The first
// broadcast carries the sample count, or -1 when the root failed.
func (c *Context) loadTable(name string, h config.HaloConfig, withGas bool, loader profile.Loader) (*profile.Table, error) {
	op := "load " + name + " profile"

	var (
		tbl     *profile.Table
		loadErr error
		header  []int
		payload []float64
	)
	if c.isRoot() {
		if h.Profile != "" {
			tbl, loadErr = loader.Load(h.Profile, withGas)
		} else {
			tbl, loadErr = h.Hernquist.Table()
		}
		if loadErr != nil {
			header = []int{-1}
		} else {
			header = []int{tbl.Len()}
			payload = packTable(tbl)
		}
	}

	header, err := c.comm.BcastInts(header, 0)
	if err != nil {
		return nil, fatal(KindLoad, op, err)
	}
	if loadErr != nil {
		return nil, fatal(KindLoad, op, loadErr)
	}
	n := header[0]
	if n < 0 {
		return nil, fatal(KindLoad, op, ErrRootLoad)
	}

	payload, err = c.comm.BcastFloat64s(payload, 0)
	if err != nil {
		return nil, fatal(KindLoad, op, err)
	}
	if len(payload) != 5*n {
		return nil, fatal(KindLoad, op, fmt.Errorf("received %d values for %d samples", len(payload), n))
	}
	if c.isRoot() {
		c.log.WithFields(logrus.Fields{
			"halo":       name,
			"num_points": n,
			"r_max":      tbl.RMax(),
			"mass":       tbl.Mass(),
		}).Info("loaded profile")
		return tbl, nil
	}

	tbl, err = profile.New(payload[:n], payload[n:2*n], payload[2*n:3*n], payload[3*n:4*n], payload[4*n:])
	if err != nil {
		return nil, fatal(KindLoad, op, err)
	}
	return tbl, nil
}

func packTable(t *profile.Table) []float64 {
	out := make([]float64, 0, 5*t.Len())
	out = append(out, t.Radius()...)
	for _, f := range []profile.Field{profile.Density, profile.Pressure, profile.Potential, profile.GravityField} {
		out = append(out, t.Column(f)...)
	}
	return out
}

// loadLattice reads the vector potential on rank 0, broadcasts it and checks
// that it pads the whole domain.
func (c *Context) loadLattice(loader vecpot.Loader) error {
	const op = "load vector potential"
	if c.isRoot() {
		c.log.WithField("file", c.cfg.Magnetic.MagFile).Info("reading magnetic field")
	}

	var (
		lat     *vecpot.Lattice
		loadErr error
		header  []int
		payload []float64
	)
	if c.isRoot() {
		lat, loadErr = loader.Load(c.cfg.Magnetic.MagFile)
		if loadErr != nil {
			header = []int{-1, -1, -1}
		} else {
			d := lat.Dims()
			header = d[:]
			payload = packLattice(lat)
		}
	}

	header, err := c.comm.BcastInts(header, 0)
	if err != nil {
		return fatal(KindLoad, op, err)
	}
	if loadErr != nil {
		return fatal(KindLoad, op, loadErr)
	}
	if len(header) != 3 || header[0] < 0 {
		return fatal(KindLoad, op, ErrRootLoad)
	}
	payload, err = c.comm.BcastFloat64s(payload, 0)
	if err != nil {
		return fatal(KindLoad, op, err)
	}

	if !c.isRoot() {
		lat, err = unpackLattice([3]int{header[0], header[1], header[2]}, payload)
		if err != nil {
			return fatal(KindLoad, op, err)
		}
	} else {
		c.log.WithFields(logrus.Fields{
			"nx": header[0], "ny": header[1], "nz": header[2],
		}).Info("loaded vector potential")
	}

	if err := lat.CheckDomain(c.cfg.Mesh.Min, c.cfg.Mesh.Max); err != nil {
		return fatal(KindGeometry, op, err)
	}
	c.lattice = lat
	return nil
}

func packLattice(l *vecpot.Lattice) []float64 {
	d := l.Dims()
	n := d[0] * d[1] * d[2]
	out := make([]float64, 0, d[0]+d[1]+d[2]+3*n)
	for a := 0; a < 3; a++ {
		out = append(out, l.Coords[a]...)
	}
	for comp := 0; comp < 3; comp++ {
		out = append(out, l.A[comp]...)
	}
	return out
}

func unpackLattice(d [3]int, data []float64) (*vecpot.Lattice, error) {
	n := d[0] * d[1] * d[2]
	if len(data) != d[0]+d[1]+d[2]+3*n {
		return nil, fmt.Errorf("received %d values for a %v lattice", len(data), d)
	}
	var coords, a [3][]float64
	off := 0
	for ax := 0; ax < 3; ax++ {
		coords[ax] = data[off : off+d[ax]]
		off += d[ax]
	}
	for comp := 0; comp < 3; comp++ {
		a[comp] = data[off : off+n]
		off += n
	}
	return vecpot.NewLattice(coords, a)
}
