package cluster

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/clustersim/internal/mesh"
	"github.com/san-kum/clustersim/internal/orbit"
	"github.com/san-kum/clustersim/internal/profile"
	"github.com/san-kum/clustersim/internal/refine"
	"github.com/san-kum/clustersim/internal/vecpot"
)

// InitBlock seeds the conserved state of b from the superposed halo profiles
// and, with a magnetic field, resamples the vector potential onto its faces.
// Each interior cell averages nsubzones^3 sub-samples.
func (c *Context) InitBlock(b *mesh.Block) error {
	if !b.Is3D() {
		return fatal(KindDimensionality, "init block",
			fmt.Errorf("%w: block %d has %v cells", ErrNot3D, b.ID, b.NX))
	}

	if c.lattice != nil {
		patch, err := c.lattice.Patch(b.Min, b.Max)
		if err != nil {
			return fatal(KindGeometry, "init block", err)
		}
		f, err := vecpot.Resample(b, patch, c.cfg.Mesh.MaxLevel)
		if err != nil {
			if errors.Is(err, vecpot.ErrSampleOutsidePatch) {
				return fatal(KindSampling, "init block", err)
			}
			return fatal(KindGeometry, "init block", err)
		}
		b.B = f
	}

	p := c.cfg.Problem
	st := c.state
	subGas := st.NumHalo == 2 && p.SubhaloGas
	nsub := p.NSubzones
	inv := 1.0 / float64(nsub)
	volInv := inv * inv * inv
	gm1 := p.Gamma - 1

	x1f, x2f, x3f := b.Xf[0], b.Xf[1], b.Xf[2]
	for k := b.Ks(); k <= b.Ke(); k++ {
		for j := b.Js(); j <= b.Je(); j++ {
			for i := b.Is(); i <= b.Ie(); i++ {
				var dens1, dens2, pres float64
				for kk := 0; kk < nsub; kk++ {
					x3 := x3f[k] + (float64(kk)+0.5)*b.Dxv[2][k]*inv
					for jj := 0; jj < nsub; jj++ {
						x2 := x2f[j] + (float64(jj)+0.5)*b.Dxv[1][j]*inv
						for ii := 0; ii < nsub; ii++ {
							x1 := x1f[i] + (float64(ii)+0.5)*b.Dxv[0][i]*inv

							r1 := distance(x1, x2, x3, st.Main.Pos)
							dens1 += c.main.Query(profile.Density, r1)
							pres += c.main.Query(profile.Pressure, r1)
							if subGas {
								r2 := distance(x1, x2, x3, st.Sub.Pos)
								dens2 += c.sub.Query(profile.Density, r2)
								pres += c.sub.Query(profile.Pressure, r2)
							}
						}
					}
				}
				dens1 *= volInv
				dens2 *= volInv
				pres *= volInv

				rho := dens1 + dens2
				m1 := dens1*st.Main.Vel[0] + dens2*st.Sub.Vel[0]
				m2 := dens1*st.Main.Vel[1] + dens2*st.Sub.Vel[1]
				m3 := dens1*st.Main.Vel[2] + dens2*st.Sub.Vel[2]
				b.Cons.Set(mesh.IDN, k, j, i, rho)
				b.Cons.Set(mesh.IM1, k, j, i, m1)
				b.Cons.Set(mesh.IM2, k, j, i, m2)
				b.Cons.Set(mesh.IM3, k, j, i, m3)
				if p.Barotropic {
					continue
				}

				e := pres / gm1
				if rho > 0 {
					e += 0.5 * (m1*m1 + m2*m2 + m3*m3) / rho
				}
				if b.B != nil {
					b1, b2, b3 := b.B.CellCentered(k-b.Ks(), j-b.Js(), i-b.Is())
					e += 0.5 * (b1*b1 + b2*b2 + b3*b3)
				}
				b.Cons.Set(mesh.IEN, k, j, i, e)
			}
		}
	}
	return nil
}

// SourceTerm applies the halo gravity to b for one sub-step. It reads b.Prim
// and b.Flux and mutates b.Cons only.
func (c *Context) SourceTerm(b *mesh.Block, time, dt float64) error {
	if c.state.Phase == orbit.Resuming {
		return ErrNotReady
	}
	c.field.Apply(b, dt)
	return nil
}

// CheckRefinement classifies b against the current halo positions.
func (c *Context) CheckRefinement(b *mesh.Block) (refine.Decision, error) {
	if c.state.Phase == orbit.Resuming {
		return refine.Neutral, ErrNotReady
	}
	return c.sensor.Check(b, c.state), nil
}

// BeginStep runs once per rank before the block hooks of a step. On the first
// step after a restore it recomputes the accelerations from the restored
// positions.
func (c *Context) BeginStep() error {
	if c.orbit.Phase() != orbit.Resuming {
		return nil
	}
	if err := c.orbit.Resume(); err != nil {
		return err
	}
	c.refresh()
	if c.isRoot() {
		c.log.WithFields(logrus.Fields{
			"dt_old":     c.state.DtOld,
			"separation": c.orbit.Distance(),
		}).Info("resumed trajectory")
	}
	return nil
}

// AdvanceStep moves the halos by dt once per rank after the block hooks of a
// step. Rank 0 logs the pre-step state at time to the trajectory sink.
func (c *Context) AdvanceStep(time, dt float64) error {
	if c.orbit.NumHalo() == 1 {
		return nil
	}
	if c.orbit.Phase() == orbit.Resuming {
		if err := c.BeginStep(); err != nil {
			return err
		}
	}
	if c.isRoot() && c.traj != nil {
		if !c.state.Fixed {
			if err := c.traj.Append("main", time, c.state.Main); err != nil {
				return fmt.Errorf("cluster: trajectory log: %w", err)
			}
		}
		if err := c.traj.Append("sub", time, c.state.Sub); err != nil {
			return fmt.Errorf("cluster: trajectory log: %w", err)
		}
	}
	if err := c.orbit.Step(dt); err != nil {
		return err
	}
	c.refresh()
	return nil
}

// Checkpoint is the 19-scalar restart state of the trajectory.
func (c *Context) Checkpoint() orbit.Checkpoint { return c.orbit.Checkpoint() }

// Restore replaces the trajectory with cp. The block hooks refuse to run
// until BeginStep has resumed it.
func (c *Context) Restore(cp orbit.Checkpoint) error {
	in, err := orbit.Restore(c.main, c.sub, cp, c.cfg.Problem.MainClusterFixed)
	if err != nil {
		return fatal(KindConfiguration, "restore", err)
	}
	c.orbit = in
	c.refresh()
	return nil
}

// Separation is the current main-to-subhalo distance, 0 for a lone halo.
func (c *Context) Separation() float64 {
	if c.orbit.NumHalo() == 1 {
		return 0
	}
	return c.orbit.Distance()
}

func distance(x1, x2, x3 float64, c orbit.Vec3) float64 {
	d1, d2, d3 := x1-c[0], x2-c[1], x3-c[2]
	return math.Sqrt(d1*d1 + d2*d2 + d3*d3)
}
