// Package cluster binds the halo profiles, the trajectory integrator, the
// gravity source term, the refinement sensor and the vector-potential
// resampler into the capability set a host grid code drives: InitBlock,
// SourceTerm, CheckRefinement, BeginStep and AdvanceStep.
//
// A Context is built once per rank. Tables and the optional lattice are read
// on rank 0 and broadcast, so every rank holds identical copies and advances
// an identical trajectory.
package cluster

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/clustersim/internal/comm"
	"github.com/san-kum/clustersim/internal/config"
	"github.com/san-kum/clustersim/internal/gravity"
	"github.com/san-kum/clustersim/internal/orbit"
	"github.com/san-kum/clustersim/internal/profile"
	"github.com/san-kum/clustersim/internal/refine"
	"github.com/san-kum/clustersim/internal/vecpot"
)

// TrajectorySink receives one row per halo before every trajectory advance.
// Only rank 0 writes to it.
type TrajectorySink interface {
	Append(halo string, time float64, h orbit.Halo) error
}

type Options struct {
	Config *config.Config
	// Comm defaults to a single-process group.
	Comm comm.Communicator
	// Profiles and Lattices default to the file loaders.
	Profiles profile.Loader
	Lattices vecpot.Loader
	Log      logrus.FieldLogger
	// Trajectory may be nil.
	Trajectory TrajectorySink
	// Checkpoint restores the trajectory instead of starting cold.
	Checkpoint *orbit.Checkpoint
}

// Context is the process-wide state shared by every block on a rank.
//
// The per-block hooks only read it and may run concurrently. BeginStep,
// AdvanceStep and Restore mutate it and must not overlap with them.
type Context struct {
	cfg  *config.Config
	comm comm.Communicator
	log  logrus.FieldLogger
	traj TrajectorySink

	main, sub *profile.Table
	lattice   *vecpot.Lattice

	orbit  *orbit.Integrator
	sensor *refine.Sensor
	gopts  gravity.Options

	// field and state are the snapshot the block hooks read.
	field *gravity.Field
	state orbit.State
}

func New(opts Options) (*Context, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fatal(KindConfiguration, "new", fmt.Errorf("%w: no configuration", config.ErrInvalid))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fatal(KindConfiguration, "validate", err)
	}

	c := &Context{
		cfg:  cfg,
		comm: opts.Comm,
		log:  opts.Log,
		traj: opts.Trajectory,
		gopts: gravity.Options{
			RCut:       cfg.Problem.RCut,
			RScale:     cfg.Problem.RScale,
			Barotropic: cfg.Problem.Barotropic,
		},
	}
	if c.comm == nil {
		c.comm = comm.Self()
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	profiles := opts.Profiles
	if profiles == nil {
		profiles = profile.FileLoader{}
	}
	lattices := opts.Lattices
	if lattices == nil {
		lattices = vecpot.FileLoader{}
	}

	var err error
	c.main, err = c.loadTable("main", cfg.Halos.Main, true, profiles)
	if err != nil {
		return nil, err
	}
	if cfg.Problem.NumHalo == 2 {
		c.sub, err = c.loadTable("sub", cfg.Halos.Sub, cfg.Problem.SubhaloGas, profiles)
		if err != nil {
			return nil, err
		}
	}

	if opts.Checkpoint != nil {
		if err := c.Restore(*opts.Checkpoint); err != nil {
			return nil, err
		}
	} else {
		mainHalo, subHalo := InitialHalos(cfg)
		c.orbit, err = orbit.New(c.main, c.sub, mainHalo, subHalo, cfg.Problem.MainClusterFixed)
		if err != nil {
			return nil, fatal(KindConfiguration, "trajectory", err)
		}
		c.refresh()
	}

	if cfg.Magnetic.Enabled {
		if err := c.loadLattice(lattices); err != nil {
			return nil, err
		}
	}

	c.sensor = refine.NewSensor(refine.Options{
		MinDensity:      cfg.Refinement.MinRefineDensity,
		Radius:          [2]float64{cfg.Refinement.RefRadius1, cfg.Refinement.RefRadius2},
		RootLevel:       cfg.Mesh.RootLevel,
		LevelCap:        cfg.Refinement.SphereRefLevel,
		DerefineOutside: cfg.Refinement.DerefineOutsideRadius,
	})

	if err := c.comm.Barrier(); err != nil {
		return nil, fatal(KindLoad, "barrier", err)
	}
	if c.isRoot() {
		c.log.Info("finished with initialization")
	}
	return c, nil
}

// InitialHalos places the halos at the start of a run. A pinned or lone main
// halo sits at rest in the domain centre; z is always the centre plane and
// z velocities are zero.
func InitialHalos(cfg *config.Config) (mainHalo, subHalo orbit.Halo) {
	ctr := cfg.Mesh.Center()
	mainHalo.Pos = orbit.Vec3(ctr)
	if cfg.Problem.NumHalo == 1 {
		return mainHalo, subHalo
	}

	if !cfg.Problem.MainClusterFixed {
		m := cfg.Halos.Main
		mainHalo.Pos[0] = valueOr(m.XInit, ctr[0])
		mainHalo.Pos[1] = valueOr(m.YInit, ctr[1])
		mainHalo.Vel[0] = valueOr(m.VXInit, 0)
		mainHalo.Vel[1] = valueOr(m.VYInit, 0)
	}
	s := cfg.Halos.Sub
	subHalo.Pos = orbit.Vec3{valueOr(s.XInit, ctr[0]), valueOr(s.YInit, ctr[1]), ctr[2]}
	subHalo.Vel = orbit.Vec3{valueOr(s.VXInit, 0), valueOr(s.VYInit, 0), 0}
	return mainHalo, subHalo
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func (c *Context) isRoot() bool { return c.comm.Rank() == 0 }

// refresh rebuilds the snapshot read by the block hooks.
func (c *Context) refresh() {
	c.state = c.orbit.State()
	c.field = gravity.NewField(c.main, c.sub, c.state, c.gopts)
}

func (c *Context) Config() *config.Config { return c.cfg }

// State is the halo snapshot the block hooks currently see.
func (c *Context) State() orbit.State { return c.state }

func (c *Context) Field() *gravity.Field { return c.field }

func (c *Context) MainProfile() *profile.Table { return c.main }

// SubProfile is nil for a single-halo run.
func (c *Context) SubProfile() *profile.Table { return c.sub }

// Lattice is nil unless the magnetic field is enabled.
func (c *Context) Lattice() *vecpot.Lattice { return c.lattice }

func (c *Context) Comm() comm.Communicator { return c.comm }

func (c *Context) Sensor() *refine.Sensor { return c.sensor }
