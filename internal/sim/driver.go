// Package sim is an in-process stand-in for the host grid code. It owns a
// uniform mesh of root blocks and drives the cluster hooks through the outer
// step loop the way the host would: per-block work fans out to a bounded set
// of goroutines, per-rank work runs once between them.
package sim

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/clustersim/internal/cluster"
	"github.com/san-kum/clustersim/internal/comm"
	"github.com/san-kum/clustersim/internal/config"
	"github.com/san-kum/clustersim/internal/mesh"
	"github.com/san-kum/clustersim/internal/refine"
	"github.com/san-kum/clustersim/internal/storage"
)

// NewMesh partitions the configured domain into root blocks.
func NewMesh(m config.MeshConfig) (*mesh.Mesh, error) {
	return mesh.New(mesh.Spec{
		Min:       m.Min,
		Max:       m.Max,
		Cells:     m.Cells,
		BlockSize: m.BlockCells,
		NGhost:    m.Ghost,
		RootLevel: m.RootLevel,
		MaxLevel:  m.MaxLevel,
	})
}

// Driver runs the step loop of one rank. Within a group every rank shares the
// same mesh and owns the blocks whose ID is congruent to its rank.
type Driver struct {
	cluster *cluster.Context
	comm    comm.Communicator
	mesh    *mesh.Mesh
	owned   []*mesh.Block
	opts    Options
	log     logrus.FieldLogger

	gamma      float64
	barotropic bool

	metrics   []Metric
	observers []Observer
	ckpt      Checkpointer

	step int
	time float64
}

func NewDriver(c *cluster.Context, m *mesh.Mesh, opts Options, log logrus.FieldLogger) *Driver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	cm := c.Comm()
	d := &Driver{
		cluster:    c,
		comm:       cm,
		mesh:       m,
		opts:       opts,
		log:        log,
		gamma:      c.Config().Problem.Gamma,
		barotropic: c.Config().Problem.Barotropic,
	}
	for _, b := range m.Blocks {
		if b.ID%cm.Size() == cm.Rank() {
			d.owned = append(d.owned, b)
		}
	}
	return d
}

func (d *Driver) AddMetric(m Metric)     { d.metrics = append(d.metrics, m) }
func (d *Driver) AddObserver(o Observer) { d.observers = append(d.observers, o) }

// SetCheckpointer enables periodic checkpoints on rank 0.
func (d *Driver) SetCheckpointer(c Checkpointer) { d.ckpt = c }

func (d *Driver) Mesh() *mesh.Mesh { return d.mesh }
func (d *Driver) Step() int        { return d.step }
func (d *Driver) Time() float64    { return d.time }

func (d *Driver) isRoot() bool { return d.comm.Rank() == 0 }

// forEach runs fn over blocks with at most Workers goroutines and returns the
// first error.
func (d *Driver) forEach(ctx context.Context, blocks []*mesh.Block, fn func(*mesh.Block) error) error {
	workers := d.opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, b := range blocks {
		b := b
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(b)
		})
	}
	return g.Wait()
}

func (d *Driver) primitives(b *mesh.Block) {
	mesh.FillGhosts(b, b.Cons)
	mesh.ConsToPrim(b, d.gamma, d.barotropic)
}

// Init seeds the owned blocks from the halo profiles.
func (d *Driver) Init(ctx context.Context) error {
	err := d.forEach(ctx, d.owned, func(b *mesh.Block) error {
		if err := d.cluster.InitBlock(b); err != nil {
			return err
		}
		d.primitives(b)
		return nil
	})
	if err != nil {
		return err
	}
	if err := d.comm.Barrier(); err != nil {
		return err
	}
	if d.isRoot() {
		d.log.WithField("blocks", len(d.mesh.Blocks)).Info("initialized mesh")
	}
	return nil
}

// Restore loads the owned blocks and the loop position from cp. The cluster
// context must have been built from cp.Orbit.
func (d *Driver) Restore(ctx context.Context, cp *storage.Checkpoint) error {
	byID := make(map[int]storage.BlockState, len(cp.Blocks))
	for _, s := range cp.Blocks {
		byID[s.ID] = s
	}
	err := d.forEach(ctx, d.owned, func(b *mesh.Block) error {
		s, ok := byID[b.ID]
		if !ok {
			return fmt.Errorf("sim: checkpoint has no block %d", b.ID)
		}
		if err := s.RestoreInto(b); err != nil {
			return err
		}
		d.primitives(b)
		return nil
	})
	if err != nil {
		return err
	}
	d.step, d.time = cp.Step, cp.Time
	return d.comm.Barrier()
}

// Run advances Steps steps from the current position. On rank 0 the result
// carries the separation history, refinement sweeps and metric values.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	if !(d.opts.Dt > 0) {
		return nil, fmt.Errorf("sim: dt must be positive, got %g", d.opts.Dt)
	}
	res := &Result{
		Times:       make([]float64, 0, d.opts.Steps),
		Separations: make([]float64, 0, d.opts.Steps),
		Metrics:     make(map[string]float64),
	}
	for _, m := range d.metrics {
		m.Reset()
	}

	dt := d.opts.Dt
	for n := 0; n < d.opts.Steps; n++ {
		if err := ctx.Err(); err != nil {
			return d.finish(res), err
		}
		if err := d.advance(ctx, dt); err != nil {
			return d.finish(res), fmt.Errorf("sim: step %d: %w", d.step, err)
		}

		if err := d.comm.Barrier(); err != nil {
			return d.finish(res), err
		}
		if d.isRoot() {
			if err := d.afterStep(ctx, res); err != nil {
				return d.finish(res), err
			}
		}
		if err := d.comm.Barrier(); err != nil {
			return d.finish(res), err
		}
	}
	return d.finish(res), nil
}

func (d *Driver) advance(ctx context.Context, dt float64) error {
	if err := d.cluster.BeginStep(); err != nil {
		return err
	}
	t := d.time
	err := d.forEach(ctx, d.owned, func(b *mesh.Block) error {
		mesh.UpwindMassFlux(b)
		if err := d.cluster.SourceTerm(b, t, dt); err != nil {
			return err
		}
		d.primitives(b)
		return nil
	})
	if err != nil {
		return err
	}
	if err := d.cluster.AdvanceStep(t, dt); err != nil {
		return err
	}
	d.time += dt
	d.step++
	return nil
}

// afterStep runs on rank 0 while every other rank waits at the barrier, so
// the whole mesh is quiescent.
func (d *Driver) afterStep(ctx context.Context, res *Result) error {
	snap := Snapshot{
		Step:       d.step,
		Time:       d.time,
		Mesh:       d.mesh,
		State:      d.cluster.State(),
		Separation: d.cluster.Separation(),
	}
	res.Times = append(res.Times, d.time)
	res.Separations = append(res.Separations, snap.Separation)

	if d.opts.RefineEvery > 0 && d.step%d.opts.RefineEvery == 0 {
		sw, err := d.Sweep(ctx)
		if err != nil {
			return err
		}
		res.Sweeps = append(res.Sweeps, sw)
		d.log.WithFields(logrus.Fields{
			"step":     d.step,
			"refine":   sw.Counts[refine.Refine],
			"neutral":  sw.Counts[refine.Neutral],
			"derefine": sw.Counts[refine.Derefine],
		}).Info("refinement sweep")
	}

	for _, m := range d.metrics {
		m.Observe(snap)
	}
	for _, o := range d.observers {
		o.OnStep(snap)
	}

	if d.ckpt != nil && d.opts.CheckpointEvery > 0 && d.step%d.opts.CheckpointEvery == 0 {
		if err := d.ckpt.SaveCheckpoint(d.Checkpoint()); err != nil {
			return fmt.Errorf("sim: checkpoint: %w", err)
		}
		res.Checkpoints++
		d.log.WithFields(logrus.Fields{"step": d.step, "time": d.time}).Info("checkpoint written")
	}

	d.log.WithFields(logrus.Fields{
		"step":       d.step,
		"time":       d.time,
		"separation": snap.Separation,
	}).Debug("step done")
	return nil
}

// Sweep asks the refinement sensor about every block of the mesh.
func (d *Driver) Sweep(ctx context.Context) (Sweep, error) {
	sw := Sweep{Step: d.step, Counts: make(map[refine.Decision]int)}
	var mu sync.Mutex
	err := d.forEach(ctx, d.mesh.Blocks, func(b *mesh.Block) error {
		dec, err := d.cluster.CheckRefinement(b)
		if err != nil {
			return err
		}
		mu.Lock()
		sw.Counts[dec]++
		mu.Unlock()
		return nil
	})
	return sw, err
}

// Checkpoint captures the whole mesh and the trajectory at the current step.
func (d *Driver) Checkpoint() *storage.Checkpoint {
	cp := &storage.Checkpoint{
		Step:   d.step,
		Time:   d.time,
		Dt:     d.opts.Dt,
		Orbit:  d.cluster.Checkpoint(),
		Blocks: make([]storage.BlockState, len(d.mesh.Blocks)),
	}
	for i, b := range d.mesh.Blocks {
		cp.Blocks[i] = storage.Snapshot(b)
	}
	return cp
}

func (d *Driver) finish(res *Result) *Result {
	res.Steps = d.step
	res.Time = d.time
	for _, m := range d.metrics {
		res.Metrics[m.Name()] = m.Value()
	}
	return res
}
