package sim

import (
	"github.com/san-kum/clustersim/internal/config"
	"github.com/san-kum/clustersim/internal/mesh"
	"github.com/san-kum/clustersim/internal/orbit"
	"github.com/san-kum/clustersim/internal/refine"
	"github.com/san-kum/clustersim/internal/storage"
)

// Snapshot is what observers see after each step. Mesh is shared and must not
// be modified or retained past OnStep.
type Snapshot struct {
	Step       int
	Time       float64
	Mesh       *mesh.Mesh
	State      orbit.State
	Separation float64
}

type Metric interface {
	Name() string
	Observe(s Snapshot)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(s Snapshot)
}

// Checkpointer persists a restart point.
type Checkpointer interface {
	SaveCheckpoint(cp *storage.Checkpoint) error
}

type Options struct {
	Dt              float64
	Steps           int
	RefineEvery     int
	CheckpointEvery int
	// Workers bounds the per-block goroutines; 0 means one per CPU.
	Workers int
}

// OptionsFrom takes the driver settings from the run section.
func OptionsFrom(r config.RunConfig) Options {
	return Options{
		Dt:              r.Dt,
		Steps:           r.Steps,
		RefineEvery:     r.RefineEvery,
		CheckpointEvery: r.CheckpointEvery,
		Workers:         r.Workers,
	}
}

// Sweep tallies one refinement pass over the mesh.
type Sweep struct {
	Step   int
	Counts map[refine.Decision]int
}

type Result struct {
	Steps       int
	Time        float64
	Times       []float64
	Separations []float64
	Sweeps      []Sweep
	Metrics     map[string]float64
	Checkpoints int
}
