package storage

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/san-kum/clustersim/internal/mesh"
	"github.com/san-kum/clustersim/internal/orbit"
)

// Checkpoint is everything needed to continue a run: the outer-loop position,
// the trajectory restart scalars and the conserved state of every block.
type Checkpoint struct {
	Step   int              `json:"step"`
	Time   float64          `json:"time"`
	Dt     float64          `json:"dt"`
	Orbit  orbit.Checkpoint `json:"orbit"`
	Blocks []BlockState     `json:"blocks"`
}

type BlockState struct {
	ID    int       `json:"id"`
	Level int       `json:"level"`
	Cons  []float64 `json:"cons"`
	BX1   []float64 `json:"bx1,omitempty"`
	BX2   []float64 `json:"bx2,omitempty"`
	BX3   []float64 `json:"bx3,omitempty"`
}

// Snapshot copies the conserved variables and face field of b.
func Snapshot(b *mesh.Block) BlockState {
	s := BlockState{ID: b.ID, Level: b.Level, Cons: clone(b.Cons.Data)}
	if b.B != nil {
		s.BX1 = clone(b.B.X1.Data)
		s.BX2 = clone(b.B.X2.Data)
		s.BX3 = clone(b.B.X3.Data)
	}
	return s
}

// RestoreInto copies s back into b, which must have the same shape.
func (s BlockState) RestoreInto(b *mesh.Block) error {
	if s.ID != b.ID {
		return fmt.Errorf("storage: checkpoint block %d restored into block %d", s.ID, b.ID)
	}
	if len(s.Cons) != len(b.Cons.Data) {
		return fmt.Errorf("storage: block %d has %d conserved values, checkpoint has %d",
			b.ID, len(b.Cons.Data), len(s.Cons))
	}
	b.Level = s.Level
	copy(b.Cons.Data, s.Cons)

	if s.BX1 == nil {
		b.B = nil
		return nil
	}
	if b.B == nil {
		b.EnableField()
	}
	for _, f := range []struct {
		dst *mesh.Array
		src []float64
	}{{b.B.X1, s.BX1}, {b.B.X2, s.BX2}, {b.B.X3, s.BX3}} {
		if len(f.src) != len(f.dst.Data) {
			return fmt.Errorf("storage: block %d face field size mismatch", b.ID)
		}
		copy(f.dst.Data, f.src)
	}
	return nil
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// SaveCheckpoint writes cp as gzipped JSON, replacing the previous checkpoint
// only once the new one is complete.
func (r *Run) SaveCheckpoint(cp *Checkpoint) error {
	path := filepath.Join(r.Dir, checkpointFile)
	tmp, err := os.CreateTemp(r.Dir, checkpointFile+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	zw := gzip.NewWriter(tmp)
	if err := json.NewEncoder(zw).Encode(cp); err != nil {
		tmp.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (r *Run) LoadCheckpoint() (*Checkpoint, error) {
	f, err := os.Open(filepath.Join(r.Dir, checkpointFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoCheckpoint, r.ID)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("storage: checkpoint %s: %w", r.ID, err)
	}
	defer zr.Close()

	var cp Checkpoint
	if err := json.NewDecoder(zr).Decode(&cp); err != nil {
		return nil, fmt.Errorf("storage: checkpoint %s: %w", r.ID, err)
	}
	return &cp, nil
}
