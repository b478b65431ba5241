package orbit

import "fmt"

// CheckpointLen is the number of scalars persisted across a restart.
const CheckpointLen = 19

// Checkpoint is the restart state of the trajectory. Current accelerations are
// left out; they are recomputed from positions on resume.
type Checkpoint struct {
	MainPos    Vec3    `json:"main_pos"`
	MainVel    Vec3    `json:"main_vel"`
	MainOldAcc Vec3    `json:"main_old_acc"`
	SubPos     Vec3    `json:"sub_pos"`
	SubVel     Vec3    `json:"sub_vel"`
	SubOldAcc  Vec3    `json:"sub_old_acc"`
	DtOld      float64 `json:"dt_old"`
}

func (in *Integrator) Checkpoint() Checkpoint {
	return Checkpoint{
		MainPos:    in.main.Pos,
		MainVel:    in.main.Vel,
		MainOldAcc: in.main.OldAcc,
		SubPos:     in.sub.Pos,
		SubVel:     in.sub.Vel,
		SubOldAcc:  in.sub.OldAcc,
		DtOld:      in.dtOld,
	}
}

// Flatten packs the checkpoint in a fixed order for broadcast or storage.
func (c Checkpoint) Flatten() []float64 {
	out := make([]float64, 0, CheckpointLen)
	for _, v := range []Vec3{c.MainPos, c.MainVel, c.MainOldAcc, c.SubPos, c.SubVel, c.SubOldAcc} {
		out = append(out, v[:]...)
	}
	return append(out, c.DtOld)
}

func Unflatten(data []float64) (Checkpoint, error) {
	if len(data) != CheckpointLen {
		return Checkpoint{}, fmt.Errorf("%w: got %d values, want %d", ErrCheckpointSize, len(data), CheckpointLen)
	}
	var c Checkpoint
	vecs := []*Vec3{&c.MainPos, &c.MainVel, &c.MainOldAcc, &c.SubPos, &c.SubVel, &c.SubOldAcc}
	for n, v := range vecs {
		copy(v[:], data[3*n:3*n+3])
	}
	c.DtOld = data[CheckpointLen-1]
	return c, nil
}
