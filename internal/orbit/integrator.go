// Package orbit integrates the restricted two-body trajectory of a main halo
// and a subhalo whose mutual gravity comes from their tabulated profiles.
//
// The scheme is a variable-step kick-drift update: velocities are kicked with
// a weighted blend of the current and previous accelerations, then positions
// drift with the updated velocity. The previous step size and acceleration are
// part of the state, so a restored integrator continues exactly where it
// stopped.
package orbit

import (
	"fmt"

	"github.com/san-kum/clustersim/internal/profile"
	"gonum.org/v1/gonum/floats"
)

type Vec3 [3]float64

type Halo struct {
	Pos    Vec3 `json:"pos"`
	Vel    Vec3 `json:"vel"`
	Acc    Vec3 `json:"acc"`
	OldAcc Vec3 `json:"old_acc"`
}

type Phase int

const (
	// ColdStart has no step history; the first step uses a plain half-step kick.
	ColdStart Phase = iota
	// Resuming holds restored state whose accelerations are not yet refreshed.
	Resuming
	Running
)

func (p Phase) String() string {
	switch p {
	case ColdStart:
		return "cold_start"
	case Resuming:
		return "resuming"
	case Running:
		return "running"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State is a value snapshot of both halos, safe to share across goroutines.
type State struct {
	Main, Sub Halo
	NumHalo   int
	Fixed     bool
	DtOld     float64
	Phase     Phase
}

type Integrator struct {
	mainTable *profile.Table
	subTable  *profile.Table
	fixed     bool

	main, sub Halo
	dtOld     float64
	phase     Phase
	steps     int
}

// New starts a cold integrator. sub may be nil for a single halo, in which
// case the main halo never moves. Accelerations are evaluated immediately.
func New(main, sub *profile.Table, mainHalo, subHalo Halo, fixed bool) (*Integrator, error) {
	if main == nil {
		return nil, ErrNoMainProfile
	}
	in := &Integrator{
		mainTable: main,
		subTable:  sub,
		fixed:     fixed || sub == nil,
		main:      Halo{Pos: mainHalo.Pos, Vel: mainHalo.Vel},
		sub:       Halo{Pos: subHalo.Pos, Vel: subHalo.Vel},
		dtOld:     -1,
		phase:     ColdStart,
	}
	if in.fixed {
		in.main.Vel = Vec3{}
	}
	in.updateAccel()
	return in, nil
}

// Restore rebuilds an integrator from a checkpoint. It enters Resuming and
// must pass through Resume before its accelerations are used.
func Restore(main, sub *profile.Table, cp Checkpoint, fixed bool) (*Integrator, error) {
	if main == nil {
		return nil, ErrNoMainProfile
	}
	return &Integrator{
		mainTable: main,
		subTable:  sub,
		fixed:     fixed || sub == nil,
		main:      Halo{Pos: cp.MainPos, Vel: cp.MainVel, OldAcc: cp.MainOldAcc},
		sub:       Halo{Pos: cp.SubPos, Vel: cp.SubVel, OldAcc: cp.SubOldAcc},
		dtOld:     cp.DtOld,
		phase:     Resuming,
	}, nil
}

// Resume recomputes accelerations from the restored positions and moves the
// integrator into Running.
func (in *Integrator) Resume() error {
	if in.phase != Resuming {
		return fmt.Errorf("%w: phase is %s", ErrNotResuming, in.phase)
	}
	in.updateAccel()
	in.phase = Running
	return nil
}

func (in *Integrator) Phase() Phase { return in.phase }

func (in *Integrator) NumHalo() int {
	if in.subTable == nil {
		return 1
	}
	return 2
}

// Weights returns the kick coefficients for the current and previous
// accelerations given step dt. Without a previous step they are (dt/2, 0).
func (in *Integrator) Weights(dt float64) (w, wOld float64) {
	return Weights(dt, in.dtOld)
}

func Weights(dt, dtOld float64) (w, wOld float64) {
	if dtOld <= 0 {
		return 0.5 * dt, 0
	}
	w = 0.5*dt + dtOld/3 + dt*dt/(6*dtOld)
	wOld = (dtOld*dtOld - dt*dt) / (6 * dtOld)
	return w, wOld
}

// Step advances both halos by dt. A single halo never moves.
func (in *Integrator) Step(dt float64) error {
	if !(dt > 0) {
		return fmt.Errorf("%w: %g", ErrInvalidStep, dt)
	}
	if in.phase == Resuming {
		if err := in.Resume(); err != nil {
			return err
		}
	}
	if in.subTable == nil {
		in.phase = Running
		in.dtOld = dt
		in.steps++
		return nil
	}

	w, wOld := in.Weights(dt)
	if !in.fixed {
		kickDrift(&in.main, dt, w, wOld)
	}
	kickDrift(&in.sub, dt, w, wOld)

	in.updateAccel()
	in.dtOld = dt
	in.phase = Running
	in.steps++
	return nil
}

func kickDrift(h *Halo, dt, w, wOld float64) {
	for a := 0; a < 3; a++ {
		h.Vel[a] += w*h.Acc[a] + wOld*h.OldAcc[a]
		h.Pos[a] += dt * h.Vel[a]
		h.OldAcc[a] = h.Acc[a]
	}
}

// updateAccel evaluates the mutual gravity of the two halos. The main halo's
// acceleration is computed even when it is pinned.
func (in *Integrator) updateAccel() {
	if in.subTable == nil {
		in.main.Acc = Vec3{}
		return
	}
	d := in.Separation()
	r := floats.Norm(d[:], 2)
	if r == 0 {
		in.main.Acc = Vec3{}
		in.sub.Acc = Vec3{}
		return
	}

	gMain := in.mainTable.AccelAt(r)
	gSub := in.subTable.AccelAt(r)
	for a := 0; a < 3; a++ {
		in.sub.Acc[a] = gMain * d[a] / r
		in.main.Acc[a] = -gSub * d[a] / r
	}
}

// Separation is the vector from the main halo to the subhalo.
func (in *Integrator) Separation() Vec3 {
	var d Vec3
	floats.SubTo(d[:], in.sub.Pos[:], in.main.Pos[:])
	return d
}

func (in *Integrator) Distance() float64 {
	d := in.Separation()
	return floats.Norm(d[:], 2)
}

func (in *Integrator) Steps() int { return in.steps }

func (in *Integrator) DtOld() float64 { return in.dtOld }

func (in *Integrator) State() State {
	return State{
		Main:    in.main,
		Sub:     in.sub,
		NumHalo: in.NumHalo(),
		Fixed:   in.fixed,
		DtOld:   in.dtOld,
		Phase:   in.phase,
	}
}
