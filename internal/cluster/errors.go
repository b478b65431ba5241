package cluster

import (
	"errors"
	"fmt"
)

// Kind classifies a fatal error. None of them is recovered locally.
type Kind int

const (
	KindConfiguration Kind = iota
	KindGeometry
	KindDimensionality
	KindSampling
	KindLoad
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindGeometry:
		return "geometry"
	case KindDimensionality:
		return "dimensionality"
	case KindSampling:
		return "sampling"
	case KindLoad:
		return "load"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var (
	ErrNot3D = errors.New("cluster: problem can only be run in 3D")

	// ErrRootLoad is returned on non-root ranks when the root failed to load
	// a table it was about to broadcast.
	ErrRootLoad = errors.New("cluster: load failed on root rank")

	// ErrNotReady indicates a per-block hook called on a restored context
	// before BeginStep refreshed the halo accelerations.
	ErrNotReady = errors.New("cluster: trajectory not resumed")
)

// FatalError aborts the run. Op names the step that failed.
type FatalError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("cluster: %s error in %s: %v", e.Kind, e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

func fatal(kind Kind, op string, err error) error {
	return &FatalError{Kind: kind, Op: op, Err: err}
}

// KindOf reports the kind of the first FatalError in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}
