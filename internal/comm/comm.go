// Package comm is the process-group surface the cluster context needs:
// rank identity, broadcast of numeric arrays from a root, and a barrier.
//
// Self is a group of one. NewLocalGroup runs n members in one process, one per
// goroutine, and is what the tests and the in-process driver use to exercise
// the rank-0 load and broadcast path.
package comm

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrBadRoot = errors.New("comm: root rank out of range")
	ErrClosed  = errors.New("comm: group closed")
)

type Communicator interface {
	Rank() int
	Size() int
	// BcastFloat64s returns root's data on every member. Non-root members may
	// pass nil. The returned slice is never shared between members.
	BcastFloat64s(data []float64, root int) ([]float64, error)
	BcastInts(data []int, root int) ([]int, error)
	Barrier() error
}

type self struct{}

// Self is the single-process communicator.
func Self() Communicator { return self{} }

func (self) Rank() int { return 0 }
func (self) Size() int { return 1 }

func (self) BcastFloat64s(data []float64, root int) ([]float64, error) {
	if root != 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadRoot, root)
	}
	return append([]float64(nil), data...), nil
}

func (self) BcastInts(data []int, root int) ([]int, error) {
	if root != 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadRoot, root)
	}
	return append([]int(nil), data...), nil
}

func (self) Barrier() error { return nil }

// group is the shared state of an in-process group. The slot carries one
// broadcast payload between two barrier phases.
type group struct {
	size int

	mu      sync.Mutex
	cond    *sync.Cond
	arrived int
	gen     uint64
	closed  bool

	slot any
}

func (g *group) barrier() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	gen := g.gen
	g.arrived++
	if g.arrived == g.size {
		g.arrived = 0
		g.gen++
		g.cond.Broadcast()
		return nil
	}
	for gen == g.gen && !g.closed {
		g.cond.Wait()
	}
	if gen == g.gen {
		return ErrClosed
	}
	return nil
}

func (g *group) close() {
	g.mu.Lock()
	g.closed = true
	g.cond.Broadcast()
	g.mu.Unlock()
}

// bcast publishes root's payload, lets every member copy it out, then waits
// again so the slot is not reused before all members have read it.
func bcast[T any](m *Member, data []T, root int) ([]T, error) {
	g := m.g
	if root < 0 || root >= g.size {
		return nil, fmt.Errorf("%w: %d", ErrBadRoot, root)
	}
	if m.rank == root {
		g.mu.Lock()
		g.slot = data
		g.mu.Unlock()
	}
	if err := g.barrier(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	src, _ := g.slot.([]T)
	g.mu.Unlock()
	out := append([]T(nil), src...)
	if err := g.barrier(); err != nil {
		return nil, err
	}
	return out, nil
}

// Member is one rank of an in-process group.
type Member struct {
	g    *group
	rank int
}

// NewLocalGroup creates n members that must each be driven from their own
// goroutine; every collective call blocks until all n members make it.
func NewLocalGroup(n int) []*Member {
	if n < 1 {
		n = 1
	}
	g := &group{size: n}
	g.cond = sync.NewCond(&g.mu)
	members := make([]*Member, n)
	for i := range members {
		members[i] = &Member{g: g, rank: i}
	}
	return members
}

func (m *Member) Rank() int { return m.rank }
func (m *Member) Size() int { return m.g.size }

func (m *Member) BcastFloat64s(data []float64, root int) ([]float64, error) {
	return bcast(m, data, root)
}

func (m *Member) BcastInts(data []int, root int) ([]int, error) {
	return bcast(m, data, root)
}

func (m *Member) Barrier() error { return m.g.barrier() }

// Close releases every member blocked in a collective with ErrClosed. It is
// used to unwind the group when one member fails.
func (m *Member) Close() { m.g.close() }
