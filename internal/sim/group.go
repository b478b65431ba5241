package sim

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/clustersim/internal/comm"
)

// SetupFunc builds and initializes the driver of one group member.
type SetupFunc func(ctx context.Context, m *comm.Member) (*Driver, error)

// RunGroup drives one rank per member, each on its own goroutine, and returns
// rank 0's result. The first failure closes the group so that members blocked
// in a collective unwind, and it is the error reported.
func RunGroup(ctx context.Context, members []*comm.Member, setup SetupFunc) (*Result, error) {
	var (
		once  sync.Once
		first error
	)
	fail := func(err error) {
		once.Do(func() {
			first = err
			members[0].Close()
		})
	}

	results := make([]*Result, len(members))
	var g errgroup.Group
	for _, m := range members {
		m := m
		g.Go(func() error {
			d, err := setup(ctx, m)
			if err != nil {
				fail(err)
				return err
			}
			res, err := d.Run(ctx)
			results[m.Rank()] = res
			if err != nil {
				fail(err)
			}
			return err
		})
	}
	_ = g.Wait()
	return results[0], first
}
