package main

import (
	"fmt"
	"io"

	"github.com/san-kum/clustersim/internal/sim"
	"github.com/san-kum/clustersim/internal/viz"
)

// progress redraws a step bar on one terminal line as rank 0 finishes steps.
type progress struct {
	out   io.Writer
	from  int
	total int
	width int
}

func newProgress(out io.Writer, from, total int) *progress {
	return &progress{out: out, from: from, total: total, width: 30}
}

func (p *progress) OnStep(s sim.Snapshot) {
	done := s.Step - p.from
	fmt.Fprintf(p.out, "\r%s %d/%d  t=%.4g", viz.ProgressBar(float64(done)/float64(p.total), p.width), done, p.total, s.Time)
	if done >= p.total {
		fmt.Fprintln(p.out)
	}
}
