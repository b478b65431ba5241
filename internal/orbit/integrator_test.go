package orbit_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/clustersim/internal/orbit"
	"github.com/san-kum/clustersim/internal/profile"
)

// hernquist builds a profile for a Hernquist sphere of total mass m and scale a,
// sampled out to rmax.
func hernquist(m, a, rmax float64, n int) *profile.Table {
	radius := make([]float64, n)
	pot := make([]float64, n)
	grav := make([]float64, n)
	dens := make([]float64, n)
	rmin := rmax / 1000
	for i := 0; i < n; i++ {
		r := rmin * math.Pow(rmax/rmin, float64(i)/float64(n-1))
		radius[i] = r
		pot[i] = m / (r + a)
		grav[i] = m / ((r + a) * (r + a))
		dens[i] = m * a / (2 * math.Pi * r * math.Pow(r+a, 3))
	}
	t, err := profile.New(radius, dens, dens, pot, grav)
	Expect(err).NotTo(HaveOccurred())
	return t
}

var _ = Describe("Weights", func() {
	It("reduces to a half kick without a previous step", func() {
		w, wOld := orbit.Weights(0.1, -1)
		Expect(w).To(Equal(0.05))
		Expect(wOld).To(Equal(0.0))
	})

	It("gives a full kick when the step is unchanged", func() {
		for _, dt := range []float64{1e-3, 0.25, 7} {
			w, wOld := orbit.Weights(dt, dt)
			Expect(w).To(BeNumerically("~", dt, 1e-15*dt))
			Expect(wOld).To(Equal(0.0))
		}
	})

	It("follows the variable-step formula", func() {
		dt, dtOld := 0.2, 0.1
		w, wOld := orbit.Weights(dt, dtOld)
		Expect(w).To(BeNumerically("~", 0.1+0.1/3+0.04/0.6, 1e-15))
		Expect(wOld).To(BeNumerically("~", (0.01-0.04)/0.6, 1e-15))
	})
})

var _ = Describe("Integrator", func() {
	var (
		main, sub *profile.Table
	)

	BeforeEach(func() {
		main = hernquist(1000, 1, 50, 400)
		sub = hernquist(100, 0.5, 20, 300)
	})

	Context("on a cold start", func() {
		It("evaluates mutual gravity at the initial positions", func() {
			in, err := orbit.New(main, sub,
				orbit.Halo{}, orbit.Halo{Pos: orbit.Vec3{10, 0, 0}}, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(in.Phase()).To(Equal(orbit.ColdStart))

			st := in.State()
			Expect(st.Sub.Acc[0]).To(BeNumerically("~", -main.Query(profile.GravityField, 10), 1e-12))
			Expect(st.Main.Acc[0]).To(BeNumerically("~", sub.AccelAt(10)*-1, 1e-12))
			Expect(st.Sub.OldAcc).To(Equal(orbit.Vec3{}))
			Expect(in.DtOld()).To(BeNumerically("<", 0))
		})

		It("uses the point-mass law beyond the tabulated radius", func() {
			in, err := orbit.New(main, sub,
				orbit.Halo{}, orbit.Halo{Pos: orbit.Vec3{0, 100, 0}}, true)
			Expect(err).NotTo(HaveOccurred())

			st := in.State()
			Expect(st.Sub.Acc[1]).To(BeNumerically("~", -main.Mass()/1e4, 1e-12))
			Expect(st.Main.Acc[1]).To(BeNumerically("~", sub.Mass()/1e4, 1e-12))
		})

		It("rejects a missing main profile", func() {
			_, err := orbit.New(nil, sub, orbit.Halo{}, orbit.Halo{}, true)
			Expect(err).To(MatchError(orbit.ErrNoMainProfile))
		})
	})

	Context("with a pinned main halo", func() {
		It("falls radially without tangential drift", func() {
			in, err := orbit.New(main, sub,
				orbit.Halo{}, orbit.Halo{Pos: orbit.Vec3{30, 0, 0}}, true)
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 200; i++ {
				Expect(in.Step(0.01)).To(Succeed())
			}
			st := in.State()
			Expect(st.Sub.Pos[0]).To(BeNumerically("<", 30))
			Expect(st.Sub.Pos[1]).To(Equal(0.0))
			Expect(st.Sub.Pos[2]).To(Equal(0.0))
			Expect(st.Sub.Vel[1]).To(Equal(0.0))
			Expect(st.Main.Pos).To(Equal(orbit.Vec3{}))
			Expect(st.Main.Vel).To(Equal(orbit.Vec3{}))
			Expect(st.Main.Acc[0]).NotTo(Equal(0.0))
		})

		It("traces a mirror-image path from a mirrored start", func() {
			a, _ := orbit.New(main, sub, orbit.Halo{},
				orbit.Halo{Pos: orbit.Vec3{20, 5, 0}, Vel: orbit.Vec3{0, -1, 0}}, true)
			b, _ := orbit.New(main, sub, orbit.Halo{},
				orbit.Halo{Pos: orbit.Vec3{20, -5, 0}, Vel: orbit.Vec3{0, 1, 0}}, true)
			for i := 0; i < 500; i++ {
				Expect(a.Step(0.01)).To(Succeed())
				Expect(b.Step(0.01)).To(Succeed())
			}
			Expect(a.State().Sub.Pos[0]).To(Equal(b.State().Sub.Pos[0]))
			Expect(a.State().Sub.Pos[1]).To(Equal(-b.State().Sub.Pos[1]))
		})

		It("keeps a circular point-mass orbit near its radius", func() {
			pm := hernquist(1000, 1e-6, 1, 50)
			tiny := hernquist(1e-6, 1e-6, 1, 50)
			r0 := 10.0
			v0 := math.Sqrt(pm.Mass() / r0)
			in, _ := orbit.New(pm, tiny, orbit.Halo{},
				orbit.Halo{Pos: orbit.Vec3{r0, 0, 0}, Vel: orbit.Vec3{0, v0, 0}}, true)

			period := 2 * math.Pi * r0 / v0
			dt := period / 2000
			for i := 0; i < 2000; i++ {
				Expect(in.Step(dt)).To(Succeed())
				Expect(in.Distance()).To(BeNumerically("~", r0, 0.02*r0))
			}
		})
	})

	Context("with both halos free", func() {
		It("moves the main halo against the subhalo", func() {
			in, _ := orbit.New(main, sub, orbit.Halo{},
				orbit.Halo{Pos: orbit.Vec3{15, 0, 0}}, false)
			Expect(in.Step(0.05)).To(Succeed())

			st := in.State()
			Expect(st.Main.Vel[0]).To(BeNumerically(">", 0))
			Expect(st.Sub.Vel[0]).To(BeNumerically("<", 0))
			Expect(st.Main.OldAcc[0]).To(BeNumerically(">", 0))
		})
	})

	Context("stepping", func() {
		It("records the previous step and switches to running", func() {
			in, _ := orbit.New(main, sub, orbit.Halo{}, orbit.Halo{Pos: orbit.Vec3{10, 0, 0}}, true)
			Expect(in.Step(0.02)).To(Succeed())
			Expect(in.Phase()).To(Equal(orbit.Running))
			Expect(in.DtOld()).To(Equal(0.02))
			Expect(in.Steps()).To(Equal(1))
		})

		It("applies a half kick on the first step", func() {
			in, _ := orbit.New(main, sub, orbit.Halo{}, orbit.Halo{Pos: orbit.Vec3{10, 0, 0}}, true)
			a0 := in.State().Sub.Acc[0]
			Expect(in.Step(0.1)).To(Succeed())
			st := in.State()
			Expect(st.Sub.Vel[0]).To(Equal(0.05 * a0))
			Expect(st.Sub.Pos[0]).To(Equal(10 + 0.1*st.Sub.Vel[0]))
			Expect(st.Sub.OldAcc[0]).To(Equal(a0))
		})

		It("rejects non-positive steps", func() {
			in, _ := orbit.New(main, sub, orbit.Halo{}, orbit.Halo{Pos: orbit.Vec3{10, 0, 0}}, true)
			Expect(in.Step(0)).To(MatchError(orbit.ErrInvalidStep))
			Expect(in.Step(math.NaN())).To(MatchError(orbit.ErrInvalidStep))
		})

		It("never moves a single halo", func() {
			in, _ := orbit.New(main, nil, orbit.Halo{Pos: orbit.Vec3{1, 2, 3}}, orbit.Halo{}, false)
			Expect(in.NumHalo()).To(Equal(1))
			Expect(in.Step(0.1)).To(Succeed())
			Expect(in.State().Main.Pos).To(Equal(orbit.Vec3{1, 2, 3}))
			Expect(in.State().Main.Acc).To(Equal(orbit.Vec3{}))
		})
	})

	Context("across a restart", func() {
		It("continues bit-for-bit after restore and resume", func() {
			ref, _ := orbit.New(main, sub, orbit.Halo{Vel: orbit.Vec3{0.1, 0, 0}},
				orbit.Halo{Pos: orbit.Vec3{12, 4, 1}, Vel: orbit.Vec3{-1, 0.5, 0}}, false)
			steps := []float64{0.01, 0.012, 0.011, 0.015, 0.009}
			for _, dt := range steps {
				Expect(ref.Step(dt)).To(Succeed())
			}

			cp := ref.Checkpoint()
			restored, err := orbit.Restore(main, sub, cp, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(restored.Phase()).To(Equal(orbit.Resuming))
			Expect(restored.Resume()).To(Succeed())
			Expect(restored.Phase()).To(Equal(orbit.Running))
			Expect(restored.State().Sub.Acc).To(Equal(ref.State().Sub.Acc))
			Expect(restored.State().Main.Acc).To(Equal(ref.State().Main.Acc))

			for _, dt := range []float64{0.013, 0.01, 0.02} {
				Expect(ref.Step(dt)).To(Succeed())
				Expect(restored.Step(dt)).To(Succeed())
			}
			Expect(restored.Checkpoint()).To(Equal(ref.Checkpoint()))
		})

		It("resumes lazily when stepped directly", func() {
			in, _ := orbit.New(main, sub, orbit.Halo{}, orbit.Halo{Pos: orbit.Vec3{10, 0, 0}}, true)
			Expect(in.Step(0.01)).To(Succeed())
			restored, _ := orbit.Restore(main, sub, in.Checkpoint(), true)
			Expect(restored.Step(0.01)).To(Succeed())
			Expect(in.Step(0.01)).To(Succeed())
			Expect(restored.Checkpoint()).To(Equal(in.Checkpoint()))
		})

		It("refuses to resume twice", func() {
			in, _ := orbit.New(main, sub, orbit.Halo{}, orbit.Halo{Pos: orbit.Vec3{10, 0, 0}}, true)
			Expect(in.Resume()).To(MatchError(orbit.ErrNotResuming))
		})
	})
})

var _ = Describe("Checkpoint", func() {
	It("flattens to nineteen scalars in a fixed order", func() {
		cp := orbit.Checkpoint{
			MainPos: orbit.Vec3{1, 2, 3},
			SubVel:  orbit.Vec3{4, 5, 6},
			DtOld:   0.5,
		}
		flat := cp.Flatten()
		Expect(flat).To(HaveLen(orbit.CheckpointLen))
		Expect(flat[0]).To(Equal(1.0))
		Expect(flat[12]).To(Equal(4.0))
		Expect(flat[18]).To(Equal(0.5))

		back, err := orbit.Unflatten(flat)
		Expect(err).NotTo(HaveOccurred())
		Expect(back).To(Equal(cp))
	})

	It("rejects a short slice", func() {
		_, err := orbit.Unflatten(make([]float64, 18))
		Expect(err).To(MatchError(orbit.ErrCheckpointSize))
	})
})
