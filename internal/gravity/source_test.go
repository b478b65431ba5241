package gravity

import (
	"math"
	"testing"

	"github.com/san-kum/clustersim/internal/mesh"
	"github.com/san-kum/clustersim/internal/orbit"
	"github.com/san-kum/clustersim/internal/profile"
)

func isothermalTable(t testing.TB, mass float64) *profile.Table {
	t.Helper()
	n := 200
	radius := make([]float64, n)
	dens := make([]float64, n)
	pres := make([]float64, n)
	pot := make([]float64, n)
	grav := make([]float64, n)
	for i := 0; i < n; i++ {
		r := 0.01 * math.Pow(1000, float64(i)/float64(n-1))
		radius[i] = r
		dens[i] = 1 / (1 + r*r)
		pres[i] = dens[i]
		pot[i] = mass / math.Sqrt(r*r+1)
		grav[i] = mass * r / math.Pow(r*r+1, 1.5)
	}
	tbl, err := profile.New(radius, dens, pres, pot, grav)
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	return tbl
}

func newTestBlock(t testing.TB, tbl *profile.Table, center orbit.Vec3) *mesh.Block {
	t.Helper()
	b, err := mesh.NewBlock(0, 0, [3]int{8, 8, 8}, 2, [3]float64{-1, -1, -1}, [3]float64{1, 1, 1})
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	for k := 0; k < b.Total(2); k++ {
		for j := 0; j < b.Total(1); j++ {
			for i := 0; i < b.Total(0); i++ {
				r := dist(b.Xv[0][i], b.Xv[1][j], b.Xv[2][k], center)
				b.Prim.Set(mesh.IDN, k, j, i, tbl.Query(profile.Density, r))
				b.Prim.Set(mesh.IPR, k, j, i, tbl.Query(profile.Pressure, r))
			}
		}
	}
	return b
}

func TestPotentialSuperposition(t *testing.T) {
	main := isothermalTable(t, 10)
	sub := isothermalTable(t, 2)
	st := orbit.State{NumHalo: 2, Sub: orbit.Halo{Pos: orbit.Vec3{3, 0, 0}}}

	f := NewField(main, sub, st, Options{RCut: 800, RScale: 300})
	got := f.Potential(1, 0, 0)
	want := main.PotentialAt(1) + sub.PotentialAt(2)
	if math.Abs(got-want) > 1e-14 {
		t.Errorf("expected %g, got %g", want, got)
	}

	single := NewField(main, sub, orbit.State{NumHalo: 1}, Options{})
	if single.Potential(1, 0, 0) != main.PotentialAt(1) {
		t.Error("single halo field should ignore the subhalo table")
	}

	far := f.Potential(2000, 0, 0)
	wantFar := -main.Mass()/2000 - sub.Mass()/1997
	if math.Abs(far-wantFar) > 1e-15 {
		t.Errorf("expected point-mass potential %g, got %g", wantFar, far)
	}
}

func TestMomentumSourceBalancesInSymmetricVolume(t *testing.T) {
	tbl := isothermalTable(t, 10)
	b := newTestBlock(t, tbl, orbit.Vec3{})
	f := NewField(tbl, nil, orbit.State{NumHalo: 1, Fixed: true}, Options{RCut: 800, RScale: 300})

	f.Apply(b, 1.0)

	var sum [3]float64
	var scale float64
	for k := b.Ks(); k <= b.Ke(); k++ {
		for j := b.Js(); j <= b.Je(); j++ {
			for i := b.Is(); i <= b.Ie(); i++ {
				for a := 0; a < 3; a++ {
					v := b.Cons.At(mesh.IM1+a, k, j, i)
					sum[a] += v
					scale += math.Abs(v)
				}
			}
		}
	}
	if scale == 0 {
		t.Fatal("expected non-zero momentum sources")
	}
	for a := 0; a < 3; a++ {
		if math.Abs(sum[a]) > 1e-12*scale {
			t.Errorf("axis %d: net momentum source %g not balanced (scale %g)", a, sum[a], scale)
		}
	}
}

func TestMomentumSourceDifferencing(t *testing.T) {
	tbl := isothermalTable(t, 10)
	b := newTestBlock(t, tbl, orbit.Vec3{})
	f := NewField(tbl, nil, orbit.State{NumHalo: 1}, Options{})
	dt := 0.1
	f.Apply(b, dt)

	k, j, i := b.Ks()+1, b.Js()+2, b.Is()+5
	phil := f.Potential(b.Xf[0][i], b.Xv[1][j], b.Xv[2][k])
	phir := f.Potential(b.Xf[0][i+1], b.Xv[1][j], b.Xv[2][k])
	want := -(phir - phil) / b.Dxv[0][i] * b.Prim.At(mesh.IDN, k, j, i) * dt
	if got := b.Cons.At(mesh.IM1, k, j, i); math.Abs(got-want) > 1e-15 {
		t.Errorf("expected momentum source %g, got %g", want, got)
	}
	// Cell right of the centre falls inwards.
	if b.Cons.At(mesh.IM1, k, j, i) >= 0 {
		t.Error("expected negative x1 momentum source right of the halo")
	}
	if e := b.Cons.At(mesh.IEN, k, j, i); e != 0 {
		t.Errorf("expected no energy source without mass flux, got %g", e)
	}
}

func TestEnergySourceUsesFaceFluxes(t *testing.T) {
	tbl := isothermalTable(t, 10)
	b := newTestBlock(t, tbl, orbit.Vec3{})
	for i := range b.Flux[0].Data {
		b.Flux[0].Data[i] = 0.5
	}
	f := NewField(tbl, nil, orbit.State{NumHalo: 1}, Options{})
	dt := 0.2
	f.Apply(b, dt)

	k, j, i := b.Ks()+3, b.Js()+6, b.Is()+1
	phil := f.Potential(b.Xf[0][i], b.Xv[1][j], b.Xv[2][k])
	phic := f.Potential(b.Xv[0][i], b.Xv[1][j], b.Xv[2][k])
	phir := f.Potential(b.Xf[0][i+1], b.Xv[1][j], b.Xv[2][k])
	want := -(0.5*(phic-phil) + 0.5*(phir-phic)) / b.Dxv[0][i] * dt
	if got := b.Cons.At(mesh.IEN, k, j, i); math.Abs(got-want) > 1e-14 {
		t.Errorf("expected energy source %g, got %g", want, got)
	}

	// Uniform flux: the energy source telescopes to flux times the momentum acceleration.
	accel := -(phir - phil) / b.Dxv[0][i]
	if math.Abs(b.Cons.At(mesh.IEN, k, j, i)-0.5*accel*dt) > 1e-14 {
		t.Error("energy source inconsistent with momentum differencing")
	}
}

func TestHaloOnCellCentreStaysFinite(t *testing.T) {
	tbl := isothermalTable(t, 10)
	// The halo sits exactly on the centre of the middle cell.
	b, err := mesh.NewBlock(0, 0, [3]int{9, 9, 9}, 2, [3]float64{-1, -1, -1}, [3]float64{1, 1, 1})
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	for k := 0; k < b.Total(2); k++ {
		for j := 0; j < b.Total(1); j++ {
			for i := 0; i < b.Total(0); i++ {
				b.Prim.Set(mesh.IDN, k, j, i, 1)
			}
		}
	}
	for a := 0; a < 3; a++ {
		for i := range b.Flux[a].Data {
			b.Flux[a].Data[i] = 0.5
		}
	}
	c := b.Is() + 4
	st := orbit.State{NumHalo: 1, Main: orbit.Halo{Pos: orbit.Vec3{b.Xv[0][c], b.Xv[1][c], b.Xv[2][c]}}}

	f := NewField(tbl, nil, st, Options{})
	f.Apply(b, 0.1)

	for n, v := range b.Cons.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite conserved value %g at %d", v, n)
		}
	}
}

func TestBarotropicSkipsEnergy(t *testing.T) {
	tbl := isothermalTable(t, 10)
	b := newTestBlock(t, tbl, orbit.Vec3{})
	for i := range b.Flux[1].Data {
		b.Flux[1].Data[i] = 1
	}
	f := NewField(tbl, nil, orbit.State{NumHalo: 1}, Options{Barotropic: true})
	f.Apply(b, 1)

	for k := 0; k < b.Total(2); k++ {
		for j := 0; j < b.Total(1); j++ {
			for i := 0; i < b.Total(0); i++ {
				if b.Cons.At(mesh.IEN, k, j, i) != 0 {
					t.Fatalf("energy changed at (%d,%d,%d)", k, j, i)
				}
			}
		}
	}
}

func TestNonInertialCorrection(t *testing.T) {
	main := isothermalTable(t, 10)
	sub := isothermalTable(t, 2)
	acc := orbit.Vec3{0.3, -0.2, 0.1}
	pinned := orbit.State{
		NumHalo: 2,
		Fixed:   true,
		Main:    orbit.Halo{Acc: acc},
		Sub:     orbit.Halo{Pos: orbit.Vec3{50, 0, 0}},
	}
	free := pinned
	free.Fixed = false

	opts := Options{RCut: 800, RScale: 300}
	withCorr := NewField(main, sub, pinned, opts)
	without := NewField(main, sub, free, opts)
	if !withCorr.NonInertialActive() || without.NonInertialActive() {
		t.Fatal("correction should only be active for a pinned main halo")
	}

	b1 := newTestBlock(t, main, orbit.Vec3{})
	b2 := newTestBlock(t, main, orbit.Vec3{})
	dt := 0.5
	withCorr.Apply(b1, dt)
	without.Apply(b2, dt)

	k, j, i := b1.Ks()+2, b1.Js()+3, b1.Is()+4
	rho := b1.Prim.At(mesh.IDN, k, j, i)
	for a := 0; a < 3; a++ {
		diff := b1.Cons.At(mesh.IM1+a, k, j, i) - b2.Cons.At(mesh.IM1+a, k, j, i)
		want := -acc[a] * rho * dt
		if math.Abs(diff-want) > 1e-13 {
			t.Errorf("axis %d: expected correction %g, got %g", a, want, diff)
		}
	}
}

func TestNonInertialDamping(t *testing.T) {
	main := isothermalTable(t, 10)
	st := orbit.State{NumHalo: 2, Fixed: true, Main: orbit.Halo{Acc: orbit.Vec3{1, 0, 0}}}
	f := NewField(main, main, st, Options{RCut: 10, RScale: 5})

	if got := f.NonInertial(0, 9, 0, 0); got != 1 {
		t.Errorf("expected undamped correction inside r_cut, got %g", got)
	}
	got := f.NonInertial(0, 0, 20, 0)
	want := math.Exp(-2)
	if math.Abs(got-want) > 1e-15 {
		t.Errorf("expected damped correction %g, got %g", want, got)
	}
}

func BenchmarkApply(b *testing.B) {
	tbl := isothermalTable(b, 10)
	blk := newTestBlock(b, tbl, orbit.Vec3{})
	f := NewField(tbl, nil, orbit.State{NumHalo: 1}, Options{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Apply(blk, 1e-3)
	}
}
