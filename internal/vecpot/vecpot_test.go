package vecpot

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/clustersim/internal/mesh"
	"github.com/san-kum/clustersim/internal/profile"
)

type potFunc func(comp int, x, y, z float64) float64

// testLattice spans [-1, 2] on every axis with 0.1 spacing.
func testLattice(t *testing.T, fn potFunc) *Lattice {
	t.Helper()
	const n = 30
	var coords [3][]float64
	for a := 0; a < 3; a++ {
		coords[a] = make([]float64, n)
		for i := range coords[a] {
			coords[a][i] = -1 + (float64(i)+0.5)*0.1
		}
	}
	var pot [3][]float64
	for comp := 0; comp < 3; comp++ {
		pot[comp] = make([]float64, 0, n*n*n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				for k := 0; k < n; k++ {
					pot[comp] = append(pot[comp], fn(comp, coords[0][i], coords[1][j], coords[2][k]))
				}
			}
		}
	}
	l, err := NewLattice(coords, pot)
	require.NoError(t, err)
	return l
}

func testBlock(t *testing.T, level int) *mesh.Block {
	t.Helper()
	b, err := mesh.NewBlock(0, level, [3]int{4, 4, 4}, 2, [3]float64{0, 0, 0}, [3]float64{1, 1, 1})
	require.NoError(t, err)
	return b
}

// uniform is A = B x r / 2, whose curl is B everywhere.
func uniform(b [3]float64) potFunc {
	return func(comp int, x, y, z float64) float64 {
		switch comp {
		case 0:
			return 0.5 * (b[1]*z - b[2]*y)
		case 1:
			return 0.5 * (b[2]*x - b[0]*z)
		default:
			return 0.5 * (b[0]*y - b[1]*x)
		}
	}
}

func TestTSCWeight(t *testing.T) {
	assert.Equal(t, 0.75, TSCWeight(0))
	assert.Equal(t, 0.5, TSCWeight(0.5))
	assert.Equal(t, 0.5, TSCWeight(-0.5))
	assert.Equal(t, 0.125, TSCWeight(1))
	assert.Equal(t, 0.0, TSCWeight(1.5))
	assert.Equal(t, 0.0, TSCWeight(-2.3))

	for _, d := range []float64{-0.5, -0.31, 0, 0.2, 0.49} {
		sum := TSCWeight(d-1) + TSCWeight(d) + TSCWeight(d+1)
		assert.InDelta(t, 1.0, sum, 1e-15, "offset %g", d)
	}
}

func TestNewLatticeValidation(t *testing.T) {
	ok := []float64{0, 1, 2}
	_, err := NewLattice([3][]float64{{0}, ok, ok}, [3][]float64{nil, nil, nil})
	assert.ErrorIs(t, err, ErrInvalidLattice)

	_, err = NewLattice([3][]float64{ok, {1, 0}, ok}, [3][]float64{})
	assert.ErrorIs(t, err, ErrInvalidLattice)

	short := make([]float64, 26)
	full := make([]float64, 27)
	_, err = NewLattice([3][]float64{ok, ok, ok}, [3][]float64{full, short, full})
	assert.ErrorIs(t, err, ErrInvalidLattice)

	l, err := NewLattice([3][]float64{ok, ok, ok}, [3][]float64{full, full, full})
	require.NoError(t, err)
	assert.Equal(t, [3]int{3, 3, 3}, l.Dims())
	assert.Equal(t, -0.5, l.Min[0])
	assert.Equal(t, 2.5, l.Max[2])
}

func TestCheckDomain(t *testing.T) {
	l := testLattice(t, uniform([3]float64{}))
	assert.NoError(t, l.CheckDomain([3]float64{0, 0, 0}, [3]float64{1, 1, 1}))

	err := l.CheckDomain([3]float64{-0.95, 0, 0}, [3]float64{1, 1, 1})
	assert.ErrorIs(t, err, ErrDomainCoverage)

	err = l.CheckDomain([3]float64{0, 0, 0}, [3]float64{1, 1, 1.9})
	assert.ErrorIs(t, err, ErrDomainCoverage)
}

func TestPatchOutsideLattice(t *testing.T) {
	l := testLattice(t, uniform([3]float64{}))
	_, err := l.Patch([3]float64{-0.9, 0, 0}, [3]float64{0, 1, 1})
	assert.ErrorIs(t, err, ErrDomainCoverage)

	_, err = l.Patch([3]float64{0, 0, 1}, [3]float64{1, 1, 1.95})
	assert.ErrorIs(t, err, ErrDomainCoverage)
}

func TestSampleReproducesLinearField(t *testing.T) {
	lin := func(comp int, x, y, z float64) float64 { return float64(comp+1) + 2*x - y + 0.5*z }
	l := testLattice(t, lin)
	p, err := l.Patch([3]float64{0, 0, 0}, [3]float64{1, 1, 1})
	require.NoError(t, err)

	for _, pt := range [][3]float64{{0, 0, 0}, {0.33, 0.71, 0.05}, {1, 1, 1}, {0.5, 0.25, 0.9}} {
		for comp := 0; comp < 3; comp++ {
			got, err := p.Sample(comp, pt[0], pt[1], pt[2])
			require.NoError(t, err)
			assert.InDelta(t, lin(comp, pt[0], pt[1], pt[2]), got, 1e-12)
		}
	}
}

func TestSampleRejectsPatchEdge(t *testing.T) {
	l := testLattice(t, uniform([3]float64{1, 0, 0}))
	p, err := l.Patch([3]float64{0, 0, 0}, [3]float64{1, 1, 1})
	require.NoError(t, err)

	edge := l.Coords[0][p.Begin[0]]
	_, err = p.Sample(0, edge, 0.5, 0.5)
	assert.ErrorIs(t, err, ErrSampleOutsidePatch)

	last := l.Coords[2][p.Begin[2]+p.Dims[2]-1]
	_, err = p.Sample(1, 0.5, 0.5, last)
	assert.ErrorIs(t, err, ErrSampleOutsidePatch)

	_, err = p.Sample(2, 0.5, -0.9, 0.5)
	assert.ErrorIs(t, err, ErrSampleOutsidePatch)
}

func TestResampleUniformField(t *testing.T) {
	field := [3]float64{0.3, -1.2, 2.5}
	l := testLattice(t, uniform(field))

	for _, level := range []int{0, 2} {
		b := testBlock(t, level)
		p, err := l.Patch(b.Min, b.Max)
		require.NoError(t, err)

		f, err := Resample(b, p, 2)
		require.NoError(t, err)

		for k := 0; k < b.NX[2]; k++ {
			for j := 0; j < b.NX[1]; j++ {
				for i := 0; i < b.NX[0]; i++ {
					b1, b2, b3 := f.CellCentered(k, j, i)
					assert.InDelta(t, field[0], b1, 1e-10)
					assert.InDelta(t, field[1], b2, 1e-10)
					assert.InDelta(t, field[2], b3, 1e-10)
				}
			}
		}
	}
}

func TestResampleIsDivergenceFree(t *testing.T) {
	wavy := func(comp int, x, y, z float64) float64 {
		switch comp {
		case 0:
			return math.Sin(3*y) * math.Cos(2*z)
		case 1:
			return math.Cos(4*x)*z + x*x
		default:
			return math.Sin(x+y) * math.Exp(-z)
		}
	}
	l := testLattice(t, wavy)
	b := testBlock(t, 1)
	p, err := l.Patch(b.Min, b.Max)
	require.NoError(t, err)

	f, err := Resample(b, p, 3)
	require.NoError(t, err)

	var maxB float64
	for _, v := range f.X1.Data {
		maxB = math.Max(maxB, math.Abs(v))
	}
	require.Greater(t, maxB, 0.0)

	for k := 0; k < b.NX[2]; k++ {
		for j := 0; j < b.NX[1]; j++ {
			for i := 0; i < b.NX[0]; i++ {
				assert.InDelta(t, 0.0, Divergence(b, f, k, j, i), 1e-11*maxB/b.Dxv[0][0])
			}
		}
	}
}

func TestResamplePropagatesSamplingError(t *testing.T) {
	l := testLattice(t, uniform([3]float64{1, 1, 1}))
	b := testBlock(t, 0)
	// A patch cut for a smaller box cannot serve the whole block.
	p, err := l.Patch([3]float64{0, 0, 0}, [3]float64{0.2, 0.2, 0.2})
	require.NoError(t, err)

	_, err = Resample(b, p, 0)
	assert.ErrorIs(t, err, ErrSampleOutsidePatch)
}

func TestSampleRes(t *testing.T) {
	assert.Equal(t, 1, SampleRes(3, 3))
	assert.Equal(t, 8, SampleRes(0, 3))
	assert.Equal(t, 1, SampleRes(4, 2))
}

func TestFileLoaderJSON(t *testing.T) {
	dir := t.TempDir()
	f := File{
		X: []float64{0, 1}, Y: []float64{0, 1}, Z: []float64{0, 1},
		Ax: []float64{1, 2, 3, 4, 5, 6, 7, 8},
		Ay: make([]float64, 8),
		Az: make([]float64, 8),
	}
	data, err := json.Marshal(f)
	require.NoError(t, err)
	path := filepath.Join(dir, "pot.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	l, err := FileLoader{}.Load(path)
	require.NoError(t, err)
	assert.Equal(t, [3]int{2, 2, 2}, l.Dims())
	assert.Equal(t, 1.0, l.Spacing[1])
	// x fastest index is the slowest in memory.
	assert.Equal(t, 5.0, l.A[0][4])
}

func TestFileLoaderYAML(t *testing.T) {
	dir := t.TempDir()
	body := "x: [0, 1]\ny: [0, 2]\nz: [0, 3]\nax: [0, 0, 0, 0, 0, 0, 0, 0]\nay: [0, 0, 0, 0, 0, 0, 0, 0]\naz: [1, 1, 1, 1, 1, 1, 1, 1]\n"
	path := filepath.Join(dir, "pot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	l, err := FileLoader{}.Load(path)
	require.NoError(t, err)
	assert.Equal(t, [3]float64{1, 2, 3}, l.Spacing)
}

func TestFileLoaderUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pot.h5")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	_, err := FileLoader{}.Load(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFromFileConvertsCGS(t *testing.T) {
	kpc := 1 / profile.RadConv
	f := &File{
		X: []float64{0, kpc}, Y: []float64{0, kpc}, Z: []float64{0, kpc},
		Ax: []float64{1, 1, 1, 1, 1, 1, 1, 1},
		Ay: make([]float64, 8),
		Az: make([]float64, 8),
	}
	l, err := FromFile(f)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, l.Spacing[0], 1e-12)
	assert.InDelta(t, VPotConv, l.A[0][0], 1e-26)
	// The source arrays are left untouched.
	assert.Equal(t, 1.0, f.Ax[0])
}
