package vecpot

import (
	"github.com/san-kum/clustersim/internal/mesh"
)

// SampleRes is the number of sub-samples per face edge for a block at level on
// a mesh refined down to maxLevel.
func SampleRes(level, maxLevel int) int {
	if maxLevel <= level {
		return 1
	}
	return 1 << (maxLevel - level)
}

// Resample averages the potential along the cell edges of b and takes its
// discrete curl, giving a face field whose divergence vanishes cell by cell.
func Resample(b *mesh.Block, p *Patch, maxLevel int) (*mesh.FaceField, error) {
	nx, ny, nz := b.NX[0], b.NX[1], b.NX[2]
	is, js, ks := b.Is(), b.Js(), b.Ks()
	dx1, dx2, dx3 := b.Dxv[0][is], b.Dxv[1][js], b.Dxv[2][ks]

	res := SampleRes(b.Level, maxLevel)
	fact := 1.0 / float64(res)

	ax := mesh.NewArray(1, nz+1, ny+1, nx+1)
	ay := mesh.NewArray(1, nz+1, ny+1, nx+1)
	az := mesh.NewArray(1, nz+1, ny+1, nx+1)

	for k := 0; k <= nz; k++ {
		x3 := b.Xf[2][ks+k]
		for j := 0; j <= ny; j++ {
			x2 := b.Xf[1][js+j]
			for i := 0; i <= nx; i++ {
				x1 := b.Xf[0][is+i]

				var sx, sy, sz float64
				for s := 0; s < res; s++ {
					off := (float64(s) + 0.5) * fact
					v, err := p.Sample(0, x1+off*dx1, x2, x3)
					if err != nil {
						return nil, err
					}
					sx += v
					if v, err = p.Sample(1, x1, x2+off*dx2, x3); err != nil {
						return nil, err
					}
					sy += v
					if v, err = p.Sample(2, x1, x2, x3+off*dx3); err != nil {
						return nil, err
					}
					sz += v
				}
				ax.Set(0, k, j, i, sx*fact)
				ay.Set(0, k, j, i, sy*fact)
				az.Set(0, k, j, i, sz*fact)
			}
		}
	}

	f := mesh.NewFaceField(nx, ny, nz)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i <= nx; i++ {
				f.X1.Set(0, k, j, i,
					(az.At(0, k, j+1, i)-az.At(0, k, j, i))/dx2-
						(ay.At(0, k+1, j, i)-ay.At(0, k, j, i))/dx3)
			}
		}
	}
	for k := 0; k < nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i < nx; i++ {
				f.X2.Set(0, k, j, i,
					(ax.At(0, k+1, j, i)-ax.At(0, k, j, i))/dx3-
						(az.At(0, k, j, i+1)-az.At(0, k, j, i))/dx1)
			}
		}
	}
	for k := 0; k <= nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				f.X3.Set(0, k, j, i,
					(ay.At(0, k, j, i+1)-ay.At(0, k, j, i))/dx1-
						(ax.At(0, k, j+1, i)-ax.At(0, k, j, i))/dx2)
			}
		}
	}
	return f, nil
}

// Divergence is the discrete divergence of f in interior cell (k, j, i) of b.
func Divergence(b *mesh.Block, f *mesh.FaceField, k, j, i int) float64 {
	dx1, dx2, dx3 := b.Dxv[0][b.Is()+i], b.Dxv[1][b.Js()+j], b.Dxv[2][b.Ks()+k]
	return (f.X1.At(0, k, j, i+1)-f.X1.At(0, k, j, i))/dx1 +
		(f.X2.At(0, k, j+1, i)-f.X2.At(0, k, j, i))/dx2 +
		(f.X3.At(0, k+1, j, i)-f.X3.At(0, k, j, i))/dx3
}
