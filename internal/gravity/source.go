package gravity

import "github.com/san-kum/clustersim/internal/mesh"

// Apply adds the gravitational momentum and energy sources for one sub-step
// of length dt to b.Cons. It reads density from b.Prim and mass fluxes from
// b.Flux, and covers the interior plus NGhost-1 cells on every side.
//
// The energy source uses the face mass fluxes rather than the cell density so
// that the discrete work matches the momentum update.
func (f *Field) Apply(b *mesh.Block, dt float64) {
	ng := b.NGhost - 1
	il, iu := b.Is()-ng, b.Ie()+ng
	jl, ju := b.Js()-ng, b.Je()+ng
	kl, ku := b.Ks()-ng, b.Ke()+ng

	x1f, x2f, x3f := b.Xf[0], b.Xf[1], b.Xf[2]
	x1v, x2v, x3v := b.Xv[0], b.Xv[1], b.Xv[2]
	energy := !f.opts.Barotropic

	for k := kl; k <= ku; k++ {
		for j := jl; j <= ju; j++ {
			for i := il; i <= iu; i++ {
				rho := b.Prim.At(mesh.IDN, k, j, i)
				phic := f.Potential(x1v[i], x2v[j], x3v[k])

				// x1
				phil := f.Potential(x1f[i], x2v[j], x3v[k])
				phir := f.Potential(x1f[i+1], x2v[j], x3v[k])
				dx := b.Dxv[0][i]
				src := -(phir - phil) / dx
				if f.nonInertial {
					src -= f.NonInertial(0, x1v[i], x2v[j], x3v[k])
				}
				b.Cons.Add(mesh.IM1, k, j, i, src*rho*dt)
				if energy {
					fl := b.Flux[0].At(0, k, j, i)
					fr := b.Flux[0].At(0, k, j, i+1)
					src = -(fl*(phic-phil) + fr*(phir-phic)) / dx
					if f.nonInertial {
						gl := -f.NonInertial(0, x1f[i], x2v[j], x3v[k])
						gr := -f.NonInertial(0, x1f[i+1], x2v[j], x3v[k])
						src += fl*gl + fr*gr
					}
					b.Cons.Add(mesh.IEN, k, j, i, src*dt)
				}

				// x2
				phil = f.Potential(x1v[i], x2f[j], x3v[k])
				phir = f.Potential(x1v[i], x2f[j+1], x3v[k])
				dx = b.Dxv[1][j]
				src = -(phir - phil) / dx
				if f.nonInertial {
					src -= f.NonInertial(1, x1v[i], x2v[j], x3v[k])
				}
				b.Cons.Add(mesh.IM2, k, j, i, src*rho*dt)
				if energy {
					fl := b.Flux[1].At(0, k, j, i)
					fr := b.Flux[1].At(0, k, j+1, i)
					src = -(fl*(phic-phil) + fr*(phir-phic)) / dx
					if f.nonInertial {
						gl := -f.NonInertial(1, x1v[i], x2f[j], x3v[k])
						gr := -f.NonInertial(1, x1v[i], x2f[j+1], x3v[k])
						src += fl*gl + fr*gr
					}
					b.Cons.Add(mesh.IEN, k, j, i, src*dt)
				}

				// x3
				phil = f.Potential(x1v[i], x2v[j], x3f[k])
				phir = f.Potential(x1v[i], x2v[j], x3f[k+1])
				dx = b.Dxv[2][k]
				src = -(phir - phil) / dx
				if f.nonInertial {
					src -= f.NonInertial(2, x1v[i], x2v[j], x3v[k])
				}
				b.Cons.Add(mesh.IM3, k, j, i, src*rho*dt)
				if energy {
					fl := b.Flux[2].At(0, k, j, i)
					fr := b.Flux[2].At(0, k+1, j, i)
					src = -(fl*(phic-phil) + fr*(phir-phic)) / dx
					if f.nonInertial {
						gl := -f.NonInertial(2, x1v[i], x2v[j], x3f[k])
						gr := -f.NonInertial(2, x1v[i], x2v[j], x3f[k+1])
						src += fl*gl + fr*gr
					}
					b.Cons.Add(mesh.IEN, k, j, i, src*dt)
				}
			}
		}
	}
}
