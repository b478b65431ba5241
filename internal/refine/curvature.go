package refine

import (
	"math"

	"github.com/san-kum/clustersim/internal/mesh"
)

// Eps is the noise floor that keeps smooth regions from looking curved.
const Eps = 1e-2

// Curvature is the normalized second-derivative error estimate of primitive
// variable ivar, maximized over the interior cells of b and square-rooted.
// Central first derivatives are taken one cell beyond the interior, so the
// block needs at least two ghost cells on every side.
//
// A cell whose denominator vanishes while its numerator does not scores +Inf;
// a cell where both vanish contributes nothing.
func Curvature(b *mesh.Block, ivar int) float64 {
	w := b.Prim
	n1, n2, n3 := b.Total(0), b.Total(1), b.Total(2)
	du := mesh.NewArray(3, n3, n2, n1)
	au := mesh.NewArray(3, n3, n2, n1)

	h := [3]float64{0.5 / b.Dxv[0][0], 0.5 / b.Dxv[1][0], 0.5 / b.Dxv[2][0]}

	for k := b.Ks() - 1; k <= b.Ke()+1; k++ {
		for j := b.Js() - 1; j <= b.Je()+1; j++ {
			for i := b.Is() - 1; i <= b.Ie()+1; i++ {
				l, r := w.At(ivar, k, j, i-1), w.At(ivar, k, j, i+1)
				du.Set(0, k, j, i, (r-l)*h[0])
				au.Set(0, k, j, i, (math.Abs(r)+math.Abs(l))*h[0])

				l, r = w.At(ivar, k, j-1, i), w.At(ivar, k, j+1, i)
				du.Set(1, k, j, i, (r-l)*h[1])
				au.Set(1, k, j, i, (math.Abs(r)+math.Abs(l))*h[1])

				l, r = w.At(ivar, k-1, j, i), w.At(ivar, k+1, j, i)
				du.Set(2, k, j, i, (r-l)*h[2])
				au.Set(2, k, j, i, (math.Abs(r)+math.Abs(l))*h[2])
			}
		}
	}

	curv := 0.0
	for k := b.Ks(); k <= b.Ke(); k++ {
		for j := b.Js(); j <= b.Je(); j++ {
			for i := b.Is(); i <= b.Ie(); i++ {
				var num, denom float64
				for _, c := range combos {
					lk, lj, li := k, j, i
					rk, rj, ri := k, j, i
					switch c.along {
					case 0:
						li, ri = i-1, i+1
					case 1:
						lj, rj = j-1, j+1
					case 2:
						lk, rk = k-1, k+1
					}
					dl, dr := du.At(c.deriv, lk, lj, li), du.At(c.deriv, rk, rj, ri)
					d2 := (dr - dl) * h[c.along]
					d3 := (math.Abs(dr) + math.Abs(dl)) * h[c.along]
					d4 := (au.At(c.deriv, rk, rj, ri) + au.At(c.deriv, lk, lj, li)) * h[c.along]

					num += d2 * d2
					d := d3 + Eps*d4
					denom += d * d
				}
				switch {
				case denom == 0 && num != 0:
					curv = math.Inf(1)
				case denom != 0:
					curv = math.Max(curv, num/denom)
				}
			}
		}
	}
	return math.Sqrt(curv)
}

// combos lists the nine second-derivative combinations as (first derivative
// axis, differencing axis).
var combos = [9]struct{ deriv, along int }{
	{0, 0}, {0, 1},
	{1, 0}, {1, 1},
	{0, 2}, {1, 2},
	{2, 0}, {2, 1}, {2, 2},
}
