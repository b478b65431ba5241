package mesh

// Array is a dense 4-D array of float64 indexed as (n, k, j, i) with i fastest.
type Array struct {
	NVar, NZ, NY, NX int
	Data             []float64
}

func NewArray(nvar, nz, ny, nx int) *Array {
	return &Array{
		NVar: nvar,
		NZ:   nz,
		NY:   ny,
		NX:   nx,
		Data: make([]float64, nvar*nz*ny*nx),
	}
}

func (a *Array) idx(n, k, j, i int) int {
	return ((n*a.NZ+k)*a.NY+j)*a.NX + i
}

func (a *Array) At(n, k, j, i int) float64 {
	return a.Data[a.idx(n, k, j, i)]
}

func (a *Array) Set(n, k, j, i int, v float64) {
	a.Data[a.idx(n, k, j, i)] = v
}

func (a *Array) Add(n, k, j, i int, v float64) {
	a.Data[a.idx(n, k, j, i)] += v
}

func (a *Array) Clone() *Array {
	c := &Array{NVar: a.NVar, NZ: a.NZ, NY: a.NY, NX: a.NX, Data: make([]float64, len(a.Data))}
	copy(c.Data, a.Data)
	return c
}

func (a *Array) Zero() {
	for i := range a.Data {
		a.Data[i] = 0
	}
}

// FaceField holds the three face-centred components of a vector field over the
// block interior. X1 has NX+1 entries along i, X2 has NY+1 along j, X3 has NZ+1 along k.
type FaceField struct {
	X1, X2, X3 *Array
}

func NewFaceField(nx, ny, nz int) *FaceField {
	return &FaceField{
		X1: NewArray(1, nz, ny, nx+1),
		X2: NewArray(1, nz, ny+1, nx),
		X3: NewArray(1, nz+1, ny, nx),
	}
}

// CellCentered returns the face average of each component in interior cell (k, j, i).
func (f *FaceField) CellCentered(k, j, i int) (b1, b2, b3 float64) {
	b1 = 0.5 * (f.X1.At(0, k, j, i) + f.X1.At(0, k, j, i+1))
	b2 = 0.5 * (f.X2.At(0, k, j, i) + f.X2.At(0, k, j+1, i))
	b3 = 0.5 * (f.X3.At(0, k, j, i) + f.X3.At(0, k+1, j, i))
	return
}

// Row returns the contiguous i-run of variable n at (k, j), ghosts included.
func (a *Array) Row(n, k, j int) []float64 {
	off := a.idx(n, k, j, 0)
	return a.Data[off : off+a.NX]
}
