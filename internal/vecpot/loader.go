package vecpot

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/clustersim/internal/profile"
)

// VPotConv converts a vector potential from CGS to code units.
const VPotConv = 1.2740166e-14

// cgsExtent marks a lattice whose x extent can only be in cm.
const cgsExtent = 1.0e10

// File is the on-disk layout of a vector-potential lattice. Component arrays
// are flattened with z fastest, then y, then x.
type File struct {
	X  []float64 `json:"x" yaml:"x"`
	Y  []float64 `json:"y" yaml:"y"`
	Z  []float64 `json:"z" yaml:"z"`
	Ax []float64 `json:"ax" yaml:"ax"`
	Ay []float64 `json:"ay" yaml:"ay"`
	Az []float64 `json:"az" yaml:"az"`
}

// Loader reads a full vector-potential lattice.
type Loader interface {
	Load(path string) (*Lattice, error)
}

// FileLoader decodes .json or .yaml/.yml lattices.
type FileLoader struct{}

func (FileLoader) Load(path string) (*Lattice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var raw *File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		raw, err = DecodeJSON(f)
	case ".yaml", ".yml":
		raw, err = DecodeYAML(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("vecpot: %s: %w", path, err)
	}
	return FromFile(raw)
}

func DecodeJSON(r io.Reader) (*File, error) {
	var f File
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

func DecodeYAML(r io.Reader) (*File, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// FromFile builds a lattice, converting coordinates and potential from CGS
// when the x extent is larger than any code-unit domain.
func FromFile(f *File) (*Lattice, error) {
	coords := [3][]float64{f.X, f.Y, f.Z}
	a := [3][]float64{f.Ax, f.Ay, f.Az}
	if n := len(f.X); n > 1 && f.X[n-1]-f.X[0] > cgsExtent {
		for ax := range coords {
			coords[ax] = scaled(coords[ax], profile.RadConv)
			a[ax] = scaled(a[ax], VPotConv)
		}
	}
	return NewLattice(coords, a)
}

func scaled(v []float64, s float64) []float64 {
	return floats.ScaleTo(make([]float64, len(v)), s, v)
}
