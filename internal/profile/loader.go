package profile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"
)

// CGS to code-unit factors (kpc, Msun, Myr based).
const (
	RadConv  = 3.2407792899999994e-22
	DensConv = 1.4775575897980712e+31
	PresConv = 1.54543684e+15
	GpotConv = 1.04594017e-16
	GravConv = 322743.41425179

	// cgsRadiusThreshold marks a profile whose outer radius can only be in cm.
	cgsRadiusThreshold = 1.0e10
)

// Raw is a profile as stored on disk: potential and field carry their
// physical (negative) sign.
type Raw struct {
	Radius    []float64 `yaml:"radius"`
	Density   []float64 `yaml:"density"`
	Pressure  []float64 `yaml:"pressure"`
	Potential []float64 `yaml:"gravitational_potential"`
	Gravity   []float64 `yaml:"gravitational_field"`
}

// Loader reads one halo profile. withGas controls whether density and
// pressure are required.
type Loader interface {
	Load(path string, withGas bool) (*Table, error)
}

// FileLoader picks a decoder by file extension: .csv/.txt or .yaml/.yml.
type FileLoader struct{}

func (FileLoader) Load(path string, withGas bool) (*Table, error) {
	var (
		raw *Raw
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt", ".dat":
		raw, err = ReadCSVFile(path)
	case ".yaml", ".yml":
		raw, err = ReadYAMLFile(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}
	t, err := FromRaw(raw, withGas)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// FromRaw flips potential and field to magnitudes, converts CGS profiles to
// code units and builds the table.
func FromRaw(raw *Raw, withGas bool) (*Table, error) {
	if len(raw.Radius) == 0 {
		return nil, fmt.Errorf("%w: radius", ErrMissingColumn)
	}
	if len(raw.Potential) == 0 {
		return nil, fmt.Errorf("%w: gravitational_potential", ErrMissingColumn)
	}
	if len(raw.Gravity) == 0 {
		return nil, fmt.Errorf("%w: gravitational_field", ErrMissingColumn)
	}
	if withGas {
		if len(raw.Density) == 0 {
			return nil, fmt.Errorf("%w: density", ErrMissingColumn)
		}
		if len(raw.Pressure) == 0 {
			return nil, fmt.Errorf("%w: pressure", ErrMissingColumn)
		}
	}

	n := len(raw.Radius)
	r := append([]float64(nil), raw.Radius...)
	pot := negated(raw.Potential)
	grav := negated(raw.Gravity)
	var dens, pres []float64
	if withGas {
		dens = append([]float64(nil), raw.Density...)
		pres = append([]float64(nil), raw.Pressure...)
	}

	if r[n-1] > cgsRadiusThreshold {
		floats.Scale(RadConv, r)
		floats.Scale(DensConv, dens)
		floats.Scale(PresConv, pres)
		floats.Scale(GpotConv, pot)
		floats.Scale(GravConv, grav)
	}

	return New(r, dens, pres, pot, grav)
}

// ReadCSVFile reads a profile with a header row naming the columns.
// Lines starting with '#' are ignored.
func ReadCSVFile(path string) (*Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

func ReadCSV(r io.Reader) (*Raw, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("profile: read header: %w", err)
	}

	raw := &Raw{}
	cols := make([]*[]float64, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "radius" || name == "r" {
			cols[i] = &raw.Radius
			continue
		}
		field, err := ParseField(name)
		if err != nil {
			continue
		}
		switch field {
		case Density:
			cols[i] = &raw.Density
		case Pressure:
			cols[i] = &raw.Pressure
		case Potential:
			cols[i] = &raw.Potential
		case GravityField:
			cols[i] = &raw.Gravity
		}
	}

	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("profile: line %d: %w", line, err)
		}
		for i, field := range record {
			if i >= len(cols) || cols[i] == nil {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("profile: line %d column %q: %w", line, header[i], err)
			}
			*cols[i] = append(*cols[i], v)
		}
	}
	return raw, nil
}

type yamlProfile struct {
	Fields Raw `yaml:"fields"`
}

// ReadYAMLFile reads a profile stored under a top-level "fields" mapping.
func ReadYAMLFile(path string) (*Raw, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc yamlProfile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("profile: %s: %w", path, err)
	}
	return &doc.Fields, nil
}

func negated(src []float64) []float64 {
	return floats.ScaleTo(make([]float64, len(src)), -1, src)
}
