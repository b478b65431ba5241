package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/clustersim/internal/profile"
)

const (
	DefaultDt        = 5.0
	DefaultSteps     = 200
	DefaultRScale    = 300.0
	DefaultRCut      = 800.0
	DefaultNSubzones = 3
	DefaultGamma     = 5.0 / 3.0
	DefaultGhost     = 2
)

var (
	ErrInvalid = errors.New("config: invalid configuration")

	// ErrMissingInitialCondition indicates a two-halo run without a complete
	// subhalo position and velocity.
	ErrMissingInitialCondition = errors.New("config: missing subhalo initial condition")
)

type Config struct {
	Problem    ProblemConfig    `yaml:"problem"`
	Halos      HalosConfig      `yaml:"halos"`
	Refinement RefinementConfig `yaml:"refinement"`
	Magnetic   MagneticConfig   `yaml:"magnetic"`
	Mesh       MeshConfig       `yaml:"mesh"`
	Run        RunConfig        `yaml:"run"`
}

type ProblemConfig struct {
	NumHalo          int     `yaml:"num_halo"`
	MainClusterFixed bool    `yaml:"main_cluster_fixed"`
	SubhaloGas       bool    `yaml:"subhalo_gas"`
	RScale           float64 `yaml:"r_scale"`
	RCut             float64 `yaml:"r_cut"`
	NSubzones        int     `yaml:"nsubzones"`
	Gamma            float64 `yaml:"gamma"`
	Barotropic       bool    `yaml:"barotropic"`
}

type HalosConfig struct {
	Main HaloConfig `yaml:"main"`
	Sub  HaloConfig `yaml:"sub"`
}

// HaloConfig names a profile file or, when Profile is empty, an analytic
// Hernquist sphere. Initial conditions are pointers so that an omitted value
// can be told apart from zero.
type HaloConfig struct {
	Profile   string             `yaml:"profile,omitempty"`
	Hernquist *profile.Hernquist `yaml:"hernquist,omitempty"`
	XInit     *float64           `yaml:"x_init,omitempty"`
	YInit     *float64           `yaml:"y_init,omitempty"`
	VXInit    *float64           `yaml:"vx_init,omitempty"`
	VYInit    *float64           `yaml:"vy_init,omitempty"`
}

func (h HaloConfig) hasSource() bool { return h.Profile != "" || h.Hernquist != nil }

type RefinementConfig struct {
	MinRefineDensity      float64 `yaml:"min_refine_density"`
	RefRadius1            float64 `yaml:"ref_radius1"`
	RefRadius2            float64 `yaml:"ref_radius2"`
	SphereRefLevel        int     `yaml:"sphere_reflevel"`
	DerefineOutsideRadius bool    `yaml:"derefine_outside_radius"`
}

type MagneticConfig struct {
	Enabled bool   `yaml:"enabled"`
	MagFile string `yaml:"mag_file,omitempty"`
}

type MeshConfig struct {
	Min        [3]float64 `yaml:"min"`
	Max        [3]float64 `yaml:"max"`
	Cells      [3]int     `yaml:"cells"`
	BlockCells [3]int     `yaml:"block_cells"`
	Ghost      int        `yaml:"ghost"`
	RootLevel  int        `yaml:"root_level"`
	MaxLevel   int        `yaml:"max_level"`
}

// Center is the midpoint of the domain.
func (m MeshConfig) Center() [3]float64 {
	var c [3]float64
	for a := range c {
		c[a] = 0.5 * (m.Min[a] + m.Max[a])
	}
	return c
}

type RunConfig struct {
	Dt              float64 `yaml:"dt"`
	Steps           int     `yaml:"steps"`
	RefineEvery     int     `yaml:"refine_every"`
	CheckpointEvery int     `yaml:"checkpoint_every"`
	// Workers bounds the per-block goroutines; 0 means one per CPU.
	Workers int `yaml:"workers"`
	// Ranks is the size of the in-process group.
	Ranks int `yaml:"ranks"`
}

func DefaultConfig() *Config {
	return &Config{
		Problem: ProblemConfig{
			NumHalo:          1,
			MainClusterFixed: true,
			RScale:           DefaultRScale,
			RCut:             DefaultRCut,
			NSubzones:        DefaultNSubzones,
			Gamma:            DefaultGamma,
		},
		Halos: HalosConfig{
			Main: HaloConfig{
				Hernquist: &profile.Hernquist{Mass: 4500, Scale: 300, RMax: 5000, GasFraction: 0.15},
			},
		},
		Mesh: MeshConfig{
			Min:        [3]float64{-2000, -2000, -2000},
			Max:        [3]float64{2000, 2000, 2000},
			Cells:      [3]int{32, 32, 32},
			BlockCells: [3]int{16, 16, 16},
			Ghost:      DefaultGhost,
			MaxLevel:   2,
		},
		Run: RunConfig{
			Dt:              DefaultDt,
			Steps:           DefaultSteps,
			RefineEvery:     10,
			CheckpointEvery: 50,
			Ranks:           1,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	p := c.Problem
	if p.NumHalo != 1 && p.NumHalo != 2 {
		return fmt.Errorf("%w: num_halo must be 1 or 2, got %d", ErrInvalid, p.NumHalo)
	}
	if !c.Halos.Main.hasSource() {
		return fmt.Errorf("%w: halos.main needs a profile or hernquist parameters", ErrInvalid)
	}
	if p.NumHalo == 2 {
		s := c.Halos.Sub
		if !s.hasSource() {
			return fmt.Errorf("%w: halos.sub needs a profile or hernquist parameters", ErrInvalid)
		}
		ics := []struct {
			name string
			v    *float64
		}{{"x_init", s.XInit}, {"y_init", s.YInit}, {"vx_init", s.VXInit}, {"vy_init", s.VYInit}}
		for _, ic := range ics {
			if ic.v == nil {
				return fmt.Errorf("%w: halos.sub.%s", ErrMissingInitialCondition, ic.name)
			}
		}
	}
	if p.RScale <= 0 {
		return fmt.Errorf("%w: r_scale must be positive", ErrInvalid)
	}
	if p.NSubzones < 1 {
		return fmt.Errorf("%w: nsubzones must be at least 1", ErrInvalid)
	}
	if !p.Barotropic && p.Gamma <= 1 {
		return fmt.Errorf("%w: gamma must exceed 1, got %g", ErrInvalid, p.Gamma)
	}
	if c.Magnetic.Enabled && c.Magnetic.MagFile == "" {
		return fmt.Errorf("%w: magnetic.mag_file is required when the field is enabled", ErrInvalid)
	}

	m := c.Mesh
	for a := 0; a < 3; a++ {
		if m.Max[a] <= m.Min[a] {
			return fmt.Errorf("%w: mesh axis %d has empty extent", ErrInvalid, a)
		}
		if m.Cells[a] <= 0 || m.BlockCells[a] <= 0 || m.Cells[a]%m.BlockCells[a] != 0 {
			return fmt.Errorf("%w: mesh axis %d: %d cells do not split into blocks of %d",
				ErrInvalid, a, m.Cells[a], m.BlockCells[a])
		}
	}
	if m.Ghost < 2 {
		return fmt.Errorf("%w: mesh.ghost must be at least 2, got %d", ErrInvalid, m.Ghost)
	}
	if m.MaxLevel < m.RootLevel {
		return fmt.Errorf("%w: max_level %d below root_level %d", ErrInvalid, m.MaxLevel, m.RootLevel)
	}

	if c.Run.Dt <= 0 {
		return fmt.Errorf("%w: run.dt must be positive", ErrInvalid)
	}
	if c.Run.Steps < 0 || c.Run.RefineEvery < 0 || c.Run.CheckpointEvery < 0 || c.Run.Workers < 0 {
		return fmt.Errorf("%w: run counters must not be negative", ErrInvalid)
	}
	if c.Run.Ranks < 1 {
		return fmt.Errorf("%w: run.ranks must be at least 1", ErrInvalid)
	}
	return nil
}

// Float returns a pointer to v, for filling optional initial conditions.
func Float(v float64) *float64 { return &v }
