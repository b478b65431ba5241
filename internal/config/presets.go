package config

import (
	"sort"

	"github.com/san-kum/clustersim/internal/profile"
)

// Presets build fresh configurations so callers may modify the result.
var Presets = map[string]func() *Config{
	"single": func() *Config {
		return DefaultConfig()
	},
	"merger": merger,
	"merger_moving": func() *Config {
		cfg := merger()
		cfg.Problem.MainClusterFixed = false
		cfg.Halos.Main.XInit = Float(-300)
		cfg.Halos.Main.YInit = Float(0)
		cfg.Halos.Main.VXInit = Float(0.2)
		cfg.Halos.Main.VYInit = Float(-0.06)
		return cfg
	},
}

// merger drops a gas-rich subhalo onto a pinned main cluster.
func merger() *Config {
	cfg := DefaultConfig()
	cfg.Problem.NumHalo = 2
	cfg.Problem.SubhaloGas = true
	cfg.Halos.Sub = HaloConfig{
		Hernquist: &profile.Hernquist{Mass: 900, Scale: 150, RMax: 3000, GasFraction: 0.15},
		XInit:     Float(1500),
		YInit:     Float(0),
		VXInit:    Float(-1.0),
		VYInit:    Float(0.3),
	}
	cfg.Refinement = RefinementConfig{
		MinRefineDensity: 1e-6,
		RefRadius1:       300,
		RefRadius2:       200,
	}
	return cfg
}

func GetPreset(name string) *Config {
	build, ok := Presets[name]
	if !ok {
		return nil
	}
	return build()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
