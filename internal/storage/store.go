// Package storage keeps one directory per run under a base directory: the
// configuration it started from, its metadata, the latest checkpoint and the
// halo trajectory logs.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/san-kum/clustersim/internal/config"
)

const (
	metadataFile   = "metadata.json"
	configFile     = "config.yaml"
	checkpointFile = "checkpoint.json.gz"
)

// ErrNoCheckpoint indicates a run directory that was never checkpointed.
var ErrNoCheckpoint = errors.New("storage: run has no checkpoint")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Preset     string             `json:"preset"`
	Timestamp  time.Time          `json:"timestamp"`
	NumHalo    int                `json:"num_halo"`
	Fixed      bool               `json:"main_cluster_fixed"`
	Magnetic   bool               `json:"magnetic"`
	Dt         float64            `json:"dt"`
	Steps      int                `json:"steps"`
	Time       float64            `json:"time"`
	Blocks     int                `json:"blocks"`
	Ranks      int                `json:"ranks"`
	ResumedAt  int                `json:"resumed_at,omitempty"`
	Metrics    map[string]float64 `json:"metrics"`
	Refinement map[string]int     `json:"refinement,omitempty"`
}

// Run is one run directory.
type Run struct {
	ID  string
	Dir string
}

// Create makes a fresh run directory named after name and stores cfg in it.
func (s *Store) Create(name string, cfg *config.Config) (*Run, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	id := fmt.Sprintf("%s_%d", name, time.Now().Unix())
	dir := filepath.Join(s.baseDir, id)
	for n := 1; ; n++ {
		err := os.Mkdir(dir, 0755)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return nil, err
		}
		id = fmt.Sprintf("%s_%d_%d", name, time.Now().Unix(), n)
		dir = filepath.Join(s.baseDir, id)
	}

	if err := config.Save(filepath.Join(dir, configFile), cfg); err != nil {
		return nil, err
	}
	return &Run{ID: id, Dir: dir}, nil
}

// Open returns an existing run directory.
func (s *Store) Open(runID string) (*Run, error) {
	dir := filepath.Join(s.baseDir, runID)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: %s is not a run directory", dir)
	}
	return &Run{ID: runID, Dir: dir}, nil
}

// List returns the metadata of every run, oldest first. Directories without
// readable metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (r *Run) SaveMetadata(meta RunMetadata) error {
	meta.ID = r.ID
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	f, err := os.Create(filepath.Join(r.Dir, metadataFile))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

// Config reads back the configuration the run was created with.
func (r *Run) Config() (*config.Config, error) {
	return config.Load(filepath.Join(r.Dir, configFile))
}

// Trajectory opens the run's trajectory logs for appending.
func (r *Run) Trajectory() *TrajectoryLog {
	return NewTrajectoryLog(r.Dir)
}

// LoadTrajectory reads the log of one halo ("main" or "sub").
func (r *Run) LoadTrajectory(halo string) ([]TrajectoryRow, error) {
	return ReadTrajectoryFile(filepath.Join(r.Dir, trajectoryFileName(halo)))
}
