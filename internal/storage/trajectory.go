package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/san-kum/clustersim/internal/orbit"
)

var trajectoryHeader = []string{
	"time",
	"x", "y", "z",
	"vx", "vy", "vz",
	"ax", "ay", "az",
	"ax_old", "ay_old", "az_old",
}

func trajectoryFileName(halo string) string { return halo + "_trajectory.csv" }

type TrajectoryRow struct {
	Time float64
	Halo orbit.Halo
}

// TrajectoryLog appends one CSV row per halo and step to
// <halo>_trajectory.csv. A header is written only when the file is new, so a
// resumed run continues the same log.
type TrajectoryLog struct {
	dir   string
	files map[string]*trajectoryFile
}

type trajectoryFile struct {
	f *os.File
	w *csv.Writer
}

func NewTrajectoryLog(dir string) *TrajectoryLog {
	return &TrajectoryLog{dir: dir, files: make(map[string]*trajectoryFile)}
}

func (l *TrajectoryLog) Append(halo string, t float64, h orbit.Halo) error {
	tf, err := l.open(halo)
	if err != nil {
		return err
	}

	row := make([]string, 0, len(trajectoryHeader))
	row = append(row, formatFloat(t))
	for _, v := range []orbit.Vec3{h.Pos, h.Vel, h.Acc, h.OldAcc} {
		for _, x := range v {
			row = append(row, formatFloat(x))
		}
	}
	if err := tf.w.Write(row); err != nil {
		return err
	}
	tf.w.Flush()
	return tf.w.Error()
}

func (l *TrajectoryLog) open(halo string) (*trajectoryFile, error) {
	if tf, ok := l.files[halo]; ok {
		return tf, nil
	}

	path := filepath.Join(l.dir, trajectoryFileName(halo))
	info, err := os.Stat(path)
	fresh := errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	tf := &trajectoryFile{f: f, w: csv.NewWriter(f)}
	if fresh {
		if err := tf.w.Write(trajectoryHeader); err != nil {
			f.Close()
			return nil, err
		}
	}
	l.files[halo] = tf
	return tf, nil
}

func (l *TrajectoryLog) Close() error {
	var errs []error
	for halo, tf := range l.files {
		tf.w.Flush()
		if err := tf.w.Error(); err != nil {
			errs = append(errs, err)
		}
		if err := tf.f.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(l.files, halo)
	}
	return errors.Join(errs...)
}

func ReadTrajectoryFile(path string) ([]TrajectoryRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTrajectory(f)
}

// ReadTrajectory parses a trajectory log. The header row is required.
func ReadTrajectory(r io.Reader) ([]TrajectoryRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(trajectoryHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("storage: empty trajectory log")
	}
	if records[0][0] != trajectoryHeader[0] {
		return nil, fmt.Errorf("storage: trajectory log has no header")
	}

	rows := make([]TrajectoryRow, 0, len(records)-1)
	for n, rec := range records[1:] {
		vals := make([]float64, len(rec))
		for i, s := range rec {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("storage: trajectory row %d column %s: %w", n+1, trajectoryHeader[i], err)
			}
			vals[i] = v
		}
		var row TrajectoryRow
		row.Time = vals[0]
		for c, v := range []*orbit.Vec3{&row.Halo.Pos, &row.Halo.Vel, &row.Halo.Acc, &row.Halo.OldAcc} {
			copy(v[:], vals[1+3*c:4+3*c])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
