// Package tui is the live orbit viewer: it integrates the two-halo trajectory
// in the terminal and draws the halos in the orbital plane.
package tui

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/clustersim/internal/cluster"
	"github.com/san-kum/clustersim/internal/config"
	"github.com/san-kum/clustersim/internal/orbit"
	"github.com/san-kum/clustersim/internal/profile"
	"github.com/san-kum/clustersim/internal/viz"
)

// ErrSingleHalo is returned for a configuration with nothing to orbit.
var ErrSingleHalo = errors.New("tui: live viewer needs two halos")

const (
	trailLen   = 400
	historyLen = 120
	maxSpeed   = 64
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type model struct {
	cfg       *config.Config
	main, sub *profile.Table

	in     *orbit.Integrator
	dt     float64
	time   float64
	speed  int
	paused bool

	trail   []orbit.Vec3
	history []float64

	center [3]float64
	half   float64

	width, height int
	err           error
}

// New builds the viewer model for cfg. Both tables must be loaded.
func New(cfg *config.Config, main, sub *profile.Table) (tea.Model, error) {
	m, err := newModel(cfg, main, sub)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func newModel(cfg *config.Config, main, sub *profile.Table) (model, error) {
	if cfg.Problem.NumHalo != 2 || sub == nil {
		return model{}, ErrSingleHalo
	}
	m := model{
		cfg:    cfg,
		main:   main,
		sub:    sub,
		dt:     cfg.Run.Dt,
		speed:  1,
		center: cfg.Mesh.Center(),
		width:  80,
		height: 30,
	}
	for a := 0; a < 2; a++ {
		m.half = math.Max(m.half, 0.5*(cfg.Mesh.Max[a]-cfg.Mesh.Min[a]))
	}
	if err := m.reset(); err != nil {
		return model{}, err
	}
	return m, nil
}

// Run opens the viewer on the alternate screen until the user quits.
func Run(cfg *config.Config, main, sub *profile.Table) error {
	m, err := New(cfg, main, sub)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (m *model) reset() error {
	mainHalo, subHalo := cluster.InitialHalos(m.cfg)
	in, err := orbit.New(m.main, m.sub, mainHalo, subHalo, m.cfg.Problem.MainClusterFixed)
	if err != nil {
		return err
	}
	m.in = in
	m.time = 0
	m.trail = m.trail[:0]
	m.history = m.history[:0]
	m.record()
	return nil
}

func (m *model) record() {
	st := m.in.State()
	m.trail = append(m.trail, st.Sub.Pos)
	if len(m.trail) > trailLen {
		m.trail = m.trail[1:]
	}
	m.history = append(m.history, m.in.Distance())
	if len(m.history) > historyLen {
		m.history = m.history[1:]
	}
}

func (m *model) step() {
	if err := m.in.Step(m.dt); err != nil {
		m.err = err
		m.paused = true
		return
	}
	m.time += m.dt
	m.record()
}

func (m model) Init() tea.Cmd { return tick() }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ", "p":
			m.paused = !m.paused
		case "+", "=":
			m.speed = min(m.speed*2, maxSpeed)
		case "-", "_":
			m.speed = max(m.speed/2, 1)
		case "r":
			m.err = m.reset()
			m.paused = false
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		if !m.paused {
			for i := 0; i < m.speed; i++ {
				m.step()
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	status := viz.StatusRunning.Render("running")
	if m.paused {
		status = viz.StatusPaused.Render("paused")
	}
	b.WriteString(viz.Title.Render("clustersim orbit") + "  " + status +
		viz.Subtle.Render(fmt.Sprintf("  x%d", m.speed)) + "\n")

	cw := max(m.width-4, 40)
	ch := max(m.height-12, 12)
	b.WriteString(m.canvas(cw, ch))
	b.WriteString(viz.Separator(cw) + "\n")

	st := m.in.State()
	speed := math.Hypot(st.Sub.Vel[0], st.Sub.Vel[1])
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		viz.MetricLabel.Render("t"), viz.MetricValue.Render(fmt.Sprintf("%.1f", m.time)),
		viz.MetricLabel.Render("separation"), viz.MetricValue.Render(fmt.Sprintf("%.1f", m.in.Distance())),
		viz.MetricLabel.Render("|v_sub|"), viz.MetricValue.Render(fmt.Sprintf("%.3f", speed))))
	b.WriteString(viz.SparklineChart(m.history, cw) + "\n")
	if m.err != nil {
		b.WriteString(viz.SparkLow.Render(m.err.Error()) + "\n")
	}
	b.WriteString(viz.KeyHint.Render("space pause  +/- speed  r reset  q quit"))
	return b.String()
}

// canvas projects the trail and both halos onto the x-y plane of the domain.
func (m model) canvas(w, h int) string {
	grid := make([][]rune, h)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(" ", w))
	}
	project := func(p orbit.Vec3) (int, int, bool) {
		x := int((p[0] - m.center[0] + m.half) / (2 * m.half) * float64(w-1))
		y := int((m.center[1] + m.half - p[1]) / (2 * m.half) * float64(h-1))
		return x, y, x >= 0 && x < w && y >= 0 && y < h
	}

	for _, p := range m.trail {
		if x, y, ok := project(p); ok {
			grid[y][x] = '·'
		}
	}
	st := m.in.State()
	if x, y, ok := project(st.Sub.Pos); ok {
		grid[y][x] = 'o'
	}
	if x, y, ok := project(st.Main.Pos); ok {
		grid[y][x] = '@'
	}

	var b strings.Builder
	for _, row := range grid {
		for _, c := range row {
			switch c {
			case '@':
				b.WriteString(viz.MainHalo.Render(string(c)))
			case 'o':
				b.WriteString(viz.SubHalo.Render(string(c)))
			case '·':
				b.WriteString(viz.Trail.Render(string(c)))
			default:
				b.WriteRune(c)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
