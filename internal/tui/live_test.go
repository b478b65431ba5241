package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/clustersim/internal/config"
	"github.com/san-kum/clustersim/internal/profile"
)

func mergerModel(t *testing.T) model {
	t.Helper()
	cfg := config.GetPreset("merger")
	main, err := cfg.Halos.Main.Hernquist.Table()
	if err != nil {
		t.Fatal(err)
	}
	sub, err := cfg.Halos.Sub.Hernquist.Table()
	if err != nil {
		t.Fatal(err)
	}
	m, err := newModel(cfg, main, sub)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func update(m model, msg tea.Msg) model {
	next, _ := m.Update(msg)
	return next.(model)
}

func TestNewRejectsSingleHalo(t *testing.T) {
	cfg := config.DefaultConfig()
	tbl, err := cfg.Halos.Main.Hernquist.Table()
	if err != nil {
		t.Fatal(err)
	}
	var sub *profile.Table
	if _, err := New(cfg, tbl, sub); !errors.Is(err, ErrSingleHalo) {
		t.Errorf("expected ErrSingleHalo, got %v", err)
	}
}

func TestTickAdvancesOrbit(t *testing.T) {
	m := mergerModel(t)
	start := m.in.Distance()

	m = update(m, tickMsg(time.Now()))
	if m.time != m.dt {
		t.Errorf("expected one step, time %g", m.time)
	}
	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'+'}})
	m = update(m, tickMsg(time.Now()))
	if m.time != 3*m.dt {
		t.Errorf("expected three steps at double speed, time %g", m.time)
	}
	if m.in.Distance() == start {
		t.Error("subhalo did not move")
	}
	if len(m.history) != 4 || len(m.trail) != 4 {
		t.Errorf("expected 4 samples, got %d", len(m.history))
	}
}

func TestPauseAndReset(t *testing.T) {
	m := mergerModel(t)
	m = update(m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if !m.paused {
		t.Fatal("expected paused")
	}
	m = update(m, tickMsg(time.Now()))
	if m.time != 0 {
		t.Error("paused viewer advanced")
	}

	m.paused = false
	m = update(m, tickMsg(time.Now()))
	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if m.time != 0 || len(m.history) != 1 {
		t.Errorf("reset left time %g and %d samples", m.time, len(m.history))
	}
}

func TestSpeedBounds(t *testing.T) {
	m := mergerModel(t)
	for i := 0; i < 10; i++ {
		m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'+'}})
	}
	if m.speed != maxSpeed {
		t.Errorf("expected speed capped at %d, got %d", maxSpeed, m.speed)
	}
	for i := 0; i < 10; i++ {
		m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'-'}})
	}
	if m.speed != 1 {
		t.Errorf("expected speed floor 1, got %d", m.speed)
	}
}

func TestView(t *testing.T) {
	m := mergerModel(t)
	m = update(m, tea.WindowSizeMsg{Width: 60, Height: 30})
	out := m.View()
	for _, want := range []string{"clustersim orbit", "separation", "@", "o", "q quit"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in view", want)
		}
	}
}
