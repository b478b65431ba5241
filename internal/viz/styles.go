package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444466")).
		Padding(0, 2)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00ffff"))

	Subtle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688"))

	StatusRunning = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ff88"))

	StatusPaused = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffaa00"))

	MetricValue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)

	MetricLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899"))

	KeyHint = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688")).
		Italic(true)

	MainHalo = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00")).Bold(true)
	SubHalo  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff00ff")).Bold(true)
	Trail    = lipgloss.NewStyle().Foreground(lipgloss.Color("#444466"))

	SparkHigh = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
	SparkMid  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
	SparkLow  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
)

// KV is one row of a label/value panel.
type KV struct {
	Label string
	Value string
}

// Float formats v for a panel row.
func Float(label string, v float64) KV {
	return KV{Label: label, Value: fmt.Sprintf("%.6g", v)}
}

// Pairs renders aligned label/value rows, optionally inside a titled panel.
func Pairs(title string, rows []KV) string {
	width := 0
	for _, r := range rows {
		width = max(width, len(r.Label))
	}
	var b strings.Builder
	if title != "" {
		b.WriteString(Title.Render(title) + "\n")
	}
	for i, r := range rows {
		b.WriteString(MetricLabel.Render(fmt.Sprintf("%-*s", width, r.Label)))
		b.WriteString("  ")
		b.WriteString(MetricValue.Render(r.Value))
		if i < len(rows)-1 {
			b.WriteString("\n")
		}
	}
	return Panel.Render(b.String())
}

// ProgressBar renders a bar filled to fraction percent of width.
func ProgressBar(percent float64, width int) string {
	filled := int(percent * float64(width))
	filled = min(max(filled, 0), width)

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	if percent > 0.8 {
		return SparkHigh.Render(bar)
	} else if percent > 0.4 {
		return SparkMid.Render(bar)
	}
	return SparkLow.Render(bar)
}

// SparklineChart renders the most recent width values as a sparkline.
func SparklineChart(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	var result strings.Builder
	for _, v := range values {
		norm := (v - lo) / rng
		idx := min(max(int(norm*float64(len(chars)-1)), 0), len(chars)-1)
		c := string(chars[idx])
		switch {
		case norm > 0.7:
			result.WriteString(SparkHigh.Render(c))
		case norm > 0.3:
			result.WriteString(SparkMid.Render(c))
		default:
			result.WriteString(SparkLow.Render(c))
		}
	}
	return result.String()
}

func Separator(width int) string {
	mid := width / 2
	left := strings.Repeat("─", max(mid-3, 0))
	right := strings.Repeat("─", max(width-mid-3, 0))
	return Subtle.Render(left + " ◆ " + right)
}
