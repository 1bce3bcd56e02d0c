// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"spectre/internal/analysis"
	"spectre/internal/audio"
)

// sparks holds one rune per eighth of a character cell, blank first.
var sparks = []rune(" ▁▂▃▄▅▆▇█")

var (
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFDF5"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")).Bold(true)
)

var quitKeys = key.NewBinding(key.WithKeys("q", "ctrl+c"))

// SpectrumConfig configures the terminal spectrum display.
type SpectrumConfig struct {
	Refresh  time.Duration     // time between frames
	AmpScale float64           // dB shown between the floor and 0 dBFS
	Title    string            // shown at the start of the status line
	Level    *audio.LevelMeter // input meter for the status line, may be nil
}

type tickMsg time.Time

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// SpectrumModel draws the spectrum one column per display bin, each column a
// bar of sparkline runes. Every tick runs one pipeline step at the current
// terminal width.
type SpectrumModel struct {
	pipeline *analysis.Pipeline
	cfg      SpectrumConfig

	width, height int
	centers       []float64
	spectrum      []float32
	status        string
	inputDBFS     float64
	err           error
}

// NewSpectrumModel returns a model driving pipeline.
func NewSpectrumModel(pipeline *analysis.Pipeline, cfg SpectrumConfig) SpectrumModel {
	if cfg.Refresh <= 0 {
		cfg.Refresh = time.Second / 60
	}
	if cfg.AmpScale <= 0 {
		cfg.AmpScale = 80
	}
	return SpectrumModel{
		pipeline:  pipeline,
		cfg:       cfg,
		inputDBFS: math.Inf(-1),
	}
}

// Err returns the fatal error that ended the program, if any.
func (m SpectrumModel) Err() error {
	return m.err
}

func (m SpectrumModel) Init() tea.Cmd {
	return tick(m.cfg.Refresh)
}

func (m SpectrumModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if m.width > 0 {
			m.centers = m.pipeline.Axis().Centers(m.width)
		}

	case tea.KeyMsg:
		if key.Matches(msg, quitKeys) {
			return m, tea.Quit
		}

	case tickMsg:
		if m.width <= 0 {
			return m, tick(m.cfg.Refresh)
		}
		frame, err := m.pipeline.Step(m.width)
		if err != nil {
			m.err = err
			return m, tea.Quit
		}
		switch frame.Status {
		case analysis.StatusOK:
			m.spectrum = append(m.spectrum[:0], frame.Spectrum...)
			m.status = ""
		case analysis.StatusUnderrun:
			m.status = "underrun: no new audio"
		case analysis.StatusOverrun:
			m.status = fmt.Sprintf("overrun: %d samples lost", frame.Excess)
		}
		if m.cfg.Level != nil {
			m.inputDBFS = m.cfg.Level.PeakDBFS()
		}
		return m, tick(m.cfg.Refresh)
	}
	return m, nil
}

func (m SpectrumModel) View() string {
	if m.width <= 0 || m.height <= 0 {
		return "Initializing..."
	}
	var sb strings.Builder
	rows := max(m.height-1, 1)
	for _, line := range renderBars(m.spectrum, rows, m.cfg.AmpScale) {
		sb.WriteString(barStyle.Render(line))
		sb.WriteByte('\n')
	}
	sb.WriteString(m.statusLine())
	return sb.String()
}

func (m SpectrumModel) statusLine() string {
	parts := make([]string, 0, 4)
	if m.cfg.Title != "" {
		parts = append(parts, m.cfg.Title)
	}
	if peak, ok := peakBin(m.spectrum); ok && peak < len(m.centers) {
		parts = append(parts, fmt.Sprintf("peak %.0f Hz %.1f dBFS", m.centers[peak], m.spectrum[peak]))
	}
	if m.cfg.Level != nil {
		parts = append(parts, fmt.Sprintf("input %.1f dBFS", m.inputDBFS))
	}
	parts = append(parts, "q: quit")
	line := statusStyle.Render(strings.Join(parts, " • "))
	if m.status != "" {
		line = warnStyle.Render(m.status) + "  " + line
	}
	return line
}

func peakBin(spectrum []float32) (int, bool) {
	if len(spectrum) == 0 {
		return 0, false
	}
	peak := 0
	for i, v := range spectrum {
		if v > spectrum[peak] {
			peak = i
		}
	}
	return peak, true
}

// renderBars draws spectrum as rows lines, top first. A bin at 0 dBFS fills
// its column, a bin at -ampScale dB or below leaves it blank.
func renderBars(spectrum []float32, rows int, ampScale float64) []string {
	lines := make([]string, rows)
	eighths := make([]int, len(spectrum))
	for i, v := range spectrum {
		h := (float64(v) + ampScale) / ampScale
		if math.IsNaN(h) {
			h = 0
		}
		h = min(max(h, 0), 1)
		eighths[i] = int(math.Round(h * float64(rows*8)))
	}

	line := make([]rune, len(spectrum))
	for r := range rows {
		base := (rows - 1 - r) * 8
		for i, e := range eighths {
			line[i] = sparks[min(max(e-base, 0), 8)]
		}
		lines[r] = string(line)
	}
	return lines
}

// RunSpectrum runs the terminal display in the alternate screen until the
// user quits, ctx is cancelled or the pipeline fails. The pipeline failure is
// returned.
func RunSpectrum(ctx context.Context, pipeline *analysis.Pipeline, cfg SpectrumConfig) error {
	p := tea.NewProgram(
		NewSpectrumModel(pipeline, cfg),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if m, ok := final.(SpectrumModel); ok {
		return m.Err()
	}
	return nil
}
