// Package tui renders batch progress with bubbletea and the final result
// table with lipgloss.
package tui

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Skryldev/imagesizer/core"
)

type Model struct {
	updates   <-chan core.ProgressUpdate
	started   time.Time
	width     int
	total     int
	fractions map[int]float64
	done      int
	errors    int
	current   string
	quitting  bool
}

type doneMsg struct{}

type updateMsg core.ProgressUpdate

// NewModel tracks total files fed through updates.  The program quits when
// updates is closed.
func NewModel(updates <-chan core.ProgressUpdate, total int) Model {
	return Model{
		updates:   updates,
		started:   time.Now(),
		total:     total,
		fractions: make(map[int]float64, total),
	}
}

func (m Model) Init() tea.Cmd {
	return listenForUpdates(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		if msg.Fraction > m.fractions[msg.Index] {
			m.fractions[msg.Index] = msg.Fraction
		}
		m.current = filepath.Base(msg.Path)
		if msg.Done {
			m.fractions[msg.Index] = 1
			m.done++
			if msg.Err != nil {
				m.errors++
			}
		}
		return m, listenForUpdates(m.updates)
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

// Overall is the mean completion over all files.
func (m Model) Overall() float64 {
	if m.total == 0 {
		return 0
	}
	sum := 0.0
	for _, f := range m.fractions {
		sum += f
	}
	return math.Min(1, sum/float64(m.total))
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = max(20, min(60, m.width-10))
	}

	elapsed := time.Since(m.started).Round(time.Millisecond)
	lines := []string{
		titleStyle.Render("imagesizer"),
		labelStyle.Render(fmt.Sprintf("Files: %d/%d", m.done, m.total)) + dimStyle.Render(fmt.Sprintf("  errors:%d", m.errors)),
		dimStyle.Render(fmt.Sprintf("Current: %s", m.current)),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed)),
		barStyle.Render(renderBar(barWidth, m.Overall())) + labelStyle.Render(fmt.Sprintf(" %3.0f%%", m.Overall()*100)),
	}
	return strings.Join(lines, "\n")
}

func listenForUpdates(updates <-chan core.ProgressUpdate) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return updateMsg(update)
	}
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	filled = max(0, min(filled, width))
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	labelStyle = lipgloss.NewStyle().Foreground(ColorInk)
	barStyle   = lipgloss.NewStyle().Foreground(ColorSuccess)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDim)
)
