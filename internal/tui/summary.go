package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Skryldev/imagesizer/core"
	"github.com/Skryldev/imagesizer/utils"
)

type SummaryRow struct {
	Label string
	Value string
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		labelWidth = max(labelWidth, lipgloss.Width(row.Label))
		valueWidth = max(valueWidth, lipgloss.Width(row.Value))
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}
	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		lines = append(lines, fmt.Sprintf("%s | %s", labelStyle.Render(label), valueStyle.Render(value)))
	}
	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

// ResultRow is one line of the per-file result table.
type ResultRow struct {
	File    string
	Outcome string
	Output  string
	Size    string
	Pixels  string
	Ratio   string
	Failed  bool
}

// NewResultRow formats a transform result, or its error, for display.
func NewResultRow(source string, res *core.TransformResult, err error) ResultRow {
	row := ResultRow{File: filepath.Base(source)}
	if err != nil {
		row.Outcome = "error"
		row.Output = err.Error()
		row.Failed = true
		return row
	}

	row.Outcome = string(res.Outcome)
	row.Output = filepath.Base(res.OutputPath)
	if res.OutputPath == "" {
		row.Output = res.Message
	}
	if res.SourceBytes > 0 && res.SizeBytes > 0 {
		row.Size = fmt.Sprintf("%.2f → %.2f MB", utils.BytesToMB(res.SourceBytes), utils.BytesToMB(res.SizeBytes))
	}
	if res.SourceWidth > 0 && res.Width > 0 {
		row.Pixels = fmt.Sprintf("%d×%d → %d×%d", res.SourceWidth, res.SourceHeight, res.Width, res.Height)
	}
	row.Ratio = fmt.Sprintf("%.0f%%", res.Ratio*100)
	return row
}

// RenderResults draws the per-file table.
func RenderResults(rows []ResultRow) string {
	headers := []string{"File", "Outcome", "Output", "Size", "Pixels", "Ratio"}
	widths := make([]int, len(headers))
	cells := func(r ResultRow) []string {
		return []string{r.File, r.Outcome, r.Output, r.Size, r.Pixels, r.Ratio}
	}
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i, c := range cells(r) {
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}

	render := func(values []string, style lipgloss.Style) string {
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = style.Render(padRight(v, widths[i]))
		}
		return strings.Join(parts, "  ")
	}

	lines := []string{render(headers, headerStyle)}
	for _, r := range rows {
		style := valueStyle
		switch {
		case r.Failed:
			style = errorStyle
		case r.Outcome == string(core.OutcomeExhausted) || r.Outcome == string(core.OutcomeSkipped):
			style = warnStyle
		}
		lines = append(lines, render(cells(r), style))
	}
	return strings.Join(lines, "\n")
}

func padRight(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

var (
	valueStyle  = lipgloss.NewStyle().Foreground(ColorInk).Bold(true)
	headerStyle = lipgloss.NewStyle().Foreground(ColorAccentAlt).Underline(true)
	warnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	errorStyle  = lipgloss.NewStyle().Foreground(ColorError)
)
