package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"karolbroda.com/lyricast/internal/lyrics"
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E8E8E8")).Bold(true)
	artistStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0A0A0"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5C5C5C"))
	focusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	contextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#707070"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8A8A")).Italic(true)
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	filledStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C0C0C0"))
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	width := m.width
	height := m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}

	var lines []string
	if !m.hideHeader && m.snap.Track != nil {
		lines = append(lines, m.renderHeader(width)...)
	}

	bodyHeight := height - len(lines) - 1
	lines = append(lines, m.renderBody(bodyHeight, width)...)

	for len(lines) < height-1 {
		lines = append(lines, "")
	}
	if len(lines) > height-1 {
		lines = lines[:height-1]
	}

	lines = append(lines, m.renderFooter(width))

	return strings.Join(lines, "\n")
}

func (m Model) renderHeader(width int) []string {
	trk := m.snap.Track

	maxWidth := width - 4
	if maxWidth < 20 {
		maxWidth = 20
	}

	lines := []string{
		"",
		"  " + titleStyle.Render(truncate(trk.Title, maxWidth)),
		"  " + artistStyle.Render(truncate(trk.Artist, maxWidth)),
		"",
	}

	if trk.DurationMs > 0 {
		lines = append(lines, m.renderProgress(width), "")
	}

	return lines
}

func (m Model) renderProgress(width int) string {
	trk := m.snap.Track

	barWidth := width - 20
	if barWidth < 20 {
		barWidth = 20
	}

	progress := float64(m.snap.PositionMs) / float64(trk.DurationMs)
	if progress > 1.0 {
		progress = 1.0
	}
	if progress < 0 {
		progress = 0
	}

	filledWidth := int(float64(barWidth) * progress)

	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		if i < filledWidth {
			bar.WriteString(filledStyle.Render("━"))
		} else if i == filledWidth {
			bar.WriteString(filledStyle.Render("●"))
		} else {
			bar.WriteString(dimStyle.Render("─"))
		}
	}

	return fmt.Sprintf("  %s  %s  %s",
		dimStyle.Render(formatTime(m.snap.PositionMs)),
		bar.String(),
		dimStyle.Render(formatTime(trk.DurationMs)))
}

func (m Model) renderBody(height int, width int) []string {
	lines := make([]string, 0, height)

	set := m.snap.Lyrics
	if set == nil || !set.IsSynced() {
		text := m.snap.DisplayText()
		style := statusStyle
		if set != nil && set.Kind == lyrics.KindPlain {
			style = contextStyle
		}
		if set != nil && set.Kind == lyrics.KindError {
			style = errStyle
		}

		block := strings.Split(text, "\n")
		for i := 0; i < (height-len(block))/2; i++ {
			lines = append(lines, "")
		}
		for _, line := range block {
			lines = append(lines, centerText(style.Render(line), lipgloss.Width(line), width))
		}
		return lines
	}

	contextCount := 2
	if height < 12 {
		contextCount = 1
	}

	for i := 0; i < height/2-contextCount-1; i++ {
		lines = append(lines, "")
	}

	active := m.snap.ActiveIndex
	for offset := -contextCount; offset <= contextCount; offset++ {
		idx := active + offset
		if idx < 0 || idx >= len(set.Lines) {
			lines = append(lines, "")
			continue
		}

		if offset == 0 {
			text := m.snap.ActiveLine
			if text == "" {
				text = "···"
			}
			lines = append(lines, centerText(focusStyle.Render(text), lipgloss.Width(text), width))
			continue
		}

		text := set.Lines[idx].Text
		if text == "" {
			text = "···"
		}
		lines = append(lines, centerText(contextStyle.Render(text), lipgloss.Width(text), width))
	}

	if active < 0 {
		lines = append(lines, centerText(dimStyle.Render("♪"), 1, width))
	}

	return lines
}

func (m Model) renderFooter(width int) string {
	parts := []string{fmt.Sprintf("offset %+dms", m.manualOffset)}
	if m.source != "" {
		parts = append(parts, m.source)
	}
	if !m.snap.Playing && m.snap.Track != nil {
		parts = append(parts, "paused")
	}
	if m.err != nil {
		parts = append(parts, m.err.Error())
	}

	return "  " + dimStyle.Render(truncate(strings.Join(parts, " · "), width-2))
}

func formatTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	seconds := ms / 1000
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func truncate(text string, maxWidth int) string {
	runes := []rune(text)
	if maxWidth <= 1 || len(runes) <= maxWidth {
		return text
	}
	return string(runes[:maxWidth-1]) + "…"
}

func centerText(text string, visualWidth int, screenWidth int) string {
	padding := (screenWidth - visualWidth) / 2
	if padding < 0 {
		padding = 0
	}
	return strings.Repeat(" ", padding) + text
}
