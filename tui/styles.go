package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	header   lipgloss.Style
	title    lipgloss.Style
	muted    lipgloss.Style
	ok       lipgloss.Style
	warn     lipgloss.Style
	bad      lipgloss.Style
	barFull  lipgloss.Style
	barEmpty lipgloss.Style
	panel    lipgloss.Style
	footer   lipgloss.Style
	modal    lipgloss.Style
	selected lipgloss.Style
	checkbox lipgloss.Style
	byStatus map[string]lipgloss.Style
}

func newStyles() styles {
	var (
		mint  = lipgloss.Color("#05ffa1")
		blue  = lipgloss.Color("#01cdfe")
		pink  = lipgloss.Color("#ff71ce")
		amber = lipgloss.Color("#ffd166")
		muted = lipgloss.Color("#7a7a8c")
		text  = lipgloss.Color("#e6e6f0")
	)
	return styles{
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(text).
			Padding(0, 1),
		title:    lipgloss.NewStyle().Foreground(blue).Bold(true),
		muted:    lipgloss.NewStyle().Foreground(muted),
		ok:       lipgloss.NewStyle().Foreground(mint).Bold(true),
		warn:     lipgloss.NewStyle().Foreground(amber).Bold(true),
		bad:      lipgloss.NewStyle().Foreground(pink).Bold(true),
		barFull:  lipgloss.NewStyle().Foreground(mint),
		barEmpty: lipgloss.NewStyle().Foreground(muted),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
		footer: lipgloss.NewStyle().Foreground(muted).Padding(0, 1),
		modal: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(blue).
			Padding(1, 3),
		selected: lipgloss.NewStyle().Foreground(pink).Bold(true),
		checkbox: lipgloss.NewStyle().Foreground(amber),
		byStatus: map[string]lipgloss.Style{
			"completed":   lipgloss.NewStyle().Foreground(mint),
			"in_progress": lipgloss.NewStyle().Foreground(blue),
			"running":     lipgloss.NewStyle().Foreground(blue),
			"busy":        lipgloss.NewStyle().Foreground(blue),
			"failed":      lipgloss.NewStyle().Foreground(pink),
			"error":       lipgloss.NewStyle().Foreground(pink),
			"paused":      lipgloss.NewStyle().Foreground(amber),
		},
	}
}

func (s styles) status(raw string) lipgloss.Style {
	if st, ok := s.byStatus[raw]; ok {
		return st
	}
	return s.muted
}
