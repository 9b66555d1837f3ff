package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/recap/internal/livesync"
	"github.com/desertthunder/recap/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	toast lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
		toast: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// Badge renders the connectivity indicator for mode.
func (p *Palette) Badge(mode models.ConnectivityMode) string {
	style := p.err
	switch mode {
	case models.ModePushConnected:
		style = p.ok
	case models.ModePushReconnecting, models.ModePollingFallback:
		style = p.warn
	}
	return style.Render("● " + mode.Label())
}

// Status colors a task status.
func (p *Palette) Status(s models.TaskStatus) string {
	switch s {
	case models.StatusCompleted:
		return p.ok.Render(string(s))
	case models.StatusFailed:
		return p.err.Render(string(s))
	default:
		return string(s)
	}
}

// Toast renders an alert box with a border colored by level.
func (p *Palette) Toast(a livesync.Alert) string {
	head := p.title
	color := p.title.GetForeground()
	switch a.Level {
	case livesync.AlertSuccess:
		head, color = p.ok, p.ok.GetForeground()
	case livesync.AlertFailure:
		head, color = p.err, p.err.GetForeground()
	}

	body := head.Render(a.Title)
	if a.Message != "" {
		body += "\n" + a.Message
	}
	if a.Link != "" {
		body += "\n" + p.help.Render(a.Link)
	}
	return p.toast.BorderForeground(color).Render(body)
}
