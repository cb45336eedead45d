package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/wlsync/internal/models"
)

const (
	colorTitle = "#7D56F4"
	colorOK    = "#04B575"
	colorError = "#FF0000"
	colorWarn  = "#FFA500"
	colorMuted = "#626262"
)

var styles = NewPalette(colorTitle, colorOK, colorError, colorWarn, colorMuted)

// struct Palette is the monitor's stylesheet: a header, status colors and the bar labels.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	label lipgloss.Style // fixed width so both bars start in the same column
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
		label: NewStyle(h).Width(labelWidth),
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

const labelWidth = 12

// statusStyle colors a command response status.
func statusStyle(status models.ResponseStatus) lipgloss.Style {
	switch status {
	case models.ResponseDone:
		return styles.ok
	case models.ResponseFail:
		return styles.err
	case models.ResponseWarning, models.ResponseInfo:
		return styles.warn
	}
	return styles.help
}
