package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/collegepense/pense/core/screens"
)

var (
	primary     = lipgloss.Color("#101F38")
	accent      = lipgloss.Color("#8BC34A")
	muted       = lipgloss.Color("#8a94a6")
	destructive = lipgloss.Color("#e53935")
	warning     = lipgloss.Color("#FFC107")
	info        = lipgloss.Color("#2196F3")
)

type styles struct {
	Header   lipgloss.Style
	Title    lipgloss.Style
	Selected lipgloss.Style
	Muted    lipgloss.Style
	Help     lipgloss.Style
	Modal    lipgloss.Style
	Confirm  lipgloss.Style
	notices  map[screens.NoticeKind]lipgloss.Style
}

func defaultStyles() styles {
	notice := lipgloss.NewStyle().Padding(0, 1).Bold(true)
	return styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f2f2f2")).Background(primary).Padding(0, 1),
		Title:    lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(accent),
		Muted:    lipgloss.NewStyle().Foreground(muted),
		Help:     lipgloss.NewStyle().Foreground(muted).MarginTop(1),
		Modal:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 1),
		Confirm:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(destructive).Padding(0, 1),
		notices: map[screens.NoticeKind]lipgloss.Style{
			screens.NoticeInfo:       notice.Foreground(info),
			screens.NoticeSuccess:    notice.Foreground(accent),
			screens.NoticeValidation: notice.Foreground(warning),
			screens.NoticeError:      notice.Foreground(destructive),
		},
	}
}

func (s styles) notice(n *screens.Notice) string {
	if n == nil {
		return ""
	}
	st, ok := s.notices[n.Kind]
	if !ok {
		st = s.notices[screens.NoticeInfo]
	}
	if n.Title == "" {
		return st.Render(n.Message)
	}
	return st.Render(n.Title + ": " + n.Message)
}
