package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/collegepense/pense/core/classroom"
	"github.com/collegepense/pense/core/screens"
)

type classListPage struct {
	ctrl   *screens.ClassList
	cursor int
}

func newClassListPage(ctrl *screens.ClassList) *classListPage {
	return &classListPage{ctrl: ctrl}
}

func (p *classListPage) selected() (classroom.Class, bool) {
	classes := p.ctrl.Classes()
	if len(classes) == 0 {
		return classroom.Class{}, false
	}
	p.cursor = clamp(p.cursor, len(classes))
	return classes[p.cursor], true
}

func (p *classListPage) update(m *Model, msg tea.KeyMsg) tea.Cmd {
	p.ctrl.DismissNotice()

	if _, ok := p.ctrl.PendingDelete(); ok {
		switch msg.String() {
		case "y":
			return m.run("delete class", p.ctrl.ConfirmDelete, nil)
		case "n", "esc":
			p.ctrl.CancelDelete()
		}
		return nil
	}

	sel, ok := p.selected()
	switch msg.String() {
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		p.cursor = clamp(p.cursor+1, len(p.ctrl.Classes()))
	case "r":
		return m.run("load classes", p.ctrl.Focus, nil)
	case "n":
		m.navigate(m.deps.Router.OpenClassForm(nil))
	case "enter":
		if ok {
			m.navigate(m.deps.Router.OpenActivities(sel.ID, sel.Name))
		}
	case "e":
		if ok {
			m.navigate(m.deps.Router.OpenClassForm(&sel))
		}
	case "d":
		if ok {
			if _, err := p.ctrl.RequestDelete(sel.ID); err != nil {
				m.deps.Logger.Warn(fmt.Sprintf("request delete: %v", err))
			}
		}
	}
	return nil
}

func (p *classListPage) view(s styles) string {
	var b strings.Builder
	b.WriteString(s.Title.Render("My classes"))
	b.WriteString("\n")

	classes := p.ctrl.Classes()
	switch {
	case p.ctrl.Loading() && len(classes) == 0:
		b.WriteString(s.Muted.Render("Loading classes..."))
	case len(classes) == 0:
		b.WriteString(s.Muted.Render("No classes yet. Press n to create one."))
	default:
		cur := clamp(p.cursor, len(classes))
		for i, cls := range classes {
			if i == cur {
				b.WriteString(s.Selected.Render("> " + cls.Name))
			} else {
				b.WriteString("  " + cls.Name)
			}
			b.WriteString("\n")
		}
	}

	if conf, ok := p.ctrl.PendingDelete(); ok {
		b.WriteString("\n" + s.Confirm.Render(confirmBox(conf)))
	}
	if p.ctrl.Busy() {
		b.WriteString("\n" + s.Muted.Render("Deleting..."))
	}
	if n := p.ctrl.Notice(); n != nil {
		b.WriteString("\n" + s.notice(n))
	}
	b.WriteString(s.Help.Render("↑/↓ move · enter activities · n new · e edit · d delete · r refresh · ctrl+o sign out"))
	return b.String()
}

func confirmBox(conf screens.Confirmation) string {
	return conf.Title + "\n" + conf.Message + "\n[y] yes  [n] no"
}

// clamp keeps i in [0, n).
func clamp(i, n int) int {
	switch {
	case n == 0 || i < 0:
		return 0
	case i >= n:
		return n - 1
	default:
		return i
	}
}
