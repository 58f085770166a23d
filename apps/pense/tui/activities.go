package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/classroom"
	"github.com/collegepense/pense/core/screens"
)

const dateLayout = "02/01/2006 15:04"

type activitiesPage struct {
	ctrl   *screens.Activities
	cursor int
	editor textarea.Model
}

func newActivitiesPage(ctrl *screens.Activities) *activitiesPage {
	ed := textarea.New()
	ed.Placeholder = "Describe the activity"
	ed.ShowLineNumbers = false
	ed.CharLimit = 0
	ed.SetWidth(60)
	ed.SetHeight(5)
	ed.Cursor.SetMode(cursor.CursorStatic)
	return &activitiesPage{ctrl: ctrl, editor: ed}
}

func (p *activitiesPage) selected() (classroom.Activity, bool) {
	acts := p.ctrl.Activities()
	if len(acts) == 0 {
		return classroom.Activity{}, false
	}
	p.cursor = clamp(p.cursor, len(acts))
	return acts[p.cursor], true
}

func (p *activitiesPage) update(m *Model, msg tea.KeyMsg) tea.Cmd {
	p.ctrl.DismissNotice()

	if open, _, _ := p.ctrl.Modal(); open {
		switch msg.String() {
		case "esc":
			p.ctrl.Close()
			p.editor.Blur()
			return nil
		case "ctrl+s":
			p.ctrl.SetDescription(p.editor.Value())
			return m.run("save activity", p.ctrl.Save, func(error) {
				if open, _, _ := p.ctrl.Modal(); !open {
					p.editor.Blur()
				}
			})
		}
		var cmd tea.Cmd
		p.editor, cmd = p.editor.Update(msg)
		return cmd
	}

	if _, ok := p.ctrl.PendingDelete(); ok {
		switch msg.String() {
		case "y":
			return m.run("delete activity", p.ctrl.ConfirmDelete, nil)
		case "n", "esc":
			p.ctrl.CancelDelete()
		}
		return nil
	}

	sel, ok := p.selected()
	switch msg.String() {
	case "esc":
		m.deps.Router.Back()
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		p.cursor = clamp(p.cursor+1, len(p.ctrl.Activities()))
	case "r":
		return m.run("load activities", p.ctrl.Refresh, nil)
	case "n":
		p.ctrl.OpenCreate()
		p.editor.Reset()
		p.editor.Focus()
	case "e":
		if ok {
			p.ctrl.OpenEdit(sel)
			p.editor.SetValue(sel.Description)
			p.editor.Focus()
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

func (p *activitiesPage) view(s styles) string {
	var b strings.Builder
	b.WriteString(s.Title.Render("Activities · " + p.ctrl.ClassName()))
	b.WriteString("\n")

	acts := p.ctrl.Activities()
	switch {
	case p.ctrl.Loading() && len(acts) == 0:
		b.WriteString(s.Muted.Render("Loading activities..."))
	case len(acts) == 0:
		b.WriteString(s.Muted.Render("No activities yet. Press n to add one."))
	default:
		cur := clamp(p.cursor, len(acts))
		for i, act := range acts {
			line := fmt.Sprintf("%s  %s", act.CreatedAt.Local().Format(dateLayout), core.Truncate(act.Description, 60))
			if i == cur {
				b.WriteString(s.Selected.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
	}

	if open, editing, _ := p.ctrl.Modal(); open {
		title := "New activity"
		if editing != nil {
			title = "Edit activity"
		}
		modal := title + "\n" + p.editor.View() + "\n" + s.Muted.Render("ctrl+s save · esc cancel")
		b.WriteString("\n" + s.Modal.Render(modal))
	}
	if conf, ok := p.ctrl.PendingDelete(); ok {
		b.WriteString("\n" + s.Confirm.Render(confirmBox(conf)))
	}
	if p.ctrl.Busy() {
		b.WriteString("\n" + s.Muted.Render("Saving..."))
	}
	if n := p.ctrl.Notice(); n != nil {
		b.WriteString("\n" + s.notice(n))
	}
	b.WriteString(s.Help.Render("↑/↓ move · n new · e edit · d delete · r refresh · esc back"))
	return b.String()
}
