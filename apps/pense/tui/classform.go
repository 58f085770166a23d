package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/collegepense/pense/core/screens"
)

type classFormPage struct {
	page screens.Page
	ctrl *screens.ClassForm
	name textinput.Model
}

func newClassFormPage(page screens.Page, ctrl *screens.ClassForm) *classFormPage {
	p := &classFormPage{page: page, ctrl: ctrl, name: newInput("Class name", 0)}
	p.name.SetValue(ctrl.Name())
	p.name.Focus()
	return p
}

func (p *classFormPage) update(m *Model, msg tea.KeyMsg) tea.Cmd {
	p.ctrl.DismissNotice()

	switch msg.String() {
	case "esc":
		m.deps.Router.Back()
		return nil
	case "enter":
		ctrl := p.ctrl
		ctrl.SetName(p.name.Value())
		return m.run("save class", ctrl.Save, func(error) {
			if ctrl.Outcome() == screens.OutcomeBack && m.form != nil && m.form.ctrl == ctrl {
				m.deps.Router.Back()
			}
		})
	}

	var cmd tea.Cmd
	p.name, cmd = p.name.Update(msg)
	return cmd
}

func (p *classFormPage) view(s styles) string {
	var b strings.Builder
	title := "New class"
	if p.ctrl.Editing() {
		title = "Edit class"
	}
	b.WriteString(s.Title.Render(title))
	b.WriteString("\n")
	b.WriteString("Name\n" + p.name.View() + "\n")
	if p.ctrl.Busy() {
		b.WriteString("\n" + s.Muted.Render("Saving..."))
	}
	if n := p.ctrl.Notice(); n != nil {
		b.WriteString("\n" + s.notice(n))
	}
	b.WriteString(s.Help.Render("enter save · esc back"))
	return b.String()
}
