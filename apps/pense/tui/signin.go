package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/collegepense/pense/core/screens"
)

func newInput(placeholder string, limit int) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = limit
	in.Width = 48
	in.Cursor.SetMode(cursor.CursorStatic)
	return in
}

type signInPage struct {
	ctrl     *screens.SignIn
	email    textinput.Model
	password textinput.Model
	focus    int
}

func newSignInPage(ctrl *screens.SignIn) *signInPage {
	p := &signInPage{
		ctrl:     ctrl,
		email:    newInput("professor@school.edu", 254),
		password: newInput("password", 128),
	}
	p.password.EchoMode = textinput.EchoPassword
	p.password.EchoCharacter = '•'
	p.email.Focus()
	return p
}

func (p *signInPage) toggle() {
	if p.focus == 0 {
		p.focus = 1
		p.email.Blur()
		p.password.Focus()
		return
	}
	p.focus = 0
	p.password.Blur()
	p.email.Focus()
}

func (p *signInPage) update(m *Model, msg tea.KeyMsg) tea.Cmd {
	p.ctrl.DismissNotice()

	switch msg.String() {
	case "tab", "shift+tab", "up", "down":
		p.toggle()
		return nil
	case "enter":
		p.ctrl.SetEmail(p.email.Value())
		p.ctrl.SetPassword(p.password.Value())
		return m.run("sign in", p.ctrl.Submit, func(err error) {
			if err == nil {
				p.password.SetValue("")
			}
		})
	case "ctrl+r":
		p.ctrl.SetEmail(p.email.Value())
		return m.run("recover password", p.ctrl.RecoverPassword, nil)
	}

	var cmd tea.Cmd
	if p.focus == 0 {
		p.email, cmd = p.email.Update(msg)
	} else {
		p.password, cmd = p.password.Update(msg)
	}
	return cmd
}

func (p *signInPage) view(s styles) string {
	var b strings.Builder
	b.WriteString(s.Title.Render("Sign in"))
	b.WriteString("\n")
	b.WriteString("Email\n" + p.email.View() + "\n\n")
	b.WriteString("Password\n" + p.password.View() + "\n")
	if p.ctrl.Busy() {
		b.WriteString("\n" + s.Muted.Render("Signing in..."))
	}
	if n := p.ctrl.Notice(); n != nil {
		b.WriteString("\n" + s.notice(n))
	}
	b.WriteString(s.Help.Render("tab switch field · enter sign in · ctrl+r forgot password · ctrl+c quit"))
	return b.String()
}
