// Package tui is the terminal client. The root model renders strictly from the router; page
// state lives in the screens controllers and every network call runs as a tea.Cmd.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/classroom"
	"github.com/collegepense/pense/core/screens"
	"github.com/collegepense/pense/core/session"
)

type Deps struct {
	Store      *session.Store
	Router     *screens.Router
	Auth       session.Auth
	Classes    *classroom.Service
	Validate   *validator.Validate
	Translator ut.Translator
	Logger     core.Logger
}

// RouteChanged asks the model to follow the router. Run sends it on every router change.
type RouteChanged struct{}

// opDoneMsg ends a network call started by Update. after runs on the UI loop.
type opDoneMsg struct {
	op    string
	err   error
	after func(error)
}

type Model struct {
	deps   Deps
	ctx    context.Context
	cancel context.CancelFunc
	styles styles
	width  int

	view  screens.View
	owner string // professor the class pages were built for

	signIn     *signInPage
	classes    *classListPage
	activities *activitiesPage
	form       *classFormPage

	notice   *screens.Notice // outlives the page that raised it
	quitting bool
}

var _ tea.Model = (*Model)(nil)

func NewModel(deps Deps) *Model {
	if deps.Logger == nil {
		deps.Logger = core.NopLogger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Model{deps: deps, ctx: ctx, cancel: cancel, styles: defaultStyles(), view: screens.View{Route: -1}}
}

// Run renders m until the user quits.
func Run(m *Model, opts ...tea.ProgramOption) error {
	p := tea.NewProgram(m, opts...)
	m.deps.Router.Watch(func(screens.View) {
		go p.Send(RouteChanged{}) // watchers may fire from inside Update
	})
	_, err := p.Run()
	m.Close()
	return err
}

// Close unmounts every page and cancels the calls in flight.
func (m *Model) Close() {
	m.cancel()
	m.dropSignIn()
	m.dropClasses()
}

func (m *Model) Init() tea.Cmd {
	return m.sync()
}

// run starts fn as a tea.Cmd. Its result comes back as an opDoneMsg.
func (m *Model) run(op string, fn func(ctx context.Context) error, after func(error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx), after: after}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case RouteChanged:
		return m, m.sync()

	case opDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, screens.ErrBusy) {
			m.deps.Logger.Warn(fmt.Sprintf("%s failed: %v", msg.op, msg.err))
		}
		if msg.after != nil {
			msg.after(msg.err)
		}
		return m, m.sync()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			m.Close()
			return m, tea.Quit
		}
		m.notice = nil
		cmd := m.handleKey(msg)
		return m, tea.Batch(cmd, m.sync())
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch m.view.Route {
	case screens.RouteSignIn:
		if m.signIn != nil {
			return m.signIn.update(m, msg)
		}
	case screens.RouteClasses:
		switch m.view.Page.Kind {
		case screens.PageClassList:
			if msg.String() == "ctrl+o" {
				return m.signOut()
			}
			return m.classes.update(m, msg)
		case screens.PageActivities:
			if m.activities != nil {
				return m.activities.update(m, msg)
			}
		case screens.PageClassForm:
			if m.form != nil {
				return m.form.update(m, msg)
			}
		}
	}
	return nil
}

func (m *Model) navigate(err error) {
	if err != nil {
		m.deps.Logger.Warn(fmt.Sprintf("navigation: %v", err))
	}
}

func (m *Model) signOut() tea.Cmd {
	return m.run("sign out", m.deps.Auth.SignOut, func(err error) {
		if err != nil {
			m.notice = &screens.Notice{
				Kind:    screens.NoticeError,
				Title:   "Sign-out failed",
				Message: "Could not sign out. Check your connection and try again.",
			}
		}
	})
}

// sync mounts the controllers for the router's current view and unmounts the others.
func (m *Model) sync() tea.Cmd {
	v := m.deps.Router.View()
	uid, _ := m.deps.Store.UserID()
	if v == m.view && uid == m.owner {
		return nil
	}
	m.view = v

	switch v.Route {
	case screens.RouteSignIn:
		m.dropClasses()
		if m.signIn == nil {
			m.signIn = newSignInPage(screens.NewSignIn(m.deps.Auth, m.deps.Validate, m.deps.Translator))
		}
		return nil

	case screens.RouteClasses:
		m.dropSignIn()
		if m.classes == nil || uid != m.owner {
			m.dropClasses()
			m.classes = newClassListPage(screens.NewClassList(m.deps.Classes, m.deps.Store))
			m.owner = uid
		}
		switch v.Page.Kind {
		case screens.PageActivities:
			m.dropForm()
			if m.activities == nil || m.activities.ctrl.ClassID() != v.Page.ClassID {
				m.dropActivities()
				m.activities = newActivitiesPage(screens.NewActivities(m.deps.Classes, v.Page.ClassID, v.Page.ClassName))
				return m.run("load activities", m.activities.ctrl.Refresh, nil)
			}
		case screens.PageClassForm:
			if m.form == nil || m.form.page != v.Page {
				m.dropForm()
				m.form = newClassFormPage(v.Page, screens.NewClassForm(m.deps.Classes, m.deps.Store, v.Page.Class))
			}
		default:
			m.dropActivities()
			m.dropForm()
			return m.run("load classes", m.classes.ctrl.Focus, nil)
		}
		return nil

	default:
		m.dropSignIn()
		m.dropClasses()
		return nil
	}
}

func (m *Model) dropSignIn() {
	if m.signIn != nil {
		m.signIn.ctrl.Unmount()
		m.signIn = nil
	}
}

func (m *Model) dropClasses() {
	m.dropForm()
	m.dropActivities()
	if m.classes != nil {
		m.classes.ctrl.Unmount()
		m.classes = nil
	}
	m.owner = ""
}

func (m *Model) dropActivities() {
	if m.activities != nil {
		m.activities.ctrl.Unmount()
		m.activities = nil
	}
}

// dropForm keeps the form's last notice so "class created" survives going back to the list.
func (m *Model) dropForm() {
	if m.form == nil {
		return
	}
	if n := m.form.ctrl.Notice(); n != nil {
		m.notice = n
	}
	m.form.ctrl.Unmount()
	m.form = nil
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	header := "Pense"
	if st := m.deps.Store.Snapshot(); st.Session != nil {
		header += " · " + st.Session.User.Email
	}
	b.WriteString(m.styles.Header.Render(header))
	b.WriteString("\n\n")

	var body string
	switch m.view.Route {
	case screens.RouteSignIn:
		if m.signIn != nil {
			body = m.signIn.view(m.styles)
		}
	case screens.RouteClasses:
		switch m.view.Page.Kind {
		case screens.PageActivities:
			if m.activities != nil {
				body = m.activities.view(m.styles)
			}
		case screens.PageClassForm:
			if m.form != nil {
				body = m.form.view(m.styles)
			}
		default:
			if m.classes != nil {
				body = m.classes.view(m.styles)
			}
		}
	default:
		body = m.styles.Muted.Render("Loading...")
	}
	b.WriteString(body)

	if m.notice != nil {
		b.WriteString("\n")
		b.WriteString(m.styles.notice(m.notice))
	}
	b.WriteString("\n")
	return b.String()
}
