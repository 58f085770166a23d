package screens_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/classroom"
	"github.com/collegepense/pense/core/screens"
	"github.com/collegepense/pense/core/session"
	testutil "github.com/collegepense/pense/tests"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		st   session.State
		want screens.Route
	}{
		{"loading", session.State{Status: session.StatusLoading}, screens.RouteLoading},
		{"signed out", session.State{Status: session.StatusUnauthenticated}, screens.RouteSignIn},
		{"signed in", session.State{Status: session.StatusAuthenticated, Session: testutil.NewSession("u1", "a@b.co")}, screens.RouteClasses},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, screens.Resolve(tt.st))
		})
	}
}

type viewLog struct {
	mu    sync.Mutex
	views []screens.View
}

func (l *viewLog) add(v screens.View) {
	l.mu.Lock()
	l.views = append(l.views, v)
	l.mu.Unlock()
}

func (l *viewLog) all() []screens.View {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]screens.View(nil), l.views...)
}

func TestRouter_followsSessionEvents(t *testing.T) {
	auth := testutil.NewFakeAuth(nil)
	store := session.NewStore(auth, core.NopLogger)
	defer store.Close()
	router := screens.NewRouter(store)
	defer router.Close()

	assert.Equal(t, screens.RouteLoading, router.View().Route)

	log := new(viewLog)
	router.Watch(log.add)
	require.NoError(t, store.Start(context.Background()))

	events := []struct {
		kind session.EventKind
		sess *session.Session
	}{
		{session.SignedIn, testutil.NewSession("u1", "ana@example.com")},
		{session.TokenRefreshed, testutil.NewSession("u1", "ana@example.com")},
		{session.SignedOut, nil},
		{session.SignedIn, testutil.NewSession("u2", "bia@example.com")},
		{session.SignedOut, nil},
	}
	for _, ev := range events {
		auth.Emit(ev.kind, ev.sess)

		view := router.View()
		switch store.Snapshot().Status {
		case session.StatusAuthenticated:
			assert.Equal(t, screens.RouteClasses, view.Route, ev.kind.String())
			assert.Equal(t, screens.PageClassList, view.Page.Kind)
		case session.StatusUnauthenticated:
			assert.Equal(t, screens.RouteSignIn, view.Route, ev.kind.String())
			assert.Zero(t, view.Page.Kind, "no class page in the sign-in flow")
		default:
			t.Fatalf("unexpected state after %s", ev.kind)
		}
	}

	// the refresh does not re-render
	var routes []screens.Route
	for _, v := range log.all() {
		routes = append(routes, v.Route)
		if v.Route == screens.RouteSignIn {
			assert.Zero(t, v.Page.Kind)
		}
	}
	assert.Equal(t, []screens.Route{
		screens.RouteSignIn,
		screens.RouteClasses,
		screens.RouteSignIn,
		screens.RouteClasses,
		screens.RouteSignIn,
	}, routes)
}

func TestRouter_stack(t *testing.T) {
	auth := testutil.NewFakeAuth(testutil.NewSession("u1", "ana@example.com"))
	store := session.NewStore(auth, core.NopLogger)
	defer store.Close()
	router := screens.NewRouter(store)
	defer router.Close()
	require.NoError(t, store.Start(context.Background()))

	require.NoError(t, router.OpenActivities(42, "3A Morning"))
	view := router.View()
	assert.Equal(t, screens.PageActivities, view.Page.Kind)
	assert.Equal(t, int64(42), view.Page.ClassID)
	assert.Equal(t, "3A Morning", view.Page.ClassName)

	cls := classroom.Class{ID: 42, Name: "3A Morning", OwnerID: "u1"}
	require.NoError(t, router.OpenClassForm(&cls))
	cls.Name = "changed"
	assert.Equal(t, "3A Morning", router.View().Page.Class.Name, "params are copied")
	assert.Equal(t, 3, router.Depth())

	router.Back()
	router.Back()
	router.Back()
	assert.Equal(t, 1, router.Depth(), "the class list stays")
	assert.Equal(t, screens.PageClassList, router.View().Page.Kind)

	// sign out from a nested page resets the stack
	require.NoError(t, router.OpenClassForm(nil))
	require.NoError(t, auth.SignOut(context.Background()))
	assert.Equal(t, screens.RouteSignIn, router.View().Route)
	assert.Equal(t, 0, router.Depth())
	assert.Equal(t, screens.ErrWrongFlow, router.OpenActivities(42, "3A Morning"))

	_, err := auth.SignIn(context.Background(), "ana@example.com", auth.Password)
	require.NoError(t, err)
	assert.Equal(t, screens.View{Route: screens.RouteClasses, Page: screens.Page{Kind: screens.PageClassList}}, router.View())
}
