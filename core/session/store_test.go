package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/session"
	testutil "github.com/collegepense/pense/tests"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder collects the states a watcher observed.
type recorder struct {
	mu     sync.Mutex
	states []session.State
}

func (r *recorder) watch(st session.State) {
	r.mu.Lock()
	r.states = append(r.states, st)
	r.mu.Unlock()
}

func (r *recorder) statuses() []session.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.Status, 0, len(r.states))
	for _, st := range r.states {
		out = append(out, st.Status)
	}
	return out
}

func TestStore_Start(t *testing.T) {
	tests := []struct {
		name       string
		current    *session.Session
		currentErr error
		wantStatus session.Status
		wantUserID string
	}{
		{
			name:       "restored session",
			current:    testutil.NewSession("u1", "ana@example.com"),
			wantStatus: session.StatusAuthenticated,
			wantUserID: "u1",
		},
		{
			name:       "no session",
			wantStatus: session.StatusUnauthenticated,
		},
		{
			name:       "unreadable session",
			current:    testutil.NewSession("u1", "ana@example.com"),
			currentErr: errors.New("storage broken"),
			wantStatus: session.StatusUnauthenticated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := testutil.NewFakeAuth(tt.current)
			auth.SetCurrentErr(tt.currentErr)
			store := session.NewStore(auth, core.NopLogger)
			defer store.Close()

			assert.Equal(t, session.StatusLoading, store.Snapshot().Status)
			require.NoError(t, store.Start(context.Background()))

			st := store.Snapshot()
			assert.Equal(t, tt.wantStatus, st.Status)
			uid, ok := store.UserID()
			assert.Equal(t, tt.wantUserID != "", ok)
			assert.Equal(t, tt.wantUserID, uid)
			assert.Equal(t, st.Status == session.StatusAuthenticated, st.Session != nil)
		})
	}
}

func TestStore_Start_twice(t *testing.T) {
	store := session.NewStore(testutil.NewFakeAuth(nil), core.NopLogger)
	defer store.Close()

	require.NoError(t, store.Start(context.Background()))
	assert.Equal(t, session.ErrAlreadyStarted, store.Start(context.Background()))

	closed := session.NewStore(testutil.NewFakeAuth(nil), core.NopLogger)
	closed.Close()
	assert.Equal(t, session.ErrClosed, closed.Start(context.Background()))
}

func TestStore_events(t *testing.T) {
	auth := testutil.NewFakeAuth(nil)
	store := session.NewStore(auth, core.NopLogger)
	defer store.Close()

	rec := new(recorder)
	stop := store.Watch(rec.watch)
	defer stop()
	require.NoError(t, store.Start(context.Background()))

	sess := testutil.NewSession("u1", "ana@example.com")
	auth.Emit(session.SignedIn, sess)
	refreshed := *sess
	refreshed.AccessToken = "access-2"
	auth.Emit(session.TokenRefreshed, &refreshed)
	auth.Emit(session.SignedOut, nil)

	assert.Equal(t, []session.Status{
		session.StatusUnauthenticated,
		session.StatusAuthenticated,
		session.StatusAuthenticated,
		session.StatusUnauthenticated,
	}, rec.statuses())

	rec.mu.Lock()
	assert.Equal(t, "access-2", rec.states[2].Session.AccessToken)
	rec.mu.Unlock()

	_, ok := store.UserID()
	assert.False(t, ok)
}

func TestStore_eventWinsOverInitialRead(t *testing.T) {
	stale := testutil.NewSession("u1", "ana@example.com")
	auth := testutil.NewFakeAuth(stale)
	release := auth.HoldCurrent()

	store := session.NewStore(auth, core.NopLogger)
	defer store.Close()

	done := make(chan error, 1)
	go func() { done <- store.Start(context.Background()) }()

	// the subscription is taken before the initial read
	require.Eventually(t, func() bool { return auth.Hub.Len() == 1 }, time.Second, time.Millisecond)
	auth.Hub.Emit(session.SignedOut, nil)
	release()
	require.NoError(t, <-done)

	assert.Equal(t, session.StatusUnauthenticated, store.Snapshot().Status)
}

func TestStore_Close(t *testing.T) {
	auth := testutil.NewFakeAuth(nil)
	store := session.NewStore(auth, core.NopLogger)
	require.NoError(t, store.Start(context.Background()))
	require.Equal(t, 1, auth.Hub.Len())

	rec := new(recorder)
	store.Watch(rec.watch)

	store.Close()
	store.Close()
	assert.Equal(t, 0, auth.Hub.Len(), "subscription released exactly once")

	auth.Emit(session.SignedIn, testutil.NewSession("u1", "ana@example.com"))
	assert.Empty(t, rec.statuses(), "no transition after Close")
}

func TestStore_Watch_cancel(t *testing.T) {
	auth := testutil.NewFakeAuth(nil)
	store := session.NewStore(auth, core.NopLogger)
	defer store.Close()
	require.NoError(t, store.Start(context.Background()))

	rec := new(recorder)
	stop := store.Watch(rec.watch)
	auth.Emit(session.SignedIn, testutil.NewSession("u1", "ana@example.com"))
	stop()
	stop()
	auth.Emit(session.SignedOut, nil)

	assert.Equal(t, []session.Status{session.StatusAuthenticated}, rec.statuses())
}

func TestHub(t *testing.T) {
	hub := session.NewHub()

	var got []session.Event
	sub := hub.Subscribe(func(ev session.Event) { got = append(got, ev) })

	sess := testutil.NewSession("u1", "ana@example.com")
	hub.Emit(session.SignedIn, sess)
	sess.AccessToken = "mutated"
	hub.Emit(session.SignedOut, sess)

	sub.Unsubscribe()
	sub.Unsubscribe()
	hub.Emit(session.SignedIn, sess)

	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].Seq)
	assert.Equal(t, uint64(2), got[1].Seq)
	assert.Equal(t, "access-u1", got[0].Session.AccessToken, "listeners get a copy")
	assert.Nil(t, got[1].Session)
	assert.Equal(t, 0, hub.Len())
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	assert.False(t, (&session.Session{}).Expired(now))
	assert.False(t, (&session.Session{ExpiresAt: now.Add(time.Second)}).Expired(now))
	assert.True(t, (&session.Session{ExpiresAt: now}).Expired(now))
}
