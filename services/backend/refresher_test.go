package backendsvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collegepense/pense/core/session"
	"github.com/collegepense/pense/storage/device"
	testutil "github.com/collegepense/pense/tests"
)

func TestClient_autoRefresh(t *testing.T) {
	be := testutil.NewDevBackend(t)
	createProfessor(t, be, "ana@example.com")
	storage := device.NewMemoryStore()

	// every session is due for a refresh a second or two after it is issued
	c := newTestClient(t, be.URL, storage, func(o *Options) {
		o.AutoRefresh = true
		o.RefreshMargin = be.Conf.Server.JWTExpirationDelta - 2*time.Second
	})

	refreshed := make(chan session.Event, 16)
	sub := c.SubscribeSessionChanges(func(ev session.Event) {
		if ev.Kind == session.TokenRefreshed {
			select {
			case refreshed <- ev:
			default:
			}
		}
	})
	defer sub.Unsubscribe()

	first, err := c.SignIn(context.Background(), "ana@example.com", testPassword)
	require.NoError(t, err)

	var ev session.Event
	select {
	case ev = <-refreshed:
	case <-time.After(5 * time.Second):
		t.Fatal("session not refreshed")
	}
	c.Close()

	require.NotNil(t, ev.Session)
	assert.NotEqual(t, first.RefreshToken, ev.Session.RefreshToken)
	assert.Equal(t, first.User.ID, ev.Session.User.ID)

	current, err := c.CurrentSession(context.Background())
	require.NoError(t, err)
	raw, ok, err := storage.GetItem(context.Background(), SessionStorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, current.RefreshToken, "the refreshed session is persisted")
}

func TestClient_autoRefresh_rejected(t *testing.T) {
	be := testutil.NewDevBackend(t)
	usr := createProfessor(t, be, "ana@example.com")

	// the refresh is due a second or two after sign in
	c := newTestClient(t, be.URL, nil, func(o *Options) {
		o.AutoRefresh = true
		o.RefreshMargin = be.Conf.Server.JWTExpirationDelta - 2*time.Second
	})
	signedOut := make(chan struct{})
	sub := c.SubscribeSessionChanges(func(ev session.Event) {
		if ev.Kind == session.SignedOut {
			close(signedOut)
		}
	})
	defer sub.Unsubscribe()

	_, err := c.SignIn(context.Background(), "ana@example.com", testPassword)
	require.NoError(t, err)
	require.NoError(t, be.UserSvc.SignOut(context.Background(), usr.ID))

	select {
	case <-signedOut:
	case <-time.After(5 * time.Second):
		t.Fatal("rejected refresh did not sign out")
	}
	current, err := c.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestClient_Close(t *testing.T) {
	c := New(Options{URL: "http://127.0.0.1:1", AutoRefresh: true, RefreshMargin: time.Minute})
	c.reschedule(testutil.NewSession("u1", "ana@example.com"))
	c.Close()
	c.Close()

	// no refresher after Close
	c.reschedule(testutil.NewSession("u1", "ana@example.com"))
	c.scheduleMu.Lock()
	defer c.scheduleMu.Unlock()
	assert.True(t, c.closed)
}
