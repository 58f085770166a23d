package backendsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/session"
	"github.com/collegepense/pense/core/user"
	"github.com/collegepense/pense/storage/device"
	testutil "github.com/collegepense/pense/tests"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testPassword = "correct-horse-battery"

type eventLog struct {
	mu     sync.Mutex
	events []session.Event
}

func (l *eventLog) add(ev session.Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) kinds() []session.EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]session.EventKind, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Kind)
	}
	return out
}

func newTestClient(t *testing.T, url string, storage Storage, opts ...func(*Options)) *Client {
	t.Helper()
	transport := &http.Transport{}
	o := Options{
		URL:        url,
		AnonKey:    testutil.AnonKey,
		Timeout:    5 * time.Second,
		Storage:    storage,
		Logger:     core.NopLogger,
		HTTPClient: &http.Client{Transport: transport},
	}
	for _, opt := range opts {
		opt(&o)
	}
	c := New(o)
	t.Cleanup(func() {
		c.Close()
		transport.CloseIdleConnections()
	})
	return c
}

func createProfessor(t *testing.T, be *testutil.DevBackend, email string) user.User {
	return testutil.CreateUser(t, be.Users, "Professor", email, testPassword, true)
}

func TestClient_SignIn(t *testing.T) {
	be := testutil.NewDevBackend(t)
	usr := createProfessor(t, be, "ana@example.com")
	storage := device.NewMemoryStore()
	c := newTestClient(t, be.URL, storage)

	log := new(eventLog)
	sub := c.SubscribeSessionChanges(log.add)
	defer sub.Unsubscribe()

	sess, err := c.SignIn(context.Background(), "  ana@example.com ", testPassword)
	require.NoError(t, err)
	assert.Equal(t, usr.ID, sess.User.ID)
	assert.Equal(t, "ana@example.com", sess.User.Email)
	assert.NotEmpty(t, sess.AccessToken)
	assert.NotEmpty(t, sess.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(be.Conf.Server.JWTExpirationDelta), sess.ExpiresAt, 5*time.Second)
	assert.Equal(t, []session.EventKind{session.SignedIn}, log.kinds())

	raw, ok, err := storage.GetItem(context.Background(), SessionStorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	var persisted session.Session
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	assert.Equal(t, sess.AccessToken, persisted.AccessToken)

	current, err := c.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sess.AccessToken, current.AccessToken)
}

func TestClient_SignIn_invalid(t *testing.T) {
	be := testutil.NewDevBackend(t)
	createProfessor(t, be, "ana@example.com")
	testutil.CreateUser(t, be.Users, "Inactive", "off@example.com", testPassword, false)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "ana@example.com", "nope"},
		{"unknown email", "bob@example.com", testPassword},
		{"inactive account", "off@example.com", testPassword},
		{"empty password", "ana@example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, be.URL, device.NewMemoryStore())
			log := new(eventLog)
			c.SubscribeSessionChanges(log.add)

			sess, err := c.SignIn(context.Background(), tt.email, tt.password)
			assert.Nil(t, sess)
			assert.True(t, core.IsAuthError(err, core.AuthInvalidCredentials), "%v", err)
			assert.NotContains(t, err.Error(), "password")
			assert.Empty(t, log.kinds())
		})
	}
}

func TestClient_SignIn_network(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, nil)
	_, err := c.SignIn(context.Background(), "ana@example.com", testPassword)
	assert.True(t, core.IsAuthError(err, core.AuthNetwork), "%v", err)
}

func TestClient_SignOut(t *testing.T) {
	be := testutil.NewDevBackend(t)
	createProfessor(t, be, "ana@example.com")
	storage := device.NewMemoryStore()
	c := newTestClient(t, be.URL, storage)

	sess, err := c.SignIn(context.Background(), "ana@example.com", testPassword)
	require.NoError(t, err)

	log := new(eventLog)
	c.SubscribeSessionChanges(log.add)
	require.NoError(t, c.SignOut(context.Background()))
	assert.Equal(t, []session.EventKind{session.SignedOut}, log.kinds())

	current, err := c.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
	_, ok, err := storage.GetItem(context.Background(), SessionStorageKey)
	require.NoError(t, err)
	assert.False(t, ok)

	// the refresh token was revoked server side
	_, err = c.refresh(context.Background(), sess.RefreshToken)
	assert.True(t, core.IsAuthError(err, core.AuthInvalidCredentials))
}

func TestClient_SignOut_unknownToken(t *testing.T) {
	be := testutil.NewDevBackend(t)
	storage := device.NewMemoryStore()
	stale := testutil.NewSession("ghost", "ghost@example.com") // not a token the backend issued
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, storage.SetItem(context.Background(), SessionStorageKey, string(data)))

	c := newTestClient(t, be.URL, storage)
	current, err := c.CurrentSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, current)

	log := new(eventLog)
	c.SubscribeSessionChanges(log.add)
	require.NoError(t, c.SignOut(context.Background()), "a 401 still signs out locally")
	assert.Equal(t, []session.EventKind{session.SignedOut}, log.kinds())
	current, err = c.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestClient_SignOut_network(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	storage := device.NewMemoryStore()
	data, err := json.Marshal(testutil.NewSession("u1", "ana@example.com"))
	require.NoError(t, err)
	require.NoError(t, storage.SetItem(context.Background(), SessionStorageKey, string(data)))

	c := newTestClient(t, srv.URL, storage)
	_, err = c.CurrentSession(context.Background())
	require.NoError(t, err)

	err = c.SignOut(context.Background())
	assert.True(t, core.IsAuthError(err, core.AuthNetwork), "%v", err)
	current, err := c.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, current, "kept until the server confirms")
}

func TestClient_CurrentSession_restore(t *testing.T) {
	be := testutil.NewDevBackend(t)
	createProfessor(t, be, "ana@example.com")

	signIn := func(t *testing.T) (*device.MemoryStore, *session.Session) {
		storage := device.NewMemoryStore()
		c := newTestClient(t, be.URL, storage)
		sess, err := c.SignIn(context.Background(), "ana@example.com", testPassword)
		require.NoError(t, err)
		return storage, sess
	}
	expire := func(t *testing.T, storage *device.MemoryStore, sess *session.Session) {
		expired := *sess
		expired.ExpiresAt = time.Now().Add(-time.Minute)
		data, err := json.Marshal(expired)
		require.NoError(t, err)
		require.NoError(t, storage.SetItem(context.Background(), SessionStorageKey, string(data)))
	}

	t.Run("valid", func(t *testing.T) {
		storage, sess := signIn(t)
		c := newTestClient(t, be.URL, storage)
		current, err := c.CurrentSession(context.Background())
		require.NoError(t, err)
		require.NotNil(t, current)
		assert.Equal(t, sess.AccessToken, current.AccessToken)
	})

	t.Run("expired, refreshed", func(t *testing.T) {
		storage, sess := signIn(t)
		expire(t, storage, sess)

		c := newTestClient(t, be.URL, storage)
		current, err := c.CurrentSession(context.Background())
		require.NoError(t, err)
		require.NotNil(t, current)
		assert.NotEqual(t, sess.RefreshToken, current.RefreshToken, "refresh tokens rotate")
		assert.False(t, current.Expired(time.Now()))

		raw, _, err := storage.GetItem(context.Background(), SessionStorageKey)
		require.NoError(t, err)
		assert.Contains(t, raw, current.RefreshToken)
	})

	t.Run("expired, refresh rejected", func(t *testing.T) {
		storage, sess := signIn(t)
		expire(t, storage, sess)
		require.NoError(t, be.UserSvc.SignOut(context.Background(), sess.User.ID))

		c := newTestClient(t, be.URL, storage)
		current, err := c.CurrentSession(context.Background())
		require.NoError(t, err)
		assert.Nil(t, current)
		_, ok, err := storage.GetItem(context.Background(), SessionStorageKey)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unreadable", func(t *testing.T) {
		storage := device.NewMemoryStore()
		require.NoError(t, storage.SetItem(context.Background(), SessionStorageKey, "{not json"))
		c := newTestClient(t, be.URL, storage)
		current, err := c.CurrentSession(context.Background())
		require.NoError(t, err)
		assert.Nil(t, current)
	})
}

func TestTokenResponse_toSession(t *testing.T) {
	frozen := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return frozen }
	defer func() { nowFunc = time.Now }()

	// header.{"sub":"u1","exp":1709298000}.signature
	const jwtNoUser = "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJzdWIiOiJ1MSIsImV4cCI6MTcwOTI5ODAwMH0.c2ln"
	owner := &struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}{ID: "u1", Email: "ana@example.com"}

	tests := []struct {
		name       string
		tr         tokenResponse
		wantErr    bool
		wantUser   string
		wantExpiry time.Time
	}{
		{
			name:       "expires_at",
			tr:         tokenResponse{AccessToken: "opaque", ExpiresAt: frozen.Add(time.Hour).Unix(), User: owner},
			wantUser:   "u1",
			wantExpiry: frozen.Add(time.Hour),
		},
		{
			name:       "expires_in",
			tr:         tokenResponse{AccessToken: "opaque", ExpiresIn: 3600, User: owner},
			wantUser:   "u1",
			wantExpiry: frozen.Add(time.Hour),
		},
		{
			name:       "claims",
			tr:         tokenResponse{AccessToken: jwtNoUser},
			wantUser:   "u1",
			wantExpiry: time.Unix(1709298000, 0).UTC(),
		},
		{name: "no access token", tr: tokenResponse{User: owner}, wantErr: true},
		{name: "no user, opaque token", tr: tokenResponse{AccessToken: "opaque"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := tt.tr.toSession()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, core.IsAuthError(authError(err), core.AuthInvalidCredentials))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, sess.User.ID)
			assert.True(t, tt.wantExpiry.Equal(sess.ExpiresAt), "%v != %v", tt.wantExpiry, sess.ExpiresAt)
			assert.Equal(t, "bearer", sess.TokenType)
		})
	}
}

func TestClient_RecoverPassword(t *testing.T) {
	be := testutil.NewDevBackend(t)
	createProfessor(t, be, "ana@example.com")
	c := newTestClient(t, be.URL, nil)

	require.NoError(t, c.RecoverPassword(context.Background(), " ana@example.com"))
	require.NoError(t, c.RecoverPassword(context.Background(), "nobody@example.com"), "same answer for unknown accounts")

	msgs := be.Outbox.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ana@example.com", msgs[0].To[0].Address)
}
