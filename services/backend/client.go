// Package backendsvc is the client of the hosted auth + table service.
// One Client owns at most one session per process; it implements session.Auth and classroom.Gateway.
package backendsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/classroom"
	"github.com/collegepense/pense/core/session"
)

// SessionStorageKey is where the session JSON is persisted on the device.
const SessionStorageKey = "pense.auth.token"

const (
	authPath = "/auth/v1"
	restPath = "/rest/v1"
)

var (
	_ session.Auth      = (*Client)(nil)
	_ classroom.Gateway = (*Client)(nil)

	nowFunc = time.Now // mockable
)

// Storage is the device-local key-value storage holding the persisted session.
type Storage interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

type Options struct {
	URL           string
	AnonKey       string
	Timeout       time.Duration
	AutoRefresh   bool
	RefreshMargin time.Duration
	RetryInterval time.Duration // refresher retry delay after a network failure
	Storage       Storage
	Logger        core.Logger
	HTTPClient    *http.Client
}

func OptionsFromConfig(conf core.BackendConfig, storage Storage, logger core.Logger) Options {
	return Options{
		URL:           conf.URL,
		AnonKey:       conf.AnonKey,
		Timeout:       conf.Timeout,
		AutoRefresh:   conf.AutoRefresh,
		RefreshMargin: conf.RefreshMargin,
		Storage:       storage,
		Logger:        logger,
	}
}

type Client struct {
	opts Options
	http rest.Client
	hub  *session.Hub

	mu          sync.RWMutex
	sess        *session.Session
	restoreOnce sync.Once
	restoreErr  error

	scheduleMu  sync.Mutex
	schedule    chan *session.Session
	loopStarted bool
	closed      bool
	loopDone    chan struct{}
	stopCtx     context.Context
	cancel      context.CancelFunc
	closeOnce   sync.Once
}

func New(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = core.NopLogger
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 5 * time.Second
	}
	opts.URL = strings.TrimRight(opts.URL, "/")

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		opts:     opts,
		http:     rest.Client{HTTPClient: httpClient},
		hub:      session.NewHub(),
		schedule: make(chan *session.Session, 1),
		loopDone: make(chan struct{}),
		stopCtx:  ctx,
		cancel:   cancel,
	}
}

// Close stops the token refresher. The session stays persisted.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.scheduleMu.Lock()
		c.closed = true
		started := c.loopStarted
		c.scheduleMu.Unlock()

		c.cancel()
		if started {
			<-c.loopDone
		}
	})
}

func (c *Client) SubscribeSessionChanges(fn session.Listener) session.Subscription {
	return c.hub.Subscribe(fn)
}

// CurrentSession returns the cached session. The first call restores it from the device storage:
// an expired session is refreshed once, or discarded.
func (c *Client) CurrentSession(ctx context.Context) (*session.Session, error) {
	c.restoreOnce.Do(func() { c.restoreErr = c.restore(ctx) })

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.restoreErr != nil && c.sess == nil {
		return nil, c.restoreErr
	}
	return copySession(c.sess), nil
}

func (c *Client) restore(ctx context.Context) error {
	if c.opts.Storage == nil {
		return nil
	}
	raw, ok, err := c.opts.Storage.GetItem(ctx, SessionStorageKey)
	if err != nil {
		return errors.Wrap(err, "reading persisted session")
	}
	if !ok {
		return nil
	}

	var sess session.Session
	if err = json.Unmarshal([]byte(raw), &sess); err != nil || sess.AccessToken == "" || sess.User.ID == "" {
		c.opts.Logger.Warn("discarding unreadable persisted session")
		return errors.Wrap(c.opts.Storage.RemoveItem(ctx, SessionStorageKey), "removing persisted session")
	}

	if sess.Expired(nowFunc().Add(c.opts.RefreshMargin)) {
		refreshed, err := c.refresh(ctx, sess.RefreshToken)
		if err != nil {
			c.opts.Logger.Info("discarding expired session", err)
			return errors.Wrap(c.opts.Storage.RemoveItem(ctx, SessionStorageKey), "removing persisted session")
		}
		sess = *refreshed
		c.persist(ctx, &sess)
	}

	c.mu.Lock()
	if c.sess == nil { // a sign in may have raced the restore
		c.sess = &sess
	}
	current := copySession(c.sess)
	c.mu.Unlock()

	c.reschedule(current)
	return nil
}

// setSession replaces the session, persists it and emits kind.
func (c *Client) setSession(ctx context.Context, sess *session.Session, kind session.EventKind) {
	c.mu.Lock()
	c.sess = copySession(sess)
	c.mu.Unlock()

	if sess == nil {
		if c.opts.Storage != nil {
			if err := c.opts.Storage.RemoveItem(ctx, SessionStorageKey); err != nil {
				c.opts.Logger.Error("removing persisted session", err)
			}
		}
	} else {
		c.persist(ctx, sess)
	}
	c.reschedule(sess)
	c.hub.Emit(kind, sess)
}

// setSessionIf calls setSession only while the current session still carries refreshToken,
// so a sign out during a background refresh is not undone.
func (c *Client) setSessionIf(ctx context.Context, refreshToken string, sess *session.Session, kind session.EventKind) {
	c.mu.RLock()
	ok := c.sess != nil && c.sess.RefreshToken == refreshToken
	c.mu.RUnlock()
	if ok {
		c.setSession(ctx, sess, kind)
	}
}

func (c *Client) persist(ctx context.Context, sess *session.Session) {
	if c.opts.Storage == nil {
		return
	}
	data, err := json.Marshal(sess)
	if err != nil {
		c.opts.Logger.Error("encoding session", err)
		return
	}
	if err = c.opts.Storage.SetItem(ctx, SessionStorageKey, string(data)); err != nil {
		c.opts.Logger.Error("persisting session", err)
	}
}

func (c *Client) accessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sess == nil {
		return ""
	}
	return c.sess.AccessToken
}

func copySession(sess *session.Session) *session.Session {
	if sess == nil {
		return nil
	}
	cp := *sess
	return &cp
}
