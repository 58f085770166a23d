package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/collegepense/pense/core"
)

var (
	ErrAlreadyStarted = errors.New("session store already started")
	ErrClosed         = errors.New("session store closed")
)

type Status int

const (
	StatusLoading Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// State is a snapshot of the Store. Session is set iff Status is StatusAuthenticated.
type State struct {
	Status  Status
	Session *Session
}

func stateOf(sess *Session) State {
	if sess == nil {
		return State{Status: StatusUnauthenticated}
	}
	cp := *sess
	return State{Status: StatusAuthenticated, Session: &cp}
}

// Store is the session state machine: Loading, then Authenticated or Unauthenticated.
// It leaves those two states only on a session change event.
type Store struct {
	auth   Auth
	logger core.Logger

	applyMu sync.Mutex // serializes apply + notify so watchers observe transitions in order

	mu        sync.RWMutex
	state     State
	started   bool
	closed    bool
	eventSeen bool
	lastSeq   uint64
	sub       Subscription
	nextWatch int
	watchers  map[int]func(State)
	watchOrd  []int

	closeOnce sync.Once
}

func NewStore(auth Auth, logger core.Logger) *Store {
	return &Store{
		auth:     auth,
		logger:   logger,
		state:    State{Status: StatusLoading},
		watchers: make(map[int]func(State)),
	}
}

// Start subscribes to session changes, then resolves the initial state from the cached session.
// An event received while the initial read is in flight wins over the read.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	sub := s.auth.SubscribeSessionChanges(s.handleEvent)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Unsubscribe()
		return ErrClosed
	}
	s.sub = sub
	s.mu.Unlock()

	sess, err := s.auth.CurrentSession(ctx)
	if err != nil {
		s.logger.Warn("reading current session", errors.Wrap(err, "getting current session"))
		sess = nil
	}

	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	if s.eventSeen || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.state = stateOf(sess)
	st, fns := s.state, s.watcherFuncs()
	s.mu.Unlock()

	notify(fns, st)
	return nil
}

func (s *Store) handleEvent(ev Event) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	if s.closed || (s.eventSeen && ev.Seq <= s.lastSeq) {
		s.mu.Unlock()
		return
	}
	s.eventSeen = true
	s.lastSeq = ev.Seq
	if ev.Kind == SignedOut {
		s.state = stateOf(nil)
	} else {
		s.state = stateOf(ev.Session)
	}
	st, fns := s.state, s.watcherFuncs()
	s.mu.Unlock()

	s.logger.Debug("session " + ev.Kind.String())
	notify(fns, st)
}

// must hold s.mu
func (s *Store) watcherFuncs() []func(State) {
	fns := make([]func(State), 0, len(s.watchOrd))
	for _, id := range s.watchOrd {
		fns = append(fns, s.watchers[id])
	}
	return fns
}

func notify(fns []func(State), st State) {
	for _, fn := range fns {
		fn(st)
	}
}

// Watch registers fn to be called after every transition. Calling the returned func stops it.
// fn runs synchronously and must not block.
func (s *Store) Watch(fn func(State)) (cancel func()) {
	s.mu.Lock()
	s.nextWatch++
	id := s.nextWatch
	s.watchers[id] = fn
	s.watchOrd = append(s.watchOrd, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.watchers, id)
			for i, wid := range s.watchOrd {
				if wid == id {
					s.watchOrd = append(s.watchOrd[:i], s.watchOrd[i+1:]...)
					break
				}
			}
		})
	}
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// UserID returns the signed in professor's id, if any.
func (s *Store) UserID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Status != StatusAuthenticated || s.state.Session == nil || s.state.Session.User.ID == "" {
		return "", false
	}
	return s.state.Session.User.ID, true
}

// Close releases the gateway subscription. Safe to call more than once, and before Start.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		sub := s.sub
		s.sub = nil
		s.watchers = make(map[int]func(State))
		s.watchOrd = nil
		s.mu.Unlock()

		if sub != nil {
			sub.Unsubscribe()
		}
	})
}
