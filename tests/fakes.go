package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/classroom"
	"github.com/collegepense/pense/core/session"
)

var errFakeNotFound = errors.New("no row affected")

// NewSession returns a session for a professor, valid for an hour.
func NewSession(userID, email string) *session.Session {
	return &session.Session{
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(time.Hour).UTC(),
		User:         session.User{ID: userID, Email: email},
	}
}

// FakeAuth is a session.Auth on a Hub. Sign in accepts Password for any email.
type FakeAuth struct {
	Hub      *session.Hub
	Password string

	mu           sync.Mutex
	sess         *session.Session
	currentErr   error
	currentGate  chan struct{}
	signOutErr   error
	recoverErr   error
	recovered    []string
	signInCalls  int
	signOutCalls int
}

var _ session.Auth = (*FakeAuth)(nil)

func NewFakeAuth(current *session.Session) *FakeAuth {
	return &FakeAuth{Hub: session.NewHub(), Password: "secret", sess: current}
}

// SetCurrentErr makes CurrentSession fail with err.
func (a *FakeAuth) SetCurrentErr(err error) {
	a.mu.Lock()
	a.currentErr = err
	a.mu.Unlock()
}

// HoldCurrent blocks CurrentSession until the returned func is called.
func (a *FakeAuth) HoldCurrent() (release func()) {
	gate := make(chan struct{})
	a.mu.Lock()
	a.currentGate = gate
	a.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// SetSignOutErr makes SignOut fail with err, keeping the session.
func (a *FakeAuth) SetSignOutErr(err error) {
	a.mu.Lock()
	a.signOutErr = err
	a.mu.Unlock()
}

func (a *FakeAuth) SignIn(_ context.Context, email, password string) (*session.Session, error) {
	a.mu.Lock()
	a.signInCalls++
	if password != a.Password {
		a.mu.Unlock()
		return nil, core.NewAuthError(core.AuthInvalidCredentials, nil)
	}
	sess := NewSession("user-"+email, email)
	a.sess = sess
	a.mu.Unlock()

	a.Hub.Emit(session.SignedIn, sess)
	return sess, nil
}

func (a *FakeAuth) SignOut(context.Context) error {
	a.mu.Lock()
	a.signOutCalls++
	if a.signOutErr != nil {
		err := a.signOutErr
		a.mu.Unlock()
		return err
	}
	a.sess = nil
	a.mu.Unlock()

	a.Hub.Emit(session.SignedOut, nil)
	return nil
}

func (a *FakeAuth) CurrentSession(ctx context.Context) (*session.Session, error) {
	a.mu.Lock()
	gate := a.currentGate
	a.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.currentErr != nil {
		return nil, a.currentErr
	}
	if a.sess == nil {
		return nil, nil
	}
	cp := *a.sess
	return &cp, nil
}

func (a *FakeAuth) SubscribeSessionChanges(fn session.Listener) session.Subscription {
	return a.Hub.Subscribe(fn)
}

func (a *FakeAuth) RecoverPassword(_ context.Context, email string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.recoverErr != nil {
		return a.recoverErr
	}
	a.recovered = append(a.recovered, email)
	return nil
}

// SetRecoverErr makes RecoverPassword fail with err.
func (a *FakeAuth) SetRecoverErr(err error) {
	a.mu.Lock()
	a.recoverErr = err
	a.mu.Unlock()
}

// Recovered returns the emails a password reset was requested for.
func (a *FakeAuth) Recovered() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.recovered...)
}

// Emit simulates a transition coming from the backend.
func (a *FakeAuth) Emit(kind session.EventKind, sess *session.Session) session.Event {
	a.mu.Lock()
	if kind == session.SignedOut {
		a.sess = nil
	} else {
		a.sess = sess
	}
	a.mu.Unlock()
	return a.Hub.Emit(kind, sess)
}

func (a *FakeAuth) Calls() (signIn, signOut int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.signInCalls, a.signOutCalls
}

// GatewayCall is one recorded FakeGateway call.
type GatewayCall struct {
	Method string
	Args   []interface{}
}

type gate struct {
	entered chan struct{}
	release chan struct{}
}

// FakeGateway is an in-memory classroom.Gateway that records its calls.
type FakeGateway struct {
	mu         sync.Mutex
	classes    []classroom.Class
	activities []classroom.Activity
	nextID     int64
	calls      []GatewayCall
	errs       map[string]error
	gates      map[string]*gate
}

var _ classroom.Gateway = (*FakeGateway)(nil)

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		nextID: 1,
		errs:   make(map[string]error),
		gates:  make(map[string]*gate),
	}
}

// AddClass seeds a class and returns it with its id.
func (g *FakeGateway) AddClass(name, ownerID string) classroom.Class {
	g.mu.Lock()
	defer g.mu.Unlock()
	cls := classroom.Class{ID: g.nextID, Name: name, OwnerID: ownerID}
	g.nextID++
	g.classes = append(g.classes, cls)
	return cls
}

func (g *FakeGateway) AddActivity(classID int64, description string, createdAt time.Time) classroom.Activity {
	g.mu.Lock()
	defer g.mu.Unlock()
	act := classroom.Activity{ID: g.nextID, Description: description, ClassID: classID, CreatedAt: createdAt}
	g.nextID++
	g.activities = append(g.activities, act)
	return act
}

// Fail makes every later call to method fail with err; a nil err clears it.
func (g *FakeGateway) Fail(method string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.errs, method)
		return
	}
	g.errs[method] = err
}

// Block holds the next calls to method until release is called. entered is closed once a call arrived.
func (g *FakeGateway) Block(method string) (entered <-chan struct{}, release func()) {
	gt := &gate{entered: make(chan struct{}), release: make(chan struct{})}
	g.mu.Lock()
	g.gates[method] = gt
	g.mu.Unlock()

	var once sync.Once
	return gt.entered, func() { once.Do(func() { close(gt.release) }) }
}

// Calls returns the recorded calls to method, or every call when method is empty.
func (g *FakeGateway) Calls(method string) []GatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]GatewayCall, 0, len(g.calls))
	for _, c := range g.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (g *FakeGateway) Classes() []classroom.Class {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]classroom.Class(nil), g.classes...)
}

func (g *FakeGateway) Activities() []classroom.Activity {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]classroom.Activity(nil), g.activities...)
}

// enter records the call, waits on its gate if any, then returns the injected error.
func (g *FakeGateway) enter(ctx context.Context, method string, args ...interface{}) error {
	g.mu.Lock()
	g.calls = append(g.calls, GatewayCall{Method: method, Args: args})
	gt := g.gates[method]
	delete(g.gates, method)
	g.mu.Unlock()

	if gt != nil {
		close(gt.entered)
		select {
		case <-gt.release:
		case <-ctx.Done():
			return core.NewDataError(core.DataNetwork, method, ctx.Err())
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.errs[method]
}

func (g *FakeGateway) ListClasses(ctx context.Context, ownerID string) ([]classroom.Class, error) {
	if err := g.enter(ctx, "ListClasses", ownerID); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]classroom.Class, 0)
	for _, cls := range g.classes {
		if cls.OwnerID == ownerID {
			out = append(out, cls)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (g *FakeGateway) CreateClass(ctx context.Context, name, ownerID string) (classroom.Class, error) {
	if err := g.enter(ctx, "CreateClass", name, ownerID); err != nil {
		return classroom.Class{}, err
	}
	return g.AddClass(name, ownerID), nil
}

func (g *FakeGateway) UpdateClass(ctx context.Context, id int64, name string) (classroom.Class, error) {
	if err := g.enter(ctx, "UpdateClass", id, name); err != nil {
		return classroom.Class{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.classes {
		if g.classes[i].ID == id {
			g.classes[i].Name = name
			return g.classes[i], nil
		}
	}
	return classroom.Class{}, core.NewDataError(core.DataNotFound, classroom.ClassTable, errFakeNotFound)
}

func (g *FakeGateway) DeleteClass(ctx context.Context, id int64) error {
	if err := g.enter(ctx, "DeleteClass", id); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.classes {
		if g.classes[i].ID == id {
			g.classes = append(g.classes[:i], g.classes[i+1:]...)
			acts := g.activities[:0]
			for _, act := range g.activities {
				if act.ClassID != id {
					acts = append(acts, act)
				}
			}
			g.activities = acts
			return nil
		}
	}
	return core.NewDataError(core.DataNotFound, classroom.ClassTable, errFakeNotFound)
}

func (g *FakeGateway) ListActivities(ctx context.Context, classID int64) ([]classroom.Activity, error) {
	if err := g.enter(ctx, "ListActivities", classID); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]classroom.Activity, 0)
	for _, act := range g.activities {
		if act.ClassID == classID {
			out = append(out, act)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (g *FakeGateway) CreateActivity(ctx context.Context, classID int64, description string) (classroom.Activity, error) {
	if err := g.enter(ctx, "CreateActivity", classID, description); err != nil {
		return classroom.Activity{}, err
	}
	return g.AddActivity(classID, description, time.Now().UTC()), nil
}

func (g *FakeGateway) UpdateActivity(ctx context.Context, id int64, description string) (classroom.Activity, error) {
	if err := g.enter(ctx, "UpdateActivity", id, description); err != nil {
		return classroom.Activity{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.activities {
		if g.activities[i].ID == id {
			g.activities[i].Description = description
			return g.activities[i], nil
		}
	}
	return classroom.Activity{}, core.NewDataError(core.DataNotFound, classroom.ActivityTable, errFakeNotFound)
}

func (g *FakeGateway) DeleteActivity(ctx context.Context, id int64) error {
	if err := g.enter(ctx, "DeleteActivity", id); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.activities {
		if g.activities[i].ID == id {
			g.activities = append(g.activities[:i], g.activities[i+1:]...)
			return nil
		}
	}
	return core.NewDataError(core.DataNotFound, classroom.ActivityTable, errFakeNotFound)
}
