package screens

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/collegepense/pense/core/classroom"
	"github.com/collegepense/pense/core/session"
)

// Route is the top level flow rendered for a session state.
type Route int

const (
	RouteLoading Route = iota
	RouteSignIn
	RouteClasses
)

func (r Route) String() string {
	switch r {
	case RouteLoading:
		return "loading"
	case RouteSignIn:
		return "sign-in"
	case RouteClasses:
		return "classes"
	default:
		return "unknown"
	}
}

// Resolve maps a session state to the only flow that may be rendered for it.
func Resolve(st session.State) Route {
	switch st.Status {
	case session.StatusAuthenticated:
		return RouteClasses
	case session.StatusUnauthenticated:
		return RouteSignIn
	default:
		return RouteLoading
	}
}

type PageKind int

const (
	PageClassList PageKind = iota + 1
	PageActivities
	PageClassForm
)

func (k PageKind) String() string {
	switch k {
	case PageClassList:
		return "class-list"
	case PageActivities:
		return "activities"
	case PageClassForm:
		return "class-form"
	default:
		return "unknown"
	}
}

// Page is one entry of the class management stack with its navigation params.
type Page struct {
	Kind      PageKind
	ClassID   int64            // PageActivities
	ClassName string           // PageActivities
	Class     *classroom.Class // PageClassForm, nil when creating
}

var ErrWrongFlow = errors.New("page not reachable from the current flow")

// View is what the router renders: the flow, and the stack top while in RouteClasses.
type View struct {
	Route Route
	Page  Page
}

// Router follows the session store. Each flow switch resets the page stack, so signing out from
// any page lands on the sign-in flow.
type Router struct {
	mu       sync.Mutex
	applied  bool
	route    Route
	stack    []Page
	watchers []func(View)
	stop     func()
}

// NewRouter renders the store's current state and follows its transitions until Close.
// Build it before Store.Start so no transition races the first render.
func NewRouter(store *session.Store) *Router {
	r := &Router{}
	r.stop = store.Watch(r.apply)
	r.apply(store.Snapshot())
	return r
}

func (r *Router) apply(st session.State) {
	route := Resolve(st)

	r.mu.Lock()
	if r.applied && route == r.route {
		r.mu.Unlock()
		return // token refresh, same flow
	}
	r.applied = true
	r.route = route
	r.stack = nil
	if route == RouteClasses {
		r.stack = []Page{{Kind: PageClassList}}
	}
	view, fns := r.view(), append([]func(View){}, r.watchers...)
	r.mu.Unlock()

	for _, fn := range fns {
		fn(view)
	}
}

// must hold r.mu
func (r *Router) view() View {
	v := View{Route: r.route}
	if len(r.stack) > 0 {
		v.Page = r.stack[len(r.stack)-1]
	}
	return v
}

func (r *Router) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view()
}

// Depth returns the size of the page stack.
func (r *Router) Depth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stack)
}

// Watch registers fn to be called after every view change.
func (r *Router) Watch(fn func(View)) {
	r.mu.Lock()
	r.watchers = append(r.watchers, fn)
	r.mu.Unlock()
}

func (r *Router) push(p Page) error {
	r.mu.Lock()
	if r.route != RouteClasses {
		r.mu.Unlock()
		return ErrWrongFlow
	}
	r.stack = append(r.stack, p)
	view, fns := r.view(), append([]func(View){}, r.watchers...)
	r.mu.Unlock()

	for _, fn := range fns {
		fn(view)
	}
	return nil
}

// OpenActivities shows the activities of a class.
func (r *Router) OpenActivities(classID int64, className string) error {
	return r.push(Page{Kind: PageActivities, ClassID: classID, ClassName: className})
}

// OpenClassForm shows the class form, editing cls when set.
func (r *Router) OpenClassForm(cls *classroom.Class) error {
	var cp *classroom.Class
	if cls != nil {
		c := *cls
		cp = &c
	}
	return r.push(Page{Kind: PageClassForm, Class: cp})
}

// Back pops the stack top; the class list is never popped.
func (r *Router) Back() {
	r.mu.Lock()
	if len(r.stack) <= 1 {
		r.mu.Unlock()
		return
	}
	r.stack = r.stack[:len(r.stack)-1]
	view, fns := r.view(), append([]func(View){}, r.watchers...)
	r.mu.Unlock()

	for _, fn := range fns {
		fn(view)
	}
}

// Close stops following the store.
func (r *Router) Close() {
	if r.stop != nil {
		r.stop()
	}
}
