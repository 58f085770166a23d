// Package screens holds the headless controllers behind every screen of the app, and the router
// choosing which of them is shown. Controllers are safe for concurrent use: network calls run
// without holding their lock, and results land only while the controller is still mounted.
package screens

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrBusy is returned when a write is attempted while another one is in flight.
var ErrBusy = errors.New("another operation is in progress")

// UserSource resolves the signed in professor. *session.Store implements it.
type UserSource interface {
	UserID() (string, bool)
}

// lifecycle is the state shared by all controllers: the mount generation, the write slot and the notice.
type lifecycle struct {
	mu      sync.Mutex
	gen     uint64
	fetchN  uint64
	busy    bool
	loading bool
	notice  *Notice
}

// beginWrite takes the write slot. The returned generation tells whether the result may land.
func (l *lifecycle) beginWrite() (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy {
		return 0, ErrBusy
	}
	l.busy = true
	return l.gen, nil
}

// must hold l.mu
func (l *lifecycle) endWrite() {
	l.busy = false
}

// beginFetch starts a fetch; only the latest one of a generation may land.
func (l *lifecycle) beginFetch() (gen, n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetchN++
	l.loading = true
	return l.gen, l.fetchN
}

// must hold l.mu
func (l *lifecycle) fetchCurrent(gen, n uint64) bool {
	if gen != l.gen || n != l.fetchN {
		return false
	}
	l.loading = false
	return true
}

// Busy reports whether a write is in flight.
func (l *lifecycle) Busy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.busy
}

// Loading reports whether a fetch is in flight.
func (l *lifecycle) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Notice returns the pending notice, if any.
func (l *lifecycle) Notice() *Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.notice == nil {
		return nil
	}
	n := *l.notice
	return &n
}

func (l *lifecycle) DismissNotice() {
	l.mu.Lock()
	l.notice = nil
	l.mu.Unlock()
}

// Unmount drops the results of every call still in flight. Those calls return nil once they resolve.
func (l *lifecycle) Unmount() {
	l.mu.Lock()
	l.gen++
	l.loading = false
	l.mu.Unlock()
}
