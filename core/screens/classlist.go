package screens

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/classroom"
)

var ErrNoPendingDelete = errors.New("no delete to confirm")

// Confirmation asks the professor before a destructive action.
type Confirmation struct {
	Title   string
	Message string
	ID      int64
}

// ClassList lists the professor's classes. Classes are refetched on every Focus.
type ClassList struct {
	lifecycle
	svc   *classroom.Service
	users UserSource

	classes []classroom.Class
	pending *Confirmation
}

func NewClassList(svc *classroom.Service, users UserSource) *ClassList {
	return &ClassList{svc: svc, users: users}
}

// Focus fetches the classes of the signed in professor. It does nothing while nobody is signed in.
func (c *ClassList) Focus(ctx context.Context) error {
	ownerID, ok := c.users.UserID()
	if !ok {
		return nil
	}

	gen, n := c.beginFetch()
	classes, err := c.svc.ListClasses(ctx, ownerID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.fetchCurrent(gen, n) {
		return nil
	}
	if err != nil {
		c.notice = errorNotice("load the classes", err)
		return err
	}
	c.classes = classes
	return nil
}

func (c *ClassList) Classes() []classroom.Class {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]classroom.Class(nil), c.classes...)
}

// Class returns the listed class with id.
func (c *ClassList) Class(id int64) (classroom.Class, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cls := range c.classes {
		if cls.ID == id {
			return cls, true
		}
	}
	return classroom.Class{}, false
}

// RequestDelete asks for a confirmation before deleting the class with id.
func (c *ClassList) RequestDelete(id int64) (Confirmation, error) {
	cls, ok := c.Class(id)
	if !ok {
		return Confirmation{}, core.NewDataError(core.DataNotFound, classroom.ClassTable, errors.Errorf("class %d is not listed", id))
	}

	conf := Confirmation{
		Title:   "Confirm deletion",
		Message: fmt.Sprintf("Are you sure you want to delete the class %q? This cannot be undone.", cls.Name),
		ID:      id,
	}
	c.mu.Lock()
	c.pending = &conf
	c.mu.Unlock()
	return conf, nil
}

// PendingDelete returns the confirmation awaiting an answer, if any.
func (c *ClassList) PendingDelete() (Confirmation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Confirmation{}, false
	}
	return *c.pending, true
}

func (c *ClassList) CancelDelete() {
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
}

// ConfirmDelete deletes the class awaiting confirmation with exactly one remote call.
// On success only that class leaves the list; on failure the list is untouched.
func (c *ClassList) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return ErrNoPendingDelete
	}
	id := c.pending.ID
	c.mu.Unlock()

	gen, err := c.beginWrite()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()

	err = c.svc.DeleteClass(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.endWrite()
	if gen != c.gen {
		return nil
	}
	if err != nil {
		c.notice = errorNotice("delete the class", err)
		return err
	}

	kept := make([]classroom.Class, 0, len(c.classes))
	for _, cls := range c.classes {
		if cls.ID != id {
			kept = append(kept, cls)
		}
	}
	c.classes = kept
	c.notice = successNotice("Class deleted.")
	return nil
}
