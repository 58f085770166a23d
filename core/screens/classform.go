package screens

import (
	"context"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/classroom"
)

// Outcome tells the router what to do once the form is done.
type Outcome int

const (
	OutcomeStay Outcome = iota
	OutcomeBack         // back to the class list
)

// ClassForm creates a class, or renames the class given at construction.
type ClassForm struct {
	lifecycle
	svc      *classroom.Service
	users    UserSource
	existing *classroom.Class

	draft   classroom.ClassDraft
	outcome Outcome
}

// NewClassForm edits existing when set, creates a class otherwise.
func NewClassForm(svc *classroom.Service, users UserSource, existing *classroom.Class) *ClassForm {
	var cp *classroom.Class
	if existing != nil {
		cls := *existing
		cp = &cls
	}
	return &ClassForm{svc: svc, users: users, existing: cp, draft: classroom.NewClassDraft(cp)}
}

func (f *ClassForm) Editing() bool { return f.existing != nil }

func (f *ClassForm) SetName(name string) {
	f.mu.Lock()
	f.draft.Name = name
	f.mu.Unlock()
}

func (f *ClassForm) Name() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft.Name
}

func (f *ClassForm) Outcome() Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcome
}

// Save writes the trimmed name for the signed in professor. Without one, the form aborts back to the
// list. An invalid name never reaches the network.
func (f *ClassForm) Save(ctx context.Context) error {
	ownerID, _ := f.users.UserID()

	f.mu.Lock()
	draft := f.draft
	f.mu.Unlock()

	gen, err := f.beginWrite()
	if err != nil {
		return err
	}
	_, err = f.svc.SaveClass(ctx, ownerID, f.existing, draft)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.endWrite()
	if gen != f.gen {
		return nil
	}
	if err != nil {
		f.notice = errorNotice("save the class", err)
		if core.IsInvariant(err) {
			f.outcome = OutcomeBack
		}
		return err
	}
	f.draft = classroom.ClassDraft{}
	f.outcome = OutcomeBack
	if f.existing != nil {
		f.notice = successNotice("Class updated.")
	} else {
		f.notice = successNotice("Class created.")
	}
	return nil
}
