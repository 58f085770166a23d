package screens

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/classroom"
)

var ErrModalClosed = errors.New("activity form is not open")

// Activities lists the activities of one class and drives the create/edit modal.
type Activities struct {
	lifecycle
	svc       *classroom.Service
	classID   int64
	className string

	activities []classroom.Activity
	modalOpen  bool
	editing    *classroom.Activity
	draft      classroom.ActivityDraft
	pending    *Confirmation
}

func NewActivities(svc *classroom.Service, classID int64, className string) *Activities {
	return &Activities{svc: svc, classID: classID, className: className}
}

func (a *Activities) ClassID() int64 { return a.classID }

func (a *Activities) ClassName() string { return a.className }

// Refresh fetches the activities of the class, newest first.
func (a *Activities) Refresh(ctx context.Context) error {
	return a.refresh(ctx, func(err error) *Notice { return errorNotice("load the activities", err) })
}

func (a *Activities) refresh(ctx context.Context, failed func(error) *Notice) error {
	gen, n := a.beginFetch()
	acts, err := a.svc.ListActivities(ctx, a.classID)

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.fetchCurrent(gen, n) {
		return nil
	}
	if err != nil {
		a.notice = failed(err)
		return err
	}
	a.activities = acts
	return nil
}

func (a *Activities) Activities() []classroom.Activity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]classroom.Activity(nil), a.activities...)
}

// OpenCreate opens the modal with an empty draft.
func (a *Activities) OpenCreate() {
	a.mu.Lock()
	a.modalOpen = true
	a.editing = nil
	a.draft = classroom.NewActivityDraft(nil)
	a.mu.Unlock()
}

// OpenEdit opens the modal on a copy of act's description.
func (a *Activities) OpenEdit(act classroom.Activity) {
	a.mu.Lock()
	a.modalOpen = true
	a.editing = &act
	a.draft = classroom.NewActivityDraft(&act)
	a.mu.Unlock()
}

func (a *Activities) SetDescription(desc string) {
	a.mu.Lock()
	a.draft.Description = desc
	a.mu.Unlock()
}

// Modal returns whether the modal is open, the activity under edit (nil when creating) and the draft.
func (a *Activities) Modal() (open bool, editing *classroom.Activity, draft classroom.ActivityDraft) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.editing != nil {
		act := *a.editing
		editing = &act
	}
	return a.modalOpen, editing, a.draft
}

// Close hides the modal and drops the draft and the selection.
func (a *Activities) Close() {
	a.mu.Lock()
	a.close()
	a.mu.Unlock()
}

// must hold a.mu
func (a *Activities) close() {
	a.modalOpen = false
	a.editing = nil
	a.draft = classroom.ActivityDraft{}
}

// Save validates the draft and creates or updates the activity. On success the modal closes and the
// list is refetched; a failed refetch is reported in the notice but does not fail the save.
// An invalid draft never reaches the network.
func (a *Activities) Save(ctx context.Context) error {
	a.mu.Lock()
	if !a.modalOpen {
		a.mu.Unlock()
		return ErrModalClosed
	}
	var editing *classroom.Activity
	if a.editing != nil {
		act := *a.editing
		editing = &act
	}
	draft := a.draft
	a.mu.Unlock()

	gen, err := a.beginWrite()
	if err != nil {
		return err
	}
	_, err = a.svc.SaveActivity(ctx, a.classID, editing, draft)

	a.mu.Lock()
	a.endWrite()
	if gen != a.gen {
		a.mu.Unlock()
		return nil
	}
	if err != nil {
		a.notice = errorNotice("save the activity", err)
		a.mu.Unlock()
		return err
	}
	a.close()
	done := "Activity created."
	if editing != nil {
		done = "Activity updated."
	}
	a.notice = successNotice(done)
	a.mu.Unlock()

	_ = a.refresh(ctx, func(error) *Notice {
		return &Notice{Kind: NoticeError, Title: done, Message: "Could not reload the activities. Press r to retry."}
	})
	return nil
}

// RequestDelete asks for a confirmation before deleting the activity with id.
func (a *Activities) RequestDelete(id int64) (Confirmation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	found := false
	for _, act := range a.activities {
		if act.ID == id {
			found = true
			break
		}
	}
	if !found {
		return Confirmation{}, core.NewDataError(core.DataNotFound, classroom.ActivityTable, errors.Errorf("activity %d is not listed", id))
	}
	a.pending = &Confirmation{
		Title:   "Confirm deletion",
		Message: fmt.Sprintf("Are you sure you want to delete the activity %d?", id),
		ID:      id,
	}
	return *a.pending, nil
}

func (a *Activities) PendingDelete() (Confirmation, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == nil {
		return Confirmation{}, false
	}
	return *a.pending, true
}

func (a *Activities) CancelDelete() {
	a.mu.Lock()
	a.pending = nil
	a.mu.Unlock()
}

// ConfirmDelete deletes the activity awaiting confirmation, then drops it from the list.
func (a *Activities) ConfirmDelete(ctx context.Context) error {
	a.mu.Lock()
	if a.pending == nil {
		a.mu.Unlock()
		return ErrNoPendingDelete
	}
	id := a.pending.ID
	a.mu.Unlock()

	gen, err := a.beginWrite()
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.pending = nil
	a.mu.Unlock()

	err = a.svc.DeleteActivity(ctx, id)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.endWrite()
	if gen != a.gen {
		return nil
	}
	if err != nil {
		a.notice = errorNotice("delete the activity", err)
		return err
	}
	kept := make([]classroom.Activity, 0, len(a.activities))
	for _, act := range a.activities {
		if act.ID != id {
			kept = append(kept, act)
		}
	}
	a.activities = kept
	a.notice = successNotice("Activity deleted.")
	return nil
}
