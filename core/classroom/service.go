package classroom

import (
	"context"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/collegepense/pense/core"
)

type (
	// Gateway is the table half of the remote backend. Implementations return *core.DataError.
	Gateway interface {
		// ListClasses returns the classes owned by ownerID, sorted by name ascending.
		ListClasses(ctx context.Context, ownerID string) ([]Class, error)
		CreateClass(ctx context.Context, name, ownerID string) (Class, error)
		UpdateClass(ctx context.Context, id int64, name string) (Class, error)
		DeleteClass(ctx context.Context, id int64) error
		// ListActivities returns the activities of classID, newest first.
		ListActivities(ctx context.Context, classID int64) ([]Activity, error)
		CreateActivity(ctx context.Context, classID int64, description string) (Activity, error)
		UpdateActivity(ctx context.Context, id int64, description string) (Activity, error)
		DeleteActivity(ctx context.Context, id int64) error
	}

	// Repository is the storage behind the development backend.
	// Update & Delete return the affected rows; rows outside the filter are untouched.
	Repository interface {
		QueryClasses(ctx context.Context, filter ClassFilter, ordering ...core.DBOrdering) ([]Class, error)
		CreateClass(ctx context.Context, cls Class) (Class, error)
		UpdateClasses(ctx context.Context, filter ClassFilter, name string) ([]Class, error)
		DeleteClasses(ctx context.Context, filter ClassFilter) ([]Class, error)
		QueryActivities(ctx context.Context, filter ActivityFilter, ordering ...core.DBOrdering) ([]Activity, error)
		CreateActivity(ctx context.Context, act Activity) (Activity, error)
		UpdateActivities(ctx context.Context, filter ActivityFilter, description string) ([]Activity, error)
		DeleteActivities(ctx context.Context, filter ActivityFilter) ([]Activity, error)
	}
)

// Service validates drafts before they reach the Gateway. Invalid drafts never cause a network call.
type Service struct {
	gw         Gateway
	validate   *validator.Validate
	translator ut.Translator
}

func NewService(gw Gateway, validate *validator.Validate, translator ut.Translator) *Service {
	return &Service{gw: gw, validate: validate, translator: translator}
}

func (svc *Service) ListClasses(ctx context.Context, ownerID string) ([]Class, error) {
	classes, err := svc.gw.ListClasses(ctx, ownerID)
	return classes, errors.Wrap(err, "listing classes")
}

// SaveClass creates a class owned by ownerID, or renames `existing` when set.
func (svc *Service) SaveClass(ctx context.Context, ownerID string, existing *Class, draft ClassDraft) (Class, error) {
	if ownerID == "" {
		return Class{}, core.NewInvariantError("saving a class without a signed in professor")
	}
	if err := draft.Validate(svc.validate, svc.translator); err != nil {
		return Class{}, err
	}

	if existing == nil {
		cls, err := svc.gw.CreateClass(ctx, draft.Name, ownerID)
		return cls, errors.Wrap(err, "creating class")
	}
	cls, err := svc.gw.UpdateClass(ctx, existing.ID, draft.Name)
	return cls, errors.Wrap(err, "updating class")
}

func (svc *Service) DeleteClass(ctx context.Context, id int64) error {
	return errors.Wrap(svc.gw.DeleteClass(ctx, id), "deleting class")
}

func (svc *Service) ListActivities(ctx context.Context, classID int64) ([]Activity, error) {
	acts, err := svc.gw.ListActivities(ctx, classID)
	return acts, errors.Wrap(err, "listing activities")
}

// SaveActivity creates an activity in classID, or edits `existing` when set.
func (svc *Service) SaveActivity(ctx context.Context, classID int64, existing *Activity, draft ActivityDraft) (Activity, error) {
	if err := draft.Validate(svc.validate, svc.translator); err != nil {
		return Activity{}, err
	}

	if existing == nil {
		act, err := svc.gw.CreateActivity(ctx, classID, draft.Description)
		return act, errors.Wrap(err, "creating activity")
	}
	act, err := svc.gw.UpdateActivity(ctx, existing.ID, draft.Description)
	return act, errors.Wrap(err, "updating activity")
}

func (svc *Service) DeleteActivity(ctx context.Context, id int64) error {
	return errors.Wrap(svc.gw.DeleteActivity(ctx, id), "deleting activity")
}
