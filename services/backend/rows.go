package backendsvc

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/classroom"
)

var errSchemaMismatch = errors.New("schema mismatch")

// Wire rows keep every column as a pointer so that a missing one is told apart from a zero value.
type (
	classRow struct {
		ID      *int64  `json:"id"`
		Name    *string `json:"nome"`
		OwnerID *string `json:"professor_id"`
	}

	activityRow struct {
		ID          *int64     `json:"id"`
		Description *string    `json:"descricao"`
		ClassID     *int64     `json:"turma_id"`
		CreatedAt   *time.Time `json:"created_at"`
	}
)

func (r classRow) toClass() (classroom.Class, error) {
	switch {
	case r.ID == nil:
		return classroom.Class{}, errors.Wrap(errSchemaMismatch, "missing id")
	case r.Name == nil:
		return classroom.Class{}, errors.Wrap(errSchemaMismatch, "missing nome")
	case r.OwnerID == nil:
		return classroom.Class{}, errors.Wrap(errSchemaMismatch, "missing professor_id")
	}
	return classroom.Class{ID: *r.ID, Name: *r.Name, OwnerID: *r.OwnerID}, nil
}

func (r activityRow) toActivity() (classroom.Activity, error) {
	switch {
	case r.ID == nil:
		return classroom.Activity{}, errors.Wrap(errSchemaMismatch, "missing id")
	case r.Description == nil:
		return classroom.Activity{}, errors.Wrap(errSchemaMismatch, "missing descricao")
	case r.ClassID == nil:
		return classroom.Activity{}, errors.Wrap(errSchemaMismatch, "missing turma_id")
	case r.CreatedAt == nil:
		return classroom.Activity{}, errors.Wrap(errSchemaMismatch, "missing created_at")
	}
	return classroom.Activity{ID: *r.ID, Description: *r.Description, ClassID: *r.ClassID, CreatedAt: *r.CreatedAt}, nil
}

func decodeClasses(body string) ([]classroom.Class, error) {
	var rows []classRow
	if err := json.Unmarshal([]byte(body), &rows); err != nil {
		return nil, core.NewDataError(core.DataValidation, classroom.ClassTable, errors.Wrap(errSchemaMismatch, err.Error()))
	}
	classes := make([]classroom.Class, 0, len(rows))
	for _, row := range rows {
		cls, err := row.toClass()
		if err != nil {
			return nil, core.NewDataError(core.DataValidation, classroom.ClassTable, err)
		}
		classes = append(classes, cls)
	}
	return classes, nil
}

func decodeActivities(body string) ([]classroom.Activity, error) {
	var rows []activityRow
	if err := json.Unmarshal([]byte(body), &rows); err != nil {
		return nil, core.NewDataError(core.DataValidation, classroom.ActivityTable, errors.Wrap(errSchemaMismatch, err.Error()))
	}
	acts := make([]classroom.Activity, 0, len(rows))
	for _, row := range rows {
		act, err := row.toActivity()
		if err != nil {
			return nil, core.NewDataError(core.DataValidation, classroom.ActivityTable, err)
		}
		acts = append(acts, act)
	}
	return acts, nil
}
