package echoapi

import (
	"net/http"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/classroom"
)

var (
	classFilterable    = []string{"id", "professor_id"}
	activityFilterable = []string{"id", "turma_id"}

	classWritable    = []string{"nome", "professor_id"}
	activityWritable = []string{"descricao", "turma_id"}
)

// tableApi emulates the table endpoints with row level security:
// a professor reads & writes their own classes, and the activities of those classes only.
type tableApi struct {
	repo classroom.Repository
}

func registerTableAPI(tg *echo.Group, repo classroom.Repository) {
	api := tableApi{repo: repo}

	tg.GET("/"+classroom.ClassTable, api.queryClasses)
	tg.POST("/"+classroom.ClassTable, api.createClasses)
	tg.PATCH("/"+classroom.ClassTable, api.updateClasses)
	tg.DELETE("/"+classroom.ClassTable, api.deleteClasses)

	tg.GET("/"+classroom.ActivityTable, api.queryActivities)
	tg.POST("/"+classroom.ActivityTable, api.createActivities)
	tg.PATCH("/"+classroom.ActivityTable, api.updateActivities)
	tg.DELETE("/"+classroom.ActivityTable, api.deleteActivities)

	tg.Any("/:table", func(echo.Context) error { return errUnknownRelation })
}

func subject(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errUnauthorized
	}
	return claims.Subject, nil
}

// classFilter scopes q to the classes of ownerID. ok is false when q can match none of them.
func classFilter(q tableQuery, ownerID string) (filter classroom.ClassFilter, ok bool, err error) {
	filter.OwnerID = ownerID
	if v, present := q.Filters["id"]; present {
		id, err := parseID("id", v)
		if err != nil {
			return filter, false, err
		}
		filter.ID = &id
	}
	if v, present := q.Filters["professor_id"]; present && v != ownerID {
		return filter, false, nil
	}
	return filter, true, nil
}

func activityFilter(q tableQuery, ownerID string) (classroom.ActivityFilter, error) {
	filter := classroom.ActivityFilter{OwnerID: ownerID}
	if v, present := q.Filters["id"]; present {
		id, err := parseID("id", v)
		if err != nil {
			return filter, err
		}
		filter.ID = &id
	}
	if v, present := q.Filters["turma_id"]; present {
		id, err := parseID("turma_id", v)
		if err != nil {
			return filter, err
		}
		filter.ClassID = &id
	}
	return filter, nil
}

func checkText(col, val string, max int) error {
	if core.CleanString(val) == "" {
		return newAPIError(http.StatusBadRequest, "23514", "new row violates check constraint on "+col)
	}
	if utf8.RuneCountInString(val) > max {
		return newAPIError(http.StatusBadRequest, "22001", "value too long for "+col)
	}
	return nil
}

// ownsClass reports whether the class is visible to ownerID.
func (api tableApi) ownsClass(ctx echo.Context, classID int64, ownerID string) (bool, error) {
	classes, err := api.repo.QueryClasses(ctx.Request().Context(), classroom.ClassFilter{ID: &classID, OwnerID: ownerID})
	if err != nil {
		return false, errors.Wrap(err, "querying classes")
	}
	return len(classes) > 0, nil
}

// Classes

func (api tableApi) queryClasses(ctx echo.Context) error {
	ownerID, err := subject(ctx)
	if err != nil {
		return err
	}
	q, err := bindTableQuery(ctx, classroom.ClassColumns, classFilterable)
	if err != nil {
		return err
	}
	filter, ok, err := classFilter(q, ownerID)
	if err != nil {
		return err
	}
	classes := make([]classroom.Class, 0)
	if ok {
		if classes, err = api.repo.QueryClasses(ctx.Request().Context(), filter, q.Ordering...); err != nil {
			return errors.Wrap(err, "querying classes")
		}
	}
	return respondRows(ctx, http.StatusOK, classes, q.Select)
}

func (api tableApi) createClasses(ctx echo.Context) error {
	ownerID, err := subject(ctx)
	if err != nil {
		return err
	}
	q, err := bindTableQuery(ctx, classroom.ClassColumns, nil)
	if err != nil {
		return err
	}
	rows, err := bindRows(ctx, classWritable)
	if err != nil {
		return err
	}

	toCreate := make([]classroom.Class, 0, len(rows))
	for _, row := range rows {
		name, ok, err := stringField(row, "nome")
		if err != nil {
			return err
		}
		if !ok {
			return notNullViolation("nome")
		}
		if err = checkText("nome", name, classroom.ClassNameMaxLen); err != nil {
			return err
		}
		owner, ok, err := stringField(row, "professor_id")
		if err != nil {
			return err
		}
		if !ok {
			owner = ownerID // column default: the signed in professor
		}
		if owner != ownerID {
			return errRLSViolation
		}
		toCreate = append(toCreate, classroom.Class{Name: name, OwnerID: owner})
	}

	created := make([]classroom.Class, 0, len(toCreate))
	for _, cls := range toCreate {
		cls, err = api.repo.CreateClass(ctx.Request().Context(), cls)
		if err != nil {
			return errors.Wrap(err, "creating class")
		}
		created = append(created, cls)
	}
	return respondRows(ctx, http.StatusCreated, created, q.Select)
}

func (api tableApi) updateClasses(ctx echo.Context) error {
	ownerID, err := subject(ctx)
	if err != nil {
		return err
	}
	q, err := bindTableQuery(ctx, classroom.ClassColumns, classFilterable)
	if err != nil {
		return err
	}
	if !q.hasFilters() {
		return errWhereRequired
	}
	rows, err := bindRows(ctx, classWritable)
	if err != nil {
		return err
	}
	if len(rows) != 1 {
		return newAPIError(http.StatusBadRequest, "PGRST102", "PATCH expects a single object")
	}

	owner, ok, err := stringField(rows[0], "professor_id")
	if err != nil {
		return err
	}
	if ok && owner != ownerID {
		return errRLSViolation
	}
	name, ok, err := stringField(rows[0], "nome")
	if err != nil {
		return err
	}
	if !ok {
		return notNullViolation("nome")
	}
	if err = checkText("nome", name, classroom.ClassNameMaxLen); err != nil {
		return err
	}

	filter, match, err := classFilter(q, ownerID)
	if err != nil {
		return err
	}
	updated := make([]classroom.Class, 0)
	if match {
		if updated, err = api.repo.UpdateClasses(ctx.Request().Context(), filter, name); err != nil {
			return errors.Wrap(err, "updating classes")
		}
	}
	return respondRows(ctx, http.StatusOK, updated, q.Select)
}

func (api tableApi) deleteClasses(ctx echo.Context) error {
	ownerID, err := subject(ctx)
	if err != nil {
		return err
	}
	q, err := bindTableQuery(ctx, classroom.ClassColumns, classFilterable)
	if err != nil {
		return err
	}
	if !q.hasFilters() {
		return errWhereRequired
	}
	filter, match, err := classFilter(q, ownerID)
	if err != nil {
		return err
	}
	deleted := make([]classroom.Class, 0)
	if match {
		if deleted, err = api.repo.DeleteClasses(ctx.Request().Context(), filter); err != nil {
			return errors.Wrap(err, "deleting classes")
		}
	}
	return respondRows(ctx, http.StatusOK, deleted, q.Select)
}

// Activities

func (api tableApi) queryActivities(ctx echo.Context) error {
	ownerID, err := subject(ctx)
	if err != nil {
		return err
	}
	q, err := bindTableQuery(ctx, classroom.ActivityColumns, activityFilterable)
	if err != nil {
		return err
	}
	filter, err := activityFilter(q, ownerID)
	if err != nil {
		return err
	}
	acts, err := api.repo.QueryActivities(ctx.Request().Context(), filter, q.Ordering...)
	if err != nil {
		return errors.Wrap(err, "querying activities")
	}
	return respondRows(ctx, http.StatusOK, acts, q.Select)
}

func (api tableApi) createActivities(ctx echo.Context) error {
	ownerID, err := subject(ctx)
	if err != nil {
		return err
	}
	q, err := bindTableQuery(ctx, classroom.ActivityColumns, nil)
	if err != nil {
		return err
	}
	rows, err := bindRows(ctx, activityWritable)
	if err != nil {
		return err
	}

	toCreate := make([]classroom.Activity, 0, len(rows))
	for _, row := range rows {
		desc, ok, err := stringField(row, "descricao")
		if err != nil {
			return err
		}
		if !ok {
			return notNullViolation("descricao")
		}
		if err = checkText("descricao", desc, classroom.ActivityDescriptionMaxLen); err != nil {
			return err
		}
		classID, ok, err := int64Field(row, "turma_id")
		if err != nil {
			return err
		}
		if !ok {
			return notNullViolation("turma_id")
		}
		owns, err := api.ownsClass(ctx, classID, ownerID)
		if err != nil {
			return err
		}
		if !owns {
			return errRLSViolation
		}
		toCreate = append(toCreate, classroom.Activity{Description: desc, ClassID: classID})
	}

	created := make([]classroom.Activity, 0, len(toCreate))
	for _, act := range toCreate {
		act, err = api.repo.CreateActivity(ctx.Request().Context(), act)
		if err != nil {
			return errors.Wrap(err, "creating activity")
		}
		created = append(created, act)
	}
	return respondRows(ctx, http.StatusCreated, created, q.Select)
}

func (api tableApi) updateActivities(ctx echo.Context) error {
	ownerID, err := subject(ctx)
	if err != nil {
		return err
	}
	q, err := bindTableQuery(ctx, classroom.ActivityColumns, activityFilterable)
	if err != nil {
		return err
	}
	if !q.hasFilters() {
		return errWhereRequired
	}
	rows, err := bindRows(ctx, []string{"descricao"})
	if err != nil {
		return err
	}
	if len(rows) != 1 {
		return newAPIError(http.StatusBadRequest, "PGRST102", "PATCH expects a single object")
	}
	desc, ok, err := stringField(rows[0], "descricao")
	if err != nil {
		return err
	}
	if !ok {
		return notNullViolation("descricao")
	}
	if err = checkText("descricao", desc, classroom.ActivityDescriptionMaxLen); err != nil {
		return err
	}

	filter, err := activityFilter(q, ownerID)
	if err != nil {
		return err
	}
	updated, err := api.repo.UpdateActivities(ctx.Request().Context(), filter, desc)
	if err != nil {
		return errors.Wrap(err, "updating activities")
	}
	return respondRows(ctx, http.StatusOK, updated, q.Select)
}

func (api tableApi) deleteActivities(ctx echo.Context) error {
	ownerID, err := subject(ctx)
	if err != nil {
		return err
	}
	q, err := bindTableQuery(ctx, classroom.ActivityColumns, activityFilterable)
	if err != nil {
		return err
	}
	if !q.hasFilters() {
		return errWhereRequired
	}
	filter, err := activityFilter(q, ownerID)
	if err != nil {
		return err
	}
	deleted, err := api.repo.DeleteActivities(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "deleting activities")
	}
	return respondRows(ctx, http.StatusOK, deleted, q.Select)
}
