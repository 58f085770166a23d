package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/classroom"
)

var errInvalidOrdering = errors.New("invalid ordering column")

type classroomRepository struct {
	db *sqlx.DB
}

var _ classroom.Repository = (*classroomRepository)(nil)

func NewClassroomRepository(db *sqlx.DB) classroom.Repository {
	return &classroomRepository{db: db}
}

// where accumulates `?` placeholders, rebound to the driver's bindvar on build.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, arg interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, arg)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func classWhere(filter classroom.ClassFilter) *where {
	w := new(where)
	if filter.ID != nil {
		w.add("id = ?", *filter.ID)
	}
	if filter.OwnerID != "" {
		w.add("professor_id::text = ?", filter.OwnerID)
	}
	return w
}

func activityWhere(filter classroom.ActivityFilter) *where {
	w := new(where)
	if filter.ID != nil {
		w.add("id = ?", *filter.ID)
	}
	if filter.ClassID != nil {
		w.add("turma_id = ?", *filter.ClassID)
	}
	if filter.OwnerID != "" {
		w.add("turma_id IN (SELECT id FROM turmas WHERE professor_id::text = ?)", filter.OwnerID)
	}
	return w
}

func orderBy(cols []string, ordering []core.DBOrdering) (string, error) {
	parts := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if !classroom.ValidColumn(cols, ord.Field) {
			return "", errors.Wrap(errInvalidOrdering, ord.Field)
		}
		parts = append(parts, ord.String())
	}
	parts = append(parts, "id ASC")
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

const (
	classColumns    = "id, nome, professor_id"
	activityColumns = "id, descricao, created_at, turma_id"
)

func (repo *classroomRepository) QueryClasses(ctx context.Context, filter classroom.ClassFilter, ordering ...core.DBOrdering) ([]classroom.Class, error) {
	order, err := orderBy(classroom.ClassColumns, ordering)
	if err != nil {
		return nil, err
	}
	w := classWhere(filter)
	classes := make([]classroom.Class, 0)
	q := repo.db.Rebind("SELECT " + classColumns + " FROM turmas" + w.String() + order)
	if err = repo.db.SelectContext(ctx, &classes, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting turmas")
	}
	return classes, nil
}

func (repo *classroomRepository) CreateClass(ctx context.Context, cls classroom.Class) (classroom.Class, error) {
	q := "INSERT INTO turmas (nome, professor_id) VALUES ($1, $2) RETURNING " + classColumns
	var created classroom.Class
	if err := repo.db.GetContext(ctx, &created, q, cls.Name, cls.OwnerID); err != nil {
		return classroom.Class{}, errors.Wrap(err, "inserting turma")
	}
	return created, nil
}

func (repo *classroomRepository) UpdateClasses(ctx context.Context, filter classroom.ClassFilter, name string) ([]classroom.Class, error) {
	w := classWhere(filter)
	q := repo.db.Rebind("UPDATE turmas SET nome = ?" + w.String() + " RETURNING " + classColumns)
	updated := make([]classroom.Class, 0)
	if err := repo.db.SelectContext(ctx, &updated, q, append([]interface{}{name}, w.args...)...); err != nil {
		return nil, errors.Wrap(err, "updating turmas")
	}
	return updated, nil
}

// DeleteClasses relies on ON DELETE CASCADE for the activities.
func (repo *classroomRepository) DeleteClasses(ctx context.Context, filter classroom.ClassFilter) ([]classroom.Class, error) {
	w := classWhere(filter)
	q := repo.db.Rebind("DELETE FROM turmas" + w.String() + " RETURNING " + classColumns)
	deleted := make([]classroom.Class, 0)
	if err := repo.db.SelectContext(ctx, &deleted, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "deleting turmas")
	}
	return deleted, nil
}

func (repo *classroomRepository) QueryActivities(ctx context.Context, filter classroom.ActivityFilter, ordering ...core.DBOrdering) ([]classroom.Activity, error) {
	order, err := orderBy(classroom.ActivityColumns, ordering)
	if err != nil {
		return nil, err
	}
	w := activityWhere(filter)
	acts := make([]classroom.Activity, 0)
	q := repo.db.Rebind("SELECT " + activityColumns + " FROM atividades" + w.String() + order)
	if err = repo.db.SelectContext(ctx, &acts, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting atividades")
	}
	return acts, nil
}

func (repo *classroomRepository) CreateActivity(ctx context.Context, act classroom.Activity) (classroom.Activity, error) {
	q := "INSERT INTO atividades (descricao, turma_id) VALUES ($1, $2) RETURNING " + activityColumns
	var created classroom.Activity
	if err := repo.db.GetContext(ctx, &created, q, act.Description, act.ClassID); err != nil {
		return classroom.Activity{}, errors.Wrap(err, "inserting atividade")
	}
	return created, nil
}

func (repo *classroomRepository) UpdateActivities(ctx context.Context, filter classroom.ActivityFilter, description string) ([]classroom.Activity, error) {
	w := activityWhere(filter)
	q := repo.db.Rebind("UPDATE atividades SET descricao = ?" + w.String() + " RETURNING " + activityColumns)
	updated := make([]classroom.Activity, 0)
	if err := repo.db.SelectContext(ctx, &updated, q, append([]interface{}{description}, w.args...)...); err != nil {
		return nil, errors.Wrap(err, "updating atividades")
	}
	return updated, nil
}

func (repo *classroomRepository) DeleteActivities(ctx context.Context, filter classroom.ActivityFilter) ([]classroom.Activity, error) {
	w := activityWhere(filter)
	q := repo.db.Rebind("DELETE FROM atividades" + w.String() + " RETURNING " + activityColumns)
	deleted := make([]classroom.Activity, 0)
	if err := repo.db.SelectContext(ctx, &deleted, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "deleting atividades")
	}
	return deleted, nil
}
