package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/classroom"
)

var nowFunc = time.Now // mockable

type classroomRepository struct {
	classes    *classTable
	activities *activityTable
}

var _ classroom.Repository = (*classroomRepository)(nil)

func NewClassroomRepository(db *DB) classroom.Repository {
	return &classroomRepository{classes: db.classes, activities: db.activity}
}

func matchClass(cls *classroom.Class, filter classroom.ClassFilter) bool {
	if filter.ID != nil && cls.ID != *filter.ID {
		return false
	}
	if filter.OwnerID != "" && cls.OwnerID != filter.OwnerID {
		return false
	}
	return true
}

// must hold repo.classes.mutex
func (repo *classroomRepository) matchActivity(act *classroom.Activity, filter classroom.ActivityFilter) bool {
	if filter.ID != nil && act.ID != *filter.ID {
		return false
	}
	if filter.ClassID != nil && act.ClassID != *filter.ClassID {
		return false
	}
	if filter.OwnerID != "" {
		cls, ok := repo.classes.table[act.ClassID]
		if !ok || cls.OwnerID != filter.OwnerID {
			return false
		}
	}
	return true
}

func compareClasses(a, b classroom.Class, field string) int {
	switch field {
	case "id":
		return compareInt(a.ID, b.ID)
	case "nome":
		return compareString(a.Name, b.Name)
	case "professor_id":
		return compareString(a.OwnerID, b.OwnerID)
	}
	return 0
}

func compareActivities(a, b classroom.Activity, field string) int {
	switch field {
	case "id":
		return compareInt(a.ID, b.ID)
	case "descricao":
		return compareString(a.Description, b.Description)
	case "created_at":
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
		return 0
	case "turma_id":
		return compareInt(a.ClassID, b.ClassID)
	}
	return 0
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// less applies orderings in turn, falling back to id ascending.
func less(cmp func(field string) int, ordering []core.DBOrdering) bool {
	for _, ord := range ordering {
		if c := cmp(ord.Field); c != 0 {
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
	}
	return cmp("id") < 0
}

func (repo *classroomRepository) QueryClasses(_ context.Context, filter classroom.ClassFilter, ordering ...core.DBOrdering) ([]classroom.Class, error) {
	repo.classes.mutex.RLock()
	defer repo.classes.mutex.RUnlock()

	classes := make([]classroom.Class, 0)
	for _, cls := range repo.classes.table {
		if matchClass(cls, filter) {
			classes = append(classes, *cls)
		}
	}
	sort.SliceStable(classes, func(i, j int) bool {
		return less(func(f string) int { return compareClasses(classes[i], classes[j], f) }, ordering)
	})
	return classes, nil
}

func (repo *classroomRepository) CreateClass(_ context.Context, cls classroom.Class) (classroom.Class, error) {
	repo.classes.mutex.Lock()
	defer repo.classes.mutex.Unlock()

	repo.classes.pk++
	cls.ID = repo.classes.pk
	repo.classes.table[cls.ID] = &cls
	return cls, nil
}

func (repo *classroomRepository) UpdateClasses(_ context.Context, filter classroom.ClassFilter, name string) ([]classroom.Class, error) {
	repo.classes.mutex.Lock()
	defer repo.classes.mutex.Unlock()

	updated := make([]classroom.Class, 0)
	for _, cls := range repo.classes.table {
		if matchClass(cls, filter) {
			cls.Name = name
			updated = append(updated, *cls)
		}
	}
	return updated, nil
}

// DeleteClasses also deletes the activities of the deleted classes.
func (repo *classroomRepository) DeleteClasses(_ context.Context, filter classroom.ClassFilter) ([]classroom.Class, error) {
	repo.classes.mutex.Lock()
	defer repo.classes.mutex.Unlock()
	repo.activities.mutex.Lock()
	defer repo.activities.mutex.Unlock()

	deleted := make([]classroom.Class, 0)
	for id, cls := range repo.classes.table {
		if !matchClass(cls, filter) {
			continue
		}
		deleted = append(deleted, *cls)
		delete(repo.classes.table, id)
		for aid, act := range repo.activities.table {
			if act.ClassID == id {
				delete(repo.activities.table, aid)
			}
		}
	}
	return deleted, nil
}

func (repo *classroomRepository) QueryActivities(_ context.Context, filter classroom.ActivityFilter, ordering ...core.DBOrdering) ([]classroom.Activity, error) {
	repo.classes.mutex.RLock()
	defer repo.classes.mutex.RUnlock()
	repo.activities.mutex.RLock()
	defer repo.activities.mutex.RUnlock()

	acts := make([]classroom.Activity, 0)
	for _, act := range repo.activities.table {
		if repo.matchActivity(act, filter) {
			acts = append(acts, *act)
		}
	}
	sort.SliceStable(acts, func(i, j int) bool {
		return less(func(f string) int { return compareActivities(acts[i], acts[j], f) }, ordering)
	})
	return acts, nil
}

func (repo *classroomRepository) CreateActivity(_ context.Context, act classroom.Activity) (classroom.Activity, error) {
	repo.activities.mutex.Lock()
	defer repo.activities.mutex.Unlock()

	repo.activities.pk++
	act.ID = repo.activities.pk
	if act.CreatedAt.IsZero() {
		act.CreatedAt = nowFunc().UTC()
	}
	repo.activities.table[act.ID] = &act
	return act, nil
}

func (repo *classroomRepository) UpdateActivities(_ context.Context, filter classroom.ActivityFilter, description string) ([]classroom.Activity, error) {
	repo.classes.mutex.RLock()
	defer repo.classes.mutex.RUnlock()
	repo.activities.mutex.Lock()
	defer repo.activities.mutex.Unlock()

	updated := make([]classroom.Activity, 0)
	for _, act := range repo.activities.table {
		if repo.matchActivity(act, filter) {
			act.Description = description
			updated = append(updated, *act)
		}
	}
	return updated, nil
}

func (repo *classroomRepository) DeleteActivities(_ context.Context, filter classroom.ActivityFilter) ([]classroom.Activity, error) {
	repo.classes.mutex.RLock()
	defer repo.classes.mutex.RUnlock()
	repo.activities.mutex.Lock()
	defer repo.activities.mutex.Unlock()

	deleted := make([]classroom.Activity, 0)
	for id, act := range repo.activities.table {
		if repo.matchActivity(act, filter) {
			deleted = append(deleted, *act)
			delete(repo.activities.table, id)
		}
	}
	return deleted, nil
}
