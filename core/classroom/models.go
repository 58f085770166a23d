package classroom

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/collegepense/pense/core"
)

// Table names on the backend.
const (
	ClassTable    = "turmas"
	ActivityTable = "atividades"

	ClassNameMaxLen           = 100
	ActivityDescriptionMaxLen = 1000
)

// Class is a named group owned by one professor ("turma").
type Class struct {
	ID      int64  `json:"id" db:"id"`
	Name    string `json:"nome" db:"nome"`
	OwnerID string `json:"professor_id" db:"professor_id"`
}

// Activity is a described unit of work scoped to exactly one class ("atividade").
type Activity struct {
	ID          int64     `json:"id" db:"id"`
	Description string    `json:"descricao" db:"descricao"`
	ClassID     int64     `json:"turma_id" db:"turma_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ClassDraft holds the editable fields of a Class while a form is open. It is never persisted partially.
type ClassDraft struct {
	Name string `json:"nome" validate:"notblank,max=100"`
}

func NewClassDraft(cls *Class) ClassDraft {
	if cls == nil {
		return ClassDraft{}
	}
	return ClassDraft{Name: cls.Name}
}

// Validate trims the draft, then checks it.
func (d *ClassDraft) Validate(validate *validator.Validate, translator ut.Translator) error {
	d.Name = core.CleanString(d.Name)
	return core.TranslateValidation(validate.Struct(d), translator)
}

type ActivityDraft struct {
	Description string `json:"descricao" validate:"notblank,max=1000"`
}

func NewActivityDraft(act *Activity) ActivityDraft {
	if act == nil {
		return ActivityDraft{}
	}
	return ActivityDraft{Description: act.Description}
}

func (d *ActivityDraft) Validate(validate *validator.Validate, translator ut.Translator) error {
	d.Description = core.CleanString(d.Description)
	return core.TranslateValidation(validate.Struct(d), translator)
}

// ClassFilter selects classes. Zero fields do not filter.
type ClassFilter struct {
	ID      *int64
	OwnerID string
}

// ActivityFilter selects activities. OwnerID restricts to activities of classes owned by that professor.
type ActivityFilter struct {
	ID      *int64
	ClassID *int64
	OwnerID string
}

var (
	ClassColumns    = []string{"id", "nome", "professor_id"}
	ActivityColumns = []string{"id", "descricao", "created_at", "turma_id"}
)

// ValidColumn reports whether col is one of cols.
func ValidColumn(cols []string, col string) bool {
	for _, c := range cols {
		if c == col {
			return true
		}
	}
	return false
}
