package core

import (
	"context"
	"database/sql"
	"strings"
)

type (
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	DB interface {
		DBExecutor

		Begin() (*sql.Tx, error)
		BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error)
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// ParseOrdering reads the REST ordering syntax: `col[.asc|.desc][,col2...]`. Ascending is the default.
func ParseOrdering(s string) []DBOrdering {
	var orderings []DBOrdering
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ord := DBOrdering{Field: part, Ascending: true}
		if i := strings.Index(part, "."); i >= 0 {
			ord.Field = part[:i]
			for _, mod := range strings.Split(part[i+1:], ".") {
				switch mod {
				case "desc":
					ord.Ascending = false
				case "asc":
					ord.Ascending = true
				}
			}
		}
		orderings = append(orderings, ord)
	}
	return orderings
}
