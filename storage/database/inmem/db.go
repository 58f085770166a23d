package inmemdb

import (
	"sync"

	"github.com/collegepense/pense/core/classroom"
	"github.com/collegepense/pense/core/user"
)

type (
	// DB is a process local stand-in for the Postgres database.
	DB struct {
		user     *userTable
		classes  *classTable
		activity *activityTable
	}

	userTable struct {
		table   map[string]*user.User
		refresh map[string]*user.RefreshToken
		mutex   sync.RWMutex
	}

	classTable struct {
		table map[int64]*classroom.Class
		pk    int64
		mutex sync.RWMutex
	}

	activityTable struct {
		table map[int64]*classroom.Activity
		pk    int64
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{
			table:   make(map[string]*user.User),
			refresh: make(map[string]*user.RefreshToken),
		},
		classes:  &classTable{table: make(map[int64]*classroom.Class)},
		activity: &activityTable{table: make(map[int64]*classroom.Activity)},
	}
}
