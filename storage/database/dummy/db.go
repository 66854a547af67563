// Package dummydb provides an in-memory implementation of the repositories
// for tests and local hacking. A single lock guards the whole store so that
// multi-table operations (order transitions and their membership side effect)
// stay atomic, like their SQL counterparts.
package dummydb

import (
	"sync"

	"github.com/mekesim/backend/core/course"
	"github.com/mekesim/backend/core/order"
	"github.com/mekesim/backend/core/user"
)

type DB struct {
	mu sync.Mutex

	users    map[string]*user.User    // by ID
	profiles map[string]*user.Profile // by user ID
	courses  map[string]*course.Course
	lessons  map[string]*course.Lesson
	members  map[string]map[string]bool // courseID -> userID set
	orders   map[string]*order.Order    // by ID
}

func Open() (*DB, error) {
	db := &DB{
		users:    make(map[string]*user.User),
		profiles: make(map[string]*user.Profile),
		courses:  make(map[string]*course.Course),
		lessons:  make(map[string]*course.Lesson),
		members:  make(map[string]map[string]bool),
		orders:   make(map[string]*order.Order),
	}
	return db, nil
}

func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users = make(map[string]*user.User)
	db.profiles = make(map[string]*user.Profile)
	db.courses = make(map[string]*course.Course)
	db.lessons = make(map[string]*course.Lesson)
	db.members = make(map[string]map[string]bool)
	db.orders = make(map[string]*order.Order)
}

// SetCourseMember force-sets membership, bypassing the order engine. Test helper.
func (db *DB) SetCourseMember(courseID, userID string, member bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.setMember(courseID, userID, member)
}

func (db *DB) setMember(courseID, userID string, member bool) {
	set, ok := db.members[courseID]
	if !ok {
		set = make(map[string]bool)
		db.members[courseID] = set
	}
	if member {
		set[userID] = true
	} else {
		delete(set, userID)
	}
}

func (db *DB) isMember(courseID, userID string) bool {
	return db.members[courseID][userID]
}
