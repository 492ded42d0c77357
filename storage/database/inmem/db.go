// Package inmemdb implements the repositories in memory, for local development and tests.
package inmemdb

import (
	"sync"

	"github.com/trezcool/darasa/core/assessment"
	"github.com/trezcool/darasa/core/bookmark"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/material"
	"github.com/trezcool/darasa/core/user"
)

// DB holds every table behind a single lock, so multi-table writes are atomic.
type DB struct {
	mu sync.RWMutex

	users       map[string]user.User
	courses     map[string]course.Course
	enrollments map[string]enrollment.Enrollment
	materials   map[string]material.Material
	assessments map[string]assessment.Assessment
	questions   map[string]assessment.Question
	attempts    map[string]assessment.Attempt
	results     map[string]assessment.Result
	bookmarks   map[string]bookmark.Bookmark
}

func Open() *DB {
	db := new(DB)
	db.reset()
	return db
}

func (db *DB) reset() {
	db.users = make(map[string]user.User)
	db.courses = make(map[string]course.Course)
	db.enrollments = make(map[string]enrollment.Enrollment)
	db.materials = make(map[string]material.Material)
	db.assessments = make(map[string]assessment.Assessment)
	db.questions = make(map[string]assessment.Question)
	db.attempts = make(map[string]assessment.Attempt)
	db.results = make(map[string]assessment.Result)
	db.bookmarks = make(map[string]bookmark.Bookmark)
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.reset()
}

// Ping always succeeds; it lets health checks treat both engines alike.
func (db *DB) Ping() error { return nil }

// cascade helpers; callers hold the write lock

func (db *DB) deleteUserRows(userID string) {
	for id, crs := range db.courses {
		if crs.InstructorID == userID {
			db.deleteCourseRows(id)
		}
	}
	for id, enr := range db.enrollments {
		if enr.StudentID == userID {
			delete(db.enrollments, id)
		}
	}
	for id, att := range db.attempts {
		if att.StudentID == userID {
			db.deleteAttemptRows(id)
		}
	}
	for id, bm := range db.bookmarks {
		if bm.UserID == userID {
			delete(db.bookmarks, id)
		}
	}
	delete(db.users, userID)
}

func (db *DB) deleteCourseRows(courseID string) {
	for id, enr := range db.enrollments {
		if enr.CourseID == courseID {
			delete(db.enrollments, id)
		}
	}
	for id, mat := range db.materials {
		if mat.CourseID == courseID {
			db.deleteMaterialRows(id)
		}
	}
	for id, asmt := range db.assessments {
		if asmt.CourseID == courseID {
			db.deleteAssessmentRows(id)
		}
	}
	for id, bm := range db.bookmarks {
		if bm.CourseID == courseID {
			delete(db.bookmarks, id)
		}
	}
	delete(db.courses, courseID)
}

func (db *DB) deleteMaterialRows(materialID string) {
	for id, bm := range db.bookmarks {
		if bm.MaterialID != nil && *bm.MaterialID == materialID {
			delete(db.bookmarks, id)
		}
	}
	delete(db.materials, materialID)
}

func (db *DB) deleteAssessmentRows(assessmentID string) {
	for id, q := range db.questions {
		if q.AssessmentID == assessmentID {
			delete(db.questions, id)
		}
	}
	for id, att := range db.attempts {
		if att.AssessmentID == assessmentID {
			db.deleteAttemptRows(id)
		}
	}
	delete(db.assessments, assessmentID)
}

func (db *DB) deleteAttemptRows(attemptID string) {
	for id, res := range db.results {
		if res.AttemptID == attemptID {
			delete(db.results, id)
		}
	}
	delete(db.attempts, attemptID)
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
