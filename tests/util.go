// Package testutil holds fixtures shared by the service and API tests.
package testutil

import (
	"context"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assessment"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/material"
	"github.com/trezcool/darasa/core/user"
)

// NewValidator returns a validator with every domain validator registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)
	course.InitValidators(validate, translator)
	material.InitValidators(validate, translator)
	assessment.InitValidators(validate, translator)
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, repo course.Repository, instructorID, title string, published bool) course.Course {
	t.Helper()
	now := time.Now().UTC()
	crs, err := repo.CreateCourse(context.Background(), course.Course{
		ID:           uuid.NewString(),
		Title:        title,
		Slug:         core.Slugify(title),
		Category:     "programming",
		Level:        course.LevelBeginner,
		InstructorID: instructorID,
		IsPublished:  published,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("createCourse() failed: %v", err)
	}
	return crs
}

func CreateEnrollment(t *testing.T, repo enrollment.Repository, studentID, courseID string) enrollment.Enrollment {
	t.Helper()
	enr, err := repo.CreateEnrollment(context.Background(), enrollment.Enrollment{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		CourseID:   courseID,
		EnrolledAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("createEnrollment() failed: %v", err)
	}
	return enr
}

func CreateMaterial(t *testing.T, repo material.Repository, courseID, title string, position int) material.Material {
	t.Helper()
	mat, err := repo.CreateMaterial(context.Background(), material.Material{
		ID:        uuid.NewString(),
		CourseID:  courseID,
		Title:     title,
		Kind:      material.KindLink,
		URL:       "https://example.com/" + core.Slugify(title),
		Position:  position,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("createMaterial() failed: %v", err)
	}
	return mat
}

func CreateAssessment(t *testing.T, repo assessment.Repository, courseID, title string, published bool, timeLimit int) assessment.Assessment {
	t.Helper()
	now := time.Now().UTC()
	asmt, err := repo.CreateAssessment(context.Background(), assessment.Assessment{
		ID:               uuid.NewString(),
		CourseID:         courseID,
		Title:            title,
		TimeLimitMinutes: timeLimit,
		PassingScore:     50,
		IsPublished:      published,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		t.Fatalf("createAssessment() failed: %v", err)
	}
	return asmt
}

func CreateQuestion(
	t *testing.T,
	repo assessment.Repository,
	assessmentID, kind, prompt, answer string,
	options []string,
	points, position int,
) assessment.Question {
	t.Helper()
	q, err := repo.CreateQuestion(context.Background(), assessment.Question{
		ID:            uuid.NewString(),
		AssessmentID:  assessmentID,
		Kind:          kind,
		Prompt:        prompt,
		Options:       options,
		CorrectAnswer: answer,
		Points:        points,
		Position:      position,
	})
	if err != nil {
		t.Fatalf("createQuestion() failed: %v", err)
	}
	return q
}
