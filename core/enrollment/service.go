package enrollment

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
)

const eventTable = "enrollments"

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("enrollment")
	ErrAlreadyEnrolled    = core.NewConflictError("already enrolled in this course")
	ErrCourseNotPublished = errors.New("course is not open for enrollment")
)

type (
	Repository interface {
		// CreateEnrollment returns ErrAlreadyEnrolled if the student is already enrolled in the course.
		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, studentID, courseID string) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter QueryFilter) ([]Enrollment, error)
		UpdateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		DeleteEnrollment(ctx context.Context, studentID, courseID string) error
	}

	// UserGetter finds the users to notify.
	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service interface {
		Enroll(ctx context.Context, actor core.Actor, courseID string) (Enrollment, error)
		Unenroll(ctx context.Context, actor core.Actor, courseID string) error
		ListForStudent(ctx context.Context, actor core.Actor) ([]Enrollment, error)
		ListForCourse(ctx context.Context, actor core.Actor, courseID string) ([]Enrollment, error)
		UpdateProgress(ctx context.Context, actor core.Actor, courseID string, progress int) (Enrollment, error)
		IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
	}

	service struct {
		repo    Repository
		courses course.Service
		users   UserGetter
		mailSvc core.EmailService
		events  core.EventPublisher
		logger  core.Logger
	}

	enrollmentMailData struct {
		Name        string
		CourseID    string
		CourseTitle string
	}
)

var (
	_ Service = (*service)(nil)

	nowFunc = time.Now // mockable
)

func NewService(
	repo Repository,
	courses course.Service,
	users UserGetter,
	mailSvc core.EmailService,
	events core.EventPublisher,
	logger core.Logger,
) Service {
	return &service{
		repo:    repo,
		courses: courses,
		users:   users,
		mailSvc: mailSvc,
		events:  events,
		logger:  logger,
	}
}

func (svc *service) publish(ctx context.Context, typ string, enr Enrollment, crs course.Course) {
	evt := core.NewEvent(eventTable, typ, enr, enr.StudentID, crs.InstructorID)
	if err := svc.events.Publish(ctx, evt); err != nil {
		svc.logger.Warn("publishing enrollment event", errors.Wrap(err, "publishing event"))
	}
}

func (svc *service) Enroll(ctx context.Context, actor core.Actor, courseID string) (Enrollment, error) {
	if actor.IsAnonymous() {
		return Enrollment{}, core.ErrForbidden
	}
	crs, err := svc.courses.Get(ctx, actor, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	if !crs.IsPublished {
		return Enrollment{}, core.NewValidationError(ErrCourseNotPublished)
	}

	enr, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		ID:         uuid.NewString(),
		StudentID:  actor.ID,
		CourseID:   crs.ID,
		EnrolledAt: nowFunc().UTC(),
	})
	if err != nil {
		if errors.Cause(err) == ErrAlreadyEnrolled {
			return Enrollment{}, ErrAlreadyEnrolled
		}
		return Enrollment{}, errors.Wrap(err, "creating enrollment")
	}

	svc.publish(ctx, core.EventInsert, enr, crs)
	svc.sendEnrollmentMail(ctx, enr, crs)
	return enr, nil
}

func (svc *service) Unenroll(ctx context.Context, actor core.Actor, courseID string) error {
	if _, err := uuid.Parse(courseID); err != nil {
		return ErrNotFound
	}
	enr, err := svc.repo.GetEnrollment(ctx, actor.ID, courseID)
	if err != nil {
		return err
	}
	if err := svc.repo.DeleteEnrollment(ctx, enr.StudentID, enr.CourseID); err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	svc.publish(ctx, core.EventDelete, enr, course.Course{})
	return nil
}

func (svc *service) ListForStudent(ctx context.Context, actor core.Actor) ([]Enrollment, error) {
	if actor.IsAnonymous() {
		return nil, core.ErrForbidden
	}
	return svc.repo.QueryEnrollments(ctx, QueryFilter{StudentID: actor.ID})
}

func (svc *service) ListForCourse(ctx context.Context, actor core.Actor, courseID string) ([]Enrollment, error) {
	crs, err := svc.courses.GetManaged(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryEnrollments(ctx, QueryFilter{CourseID: crs.ID})
}

func (svc *service) UpdateProgress(ctx context.Context, actor core.Actor, courseID string, progress int) (Enrollment, error) {
	if _, err := uuid.Parse(courseID); err != nil {
		return Enrollment{}, ErrNotFound
	}
	enr, err := svc.repo.GetEnrollment(ctx, actor.ID, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	enr.SetProgress(progress, nowFunc())

	if enr, err = svc.repo.UpdateEnrollment(ctx, enr); err != nil {
		return Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	svc.publish(ctx, core.EventUpdate, enr, course.Course{})
	return enr, nil
}

func (svc *service) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	if studentID == "" {
		return false, nil
	}
	if _, err := svc.repo.GetEnrollment(ctx, studentID, courseID); err != nil {
		if core.IsNotFound(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "finding enrollment")
	}
	return true, nil
}

func (svc *service) sendEnrollmentMail(ctx context.Context, enr Enrollment, crs course.Course) {
	usr, err := svc.users.GetByID(ctx, enr.StudentID)
	if err != nil {
		svc.logger.Warn("finding enrolled student", errors.Wrap(err, "finding user by ID"))
		return
	}
	if usr.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Enrolled in " + crs.Title,
		TemplateName: "enrollment",
		TemplateData: enrollmentMailData{Name: usr.Name, CourseID: crs.ID, CourseTitle: crs.Title},
	})
}
