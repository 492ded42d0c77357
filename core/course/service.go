package course

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

const eventTable = "courses"

var (
	// errors
	ErrNotFound = core.NewNotFoundError("course")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		DeleteCourse(ctx context.Context, id string) error
		SlugExists(ctx context.Context, slug, excludedID string) (bool, error)
	}

	// DeleteHook runs before a course is deleted; the returned func, if any, runs once the course is gone.
	DeleteHook func(ctx context.Context, crs Course) (func(ctx context.Context), error)

	Service interface {
		Create(ctx context.Context, actor core.Actor, nc NewCourse) (Course, error)
		// Get returns the course if actor may see it.
		Get(ctx context.Context, actor core.Actor, id string) (Course, error)
		// GetManaged returns the course if actor may modify it.
		GetManaged(ctx context.Context, actor core.Actor, id string) (Course, error)
		Query(ctx context.Context, actor core.Actor, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		Update(ctx context.Context, actor core.Actor, id string, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, actor core.Actor, id string) error
		// OnDelete registers hook for every course deletion. Register hooks before serving.
		OnDelete(hook DeleteHook)
	}

	service struct {
		repo        Repository
		events      core.EventPublisher
		logger      core.Logger
		deleteHooks []DeleteHook
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, events core.EventPublisher, logger core.Logger) Service {
	return &service{repo: repo, events: events, logger: logger}
}

func (svc *service) uniqueSlug(ctx context.Context, title, excludedID string) (string, error) {
	base := core.Slugify(title)
	if base == "" {
		base = "course"
	}
	slug := base
	for i := 2; ; i++ {
		exists, err := svc.repo.SlugExists(ctx, slug, excludedID)
		if err != nil {
			return "", errors.Wrap(err, "checking slug")
		}
		if !exists {
			return slug, nil
		}
		slug = base + "-" + strconv.Itoa(i)
	}
}

func (svc *service) publish(ctx context.Context, typ string, crs Course) {
	var to []string
	if !crs.IsPublished {
		to = []string{crs.InstructorID}
	}
	if err := svc.events.Publish(ctx, core.NewEvent(eventTable, typ, crs, to...)); err != nil {
		svc.logger.Warn("publishing course event", errors.Wrap(err, "publishing event"))
	}
}

func (svc *service) Create(ctx context.Context, actor core.Actor, nc NewCourse) (Course, error) {
	if !(actor.IsTeacher() || actor.IsAdmin()) {
		return Course{}, core.ErrForbidden
	}

	instructorID := actor.ID
	if actor.IsAdmin() && nc.InstructorID != "" {
		instructorID = nc.InstructorID
	}

	slug, err := svc.uniqueSlug(ctx, nc.Title, "")
	if err != nil {
		return Course{}, err
	}

	now := time.Now().UTC()
	crs, err := svc.repo.CreateCourse(ctx, Course{
		ID:           uuid.NewString(),
		Title:        nc.Title,
		Slug:         slug,
		Description:  nc.Description,
		Category:     nc.Category,
		Level:        nc.Level,
		InstructorID: instructorID,
		ThumbnailURL: nc.ThumbnailURL,
		IsPublished:  nc.IsPublished,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Course{}, errors.Wrap(err, "creating course")
	}
	svc.publish(ctx, core.EventInsert, crs)
	return crs, nil
}

func (svc *service) Get(ctx context.Context, actor core.Actor, id string) (Course, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Course{}, ErrNotFound
	}
	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !crs.VisibleTo(actor) {
		return Course{}, ErrNotFound
	}
	return crs, nil
}

func (svc *service) GetManaged(ctx context.Context, actor core.Actor, id string) (Course, error) {
	crs, err := svc.Get(ctx, actor, id)
	if err != nil {
		return Course{}, err
	}
	if !actor.CanManage(crs.InstructorID) {
		return Course{}, core.ErrForbidden
	}
	return crs, nil
}

func (svc *service) Query(ctx context.Context, actor core.Actor, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.ViewerID = actor.ID
	filter.AllVisible = actor.IsAdmin()
	return svc.repo.QueryCourses(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, actor core.Actor, id string, uc UpdateCourse) (Course, error) {
	crs, err := svc.GetManaged(ctx, actor, id)
	if err != nil {
		return Course{}, err
	}

	if uc.Title != nil && *uc.Title != crs.Title {
		crs.Title = *uc.Title
		if crs.Slug, err = svc.uniqueSlug(ctx, crs.Title, crs.ID); err != nil {
			return Course{}, err
		}
	}
	if uc.Description != nil {
		crs.Description = core.CleanString(*uc.Description)
	}
	if uc.Category != nil {
		crs.Category = *uc.Category
	}
	if uc.Level != nil && *uc.Level != "" {
		crs.Level = *uc.Level
	}
	if uc.ThumbnailURL != nil {
		crs.ThumbnailURL = core.CleanString(*uc.ThumbnailURL)
	}
	if uc.IsPublished != nil {
		crs.IsPublished = *uc.IsPublished
	}
	crs.UpdatedAt = time.Now().UTC()

	if crs, err = svc.repo.UpdateCourse(ctx, crs); err != nil {
		return Course{}, errors.Wrap(err, "updating course")
	}
	svc.publish(ctx, core.EventUpdate, crs)
	return crs, nil
}

func (svc *service) Delete(ctx context.Context, actor core.Actor, id string) error {
	crs, err := svc.GetManaged(ctx, actor, id)
	if err != nil {
		return err
	}

	var after []func(context.Context)
	for _, hook := range svc.deleteHooks {
		fn, err := hook(ctx, crs)
		if err != nil {
			return errors.Wrap(err, "preparing course delete")
		}
		if fn != nil {
			after = append(after, fn)
		}
	}

	if err := svc.repo.DeleteCourse(ctx, crs.ID); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	for _, fn := range after {
		fn(ctx)
	}
	svc.publish(ctx, core.EventDelete, crs)
	return nil
}

func (svc *service) OnDelete(hook DeleteHook) {
	svc.deleteHooks = append(svc.deleteHooks, hook)
}
