package bookmark

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("bookmark")
	ErrExists   = core.NewConflictError("this position is already bookmarked")
)

type Bookmark struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	CourseID        string    `json:"course_id"`
	MaterialID      *string   `json:"material_id"`
	PositionSeconds int       `json:"position_seconds"`
	Note            string    `json:"note"`
	CreatedAt       time.Time `json:"created_at"`
}

type NewBookmark struct {
	CourseID        string  `json:"course_id" validate:"required,uuid"`
	MaterialID      *string `json:"material_id" validate:"omitempty,uuid"`
	PositionSeconds int     `json:"position_seconds" validate:"min=0"`
	Note            string  `json:"note" validate:"max=500"`
}

func (nb *NewBookmark) Validate(validate *validator.Validate) error {
	nb.CourseID = core.CleanString(nb.CourseID)
	nb.Note = core.CleanString(nb.Note)
	if nb.MaterialID != nil && core.CleanString(*nb.MaterialID) == "" {
		nb.MaterialID = nil
	}
	return validate.Struct(nb)
}

type (
	Repository interface {
		// CreateBookmark returns ErrExists for a duplicate (user, course, material, position).
		CreateBookmark(ctx context.Context, bm Bookmark) (Bookmark, error)
		GetBookmark(ctx context.Context, id string) (Bookmark, error)
		// QueryBookmarks lists a user's bookmarks, newest first; courseID is optional.
		QueryBookmarks(ctx context.Context, userID, courseID string) ([]Bookmark, error)
		DeleteBookmark(ctx context.Context, id string) error
	}

	Service interface {
		Add(ctx context.Context, actor core.Actor, nb NewBookmark) (Bookmark, error)
		List(ctx context.Context, actor core.Actor, courseID string) ([]Bookmark, error)
		Delete(ctx context.Context, actor core.Actor, id string) error
	}

	service struct {
		repo    Repository
		courses course.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, courses course.Service) Service {
	return &service{repo: repo, courses: courses}
}

func (svc *service) Add(ctx context.Context, actor core.Actor, nb NewBookmark) (Bookmark, error) {
	if actor.IsAnonymous() {
		return Bookmark{}, core.ErrForbidden
	}
	crs, err := svc.courses.Get(ctx, actor, nb.CourseID)
	if err != nil {
		return Bookmark{}, err
	}

	bm, err := svc.repo.CreateBookmark(ctx, Bookmark{
		ID:              uuid.NewString(),
		UserID:          actor.ID,
		CourseID:        crs.ID,
		MaterialID:      nb.MaterialID,
		PositionSeconds: nb.PositionSeconds,
		Note:            nb.Note,
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		if errors.Cause(err) == ErrExists {
			return Bookmark{}, ErrExists
		}
		return Bookmark{}, errors.Wrap(err, "creating bookmark")
	}
	return bm, nil
}

func (svc *service) List(ctx context.Context, actor core.Actor, courseID string) ([]Bookmark, error) {
	if actor.IsAnonymous() {
		return nil, core.ErrForbidden
	}
	return svc.repo.QueryBookmarks(ctx, actor.ID, core.CleanString(courseID))
}

func (svc *service) Delete(ctx context.Context, actor core.Actor, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	bm, err := svc.repo.GetBookmark(ctx, id)
	if err != nil {
		return err
	}
	if bm.UserID != actor.ID && !actor.IsAdmin() {
		return ErrNotFound
	}
	return errors.Wrap(svc.repo.DeleteBookmark(ctx, bm.ID), "deleting bookmark")
}
