package course

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// Levels
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

var (
	Levels = []string{LevelBeginner, LevelIntermediate, LevelAdvanced}

	levelTag  = "level"
	levelText = "level must be one of beginner, intermediate or advanced"

	// OrderingFields are the fields courses can be ordered by.
	OrderingFields = []string{"title", "slug", "category", "level", "created_at", "updated_at"}
)

type Course struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	Level        string    `json:"level"`
	InstructorID string    `json:"instructor_id"`
	ThumbnailURL string    `json:"thumbnail_url"`
	IsPublished  bool      `json:"is_published"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// VisibleTo reports whether actor may see the course.
func (c Course) VisibleTo(actor core.Actor) bool {
	return c.IsPublished || actor.CanManage(c.InstructorID)
}

type NewCourse struct {
	Title        string `json:"title" validate:"required,max=200"`
	Description  string `json:"description"`
	Category     string `json:"category" validate:"max=100"`
	Level        string `json:"level" validate:"omitempty,level"`
	InstructorID string `json:"instructor_id" validate:"omitempty,uuid"`
	ThumbnailURL string `json:"thumbnail_url" validate:"omitempty,url"`
	IsPublished  bool   `json:"is_published"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Category = core.CleanString(nc.Category, true /* lower */)
	nc.Level = core.CleanString(nc.Level, true /* lower */)
	if nc.Level == "" {
		nc.Level = LevelBeginner
	}
	return validate.Struct(nc)
}

type UpdateCourse struct {
	Title        *string `json:"title" validate:"omitempty,notblank,max=200"`
	Description  *string `json:"description"`
	Category     *string `json:"category" validate:"omitempty,max=100"`
	Level        *string `json:"level" validate:"omitempty,level"`
	ThumbnailURL *string `json:"thumbnail_url" validate:"omitempty,url"`
	IsPublished  *bool   `json:"is_published"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	if uc.Title != nil {
		*uc.Title = core.CleanString(*uc.Title)
	}
	if uc.Category != nil {
		*uc.Category = core.CleanString(*uc.Category, true /* lower */)
	}
	if uc.Level != nil {
		*uc.Level = core.CleanString(*uc.Level, true /* lower */)
	}
	return validate.Struct(uc)
}

type QueryFilter struct {
	Search       string
	Category     string
	Level        string
	InstructorID string
	Published    *bool

	// ViewerID limits unpublished courses to those taught by the viewer; ignored when AllVisible.
	ViewerID   string
	AllVisible bool
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Category = core.CleanString(qf.Category, true /* lower */)
	qf.Level = core.CleanString(qf.Level, true /* lower */)
}

// Visible reports whether crs passes the visibility part of the filter.
func (qf *QueryFilter) Visible(crs Course) bool {
	return qf.AllVisible || crs.IsPublished || (qf.ViewerID != "" && crs.InstructorID == qf.ViewerID)
}

// InitValidators registers the course validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterOneOf(validate, translator, levelTag, levelText, Levels...)
}
