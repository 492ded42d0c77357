package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
)

const courseColumns = `id, title, slug, description, category, level, instructor_id, thumbnail_url, is_published, created_at, updated_at`

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

// courseRow mirrors course.Course; the domain type carries no db tags.
type courseRow struct {
	ID           string `db:"id"`
	Title        string `db:"title"`
	Slug         string `db:"slug"`
	Description  string `db:"description"`
	Category     string `db:"category"`
	Level        string `db:"level"`
	InstructorID string `db:"instructor_id"`
	ThumbnailURL string `db:"thumbnail_url"`
	IsPublished  bool   `db:"is_published"`
	timestamps
}

func (r courseRow) course() course.Course {
	return course.Course{
		ID:           r.ID,
		Title:        r.Title,
		Slug:         r.Slug,
		Description:  r.Description,
		Category:     r.Category,
		Level:        r.Level,
		InstructorID: r.InstructorID,
		ThumbnailURL: r.ThumbnailURL,
		IsPublished:  r.IsPublished,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func newCourseRow(crs course.Course) courseRow {
	return courseRow{
		ID:           crs.ID,
		Title:        crs.Title,
		Slug:         crs.Slug,
		Description:  crs.Description,
		Category:     crs.Category,
		Level:        crs.Level,
		InstructorID: crs.InstructorID,
		ThumbnailURL: crs.ThumbnailURL,
		IsPublished:  crs.IsPublished,
		timestamps:   timestamps{CreatedAt: crs.CreatedAt.UTC(), UpdatedAt: crs.UpdatedAt.UTC()},
	}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	q := `INSERT INTO courses (` + courseColumns + `)
		VALUES (:id, :title, :slug, :description, :category, :level, :instructor_id, :thumbnail_url, :is_published, :created_at, :updated_at)`
	row := newCourseRow(crs)
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		if isForeignKeyViolation(err) {
			return course.Course{}, core.NewValidationError(nil, core.FieldError{Field: "instructor_id", Error: "unknown instructor"})
		}
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return row.course(), nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+courseColumns+" FROM courses WHERE id = $1", id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "finding course")
	}
	return row.course(), nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	where := new(whereClause)

	if filter != nil {
		if !filter.AllVisible {
			if filter.ViewerID != "" {
				where.add("(is_published OR instructor_id = ?)", filter.ViewerID)
			} else {
				where.add("is_published")
			}
		}
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where.add("(title ILIKE ? OR description ILIKE ?)", val, val)
		}
		if filter.Category != "" {
			where.add("category = ?", filter.Category)
		}
		if filter.Level != "" {
			where.add("level = ?", filter.Level)
		}
		if filter.InstructorID != "" {
			where.add("instructor_id = ?", filter.InstructorID)
		}
		if filter.Published != nil {
			where.add("is_published = ?", *filter.Published)
		}
	}

	q := "SELECT " + courseColumns + " FROM courses" + where.String() +
		" ORDER BY " + core.OrderingClause(ordering, "created_at DESC")

	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.course())
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	q := `UPDATE courses SET
		title = :title, slug = :slug, description = :description, category = :category, level = :level,
		thumbnail_url = :thumbnail_url, is_published = :is_published, updated_at = :updated_at
		WHERE id = :id`
	row := newCourseRow(crs)
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if err = affected(res, course.ErrNotFound, "updating course"); err != nil {
		return course.Course{}, err
	}
	return row.course(), nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM courses WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return affected(res, course.ErrNotFound, "deleting course")
}

func (repo *courseRepository) SlugExists(ctx context.Context, slug, excludedID string) (bool, error) {
	var exists bool
	q := "SELECT EXISTS (SELECT 1 FROM courses WHERE slug = $1 AND id::text <> $2)"
	if err := repo.db.GetContext(ctx, &exists, q, slug, excludedID); err != nil {
		return false, errors.Wrap(err, "checking slug")
	}
	return exists, nil
}
