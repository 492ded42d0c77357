package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/enrollment"
)

const enrollmentColumns = `id, student_id, course_id, progress, enrolled_at, completed_at`

type enrollmentRow struct {
	ID          string    `db:"id"`
	StudentID   string    `db:"student_id"`
	CourseID    string    `db:"course_id"`
	Progress    int       `db:"progress"`
	EnrolledAt  time.Time `db:"enrolled_at"`
	CompletedAt null.Time `db:"completed_at"`
}

func newEnrollmentRow(enr enrollment.Enrollment) enrollmentRow {
	return enrollmentRow{
		ID:          enr.ID,
		StudentID:   enr.StudentID,
		CourseID:    enr.CourseID,
		Progress:    enr.Progress,
		EnrolledAt:  enr.EnrolledAt.UTC(),
		CompletedAt: null.TimeFromPtr(enr.CompletedAt),
	}
}

func (r enrollmentRow) enrollment() enrollment.Enrollment {
	return enrollment.Enrollment{
		ID:          r.ID,
		StudentID:   r.StudentID,
		CourseID:    r.CourseID,
		Progress:    r.Progress,
		EnrolledAt:  r.EnrolledAt,
		CompletedAt: r.CompletedAt.Ptr(),
	}
}

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *sqlx.DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, enr enrollment.Enrollment) (enrollment.Enrollment, error) {
	q := `INSERT INTO enrollments (` + enrollmentColumns + `)
		VALUES (:id, :student_id, :course_id, :progress, :enrolled_at, :completed_at)`
	row := newEnrollmentRow(enr)
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		switch {
		case isUniqueViolation(err):
			return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
		case isForeignKeyViolation(err):
			return enrollment.Enrollment{}, course.ErrNotFound
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return row.enrollment(), nil
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, studentID, courseID string) (enrollment.Enrollment, error) {
	var row enrollmentRow
	q := "SELECT " + enrollmentColumns + " FROM enrollments WHERE student_id = $1 AND course_id = $2"
	if err := repo.db.GetContext(ctx, &row, q, studentID, courseID); err != nil {
		return enrollment.Enrollment{}, trapNoRowsErr(err, enrollment.ErrNotFound, "finding enrollment")
	}
	return row.enrollment(), nil
}

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, filter enrollment.QueryFilter) ([]enrollment.Enrollment, error) {
	where := new(whereClause)
	if filter.StudentID != "" {
		where.add("student_id = ?", filter.StudentID)
	}
	if filter.CourseID != "" {
		where.add("course_id = ?", filter.CourseID)
	}
	q := "SELECT " + enrollmentColumns + " FROM enrollments" + where.String() + " ORDER BY enrolled_at DESC"

	var rows []enrollmentRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrs := make([]enrollment.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrs = append(enrs, row.enrollment())
	}
	return enrs, nil
}

func (repo *enrollmentRepository) UpdateEnrollment(ctx context.Context, enr enrollment.Enrollment) (enrollment.Enrollment, error) {
	q := `UPDATE enrollments SET progress = :progress, completed_at = :completed_at WHERE id = :id`
	row := newEnrollmentRow(enr)
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	if err = affected(res, enrollment.ErrNotFound, "updating enrollment"); err != nil {
		return enrollment.Enrollment{}, err
	}
	return row.enrollment(), nil
}

func (repo *enrollmentRepository) DeleteEnrollment(ctx context.Context, studentID, courseID string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM enrollments WHERE student_id = $1 AND course_id = $2", studentID, courseID)
	if err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	return affected(res, enrollment.ErrNotFound, "deleting enrollment")
}
