package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/bookmark"
	"github.com/trezcool/darasa/core/course"
)

const bookmarkColumns = `id, user_id, course_id, material_id, position_seconds, note, created_at`

type bookmarkRow struct {
	ID              string      `db:"id"`
	UserID          string      `db:"user_id"`
	CourseID        string      `db:"course_id"`
	MaterialID      null.String `db:"material_id"`
	PositionSeconds int         `db:"position_seconds"`
	Note            string      `db:"note"`
	CreatedAt       time.Time   `db:"created_at"`
}

func (r bookmarkRow) bookmark() bookmark.Bookmark {
	return bookmark.Bookmark{
		ID:              r.ID,
		UserID:          r.UserID,
		CourseID:        r.CourseID,
		MaterialID:      r.MaterialID.Ptr(),
		PositionSeconds: r.PositionSeconds,
		Note:            r.Note,
		CreatedAt:       r.CreatedAt,
	}
}

type bookmarkRepository struct {
	db *sqlx.DB
}

var _ bookmark.Repository = (*bookmarkRepository)(nil)

func NewBookmarkRepository(db *sqlx.DB) bookmark.Repository {
	return &bookmarkRepository{db: db}
}

func (repo *bookmarkRepository) CreateBookmark(ctx context.Context, bm bookmark.Bookmark) (bookmark.Bookmark, error) {
	row := bookmarkRow{
		ID:              bm.ID,
		UserID:          bm.UserID,
		CourseID:        bm.CourseID,
		MaterialID:      null.StringFromPtr(bm.MaterialID),
		PositionSeconds: bm.PositionSeconds,
		Note:            bm.Note,
		CreatedAt:       bm.CreatedAt.UTC(),
	}
	q := `INSERT INTO bookmarks (` + bookmarkColumns + `)
		VALUES (:id, :user_id, :course_id, :material_id, :position_seconds, :note, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		switch {
		case isUniqueViolation(err):
			return bookmark.Bookmark{}, bookmark.ErrExists
		case isForeignKeyViolation(err):
			return bookmark.Bookmark{}, course.ErrNotFound
		}
		return bookmark.Bookmark{}, errors.Wrap(err, "inserting bookmark")
	}
	return row.bookmark(), nil
}

func (repo *bookmarkRepository) GetBookmark(ctx context.Context, id string) (bookmark.Bookmark, error) {
	var row bookmarkRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+bookmarkColumns+" FROM bookmarks WHERE id = $1", id); err != nil {
		return bookmark.Bookmark{}, trapNoRowsErr(err, bookmark.ErrNotFound, "finding bookmark")
	}
	return row.bookmark(), nil
}

func (repo *bookmarkRepository) QueryBookmarks(ctx context.Context, userID, courseID string) ([]bookmark.Bookmark, error) {
	where := new(whereClause)
	where.add("user_id = ?", userID)
	if courseID != "" {
		where.add("course_id = ?", courseID)
	}
	q := "SELECT " + bookmarkColumns + " FROM bookmarks" + where.String() + " ORDER BY created_at DESC"

	var rows []bookmarkRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying bookmarks")
	}
	bms := make([]bookmark.Bookmark, 0, len(rows))
	for _, row := range rows {
		bms = append(bms, row.bookmark())
	}
	return bms, nil
}

func (repo *bookmarkRepository) DeleteBookmark(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM bookmarks WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting bookmark")
	}
	return affected(res, bookmark.ErrNotFound, "deleting bookmark")
}
