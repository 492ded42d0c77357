package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/material"
)

const materialColumns = `id, course_id, title, kind, url, storage_key, position, duration_seconds, created_at`

type materialRow struct {
	ID              string    `db:"id"`
	CourseID        string    `db:"course_id"`
	Title           string    `db:"title"`
	Kind            string    `db:"kind"`
	URL             string    `db:"url"`
	StorageKey      string    `db:"storage_key"`
	Position        int       `db:"position"`
	DurationSeconds int       `db:"duration_seconds"`
	CreatedAt       time.Time `db:"created_at"`
}

func newMaterialRow(mat material.Material) materialRow {
	return materialRow{
		ID:              mat.ID,
		CourseID:        mat.CourseID,
		Title:           mat.Title,
		Kind:            mat.Kind,
		URL:             mat.URL,
		StorageKey:      mat.StorageKey,
		Position:        mat.Position,
		DurationSeconds: mat.DurationSeconds,
		CreatedAt:       mat.CreatedAt.UTC(),
	}
}

func (r materialRow) material() material.Material {
	return material.Material(r)
}

type materialRepository struct {
	db *sqlx.DB
}

var _ material.Repository = (*materialRepository)(nil)

func NewMaterialRepository(db *sqlx.DB) material.Repository {
	return &materialRepository{db: db}
}

func (repo *materialRepository) CreateMaterial(ctx context.Context, mat material.Material) (material.Material, error) {
	q := `INSERT INTO course_materials (` + materialColumns + `)
		VALUES (:id, :course_id, :title, :kind, :url, :storage_key, :position, :duration_seconds, :created_at)`
	row := newMaterialRow(mat)
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		if isForeignKeyViolation(err) {
			return material.Material{}, course.ErrNotFound
		}
		return material.Material{}, errors.Wrap(err, "inserting material")
	}
	return row.material(), nil
}

func (repo *materialRepository) GetMaterial(ctx context.Context, id string) (material.Material, error) {
	var row materialRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+materialColumns+" FROM course_materials WHERE id = $1", id); err != nil {
		return material.Material{}, trapNoRowsErr(err, material.ErrNotFound, "finding material")
	}
	return row.material(), nil
}

func (repo *materialRepository) QueryMaterials(ctx context.Context, courseID string) ([]material.Material, error) {
	var rows []materialRow
	q := "SELECT " + materialColumns + " FROM course_materials WHERE course_id = $1 ORDER BY position, created_at"
	if err := repo.db.SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying materials")
	}
	mats := make([]material.Material, 0, len(rows))
	for _, row := range rows {
		mats = append(mats, row.material())
	}
	return mats, nil
}

func (repo *materialRepository) UpdateMaterial(ctx context.Context, mat material.Material) (material.Material, error) {
	q := `UPDATE course_materials SET
		title = :title, kind = :kind, url = :url, storage_key = :storage_key,
		position = :position, duration_seconds = :duration_seconds
		WHERE id = :id`
	row := newMaterialRow(mat)
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return material.Material{}, errors.Wrap(err, "updating material")
	}
	if err = affected(res, material.ErrNotFound, "updating material"); err != nil {
		return material.Material{}, err
	}
	return row.material(), nil
}

func (repo *materialRepository) DeleteMaterial(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM course_materials WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting material")
	}
	return affected(res, material.ErrNotFound, "deleting material")
}

func (repo *materialRepository) SetPositions(ctx context.Context, courseID string, positions map[string]int) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, "UPDATE course_materials SET position = $1 WHERE id = $2 AND course_id = $3")
		if err != nil {
			return errors.Wrap(err, "preparing statement")
		}
		defer func() { _ = stmt.Close() }()

		for id, pos := range positions {
			res, err := stmt.ExecContext(ctx, pos, id, courseID)
			if err != nil {
				return errors.Wrap(err, "setting position")
			}
			if err = affected(res, material.ErrNotFound, "setting position"); err != nil {
				return err
			}
		}
		return nil
	})
}
