package sqlxrepos

import (
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/assessment"
)

func TestWhereClause(t *testing.T) {
	var w whereClause
	assert.Equal(t, "", w.String())

	w.add("course_id = ?", "c1")
	w.add("(title ILIKE ? OR description ILIKE ?)", "%go%", "%go%")
	assert.Equal(t, " WHERE course_id = ? AND (title ILIKE ? OR description ILIKE ?)", w.String())
	assert.Equal(t, []interface{}{"c1", "%go%", "%go%"}, w.args)
}

func TestErrorMapping(t *testing.T) {
	errNotFound := errors.New("thing not found")

	assert.Equal(t, errNotFound, trapNoRowsErr(errors.Wrap(sql.ErrNoRows, "scanning"), errNotFound, "getting thing"))
	assert.EqualError(t, trapNoRowsErr(errors.New("boom"), errNotFound, "getting thing"), "getting thing: boom")

	dup := errors.Wrap(&pq.Error{Code: uniqueViolation}, "inserting")
	assert.True(t, isUniqueViolation(dup))
	assert.False(t, isForeignKeyViolation(dup))
	assert.True(t, isForeignKeyViolation(&pq.Error{Code: foreignKeyViolation}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestAttemptRow(t *testing.T) {
	started := time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)

	row, err := newAttemptRow(assessment.Attempt{
		ID:           "a1",
		AssessmentID: "x1",
		StudentID:    "s1",
		Status:       assessment.StatusInProgress,
		StartedAt:    started,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(row.Answers))
	assert.False(t, row.SubmittedAt.Valid)

	submitted := started.Add(time.Hour)
	row, err = newAttemptRow(assessment.Attempt{
		ID:          "a1",
		Status:      assessment.StatusCompleted,
		Answers:     assessment.Answers{"q1": "b"},
		StartedAt:   started,
		SubmittedAt: &submitted,
	})
	require.NoError(t, err)

	att, err := row.attempt()
	require.NoError(t, err)
	assert.Equal(t, assessment.Answers{"q1": "b"}, att.Answers)
	if assert.NotNil(t, att.SubmittedAt) {
		assert.True(t, submitted.Equal(*att.SubmittedAt))
	}
}
