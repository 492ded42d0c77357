package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assessment"
	"github.com/trezcool/darasa/core/course"
)

const (
	assessmentColumns = `id, course_id, title, description, time_limit_minutes, passing_score, is_published, due_at, created_at, updated_at`
	questionColumns   = `id, assessment_id, kind, prompt, options, correct_answer, points, position`
	attemptColumns    = `id, assessment_id, student_id, status, answers, started_at, submitted_at`
	resultColumns     = `id, attempt_id, assessment_id, student_id, score, max_score, percentage, passed, needs_review, graded_at`
)

type (
	assessmentRow struct {
		ID               string    `db:"id"`
		CourseID         string    `db:"course_id"`
		Title            string    `db:"title"`
		Description      string    `db:"description"`
		TimeLimitMinutes int       `db:"time_limit_minutes"`
		PassingScore     float64   `db:"passing_score"`
		IsPublished      bool      `db:"is_published"`
		DueAt            null.Time `db:"due_at"`
		timestamps
	}

	questionRow struct {
		ID            string         `db:"id"`
		AssessmentID  string         `db:"assessment_id"`
		Kind          string         `db:"kind"`
		Prompt        string         `db:"prompt"`
		Options       pq.StringArray `db:"options"`
		CorrectAnswer string         `db:"correct_answer"`
		Points        int            `db:"points"`
		Position      int            `db:"position"`
	}

	attemptRow struct {
		ID           string         `db:"id"`
		AssessmentID string         `db:"assessment_id"`
		StudentID    string         `db:"student_id"`
		Status       string         `db:"status"`
		Answers      types.JSONText `db:"answers"`
		StartedAt    time.Time      `db:"started_at"`
		SubmittedAt  null.Time      `db:"submitted_at"`
	}

	// resultRow has the same shape as assessment.Result.
	resultRow struct {
		ID           string    `db:"id"`
		AttemptID    string    `db:"attempt_id"`
		AssessmentID string    `db:"assessment_id"`
		StudentID    string    `db:"student_id"`
		Score        int       `db:"score"`
		MaxScore     int       `db:"max_score"`
		Percentage   float64   `db:"percentage"`
		Passed       bool      `db:"passed"`
		NeedsReview  bool      `db:"needs_review"`
		GradedAt     time.Time `db:"graded_at"`
	}
)

func newAssessmentRow(a assessment.Assessment) assessmentRow {
	return assessmentRow{
		ID:               a.ID,
		CourseID:         a.CourseID,
		Title:            a.Title,
		Description:      a.Description,
		TimeLimitMinutes: a.TimeLimitMinutes,
		PassingScore:     a.PassingScore,
		IsPublished:      a.IsPublished,
		DueAt:            null.TimeFromPtr(a.DueAt),
		timestamps:       timestamps{CreatedAt: a.CreatedAt.UTC(), UpdatedAt: a.UpdatedAt.UTC()},
	}
}

func (r assessmentRow) assessment() assessment.Assessment {
	return assessment.Assessment{
		ID:               r.ID,
		CourseID:         r.CourseID,
		Title:            r.Title,
		Description:      r.Description,
		TimeLimitMinutes: r.TimeLimitMinutes,
		PassingScore:     r.PassingScore,
		IsPublished:      r.IsPublished,
		DueAt:            r.DueAt.Ptr(),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func newQuestionRow(q assessment.Question) questionRow {
	opts := q.Options
	if opts == nil {
		opts = []string{}
	}
	return questionRow{
		ID:            q.ID,
		AssessmentID:  q.AssessmentID,
		Kind:          q.Kind,
		Prompt:        q.Prompt,
		Options:       opts,
		CorrectAnswer: q.CorrectAnswer,
		Points:        q.Points,
		Position:      q.Position,
	}
}

func (r questionRow) question() assessment.Question {
	return assessment.Question{
		ID:            r.ID,
		AssessmentID:  r.AssessmentID,
		Kind:          r.Kind,
		Prompt:        r.Prompt,
		Options:       []string(r.Options),
		CorrectAnswer: r.CorrectAnswer,
		Points:        r.Points,
		Position:      r.Position,
	}
}

func newAttemptRow(a assessment.Attempt) (attemptRow, error) {
	answers := a.Answers
	if answers == nil {
		answers = assessment.Answers{}
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return attemptRow{}, errors.Wrap(err, "encoding answers")
	}
	return attemptRow{
		ID:           a.ID,
		AssessmentID: a.AssessmentID,
		StudentID:    a.StudentID,
		Status:       a.Status,
		Answers:      raw,
		StartedAt:    a.StartedAt.UTC(),
		SubmittedAt:  null.TimeFromPtr(a.SubmittedAt),
	}, nil
}

func (r attemptRow) attempt() (assessment.Attempt, error) {
	answers := make(assessment.Answers)
	if len(r.Answers) > 0 {
		if err := r.Answers.Unmarshal(&answers); err != nil {
			return assessment.Attempt{}, errors.Wrap(err, "decoding answers")
		}
	}
	return assessment.Attempt{
		ID:           r.ID,
		AssessmentID: r.AssessmentID,
		StudentID:    r.StudentID,
		Status:       r.Status,
		Answers:      answers,
		StartedAt:    r.StartedAt,
		SubmittedAt:  r.SubmittedAt.Ptr(),
	}, nil
}

type assessmentRepository struct {
	db *sqlx.DB
}

var _ assessment.Repository = (*assessmentRepository)(nil)

func NewAssessmentRepository(db *sqlx.DB) assessment.Repository {
	return &assessmentRepository{db: db}
}

// Assessments

func (repo *assessmentRepository) CreateAssessment(ctx context.Context, asmt assessment.Assessment) (assessment.Assessment, error) {
	q := `INSERT INTO assessments (` + assessmentColumns + `)
		VALUES (:id, :course_id, :title, :description, :time_limit_minutes, :passing_score, :is_published, :due_at, :created_at, :updated_at)`
	row := newAssessmentRow(asmt)
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		if isForeignKeyViolation(err) {
			return assessment.Assessment{}, course.ErrNotFound
		}
		return assessment.Assessment{}, errors.Wrap(err, "inserting assessment")
	}
	return row.assessment(), nil
}

func (repo *assessmentRepository) GetAssessment(ctx context.Context, id string) (assessment.Assessment, error) {
	var row assessmentRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+assessmentColumns+" FROM assessments WHERE id = $1", id); err != nil {
		return assessment.Assessment{}, trapNoRowsErr(err, assessment.ErrNotFound, "finding assessment")
	}
	return row.assessment(), nil
}

func (repo *assessmentRepository) QueryAssessments(ctx context.Context, courseID string, publishedOnly bool) ([]assessment.Assessment, error) {
	where := new(whereClause)
	where.add("course_id = ?", courseID)
	if publishedOnly {
		where.add("is_published")
	}
	q := "SELECT " + assessmentColumns + " FROM assessments" + where.String() + " ORDER BY created_at"

	var rows []assessmentRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying assessments")
	}
	asmts := make([]assessment.Assessment, 0, len(rows))
	for _, row := range rows {
		asmts = append(asmts, row.assessment())
	}
	return asmts, nil
}

func (repo *assessmentRepository) UpdateAssessment(ctx context.Context, asmt assessment.Assessment) (assessment.Assessment, error) {
	q := `UPDATE assessments SET
		title = :title, description = :description, time_limit_minutes = :time_limit_minutes,
		passing_score = :passing_score, is_published = :is_published, due_at = :due_at, updated_at = :updated_at
		WHERE id = :id`
	row := newAssessmentRow(asmt)
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return assessment.Assessment{}, errors.Wrap(err, "updating assessment")
	}
	if err = affected(res, assessment.ErrNotFound, "updating assessment"); err != nil {
		return assessment.Assessment{}, err
	}
	return row.assessment(), nil
}

func (repo *assessmentRepository) DeleteAssessment(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM assessments WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting assessment")
	}
	return affected(res, assessment.ErrNotFound, "deleting assessment")
}

// Questions

func (repo *assessmentRepository) CreateQuestion(ctx context.Context, q assessment.Question) (assessment.Question, error) {
	stmt := `INSERT INTO questions (` + questionColumns + `)
		VALUES (:id, :assessment_id, :kind, :prompt, :options, :correct_answer, :points, :position)`
	row := newQuestionRow(q)
	if _, err := repo.db.NamedExecContext(ctx, stmt, row); err != nil {
		if isForeignKeyViolation(err) {
			return assessment.Question{}, assessment.ErrNotFound
		}
		return assessment.Question{}, errors.Wrap(err, "inserting question")
	}
	return row.question(), nil
}

func (repo *assessmentRepository) GetQuestion(ctx context.Context, id string) (assessment.Question, error) {
	var row questionRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+questionColumns+" FROM questions WHERE id = $1", id); err != nil {
		return assessment.Question{}, trapNoRowsErr(err, assessment.ErrQuestionNotFound, "finding question")
	}
	return row.question(), nil
}

func (repo *assessmentRepository) QueryQuestions(ctx context.Context, assessmentID string) ([]assessment.Question, error) {
	var rows []questionRow
	q := "SELECT " + questionColumns + " FROM questions WHERE assessment_id = $1 ORDER BY position, id"
	if err := repo.db.SelectContext(ctx, &rows, q, assessmentID); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	questions := make([]assessment.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, row.question())
	}
	return questions, nil
}

func (repo *assessmentRepository) UpdateQuestion(ctx context.Context, q assessment.Question) (assessment.Question, error) {
	stmt := `UPDATE questions SET
		prompt = :prompt, options = :options, correct_answer = :correct_answer, points = :points, position = :position
		WHERE id = :id`
	row := newQuestionRow(q)
	res, err := repo.db.NamedExecContext(ctx, stmt, row)
	if err != nil {
		return assessment.Question{}, errors.Wrap(err, "updating question")
	}
	if err = affected(res, assessment.ErrQuestionNotFound, "updating question"); err != nil {
		return assessment.Question{}, err
	}
	return row.question(), nil
}

func (repo *assessmentRepository) DeleteQuestion(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM questions WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return affected(res, assessment.ErrQuestionNotFound, "deleting question")
}

// Attempts

func (repo *assessmentRepository) CreateAttempt(ctx context.Context, att assessment.Attempt) (assessment.Attempt, error) {
	row, err := newAttemptRow(att)
	if err != nil {
		return assessment.Attempt{}, err
	}
	q := `INSERT INTO assessment_attempts (` + attemptColumns + `)
		VALUES (:id, :assessment_id, :student_id, :status, :answers, :started_at, :submitted_at)`
	if _, err = repo.db.NamedExecContext(ctx, q, row); err != nil {
		switch {
		case isUniqueViolation(err):
			return assessment.Attempt{}, assessment.ErrAttemptExists
		case isForeignKeyViolation(err):
			return assessment.Attempt{}, assessment.ErrNotFound
		}
		return assessment.Attempt{}, errors.Wrap(err, "inserting attempt")
	}
	return row.attempt()
}

func (repo *assessmentRepository) getAttempt(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (assessment.Attempt, error) {
	var row attemptRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		return assessment.Attempt{}, trapNoRowsErr(err, assessment.ErrAttemptNotFound, "finding attempt")
	}
	return row.attempt()
}

func (repo *assessmentRepository) GetAttempt(ctx context.Context, id string) (assessment.Attempt, error) {
	return repo.getAttempt(ctx, repo.db, "SELECT "+attemptColumns+" FROM assessment_attempts WHERE id = $1", id)
}

func (repo *assessmentRepository) GetStudentAttempt(ctx context.Context, assessmentID, studentID string) (assessment.Attempt, error) {
	q := "SELECT " + attemptColumns + " FROM assessment_attempts WHERE assessment_id = $1 AND student_id = $2"
	return repo.getAttempt(ctx, repo.db, q, assessmentID, studentID)
}

// finishedOrMissing tells apart an attempt that is gone from one that left the in_progress state.
func (repo *assessmentRepository) finishedOrMissing(ctx context.Context, q sqlx.QueryerContext, attemptID string) error {
	if _, err := repo.getAttempt(ctx, q, "SELECT "+attemptColumns+" FROM assessment_attempts WHERE id = $1", attemptID); err != nil {
		return err
	}
	return assessment.ErrAttemptFinished
}

func (repo *assessmentRepository) SaveAnswers(ctx context.Context, attemptID string, answers assessment.Answers) (assessment.Attempt, error) {
	if answers == nil {
		answers = assessment.Answers{}
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return assessment.Attempt{}, errors.Wrap(err, "encoding answers")
	}

	q := `UPDATE assessment_attempts SET answers = $1
		WHERE id = $2 AND status = $3
		RETURNING ` + attemptColumns
	att, err := repo.getAttempt(ctx, repo.db, q, types.JSONText(raw), attemptID, assessment.StatusInProgress)
	if errors.Cause(err) == assessment.ErrAttemptNotFound {
		return assessment.Attempt{}, repo.finishedOrMissing(ctx, repo.db, attemptID)
	}
	return att, err
}

func (repo *assessmentRepository) CompleteAttempt(ctx context.Context, attemptID string, finish func(att assessment.Attempt) (assessment.Attempt, assessment.Result)) (assessment.Result, error) {
	var res assessment.Result
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		// the row lock makes concurrent SaveAnswers wait, then find the attempt finished
		att, err := repo.getAttempt(ctx, tx, "SELECT "+attemptColumns+" FROM assessment_attempts WHERE id = $1 FOR UPDATE", attemptID)
		if err != nil {
			return err
		}
		if !att.InProgress() {
			return assessment.ErrAttemptFinished
		}

		att, res = finish(att)
		if _, err = tx.ExecContext(ctx,
			"UPDATE assessment_attempts SET status = $1, submitted_at = $2 WHERE id = $3",
			att.Status, null.TimeFromPtr(att.SubmittedAt), attemptID); err != nil {
			return errors.Wrap(err, "completing attempt")
		}

		q := `INSERT INTO assessment_results (` + resultColumns + `)
			VALUES (:id, :attempt_id, :assessment_id, :student_id, :score, :max_score, :percentage, :passed, :needs_review, :graded_at)`
		row := resultRow(res)
		row.GradedAt = row.GradedAt.UTC()
		if _, err = tx.NamedExecContext(ctx, q, row); err != nil {
			if isUniqueViolation(err) {
				return assessment.ErrAttemptFinished
			}
			return errors.Wrap(err, "inserting result")
		}
		return nil
	})
	if err != nil {
		return assessment.Result{}, err
	}
	return res, nil
}

func (repo *assessmentRepository) GetResultByAttempt(ctx context.Context, attemptID string) (assessment.Result, error) {
	var row resultRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+resultColumns+" FROM assessment_results WHERE attempt_id = $1", attemptID); err != nil {
		return assessment.Result{}, trapNoRowsErr(err, assessment.ErrResultNotFound, "finding result")
	}
	return assessment.Result(row), nil
}

func (repo *assessmentRepository) QueryResults(ctx context.Context, filter assessment.ResultFilter, ordering []core.DBOrdering) ([]assessment.Result, error) {
	where := new(whereClause)
	if filter.StudentID != "" {
		where.add("student_id = ?", filter.StudentID)
	}
	if filter.AssessmentID != "" {
		where.add("assessment_id = ?", filter.AssessmentID)
	}
	if filter.CourseID != "" {
		where.add("assessment_id IN (SELECT id FROM assessments WHERE course_id = ?)", filter.CourseID)
	}
	q := "SELECT " + resultColumns + " FROM assessment_results" + where.String() +
		" ORDER BY " + core.OrderingClause(ordering, "graded_at DESC")

	var rows []resultRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying results")
	}
	results := make([]assessment.Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, assessment.Result(row))
	}
	return results, nil
}
