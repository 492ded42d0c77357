package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assessment"
	"github.com/trezcool/darasa/core/course"
)

type assessmentRepository struct {
	db *DB
}

var _ assessment.Repository = (*assessmentRepository)(nil)

func NewAssessmentRepository(db *DB) assessment.Repository {
	return &assessmentRepository{db: db}
}

// Assessments

func (repo *assessmentRepository) CreateAssessment(_ context.Context, asmt assessment.Assessment) (assessment.Assessment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[asmt.CourseID]; !ok {
		return assessment.Assessment{}, course.ErrNotFound
	}
	repo.db.assessments[asmt.ID] = asmt
	return asmt, nil
}

func (repo *assessmentRepository) GetAssessment(_ context.Context, id string) (assessment.Assessment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if asmt, ok := repo.db.assessments[id]; ok {
		return asmt, nil
	}
	return assessment.Assessment{}, assessment.ErrNotFound
}

func (repo *assessmentRepository) QueryAssessments(_ context.Context, courseID string, publishedOnly bool) ([]assessment.Assessment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	asmts := make([]assessment.Assessment, 0)
	for _, asmt := range repo.db.assessments {
		if asmt.CourseID != courseID || (publishedOnly && !asmt.IsPublished) {
			continue
		}
		asmts = append(asmts, asmt)
	}
	sort.SliceStable(asmts, func(i, j int) bool { return asmts[i].CreatedAt.Before(asmts[j].CreatedAt) })
	return asmts, nil
}

func (repo *assessmentRepository) UpdateAssessment(_ context.Context, asmt assessment.Assessment) (assessment.Assessment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.assessments[asmt.ID]; !ok {
		return assessment.Assessment{}, assessment.ErrNotFound
	}
	repo.db.assessments[asmt.ID] = asmt
	return asmt, nil
}

func (repo *assessmentRepository) DeleteAssessment(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.assessments[id]; !ok {
		return assessment.ErrNotFound
	}
	repo.db.deleteAssessmentRows(id)
	return nil
}

// Questions

func (repo *assessmentRepository) CreateQuestion(_ context.Context, q assessment.Question) (assessment.Question, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.assessments[q.AssessmentID]; !ok {
		return assessment.Question{}, assessment.ErrNotFound
	}
	q.Options = copyStrings(q.Options)
	repo.db.questions[q.ID] = q
	return q, nil
}

func (repo *assessmentRepository) GetQuestion(_ context.Context, id string) (assessment.Question, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if q, ok := repo.db.questions[id]; ok {
		return q, nil
	}
	return assessment.Question{}, assessment.ErrQuestionNotFound
}

func (repo *assessmentRepository) QueryQuestions(_ context.Context, assessmentID string) ([]assessment.Question, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	questions := make([]assessment.Question, 0)
	for _, q := range repo.db.questions {
		if q.AssessmentID == assessmentID {
			q.Options = copyStrings(q.Options)
			questions = append(questions, q)
		}
	}
	sort.SliceStable(questions, func(i, j int) bool {
		if questions[i].Position == questions[j].Position {
			return questions[i].ID < questions[j].ID
		}
		return questions[i].Position < questions[j].Position
	})
	return questions, nil
}

func (repo *assessmentRepository) UpdateQuestion(_ context.Context, q assessment.Question) (assessment.Question, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.questions[q.ID]; !ok {
		return assessment.Question{}, assessment.ErrQuestionNotFound
	}
	q.Options = copyStrings(q.Options)
	repo.db.questions[q.ID] = q
	return q, nil
}

func (repo *assessmentRepository) DeleteQuestion(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.questions[id]; !ok {
		return assessment.ErrQuestionNotFound
	}
	delete(repo.db.questions, id)
	return nil
}

// Attempts

func copyAnswers(answers assessment.Answers) assessment.Answers {
	cp := make(assessment.Answers, len(answers))
	for k, v := range answers {
		cp[k] = v
	}
	return cp
}

func (repo *assessmentRepository) CreateAttempt(_ context.Context, att assessment.Attempt) (assessment.Attempt, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.assessments[att.AssessmentID]; !ok {
		return assessment.Attempt{}, assessment.ErrNotFound
	}
	for _, other := range repo.db.attempts {
		if other.AssessmentID == att.AssessmentID && other.StudentID == att.StudentID {
			return assessment.Attempt{}, assessment.ErrAttemptExists
		}
	}
	att.Answers = copyAnswers(att.Answers)
	repo.db.attempts[att.ID] = att
	return att, nil
}

func (repo *assessmentRepository) GetAttempt(_ context.Context, id string) (assessment.Attempt, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if att, ok := repo.db.attempts[id]; ok {
		att.Answers = copyAnswers(att.Answers)
		return att, nil
	}
	return assessment.Attempt{}, assessment.ErrAttemptNotFound
}

func (repo *assessmentRepository) GetStudentAttempt(_ context.Context, assessmentID, studentID string) (assessment.Attempt, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, att := range repo.db.attempts {
		if att.AssessmentID == assessmentID && att.StudentID == studentID {
			att.Answers = copyAnswers(att.Answers)
			return att, nil
		}
	}
	return assessment.Attempt{}, assessment.ErrAttemptNotFound
}

func (repo *assessmentRepository) SaveAnswers(_ context.Context, attemptID string, answers assessment.Answers) (assessment.Attempt, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	att, ok := repo.db.attempts[attemptID]
	if !ok {
		return assessment.Attempt{}, assessment.ErrAttemptNotFound
	}
	if !att.InProgress() {
		return assessment.Attempt{}, assessment.ErrAttemptFinished
	}
	att.Answers = copyAnswers(answers)
	repo.db.attempts[attemptID] = att
	return att, nil
}

func (repo *assessmentRepository) CompleteAttempt(_ context.Context, attemptID string, finish func(att assessment.Attempt) (assessment.Attempt, assessment.Result)) (assessment.Result, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	stored, ok := repo.db.attempts[attemptID]
	if !ok {
		return assessment.Result{}, assessment.ErrAttemptNotFound
	}
	if !stored.InProgress() {
		return assessment.Result{}, assessment.ErrAttemptFinished
	}
	stored.Answers = copyAnswers(stored.Answers)
	att, res := finish(stored)
	stored.Status = att.Status
	stored.SubmittedAt = att.SubmittedAt
	repo.db.attempts[attemptID] = stored
	repo.db.results[res.ID] = res
	return res, nil
}

func (repo *assessmentRepository) GetResultByAttempt(_ context.Context, attemptID string) (assessment.Result, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, res := range repo.db.results {
		if res.AttemptID == attemptID {
			return res, nil
		}
	}
	return assessment.Result{}, assessment.ErrResultNotFound
}

func (repo *assessmentRepository) QueryResults(_ context.Context, filter assessment.ResultFilter, ordering []core.DBOrdering) ([]assessment.Result, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	results := make([]assessment.Result, 0)
	for _, res := range repo.db.results {
		if filter.StudentID != "" && res.StudentID != filter.StudentID {
			continue
		}
		if filter.AssessmentID != "" && res.AssessmentID != filter.AssessmentID {
			continue
		}
		if filter.CourseID != "" {
			if asmt, ok := repo.db.assessments[res.AssessmentID]; !ok || asmt.CourseID != filter.CourseID {
				continue
			}
		}
		results = append(results, res)
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "graded_at"}}
	}
	sort.SliceStable(results, func(i, j int) bool {
		for _, ord := range ordering {
			var c int
			switch ord.Field {
			case "graded_at":
				c = compareTimes(results[i].GradedAt, results[j].GradedAt)
			case "score":
				c = results[i].Score - results[j].Score
			case "percentage":
				c = compareFloats(results[i].Percentage, results[j].Percentage)
			}
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
	return results, nil
}
