package assessment

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
)

const (
	resultsEventTable  = "assessment_results"
	attemptsEventTable = "assessment_attempts"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("assessment")
	ErrQuestionNotFound = core.NewNotFoundError("question")
	ErrAttemptNotFound  = core.NewNotFoundError("attempt")
	ErrResultNotFound   = core.NewNotFoundError("result")
	ErrAttemptExists    = core.NewConflictError("an attempt for this assessment was already submitted")
	ErrAttemptFinished  = core.NewConflictError("attempt is no longer in progress")
	ErrTimeExpired      = core.NewConflictError("time limit exceeded")
	ErrClosed           = errors.New("assessment is closed")
	ErrNotEnrolled      = errors.New("enroll in the course first")
	ErrUnknownQuestion  = errors.New("unknown question")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateAssessment(ctx context.Context, asmt Assessment) (Assessment, error)
		GetAssessment(ctx context.Context, id string) (Assessment, error)
		QueryAssessments(ctx context.Context, courseID string, publishedOnly bool) ([]Assessment, error)
		UpdateAssessment(ctx context.Context, asmt Assessment) (Assessment, error)
		DeleteAssessment(ctx context.Context, id string) error

		CreateQuestion(ctx context.Context, q Question) (Question, error)
		GetQuestion(ctx context.Context, id string) (Question, error)
		// QueryQuestions lists an assessment's questions ordered by position.
		QueryQuestions(ctx context.Context, assessmentID string) ([]Question, error)
		UpdateQuestion(ctx context.Context, q Question) (Question, error)
		DeleteQuestion(ctx context.Context, id string) error

		// CreateAttempt returns ErrAttemptExists if the student already has an attempt for the assessment.
		CreateAttempt(ctx context.Context, att Attempt) (Attempt, error)
		GetAttempt(ctx context.Context, id string) (Attempt, error)
		GetStudentAttempt(ctx context.Context, assessmentID, studentID string) (Attempt, error)
		// SaveAnswers replaces the answers of an in-progress attempt; ErrAttemptFinished otherwise.
		SaveAnswers(ctx context.Context, attemptID string, answers Answers) (Attempt, error)
		// CompleteAttempt locks the attempt, builds its final state and result with finish from
		// the locked row, then stores both in one transaction.
		// It returns ErrAttemptFinished if the attempt was no longer in progress.
		CompleteAttempt(ctx context.Context, attemptID string, finish func(att Attempt) (Attempt, Result)) (Result, error)
		GetResultByAttempt(ctx context.Context, attemptID string) (Result, error)
		QueryResults(ctx context.Context, filter ResultFilter, ordering []core.DBOrdering) ([]Result, error)
	}

	EnrollmentChecker interface {
		IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service interface {
		CreateAssessment(ctx context.Context, actor core.Actor, courseID string, na NewAssessment) (Assessment, error)
		GetAssessment(ctx context.Context, actor core.Actor, id string) (Assessment, error)
		ListAssessments(ctx context.Context, actor core.Actor, courseID string) ([]Assessment, error)
		UpdateAssessment(ctx context.Context, actor core.Actor, id string, ua UpdateAssessment) (Assessment, error)
		DeleteAssessment(ctx context.Context, actor core.Actor, id string) error

		AddQuestion(ctx context.Context, actor core.Actor, assessmentID string, nq NewQuestion) (Question, error)
		// ListQuestions hides correct answers from anyone who can't manage the assessment.
		ListQuestions(ctx context.Context, actor core.Actor, assessmentID string) ([]Question, error)
		UpdateQuestion(ctx context.Context, actor core.Actor, id string, uq UpdateQuestion) (Question, error)
		DeleteQuestion(ctx context.Context, actor core.Actor, id string) error

		StartAttempt(ctx context.Context, actor core.Actor, assessmentID string) (Attempt, error)
		GetAttempt(ctx context.Context, actor core.Actor, id string) (Attempt, error)
		SaveAnswers(ctx context.Context, actor core.Actor, attemptID string, answers Answers) (Attempt, error)
		CompleteAttempt(ctx context.Context, actor core.Actor, attemptID string) (Result, error)
		GetResult(ctx context.Context, actor core.Actor, attemptID string) (Result, error)
		ListResults(ctx context.Context, actor core.Actor, filter ResultFilter, ordering []core.DBOrdering) ([]Result, error)
	}

	service struct {
		repo        Repository
		courses     course.Service
		enrollments EnrollmentChecker
		users       UserGetter
		mailSvc     core.EmailService
		events      core.EventPublisher
		logger      core.Logger
	}

	resultMailData struct {
		Name            string
		AssessmentTitle string
		Score           int
		MaxScore        int
		Percentage      float64
		Passed          bool
		NeedsReview     bool
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	courses course.Service,
	enrollments EnrollmentChecker,
	users UserGetter,
	mailSvc core.EmailService,
	events core.EventPublisher,
	logger core.Logger,
) Service {
	return &service{
		repo:        repo,
		courses:     courses,
		enrollments: enrollments,
		users:       users,
		mailSvc:     mailSvc,
		events:      events,
		logger:      logger,
	}
}

func (svc *service) publish(ctx context.Context, table, typ string, record interface{}, userIDs ...string) {
	if err := svc.events.Publish(ctx, core.NewEvent(table, typ, record, userIDs...)); err != nil {
		svc.logger.Warn("publishing assessment event", errors.Wrap(err, "publishing event"))
	}
}

// access loads an assessment with its course, checking that actor may see it.
// Course managers see everything; others need a published assessment in a course they're enrolled in.
func (svc *service) access(ctx context.Context, actor core.Actor, id string) (Assessment, course.Course, bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Assessment{}, course.Course{}, false, ErrNotFound
	}
	asmt, err := svc.repo.GetAssessment(ctx, id)
	if err != nil {
		return Assessment{}, course.Course{}, false, err
	}
	crs, err := svc.courses.Get(ctx, actor, asmt.CourseID)
	if err != nil {
		if core.IsNotFound(err) {
			return Assessment{}, course.Course{}, false, ErrNotFound
		}
		return Assessment{}, course.Course{}, false, err
	}
	if actor.CanManage(crs.InstructorID) {
		return asmt, crs, true, nil
	}
	if !asmt.IsPublished {
		return Assessment{}, course.Course{}, false, ErrNotFound
	}
	enrolled, err := svc.enrollments.IsEnrolled(ctx, actor.ID, crs.ID)
	if err != nil {
		return Assessment{}, course.Course{}, false, errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return Assessment{}, course.Course{}, false, core.ErrForbidden
	}
	return asmt, crs, false, nil
}

func (svc *service) getManaged(ctx context.Context, actor core.Actor, id string) (Assessment, error) {
	asmt, _, managed, err := svc.access(ctx, actor, id)
	if err != nil {
		return Assessment{}, err
	}
	if !managed {
		return Assessment{}, core.ErrForbidden
	}
	return asmt, nil
}

// Assessments

func (svc *service) CreateAssessment(ctx context.Context, actor core.Actor, courseID string, na NewAssessment) (Assessment, error) {
	crs, err := svc.courses.GetManaged(ctx, actor, courseID)
	if err != nil {
		return Assessment{}, err
	}
	now := nowFunc().UTC()
	asmt, err := svc.repo.CreateAssessment(ctx, Assessment{
		ID:               uuid.NewString(),
		CourseID:         crs.ID,
		Title:            na.Title,
		Description:      na.Description,
		TimeLimitMinutes: na.TimeLimitMinutes,
		PassingScore:     na.PassingScore,
		IsPublished:      na.IsPublished,
		DueAt:            utcPtr(na.DueAt),
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	return asmt, errors.Wrap(err, "creating assessment")
}

func (svc *service) GetAssessment(ctx context.Context, actor core.Actor, id string) (Assessment, error) {
	asmt, _, _, err := svc.access(ctx, actor, id)
	return asmt, err
}

func (svc *service) ListAssessments(ctx context.Context, actor core.Actor, courseID string) ([]Assessment, error) {
	crs, err := svc.courses.Get(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	if actor.CanManage(crs.InstructorID) {
		return svc.repo.QueryAssessments(ctx, crs.ID, false)
	}
	enrolled, err := svc.enrollments.IsEnrolled(ctx, actor.ID, crs.ID)
	if err != nil {
		return nil, errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return nil, core.ErrForbidden
	}
	return svc.repo.QueryAssessments(ctx, crs.ID, true)
}

func (svc *service) UpdateAssessment(ctx context.Context, actor core.Actor, id string, ua UpdateAssessment) (Assessment, error) {
	asmt, err := svc.getManaged(ctx, actor, id)
	if err != nil {
		return Assessment{}, err
	}
	if ua.Title != nil {
		asmt.Title = *ua.Title
	}
	if ua.Description != nil {
		asmt.Description = core.CleanString(*ua.Description)
	}
	if ua.TimeLimitMinutes != nil {
		asmt.TimeLimitMinutes = *ua.TimeLimitMinutes
	}
	if ua.PassingScore != nil {
		asmt.PassingScore = *ua.PassingScore
	}
	if ua.IsPublished != nil {
		asmt.IsPublished = *ua.IsPublished
	}
	if ua.ClearDueAt {
		asmt.DueAt = nil
	} else if ua.DueAt != nil {
		asmt.DueAt = utcPtr(ua.DueAt)
	}
	asmt.UpdatedAt = nowFunc().UTC()

	asmt, err = svc.repo.UpdateAssessment(ctx, asmt)
	return asmt, errors.Wrap(err, "updating assessment")
}

func (svc *service) DeleteAssessment(ctx context.Context, actor core.Actor, id string) error {
	asmt, err := svc.getManaged(ctx, actor, id)
	if err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteAssessment(ctx, asmt.ID), "deleting assessment")
}

// Questions

func (svc *service) AddQuestion(ctx context.Context, actor core.Actor, assessmentID string, nq NewQuestion) (Question, error) {
	asmt, err := svc.getManaged(ctx, actor, assessmentID)
	if err != nil {
		return Question{}, err
	}
	questions, err := svc.repo.QueryQuestions(ctx, asmt.ID)
	if err != nil {
		return Question{}, errors.Wrap(err, "querying questions")
	}

	q, err := svc.repo.CreateQuestion(ctx, Question{
		ID:            uuid.NewString(),
		AssessmentID:  asmt.ID,
		Kind:          nq.Kind,
		Prompt:        nq.Prompt,
		Options:       nq.Options,
		CorrectAnswer: nq.CorrectAnswer,
		Points:        nq.points(),
		Position:      len(questions) + 1,
	})
	return q, errors.Wrap(err, "creating question")
}

func (svc *service) ListQuestions(ctx context.Context, actor core.Actor, assessmentID string) ([]Question, error) {
	asmt, _, managed, err := svc.access(ctx, actor, assessmentID)
	if err != nil {
		return nil, err
	}
	questions, err := svc.repo.QueryQuestions(ctx, asmt.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	if !managed {
		for i := range questions {
			questions[i].CorrectAnswer = ""
		}
	}
	return questions, nil
}

func (svc *service) getManagedQuestion(ctx context.Context, actor core.Actor, id string) (Question, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Question{}, ErrQuestionNotFound
	}
	q, err := svc.repo.GetQuestion(ctx, id)
	if err != nil {
		return Question{}, err
	}
	if _, err := svc.getManaged(ctx, actor, q.AssessmentID); err != nil {
		return Question{}, err
	}
	return q, nil
}

func (svc *service) UpdateQuestion(ctx context.Context, actor core.Actor, id string, uq UpdateQuestion) (Question, error) {
	q, err := svc.getManagedQuestion(ctx, actor, id)
	if err != nil {
		return Question{}, err
	}
	if uq.Prompt != nil {
		q.Prompt = core.CleanString(*uq.Prompt)
	}
	if uq.Options != nil && q.Kind != KindTrueFalse {
		q.Options = uq.Options
	}
	if uq.CorrectAnswer != nil {
		q.CorrectAnswer = core.CleanString(*uq.CorrectAnswer)
		if q.Kind == KindTrueFalse {
			q.CorrectAnswer = core.CleanString(q.CorrectAnswer, true /* lower */)
		}
	}
	if uq.Points != nil {
		q.Points = *uq.Points
	}
	if uq.Position != nil {
		q.Position = *uq.Position
	}

	var fldErrs []core.FieldError
	checkQuestion(q.Kind, q.Options, q.CorrectAnswer, func(field string, _ interface{}, tag string) {
		fldErrs = append(fldErrs, core.FieldError{Field: field, Error: questionErrorTexts[tag]})
	})
	if len(fldErrs) > 0 {
		return Question{}, core.NewValidationError(nil, fldErrs...)
	}

	q, err = svc.repo.UpdateQuestion(ctx, q)
	return q, errors.Wrap(err, "updating question")
}

func (svc *service) DeleteQuestion(ctx context.Context, actor core.Actor, id string) error {
	q, err := svc.getManagedQuestion(ctx, actor, id)
	if err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteQuestion(ctx, q.ID), "deleting question")
}

// Attempts

func (svc *service) StartAttempt(ctx context.Context, actor core.Actor, assessmentID string) (Attempt, error) {
	if actor.IsAnonymous() {
		return Attempt{}, core.ErrForbidden
	}
	asmt, crs, _, err := svc.access(ctx, actor, assessmentID)
	if err != nil {
		return Attempt{}, err
	}

	// the one attempt per student: resume it while it's running
	att, err := svc.repo.GetStudentAttempt(ctx, asmt.ID, actor.ID)
	switch {
	case err == nil:
		if att.InProgress() {
			return att, nil
		}
		return Attempt{}, ErrAttemptExists
	case !core.IsNotFound(err):
		return Attempt{}, errors.Wrap(err, "finding attempt")
	}

	// managers may preview drafts, but only enrolled students take assessments
	if !asmt.IsPublished {
		return Attempt{}, core.NewValidationError(ErrClosed)
	}
	enrolled, err := svc.enrollments.IsEnrolled(ctx, actor.ID, crs.ID)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return Attempt{}, core.NewValidationError(ErrNotEnrolled)
	}
	now := nowFunc().UTC()
	if asmt.Closed(now) {
		return Attempt{}, core.NewValidationError(ErrClosed)
	}

	att, err = svc.repo.CreateAttempt(ctx, Attempt{
		ID:           uuid.NewString(),
		AssessmentID: asmt.ID,
		StudentID:    actor.ID,
		Status:       StatusInProgress,
		Answers:      Answers{},
		StartedAt:    now,
	})
	if err != nil {
		if errors.Cause(err) == ErrAttemptExists {
			// lost a race against another start: resume the winner
			return svc.repo.GetStudentAttempt(ctx, asmt.ID, actor.ID)
		}
		return Attempt{}, errors.Wrap(err, "creating attempt")
	}
	svc.publish(ctx, attemptsEventTable, core.EventInsert, att, att.StudentID, crs.InstructorID)
	return att, nil
}

// ownAttempt loads an attempt; its student and the course managers may see it.
func (svc *service) ownAttempt(ctx context.Context, actor core.Actor, id string) (Attempt, Assessment, course.Course, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Attempt{}, Assessment{}, course.Course{}, ErrAttemptNotFound
	}
	att, err := svc.repo.GetAttempt(ctx, id)
	if err != nil {
		return Attempt{}, Assessment{}, course.Course{}, err
	}
	asmt, err := svc.repo.GetAssessment(ctx, att.AssessmentID)
	if err != nil {
		return Attempt{}, Assessment{}, course.Course{}, errors.Wrap(err, "finding assessment")
	}
	if att.StudentID == actor.ID {
		return att, asmt, course.Course{}, nil
	}
	crs, err := svc.courses.GetManaged(ctx, actor, asmt.CourseID)
	if err != nil {
		return Attempt{}, Assessment{}, course.Course{}, ErrAttemptNotFound
	}
	return att, asmt, crs, nil
}

func (svc *service) GetAttempt(ctx context.Context, actor core.Actor, id string) (Attempt, error) {
	att, _, _, err := svc.ownAttempt(ctx, actor, id)
	return att, err
}

func (svc *service) SaveAnswers(ctx context.Context, actor core.Actor, attemptID string, answers Answers) (Attempt, error) {
	att, asmt, _, err := svc.ownAttempt(ctx, actor, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if att.StudentID != actor.ID {
		return Attempt{}, core.ErrForbidden
	}
	if !att.InProgress() {
		return Attempt{}, ErrAttemptFinished
	}
	if att.TimedOut(asmt, nowFunc()) {
		return Attempt{}, ErrTimeExpired
	}

	questions, err := svc.repo.QueryQuestions(ctx, asmt.ID)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "querying questions")
	}
	known := make(map[string]bool, len(questions))
	for _, q := range questions {
		known[q.ID] = true
	}

	merged := make(Answers, len(att.Answers)+len(answers))
	for qID, ans := range att.Answers {
		merged[qID] = ans
	}
	for qID, ans := range answers {
		if !known[qID] {
			return Attempt{}, core.NewValidationError(nil, core.FieldError{Field: "answers", Error: ErrUnknownQuestion.Error() + ": " + qID})
		}
		merged[qID] = ans
	}

	att, err = svc.repo.SaveAnswers(ctx, att.ID, merged)
	if err != nil {
		if errors.Cause(err) == ErrAttemptFinished {
			return Attempt{}, ErrAttemptFinished
		}
		return Attempt{}, errors.Wrap(err, "saving answers")
	}
	return att, nil
}

func (svc *service) CompleteAttempt(ctx context.Context, actor core.Actor, attemptID string) (Result, error) {
	att, asmt, _, err := svc.ownAttempt(ctx, actor, attemptID)
	if err != nil {
		return Result{}, err
	}
	if att.StudentID != actor.ID {
		return Result{}, core.ErrForbidden
	}
	if !att.InProgress() {
		return svc.repo.GetResultByAttempt(ctx, att.ID)
	}

	questions, err := svc.repo.QueryQuestions(ctx, asmt.ID)
	if err != nil {
		return Result{}, errors.Wrap(err, "querying questions")
	}

	now := nowFunc().UTC()
	// grade the answers as stored when the attempt is locked, not as read above
	res, err := svc.repo.CompleteAttempt(ctx, att.ID, func(locked Attempt) (Attempt, Result) {
		locked.Status = StatusCompleted
		if locked.TimedOut(asmt, now) {
			locked.Status = StatusExpired
		}
		locked.SubmittedAt = &now

		grade := GradeAnswers(questions, locked.Answers)
		return locked, Result{
			ID:           uuid.NewString(),
			AttemptID:    locked.ID,
			AssessmentID: asmt.ID,
			StudentID:    locked.StudentID,
			Score:        grade.Score,
			MaxScore:     grade.MaxScore,
			Percentage:   grade.Percentage(),
			Passed:       grade.Passed(asmt.PassingScore),
			NeedsReview:  grade.NeedsReview,
			GradedAt:     now,
		}
	})
	if err != nil {
		if errors.Cause(err) == ErrAttemptFinished {
			// completed concurrently: hand back what was stored
			return svc.repo.GetResultByAttempt(ctx, att.ID)
		}
		return Result{}, errors.Wrap(err, "completing attempt")
	}

	svc.publish(ctx, resultsEventTable, core.EventInsert, res, res.StudentID)
	svc.sendResultMail(ctx, asmt, res)
	return res, nil
}

func (svc *service) GetResult(ctx context.Context, actor core.Actor, attemptID string) (Result, error) {
	att, _, _, err := svc.ownAttempt(ctx, actor, attemptID)
	if err != nil {
		return Result{}, err
	}
	return svc.repo.GetResultByAttempt(ctx, att.ID)
}

func (svc *service) ListResults(ctx context.Context, actor core.Actor, filter ResultFilter, ordering []core.DBOrdering) ([]Result, error) {
	if actor.IsAnonymous() {
		return nil, core.ErrForbidden
	}
	if !actor.IsAdmin() && filter.StudentID != actor.ID {
		managed := false
		switch {
		case filter.AssessmentID != "":
			_, err := svc.getManaged(ctx, actor, filter.AssessmentID)
			managed = err == nil
		case filter.CourseID != "":
			_, err := svc.courses.GetManaged(ctx, actor, filter.CourseID)
			managed = err == nil
		}
		if !managed {
			// everyone else only sees their own results
			filter.StudentID = actor.ID
		}
	}
	return svc.repo.QueryResults(ctx, filter, ordering)
}

func (svc *service) sendResultMail(ctx context.Context, asmt Assessment, res Result) {
	usr, err := svc.users.GetByID(ctx, res.StudentID)
	if err != nil {
		svc.logger.Warn("finding graded student", errors.Wrap(err, "finding user by ID"))
		return
	}
	if usr.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Your result for " + asmt.Title,
		TemplateName: "assessment_result",
		TemplateData: resultMailData{
			Name:            usr.Name,
			AssessmentTitle: asmt.Title,
			Score:           res.Score,
			MaxScore:        res.MaxScore,
			Percentage:      res.Percentage,
			Passed:          res.Passed,
			NeedsReview:     res.NeedsReview,
		},
	})
}

var questionErrorTexts = map[string]string{
	answerOptionTag:   answerOptionText,
	minOptionsTag:     minOptionsText,
	trueFalseTag:      trueFalseText,
	answerRequiredTag: answerRequired,
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
