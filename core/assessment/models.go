package assessment

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// Question kinds
const (
	KindMultipleChoice = "multiple_choice"
	KindTrueFalse      = "true_false"
	KindShortAnswer    = "short_answer"
	KindCode           = "code"
)

// Attempt statuses
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusExpired    = "expired"
)

var (
	QuestionKinds = []string{KindMultipleChoice, KindTrueFalse, KindShortAnswer, KindCode}

	qkindTag  = "qkind"
	qkindText = "kind must be one of multiple_choice, true_false, short_answer or code"

	answerOptionTag  = "answeroption"
	answerOptionText = "correct answer must be one of the options"

	minOptionsTag  = "minoptions"
	minOptionsText = "multiple choice questions need at least 2 options"

	trueFalseTag  = "truefalse"
	trueFalseText = "correct answer must be true or false"

	answerRequiredTag = "answerrequired"
	answerRequired    = "correct answer is required"

	trueFalseOptions = []string{"true", "false"}

	// ResultOrderingFields are the fields results can be ordered by.
	ResultOrderingFields = []string{"graded_at", "score", "percentage"}
)

type Assessment struct {
	ID               string     `json:"id"`
	CourseID         string     `json:"course_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	TimeLimitMinutes int        `json:"time_limit_minutes"`
	PassingScore     float64    `json:"passing_score"`
	IsPublished      bool       `json:"is_published"`
	DueAt            *time.Time `json:"due_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Closed reports whether the assessment is past its due date.
func (a Assessment) Closed(now time.Time) bool {
	return a.DueAt != nil && now.After(*a.DueAt)
}

type Question struct {
	ID            string   `json:"id"`
	AssessmentID  string   `json:"assessment_id"`
	Kind          string   `json:"kind"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
	Points        int      `json:"points"`
	Position      int      `json:"position"`
}

// Answers maps question IDs to the student's answers.
type Answers map[string]string

type Attempt struct {
	ID           string     `json:"id"`
	AssessmentID string     `json:"assessment_id"`
	StudentID    string     `json:"student_id"`
	Status       string     `json:"status"`
	Answers      Answers    `json:"answers"`
	StartedAt    time.Time  `json:"started_at"`
	SubmittedAt  *time.Time `json:"submitted_at"`
}

func (a Attempt) InProgress() bool { return a.Status == StatusInProgress }

// Deadline returns when the attempt's time runs out; zero when there is no time limit.
func (a Attempt) Deadline(asmt Assessment) time.Time {
	if asmt.TimeLimitMinutes <= 0 {
		return time.Time{}
	}
	return a.StartedAt.Add(time.Duration(asmt.TimeLimitMinutes) * time.Minute)
}

// TimedOut reports whether now is past the attempt's deadline.
func (a Attempt) TimedOut(asmt Assessment, now time.Time) bool {
	deadline := a.Deadline(asmt)
	return !deadline.IsZero() && now.After(deadline)
}

type Result struct {
	ID           string    `json:"id"`
	AttemptID    string    `json:"attempt_id"`
	AssessmentID string    `json:"assessment_id"`
	StudentID    string    `json:"student_id"`
	Score        int       `json:"score"`
	MaxScore     int       `json:"max_score"`
	Percentage   float64   `json:"percentage"`
	Passed       bool      `json:"passed"`
	NeedsReview  bool      `json:"needs_review"`
	GradedAt     time.Time `json:"graded_at"`
}

type NewAssessment struct {
	Title            string     `json:"title" validate:"required,max=200"`
	Description      string     `json:"description"`
	TimeLimitMinutes int        `json:"time_limit_minutes" validate:"min=0"`
	PassingScore     float64    `json:"passing_score" validate:"min=0,max=100"`
	IsPublished      bool       `json:"is_published"`
	DueAt            *time.Time `json:"due_at"`
}

func (na *NewAssessment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	return validate.Struct(na)
}

type UpdateAssessment struct {
	Title            *string    `json:"title" validate:"omitempty,notblank,max=200"`
	Description      *string    `json:"description"`
	TimeLimitMinutes *int       `json:"time_limit_minutes" validate:"omitempty,min=0"`
	PassingScore     *float64   `json:"passing_score" validate:"omitempty,min=0,max=100"`
	IsPublished      *bool      `json:"is_published"`
	DueAt            *time.Time `json:"due_at"`
	ClearDueAt       bool       `json:"clear_due_at"`
}

func (ua *UpdateAssessment) Validate(validate *validator.Validate) error {
	if ua.Title != nil {
		*ua.Title = core.CleanString(*ua.Title)
	}
	return validate.Struct(ua)
}

type NewQuestion struct {
	Kind          string   `json:"kind" validate:"required,qkind"`
	Prompt        string   `json:"prompt" validate:"required"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Points        *int     `json:"points" validate:"omitempty,min=0"`
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Kind = core.CleanString(nq.Kind, true /* lower */)
	nq.Prompt = core.CleanString(nq.Prompt)
	nq.CorrectAnswer = core.CleanString(nq.CorrectAnswer)
	options := make([]string, 0, len(nq.Options))
	for _, opt := range nq.Options {
		if opt = core.CleanString(opt); opt != "" {
			options = append(options, opt)
		}
	}
	nq.Options = options
	if nq.Kind == KindTrueFalse {
		nq.Options = append([]string(nil), trueFalseOptions...)
		nq.CorrectAnswer = core.CleanString(nq.CorrectAnswer, true /* lower */)
	}
	return validate.Struct(nq)
}

func (nq NewQuestion) points() int {
	if nq.Points == nil {
		return 1
	}
	return *nq.Points
}

type UpdateQuestion struct {
	Prompt        *string  `json:"prompt" validate:"omitempty,notblank"`
	Options       []string `json:"options"`
	CorrectAnswer *string  `json:"correct_answer"`
	Points        *int     `json:"points" validate:"omitempty,min=0"`
	Position      *int     `json:"position" validate:"omitempty,min=1"`
}

type SaveAnswers struct {
	Answers Answers `json:"answers" validate:"required"`
}

type ResultFilter struct {
	StudentID    string
	AssessmentID string
	CourseID     string
}

// InitValidators registers the assessment validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterOneOf(validate, translator, qkindTag, qkindText, QuestionKinds...)

	validate.RegisterStructValidation(questionStructValidation, NewQuestion{})
	core.RegisterCustomTranslation(validate, translator, answerOptionTag, answerOptionText)
	core.RegisterCustomTranslation(validate, translator, minOptionsTag, minOptionsText)
	core.RegisterCustomTranslation(validate, translator, trueFalseTag, trueFalseText)
	core.RegisterCustomTranslation(validate, translator, answerRequiredTag, answerRequired)
}

// questionStructValidation checks answers against the question kind.
func questionStructValidation(sl validator.StructLevel) {
	nq, ok := sl.Current().Interface().(NewQuestion)
	if !ok {
		return
	}
	checkQuestion(nq.Kind, nq.Options, nq.CorrectAnswer, func(field string, value interface{}, tag string) {
		sl.ReportError(value, field, field, tag, "")
	})
}

func checkQuestion(kind string, options []string, answer string, report func(field string, value interface{}, tag string)) {
	switch kind {
	case KindMultipleChoice:
		if len(options) < 2 {
			report("options", options, minOptionsTag)
			return
		}
		if !containsFold(options, answer) {
			report("correct_answer", answer, answerOptionTag)
		}
	case KindTrueFalse:
		if !core.StringInSlice(answer, trueFalseOptions) {
			report("correct_answer", answer, trueFalseTag)
		}
	case KindShortAnswer:
		if answer == "" {
			report("correct_answer", answer, answerRequiredTag)
		}
	}
}
