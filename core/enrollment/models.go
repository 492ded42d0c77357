package enrollment

import "time"

const (
	MinProgress = 0
	MaxProgress = 100
)

type Enrollment struct {
	ID          string     `json:"id"`
	StudentID   string     `json:"student_id"`
	CourseID    string     `json:"course_id"`
	Progress    int        `json:"progress"`
	EnrolledAt  time.Time  `json:"enrolled_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (e Enrollment) Completed() bool { return e.CompletedAt != nil }

// SetProgress clamps progress to [0, 100] and stamps CompletedAt the first time 100 is reached.
// A completed enrollment stays completed even if its progress is lowered afterwards.
func (e *Enrollment) SetProgress(progress int, now time.Time) {
	switch {
	case progress < MinProgress:
		progress = MinProgress
	case progress > MaxProgress:
		progress = MaxProgress
	}
	e.Progress = progress
	if progress == MaxProgress && e.CompletedAt == nil {
		at := now.UTC()
		e.CompletedAt = &at
	}
}

type UpdateProgress struct {
	Progress *int `json:"progress" validate:"required"`
}

type QueryFilter struct {
	StudentID string
	CourseID  string
}
