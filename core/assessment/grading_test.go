package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGradeAnswers(t *testing.T) {
	mc := Question{ID: "q1", Kind: KindMultipleChoice, Options: []string{"Go", "Rust"}, CorrectAnswer: "Go", Points: 2}
	tf := Question{ID: "q2", Kind: KindTrueFalse, Options: trueFalseOptions, CorrectAnswer: "true", Points: 1}
	sa := Question{ID: "q3", Kind: KindShortAnswer, CorrectAnswer: "goroutine", Points: 3}
	code := Question{ID: "q4", Kind: KindCode, Points: 4}

	tests := []struct {
		name      string
		questions []Question
		answers   Answers
		want      Grade
		wantPct   float64
	}{
		{name: "no questions", want: Grade{}, wantPct: 0},
		{
			name:      "all correct",
			questions: []Question{mc, tf, sa},
			answers:   Answers{"q1": "Go", "q2": "true", "q3": "goroutine"},
			want:      Grade{Score: 6, MaxScore: 6},
			wantPct:   100,
		},
		{
			name:      "case & whitespace insensitive",
			questions: []Question{mc, tf, sa},
			answers:   Answers{"q1": "  go ", "q2": "TRUE", "q3": "GoRoutine\n"},
			want:      Grade{Score: 6, MaxScore: 6},
			wantPct:   100,
		},
		{
			name:      "unanswered & wrong",
			questions: []Question{mc, tf, sa},
			answers:   Answers{"q1": "Rust"},
			want:      Grade{Score: 0, MaxScore: 6},
			wantPct:   0,
		},
		{
			name:      "blank answer never matches",
			questions: []Question{{ID: "q5", Kind: KindShortAnswer, CorrectAnswer: "", Points: 1}},
			answers:   Answers{"q5": "   "},
			want:      Grade{Score: 0, MaxScore: 1},
			wantPct:   0,
		},
		{
			name:      "code needs review",
			questions: []Question{mc, code},
			answers:   Answers{"q1": "Go", "q4": "func main() {}"},
			want:      Grade{Score: 2, MaxScore: 6, NeedsReview: true},
			wantPct:   33.33,
		},
		{
			name:      "zero points",
			questions: []Question{{ID: "q6", Kind: KindTrueFalse, CorrectAnswer: "false", Points: 0}},
			answers:   Answers{"q6": "false"},
			want:      Grade{},
			wantPct:   0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GradeAnswers(tt.questions, tt.answers)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantPct, got.Percentage())
		})
	}
}

func TestGrade_Passed(t *testing.T) {
	tests := []struct {
		name    string
		grade   Grade
		passing float64
		want    bool
	}{
		{name: "exactly passing", grade: Grade{Score: 7, MaxScore: 10}, passing: 70, want: true},
		{name: "below", grade: Grade{Score: 6, MaxScore: 10}, passing: 70},
		{name: "zero passing score", grade: Grade{}, passing: 0, want: true},
		{name: "empty grade", grade: Grade{}, passing: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.grade.Passed(tt.passing))
		})
	}
}
