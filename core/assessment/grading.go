package assessment

import (
	"math"
	"strings"
)

// Grade is the outcome of auto-grading an attempt.
type Grade struct {
	Score       int
	MaxScore    int
	NeedsReview bool
}

// Percentage is Score over MaxScore, in [0, 100], rounded to 2 decimals; 0 when MaxScore is 0.
func (g Grade) Percentage() float64 {
	if g.MaxScore <= 0 {
		return 0
	}
	pct := float64(g.Score) / float64(g.MaxScore) * 100
	return math.Round(pct*100) / 100
}

// Passed reports whether the grade reaches passingScore (a percentage).
func (g Grade) Passed(passingScore float64) bool {
	return g.Percentage() >= passingScore
}

// GradeAnswers auto-grades answers against questions.
// Code questions can't be graded automatically: they score 0 and flag the grade for review.
func GradeAnswers(questions []Question, answers Answers) Grade {
	var g Grade
	for _, q := range questions {
		g.MaxScore += q.Points
		if q.Kind == KindCode {
			g.NeedsReview = true
			continue
		}
		answer, ok := answers[q.ID]
		if ok && answersMatch(answer, q.CorrectAnswer) {
			g.Score += q.Points
		}
	}
	return g
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func answersMatch(given, correct string) bool {
	given = normalizeAnswer(given)
	return given != "" && given == normalizeAnswer(correct)
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if answersMatch(item, s) {
			return true
		}
	}
	return false
}
