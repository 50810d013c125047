package exams

import (
	"math"
	"time"

	"vmxio.com/skillforge/internal/models"
)

type GradedAnswer struct {
	QuestionID uint
	Selected   *int
	IsCorrect  bool
	TimeSpent  int
}

type Grading struct {
	Answers      []GradedAnswer
	Correct      int
	EarnedPoints int
	TotalPoints  int
	Score        int
}

// Grade scores answers against questions, which must be ordered by id.
// A missing or nil answer is wrong. Time is split evenly per question.
func Grade(questions []models.Question, answers []*int, timeSpent int) Grading {
	g := Grading{Answers: make([]GradedAnswer, 0, len(questions))}
	perQuestion := 0
	if len(questions) > 0 {
		perQuestion = int(math.Round(float64(timeSpent) / float64(len(questions))))
	}
	for i, q := range questions {
		var selected *int
		if i < len(answers) && answers[i] != nil {
			v := *answers[i]
			selected = &v
		}
		ok := selected != nil && *selected == q.CorrectAnswer
		g.TotalPoints += q.Points
		if ok {
			g.Correct++
			g.EarnedPoints += q.Points
		}
		g.Answers = append(g.Answers, GradedAnswer{
			QuestionID: q.ID,
			Selected:   selected,
			IsCorrect:  ok,
			TimeSpent:  perQuestion,
		})
	}
	g.Score = ScorePercent(g.EarnedPoints, g.TotalPoints)
	return g
}

// ScorePercent is earned/total as a rounded percentage, 0 when total is 0.
func ScorePercent(earned, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(earned) / float64(total) * 100))
}

// NextStreak applies the daily streak rule in UTC: activity on the day
// after the last one extends the streak, a repeat on the same day keeps
// it, and any gap resets it to 1.
func NextStreak(current int, last *time.Time, now time.Time) int {
	if last == nil {
		return 1
	}
	today := startOfDay(now)
	lastDay := startOfDay(*last)
	switch {
	case lastDay.Equal(today):
		if current < 1 {
			return 1
		}
		return current
	case lastDay.Equal(today.AddDate(0, 0, -1)):
		return current + 1
	default:
		return 1
	}
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
