// Package analytics builds read-only progress reports and the leaderboard.
// Time windows are computed here and passed as query parameters so the
// same SQL runs on sqlite and postgres.
package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"vmxio.com/skillforge/internal/cache"
	"vmxio.com/skillforge/internal/logger"
	"vmxio.com/skillforge/internal/models"
)

const (
	dashboardPerformanceDays = 30
	dashboardStreakDays      = 90
	recentActivityLimit      = 10

	DefaultLeaderboardLimit = 50
	MaxLeaderboardLimit     = 100
)

type Service struct {
	db       *gorm.DB
	log      *logger.Logger
	cache    cache.Cache
	cacheTTL time.Duration
	Clock    func() time.Time
}

// NewService wires the aggregator. A nil cache disables leaderboard caching.
func NewService(db *gorm.DB, log *logger.Logger, c cache.Cache, cacheTTL time.Duration) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{db: db, log: log, cache: c, cacheTTL: cacheTTL, Clock: func() time.Time { return time.Now().UTC() }}
}

type PerformancePoint struct {
	Date      string  `json:"date"`
	AvgScore  float64 `json:"avg_score"`
	ExamCount int     `json:"exam_count"`
}

type StreakPoint struct {
	Date       string `json:"date"`
	DailyExams int    `json:"daily_exams"`
}

type SkillProgress struct {
	ID           uint       `json:"id"`
	Title        string     `json:"title"`
	Category     string     `json:"category"`
	Difficulty   string     `json:"difficulty"`
	Progress     int        `json:"progress"`
	MasteryLevel string     `json:"mastery_level"`
	EnrolledAt   time.Time  `json:"enrolled_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	ExamCount    int        `json:"exam_count"`
	AvgScore     *float64   `json:"avg_score"`
	BestScore    *int       `json:"best_score"`
}

type ActivityItem struct {
	Type       string    `json:"type"`
	ExamID     uint      `json:"exam_id"`
	Title      string    `json:"title"`
	Score      int       `json:"score"`
	Timestamp  time.Time `json:"timestamp"`
	SkillTitle string    `json:"skill_title"`
}

type CategoryStat struct {
	Category  string  `json:"category"`
	ExamCount int     `json:"exam_count"`
	AvgScore  float64 `json:"avg_score"`
	BestScore int     `json:"best_score"`
}

type Stats struct {
	TotalExams      int      `json:"total_exams"`
	AvgScore        *float64 `json:"avg_score"`
	BestScore       *int     `json:"best_score"`
	SkillsAttempted int      `json:"skills_attempted"`
	CompletedExams  int      `json:"completed_exams"`
}

type Dashboard struct {
	Performance []PerformancePoint `json:"performance"`
	Skills      []SkillProgress    `json:"skills"`
	Activity    []ActivityItem     `json:"activity"`
	Streaks     []StreakPoint      `json:"streaks"`
	Categories  []CategoryStat     `json:"categories"`
	Stats       Stats              `json:"stats"`
}

// Dashboard runs its six sections concurrently. A failing section is
// logged and left empty; the dashboard itself never fails.
func (s *Service) Dashboard(ctx context.Context, userID uint) Dashboard {
	now := s.Clock()
	d := Dashboard{
		Performance: []PerformancePoint{},
		Skills:      []SkillProgress{},
		Activity:    []ActivityItem{},
		Streaks:     []StreakPoint{},
		Categories:  []CategoryStat{},
	}

	var g errgroup.Group
	section := func(name string, fn func() error) {
		g.Go(func() error {
			if err := fn(); err != nil {
				s.log.Warn("dashboard section failed", "section", name, "user_id", userID, "error", err)
			}
			return nil
		})
	}

	section("performance", func() error {
		scores, err := s.completedSince(ctx, userID, now.AddDate(0, 0, -dashboardPerformanceDays))
		if err != nil {
			return err
		}
		d.Performance = dailyPerformance(scores)
		return nil
	})
	section("skills", func() error {
		rows, err := s.skillBreakdown(ctx, userID)
		if err != nil {
			return err
		}
		d.Skills = rows
		return nil
	})
	section("activity", func() error {
		rows, err := s.recentActivity(ctx, userID)
		if err != nil {
			return err
		}
		d.Activity = rows
		return nil
	})
	section("streaks", func() error {
		scores, err := s.completedSince(ctx, userID, now.AddDate(0, 0, -dashboardStreakDays))
		if err != nil {
			return err
		}
		d.Streaks = dailyStreaks(scores)
		return nil
	})
	section("categories", func() error {
		rows, err := s.categoryStats(ctx, userID)
		if err != nil {
			return err
		}
		d.Categories = rows
		return nil
	})
	section("stats", func() error {
		st, err := s.overallStats(ctx, userID)
		if err != nil {
			return err
		}
		d.Stats = st
		return nil
	})

	_ = g.Wait()
	return d
}

type datedScore struct {
	CompletedAt time.Time
	Score       int
}

func (s *Service) completedSince(ctx context.Context, userID uint, since time.Time) ([]datedScore, error) {
	var rows []datedScore
	err := s.db.WithContext(ctx).Model(&models.Exam{}).
		Select("completed_at, score").
		Where("user_id = ? AND status = ? AND completed_at >= ?", userID, models.ExamCompleted, since).
		Order("completed_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load completed exams: %w", err)
	}
	return rows, nil
}

// dailyPerformance buckets scores by UTC day, oldest first.
func dailyPerformance(rows []datedScore) []PerformancePoint {
	out := []PerformancePoint{}
	idx := map[string]int{}
	sums := []int{}
	for _, r := range rows {
		day := r.CompletedAt.UTC().Format("2006-01-02")
		i, ok := idx[day]
		if !ok {
			i = len(out)
			idx[day] = i
			out = append(out, PerformancePoint{Date: day})
			sums = append(sums, 0)
		}
		out[i].ExamCount++
		sums[i] += r.Score
	}
	for i := range out {
		out[i].AvgScore = float64(sums[i]) / float64(out[i].ExamCount)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Date < out[b].Date })
	return out
}

func dailyStreaks(rows []datedScore) []StreakPoint {
	perf := dailyPerformance(rows)
	out := make([]StreakPoint, 0, len(perf))
	for _, p := range perf {
		out = append(out, StreakPoint{Date: p.Date, DailyExams: p.ExamCount})
	}
	return out
}

func (s *Service) skillBreakdown(ctx context.Context, userID uint) ([]SkillProgress, error) {
	rows := []SkillProgress{}
	err := s.db.WithContext(ctx).
		Table("user_skills us").
		Select(`s.id, s.title, s.category, s.difficulty, us.progress, us.mastery_level,
			us.enrolled_at, us.completed_at, COUNT(e.id) AS exam_count,
			AVG(e.score) AS avg_score, MAX(e.score) AS best_score`).
		Joins("JOIN skills s ON s.id = us.skill_id").
		Joins("LEFT JOIN exams e ON e.skill_id = s.id AND e.user_id = us.user_id AND e.status = ?", models.ExamCompleted).
		Where("us.user_id = ?", userID).
		Group("s.id, us.id").
		Order("us.progress DESC, s.title ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load skill breakdown: %w", err)
	}
	return rows, nil
}

func (s *Service) recentActivity(ctx context.Context, userID uint) ([]ActivityItem, error) {
	var rows []struct {
		ExamID      uint
		Title       string
		Score       int
		CompletedAt time.Time
		SkillTitle  string
	}
	err := s.db.WithContext(ctx).
		Table("exams e").
		Select("e.id AS exam_id, e.title, e.score, e.completed_at, s.title AS skill_title").
		Joins("JOIN skills s ON s.id = e.skill_id").
		Where("e.user_id = ? AND e.status = ?", userID, models.ExamCompleted).
		Order("e.completed_at DESC").
		Limit(recentActivityLimit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load recent activity: %w", err)
	}
	out := make([]ActivityItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, ActivityItem{
			Type:       "exam_completed",
			ExamID:     r.ExamID,
			Title:      r.Title,
			Score:      r.Score,
			Timestamp:  r.CompletedAt,
			SkillTitle: r.SkillTitle,
		})
	}
	return out, nil
}

func (s *Service) categoryStats(ctx context.Context, userID uint) ([]CategoryStat, error) {
	rows := []CategoryStat{}
	err := s.db.WithContext(ctx).
		Table("exams e").
		Select("s.category, COUNT(e.id) AS exam_count, AVG(e.score) AS avg_score, MAX(e.score) AS best_score").
		Joins("JOIN skills s ON s.id = e.skill_id").
		Where("e.user_id = ? AND e.status = ?", userID, models.ExamCompleted).
		Group("s.category").
		Order("avg_score DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load category stats: %w", err)
	}
	return rows, nil
}

func (s *Service) overallStats(ctx context.Context, userID uint) (Stats, error) {
	var st Stats
	err := s.db.WithContext(ctx).
		Table("exams e").
		Select(`COUNT(CASE WHEN e.status = ? THEN 1 END) AS total_exams,
			AVG(CASE WHEN e.status = ? THEN e.score END) AS avg_score,
			MAX(CASE WHEN e.status = ? THEN e.score END) AS best_score,
			COUNT(DISTINCT e.skill_id) AS skills_attempted,
			COALESCE(SUM(CASE WHEN e.status = ? THEN 1 ELSE 0 END), 0) AS completed_exams`,
			models.ExamCompleted, models.ExamCompleted, models.ExamCompleted, models.ExamCompleted).
		Where("e.user_id = ?", userID).
		Scan(&st).Error
	if err != nil {
		return Stats{}, fmt.Errorf("load overall stats: %w", err)
	}
	return st, nil
}

// Timeframes accepted by Performance.
var performanceWindows = map[string]func(time.Time) time.Time{
	"7d":  func(t time.Time) time.Time { return t.AddDate(0, 0, -7) },
	"30d": func(t time.Time) time.Time { return t.AddDate(0, 0, -30) },
	"90d": func(t time.Time) time.Time { return t.AddDate(0, 0, -90) },
	"1y":  func(t time.Time) time.Time { return t.AddDate(-1, 0, 0) },
}

type PerformanceFilter struct {
	Timeframe  string
	SkillID    uint
	Difficulty string
}

type PerformanceExam struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Score       int       `json:"score"`
	Difficulty  string    `json:"difficulty"`
	CompletedAt time.Time `json:"completed_at"`
	SkillTitle  string    `json:"skill_title"`
	Category    string    `json:"category"`
}

type PerformanceSummary struct {
	TotalExams   int `json:"totalExams"`
	AverageScore int `json:"averageScore"`
	BestScore    int `json:"bestScore"`
}

type Performance struct {
	Performance []PerformanceExam  `json:"performance"`
	Summary     PerformanceSummary `json:"summary"`
}

// Performance lists completed exams in the window, newest first. Unknown
// timeframes fall back to 30d.
func (s *Service) Performance(ctx context.Context, userID uint, f PerformanceFilter) (Performance, error) {
	window, ok := performanceWindows[f.Timeframe]
	if !ok {
		window = performanceWindows["30d"]
	}
	q := s.db.WithContext(ctx).
		Table("exams e").
		Select("e.id, e.title, e.score, e.difficulty, e.completed_at, s.title AS skill_title, s.category").
		Joins("JOIN skills s ON s.id = e.skill_id").
		Where("e.user_id = ? AND e.status = ? AND e.completed_at >= ?", userID, models.ExamCompleted, window(s.Clock()))
	if f.SkillID != 0 {
		q = q.Where("e.skill_id = ?", f.SkillID)
	}
	if f.Difficulty != "" {
		q = q.Where("e.difficulty = ?", f.Difficulty)
	}

	rows := []PerformanceExam{}
	if err := q.Order("e.completed_at DESC").Scan(&rows).Error; err != nil {
		return Performance{}, fmt.Errorf("load performance: %w", err)
	}
	out := Performance{Performance: rows, Summary: PerformanceSummary{TotalExams: len(rows)}}
	if len(rows) > 0 {
		sum := 0
		for _, r := range rows {
			sum += r.Score
			if r.Score > out.Summary.BestScore {
				out.Summary.BestScore = r.Score
			}
		}
		out.Summary.AverageScore = int(math.Round(float64(sum) / float64(len(rows))))
	}
	return out, nil
}

type SkillsSummary struct {
	TotalSkills     int `json:"totalSkills"`
	CompletedSkills int `json:"completedSkills"`
	AverageProgress int `json:"averageProgress"`
}

type SkillsReport struct {
	Skills  []SkillProgress `json:"skills"`
	Summary SkillsSummary   `json:"summary"`
}

func (s *Service) Skills(ctx context.Context, userID uint) (SkillsReport, error) {
	rows, err := s.skillBreakdown(ctx, userID)
	if err != nil {
		return SkillsReport{}, err
	}
	out := SkillsReport{Skills: rows, Summary: SkillsSummary{TotalSkills: len(rows)}}
	if len(rows) > 0 {
		sum := 0
		for _, r := range rows {
			sum += r.Progress
			if r.Progress == 100 {
				out.Summary.CompletedSkills++
			}
		}
		out.Summary.AverageProgress = int(math.Round(float64(sum) / float64(len(rows))))
	}
	return out, nil
}
