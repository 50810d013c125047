package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"vmxio.com/skillforge/internal/metrics"
	"vmxio.com/skillforge/internal/models"
)

const overallCategory = "overall"

var leaderboardWindows = map[string]func(time.Time) time.Time{
	"week":  func(t time.Time) time.Time { return t.AddDate(0, 0, -7) },
	"month": func(t time.Time) time.Time { return t.AddDate(0, 0, -30) },
	"year":  func(t time.Time) time.Time { return t.AddDate(-1, 0, 0) },
}

type LeaderboardFilter struct {
	Timeframe string
	Category  string
	Limit     int
}

type LeaderboardEntry struct {
	Rank        int     `json:"rank"`
	ID          uint    `json:"id"`
	Name        string  `json:"name"`
	Avatar      *string `json:"avatar,omitempty"`
	Points      int     `json:"points"`
	Streak      int     `json:"streak"`
	ExamCount   int     `json:"exam_count"`
	AvgScore    int     `json:"avg_score"`
	BestScore   int     `json:"best_score"`
	SkillsCount int     `json:"skills_count"`

	avgRaw float64
}

type LeaderboardFilters struct {
	Timeframe string `json:"timeframe"`
	Category  string `json:"category"`
	Total     int    `json:"total"`
}

type Leaderboard struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	Filters     LeaderboardFilters `json:"filters"`
}

func normalizeLeaderboard(f LeaderboardFilter) LeaderboardFilter {
	if _, ok := leaderboardWindows[f.Timeframe]; !ok {
		f.Timeframe = "all"
	}
	if f.Category == "" {
		f.Category = overallCategory
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLeaderboardLimit
	}
	if f.Limit > MaxLeaderboardLimit {
		f.Limit = MaxLeaderboardLimit
	}
	return f
}

// Leaderboard ranks active users by points, then average score. Results
// are served from the cache when one is configured.
func (s *Service) Leaderboard(ctx context.Context, f LeaderboardFilter) (Leaderboard, error) {
	f = normalizeLeaderboard(f)
	key := fmt.Sprintf("leaderboard:%s:%s:%d", f.Timeframe, f.Category, f.Limit)

	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warn("leaderboard cache read failed", "key", key, "error", err)
	} else if ok {
		var cached Leaderboard
		if err := json.Unmarshal(raw, &cached); err == nil {
			metrics.LeaderboardCache.WithLabelValues("hit").Inc()
			return cached, nil
		}
	}
	metrics.LeaderboardCache.WithLabelValues("miss").Inc()

	entries, err := s.leaderboardRows(ctx, f)
	if err != nil {
		return Leaderboard{}, err
	}
	out := Leaderboard{
		Leaderboard: rankLeaderboard(entries),
		Filters:     LeaderboardFilters{Timeframe: f.Timeframe, Category: f.Category, Total: len(entries)},
	}

	if raw, err := json.Marshal(out); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
			s.log.Warn("leaderboard cache write failed", "key", key, "error", err)
		}
	}
	return out, nil
}

func (s *Service) leaderboardRows(ctx context.Context, f LeaderboardFilter) ([]LeaderboardEntry, error) {
	examJoin := "LEFT JOIN exams e ON e.user_id = u.id AND e.status = ?"
	joinArgs := []any{models.ExamCompleted}
	if window, ok := leaderboardWindows[f.Timeframe]; ok {
		examJoin += " AND e.completed_at >= ?"
		joinArgs = append(joinArgs, window(s.Clock()))
	}

	q := s.db.WithContext(ctx).
		Table("users u").
		Select(`u.id, u.name, u.avatar, u.points, u.streak,
			COUNT(e.id) AS exam_count,
			COALESCE(AVG(e.score), 0) AS avg_score,
			COALESCE(MAX(e.score), 0) AS best_score,
			COUNT(DISTINCT e.skill_id) AS skills_count`).
		Joins(examJoin, joinArgs...).
		Joins("LEFT JOIN skills s ON s.id = e.skill_id").
		Where("u.is_active = ?", true)
	if f.Category != overallCategory {
		q = q.Where("s.category = ?", f.Category)
	}

	var rows []struct {
		ID          uint
		Name        string
		Avatar      *string
		Points      int
		Streak      int
		ExamCount   int
		AvgScore    float64
		BestScore   int
		SkillsCount int
	}
	err := q.Group("u.id").
		Order("u.points DESC, avg_score DESC, u.id ASC").
		Limit(f.Limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}

	out := make([]LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, LeaderboardEntry{
			ID:          r.ID,
			Name:        r.Name,
			Avatar:      r.Avatar,
			Points:      r.Points,
			Streak:      r.Streak,
			ExamCount:   r.ExamCount,
			BestScore:   r.BestScore,
			SkillsCount: r.SkillsCount,
			avgRaw:      r.AvgScore,
		})
	}
	return out, nil
}

// rankLeaderboard orders by points desc then average desc, keeping input
// order for full ties, and assigns 1-based ranks. Tied users still get
// distinct consecutive ranks.
func rankLeaderboard(entries []LeaderboardEntry) []LeaderboardEntry {
	out := append([]LeaderboardEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].avgRaw > out[j].avgRaw
	})
	for i := range out {
		out[i].Rank = i + 1
		out[i].AvgScore = int(math.Round(out[i].avgRaw))
	}
	if out == nil {
		out = []LeaderboardEntry{}
	}
	return out
}
