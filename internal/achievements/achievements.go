package achievements

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vmxio.com/skillforge/internal/models"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// List returns the whole catalog ordered by points.
func (s *Service) List(ctx context.Context) ([]models.Achievement, error) {
	var out []models.Achievement
	if err := s.db.WithContext(ctx).Order("points ASC, id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	return out, nil
}

// ForUser returns the user's unlocks, newest first.
func (s *Service) ForUser(ctx context.Context, userID uint) ([]models.UserAchievement, error) {
	var out []models.UserAchievement
	err := s.db.WithContext(ctx).
		Preload("Achievement").
		Where("user_id = ?", userID).
		Order("unlocked_at DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list user achievements: %w", err)
	}
	return out, nil
}

// Facts describes the submission that triggered an evaluation.
type Facts struct {
	Score  int
	Streak int
}

// Evaluate unlocks every catalog entry the user now qualifies for and
// returns the titles unlocked by this call. It must run inside the
// submission transaction, after the exam has been marked completed.
func Evaluate(tx *gorm.DB, userID uint, f Facts) ([]string, error) {
	var catalog []models.Achievement
	if err := tx.Order("id ASC").Find(&catalog).Error; err != nil {
		return nil, fmt.Errorf("load achievements: %w", err)
	}
	if len(catalog) == 0 {
		return nil, nil
	}

	var owned []uint
	if err := tx.Model(&models.UserAchievement{}).Where("user_id = ?", userID).Pluck("achievement_id", &owned).Error; err != nil {
		return nil, fmt.Errorf("load unlocks: %w", err)
	}
	have := make(map[uint]bool, len(owned))
	for _, id := range owned {
		have[id] = true
	}

	var completed, mastered int64
	if err := tx.Model(&models.Exam{}).Where("user_id = ? AND status = ?", userID, models.ExamCompleted).Count(&completed).Error; err != nil {
		return nil, fmt.Errorf("count completed exams: %w", err)
	}
	if err := tx.Model(&models.UserSkill{}).Where("user_id = ? AND mastery_level = ?", userID, models.DifficultyMaster).Count(&mastered).Error; err != nil {
		return nil, fmt.Errorf("count mastered skills: %w", err)
	}

	var unlocked []string
	for _, a := range catalog {
		if have[a.ID] || !qualifies(a, f, completed, mastered) {
			continue
		}
		row := models.UserAchievement{UserID: userID, AchievementID: a.ID}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return nil, fmt.Errorf("unlock %q: %w", a.Title, res.Error)
		}
		if res.RowsAffected > 0 {
			unlocked = append(unlocked, a.Title)
		}
	}
	return unlocked, nil
}

func qualifies(a models.Achievement, f Facts, completed, mastered int64) bool {
	v := a.RequirementValue
	switch a.RequirementType {
	case models.RequirementExamCount:
		return completed >= int64(v)
	case models.RequirementFirstExamScore:
		return completed == 1 && f.Score >= v
	case models.RequirementPerfectScore:
		return f.Score >= v
	case models.RequirementStreak:
		return f.Streak >= v
	case models.RequirementSkillsMastered:
		return mastered >= int64(v)
	default:
		return false
	}
}
