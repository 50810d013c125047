// Package skills serves the skill catalog and per-user enrollment.
package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"vmxio.com/skillforge/internal/activity"
	"vmxio.com/skillforge/internal/apierr"
	"vmxio.com/skillforge/internal/logger"
	"vmxio.com/skillforge/internal/models"
	"vmxio.com/skillforge/internal/store"
)

const (
	msgSkillNotFound      = "Skill not found"
	msgAlreadyEnrolled    = "Already enrolled in this skill"
	msgEnrollmentNotFound = "Skill enrollment not found"

	defaultListLimit = 10
	maxListLimit     = 100
)

// difficultyOrder sorts tiers by rank instead of alphabetically.
const difficultyOrder = "CASE s.difficulty WHEN 'Novice' THEN 0 WHEN 'Intermediate' THEN 1 WHEN 'Expert' THEN 2 WHEN 'Master' THEN 3 ELSE 4 END ASC"

var sortOrders = map[string]string{
	"popularity": "s.popularity DESC, s.id ASC",
	"title":      "s.title ASC",
	"difficulty": difficultyOrder + ", s.title ASC",
	"newest":     "s.created_at DESC, s.id DESC",
}

type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewService(db *gorm.DB, log *logger.Logger) *Service {
	return &Service{db: db, log: log}
}

// View is a skill as seen by one user.
type View struct {
	models.Skill
	UserProgress int        `json:"user_progress"`
	IsEnrolled   bool       `json:"is_enrolled"`
	MasteryLevel *string    `json:"mastery_level,omitempty"`
	EnrolledAt   *time.Time `json:"enrolled_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

type ListFilter struct {
	Page       int
	Limit      int
	Category   string
	Difficulty string
	Search     string
	Sort       string
}

type Page struct {
	Skills     []View            `json:"skills"`
	Pagination models.Pagination `json:"pagination"`
}

func (s *Service) withUser(ctx context.Context, userID uint) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("skills s").
		Select(`s.*, COALESCE(us.progress, 0) AS user_progress,
			CASE WHEN us.user_id IS NOT NULL THEN 1 ELSE 0 END AS is_enrolled,
			us.mastery_level, us.enrolled_at, us.completed_at`).
		Joins("LEFT JOIN user_skills us ON us.skill_id = s.id AND us.user_id = ?", userID)
}

// List filters the catalog. "all" or "" disables the category and
// difficulty filters; unknown sorts fall back to popularity.
func (s *Service) List(ctx context.Context, userID uint, f ListFilter) (Page, error) {
	page, limit := models.NormalizePage(f.Page, f.Limit, defaultListLimit, maxListLimit)

	filter := func(q *gorm.DB) *gorm.DB {
		if f.Category != "" && f.Category != "all" {
			q = q.Where("s.category = ?", f.Category)
		}
		if f.Difficulty != "" && f.Difficulty != "all" {
			q = q.Where("s.difficulty = ?", f.Difficulty)
		}
		if term := strings.TrimSpace(f.Search); term != "" {
			like := "%" + strings.ToLower(term) + "%"
			q = q.Where("(LOWER(s.title) LIKE ? OR LOWER(s.description) LIKE ?)", like, like)
		}
		return q
	}

	var total int64
	if err := filter(s.db.WithContext(ctx).Table("skills s")).Count(&total).Error; err != nil {
		return Page{}, fmt.Errorf("count skills: %w", err)
	}
	p := models.NewPagination(page, limit, total)

	order, ok := sortOrders[f.Sort]
	if !ok {
		order = sortOrders["popularity"]
	}
	views := []View{}
	if err := filter(s.withUser(ctx, userID)).Order(order).Limit(limit).Offset(p.Offset()).Scan(&views).Error; err != nil {
		return Page{}, fmt.Errorf("list skills: %w", err)
	}
	return Page{Skills: views, Pagination: p}, nil
}

func (s *Service) Get(ctx context.Context, userID, skillID uint) (View, error) {
	var views []View
	if err := s.withUser(ctx, userID).Where("s.id = ?", skillID).Limit(1).Scan(&views).Error; err != nil {
		return View{}, fmt.Errorf("load skill: %w", err)
	}
	if len(views) == 0 {
		return View{}, apierr.NotFound(msgSkillNotFound)
	}
	return views[0], nil
}

// Enroll creates the user's enrollment and bumps the skill's popularity.
func (s *Service) Enroll(ctx context.Context, userID, skillID uint) (models.UserSkill, error) {
	var us models.UserSkill
	err := store.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		var skill models.Skill
		if err := tx.Select("id").First(&skill, skillID).Error; err != nil {
			if store.IsNotFound(err) {
				return apierr.NotFound(msgSkillNotFound)
			}
			return fmt.Errorf("load skill: %w", err)
		}
		var existing int64
		if err := tx.Model(&models.UserSkill{}).Where("user_id = ? AND skill_id = ?", userID, skillID).Count(&existing).Error; err != nil {
			return fmt.Errorf("check enrollment: %w", err)
		}
		if existing > 0 {
			return apierr.Conflict(msgAlreadyEnrolled)
		}

		us = models.UserSkill{UserID: userID, SkillID: skillID, MasteryLevel: models.DifficultyNovice}
		if err := tx.Create(&us).Error; err != nil {
			if store.IsDuplicate(err) {
				return apierr.Conflict(msgAlreadyEnrolled)
			}
			return fmt.Errorf("create enrollment: %w", err)
		}
		if err := tx.Model(&models.Skill{}).Where("id = ?", skillID).
			Update("popularity", gorm.Expr("popularity + 1")).Error; err != nil {
			return fmt.Errorf("bump popularity: %w", err)
		}
		return activity.Record(tx, activity.Entry{UserID: userID, Action: activity.ActionSkillEnrolled, EntityType: "skill", EntityID: skillID})
	})
	if err != nil {
		return models.UserSkill{}, err
	}
	s.log.Info("skill enrolled", "user_id", userID, "skill_id", skillID)
	return us, nil
}

type ProgressInput struct {
	Progress     *int   `json:"progress" binding:"required,min=0,max=100"`
	MasteryLevel string `json:"masteryLevel" binding:"omitempty,oneof=Novice Intermediate Expert Master"`
}

// UpdateProgress sets progress directly. Reaching 100 stamps completed_at.
func (s *Service) UpdateProgress(ctx context.Context, userID, skillID uint, in ProgressInput) error {
	if in.Progress == nil || *in.Progress < 0 || *in.Progress > 100 {
		return apierr.Validation("Progress must be between 0 and 100", apierr.FieldError{Field: "progress", Message: "must be between 0 and 100"})
	}
	if in.MasteryLevel != "" && models.DifficultyRank(in.MasteryLevel) < 0 {
		return apierr.Validation("Invalid mastery level", apierr.FieldError{Field: "masteryLevel", Message: "must be one of Novice, Intermediate, Expert, Master"})
	}

	updates := map[string]any{"progress": *in.Progress}
	if in.MasteryLevel != "" {
		updates["mastery_level"] = in.MasteryLevel
	}
	if *in.Progress == 100 {
		updates["completed_at"] = time.Now().UTC()
	}
	res := s.db.WithContext(ctx).Model(&models.UserSkill{}).
		Where("user_id = ? AND skill_id = ?", userID, skillID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update progress: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apierr.NotFound(msgEnrollmentNotFound)
	}
	return nil
}

// Enrolled lists the user's skills, most recently enrolled first.
func (s *Service) Enrolled(ctx context.Context, userID uint) ([]View, error) {
	views := []View{}
	err := s.withUser(ctx, userID).
		Where("us.user_id IS NOT NULL").
		Order("us.enrolled_at DESC, s.id DESC").
		Scan(&views).Error
	if err != nil {
		return nil, fmt.Errorf("list enrolled skills: %w", err)
	}
	return views, nil
}

type CreateInput struct {
	Title          string   `json:"title" binding:"required,min=2,max=200"`
	Description    string   `json:"description" binding:"max=2000"`
	Category       string   `json:"category" binding:"required,max=100"`
	Difficulty     string   `json:"difficulty" binding:"required,oneof=Novice Intermediate Expert Master"`
	ImageURL       string   `json:"imageUrl" binding:"omitempty,url"`
	Topics         []string `json:"topics" binding:"omitempty,dive,min=1,max=100"`
	EstimatedHours int      `json:"estimatedHours" binding:"min=0,max=1000"`
}

// Create adds a catalog entry. Callers restrict it to staff roles.
func (s *Service) Create(ctx context.Context, actorID uint, in CreateInput) (models.Skill, error) {
	topics := in.Topics
	if topics == nil {
		topics = []string{}
	}
	raw, err := json.Marshal(topics)
	if err != nil {
		return models.Skill{}, fmt.Errorf("encode topics: %w", err)
	}
	skill := models.Skill{
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		Category:       in.Category,
		Difficulty:     in.Difficulty,
		ImageURL:       in.ImageURL,
		Topics:         datatypes.JSON(raw),
		EstimatedHours: in.EstimatedHours,
	}
	if err := s.db.WithContext(ctx).Create(&skill).Error; err != nil {
		return models.Skill{}, fmt.Errorf("create skill: %w", err)
	}
	s.log.Info("skill created", "skill_id", skill.ID, "actor_id", actorID)
	return skill, nil
}
