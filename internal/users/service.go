// Package users covers profile edits, password changes and per-user stats.
package users

import (
	"context"
	"fmt"
	"math"

	"gorm.io/gorm"

	"vmxio.com/skillforge/internal/activity"
	"vmxio.com/skillforge/internal/apierr"
	"vmxio.com/skillforge/internal/auth"
	"vmxio.com/skillforge/internal/logger"
	"vmxio.com/skillforge/internal/models"
	"vmxio.com/skillforge/internal/store"
)

const (
	msgUserNotFound     = "User not found"
	msgNoFields         = "No fields to update"
	msgWrongCurrentPass = "Current password is incorrect"
)

type Service struct {
	db  *gorm.DB
	log *logger.Logger
	// HashCost is passed to auth.HashPassword; zero means the default.
	HashCost int
}

func NewService(db *gorm.DB, log *logger.Logger) *Service {
	return &Service{db: db, log: log}
}

// ProfilePatch lists the editable profile fields. Nil fields are left
// untouched.
type ProfilePatch struct {
	Name     *string `json:"name" binding:"omitempty,min=2,max=100"`
	Bio      *string `json:"bio" binding:"omitempty,max=500"`
	Location *string `json:"location" binding:"omitempty,max=100"`
	Phone    *string `json:"phone" binding:"omitempty,max=20"`
	Website  *string `json:"website" binding:"omitempty,url"`
	LinkedIn *string `json:"linkedin" binding:"omitempty,max=200"`
	GitHub   *string `json:"github" binding:"omitempty,max=200"`
}

func (p ProfilePatch) columns() map[string]any {
	out := map[string]any{}
	set := func(col string, v *string) {
		if v != nil {
			out[col] = *v
		}
	}
	set("name", p.Name)
	set("bio", p.Bio)
	set("location", p.Location)
	set("phone", p.Phone)
	set("website", p.Website)
	set("linkedin", p.LinkedIn)
	set("github", p.GitHub)
	return out
}

func (s *Service) UpdateProfile(ctx context.Context, userID uint, patch ProfilePatch) (models.User, error) {
	cols := patch.columns()
	if len(cols) == 0 {
		return models.User{}, apierr.Validation(msgNoFields)
	}

	var user models.User
	err := store.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", userID).Updates(cols)
		if res.Error != nil {
			return fmt.Errorf("update profile: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apierr.NotFound(msgUserNotFound)
		}
		if err := tx.First(&user, userID).Error; err != nil {
			return fmt.Errorf("reload user: %w", err)
		}
		fields := make([]string, 0, len(cols))
		for k := range cols {
			fields = append(fields, k)
		}
		return activity.Record(tx, activity.Entry{
			UserID:     userID,
			Action:     activity.ActionProfileUpdated,
			EntityType: "user",
			EntityID:   userID,
			Metadata:   map[string]any{"fields": fields},
		})
	})
	if err != nil {
		return models.User{}, err
	}
	s.log.Info("profile updated", "user_id", userID)
	return user, nil
}

type PasswordChange struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6,max=128"`
}

func (s *Service) ChangePassword(ctx context.Context, userID uint, in PasswordChange) error {
	return store.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id", "password").First(&user, userID).Error; err != nil {
			if store.IsNotFound(err) {
				return apierr.NotFound(msgUserNotFound)
			}
			return fmt.Errorf("load user: %w", err)
		}
		if !auth.CheckPassword(user.PasswordHash, in.CurrentPassword) {
			return apierr.Validation(msgWrongCurrentPass)
		}
		hash, err := auth.HashPassword(in.NewPassword, s.HashCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Update("password", hash).Error; err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		s.log.Info("password updated", "user_id", userID)
		return activity.Record(tx, activity.Entry{UserID: userID, Action: activity.ActionPasswordChanged, EntityType: "user", EntityID: userID})
	})
}

type Stats struct {
	ExamsCompleted       int64 `json:"examsCompleted"`
	AverageScore         int   `json:"averageScore"`
	SkillsEnrolled       int64 `json:"skillsEnrolled"`
	CertificatesEarned   int64 `json:"certificatesEarned"`
	AchievementsUnlocked int64 `json:"achievementsUnlocked"`
	// TotalStudyTime is in minutes.
	TotalStudyTime int `json:"totalStudyTime"`
}

func (s *Service) Stats(ctx context.Context, userID uint) (Stats, error) {
	db := s.db.WithContext(ctx)
	var st Stats

	counts := []struct {
		name  string
		query *gorm.DB
		dest  *int64
	}{
		{"exams", db.Model(&models.Exam{}).Where("user_id = ? AND status = ?", userID, models.ExamCompleted), &st.ExamsCompleted},
		{"enrollments", db.Model(&models.UserSkill{}).Where("user_id = ?", userID), &st.SkillsEnrolled},
		{"certificates", db.Model(&models.Certificate{}).Where("user_id = ? AND status = ?", userID, models.CertificateActive), &st.CertificatesEarned},
		{"achievements", db.Model(&models.UserAchievement{}).Where("user_id = ?", userID), &st.AchievementsUnlocked},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return Stats{}, fmt.Errorf("count %s: %w", c.name, err)
		}
	}

	var avg float64
	if err := db.Model(&models.Exam{}).
		Select("COALESCE(AVG(score), 0)").
		Where("user_id = ? AND score IS NOT NULL", userID).
		Scan(&avg).Error; err != nil {
		return Stats{}, fmt.Errorf("average score: %w", err)
	}
	st.AverageScore = int(math.Round(avg))

	var seconds int64
	if err := db.Model(&models.UserAnswer{}).
		Select("COALESCE(SUM(time_spent), 0)").
		Where("user_id = ?", userID).
		Scan(&seconds).Error; err != nil {
		return Stats{}, fmt.Errorf("study time: %w", err)
	}
	st.TotalStudyTime = int(math.Round(float64(seconds) / 60))
	return st, nil
}
