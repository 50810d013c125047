package users_test

import (
	"context"
	"net/http"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"vmxio.com/skillforge/internal/apierr"
	"vmxio.com/skillforge/internal/auth"
	"vmxio.com/skillforge/internal/logger"
	"vmxio.com/skillforge/internal/models"
	"vmxio.com/skillforge/internal/store/storetest"
	"vmxio.com/skillforge/internal/users"
)

func newService(t *testing.T) (*users.Service, *gorm.DB, models.User) {
	t.Helper()
	db := storetest.New(t)
	svc := users.NewService(db, logger.Nop())
	svc.HashCost = bcrypt.MinCost
	return svc, db, storetest.CreateUser(t, db, "profile@example.com", models.RoleStudent)
}

func strPtr(s string) *string { return &s }

func TestUpdateProfile(t *testing.T) {
	svc, db, user := newService(t)
	ctx := context.Background()

	if _, err := svc.UpdateProfile(ctx, user.ID, users.ProfilePatch{}); apierr.StatusOf(err) != http.StatusBadRequest || apierr.From(err).Message != "No fields to update" {
		t.Fatalf("expected empty patch rejection, got %v", err)
	}

	updated, err := svc.UpdateProfile(ctx, user.ID, users.ProfilePatch{
		Bio:    strPtr("Learning ML"),
		GitHub: strPtr("octo"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Test User" || updated.Bio == nil || *updated.Bio != "Learning ML" || updated.GitHub == nil || *updated.GitHub != "octo" {
		t.Fatalf("unexpected user %+v", updated)
	}

	if _, err := svc.UpdateProfile(ctx, 9999, users.ProfilePatch{Name: strPtr("Ghost")}); apierr.StatusOf(err) != http.StatusNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	var logs int64
	db.Model(&models.ActivityLog{}).Where("user_id = ? AND action = ?", user.ID, "profile_updated").Count(&logs)
	if logs != 1 {
		t.Fatalf("expected one activity row, got %d", logs)
	}
}

func TestChangePassword(t *testing.T) {
	svc, db, user := newService(t)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, user.ID, users.PasswordChange{CurrentPassword: "wrong", NewPassword: "newsecret"})
	if apiErr := apierr.From(err); apiErr == nil || apiErr.Status != http.StatusBadRequest || apiErr.Message != "Current password is incorrect" {
		t.Fatalf("expected rejection, got %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, users.PasswordChange{CurrentPassword: "password123", NewPassword: "newsecret"}); err != nil {
		t.Fatalf("change password: %v", err)
	}
	var stored models.User
	db.First(&stored, user.ID)
	if !auth.CheckPassword(stored.PasswordHash, "newsecret") || auth.CheckPassword(stored.PasswordHash, "password123") {
		t.Fatalf("password hash not replaced")
	}

	if err := svc.ChangePassword(ctx, 9999, users.PasswordChange{CurrentPassword: "x", NewPassword: "yyyyyy"}); apierr.StatusOf(err) != http.StatusNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStats(t *testing.T) {
	svc, db, user := newService(t)
	ctx := context.Background()

	empty, err := svc.Stats(ctx, user.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if empty != (users.Stats{}) {
		t.Fatalf("expected zero stats, got %+v", empty)
	}

	skill := storetest.CreateSkill(t, db, "Go", "backend", models.DifficultyNovice)
	for i, score := range []int{70, 85} {
		sc := score
		e := models.Exam{UserID: user.ID, SkillID: skill.ID, Title: "Go", Difficulty: models.DifficultyNovice, QuestionsCount: 1, TimeLimit: 10, Status: models.ExamCompleted, Score: &sc}
		if err := db.Create(&e).Error; err != nil {
			t.Fatalf("create exam %d: %v", i, err)
		}
		q := models.Question{ExamID: e.ID, QuestionText: "q", Options: []byte(`["a","b"]`), Points: 1}
		if err := db.Create(&q).Error; err != nil {
			t.Fatalf("create question: %v", err)
		}
		if err := db.Create(&models.UserAnswer{ExamID: e.ID, QuestionID: q.ID, UserID: user.ID, TimeSpent: 150}).Error; err != nil {
			t.Fatalf("create answer: %v", err)
		}
	}
	if err := db.Create(&models.UserSkill{UserID: user.ID, SkillID: skill.ID}).Error; err != nil {
		t.Fatalf("enroll: %v", err)
	}

	st, err := svc.Stats(ctx, user.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := users.Stats{ExamsCompleted: 2, AverageScore: 78, SkillsEnrolled: 1, TotalStudyTime: 5}
	if st != want {
		t.Fatalf("expected %+v, got %+v", want, st)
	}
}
