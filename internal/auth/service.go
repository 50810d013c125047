// Package auth issues and checks bearer tokens and owns the account
// lifecycle: registration, login and token refresh.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"vmxio.com/skillforge/internal/activity"
	"vmxio.com/skillforge/internal/apierr"
	"vmxio.com/skillforge/internal/logger"
	"vmxio.com/skillforge/internal/models"
	"vmxio.com/skillforge/internal/store"
)

type TokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

type Service struct {
	db     *gorm.DB
	log    *logger.Logger
	tokens TokenConfig
	// HashCost is the bcrypt cost for new passwords; zero means DefaultHashCost.
	HashCost int
	// AdminEmails are granted the admin role at registration or next login.
	// Every other account registers as a student.
	AdminEmails []string
}

func NewService(db *gorm.DB, log *logger.Logger, tokens TokenConfig) *Service {
	return &Service{db: db, log: log, tokens: tokens}
}

type RegisterInput struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type Session struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	role := models.RoleStudent
	if s.isAdminEmail(email) {
		role = models.RoleAdmin
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return Session{}, fmt.Errorf("lookup email: %w", err)
	}
	if count > 0 {
		return Session{}, apierr.Conflict("User already exists with this email")
	}

	hash, err := HashPassword(in.Password, s.HashCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	err = store.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			if store.IsDuplicate(err) {
				return apierr.Conflict("User already exists with this email")
			}
			return fmt.Errorf("create user: %w", err)
		}
		return activity.Record(tx, activity.Entry{UserID: user.ID, Action: activity.ActionRegister, EntityType: "user", EntityID: user.ID})
	})
	if err != nil {
		return Session{}, err
	}

	token, err := s.issue(user)
	if err != nil {
		return Session{}, err
	}
	s.log.Info("user registered", "user_id", user.ID, "email", user.Email)
	return Session{User: user, Token: token}, nil
}

func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if store.IsNotFound(err) {
			return Session{}, apierr.Unauthorized("Invalid email or password")
		}
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return Session{}, apierr.Unauthorized("Account is deactivated")
	}
	if !CheckPassword(user.PasswordHash, in.Password) {
		return Session{}, apierr.Unauthorized("Invalid email or password")
	}

	now := time.Now().UTC()
	promote := user.Role != models.RoleAdmin && s.isAdminEmail(user.Email)
	err := store.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		updates := map[string]any{"last_login": now}
		if promote {
			updates["role"] = models.RoleAdmin
		}
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update last login: %w", err)
		}
		return activity.Record(tx, activity.Entry{UserID: user.ID, Action: activity.ActionLogin, EntityType: "user", EntityID: user.ID})
	})
	if err != nil {
		return Session{}, err
	}
	user.LastLogin = &now
	if promote {
		user.Role = models.RoleAdmin
		s.log.Info("user promoted to admin", "user_id", user.ID)
	}

	token, err := s.issue(user)
	if err != nil {
		return Session{}, err
	}
	s.log.Info("user logged in", "user_id", user.ID, "email", user.Email)
	return Session{User: user, Token: token}, nil
}

func (s *Service) isAdminEmail(email string) bool {
	for _, admin := range s.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(admin), email) {
			return true
		}
	}
	return false
}

func (s *Service) Me(ctx context.Context, userID uint) (models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if store.IsNotFound(err) {
			return models.User{}, apierr.NotFound("User not found")
		}
		return models.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// Refresh signs a fresh token for the identity in claims.
func (s *Service) Refresh(claims Claims) (string, error) {
	return s.issue(models.User{ID: claims.UserID, Email: claims.Email, Role: claims.Role})
}

// Logout only records the event; tokens are stateless and expire on their own.
func (s *Service) Logout(ctx context.Context, claims Claims) error {
	err := activity.Record(s.db.WithContext(ctx), activity.Entry{
		UserID:     claims.UserID,
		Action:     activity.ActionLogout,
		EntityType: "user",
		EntityID:   claims.UserID,
	})
	if err != nil {
		return err
	}
	s.log.Info("user logged out", "user_id", claims.UserID, "email", claims.Email)
	return nil
}

// Authenticate turns a raw bearer token into claims.
func (s *Service) Authenticate(token string) (*Claims, error) {
	return ParseToken(s.tokens.Secret, s.tokens.Issuer, token)
}

func (s *Service) issue(user models.User) (string, error) {
	token, err := NewAccessToken(s.tokens.Secret, s.tokens.Issuer, s.tokens.TTL, Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	})
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}
