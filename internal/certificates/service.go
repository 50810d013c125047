// Package certificates issues, verifies and expires skill certificates
// earned by passing exams.
package certificates

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"vmxio.com/skillforge/internal/activity"
	"vmxio.com/skillforge/internal/apierr"
	"vmxio.com/skillforge/internal/logger"
	"vmxio.com/skillforge/internal/metrics"
	"vmxio.com/skillforge/internal/models"
	"vmxio.com/skillforge/internal/store"
)

const (
	// ValidityYears is how long a certificate stays valid after issue.
	ValidityYears = 2

	msgAlreadyIssued = "Certificate already exists for this exam"
	msgNotFound      = "Certificate not found"
	msgNotActive     = "Certificate is not active"

	defaultListLimit = 10
	maxListLimit     = 100
)

var msgNotEligible = fmt.Sprintf("Exam not found or score too low for certification (minimum %d%%)", models.PassingScore)

type Service struct {
	db    *gorm.DB
	log   *logger.Logger
	Clock func() time.Time
}

func NewService(db *gorm.DB, log *logger.Logger) *Service {
	return &Service{db: db, log: log, Clock: func() time.Time { return time.Now().UTC() }}
}

type GenerateInput struct {
	ExamID uint `json:"examId" binding:"required"`
}

type Issued struct {
	CertificateID uint   `json:"certificateId"`
	CredentialID  string `json:"credentialId"`
	Title         string `json:"title"`
	Score         int    `json:"score"`
}

// Generate issues a certificate for a completed exam scoring at least
// models.PassingScore. Each exam yields at most one certificate.
func (s *Service) Generate(ctx context.Context, userID, examID uint) (Issued, error) {
	var cert models.Certificate
	err := store.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		var exam models.Exam
		err := tx.Where("id = ? AND user_id = ? AND status = ? AND score >= ?", examID, userID, models.ExamCompleted, models.PassingScore).
			First(&exam).Error
		if store.IsNotFound(err) {
			return apierr.NotFound(msgNotEligible)
		}
		if err != nil {
			return fmt.Errorf("load exam: %w", err)
		}

		var existing int64
		if err := tx.Model(&models.Certificate{}).Where("exam_id = ? AND user_id = ?", exam.ID, userID).Count(&existing).Error; err != nil {
			return fmt.Errorf("check certificate: %w", err)
		}
		if existing > 0 {
			return apierr.Conflict(msgAlreadyIssued)
		}

		var skill models.Skill
		if err := tx.First(&skill, exam.SkillID).Error; err != nil {
			return fmt.Errorf("load skill: %w", err)
		}

		now := s.Clock()
		credential, err := NewCredentialID(now)
		if err != nil {
			return err
		}
		cert = models.Certificate{
			UserID:       userID,
			SkillID:      skill.ID,
			ExamID:       exam.ID,
			Title:        skill.Title + " Certification",
			Description:  fmt.Sprintf("Certification in %s - %s", skill.Title, skill.Category),
			Score:        *exam.Score,
			CredentialID: credential,
			IssueDate:    now,
			ExpiryDate:   now.AddDate(ValidityYears, 0, 0),
			Status:       models.CertificateActive,
		}
		if err := tx.Create(&cert).Error; err != nil {
			if store.IsDuplicate(err) {
				return apierr.Conflict(msgAlreadyIssued)
			}
			return fmt.Errorf("create certificate: %w", err)
		}
		return activity.Record(tx, activity.Entry{
			UserID:     userID,
			Action:     activity.ActionCertificateGenerated,
			EntityType: "certificate",
			EntityID:   cert.ID,
			Metadata:   map[string]any{"examId": exam.ID, "credentialId": credential},
		})
	})
	if err != nil {
		return Issued{}, err
	}

	metrics.CertificatesIssued.Inc()
	s.log.Info("certificate generated", "certificate_id", cert.ID, "user_id", userID, "credential_id", cert.CredentialID)
	return Issued{CertificateID: cert.ID, CredentialID: cert.CredentialID, Title: cert.Title, Score: cert.Score}, nil
}

// View is a certificate joined with its skill, exam and holder.
type View struct {
	models.Certificate
	SkillTitle       string `json:"skill_title"`
	SkillCategory    string `json:"skill_category"`
	SkillDescription string `json:"skill_description,omitempty"`
	ExamScore        int    `json:"exam_score"`
	UserName         string `json:"user_name,omitempty"`
}

func (s *Service) joined(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("certificates c").
		Select("c.*, s.title AS skill_title, s.category AS skill_category, s.description AS skill_description, e.score AS exam_score, u.name AS user_name").
		Joins("JOIN skills s ON s.id = c.skill_id").
		Joins("JOIN exams e ON e.id = c.exam_id").
		Joins("JOIN users u ON u.id = c.user_id")
}

type Page struct {
	Certificates []View            `json:"certificates"`
	Pagination   models.Pagination `json:"pagination"`
}

// List returns the user's certificates, newest first. status "" or "all"
// disables the status filter.
func (s *Service) List(ctx context.Context, userID uint, status string, page, limit int) (Page, error) {
	page, limit = models.NormalizePage(page, limit, defaultListLimit, maxListLimit)

	count := s.db.WithContext(ctx).Model(&models.Certificate{}).Where("user_id = ?", userID)
	q := s.joined(ctx).Where("c.user_id = ?", userID)
	if status != "" && status != "all" {
		count = count.Where("status = ?", status)
		q = q.Where("c.status = ?", status)
	}

	var total int64
	if err := count.Count(&total).Error; err != nil {
		return Page{}, fmt.Errorf("count certificates: %w", err)
	}
	p := models.NewPagination(page, limit, total)

	views := []View{}
	if err := q.Order("c.issue_date DESC, c.id DESC").Limit(limit).Offset(p.Offset()).Scan(&views).Error; err != nil {
		return Page{}, fmt.Errorf("list certificates: %w", err)
	}
	return Page{Certificates: views, Pagination: p}, nil
}

func (s *Service) Get(ctx context.Context, userID, id uint) (View, error) {
	var views []View
	if err := s.joined(ctx).Where("c.id = ? AND c.user_id = ?", id, userID).Limit(1).Scan(&views).Error; err != nil {
		return View{}, fmt.Errorf("load certificate: %w", err)
	}
	if len(views) == 0 {
		return View{}, apierr.NotFound(msgNotFound)
	}
	return views[0], nil
}

// Public is the projection shown to third parties verifying a credential.
type Public struct {
	ID            uint      `json:"id"`
	Title         string    `json:"title"`
	UserName      string    `json:"user_name"`
	SkillTitle    string    `json:"skill_title"`
	SkillCategory string    `json:"skill_category"`
	Score         int       `json:"score"`
	IssueDate     time.Time `json:"issue_date"`
	ExpiryDate    time.Time `json:"expiry_date"`
	Status        string    `json:"status"`
	CredentialID  string    `json:"credential_id"`
}

type Verification struct {
	Valid       bool   `json:"valid"`
	Certificate Public `json:"certificate"`
}

// Verify looks up a credential. A known but expired or revoked
// certificate is returned with Valid false.
func (s *Service) Verify(ctx context.Context, credentialID string) (Verification, error) {
	var views []View
	if err := s.joined(ctx).Where("c.credential_id = ?", credentialID).Limit(1).Scan(&views).Error; err != nil {
		return Verification{}, fmt.Errorf("verify certificate: %w", err)
	}
	if len(views) == 0 {
		return Verification{}, apierr.NotFound(msgNotFound)
	}
	v := views[0]
	return Verification{
		Valid: IsValid(v.Status, v.ExpiryDate, s.Clock()),
		Certificate: Public{
			ID:            v.ID,
			Title:         v.Title,
			UserName:      v.UserName,
			SkillTitle:    v.SkillTitle,
			SkillCategory: v.SkillCategory,
			Score:         v.ExamScore,
			IssueDate:     v.IssueDate,
			ExpiryDate:    v.ExpiryDate,
			Status:        v.Status,
			CredentialID:  v.CredentialID,
		},
	}, nil
}

// Revoke moves an active certificate to revoked. actorID is the admin
// performing it and is recorded in the activity log.
func (s *Service) Revoke(ctx context.Context, actorID, id uint) (models.Certificate, error) {
	var cert models.Certificate
	err := store.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.First(&cert, id).Error; err != nil {
			if store.IsNotFound(err) {
				return apierr.NotFound(msgNotFound)
			}
			return fmt.Errorf("load certificate: %w", err)
		}
		res := tx.Model(&models.Certificate{}).
			Where("id = ? AND status = ?", cert.ID, models.CertificateActive).
			Update("status", models.CertificateRevoked)
		if res.Error != nil {
			return fmt.Errorf("revoke certificate: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apierr.Conflict(msgNotActive)
		}
		cert.Status = models.CertificateRevoked
		return activity.Record(tx, activity.Entry{
			UserID:     actorID,
			Action:     activity.ActionCertificateRevoked,
			EntityType: "certificate",
			EntityID:   cert.ID,
			Metadata:   map[string]any{"holderId": cert.UserID},
		})
	})
	if err != nil {
		return models.Certificate{}, err
	}
	s.log.Info("certificate revoked", "certificate_id", cert.ID, "actor_id", actorID)
	return cert, nil
}

// ExpireDue marks active certificates whose expiry_date is not after now
// as expired and returns how many changed.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Certificate{}).
		Where("status = ? AND expiry_date <= ?", models.CertificateActive, now.UTC()).
		Update("status", models.CertificateExpired)
	if res.Error != nil {
		return 0, fmt.Errorf("expire certificates: %w", res.Error)
	}
	return res.RowsAffected, nil
}
