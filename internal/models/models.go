package models

import (
	"time"

	"gorm.io/datatypes"
)

// --- Users ---

const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

type User struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Email          string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash   string     `gorm:"column:password;not null" json:"-"`
	Name           string     `gorm:"size:100;not null" json:"name"`
	Role           string     `gorm:"size:16;not null;default:student" json:"role"`
	Avatar         *string    `json:"avatar,omitempty"`
	Bio            *string    `json:"bio,omitempty"`
	Location       *string    `json:"location,omitempty"`
	Phone          *string    `json:"phone,omitempty"`
	Website        *string    `json:"website,omitempty"`
	LinkedIn       *string    `gorm:"column:linkedin" json:"linkedin,omitempty"`
	GitHub         *string    `gorm:"column:github" json:"github,omitempty"`
	Points         int        `gorm:"not null;default:0" json:"points"`
	Streak         int        `gorm:"not null;default:0" json:"streak"`
	IsActive       bool       `gorm:"not null;default:true" json:"is_active"`
	EmailVerified  bool       `gorm:"not null;default:false" json:"email_verified"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// --- Skills ---

const (
	DifficultyNovice       = "Novice"
	DifficultyIntermediate = "Intermediate"
	DifficultyExpert       = "Expert"
	DifficultyMaster       = "Master"
)

// Difficulties is ordered from lowest to highest tier.
var Difficulties = []string{DifficultyNovice, DifficultyIntermediate, DifficultyExpert, DifficultyMaster}

// DifficultyRank returns the position of d in Difficulties, or -1.
func DifficultyRank(d string) int {
	for i, v := range Difficulties {
		if v == d {
			return i
		}
	}
	return -1
}

type Skill struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Title          string         `gorm:"not null" json:"title"`
	Description    string         `json:"description"`
	Category       string         `gorm:"index;not null" json:"category"`
	Difficulty     string         `gorm:"size:16" json:"difficulty"`
	ImageURL       string         `json:"image_url"`
	Topics         datatypes.JSON `json:"topics"` // ["Supervised Learning", ...]
	EstimatedHours int            `json:"estimated_hours"`
	Popularity     int            `gorm:"not null;default:0" json:"popularity"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// --- Exams ---

// PassingScore is the minimum exam score, in percent, that passes an exam and
// earns a certificate.
const PassingScore = 70

const (
	ExamDraft     = "draft"
	ExamActive    = "active"
	ExamCompleted = "completed"
	ExamExpired   = "expired"
)

type Exam struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"index;not null" json:"user_id"`
	User           *User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	SkillID        uint       `gorm:"index;not null" json:"skill_id"`
	Skill          *Skill     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Title          string     `gorm:"not null" json:"title"`
	Description    string     `json:"description"`
	Difficulty     string     `gorm:"size:16" json:"difficulty"`
	QuestionsCount int        `gorm:"not null" json:"questions_count"`
	TimeLimit      int        `gorm:"not null" json:"time_limit"` // minutes
	Status         string     `gorm:"size:16;not null;default:draft;index" json:"status"`
	Score          *int       `json:"score"` // set only once completed
	StartedAt      *time.Time `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type Question struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	ExamID        uint           `gorm:"index;not null" json:"exam_id"`
	Exam          *Exam          `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	QuestionText  string         `gorm:"not null" json:"question_text"`
	Options       datatypes.JSON `gorm:"not null" json:"options"` // ["a", "b", ...]
	CorrectAnswer int            `gorm:"not null" json:"-"`
	Explanation   string         `json:"-"`
	Points        int            `gorm:"not null;default:1" json:"points"`
	CreatedAt     time.Time      `json:"created_at"`
}

type UserAnswer struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ExamID         uint      `gorm:"index;not null" json:"exam_id"`
	Exam           *Exam     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	QuestionID     uint      `gorm:"index;not null" json:"question_id"`
	Question       *Question `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	UserID         uint      `gorm:"index;not null" json:"user_id"`
	User           *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	SelectedAnswer *int      `json:"selected_answer"`
	IsCorrect      bool      `gorm:"not null" json:"is_correct"`
	TimeSpent      int       `json:"time_spent"` // seconds
	CreatedAt      time.Time `json:"created_at"`
}

// --- Certificates ---

const (
	CertificateActive  = "active"
	CertificateExpired = "expired"
	CertificateRevoked = "revoked"
)

type Certificate struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"index;not null" json:"user_id"`
	User           *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	SkillID        uint      `gorm:"not null" json:"skill_id"`
	Skill          *Skill    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ExamID         uint      `gorm:"uniqueIndex;not null" json:"exam_id"`
	Exam           *Exam     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Title          string    `gorm:"not null" json:"title"`
	Description    string    `json:"description"`
	Score          int       `gorm:"not null" json:"score"`
	CredentialID   string    `gorm:"uniqueIndex;size:64;not null" json:"credential_id"`
	IssueDate      time.Time `gorm:"not null" json:"issue_date"`
	ExpiryDate     time.Time `gorm:"not null" json:"expiry_date"`
	Status         string    `gorm:"size:16;not null;default:active" json:"status"`
	CertificateURL *string   `json:"certificate_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// --- Enrollment ---

type UserSkill struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"uniqueIndex:idx_user_skill;not null" json:"user_id"`
	User         *User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	SkillID      uint       `gorm:"uniqueIndex:idx_user_skill;not null" json:"skill_id"`
	Skill        *Skill     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Progress     int        `gorm:"not null;default:0" json:"progress"`
	MasteryLevel string     `gorm:"size:16;not null;default:Novice" json:"mastery_level"`
	EnrolledAt   time.Time  `gorm:"autoCreateTime" json:"enrolled_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

// --- Achievements ---

const (
	RequirementExamCount      = "exam_count"
	RequirementFirstExamScore = "first_exam_score"
	RequirementStreak         = "streak"
	RequirementPerfectScore   = "perfect_score"
	RequirementSkillsMastered = "skills_mastered"
)

type Achievement struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Title            string    `gorm:"not null" json:"title"`
	Description      string    `json:"description"`
	Icon             string    `json:"icon"`
	Category         string    `json:"category"`
	Points           int       `gorm:"not null;default:0" json:"points"`
	Rarity           string    `gorm:"size:16" json:"rarity"`
	RequirementType  string    `gorm:"size:32" json:"requirement_type"`
	RequirementValue int       `json:"requirement_value"`
	CreatedAt        time.Time `json:"created_at"`
}

type UserAchievement struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	UserID        uint         `gorm:"uniqueIndex:idx_user_achievement;not null" json:"user_id"`
	User          *User        `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	AchievementID uint         `gorm:"uniqueIndex:idx_user_achievement;not null" json:"achievement_id"`
	Achievement   *Achievement `gorm:"constraint:OnDelete:CASCADE" json:"achievement,omitempty"`
	UnlockedAt    time.Time    `gorm:"autoCreateTime" json:"unlocked_at"`
}

// --- Activity ---

type ActivityLog struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	UserID     uint           `gorm:"index;not null" json:"user_id"`
	User       *User          `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Action     string         `gorm:"size:64;not null" json:"action"`
	EntityType string         `gorm:"size:32" json:"entity_type"`
	EntityID   uint           `json:"entity_id"`
	Metadata   datatypes.JSON `json:"metadata"`
	IPAddress  string         `gorm:"size:64" json:"ip_address"`
	UserAgent  string         `json:"user_agent"`
	CreatedAt  time.Time      `json:"created_at"`
}
