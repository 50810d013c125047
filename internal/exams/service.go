// Package exams runs the exam lifecycle: creation with generated
// questions, start, submission with grading, and result review.
package exams

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"vmxio.com/skillforge/internal/achievements"
	"vmxio.com/skillforge/internal/activity"
	"vmxio.com/skillforge/internal/apierr"
	"vmxio.com/skillforge/internal/logger"
	"vmxio.com/skillforge/internal/metrics"
	"vmxio.com/skillforge/internal/models"
	"vmxio.com/skillforge/internal/questionbank"
	"vmxio.com/skillforge/internal/store"
)

const (
	msgExamNotFound    = "Exam not found"
	msgNotSubmittable  = "Exam not found or already completed"
	msgResultsNotFound = "Exam results not found"
	msgSkillNotFound   = "Skill not found"
	msgAlreadyStarted  = "Exam already started or completed"

	defaultListLimit = 10
	maxListLimit     = 100
)

var openStatuses = []string{models.ExamDraft, models.ExamActive}

type Service struct {
	db  *gorm.DB
	log *logger.Logger
	// Clock drives streak and timestamp decisions; tests pin it.
	Clock func() time.Time
}

func NewService(db *gorm.DB, log *logger.Logger) *Service {
	return &Service{db: db, log: log, Clock: func() time.Time { return time.Now().UTC() }}
}

type CreateInput struct {
	SkillID        uint   `json:"skillId" binding:"required"`
	Title          string `json:"title" binding:"required,min=3,max=200"`
	Description    string `json:"description" binding:"max=500"`
	Difficulty     string `json:"difficulty" binding:"required,oneof=Novice Intermediate Expert Master"`
	QuestionsCount int    `json:"questionsCount" binding:"required,min=5,max=50"`
	TimeLimit      int    `json:"timeLimit" binding:"required,min=10,max=180"`
}

type CreateResult struct {
	ExamID             uint `json:"examId"`
	QuestionsGenerated int  `json:"questionsGenerated"`
}

// Create stores a draft exam and its generated questions in one
// transaction.
func (s *Service) Create(ctx context.Context, userID uint, in CreateInput) (CreateResult, error) {
	var skill models.Skill
	if err := s.db.WithContext(ctx).First(&skill, in.SkillID).Error; err != nil {
		if store.IsNotFound(err) {
			return CreateResult{}, apierr.NotFound(msgSkillNotFound)
		}
		return CreateResult{}, fmt.Errorf("load skill: %w", err)
	}

	exam := models.Exam{
		UserID:         userID,
		SkillID:        skill.ID,
		Title:          in.Title,
		Description:    in.Description,
		Difficulty:     in.Difficulty,
		QuestionsCount: in.QuestionsCount,
		TimeLimit:      in.TimeLimit,
		Status:         models.ExamDraft,
	}
	templates := questionbank.Generate(in.Difficulty, in.QuestionsCount)

	err := store.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.Create(&exam).Error; err != nil {
			return fmt.Errorf("create exam: %w", err)
		}
		questions := make([]models.Question, 0, len(templates))
		for _, t := range templates {
			opts, err := json.Marshal(t.Options)
			if err != nil {
				return fmt.Errorf("encode options: %w", err)
			}
			questions = append(questions, models.Question{
				ExamID:        exam.ID,
				QuestionText:  t.Text,
				Options:       datatypes.JSON(opts),
				CorrectAnswer: t.CorrectIndex,
				Explanation:   t.Explanation,
				Points:        t.Points,
			})
		}
		if len(questions) > 0 {
			if err := tx.Create(&questions).Error; err != nil {
				return fmt.Errorf("create questions: %w", err)
			}
		}
		return activity.Record(tx, activity.Entry{
			UserID:     userID,
			Action:     activity.ActionExamCreated,
			EntityType: "exam",
			EntityID:   exam.ID,
			Metadata:   map[string]any{"skillId": skill.ID, "difficulty": in.Difficulty, "questionsCount": len(questions)},
		})
	})
	if err != nil {
		return CreateResult{}, err
	}

	s.log.Info("exam created", "exam_id", exam.ID, "user_id", userID, "questions", len(templates))
	return CreateResult{ExamID: exam.ID, QuestionsGenerated: len(templates)}, nil
}

// ExamView is an exam with its skill's title and category.
type ExamView struct {
	models.Exam
	SkillTitle    string `json:"skill_title"`
	SkillCategory string `json:"skill_category"`
}

type QuestionView struct {
	ID           uint           `json:"id"`
	QuestionText string         `json:"question_text"`
	Options      datatypes.JSON `json:"options"`
	Points       int            `json:"points"`
}

type ExamDetail struct {
	Exam      ExamView       `json:"exam"`
	Questions []QuestionView `json:"questions"`
}

func (s *Service) Get(ctx context.Context, userID, examID uint) (ExamDetail, error) {
	exam, err := s.loadOwned(s.db.WithContext(ctx), userID, examID, nil, msgExamNotFound)
	if err != nil {
		return ExamDetail{}, err
	}
	view, err := s.withSkill(ctx, exam)
	if err != nil {
		return ExamDetail{}, err
	}
	var questions []models.Question
	if err := s.db.WithContext(ctx).Where("exam_id = ?", exam.ID).Order("id ASC").Find(&questions).Error; err != nil {
		return ExamDetail{}, fmt.Errorf("load questions: %w", err)
	}
	out := make([]QuestionView, 0, len(questions))
	for _, q := range questions {
		out = append(out, QuestionView{ID: q.ID, QuestionText: q.QuestionText, Options: q.Options, Points: q.Points})
	}
	return ExamDetail{Exam: view, Questions: out}, nil
}

type ListFilter struct {
	Page       int
	Limit      int
	Status     string
	Difficulty string
	SkillID    uint
}

type ExamPage struct {
	Exams      []ExamView        `json:"exams"`
	Pagination models.Pagination `json:"pagination"`
}

// List returns the user's exams, newest first.
func (s *Service) List(ctx context.Context, userID uint, f ListFilter) (ExamPage, error) {
	page, limit := models.NormalizePage(f.Page, f.Limit, defaultListLimit, maxListLimit)

	q := s.db.WithContext(ctx).Model(&models.Exam{}).Where("user_id = ?", userID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Difficulty != "" {
		q = q.Where("difficulty = ?", f.Difficulty)
	}
	if f.SkillID != 0 {
		q = q.Where("skill_id = ?", f.SkillID)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return ExamPage{}, fmt.Errorf("count exams: %w", err)
	}
	p := models.NewPagination(page, limit, total)

	var exams []models.Exam
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(p.Offset()).Find(&exams).Error; err != nil {
		return ExamPage{}, fmt.Errorf("list exams: %w", err)
	}

	skills, err := s.skillsByID(ctx, exams)
	if err != nil {
		return ExamPage{}, err
	}
	views := make([]ExamView, 0, len(exams))
	for _, e := range exams {
		sk := skills[e.SkillID]
		views = append(views, ExamView{Exam: e, SkillTitle: sk.Title, SkillCategory: sk.Category})
	}
	return ExamPage{Exams: views, Pagination: p}, nil
}

// Start moves a draft exam to active and stamps started_at.
func (s *Service) Start(ctx context.Context, userID, examID uint) (models.Exam, error) {
	var exam models.Exam
	err := store.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		e, err := s.loadOwned(tx, userID, examID, nil, msgExamNotFound)
		if err != nil {
			return err
		}
		if e.Status != models.ExamDraft {
			return apierr.Conflict(msgAlreadyStarted)
		}
		now := s.Clock()
		res := tx.Model(&models.Exam{}).
			Where("id = ? AND status = ?", e.ID, models.ExamDraft).
			Updates(map[string]any{"status": models.ExamActive, "started_at": now})
		if res.Error != nil {
			return fmt.Errorf("start exam: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apierr.Conflict(msgAlreadyStarted)
		}
		e.Status = models.ExamActive
		e.StartedAt = &now
		exam = e
		return activity.Record(tx, activity.Entry{UserID: userID, Action: activity.ActionExamStarted, EntityType: "exam", EntityID: e.ID})
	})
	return exam, err
}

type SubmitInput struct {
	Answers   []*int `json:"answers" binding:"required"`
	TimeSpent int    `json:"timeSpent" binding:"min=0"`
}

type SubmitResult struct {
	Score                int      `json:"score"`
	CorrectAnswers       int      `json:"correctAnswers"`
	TotalQuestions       int      `json:"totalQuestions"`
	EarnedPoints         int      `json:"earnedPoints"`
	TotalPoints          int      `json:"totalPoints"`
	TimeSpent            int      `json:"timeSpent"`
	Passed               bool     `json:"passed"`
	UnlockedAchievements []string `json:"unlockedAchievements"`
}

// Submit grades the answers and completes the exam. Every write happens in
// one transaction; a concurrent second submit finds no open exam and
// rolls back.
func (s *Service) Submit(ctx context.Context, userID, examID uint, in SubmitInput) (SubmitResult, error) {
	if in.TimeSpent < 0 {
		return SubmitResult{}, apierr.Validation("Validation failed", apierr.FieldError{Field: "timeSpent", Message: "must be greater than or equal to 0"})
	}

	var (
		result SubmitResult
		exam   models.Exam
	)
	err := store.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		exam, err = s.loadOwned(tx, userID, examID, openStatuses, msgNotSubmittable)
		if err != nil {
			return err
		}

		var questions []models.Question
		if err := tx.Where("exam_id = ?", exam.ID).Order("id ASC").Find(&questions).Error; err != nil {
			return fmt.Errorf("load questions: %w", err)
		}
		if len(in.Answers) > len(questions) {
			return apierr.Validation("Validation failed", apierr.FieldError{
				Field:   "answers",
				Message: fmt.Sprintf("must contain at most %d entries", len(questions)),
			})
		}

		g := Grade(questions, in.Answers, in.TimeSpent)
		now := s.Clock()

		rows := make([]models.UserAnswer, 0, len(g.Answers))
		for _, a := range g.Answers {
			rows = append(rows, models.UserAnswer{
				ExamID:         exam.ID,
				QuestionID:     a.QuestionID,
				UserID:         userID,
				SelectedAnswer: a.Selected,
				IsCorrect:      a.IsCorrect,
				TimeSpent:      a.TimeSpent,
			})
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("save answers: %w", err)
			}
		}

		res := tx.Model(&models.Exam{}).
			Where("id = ? AND status IN ?", exam.ID, openStatuses).
			Updates(map[string]any{"status": models.ExamCompleted, "score": g.Score, "completed_at": now})
		if res.Error != nil {
			return fmt.Errorf("complete exam: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apierr.NotFound(msgNotSubmittable)
		}

		streak, err := s.touchUser(tx, userID, g.EarnedPoints, now)
		if err != nil {
			return err
		}
		if err := raiseSkillProgress(tx, userID, exam, g.Score, now); err != nil {
			return err
		}
		unlocked, err := achievements.Evaluate(tx, userID, achievements.Facts{Score: g.Score, Streak: streak})
		if err != nil {
			return err
		}
		if unlocked == nil {
			unlocked = []string{}
		}

		result = SubmitResult{
			Score:                g.Score,
			CorrectAnswers:       g.Correct,
			TotalQuestions:       len(questions),
			EarnedPoints:         g.EarnedPoints,
			TotalPoints:          g.TotalPoints,
			TimeSpent:            in.TimeSpent,
			Passed:               g.Score >= models.PassingScore,
			UnlockedAchievements: unlocked,
		}
		return activity.Record(tx, activity.Entry{
			UserID:     userID,
			Action:     activity.ActionExamSubmitted,
			EntityType: "exam",
			EntityID:   exam.ID,
			Metadata:   map[string]any{"score": g.Score, "earnedPoints": g.EarnedPoints},
		})
	})
	if err != nil {
		return SubmitResult{}, err
	}

	metrics.ExamsSubmitted.WithLabelValues(exam.Difficulty, metrics.PassLabel(result.Score, models.PassingScore)).Inc()
	s.log.Info("exam submitted", "exam_id", exam.ID, "user_id", userID, "score", result.Score)
	return result, nil
}

// touchUser credits points and advances the streak; it returns the new
// streak.
func (s *Service) touchUser(tx *gorm.DB, userID uint, earned int, now time.Time) (int, error) {
	var user models.User
	if err := tx.Select("id", "streak", "last_activity_at").First(&user, userID).Error; err != nil {
		return 0, fmt.Errorf("load user: %w", err)
	}
	streak := NextStreak(user.Streak, user.LastActivityAt, now)
	err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
		"points":           gorm.Expr("points + ?", earned),
		"streak":           streak,
		"last_activity_at": now,
	}).Error
	if err != nil {
		return 0, fmt.Errorf("update user: %w", err)
	}
	return streak, nil
}

// raiseSkillProgress never lowers progress or mastery. Mastery only moves
// on a passing score.
func raiseSkillProgress(tx *gorm.DB, userID uint, exam models.Exam, score int, now time.Time) error {
	var us models.UserSkill
	err := tx.Where("user_id = ? AND skill_id = ?", userID, exam.SkillID).First(&us).Error
	if store.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load enrollment: %w", err)
	}

	updates := map[string]any{}
	if score > us.Progress {
		updates["progress"] = score
		if score >= 100 && us.CompletedAt == nil {
			updates["completed_at"] = now
		}
	}
	if score >= models.PassingScore && models.DifficultyRank(exam.Difficulty) > models.DifficultyRank(us.MasteryLevel) {
		updates["mastery_level"] = exam.Difficulty
	}
	if len(updates) == 0 {
		return nil
	}
	if err := tx.Model(&models.UserSkill{}).Where("id = ?", us.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return nil
}

type ResultRow struct {
	QuestionID     uint           `json:"question_id"`
	QuestionText   string         `json:"question_text"`
	Options        datatypes.JSON `json:"options"`
	CorrectAnswer  int            `json:"correct_answer"`
	Explanation    string         `json:"explanation"`
	Points         int            `json:"points"`
	SelectedAnswer *int           `json:"selected_answer"`
	IsCorrect      bool           `json:"is_correct"`
	TimeSpent      int            `json:"time_spent"`
}

type ResultSummary struct {
	TotalQuestions int `json:"totalQuestions"`
	CorrectAnswers int `json:"correctAnswers"`
	Score          int `json:"score"`
	TotalTimeSpent int `json:"totalTimeSpent"`
}

type ExamResults struct {
	Exam    ExamView      `json:"exam"`
	Results []ResultRow   `json:"results"`
	Summary ResultSummary `json:"summary"`
}

// Results reveals answers and explanations, for completed exams only.
func (s *Service) Results(ctx context.Context, userID, examID uint) (ExamResults, error) {
	exam, err := s.loadOwned(s.db.WithContext(ctx), userID, examID, []string{models.ExamCompleted}, msgResultsNotFound)
	if err != nil {
		return ExamResults{}, err
	}
	view, err := s.withSkill(ctx, exam)
	if err != nil {
		return ExamResults{}, err
	}

	var questions []models.Question
	if err := s.db.WithContext(ctx).Where("exam_id = ?", exam.ID).Order("id ASC").Find(&questions).Error; err != nil {
		return ExamResults{}, fmt.Errorf("load questions: %w", err)
	}
	var answers []models.UserAnswer
	if err := s.db.WithContext(ctx).Where("exam_id = ? AND user_id = ?", exam.ID, userID).Find(&answers).Error; err != nil {
		return ExamResults{}, fmt.Errorf("load answers: %w", err)
	}
	byQuestion := make(map[uint]models.UserAnswer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	out := ExamResults{Exam: view, Results: make([]ResultRow, 0, len(questions))}
	for _, q := range questions {
		a := byQuestion[q.ID]
		out.Results = append(out.Results, ResultRow{
			QuestionID:     q.ID,
			QuestionText:   q.QuestionText,
			Options:        q.Options,
			CorrectAnswer:  q.CorrectAnswer,
			Explanation:    q.Explanation,
			Points:         q.Points,
			SelectedAnswer: a.SelectedAnswer,
			IsCorrect:      a.IsCorrect,
			TimeSpent:      a.TimeSpent,
		})
		if a.IsCorrect {
			out.Summary.CorrectAnswers++
		}
		out.Summary.TotalTimeSpent += a.TimeSpent
	}
	out.Summary.TotalQuestions = len(questions)
	if exam.Score != nil {
		out.Summary.Score = *exam.Score
	}
	return out, nil
}

// loadOwned fetches an exam owned by userID, optionally restricted to
// statuses; anything else is NotFound with msg.
func (s *Service) loadOwned(db *gorm.DB, userID, examID uint, statuses []string, msg string) (models.Exam, error) {
	q := db.Where("id = ? AND user_id = ?", examID, userID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var exam models.Exam
	if err := q.First(&exam).Error; err != nil {
		if store.IsNotFound(err) {
			return models.Exam{}, apierr.NotFound(msg)
		}
		return models.Exam{}, fmt.Errorf("load exam: %w", err)
	}
	return exam, nil
}

func (s *Service) withSkill(ctx context.Context, exam models.Exam) (ExamView, error) {
	var skill models.Skill
	if err := s.db.WithContext(ctx).Select("id", "title", "category").First(&skill, exam.SkillID).Error; err != nil && !store.IsNotFound(err) {
		return ExamView{}, fmt.Errorf("load skill: %w", err)
	}
	return ExamView{Exam: exam, SkillTitle: skill.Title, SkillCategory: skill.Category}, nil
}

func (s *Service) skillsByID(ctx context.Context, exams []models.Exam) (map[uint]models.Skill, error) {
	out := map[uint]models.Skill{}
	if len(exams) == 0 {
		return out, nil
	}
	ids := make([]uint, 0, len(exams))
	for _, e := range exams {
		ids = append(ids, e.SkillID)
	}
	var skills []models.Skill
	if err := s.db.WithContext(ctx).Select("id", "title", "category").Where("id IN ?", ids).Find(&skills).Error; err != nil {
		return nil, fmt.Errorf("load skills: %w", err)
	}
	for _, sk := range skills {
		out[sk.ID] = sk
	}
	return out, nil
}

// ExpireStale moves draft and active exams created before cutoff to
// expired. Completed exams are never touched.
func (s *Service) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Exam{}).
		Where("status IN ? AND created_at < ?", []string{models.ExamDraft, models.ExamActive}, cutoff.UTC()).
		Update("status", models.ExamExpired)
	if res.Error != nil {
		return 0, fmt.Errorf("expire exams: %w", res.Error)
	}
	return res.RowsAffected, nil
}
