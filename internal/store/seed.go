package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"vmxio.com/skillforge/internal/models"
)

// ==== JSON input structures ====

type SkillInput struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	Difficulty     string   `json:"difficulty"`
	Topics         []string `json:"topics"`
	EstimatedHours int      `json:"estimatedHours"`
	Popularity     int      `json:"popularity"`
	ImageURL       string   `json:"imageUrl"`
}

type AchievementInput struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	Icon             string `json:"icon"`
	Category         string `json:"category"`
	Points           int    `json:"points"`
	Rarity           string `json:"rarity"`
	RequirementType  string `json:"requirementType"`
	RequirementValue int    `json:"requirementValue"`
}

type SeedData struct {
	Skills       []SkillInput       `json:"skills"`
	Achievements []AchievementInput `json:"achievements"`
}

// LoadSeedFile reads a catalog file. A missing file is not an error; the
// built-in catalog is returned instead.
func LoadSeedFile(path string) (SeedData, bool, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) || path == "" {
		return DefaultSeed(), false, nil
	}
	if err != nil {
		return SeedData{}, false, err
	}
	var data SeedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return SeedData{}, false, fmt.Errorf("json parse: %w", err)
	}

	seen := map[string]bool{}
	dups := []string{}
	for _, s := range data.Skills {
		key := strings.ToLower(strings.TrimSpace(s.Title))
		if seen[key] {
			dups = append(dups, s.Title)
		}
		seen[key] = true
		if models.DifficultyRank(s.Difficulty) < 0 {
			return SeedData{}, false, fmt.Errorf("skill %q: unknown difficulty %q", s.Title, s.Difficulty)
		}
	}
	if len(dups) > 0 {
		return SeedData{}, false, fmt.Errorf("duplicate skill titles in JSON: %v", dups)
	}
	return data, true, nil
}

// Seed inserts the catalog when the skills table is empty.
func Seed(ctx context.Context, db *gorm.DB, data SeedData) (bool, error) {
	empty, err := IsSkillTableEmpty(ctx, db)
	if err != nil || !empty {
		return false, err
	}
	err = WithTx(ctx, db, func(tx *gorm.DB) error {
		for _, in := range data.Skills {
			topics, err := json.Marshal(in.Topics)
			if err != nil {
				return err
			}
			skill := models.Skill{
				Title:          in.Title,
				Description:    in.Description,
				Category:       in.Category,
				Difficulty:     in.Difficulty,
				ImageURL:       in.ImageURL,
				Topics:         datatypes.JSON(topics),
				EstimatedHours: in.EstimatedHours,
				Popularity:     in.Popularity,
			}
			if err := tx.Create(&skill).Error; err != nil {
				return fmt.Errorf("seed skill %q: %w", in.Title, err)
			}
		}
		for _, in := range data.Achievements {
			a := models.Achievement{
				Title:            in.Title,
				Description:      in.Description,
				Icon:             in.Icon,
				Category:         in.Category,
				Points:           in.Points,
				Rarity:           in.Rarity,
				RequirementType:  in.RequirementType,
				RequirementValue: in.RequirementValue,
			}
			if err := tx.Create(&a).Error; err != nil {
				return fmt.Errorf("seed achievement %q: %w", in.Title, err)
			}
		}
		return nil
	})
	return err == nil, err
}

func DefaultSeed() SeedData {
	const img = "https://images.pexels.com/photos/%d/pexels-photo-%d.jpeg?auto=compress&cs=tinysrgb&w=400"
	return SeedData{
		Skills: []SkillInput{
			{
				Title:          "Machine Learning Fundamentals",
				Description:    "Master the core concepts of supervised and unsupervised learning, including algorithms, evaluation metrics, and best practices.",
				Category:       "machine-learning",
				Difficulty:     models.DifficultyIntermediate,
				Topics:         []string{"Supervised Learning", "Unsupervised Learning", "Model Evaluation", "Feature Engineering"},
				EstimatedHours: 40,
				Popularity:     95,
				ImageURL:       fmt.Sprintf(img, 8386440, 8386440),
			},
			{
				Title:          "Deep Neural Networks",
				Description:    "Dive deep into neural network architectures, backpropagation, optimization techniques, and advanced deep learning concepts.",
				Category:       "deep-learning",
				Difficulty:     models.DifficultyExpert,
				Topics:         []string{"Neural Networks", "Backpropagation", "CNN", "RNN", "Optimization"},
				EstimatedHours: 60,
				Popularity:     88,
				ImageURL:       fmt.Sprintf(img, 8386434, 8386434),
			},
			{
				Title:          "Natural Language Processing",
				Description:    "Learn text processing, sentiment analysis, language models, and transformer architectures for NLP applications.",
				Category:       "nlp",
				Difficulty:     models.DifficultyExpert,
				Topics:         []string{"Text Processing", "Transformers", "BERT", "GPT", "Sentiment Analysis"},
				EstimatedHours: 50,
				Popularity:     92,
				ImageURL:       fmt.Sprintf(img, 8386422, 8386422),
			},
			{
				Title:          "Computer Vision Essentials",
				Description:    "Explore image processing, object detection, facial recognition, and convolutional neural networks for vision tasks.",
				Category:       "computer-vision",
				Difficulty:     models.DifficultyIntermediate,
				Topics:         []string{"Image Processing", "Object Detection", "CNN", "OpenCV", "Feature Extraction"},
				EstimatedHours: 45,
				Popularity:     85,
				ImageURL:       fmt.Sprintf(img, 8386427, 8386427),
			},
			{
				Title:          "Data Science Pipeline",
				Description:    "Learn end-to-end data science workflows, from data collection and cleaning to model deployment and monitoring.",
				Category:       "data-science",
				Difficulty:     models.DifficultyIntermediate,
				Topics:         []string{"Data Collection", "Data Cleaning", "EDA", "Model Deployment", "MLOps"},
				EstimatedHours: 55,
				Popularity:     90,
				ImageURL:       fmt.Sprintf(img, 8386431, 8386431),
			},
		},
		Achievements: []AchievementInput{
			{Title: "First Steps", Description: "Complete your first exam", Icon: "BookOpen", Category: "milestone", Points: 100, Rarity: "common", RequirementType: models.RequirementExamCount, RequirementValue: 1},
			{Title: "Quick Learner", Description: "Score 90% or higher on your first exam", Icon: "Zap", Category: "performance", Points: 250, Rarity: "uncommon", RequirementType: models.RequirementFirstExamScore, RequirementValue: 90},
			{Title: "Streak Master", Description: "Maintain a 7-day learning streak", Icon: "Target", Category: "consistency", Points: 300, Rarity: "uncommon", RequirementType: models.RequirementStreak, RequirementValue: 7},
			{Title: "Perfect Score", Description: "Achieve 100% on any exam", Icon: "Star", Category: "performance", Points: 750, Rarity: "rare", RequirementType: models.RequirementPerfectScore, RequirementValue: 100},
			{Title: "AI Master", Description: "Achieve mastery in all core AI skills", Icon: "Crown", Category: "mastery", Points: 2500, Rarity: "legendary", RequirementType: models.RequirementSkillsMastered, RequirementValue: 5},
		},
	}
}
