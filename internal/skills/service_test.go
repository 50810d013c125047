package skills_test

import (
	"context"
	"net/http"
	"testing"

	"gorm.io/gorm"

	"vmxio.com/skillforge/internal/apierr"
	"vmxio.com/skillforge/internal/logger"
	"vmxio.com/skillforge/internal/models"
	"vmxio.com/skillforge/internal/skills"
	"vmxio.com/skillforge/internal/store/storetest"
)

func newService(t *testing.T) (*skills.Service, *gorm.DB, models.User) {
	t.Helper()
	db := storetest.Seeded(t)
	user := storetest.CreateUser(t, db, "learner@example.com", models.RoleStudent)
	return skills.NewService(db, logger.Nop()), db, user
}

func skillByTitle(t *testing.T, db *gorm.DB, title string) models.Skill {
	t.Helper()
	var s models.Skill
	if err := db.Where("title = ?", title).First(&s).Error; err != nil {
		t.Fatalf("load skill %q: %v", title, err)
	}
	return s
}

func intPtr(v int) *int { return &v }

func TestListSortAndFilter(t *testing.T) {
	svc, _, user := newService(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		filter    skills.ListFilter
		wantTotal int64
		wantFirst string
	}{
		{"default popularity", skills.ListFilter{}, 5, "Machine Learning Fundamentals"},
		{"unknown sort", skills.ListFilter{Sort: "bogus"}, 5, "Machine Learning Fundamentals"},
		{"title", skills.ListFilter{Sort: "title"}, 5, "Computer Vision Essentials"},
		{"difficulty", skills.ListFilter{Sort: "difficulty"}, 5, "Computer Vision Essentials"},
		{"category", skills.ListFilter{Category: "nlp"}, 1, "Natural Language Processing"},
		{"category all", skills.ListFilter{Category: "all"}, 5, "Machine Learning Fundamentals"},
		{"difficulty filter", skills.ListFilter{Difficulty: models.DifficultyExpert}, 2, "Natural Language Processing"},
		{"search is case insensitive", skills.ListFilter{Search: "NEURAL"}, 2, "Deep Neural Networks"},
		{"no match", skills.ListFilter{Search: "quantum"}, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.List(ctx, user.ID, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if page.Pagination.Total != tt.wantTotal {
				t.Fatalf("expected total %d, got %d", tt.wantTotal, page.Pagination.Total)
			}
			if tt.wantFirst == "" {
				if len(page.Skills) != 0 {
					t.Fatalf("expected no skills, got %d", len(page.Skills))
				}
				return
			}
			if page.Skills[0].Title != tt.wantFirst {
				t.Fatalf("expected %q first, got %q", tt.wantFirst, page.Skills[0].Title)
			}
		})
	}
}

func TestListPagination(t *testing.T) {
	svc, _, user := newService(t)
	page, err := svc.List(context.Background(), user.ID, skills.ListFilter{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Pagination.Pages != 3 || page.Pagination.Page != 2 || len(page.Skills) != 2 {
		t.Fatalf("unexpected page %+v with %d skills", page.Pagination, len(page.Skills))
	}
}

func TestEnroll(t *testing.T) {
	svc, db, user := newService(t)
	ctx := context.Background()
	nlp := skillByTitle(t, db, "Natural Language Processing")

	us, err := svc.Enroll(ctx, user.ID, nlp.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if us.MasteryLevel != models.DifficultyNovice || us.Progress != 0 {
		t.Fatalf("unexpected enrollment %+v", us)
	}
	if got := skillByTitle(t, db, nlp.Title); got.Popularity != nlp.Popularity+1 {
		t.Fatalf("expected popularity %d, got %d", nlp.Popularity+1, got.Popularity)
	}

	_, err = svc.Enroll(ctx, user.ID, nlp.ID)
	if apiErr := apierr.From(err); apiErr == nil || apiErr.Status != http.StatusConflict || apiErr.Message != "Already enrolled in this skill" {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := svc.Enroll(ctx, user.ID, 9999); apierr.StatusOf(err) != http.StatusNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	view, err := svc.Get(ctx, user.ID, nlp.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !view.IsEnrolled || view.MasteryLevel == nil || *view.MasteryLevel != models.DifficultyNovice || view.EnrolledAt == nil {
		t.Fatalf("unexpected view %+v", view)
	}

	other := storetest.CreateUser(t, db, "other@example.com", models.RoleStudent)
	view, err = svc.Get(ctx, other.ID, nlp.ID)
	if err != nil || view.IsEnrolled || view.UserProgress != 0 {
		t.Fatalf("expected unenrolled view for other user, got %+v (%v)", view, err)
	}
}

func TestUpdateProgress(t *testing.T) {
	svc, db, user := newService(t)
	ctx := context.Background()
	ml := skillByTitle(t, db, "Machine Learning Fundamentals")
	if _, err := svc.Enroll(ctx, user.ID, ml.ID); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	tests := []struct {
		name    string
		in      skills.ProgressInput
		want    int
		message string
	}{
		{"too high", skills.ProgressInput{Progress: intPtr(101)}, http.StatusBadRequest, "Progress must be between 0 and 100"},
		{"negative", skills.ProgressInput{Progress: intPtr(-1)}, http.StatusBadRequest, "Progress must be between 0 and 100"},
		{"missing", skills.ProgressInput{}, http.StatusBadRequest, "Progress must be between 0 and 100"},
		{"bad mastery", skills.ProgressInput{Progress: intPtr(50), MasteryLevel: "Guru"}, http.StatusBadRequest, "Invalid mastery level"},
		{"partial", skills.ProgressInput{Progress: intPtr(40), MasteryLevel: models.DifficultyIntermediate}, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.UpdateProgress(ctx, user.ID, ml.ID, tt.in)
			if got := apierr.StatusOf(err); got != tt.want {
				t.Fatalf("expected %d, got %d (%v)", tt.want, got, err)
			}
			if tt.message != "" && apierr.From(err).Message != tt.message {
				t.Fatalf("unexpected message %q", apierr.From(err).Message)
			}
		})
	}

	view, _ := svc.Get(ctx, user.ID, ml.ID)
	if view.UserProgress != 40 || view.CompletedAt != nil || *view.MasteryLevel != models.DifficultyIntermediate {
		t.Fatalf("unexpected progress view %+v", view)
	}

	if err := svc.UpdateProgress(ctx, user.ID, ml.ID, skills.ProgressInput{Progress: intPtr(100)}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	view, _ = svc.Get(ctx, user.ID, ml.ID)
	if view.UserProgress != 100 || view.CompletedAt == nil {
		t.Fatalf("expected completion, got %+v", view)
	}

	nlp := skillByTitle(t, db, "Natural Language Processing")
	err := svc.UpdateProgress(ctx, user.ID, nlp.ID, skills.ProgressInput{Progress: intPtr(10)})
	if apiErr := apierr.From(err); apiErr == nil || apiErr.Status != http.StatusNotFound || apiErr.Message != "Skill enrollment not found" {
		t.Fatalf("expected enrollment not found, got %v", err)
	}
}

func TestEnrolledAndCreate(t *testing.T) {
	svc, db, user := newService(t)
	ctx := context.Background()

	list, err := svc.Enrolled(ctx, user.ID)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list, got %d (%v)", len(list), err)
	}

	created, err := svc.Create(ctx, user.ID, skills.CreateInput{
		Title:      "  Reinforcement Learning ",
		Category:   "machine-learning",
		Difficulty: models.DifficultyMaster,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Title != "Reinforcement Learning" || string(created.Topics) != "[]" {
		t.Fatalf("unexpected skill %+v", created)
	}

	first := skillByTitle(t, db, "Computer Vision Essentials")
	for _, id := range []uint{first.ID, created.ID} {
		if _, err := svc.Enroll(ctx, user.ID, id); err != nil {
			t.Fatalf("enroll %d: %v", id, err)
		}
	}
	list, err = svc.Enrolled(ctx, user.ID)
	if err != nil || len(list) != 2 {
		t.Fatalf("expected two enrolled skills, got %d (%v)", len(list), err)
	}
	for _, v := range list {
		if !v.IsEnrolled {
			t.Fatalf("expected enrolled flag on %q", v.Title)
		}
	}
}
