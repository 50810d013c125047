package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"vmxio.com/skillforge/internal/achievements"
	"vmxio.com/skillforge/internal/analytics"
	"vmxio.com/skillforge/internal/auth"
	"vmxio.com/skillforge/internal/certificates"
	"vmxio.com/skillforge/internal/config"
	"vmxio.com/skillforge/internal/exams"
	"vmxio.com/skillforge/internal/logger"
	"vmxio.com/skillforge/internal/models"
	"vmxio.com/skillforge/internal/skills"
	"vmxio.com/skillforge/internal/store/storetest"
	"vmxio.com/skillforge/internal/users"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Valid   *bool           `json:"valid"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

type testAPI struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := storetest.Seeded(t)
	log := logger.Nop()

	authSvc := auth.NewService(db, log, auth.TokenConfig{Secret: "test-secret", Issuer: "skillforge", TTL: time.Hour})
	authSvc.HashCost = bcrypt.MinCost
	authSvc.AdminEmails = []string{"admin@example.com"}
	usersSvc := users.NewService(db, log)
	usersSvc.HashCost = bcrypt.MinCost

	router := NewRouter(Deps{
		Config:       config.Config{CORSOrigins: []string{"http://example.test"}, RequestTimeout: 5 * time.Second},
		Log:          log,
		Auth:         authSvc,
		Skills:       skills.NewService(db, log),
		Exams:        exams.NewService(db, log),
		Certificates: certificates.NewService(db, log),
		Analytics:    analytics.NewService(db, log, nil, time.Minute),
		Users:        usersSvc,
		Achievements: achievements.NewService(db),
	})
	return &testAPI{t: t, db: db, router: router}
}

func (a *testAPI) do(method, path, token string, body any) (int, apiResponse) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Header().Get("Content-Type") != "" && bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			a.t.Fatalf("decode %s %s: %v (%s)", method, path, err, w.Body.String())
		}
	}
	return w.Code, resp
}

func (a *testAPI) register(email string) string {
	a.t.Helper()
	code, resp := a.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Tester", "email": email, "password": "secret123",
	})
	if code != http.StatusCreated {
		a.t.Fatalf("register %s: %d %s", email, code, resp.Message)
	}
	var session struct {
		Token string `json:"token"`
	}
	decode(a.t, resp.Data, &session)
	return session.Token
}

func decode(t *testing.T, raw json.RawMessage, dst any) {
	t.Helper()
	if err := json.Unmarshal(raw, dst); err != nil {
		t.Fatalf("decode data: %v (%s)", err, raw)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/healthz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		api.router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
		if w.Header().Get(headerRequestID) == "" {
			t.Fatalf("%s: missing request id header", path)
		}
	}
}

func TestAuthGate(t *testing.T) {
	api := newTestAPI(t)
	student := api.register("student@example.com")

	tests := []struct {
		name    string
		method  string
		path    string
		token   string
		want    int
		message string
	}{
		{"missing token", http.MethodGet, "/api/auth/me", "", http.StatusUnauthorized, "Access token required"},
		{"bad token", http.MethodGet, "/api/auth/me", "not-a-jwt", http.StatusForbidden, "Invalid or expired token"},
		{"valid token", http.MethodGet, "/api/auth/me", student, http.StatusOK, ""},
		{"student creates skill", http.MethodPost, "/api/skills", student, http.StatusForbidden, "Insufficient permissions"},
		{"student revokes", http.MethodPost, "/api/certificates/1/revoke", student, http.StatusForbidden, "Insufficient permissions"},
		{"public verify", http.MethodGet, "/api/certificates/verify/SF-0-00000000", "", http.StatusNotFound, "Certificate not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := api.do(tt.method, tt.path, tt.token, map[string]string{})
			if code != tt.want {
				t.Fatalf("expected %d, got %d (%s)", tt.want, code, resp.Message)
			}
			if tt.message != "" && resp.Message != tt.message {
				t.Fatalf("expected message %q, got %q", tt.message, resp.Message)
			}
		})
	}
}

func TestValidationErrors(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("valid@example.com")

	code, resp := api.do(http.MethodPost, "/api/auth/register", "", map[string]string{"name": "A", "email": "nope", "password": "1"})
	if code != http.StatusBadRequest || resp.Success {
		t.Fatalf("expected 400, got %d", code)
	}
	fields := map[string]bool{}
	for _, e := range resp.Errors {
		fields[e.Field] = true
	}
	for _, f := range []string{"name", "email", "password"} {
		if !fields[f] {
			t.Fatalf("expected field error for %q, got %+v", f, resp.Errors)
		}
	}

	code, resp = api.do(http.MethodPatch, "/api/users/profile", token, `{"bio":"hi","points":9999}`)
	if code != http.StatusBadRequest || len(resp.Errors) != 1 || resp.Errors[0].Field != "points" {
		t.Fatalf("expected unknown field rejection, got %d %+v", code, resp.Errors)
	}
	code, resp = api.do(http.MethodPatch, "/api/users/profile", token, `{}`)
	if code != http.StatusBadRequest || resp.Message != "No fields to update" {
		t.Fatalf("expected empty patch rejection, got %d %q", code, resp.Message)
	}
	code, _ = api.do(http.MethodPatch, "/api/users/profile", token, `{"bio":"Learning Go"}`)
	if code != http.StatusOK {
		t.Fatalf("expected profile update, got %d", code)
	}

	code, _ = api.do(http.MethodGet, "/api/exams/abc", token, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", code)
	}
}

func TestExamToCertificateFlow(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("flow@example.com")
	admin := api.register("admin@example.com")

	var skill models.Skill
	api.db.Where("title = ?", "Machine Learning Fundamentals").First(&skill)

	code, resp := api.do(http.MethodPost, "/api/skills/"+itoa(skill.ID)+"/enroll", token, nil)
	if code != http.StatusCreated {
		t.Fatalf("enroll: %d %s", code, resp.Message)
	}

	code, resp = api.do(http.MethodPost, "/api/exams", token, map[string]any{
		"skillId": skill.ID, "title": "ML check", "difficulty": "Intermediate", "questionsCount": 5, "timeLimit": 30,
	})
	if code != http.StatusCreated {
		t.Fatalf("create exam: %d %s %+v", code, resp.Message, resp.Errors)
	}
	var created exams.CreateResult
	decode(t, resp.Data, &created)
	examPath := "/api/exams/" + itoa(created.ExamID)

	code, resp = api.do(http.MethodGet, examPath, token, nil)
	if code != http.StatusOK || bytes.Contains(resp.Data, []byte("correct_answer")) {
		t.Fatalf("get exam leaked answers or failed: %d %s", code, resp.Data)
	}
	if code, _ = api.do(http.MethodPost, examPath+"/start", token, nil); code != http.StatusOK {
		t.Fatalf("start: %d", code)
	}
	if code, _ = api.do(http.MethodGet, examPath+"/results", token, nil); code != http.StatusNotFound {
		t.Fatalf("results before submit: expected 404, got %d", code)
	}

	var questions []models.Question
	api.db.Where("exam_id = ?", created.ExamID).Order("id ASC").Find(&questions)
	answers := make([]int, len(questions))
	for i, q := range questions {
		answers[i] = q.CorrectAnswer
	}
	code, resp = api.do(http.MethodPost, examPath+"/submit", token, map[string]any{"answers": answers, "timeSpent": 300})
	if code != http.StatusOK {
		t.Fatalf("submit: %d %s", code, resp.Message)
	}
	var graded exams.SubmitResult
	decode(t, resp.Data, &graded)
	if graded.Score != 100 || !graded.Passed {
		t.Fatalf("unexpected grading %+v", graded)
	}
	if code, _ = api.do(http.MethodPost, examPath+"/submit", token, map[string]any{"answers": answers}); code != http.StatusNotFound {
		t.Fatalf("resubmit: expected 404, got %d", code)
	}

	code, resp = api.do(http.MethodPost, "/api/certificates/generate", token, map[string]any{"examId": created.ExamID})
	if code != http.StatusCreated {
		t.Fatalf("generate: %d %s", code, resp.Message)
	}
	var issued certificates.Issued
	decode(t, resp.Data, &issued)

	code, resp = api.do(http.MethodGet, "/api/certificates/verify/"+issued.CredentialID, "", nil)
	if code != http.StatusOK || resp.Valid == nil || !*resp.Valid {
		t.Fatalf("verify: %d %+v", code, resp)
	}

	code, _ = api.do(http.MethodPost, "/api/certificates/"+itoa(issued.CertificateID)+"/revoke", admin, nil)
	if code != http.StatusOK {
		t.Fatalf("revoke: %d", code)
	}
	_, resp = api.do(http.MethodGet, "/api/certificates/verify/"+issued.CredentialID, "", nil)
	if resp.Valid == nil || *resp.Valid {
		t.Fatalf("revoked certificate still valid: %+v", resp)
	}

	code, resp = api.do(http.MethodGet, "/api/analytics/leaderboard?timeframe=week", token, nil)
	if code != http.StatusOK {
		t.Fatalf("leaderboard: %d", code)
	}
	var board analytics.Leaderboard
	decode(t, resp.Data, &board)
	if len(board.Leaderboard) == 0 || board.Leaderboard[0].Rank != 1 {
		t.Fatalf("unexpected leaderboard %+v", board)
	}

	code, resp = api.do(http.MethodGet, "/api/users/stats", token, nil)
	if code != http.StatusOK {
		t.Fatalf("stats: %d", code)
	}
	var stats struct {
		Stats users.Stats `json:"stats"`
	}
	decode(t, resp.Data, &stats)
	if stats.Stats.ExamsCompleted != 1 || stats.Stats.AverageScore != 100 || stats.Stats.TotalStudyTime != 5 {
		t.Fatalf("unexpected stats %+v", stats.Stats)
	}
}

func TestRegisterIgnoresRequestedRole(t *testing.T) {
	api := newTestAPI(t)

	holder := storetest.CreateUser(t, api.db, "holder@example.com", models.RoleStudent)
	var skill models.Skill
	api.db.Where("title = ?", "Machine Learning Fundamentals").First(&skill)
	score := 90
	exam := models.Exam{UserID: holder.ID, SkillID: skill.ID, Title: "ML", QuestionsCount: 5, TimeLimit: 30, Status: models.ExamCompleted, Score: &score}
	if err := api.db.Create(&exam).Error; err != nil {
		t.Fatalf("create exam: %v", err)
	}
	now := time.Now().UTC()
	cert := models.Certificate{
		UserID: holder.ID, SkillID: skill.ID, ExamID: exam.ID, Title: "ML", Score: score,
		CredentialID: "SF-HOLDER", IssueDate: now, ExpiryDate: now.AddDate(2, 0, 0), Status: models.CertificateActive,
	}
	if err := api.db.Create(&cert).Error; err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	code, resp := api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Mallory", "email": "mallory@example.com", "password": "secret123", "role": models.RoleAdmin,
	})
	if code != http.StatusCreated {
		t.Fatalf("register: %d %s", code, resp.Message)
	}
	var session struct {
		User  models.User `json:"user"`
		Token string      `json:"token"`
	}
	decode(t, resp.Data, &session)
	if session.User.Role != models.RoleStudent {
		t.Fatalf("expected student role, got %s", session.User.Role)
	}

	code, resp = api.do(http.MethodGet, "/api/auth/me", session.Token, nil)
	if code != http.StatusOK || bytes.Contains(resp.Data, []byte(`"role":"admin"`)) {
		t.Fatalf("token carries elevated role: %d %s", code, resp.Data)
	}

	code, resp = api.do(http.MethodPost, "/api/certificates/"+itoa(cert.ID)+"/revoke", session.Token, nil)
	if code != http.StatusForbidden || resp.Message != "Insufficient permissions" {
		t.Fatalf("expected 403, got %d %s", code, resp.Message)
	}
	_, resp = api.do(http.MethodGet, "/api/certificates/verify/SF-HOLDER", "", nil)
	if resp.Valid == nil || !*resp.Valid {
		t.Fatalf("certificate no longer valid: %+v", resp)
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
