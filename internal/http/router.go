// Package http exposes the services over a gin router under /api.
package http

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"vmxio.com/skillforge/internal/achievements"
	"vmxio.com/skillforge/internal/analytics"
	"vmxio.com/skillforge/internal/auth"
	"vmxio.com/skillforge/internal/certificates"
	"vmxio.com/skillforge/internal/config"
	"vmxio.com/skillforge/internal/exams"
	"vmxio.com/skillforge/internal/logger"
	"vmxio.com/skillforge/internal/models"
	"vmxio.com/skillforge/internal/skills"
	"vmxio.com/skillforge/internal/users"
)

type Deps struct {
	Config       config.Config
	Log          *logger.Logger
	Auth         *auth.Service
	Skills       *skills.Service
	Exams        *exams.Service
	Certificates *certificates.Service
	Analytics    *analytics.Service
	Users        *users.Service
	Achievements *achievements.Service
}

func NewRouter(d Deps) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(Recovery())
	r.Use(RequestID())
	r.Use(otelgin.Middleware(d.Config.OTELServiceName))
	r.Use(RequestLogger(d.Log))
	r.Use(Metrics())
	r.Use(cors.New(corsConfig(d.Config.CORSOrigins)))
	r.Use(RequestContext(d.Config.RequestTimeout))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// Public
	api.POST("/auth/register", Register(d.Auth))
	api.POST("/auth/login", Login(d.Auth))
	api.GET("/certificates/verify/:credentialId", VerifyCertificate(d.Certificates))

	protected := api.Group("")
	protected.Use(RequireAuth(d.Auth))
	{
		protected.GET("/auth/me", Me(d.Auth))
		protected.POST("/auth/refresh", RefreshToken(d.Auth))
		protected.POST("/auth/logout", Logout(d.Auth))

		protected.GET("/skills", ListSkills(d.Skills))
		protected.GET("/skills/user/enrolled", EnrolledSkills(d.Skills))
		protected.GET("/skills/:id", GetSkill(d.Skills))
		protected.POST("/skills/:id/enroll", EnrollSkill(d.Skills))
		protected.PATCH("/skills/:id/progress", UpdateSkillProgress(d.Skills))
		protected.POST("/skills", RequireRole(models.RoleAdmin, models.RoleInstructor), CreateSkill(d.Skills))

		protected.POST("/exams", CreateExam(d.Exams))
		protected.GET("/exams", ListExams(d.Exams))
		protected.GET("/exams/:id", GetExam(d.Exams))
		protected.POST("/exams/:id/start", StartExam(d.Exams))
		protected.POST("/exams/:id/submit", SubmitExam(d.Exams))
		protected.GET("/exams/:id/results", ExamResults(d.Exams))

		protected.GET("/certificates", ListCertificates(d.Certificates))
		protected.POST("/certificates/generate", GenerateCertificate(d.Certificates))
		protected.GET("/certificates/:id", GetCertificate(d.Certificates))
		protected.POST("/certificates/:id/revoke", RequireRole(models.RoleAdmin), RevokeCertificate(d.Certificates))

		protected.GET("/analytics/dashboard", Dashboard(d.Analytics))
		protected.GET("/analytics/performance", Performance(d.Analytics))
		protected.GET("/analytics/skills", SkillsAnalytics(d.Analytics))
		protected.GET("/analytics/leaderboard", Leaderboard(d.Analytics))

		protected.PATCH("/users/profile", UpdateProfile(d.Users))
		protected.PATCH("/users/password", ChangePassword(d.Users))
		protected.GET("/users/stats", UserStats(d.Users))
		protected.GET("/users/achievements", UserAchievements(d.Achievements))

		protected.GET("/achievements", ListAchievements(d.Achievements))
	}

	return r
}

// corsConfig allows the configured origins plus any http://localhost:PORT.
func corsConfig(origins []string) cors.Config {
	return cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if slices.Contains(origins, origin) {
				return true
			}
			return strings.HasPrefix(origin, "http://localhost:")
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", headerRequestID},
		ExposeHeaders:    []string{headerRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

// NewServer wraps handler with the listener timeouts used in production.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
