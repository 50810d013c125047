package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	gormlogger "gorm.io/gorm/logger"

	"vmxio.com/skillforge/internal/achievements"
	"vmxio.com/skillforge/internal/analytics"
	"vmxio.com/skillforge/internal/auth"
	"vmxio.com/skillforge/internal/cache"
	"vmxio.com/skillforge/internal/certificates"
	"vmxio.com/skillforge/internal/config"
	"vmxio.com/skillforge/internal/exams"
	httpapi "vmxio.com/skillforge/internal/http"
	"vmxio.com/skillforge/internal/jobs"
	"vmxio.com/skillforge/internal/logger"
	"vmxio.com/skillforge/internal/skills"
	"vmxio.com/skillforge/internal/store"
	"vmxio.com/skillforge/internal/telemetry"
	"vmxio.com/skillforge/internal/users"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	appLog, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer appLog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1) Tracing
	shutdownTracing, err := telemetry.Setup(ctx, appLog, telemetry.Config{
		Exporter:    cfg.OTELExporter,
		ServiceName: cfg.OTELServiceName,
		Environment: cfg.AppEnv,
	})
	if err != nil {
		appLog.Warn("tracing disabled", "error", err)
	}

	// 2) DB
	gormLevel := gormlogger.Warn
	if cfg.IsProduction() {
		gormLevel = gormlogger.Error
	}
	db, err := store.Open(cfg.DatabaseURL, gormLevel)
	if err != nil {
		appLog.Fatal("open db", "error", err)
	}
	if err := store.AutoMigrate(db); err != nil {
		appLog.Fatal("migrate", "error", err)
	}

	// 3) Seed (if empty)
	data, fromFile, err := store.LoadSeedFile(cfg.SeedFile)
	if err != nil {
		appLog.Fatal("load seed", "path", cfg.SeedFile, "error", err)
	}
	seeded, err := store.Seed(ctx, db, data)
	if err != nil {
		appLog.Fatal("seed", "error", err)
	}
	if seeded {
		appLog.Info("catalog seeded", "skills", len(data.Skills), "from_file", fromFile)
	}

	// 4) Leaderboard cache
	var lbCache cache.Cache = cache.Noop{}
	if cfg.RedisAddr != "" {
		r, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, "skillforge:")
		if err != nil {
			appLog.Warn("redis unavailable, leaderboard cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			lbCache = r
		}
	}
	defer lbCache.Close()

	// 5) Services
	authSvc := auth.NewService(db, appLog, auth.TokenConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, TTL: cfg.JWTTTL})
	authSvc.AdminEmails = cfg.AdminEmails
	examSvc := exams.NewService(db, appLog)
	certSvc := certificates.NewService(db, appLog)

	jobs.StartExpiryJob(ctx, cfg, jobs.Expiry{
		Certificates: certSvc,
		Exams:        examSvc,
		ExamTTL:      cfg.ExamTTL,
		Log:          appLog.With("job", "expiry"),
	})

	// 6) Router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(httpapi.Deps{
		Config:       cfg,
		Log:          appLog,
		Auth:         authSvc,
		Skills:       skills.NewService(db, appLog),
		Exams:        examSvc,
		Certificates: certSvc,
		Analytics:    analytics.NewService(db, appLog, lbCache, cfg.LeaderboardCacheTTL),
		Users:        users.NewService(db, appLog),
		Achievements: achievements.NewService(db),
	})

	// 7) Server
	srv := httpapi.NewServer(cfg.HTTPAddr, router)
	go func() {
		appLog.Info("listening", "addr", cfg.HTTPAddr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("serve", "error", err)
		}
	}()

	<-ctx.Done()
	appLog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("server shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		appLog.Error("tracing shutdown", "error", err)
	}
	if err := store.Close(db); err != nil {
		appLog.Error("close db", "error", err)
	}
}
