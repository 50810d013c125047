package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevJWTSecret signs tokens when JWT_SECRET is unset. Validate rejects it in
// production.
const DevJWTSecret = "dev-secret"

type Config struct {
	HTTPAddr       string
	AppEnv         string
	DatabaseURL    string
	JWTSecret      string
	JWTIssuer      string
	JWTTTL         time.Duration
	CORSOrigins    []string
	RequestTimeout time.Duration
	AdminEmails    []string

	RedisAddr           string
	RedisPassword       string
	LeaderboardCacheTTL time.Duration

	SeedFile string

	ExpiryJobEnabled  bool
	ExpiryJobInterval time.Duration
	ExamTTL           time.Duration

	OTELExporter    string
	OTELServiceName string
}

// Load reads the environment, after merging an optional .env file from the
// working directory. Variables already set in the process win over .env.
func Load() Config {
	_ = godotenv.Load()

	httpAddr := getenv("HTTP_ADDR", "")
	if httpAddr == "" {
		httpAddr = ":" + getenv("PORT", "8080")
	}

	return Config{
		HTTPAddr:            httpAddr,
		AppEnv:              getenv("APP_ENV", "development"),
		DatabaseURL:         getenv("DATABASE_URL", "skillforge.db"),
		JWTSecret:           getenv("JWT_SECRET", DevJWTSecret),
		JWTIssuer:           getenv("JWT_ISSUER", "skillforge"),
		JWTTTL:              getenvDuration("JWT_TTL", 7*24*time.Hour),
		CORSOrigins:         getenvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		RequestTimeout:      getenvDuration("REQUEST_TIMEOUT", 15*time.Second),
		AdminEmails:         getenvList("ADMIN_EMAILS", nil),
		RedisAddr:           getenv("REDIS_ADDR", ""),
		RedisPassword:       getenv("REDIS_PASSWORD", ""),
		LeaderboardCacheTTL: getenvDuration("LEADERBOARD_CACHE_TTL", 30*time.Second),
		SeedFile:            getenv("SEED_FILE", "data/seed.json"),
		ExpiryJobEnabled:    getenvBool("EXPIRY_JOB_ENABLED", true),
		ExpiryJobInterval:   getenvDuration("EXPIRY_JOB_INTERVAL", time.Hour),
		ExamTTL:             getenvDuration("EXAM_TTL", 7*24*time.Hour),
		OTELExporter:        strings.ToLower(getenv("OTEL_EXPORTER", "none")),
		OTELServiceName:     getenv("OTEL_SERVICE_NAME", "skillforge"),
	}
}

// IsProduction reports whether the service runs with production defaults
// (json logs, gin release mode).
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.AppEnv) {
	case "prod", "production":
		return true
	}
	return false
}

// Validate reports settings that are unsafe for the configured environment.
func (c Config) Validate() error {
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == DevJWTSecret) {
		return errors.New("JWT_SECRET must be set in production")
	}
	return nil
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	val := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch val {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func getenvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	out := []string{}
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
