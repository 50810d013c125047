package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"vmxio.com/skillforge/internal/models"
)

// Open connects to postgres when url carries a postgres scheme, and to a
// sqlite file otherwise.
func Open(url string, logLevel gormlogger.LogLevel) (*gorm.DB, error) {
	cfg := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(logLevel),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
	if isPostgres(url) {
		return gorm.Open(postgres.Open(url), cfg)
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(url)), cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite serialises writers anyway; one connection also keeps
	// in-memory databases alive for the process lifetime.
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func isPostgres(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Skill{},
		&models.Exam{},
		&models.Question{},
		&models.UserAnswer{},
		&models.Certificate{},
		&models.UserSkill{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.ActivityLog{},
	)
}

// WithTx runs fn inside a single transaction bound to ctx. Any error
// returned by fn rolls back every write made through tx.
func WithTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}

func IsSkillTableEmpty(ctx context.Context, db *gorm.DB) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&models.Skill{}).Count(&count).Error; err != nil {
		return false, err
	}
	return count == 0, nil
}

// IsDuplicate reports unique-constraint violations from either driver.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return sqlDB.Close()
}
