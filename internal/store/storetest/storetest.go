// Package storetest opens migrated in-memory databases for tests.
package storetest

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"vmxio.com/skillforge/internal/models"
	"vmxio.com/skillforge/internal/store"
)

// New returns a fresh, migrated and empty in-memory sqlite database.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := store.Open("file::memory:", gormlogger.Silent)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := store.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = store.Close(db) })
	return db
}

// Seeded is New plus the built-in skill and achievement catalog.
func Seeded(t testing.TB) *gorm.DB {
	t.Helper()
	db := New(t)
	if _, err := store.Seed(context.Background(), db, store.DefaultSeed()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db
}

func CreateUser(t testing.TB, db *gorm.DB, email, role string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := models.User{Email: email, Name: "Test User", Role: role, PasswordHash: string(hash)}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func CreateSkill(t testing.TB, db *gorm.DB, title, category, difficulty string) models.Skill {
	t.Helper()
	s := models.Skill{
		Title:      title,
		Category:   category,
		Difficulty: difficulty,
		Topics:     datatypes.JSON(`[]`),
	}
	if err := db.Create(&s).Error; err != nil {
		t.Fatalf("create skill: %v", err)
	}
	return s
}
