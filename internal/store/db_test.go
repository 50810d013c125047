package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"vmxio.com/skillforge/internal/models"
	"vmxio.com/skillforge/internal/store"
	"vmxio.com/skillforge/internal/store/storetest"
)

func TestSeedOnlyOnce(t *testing.T) {
	db := storetest.New(t)
	ctx := context.Background()

	seeded, err := store.Seed(ctx, db, store.DefaultSeed())
	if err != nil || !seeded {
		t.Fatalf("expected first seed to run, seeded=%v err=%v", seeded, err)
	}
	seeded, err = store.Seed(ctx, db, store.DefaultSeed())
	if err != nil || seeded {
		t.Fatalf("expected second seed to be skipped, seeded=%v err=%v", seeded, err)
	}

	var skills, achievements int64
	db.Model(&models.Skill{}).Count(&skills)
	db.Model(&models.Achievement{}).Count(&achievements)
	if skills != 5 || achievements != 5 {
		t.Fatalf("expected 5 skills and 5 achievements, got %d and %d", skills, achievements)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	db := storetest.New(t)
	boom := errors.New("boom")

	err := store.WithTx(context.Background(), db, func(tx *gorm.DB) error {
		u := models.User{Email: "a@example.com", Name: "A", Role: models.RoleStudent, PasswordHash: "x"}
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var count int64
	db.Model(&models.User{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected rollback, found %d users", count)
	}
}

func TestIsDuplicate(t *testing.T) {
	db := storetest.New(t)
	storetest.CreateUser(t, db, "dup@example.com", models.RoleStudent)
	u := models.User{Email: "dup@example.com", Name: "B", Role: models.RoleStudent, PasswordHash: "x"}
	err := db.Create(&u).Error
	if !store.IsDuplicate(err) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestLoadSeedFile(t *testing.T) {
	data, fromFile, err := store.LoadSeedFile(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil || fromFile || len(data.Skills) != 5 {
		t.Fatalf("expected built-in catalog, fromFile=%v err=%v", fromFile, err)
	}

	path := filepath.Join(t.TempDir(), "seed.json")
	raw := `{"skills":[{"title":"Go","category":"backend","difficulty":"Novice","topics":["syntax"]}],"achievements":[]}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, fromFile, err = store.LoadSeedFile(path)
	if err != nil || !fromFile {
		t.Fatalf("expected file catalog, fromFile=%v err=%v", fromFile, err)
	}
	if len(data.Skills) != 1 || data.Skills[0].Topics[0] != "syntax" {
		t.Fatalf("unexpected skills %+v", data.Skills)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	raw = `{"skills":[{"title":"Go","category":"backend","difficulty":"Guru"}]}`
	if err := os.WriteFile(bad, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := store.LoadSeedFile(bad); err == nil {
		t.Fatalf("expected unknown difficulty to fail")
	}
}
