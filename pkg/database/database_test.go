package database

import (
	"course_lms_backend/internal/config"
	"course_lms_backend/internal/model"
	"path/filepath"
	"testing"
)

func TestInitDBSQLiteMigrates(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "lms.db"),
	}

	db, err := InitDB(cfg, true)
	if err != nil {
		t.Fatalf("init db: %v", err)
	}

	for _, m := range model.All() {
		if !db.Migrator().HasTable(m) {
			t.Fatalf("table for %T not created", m)
		}
	}
}

func TestInitDBRejectsUnknownDriver(t *testing.T) {
	if _, err := InitDB(&config.DatabaseConfig{Driver: "oracle"}, false); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestInitRedisDisabled(t *testing.T) {
	rdb, err := InitRedis(&config.RedisConfig{Enabled: false})
	if err != nil || rdb != nil {
		t.Fatalf("expected nil client without error, got %v %v", rdb, err)
	}
}
