package activity

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Log{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestRecordAndQuery(t *testing.T) {
	db := testDB(t)
	repo := NewRepo(db)
	rec := NewRecorder(repo, nil)
	ctx := context.Background()

	rec.Record(ctx, "j-1", "u-1", TypeJobCreation, "created")
	rec.Record(ctx, "j-1", "u-2", TypeJobClaimed, "claimed")
	rec.Record(ctx, "j-2", "u-1", TypeJobCreation, "created")

	logs, err := repo.ListByJob(ctx, "j-1")
	if err != nil {
		t.Fatalf("ListByJob: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs for j-1, got %d", len(logs))
	}
	for _, l := range logs {
		if l.JobID != "j-1" {
			t.Fatalf("unexpected job id: %s", l.JobID)
		}
		if l.Timestamp.IsZero() {
			t.Fatalf("expected server-assigned timestamp")
		}
	}

	recent, err := repo.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 recent logs, got %d", len(recent))
	}
}

func TestRecorderBestEffort(t *testing.T) {
	// repo 为 nil 时 Record 不应 panic，也不影响调用方
	rec := NewRecorder(nil, nil)
	rec.Record(context.Background(), "j-1", "u-1", TypeStatusUpdate, "noop")
}

func TestDeleteAll(t *testing.T) {
	db := testDB(t)
	repo := NewRepo(db)
	rec := NewRecorder(repo, nil)
	ctx := context.Background()

	rec.Record(ctx, "j-1", "u-1", TypeJobCreation, "created")
	rec.Record(ctx, "", "u-1", "User Registration", "registered")

	n, err := repo.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deleted, got %d", n)
	}
	recent, err := repo.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 0 {
		t.Fatalf("expected empty log after clear, got %d", len(recent))
	}
}
