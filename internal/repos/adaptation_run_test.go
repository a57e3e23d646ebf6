package repos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/adapta-backend/internal/db"
	"github.com/yungbote/adapta-backend/internal/types"
)

func runTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := db.NewSqliteDB(nil, ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	return gormDB
}

func seedRun(t *testing.T, repo AdaptationRunRepo) *types.AdaptationRun {
	t.Helper()
	run := &types.AdaptationRun{
		ActivityID: uuid.New(),
		StudentID:  uuid.New(),
		UserID:     uuid.New(),
	}
	if err := repo.Create(context.Background(), run, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return run
}

func TestClaimNextRunnable(t *testing.T) {
	repo := NewAdaptationRunRepo(runTestDB(t), nil)
	ctx := context.Background()

	if _, err := repo.ClaimNextRunnable(ctx); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("claim on empty queue error = %v, want record not found", err)
	}

	run := seedRun(t, repo)
	claimed, err := repo.ClaimNextRunnable(ctx)
	if err != nil {
		t.Fatalf("ClaimNextRunnable() error = %v", err)
	}
	if claimed.ID != run.ID {
		t.Fatalf("claimed wrong run: %s != %s", claimed.ID, run.ID)
	}
	if claimed.Status != types.RunStatusRasterizing {
		t.Fatalf("claimed status = %q, want rasterizing", claimed.Status)
	}
	if claimed.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", claimed.Attempts)
	}

	// The run is no longer pending, so a second claim finds nothing.
	if _, err := repo.ClaimNextRunnable(ctx); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("second claim error = %v, want record not found", err)
	}
}

func TestAdvanceStatusGuardsPredecessor(t *testing.T) {
	repo := NewAdaptationRunRepo(runTestDB(t), nil)
	ctx := context.Background()
	run := seedRun(t, repo)
	if _, err := repo.ClaimNextRunnable(ctx); err != nil {
		t.Fatalf("claim error = %v", err)
	}

	if err := repo.AdvanceStatus(ctx, run.ID, types.RunStatusRasterizing, types.RunStatusExtractingText, nil, nil); err != nil {
		t.Fatalf("forward advance error = %v", err)
	}
	// Advancing from a status the run already left must not apply.
	err := repo.AdvanceStatus(ctx, run.ID, types.RunStatusRasterizing, types.RunStatusExtractingText, nil, nil)
	if !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("stale advance error = %v, want ErrStaleTransition", err)
	}
	got, err := repo.GetByID(ctx, run.ID, nil)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != types.RunStatusExtractingText {
		t.Fatalf("status = %q, want extracting_text", got.Status)
	}
}

func TestMarkFailedOnlyFromNonTerminal(t *testing.T) {
	repo := NewAdaptationRunRepo(runTestDB(t), nil)
	ctx := context.Background()
	run := seedRun(t, repo)

	if err := repo.MarkFailed(ctx, run.ID, "rasterizing: boom", nil); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	got, err := repo.GetByID(ctx, run.ID, nil)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != types.RunStatusFailed || got.Error != "rasterizing: boom" {
		t.Fatalf("run after failure: status=%q error=%q", got.Status, got.Error)
	}
	// Failed is terminal: a second failure attempt changes nothing.
	if err := repo.MarkFailed(ctx, run.ID, "other", nil); !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("MarkFailed() on terminal run error = %v, want ErrStaleTransition", err)
	}
}

func TestMarkFailedClearsPersistedPlan(t *testing.T) {
	repo := NewAdaptationRunRepo(runTestDB(t), nil)
	ctx := context.Background()
	run := seedRun(t, repo)
	if _, err := repo.ClaimNextRunnable(ctx); err != nil {
		t.Fatalf("claim error = %v", err)
	}
	// A plan is persisted on the way into rendering; a later failure
	// must not leave it behind on the terminal row.
	err := repo.UpdateFields(ctx, run.ID, map[string]interface{}{
		"plan": datatypes.JSON(`{"version":"1.0"}`),
	}, nil)
	if err != nil {
		t.Fatalf("UpdateFields() error = %v", err)
	}

	if err := repo.MarkFailed(ctx, run.ID, "rendering: boom", nil); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	got, err := repo.GetByID(ctx, run.ID, nil)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != types.RunStatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if len(got.Plan) != 0 {
		t.Fatalf("failed run still carries a plan: %s", got.Plan)
	}
}

func TestGetActiveByActivityID(t *testing.T) {
	repo := NewAdaptationRunRepo(runTestDB(t), nil)
	ctx := context.Background()
	run := seedRun(t, repo)

	active, err := repo.GetActiveByActivityID(ctx, run.ActivityID, nil)
	if err != nil {
		t.Fatalf("GetActiveByActivityID() error = %v", err)
	}
	if active.ID != run.ID {
		t.Fatalf("active run = %s, want %s", active.ID, run.ID)
	}

	if err := repo.MarkFailed(ctx, run.ID, "done", nil); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	if _, err := repo.GetActiveByActivityID(ctx, run.ActivityID, nil); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("terminal run still reported active, err = %v", err)
	}
}

func TestFailStale(t *testing.T) {
	gormDB := runTestDB(t)
	repo := NewAdaptationRunRepo(gormDB, nil)
	ctx := context.Background()
	run := seedRun(t, repo)
	if _, err := repo.ClaimNextRunnable(ctx); err != nil {
		t.Fatalf("claim error = %v", err)
	}

	// Fresh heartbeat: nothing to sweep.
	count, err := repo.FailStale(ctx, time.Minute)
	if err != nil {
		t.Fatalf("FailStale() error = %v", err)
	}
	if count != 0 {
		t.Fatalf("swept %d fresh runs, want 0", count)
	}

	old := time.Now().UTC().Add(-time.Hour)
	if err := gormDB.Model(&types.AdaptationRun{}).Where("id = ?", run.ID).
		Update("heartbeat_at", old).Error; err != nil {
		t.Fatalf("failed to age heartbeat: %v", err)
	}
	count, err = repo.FailStale(ctx, time.Minute)
	if err != nil {
		t.Fatalf("FailStale() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("swept %d runs, want 1", count)
	}
	got, err := repo.GetByID(ctx, run.ID, nil)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != types.RunStatusFailed {
		t.Fatalf("stale run status = %q, want failed", got.Status)
	}
}
