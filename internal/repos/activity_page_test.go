package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/adapta-backend/internal/types"
)

func TestActivityPageUpsertKeepsSurvivingID(t *testing.T) {
	gormDB := runTestDB(t)
	repo := NewActivityPageRepo(gormDB, nil)
	ctx := context.Background()
	activityID := uuid.New()

	first := &types.ActivityPage{ActivityID: activityID, PageNumber: 1, ImageKey: "pages/a.png", Width: 100, Height: 60}
	if err := repo.Upsert(ctx, first, nil); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}

	// Re-rasterizing the same page must update in place and hand the
	// caller the id of the surviving row, not the fresh insert id.
	second := &types.ActivityPage{ActivityID: activityID, PageNumber: 1, ImageKey: "pages/b.png", Width: 200, Height: 120}
	if err := repo.Upsert(ctx, second, nil); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert returned id %s, want surviving id %s", second.ID, first.ID)
	}

	pages, err := repo.ListByActivityID(ctx, activityID, nil)
	if err != nil {
		t.Fatalf("ListByActivityID() error = %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("got %d pages after re-upsert, want 1", len(pages))
	}
	if pages[0].ImageKey != "pages/b.png" || pages[0].Width != 200 {
		t.Fatalf("conflict did not replace the image: %+v", pages[0])
	}
}

func TestOcrExtractionUpsertKeepsSurvivingID(t *testing.T) {
	gormDB := runTestDB(t)
	pageRepo := NewActivityPageRepo(gormDB, nil)
	ocrRepo := NewOcrExtractionRepo(gormDB, nil)
	ctx := context.Background()

	page := &types.ActivityPage{ActivityID: uuid.New(), PageNumber: 1, ImageKey: "pages/a.png"}
	if err := pageRepo.Upsert(ctx, page, nil); err != nil {
		t.Fatalf("page Upsert() error = %v", err)
	}

	first := &types.OcrExtraction{ActivityPageID: page.ID, Engine: "tesseract", RawText: "2 + 3", Layout: datatypes.JSON(`[]`)}
	if err := ocrRepo.Upsert(ctx, first, nil); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}
	second := &types.OcrExtraction{ActivityPageID: page.ID, Engine: "tesseract", RawText: "2 + 3 = ?", Layout: datatypes.JSON(`[]`)}
	if err := ocrRepo.Upsert(ctx, second, nil); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert returned id %s, want surviving id %s", second.ID, first.ID)
	}

	got, err := ocrRepo.GetByPageID(ctx, page.ID, nil)
	if err != nil {
		t.Fatalf("GetByPageID() error = %v", err)
	}
	if got.ID != first.ID || got.RawText != "2 + 3 = ?" {
		t.Fatalf("conflict did not replace in place: %+v", got)
	}

	var count int64
	if err := gormDB.Model(&types.OcrExtraction{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count extractions: %v", err)
	}
	if count != 1 {
		t.Fatalf("got %d extraction rows after re-upsert, want 1", count)
	}
}
