package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/types"
)

type OcrExtractionRepo interface {
	Upsert(ctx context.Context, extraction *types.OcrExtraction, tx *gorm.DB) error
	GetByPageID(ctx context.Context, pageID uuid.UUID, tx *gorm.DB) (*types.OcrExtraction, error)
	ListByActivityID(ctx context.Context, activityID uuid.UUID, tx *gorm.DB) ([]types.OcrExtraction, error)
	DeleteByActivityID(ctx context.Context, activityID uuid.UUID, tx *gorm.DB) error
}

type ocrExtractionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOcrExtractionRepo(db *gorm.DB, log *logger.Logger) OcrExtractionRepo {
	return &ocrExtractionRepo{db: db, log: log}
}

func (r *ocrExtractionRepo) dbFrom(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Upsert keeps at most one extraction per page; re-running OCR
// replaces the previous result. On conflict the existing row keeps its
// id, so the caller's struct is reloaded to carry the surviving id for
// dependent writes.
func (r *ocrExtractionRepo) Upsert(ctx context.Context, extraction *types.OcrExtraction, tx *gorm.DB) error {
	if extraction.ID == uuid.Nil {
		extraction.ID = uuid.New()
	}
	if err := r.dbFrom(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "activity_page_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"engine", "raw_text", "avg_confidence", "layout", "updated_at"}),
		}).
		Create(extraction).Error; err != nil {
		return err
	}
	var stored types.OcrExtraction
	if err := r.dbFrom(tx).WithContext(ctx).
		Select("id", "created_at").
		First(&stored, "activity_page_id = ?", extraction.ActivityPageID).Error; err != nil {
		return err
	}
	extraction.ID = stored.ID
	extraction.CreatedAt = stored.CreatedAt
	return nil
}

func (r *ocrExtractionRepo) GetByPageID(ctx context.Context, pageID uuid.UUID, tx *gorm.DB) (*types.OcrExtraction, error) {
	var extraction types.OcrExtraction
	if err := r.dbFrom(tx).WithContext(ctx).First(&extraction, "activity_page_id = ?", pageID).Error; err != nil {
		return nil, err
	}
	return &extraction, nil
}

// ListByActivityID returns extractions joined through the page table,
// ordered by page number.
func (r *ocrExtractionRepo) ListByActivityID(ctx context.Context, activityID uuid.UUID, tx *gorm.DB) ([]types.OcrExtraction, error) {
	var extractions []types.OcrExtraction
	if err := r.dbFrom(tx).WithContext(ctx).
		Joins("JOIN activity_page ON activity_page.id = ocr_extraction.activity_page_id").
		Where("activity_page.activity_id = ?", activityID).
		Order("activity_page.page_number ASC").
		Find(&extractions).Error; err != nil {
		return nil, err
	}
	return extractions, nil
}

func (r *ocrExtractionRepo) DeleteByActivityID(ctx context.Context, activityID uuid.UUID, tx *gorm.DB) error {
	return r.dbFrom(tx).WithContext(ctx).
		Where("activity_page_id IN (?)",
			r.dbFrom(tx).Model(&types.ActivityPage{}).Select("id").Where("activity_id = ?", activityID)).
		Delete(&types.OcrExtraction{}).Error
}
