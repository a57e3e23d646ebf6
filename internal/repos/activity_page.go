package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/types"
)

type ActivityPageRepo interface {
	Upsert(ctx context.Context, page *types.ActivityPage, tx *gorm.DB) error
	GetByID(ctx context.Context, id uuid.UUID, tx *gorm.DB) (*types.ActivityPage, error)
	ListByActivityID(ctx context.Context, activityID uuid.UUID, tx *gorm.DB) ([]types.ActivityPage, error)
	DeleteByActivityID(ctx context.Context, activityID uuid.UUID, tx *gorm.DB) error
}

type activityPageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityPageRepo(db *gorm.DB, log *logger.Logger) ActivityPageRepo {
	return &activityPageRepo{db: db, log: log}
}

func (r *activityPageRepo) dbFrom(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Upsert inserts the page or, if the activity already has a page with
// that number, replaces its image. Re-rasterizing is idempotent. On
// conflict the existing row keeps its id, so the caller's struct is
// reloaded to carry the surviving id for dependent writes.
func (r *activityPageRepo) Upsert(ctx context.Context, page *types.ActivityPage, tx *gorm.DB) error {
	if page.ID == uuid.Nil {
		page.ID = uuid.New()
	}
	if err := r.dbFrom(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "activity_id"}, {Name: "page_number"}},
			DoUpdates: clause.AssignmentColumns([]string{"image_key", "width", "height", "updated_at"}),
		}).
		Create(page).Error; err != nil {
		return err
	}
	var stored types.ActivityPage
	if err := r.dbFrom(tx).WithContext(ctx).
		First(&stored, "activity_id = ? AND page_number = ?", page.ActivityID, page.PageNumber).Error; err != nil {
		return err
	}
	page.ID = stored.ID
	page.CreatedAt = stored.CreatedAt
	return nil
}

func (r *activityPageRepo) GetByID(ctx context.Context, id uuid.UUID, tx *gorm.DB) (*types.ActivityPage, error) {
	var page types.ActivityPage
	if err := r.dbFrom(tx).WithContext(ctx).First(&page, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &page, nil
}

func (r *activityPageRepo) ListByActivityID(ctx context.Context, activityID uuid.UUID, tx *gorm.DB) ([]types.ActivityPage, error) {
	var pages []types.ActivityPage
	if err := r.dbFrom(tx).WithContext(ctx).
		Where("activity_id = ?", activityID).
		Order("page_number ASC").
		Find(&pages).Error; err != nil {
		return nil, err
	}
	return pages, nil
}

func (r *activityPageRepo) DeleteByActivityID(ctx context.Context, activityID uuid.UUID, tx *gorm.DB) error {
	return r.dbFrom(tx).WithContext(ctx).
		Where("activity_id = ?", activityID).
		Delete(&types.ActivityPage{}).Error
}
