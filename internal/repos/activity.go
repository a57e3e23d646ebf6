package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/types"
)

type ActivityRepo interface {
	Create(ctx context.Context, activity *types.Activity, tx *gorm.DB) error
	GetByID(ctx context.Context, id uuid.UUID, tx *gorm.DB) (*types.Activity, error)
	ListByStudentID(ctx context.Context, studentID uuid.UUID, tx *gorm.DB) ([]types.Activity, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}, tx *gorm.DB) error
	Delete(ctx context.Context, id uuid.UUID, tx *gorm.DB) error
}

type activityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityRepo(db *gorm.DB, log *logger.Logger) ActivityRepo {
	return &activityRepo{db: db, log: log}
}

func (r *activityRepo) dbFrom(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *activityRepo) Create(ctx context.Context, activity *types.Activity, tx *gorm.DB) error {
	if activity.ID == uuid.Nil {
		activity.ID = uuid.New()
	}
	return r.dbFrom(tx).WithContext(ctx).Create(activity).Error
}

func (r *activityRepo) GetByID(ctx context.Context, id uuid.UUID, tx *gorm.DB) (*types.Activity, error) {
	var activity types.Activity
	if err := r.dbFrom(tx).WithContext(ctx).First(&activity, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &activity, nil
}

func (r *activityRepo) ListByStudentID(ctx context.Context, studentID uuid.UUID, tx *gorm.DB) ([]types.Activity, error) {
	var activities []types.Activity
	if err := r.dbFrom(tx).WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}

func (r *activityRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}, tx *gorm.DB) error {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["updated_at"] = time.Now().UTC()
	return r.dbFrom(tx).WithContext(ctx).
		Model(&types.Activity{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *activityRepo) Delete(ctx context.Context, id uuid.UUID, tx *gorm.DB) error {
	return r.dbFrom(tx).WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.Activity{}).Error
}
