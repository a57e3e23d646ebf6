package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/types"
)

type StudentRepo interface {
	Create(ctx context.Context, student *types.Student, tx *gorm.DB) error
	GetByID(ctx context.Context, id uuid.UUID, tx *gorm.DB) (*types.Student, error)
	ListByUserID(ctx context.Context, userID uuid.UUID, tx *gorm.DB) ([]types.Student, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}, tx *gorm.DB) error
	Delete(ctx context.Context, id uuid.UUID, tx *gorm.DB) error
}

type studentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudentRepo(db *gorm.DB, log *logger.Logger) StudentRepo {
	return &studentRepo{db: db, log: log}
}

func (r *studentRepo) dbFrom(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *studentRepo) Create(ctx context.Context, student *types.Student, tx *gorm.DB) error {
	if student.ID == uuid.Nil {
		student.ID = uuid.New()
	}
	return r.dbFrom(tx).WithContext(ctx).Create(student).Error
}

func (r *studentRepo) GetByID(ctx context.Context, id uuid.UUID, tx *gorm.DB) (*types.Student, error) {
	var student types.Student
	if err := r.dbFrom(tx).WithContext(ctx).First(&student, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *studentRepo) ListByUserID(ctx context.Context, userID uuid.UUID, tx *gorm.DB) ([]types.Student, error) {
	var students []types.Student
	if err := r.dbFrom(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

func (r *studentRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}, tx *gorm.DB) error {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["updated_at"] = time.Now().UTC()
	return r.dbFrom(tx).WithContext(ctx).
		Model(&types.Student{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *studentRepo) Delete(ctx context.Context, id uuid.UUID, tx *gorm.DB) error {
	return r.dbFrom(tx).WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.Student{}).Error
}
