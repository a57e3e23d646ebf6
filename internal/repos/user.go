package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/types"
)

type UserRepo interface {
	Create(ctx context.Context, user *types.User, tx *gorm.DB) error
	GetByID(ctx context.Context, id uuid.UUID, tx *gorm.DB) (*types.User, error)
	GetByEmail(ctx context.Context, email string, tx *gorm.DB) (*types.User, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}, tx *gorm.DB) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, log *logger.Logger) UserRepo {
	return &userRepo{db: db, log: log}
}

func (r *userRepo) dbFrom(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *userRepo) Create(ctx context.Context, user *types.User, tx *gorm.DB) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return r.dbFrom(tx).WithContext(ctx).Create(user).Error
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID, tx *gorm.DB) (*types.User, error) {
	var user types.User
	if err := r.dbFrom(tx).WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string, tx *gorm.DB) (*types.User, error) {
	var user types.User
	if err := r.dbFrom(tx).WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}, tx *gorm.DB) error {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["updated_at"] = time.Now().UTC()
	return r.dbFrom(tx).WithContext(ctx).
		Model(&types.User{}).
		Where("id = ?", id).
		Updates(fields).Error
}
