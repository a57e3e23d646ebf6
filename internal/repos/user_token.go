package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/types"
)

type UserTokenRepo interface {
	Create(ctx context.Context, token *types.UserToken, tx *gorm.DB) error
	GetByAccessToken(ctx context.Context, accessToken string, tx *gorm.DB) (*types.UserToken, error)
	GetByRefreshToken(ctx context.Context, refreshToken string, tx *gorm.DB) (*types.UserToken, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID, tx *gorm.DB) error
	Delete(ctx context.Context, id uuid.UUID, tx *gorm.DB) error
}

type userTokenRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserTokenRepo(db *gorm.DB, log *logger.Logger) UserTokenRepo {
	return &userTokenRepo{db: db, log: log}
}

func (r *userTokenRepo) dbFrom(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *userTokenRepo) Create(ctx context.Context, token *types.UserToken, tx *gorm.DB) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	return r.dbFrom(tx).WithContext(ctx).Create(token).Error
}

func (r *userTokenRepo) GetByAccessToken(ctx context.Context, accessToken string, tx *gorm.DB) (*types.UserToken, error) {
	var token types.UserToken
	if err := r.dbFrom(tx).WithContext(ctx).First(&token, "access_token = ?", accessToken).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *userTokenRepo) GetByRefreshToken(ctx context.Context, refreshToken string, tx *gorm.DB) (*types.UserToken, error) {
	var token types.UserToken
	if err := r.dbFrom(tx).WithContext(ctx).First(&token, "refresh_token = ?", refreshToken).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *userTokenRepo) DeleteByUserID(ctx context.Context, userID uuid.UUID, tx *gorm.DB) error {
	return r.dbFrom(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&types.UserToken{}).Error
}

func (r *userTokenRepo) Delete(ctx context.Context, id uuid.UUID, tx *gorm.DB) error {
	return r.dbFrom(tx).WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.UserToken{}).Error
}
