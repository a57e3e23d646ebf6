package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/types"
)

type EmbeddingRepo interface {
	Upsert(ctx context.Context, record *types.EmbeddingRecord, tx *gorm.DB) error
	ListByKind(ctx context.Context, sourceKind string, tx *gorm.DB) ([]types.EmbeddingRecord, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]types.EmbeddingRecord, error)
	DeleteBySource(ctx context.Context, sourceKind, sourceID string, tx *gorm.DB) error
}

type embeddingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEmbeddingRepo(db *gorm.DB, log *logger.Logger) EmbeddingRepo {
	return &embeddingRepo{db: db, log: log}
}

func (r *embeddingRepo) dbFrom(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Upsert writes one chunk vector, replacing any previous vector for
// the same (source_kind, source_id, chunk_index). Re-indexing a source
// therefore never duplicates rows.
func (r *embeddingRepo) Upsert(ctx context.Context, record *types.EmbeddingRecord, tx *gorm.DB) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.dbFrom(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_kind"}, {Name: "source_id"}, {Name: "chunk_index"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "vector", "updated_at"}),
		}).
		Create(record).Error
}

func (r *embeddingRepo) ListByKind(ctx context.Context, sourceKind string, tx *gorm.DB) ([]types.EmbeddingRecord, error) {
	var records []types.EmbeddingRecord
	if err := r.dbFrom(tx).WithContext(ctx).
		Where("source_kind = ?", sourceKind).
		Order("created_at ASC, id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ListAll returns records in indexing order, so similarity ties
// resolve to the earlier-indexed record downstream.
func (r *embeddingRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]types.EmbeddingRecord, error) {
	var records []types.EmbeddingRecord
	if err := r.dbFrom(tx).WithContext(ctx).
		Order("created_at ASC, id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *embeddingRepo) DeleteBySource(ctx context.Context, sourceKind, sourceID string, tx *gorm.DB) error {
	return r.dbFrom(tx).WithContext(ctx).
		Where("source_kind = ? AND source_id = ?", sourceKind, sourceID).
		Delete(&types.EmbeddingRecord{}).Error
}
