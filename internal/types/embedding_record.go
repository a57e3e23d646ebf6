package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EmbeddingRecord is one embedded text chunk. SourceKind + SourceID +
// ChunkIndex identify the chunk; re-indexing the same chunk upserts in
// place rather than appending a duplicate.
type EmbeddingRecord struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SourceKind string         `gorm:"uniqueIndex:idx_embedding_source;not null;column:source_kind" json:"source_kind"`
	SourceID   string         `gorm:"uniqueIndex:idx_embedding_source;not null;column:source_id" json:"source_id"`
	ChunkIndex int            `gorm:"uniqueIndex:idx_embedding_source;not null;column:chunk_index" json:"chunk_index"`
	Content    string         `gorm:"column:content" json:"content"`
	Vector     datatypes.JSON `gorm:"type:jsonb;column:vector" json:"vector"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
}

func (EmbeddingRecord) TableName() string {
	return "embedding_record"
}

// Source kinds currently indexed.
const (
	EmbeddingSourceKnowledge = "knowledge_node"
	EmbeddingSourceOcr       = "ocr_extraction"
)
