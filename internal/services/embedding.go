package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/repos"
	"github.com/yungbote/adapta-backend/internal/types"
)

// EmbeddingService embeds source texts and persists the vectors.
// Indexing is idempotent: re-indexing a source replaces its rows.
type EmbeddingService struct {
	repo     repos.EmbeddingRepo
	embedder Embedder
	log      *logger.Logger
}

func NewEmbeddingService(repo repos.EmbeddingRepo, embedder Embedder, log *logger.Logger) *EmbeddingService {
	return &EmbeddingService{repo: repo, embedder: embedder, log: log}
}

func (s *EmbeddingService) save(ctx context.Context, sourceKind, sourceID string, chunkIndex int, content string, vector []float64) error {
	vectorJSON, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to encode vector: %w", err)
	}
	return s.repo.Upsert(ctx, &types.EmbeddingRecord{
		SourceKind: sourceKind,
		SourceID:   sourceID,
		ChunkIndex: chunkIndex,
		Content:    content,
		Vector:     datatypes.JSON(vectorJSON),
	}, nil)
}

// IndexKnowledgeEntry embeds one corpus entry under its seed id.
func (s *EmbeddingService) IndexKnowledgeEntry(ctx context.Context, entry types.KnowledgeEntry) error {
	content := KnowledgeEmbeddingText(entry)
	vectors, err := s.embedder.Embed(ctx, []string{content})
	if err != nil {
		return fmt.Errorf("failed to embed knowledge entry %q: %w", entry.ID, err)
	}
	return s.save(ctx, types.EmbeddingSourceKnowledge, entry.ID, 0, content, vectors[0])
}

// ReindexKnowledge indexes the whole corpus. Ran at startup so
// retrieval always sees the current seed file.
func (s *EmbeddingService) ReindexKnowledge(ctx context.Context, store *KnowledgeStore) error {
	for _, entry := range store.All() {
		if err := s.IndexKnowledgeEntry(ctx, entry); err != nil {
			return err
		}
	}
	if s.log != nil {
		s.log.Info("Knowledge corpus indexed", "entries", store.Len())
	}
	return nil
}

// IndexOcrExtraction embeds extracted page text. Blank text is
// skipped, not an error.
func (s *EmbeddingService) IndexOcrExtraction(ctx context.Context, extractionID uuid.UUID, rawText string) error {
	if strings.TrimSpace(rawText) == "" {
		if s.log != nil {
			s.log.Debug("Skipping embedding of empty extraction", "extraction_id", extractionID)
		}
		return nil
	}
	vectors, err := s.embedder.Embed(ctx, []string{rawText})
	if err != nil {
		return fmt.Errorf("failed to embed extraction %s: %w", extractionID, err)
	}
	return s.save(ctx, types.EmbeddingSourceOcr, extractionID.String(), 0, rawText, vectors[0])
}

// Remove drops all vectors of one source.
func (s *EmbeddingService) Remove(ctx context.Context, sourceKind, sourceID string) error {
	return s.repo.DeleteBySource(ctx, sourceKind, sourceID, nil)
}
