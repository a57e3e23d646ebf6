package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/repos"
	"github.com/yungbote/adapta-backend/internal/types"
)

// RetrievedEntry is one similarity match. Entry is populated for
// knowledge matches; OCR matches carry only the raw content.
type RetrievedEntry struct {
	SourceKind string
	SourceID   string
	Content    string
	Similarity float64
	Entry      *types.KnowledgeEntry
}

// Retriever answers similarity queries against the embedding table.
// The corpus is small, so scoring is a full scan in memory rather than
// a vector index.
type Retriever struct {
	repo     repos.EmbeddingRepo
	embedder Embedder
	store    *KnowledgeStore
	log      *logger.Logger
}

func NewRetriever(repo repos.EmbeddingRepo, embedder Embedder, store *KnowledgeStore, log *logger.Logger) *Retriever {
	return &Retriever{repo: repo, embedder: embedder, store: store, log: log}
}

// Query embeds the query text and returns the topK most similar
// chunks of the given source kinds, most similar first. Knowledge
// matches whose seed entry no longer exists are dropped.
func (r *Retriever) Query(ctx context.Context, queryText string, topK int, sourceKinds []string) ([]RetrievedEntry, error) {
	if topK <= 0 {
		topK = 5
	}
	if len(sourceKinds) == 0 {
		sourceKinds = []string{types.EmbeddingSourceKnowledge}
	}
	vectors, err := r.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to embed query: %v", ErrRetrievalFailed, err)
	}
	queryVector := vectors[0]

	wanted := make(map[string]bool, len(sourceKinds))
	for _, kind := range sourceKinds {
		wanted[kind] = true
	}
	records, err := r.repo.ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load embeddings: %v", ErrRetrievalFailed, err)
	}

	var scored []RetrievedEntry
	for _, record := range records {
		if !wanted[record.SourceKind] {
			continue
		}
		var vector []float64
		if err := json.Unmarshal(record.Vector, &vector); err != nil {
			if r.log != nil {
				r.log.Warn("Skipping embedding with unreadable vector",
					"source_kind", record.SourceKind, "source_id", record.SourceID, "error", err)
			}
			continue
		}
		scored = append(scored, RetrievedEntry{
			SourceKind: record.SourceKind,
			SourceID:   record.SourceID,
			Content:    record.Content,
			Similarity: Cosine(queryVector, vector),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if len(scored) > topK {
		scored = scored[:topK]
	}

	results := make([]RetrievedEntry, 0, len(scored))
	for _, match := range scored {
		if match.SourceKind == types.EmbeddingSourceKnowledge {
			entry, ok := r.store.Get(match.SourceID)
			if !ok {
				continue
			}
			match.Entry = &entry
		}
		results = append(results, match)
	}
	return results, nil
}
