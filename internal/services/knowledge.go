package services

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/types"
	"github.com/yungbote/adapta-backend/internal/utils"
)

// KnowledgeStore holds the curated pedagogy corpus, loaded once at
// startup from a YAML seed file. Entries are read-only after load.
type KnowledgeStore struct {
	entries map[string]types.KnowledgeEntry
	order   []string
	log     *logger.Logger
}

type knowledgeSeed struct {
	Entries []types.KnowledgeEntry `yaml:"entries"`
}

func NewKnowledgeStoreFromEnv(log *logger.Logger) (*KnowledgeStore, error) {
	path := utils.GetEnv(log, "KNOWLEDGE_SEED_PATH", "./seed/knowledge.yaml")
	return LoadKnowledgeStore(log, path)
}

func LoadKnowledgeStore(log *logger.Logger, path string) (*KnowledgeStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge seed %q: %w", path, err)
	}
	var seed knowledgeSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge seed %q: %w", path, err)
	}
	store := &KnowledgeStore{
		entries: make(map[string]types.KnowledgeEntry, len(seed.Entries)),
		log:     log,
	}
	for _, entry := range seed.Entries {
		if entry.ID == "" {
			return nil, fmt.Errorf("knowledge seed %q contains an entry without an id", path)
		}
		if _, exists := store.entries[entry.ID]; exists {
			return nil, fmt.Errorf("knowledge seed %q contains duplicate id %q", path, entry.ID)
		}
		store.entries[entry.ID] = entry
		store.order = append(store.order, entry.ID)
	}
	if log != nil {
		log.Info("Loaded knowledge seed", "path", path, "entries", len(store.order))
	}
	return store, nil
}

func (s *KnowledgeStore) Get(id string) (types.KnowledgeEntry, bool) {
	entry, ok := s.entries[id]
	return entry, ok
}

// All returns entries in seed-file order.
func (s *KnowledgeStore) All() []types.KnowledgeEntry {
	entries := make([]types.KnowledgeEntry, 0, len(s.order))
	for _, id := range s.order {
		entries = append(entries, s.entries[id])
	}
	return entries
}

func (s *KnowledgeStore) Len() int {
	return len(s.order)
}

// KnowledgeEmbeddingText concatenates the searchable fields of an
// entry in a fixed order, so the embedded text is stable across
// reindexing.
func KnowledgeEmbeddingText(entry types.KnowledgeEntry) string {
	parts := []string{
		entry.GroupLabel,
		strings.Join(entry.TargetConditions, " "),
		strings.Join(entry.Signals, " "),
		marshalPart(entry.Strategy),
		marshalPart(entry.Foundation),
		strings.Join(entry.Examples, " "),
	}
	var nonEmpty []string
	for _, part := range parts {
		if part != "" {
			nonEmpty = append(nonEmpty, part)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// marshalPart serializes a struct field deterministically for the
// embedded text. Field order is fixed by the struct definition, so
// re-indexing the same entry always embeds the same bytes.
func marshalPart(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
