package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yungbote/adapta-backend/internal/types"
)

const testSeed = `entries:
  - id: task-fragmentation
    group_label: Task Fragmentation
    last_updated: "2025-06-18"
    target_conditions: [autism, ADHD]
    signals:
      - difficulty completing long activities
    strategy:
      name: Split activities into small steps
      implementation:
        - Break the activity into at most 3-5 steps
      materials: [step cards]
    foundation:
      theory: Cognitive Load Theory
      evidence: Reduces overload
    examples:
      - "Math: read, find numbers, calculate"
  - id: visual-supports
    group_label: Visual Supports
    target_conditions: [autism, dyslexia]
    signals:
      - better comprehension with images
    strategy:
      name: Add visual elements
`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knowledge.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write seed: %v", err)
	}
	return path
}

func TestLoadKnowledgeStore(t *testing.T) {
	store, err := LoadKnowledgeStore(nil, writeSeed(t, testSeed))
	if err != nil {
		t.Fatalf("LoadKnowledgeStore() error = %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("got %d entries, want 2", store.Len())
	}
	entry, ok := store.Get("task-fragmentation")
	if !ok {
		t.Fatal("task-fragmentation not found")
	}
	if entry.GroupLabel != "Task Fragmentation" {
		t.Fatalf("unexpected group label %q", entry.GroupLabel)
	}
	if len(entry.Strategy.Implementation) != 1 {
		t.Fatalf("strategy implementation not parsed: %+v", entry.Strategy)
	}
	if entry.LastUpdated != "2025-06-18" {
		t.Fatalf("last_updated not parsed: %q", entry.LastUpdated)
	}
	all := store.All()
	if all[0].ID != "task-fragmentation" || all[1].ID != "visual-supports" {
		t.Fatalf("All() not in seed order: %v", []string{all[0].ID, all[1].ID})
	}
}

func TestLoadKnowledgeStoreRejectsDuplicates(t *testing.T) {
	seed := `entries:
  - id: same
    group_label: One
  - id: same
    group_label: Two
`
	if _, err := LoadKnowledgeStore(nil, writeSeed(t, seed)); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestLoadKnowledgeStoreRejectsMissingID(t *testing.T) {
	seed := `entries:
  - group_label: No ID
`
	if _, err := LoadKnowledgeStore(nil, writeSeed(t, seed)); err == nil {
		t.Fatal("expected missing id error")
	}
}

func TestKnowledgeEmbeddingTextStable(t *testing.T) {
	entry := types.KnowledgeEntry{
		ID:               "task-fragmentation",
		GroupLabel:       "Task Fragmentation",
		TargetConditions: []string{"autism", "ADHD"},
		Signals:          []string{"task abandonment"},
		Strategy:         types.KnowledgeStrategy{Name: "Split into steps"},
		Examples:         []string{"read then calculate"},
	}
	first := KnowledgeEmbeddingText(entry)
	second := KnowledgeEmbeddingText(entry)
	if first != second {
		t.Fatal("embedding text not stable across calls")
	}
	if !strings.HasPrefix(first, "Task Fragmentation autism ADHD") {
		t.Fatalf("embedding text order wrong: %q", first)
	}
	if !strings.Contains(first, "Split into steps") {
		t.Fatalf("embedding text missing strategy: %q", first)
	}
}

func TestKnowledgeSeedFileLoads(t *testing.T) {
	// The shipped corpus must parse and index.
	store, err := LoadKnowledgeStore(nil, filepath.Join("..", "..", "seed", "knowledge.yaml"))
	if err != nil {
		t.Fatalf("failed to load shipped seed: %v", err)
	}
	if store.Len() < 10 {
		t.Fatalf("shipped seed has %d entries, expected a full corpus", store.Len())
	}
	for _, entry := range store.All() {
		if KnowledgeEmbeddingText(entry) == "" {
			t.Fatalf("entry %q produces empty embedding text", entry.ID)
		}
		if entry.LastUpdated == "" {
			t.Fatalf("entry %q missing last_updated", entry.ID)
		}
	}
}
