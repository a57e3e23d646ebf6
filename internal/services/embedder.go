package services

import (
	"context"
	"math"
	"strings"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/utils"
)

// Embedder maps texts to fixed-dimension vectors. All vectors in one
// deployment share the same dimension.
type Embedder interface {
	Dim() int
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// NewEmbedderFromEnv returns the OpenAI embedder when an API key is
// configured and EMBED_PROVIDER is openai, otherwise the local
// deterministic embedder.
func NewEmbedderFromEnv(log *logger.Logger, client *OpenAIClient) Embedder {
	provider := strings.ToLower(utils.GetEnv(log, "EMBED_PROVIDER", "local"))
	if provider == "openai" && client != nil && client.Configured() {
		return &openAIEmbedder{
			client: client,
			dim:    utils.GetEnvAsInt(log, "EMBED_DIM", 1536),
		}
	}
	return NewLocalEmbedder(utils.GetEnvAsInt(log, "EMBED_DIM", 1024))
}

// localEmbedder derives a vector from a seeded linear congruential
// generator over the text hash. Not semantically meaningful, but
// deterministic: equal texts always embed to equal vectors, which is
// what retrieval tests and offline deployments need.
type localEmbedder struct {
	dim int
}

func NewLocalEmbedder(dim int) Embedder {
	if dim <= 0 {
		dim = 1024
	}
	return &localEmbedder{dim: dim}
}

func (e *localEmbedder) Dim() int {
	return e.dim
}

func (e *localEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = e.embedOne(text)
	}
	return vectors, nil
}

const (
	lcgMultiplier = 1103515245
	lcgIncrement  = 12345
	lcgModulus    = 1 << 31
)

func (e *localEmbedder) embedOne(text string) []float64 {
	seed := hashSeed(text)
	vector := make([]float64, e.dim)
	for i := range vector {
		seed = (seed*lcgMultiplier + lcgIncrement) % lcgModulus
		vector[i] = float64(seed)/float64(lcgModulus)*2 - 1
	}
	return vector
}

// hashSeed folds the text into a non-negative seed. The absolute value
// is taken in 64-bit space so a MinInt32 hash cannot overflow back to
// a negative seed.
func hashSeed(text string) int64 {
	var hash int32
	for _, r := range text {
		hash = (hash << 5) - hash + int32(r)
	}
	seed := int64(hash)
	if seed < 0 {
		seed = -seed
	}
	return seed
}

// Cosine returns the cosine similarity of two equal-length vectors.
// Either vector having zero magnitude yields 0, not NaN.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// openAIEmbedder delegates to the embeddings endpoint.
type openAIEmbedder struct {
	client *OpenAIClient
	dim    int
}

func (e *openAIEmbedder) Dim() int {
	return e.dim
}

func (e *openAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	return e.client.Embed(ctx, texts)
}
