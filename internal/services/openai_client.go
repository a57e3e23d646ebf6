package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/utils"
)

// OpenAIClient is a minimal client for the two endpoints the pipeline
// needs: embeddings and schema-constrained chat completions.
type OpenAIClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
	embedModel string
	maxRetries int
	log        *logger.Logger
}

func NewOpenAIClient(log *logger.Logger) *OpenAIClient {
	timeout := time.Duration(utils.GetEnvAsInt(log, "OPENAI_TIMEOUT_SECONDS", 60)) * time.Second
	return &OpenAIClient{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     utils.GetEnv(log, "OPENAI_API_KEY", ""),
		baseURL:    utils.GetEnv(log, "OPENAI_BASE_URL", "https://api.openai.com/v1"),
		model:      utils.GetEnv(log, "OPENAI_MODEL", "gpt-4o-mini"),
		embedModel: utils.GetEnv(log, "OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		maxRetries: utils.GetEnvAsInt(log, "OPENAI_MAX_RETRIES", 3),
		log:        log,
	}
}

// Configured reports whether an API key is present. Callers fall back
// to local providers when it is not.
func (c *OpenAIClient) Configured() bool {
	return c.apiKey != ""
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai: http %d: %s", e.StatusCode, truncate(e.Body, 300))
}

func isRetryableHTTP(status int) bool {
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500
}

// jitterSleep waits the base delay ±20%, honoring context
// cancellation.
func jitterSleep(ctx context.Context, base time.Duration) error {
	jitter := time.Duration(float64(base) * (0.8 + 0.4*rand.Float64()))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}

func (c *OpenAIClient) do(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("openai: failed to encode request: %w", err)
	}
	backoff := time.Second
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := jitterSleep(ctx, backoff); err != nil {
				return err
			}
			backoff *= 2
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("openai: failed to build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("openai: request failed: %w", err)
			continue
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("openai: failed to read response: %w", readErr)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			httpErr := &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
			if isRetryableHTTP(resp.StatusCode) {
				lastErr = httpErr
				continue
			}
			return httpErr
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("openai: failed to decode response: %w", err)
		}
		return nil
	}
	return lastErr
}

// Embed returns one vector per input text.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	payload := map[string]interface{}{
		"model": c.embedModel,
		"input": texts,
	}
	var resp struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.do(ctx, "/embeddings", payload, &resp); err != nil {
		return nil, err
	}
	vectors := make([][]float64, len(texts))
	for _, item := range resp.Data {
		if item.Index >= 0 && item.Index < len(vectors) {
			vectors[item.Index] = item.Embedding
		}
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("openai: embedding response missing index %d", i)
		}
	}
	return vectors, nil
}

// GenerateJSON runs a chat completion constrained to the given JSON
// schema and returns the raw JSON content.
func (c *OpenAIClient) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]interface{}) ([]byte, error) {
	payload := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"response_format": map[string]interface{}{
			"type": "json_schema",
			"json_schema": map[string]interface{}{
				"name":   schemaName,
				"strict": true,
				"schema": schema,
			},
		},
	}
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.do(ctx, "/chat/completions", payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("openai: completion returned no content")
	}
	return []byte(resp.Choices[0].Message.Content), nil
}
