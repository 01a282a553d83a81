package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Client produces embedding vectors for free text. The chatbot uses one to
// index the FAQ knowledge base at startup and to embed each incoming query.
type Client interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for several texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector size the model produces.
	Dimensions() int

	// ModelName returns the embedding model identifier.
	ModelName() string
}

// Config holds configuration for embedding generation.
type Config struct {
	Model          string        // Ollama model to use
	Dimensions     int           // Vector size the model produces
	BatchSize      int           // Number of texts to embed in parallel
	RetryAttempts  int           // Number of retry attempts for failed embeddings
	RetryDelay     time.Duration // Delay between retries
	RequestTimeout time.Duration // Timeout for individual requests
}

// DefaultConfig returns sensible defaults. The all-minilm model is the
// Ollama build of all-MiniLM-L6-v2 and produces 384-dimensional vectors.
func DefaultConfig() Config {
	return Config{
		Model:          "all-minilm",
		Dimensions:     384,
		BatchSize:      5,
		RetryAttempts:  3,
		RetryDelay:     2 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// OllamaClient generates embeddings through a local Ollama server.
type OllamaClient struct {
	BaseURL    string
	HTTPClient *http.Client
	config     Config
	logger     *zap.Logger
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllamaClient creates an embedding client against the given Ollama base
// URL.
func NewOllamaClient(baseURL string, config Config, logger *zap.Logger) *OllamaClient {
	return &OllamaClient{
		BaseURL: baseURL,
		config:  config,
		logger:  logger,
		HTTPClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
	}
}

// ModelName implements Client.
func (c *OllamaClient) ModelName() string {
	return c.config.Model
}

// Dimensions implements Client.
func (c *OllamaClient) Dimensions() int {
	return c.config.Dimensions
}

// Embed implements Client.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	request := ollamaEmbeddingRequest{
		Model:  c.config.Model,
		Prompt: text,
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var response ollamaEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(response.Embedding) == 0 {
		return nil, fmt.Errorf("received empty embedding")
	}

	return response.Embedding, nil
}

// EmbedBatch implements Client. Texts are embedded concurrently with a
// semaphore bounding in-flight requests, and each text is retried on
// failure before the batch as a whole is declared failed.
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.logger.Info("generating embeddings",
		zap.Int("texts", len(texts)),
		zap.String("model", c.config.Model))

	vectors := make([][]float32, len(texts))

	semaphore := make(chan struct{}, c.config.BatchSize)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	for i, text := range texts {
		wg.Add(1)
		go func(index int, t string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			vector, err := c.embedWithRetry(ctx, t)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("failed to embed text %d: %w", index, err))
				mu.Unlock()
				return
			}

			mu.Lock()
			vectors[index] = vector
			mu.Unlock()
		}(i, text)
	}

	wg.Wait()

	if len(errs) > 0 {
		for _, err := range errs {
			c.logger.Error("embedding failed", zap.Error(err))
		}
		return nil, fmt.Errorf("failed to generate embeddings: %d errors occurred", len(errs))
	}

	c.logger.Info("embeddings generated", zap.Int("texts", len(texts)))
	return vectors, nil
}

// embedWithRetry embeds a single text with retry and per-attempt timeout.
func (c *OllamaClient) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.config.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			c.logger.Debug("retrying embedding",
				zap.Int("attempt", attempt),
				zap.Int("maxAttempts", c.config.RetryAttempts))
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
		vector, err := c.Embed(attemptCtx, text)
		cancel()

		if err == nil {
			return vector, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.config.RetryAttempts+1, lastErr)
}
