package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryAttempts = 1
	cfg.RetryDelay = time.Millisecond
	cfg.RequestTimeout = time.Second
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model != "all-minilm" {
		t.Errorf("Model = %q, want all-minilm", cfg.Model)
	}
	if cfg.Dimensions != 384 {
		t.Errorf("Dimensions = %d, want 384", cfg.Dimensions)
	}
}

func TestEmbed(t *testing.T) {
	var gotReq ollamaEmbeddingRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %s, want /api/embeddings", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaEmbeddingResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, testConfig(), zap.NewNop())

	vector, err := client.Embed(context.Background(), "what is vreg")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	if len(vector) != 3 || vector[0] != 0.1 {
		t.Errorf("Embed() = %v, want [0.1 0.2 0.3]", vector)
	}
	if gotReq.Model != "all-minilm" {
		t.Errorf("request model = %q, want all-minilm", gotReq.Model)
	}
	if gotReq.Prompt != "what is vreg" {
		t.Errorf("request prompt = %q, want the query text", gotReq.Prompt)
	}
}

func TestEmbedEmptyEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbeddingResponse{})
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, testConfig(), zap.NewNop())

	_, err := client.Embed(context.Background(), "anything")
	if err == nil {
		t.Fatal("Embed() error = nil, want empty embedding error")
	}
	if !strings.Contains(err.Error(), "empty embedding") {
		t.Errorf("Embed() error = %v, want it to mention the empty embedding", err)
	}
}

func TestEmbedServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, testConfig(), zap.NewNop())

	_, err := client.Embed(context.Background(), "anything")
	if err == nil {
		t.Fatal("Embed() error = nil, want status error")
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Errorf("Embed() error = %v, want it to carry the status code", err)
	}
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	values := map[string]float32{
		"alpha": 1, "bravo": 2, "charlie": 3, "delta": 4, "echo": 5, "foxtrot": 6,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaEmbeddingResponse{Embedding: []float32{values[req.Prompt]}})
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.BatchSize = 2
	client := NewOllamaClient(server.URL, cfg, zap.NewNop())

	texts := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot"}
	vectors, err := client.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}

	if len(vectors) != len(texts) {
		t.Fatalf("EmbedBatch() returned %d vectors, want %d", len(vectors), len(texts))
	}
	for i, text := range texts {
		if vectors[i][0] != values[text] {
			t.Errorf("vectors[%d] = %v, want the embedding for %q", i, vectors[i], text)
		}
	}
}

func TestEmbedBatchRetriesFailures(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		first := attempts == 1
		mu.Unlock()

		if first {
			http.Error(w, "busy", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(ollamaEmbeddingResponse{Embedding: []float32{0.5}})
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, testConfig(), zap.NewNop())

	vectors, err := client.EmbedBatch(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(vectors) != 1 || vectors[0][0] != 0.5 {
		t.Errorf("EmbedBatch() = %v, want the retried embedding", vectors)
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != 2 {
		t.Errorf("server saw %d attempts, want 2", attempts)
	}
}

func TestEmbedBatchFailsAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, testConfig(), zap.NewNop())

	_, err := client.EmbedBatch(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatal("EmbedBatch() error = nil, want failure after retries")
	}
	if !strings.Contains(err.Error(), "errors occurred") {
		t.Errorf("EmbedBatch() error = %v, want aggregated failure", err)
	}
}
