package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eriayomide/vreg-chatbot/conversation"
)

// clearEnv blanks every setting the loader reads so a test sees defaults
// regardless of the host environment.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT", "SERVER_PORT", "SERVER_HOST", "SERVER_READ_TIMEOUT",
		"SERVER_WRITE_TIMEOUT", "SERVER_SHUTDOWN_TIMEOUT", "STATIC_DIR",
		"GROQ_API_KEY", "GROQ_BASE_URL", "GROQ_MODEL", "GROQ_TIMEOUT",
		"GROQ_MAX_RETRIES", "GROQ_RETRY_DELAY",
		"OLLAMA_URL", "EMBEDDING_MODEL", "EMBEDDING_DIMENSIONS",
		"EMBEDDING_BATCH_SIZE", "EMBEDDING_RETRY_ATTEMPTS", "EMBEDDING_TIMEOUT",
		"VECTOR_STORE", "QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION",
		"CONVERSATION_STORE", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"CONVERSATION_TTL", "CONVERSATION_SWEEP_INTERVAL",
		"RAG_TOP_K", "RAG_SEARCH_TOP_K", "RAG_MIN_SCORE",
		"GROQ_MAX_TOKENS", "GROQ_TEMPERATURE", "GROQ_TOP_P", "GROQ_FREQUENCY_PENALTY",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	clearEnv(t)

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GROQ_API_KEY")
}

func TestNewDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GROQ_API_KEY", "gsk_test")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "./static", cfg.Server.StaticDir)

	assert.Equal(t, "gsk_test", cfg.Groq.APIKey)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.Groq.BaseURL)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.Groq.Model)
	assert.Equal(t, 2, cfg.Groq.MaxRetries)

	assert.Equal(t, "http://localhost:11434", cfg.Embedding.OllamaURL)
	assert.Equal(t, "all-minilm", cfg.Embedding.Client.Model)
	assert.Equal(t, 384, cfg.Embedding.Client.Dimensions)

	assert.Equal(t, "memory", cfg.VectorStore.Driver)
	assert.Equal(t, "localhost", cfg.VectorStore.Qdrant.Host)
	assert.Equal(t, 6334, cfg.VectorStore.Qdrant.Port)
	assert.Equal(t, "vreg_faqs", cfg.VectorStore.Qdrant.CollectionName)
	assert.Equal(t, 384, cfg.VectorStore.Qdrant.VectorSize)

	assert.Equal(t, conversation.StoreTypeMemory, cfg.Conversation.Driver)
	assert.Equal(t, "localhost:6379", cfg.Conversation.RedisAddr)
	assert.Equal(t, 24*time.Hour, cfg.Conversation.TTL)
	assert.Equal(t, time.Hour, cfg.Conversation.SweepInterval)

	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 5, cfg.Retrieval.SearchTopK)
	assert.Equal(t, 800, cfg.Retrieval.MaxTokens)
	assert.Equal(t, 0.1, cfg.Retrieval.Temperature)
	assert.Equal(t, 0.9, cfg.Retrieval.TopP)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestNewOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Setenv("PORT", "8080")
	t.Setenv("GROQ_MODEL", "llama-3.3-70b-versatile")
	t.Setenv("VECTOR_STORE", "qdrant")
	t.Setenv("QDRANT_HOST", "qdrant.internal")
	t.Setenv("QDRANT_PORT", "7334")
	t.Setenv("EMBEDDING_DIMENSIONS", "768")
	t.Setenv("CONVERSATION_STORE", "redis")
	t.Setenv("REDIS_ADDR", "redis.internal:6379")
	t.Setenv("CONVERSATION_TTL", "1h")
	t.Setenv("RAG_TOP_K", "5")
	t.Setenv("GROQ_TEMPERATURE", "0.7")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.Groq.Model)
	assert.Equal(t, "qdrant", cfg.VectorStore.Driver)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.Qdrant.Host)
	assert.Equal(t, 7334, cfg.VectorStore.Qdrant.Port)
	assert.Equal(t, 768, cfg.Embedding.Client.Dimensions)
	assert.Equal(t, 768, cfg.VectorStore.Qdrant.VectorSize, "the vector store must follow the embedding size")
	assert.Equal(t, conversation.StoreTypeRedis, cfg.Conversation.Driver)
	assert.Equal(t, "redis.internal:6379", cfg.Conversation.RedisAddr)
	assert.Equal(t, time.Hour, cfg.Conversation.TTL)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 0.7, cfg.Retrieval.Temperature)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestNewPortPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Setenv("PORT", "9000")
	t.Setenv("SERVER_PORT", "9001")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port, "PORT takes precedence over SERVER_PORT")
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr string
	}{
		{
			name:    "unknown vector store",
			envVars: map[string]string{"VECTOR_STORE": "lancedb"},
			wantErr: "vector store",
		},
		{
			name:    "unknown conversation store",
			envVars: map[string]string{"CONVERSATION_STORE": "dynamo"},
			wantErr: "conversation store",
		},
		{
			name:    "port out of range",
			envVars: map[string]string{"PORT": "99999"},
			wantErr: "port",
		},
		{
			name:    "non-positive top k",
			envVars: map[string]string{"RAG_TOP_K": "-1"},
			wantErr: "top k",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("GROQ_API_KEY", "gsk_test")
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			_, err := New()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestServerConfigAddress(t *testing.T) {
	cfg := ServerConfig{Host: "0.0.0.0", Port: 5000}
	assert.Equal(t, "0.0.0.0:5000", cfg.Address())
}
