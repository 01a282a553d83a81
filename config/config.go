// Package config loads application settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/Eriayomide/vreg-chatbot/conversation"
	"github.com/Eriayomide/vreg-chatbot/embedding"
	"github.com/Eriayomide/vreg-chatbot/groq"
	"github.com/Eriayomide/vreg-chatbot/rag"
	"github.com/Eriayomide/vreg-chatbot/vectorstore"
)

// Config holds all configuration for the application.
type Config struct {
	Server       ServerConfig
	Groq         groq.Config
	Embedding    EmbeddingConfig
	VectorStore  VectorStoreConfig
	Conversation ConversationConfig
	Retrieval    rag.Options
	Log          LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	StaticDir       string
}

// EmbeddingConfig pairs the Ollama endpoint with embedding client settings.
type EmbeddingConfig struct {
	OllamaURL string
	Client    embedding.Config
}

// VectorStoreConfig selects and configures the vector store driver.
type VectorStoreConfig struct {
	Driver string // "memory" or "qdrant"
	Qdrant vectorstore.QdrantConfig
}

// ConversationConfig selects and configures the conversation store driver.
type ConversationConfig struct {
	Driver        conversation.StoreType // "memory" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration // Conversations idle longer than this are dropped
	SweepInterval time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string // "json" or "console"
}

// New loads configuration from the environment. A .env file in the working
// directory is read first when present.
func New() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			StaticDir:       getEnv("STATIC_DIR", "./static"),
		},
		Groq:         loadGroqConfig(),
		Embedding:    loadEmbeddingConfig(),
		VectorStore:  loadVectorStoreConfig(),
		Conversation: loadConversationConfig(),
		Retrieval:    loadRetrievalOptions(),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration fields are set.
func (c *Config) Validate() error {
	if c.Groq.APIKey == "" {
		return fmt.Errorf("GROQ_API_KEY is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.VectorStore.Driver {
	case "memory", "qdrant":
	default:
		return fmt.Errorf("unknown vector store driver %q", c.VectorStore.Driver)
	}
	switch c.Conversation.Driver {
	case conversation.StoreTypeMemory, conversation.StoreTypeRedis:
	default:
		return fmt.Errorf("unknown conversation store driver %q", c.Conversation.Driver)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top k must be positive")
	}
	if c.Log.Level == "" {
		return fmt.Errorf("log level is required")
	}
	return nil
}

// Address returns the HTTP server listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func loadGroqConfig() groq.Config {
	cfg := groq.DefaultConfig()
	cfg.APIKey = getEnv("GROQ_API_KEY", "")
	cfg.BaseURL = getEnv("GROQ_BASE_URL", cfg.BaseURL)
	cfg.Model = getEnv("GROQ_MODEL", cfg.Model)
	cfg.Timeout = getEnvAsDuration("GROQ_TIMEOUT", cfg.Timeout)
	cfg.MaxRetries = getEnvAsInt("GROQ_MAX_RETRIES", cfg.MaxRetries)
	cfg.RetryDelay = getEnvAsDuration("GROQ_RETRY_DELAY", cfg.RetryDelay)
	return cfg
}

func loadEmbeddingConfig() EmbeddingConfig {
	client := embedding.DefaultConfig()
	client.Model = getEnv("EMBEDDING_MODEL", client.Model)
	client.Dimensions = getEnvAsInt("EMBEDDING_DIMENSIONS", client.Dimensions)
	client.BatchSize = getEnvAsInt("EMBEDDING_BATCH_SIZE", client.BatchSize)
	client.RetryAttempts = getEnvAsInt("EMBEDDING_RETRY_ATTEMPTS", client.RetryAttempts)
	client.RequestTimeout = getEnvAsDuration("EMBEDDING_TIMEOUT", client.RequestTimeout)

	return EmbeddingConfig{
		OllamaURL: getEnv("OLLAMA_URL", "http://localhost:11434"),
		Client:    client,
	}
}

func loadVectorStoreConfig() VectorStoreConfig {
	qdrant := vectorstore.DefaultQdrantConfig()
	qdrant.Host = getEnv("QDRANT_HOST", qdrant.Host)
	qdrant.Port = getEnvAsInt("QDRANT_PORT", qdrant.Port)
	qdrant.CollectionName = getEnv("QDRANT_COLLECTION", qdrant.CollectionName)
	qdrant.VectorSize = getEnvAsInt("EMBEDDING_DIMENSIONS", qdrant.VectorSize)

	return VectorStoreConfig{
		Driver: getEnv("VECTOR_STORE", "memory"),
		Qdrant: qdrant,
	}
}

func loadConversationConfig() ConversationConfig {
	return ConversationConfig{
		Driver:        conversation.StoreType(getEnv("CONVERSATION_STORE", string(conversation.StoreTypeMemory))),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		TTL:           getEnvAsDuration("CONVERSATION_TTL", 24*time.Hour),
		SweepInterval: getEnvAsDuration("CONVERSATION_SWEEP_INTERVAL", time.Hour),
	}
}

func loadRetrievalOptions() rag.Options {
	opts := rag.DefaultOptions()
	opts.TopK = getEnvAsInt("RAG_TOP_K", opts.TopK)
	opts.SearchTopK = getEnvAsInt("RAG_SEARCH_TOP_K", opts.SearchTopK)
	opts.MinScore = float32(getEnvAsFloat("RAG_MIN_SCORE", float64(opts.MinScore)))
	opts.MaxTokens = getEnvAsInt("GROQ_MAX_TOKENS", opts.MaxTokens)
	opts.Temperature = getEnvAsFloat("GROQ_TEMPERATURE", opts.Temperature)
	opts.TopP = getEnvAsFloat("GROQ_TOP_P", opts.TopP)
	opts.FrequencyPenalty = getEnvAsFloat("GROQ_FREQUENCY_PENALTY", opts.FrequencyPenalty)
	return opts
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars.
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 5000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
