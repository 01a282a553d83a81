package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Eriayomide/vreg-chatbot/config"
	"github.com/Eriayomide/vreg-chatbot/conversation"
	"github.com/Eriayomide/vreg-chatbot/embedding"
	"github.com/Eriayomide/vreg-chatbot/groq"
	"github.com/Eriayomide/vreg-chatbot/rag"
	"github.com/Eriayomide/vreg-chatbot/server"
	"github.com/Eriayomide/vreg-chatbot/vectorstore"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: program <command>")
		fmt.Println("Commands: serve, query, reindex")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe()
	case "query":
		runQuery(strings.Join(os.Args[2:], " "))
	case "reindex":
		runReindex()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func runServe() {
	cfg, logger := mustBootstrap()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, store, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build rag engine", zap.Error(err))
	}
	defer store.Close()

	indexed, err := engine.IndexKnowledgeBase(ctx)
	if err != nil {
		logger.Fatal("failed to index knowledge base", zap.Error(err))
	}
	logger.Info("knowledge base ready", zap.Int("faqs", indexed))

	conversations, err := buildConversationStore(cfg)
	if err != nil {
		logger.Fatal("failed to build conversation store", zap.Error(err))
	}
	defer conversations.Close()

	srv := server.NewServer(cfg, engine, conversations, logger)
	go srv.RunJanitor(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}
}

func runQuery(query string) {
	if strings.TrimSpace(query) == "" {
		fmt.Println("Usage: program query <question>")
		os.Exit(1)
	}

	cfg, logger := mustBootstrap()
	defer logger.Sync()

	ctx := context.Background()

	engine, store, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build rag engine", zap.Error(err))
	}
	defer store.Close()

	if _, err := engine.IndexKnowledgeBase(ctx); err != nil {
		logger.Fatal("failed to index knowledge base", zap.Error(err))
	}

	result, err := engine.Answer(ctx, query, "")
	if err != nil {
		logger.Fatal("query failed", zap.Error(err))
	}

	fmt.Printf("Question: %s\n", query)
	fmt.Printf("Answer: %s\n", result.RawReply)
	fmt.Printf("Sources: %d FAQs\n", len(result.RelevantFAQs))
	fmt.Printf("Processing time: %v\n", result.TotalTime)
}

func runReindex() {
	cfg, logger := mustBootstrap()
	defer logger.Sync()

	ctx := context.Background()

	engine, store, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build rag engine", zap.Error(err))
	}
	defer store.Close()

	if err := store.Reset(ctx); err != nil {
		logger.Fatal("failed to reset vector store", zap.Error(err))
	}

	indexed, err := engine.IndexKnowledgeBase(ctx)
	if err != nil {
		logger.Fatal("failed to index knowledge base", zap.Error(err))
	}

	fmt.Printf("Indexed %d FAQ entries\n", indexed)
}

func mustBootstrap() (*config.Config, *zap.Logger) {
	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}

	return cfg, logger
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
	}
	if level, err := zapcore.ParseLevel(cfg.Level); err == nil {
		zapConfig.Level = zap.NewAtomicLevelAt(level)
	}
	return zapConfig.Build()
}

// buildEngine assembles the embedding client, vector store and chat model
// into a ready engine. The caller owns the returned store.
func buildEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*rag.Engine, vectorstore.Store, error) {
	embedder := embedding.NewOllamaClient(cfg.Embedding.OllamaURL, cfg.Embedding.Client, logger)

	var store vectorstore.Store
	switch cfg.VectorStore.Driver {
	case "qdrant":
		qdrantStore, err := vectorstore.NewQdrantStore(cfg.VectorStore.Qdrant, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		if err := qdrantStore.InitializeCollection(ctx); err != nil {
			qdrantStore.Close()
			return nil, nil, fmt.Errorf("failed to initialize qdrant collection: %w", err)
		}
		store = qdrantStore
	default:
		store = vectorstore.NewMemoryStore()
	}

	llm := groq.NewClient(cfg.Groq, logger)
	engine := rag.NewEngine(embedder, store, llm, cfg.Retrieval, logger)

	return engine, store, nil
}

func buildConversationStore(cfg *config.Config) (conversation.Store, error) {
	if cfg.Conversation.Driver == conversation.StoreTypeRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Conversation.RedisAddr,
			Password: cfg.Conversation.RedisPassword,
			DB:       cfg.Conversation.RedisDB,
		})
		return conversation.NewStore(conversation.StoreTypeRedis,
			conversation.WithRedisClient(client),
			conversation.WithRedisTTL(cfg.Conversation.TTL))
	}
	return conversation.NewStore(conversation.StoreTypeMemory)
}
