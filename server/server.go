// Package server exposes the chatbot over HTTP: the chat endpoint with its
// name-capture flow, direct FAQ search, text linkification, session
// management, and a static frontend.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/Eriayomide/vreg-chatbot/config"
	"github.com/Eriayomide/vreg-chatbot/conversation"
	"github.com/Eriayomide/vreg-chatbot/faq"
	"github.com/Eriayomide/vreg-chatbot/linkify"
	"github.com/Eriayomide/vreg-chatbot/rag"
)

const defaultConversationID = "default"

// Canned replies for the name-capture flow.
const (
	nameCapturedReplyFormat = "Hello %s! It's nice to meet you. How can I assist you today with the VREG platform? Do you have any questions, need help with vehicle registration, or perhaps you're experiencing some issues that you'd like me to help resolve?"
	greetingAskNameReply    = "Hello! May I know your name?"
	askNameReply            = "May I know your name?"
)

// Server holds the HTTP server and the chat pipeline.
type Server struct {
	engine        *rag.Engine
	conversations conversation.Store
	config        *config.Config
	validate      *validator.Validate
	logger        *zap.Logger
	stats         *SystemStats
	httpServer    *http.Server

	// WebSocket upgrader for the streaming chat endpoint
	upgrader websocket.Upgrader
}

// SystemStats tracks answer throughput since startup.
type SystemStats struct {
	QueryCount      int64     `json:"queryCount"`
	TotalTime       int64     `json:"totalTime"` // in milliseconds
	TokensGenerated int64     `json:"tokensGenerated"`
	SuccessCount    int64     `json:"successCount"`
	StartTime       time.Time `json:"startTime"`
	mu              sync.RWMutex
}

// API request/response types

type ChatRequest struct {
	Message        string `json:"message" validate:"required"`
	ConversationID string `json:"conversation_id"`
}

type ChatResponse struct {
	Reply          string             `json:"reply"`
	RawReply       string             `json:"raw_reply"`
	RelevantFAQs   []rag.RetrievedFAQ `json:"relevant_faqs"`
	ContextUsed    bool               `json:"context_used"`
	UserName       string             `json:"user_name,omitempty"`
	NameCaptured   bool               `json:"name_captured,omitempty"`
	AskingForName  bool               `json:"asking_for_name,omitempty"`
	ConversationID string             `json:"conversation_id"`
}

type SearchRequest struct {
	Query string `json:"query" validate:"required"`
}

type SearchResponse struct {
	FAQs []rag.RetrievedFAQ `json:"faqs"`
}

type ProcessTextRequest struct {
	Text string `json:"text" validate:"required"`
}

type ProcessTextResponse struct {
	OriginalText  string `json:"original_text"`
	ProcessedText string `json:"processed_text"`
}

type ResetSessionRequest struct {
	ConversationID string `json:"conversation_id"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type SessionResponse struct {
	UserName *string `json:"user_name"`
	HasName  bool    `json:"has_name"`
}

type HealthResponse struct {
	Status              string `json:"status"`
	RAGSystem           string `json:"rag_system"`
	TotalFAQs           int    `json:"total_faqs"`
	IndexedFAQs         int    `json:"indexed_faqs"`
	HyperlinkProcessing string `json:"hyperlink_processing"`
	SessionSupport      string `json:"session_support"`
}

type StatsResponse struct {
	*SystemStats
	AverageTime int64   `json:"averageTime"`
	SuccessRate float64 `json:"successRate"`
	Model       string  `json:"model"`
	TopK        int     `json:"topK"`
	IndexedFAQs int     `json:"indexedFaqs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer wires the chat pipeline into an HTTP server.
func NewServer(cfg *config.Config, engine *rag.Engine, conversations conversation.Store, logger *zap.Logger) *Server {
	return &Server{
		engine:        engine,
		conversations: conversations,
		config:        cfg,
		validate:      validator.New(),
		logger:        logger,
		stats: &SystemStats{
			StartTime: time.Now(),
		},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // The REST endpoints are open to all origins too
			},
		},
	}
}

// Handler builds the full route tree with CORS and request logging.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/chat", s.handleChat).Methods("POST")
	r.HandleFunc("/search", s.handleSearch).Methods("POST")
	r.HandleFunc("/process-text", s.handleProcessText).Methods("POST")
	r.HandleFunc("/reset-session", s.handleResetSession).Methods("POST")
	r.HandleFunc("/get-session", s.handleGetSession).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/stats", s.handleStats).Methods("GET")
	r.HandleFunc("/ws", s.handleWebSocket).Methods("GET")

	// Serve the chat frontend
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.config.Server.StaticDir)))

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	return c.Handler(r)
}

// Start begins serving and blocks until Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.config.Server.Address(),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	s.logger.Info("server listening", zap.String("address", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// RunJanitor periodically drops conversations idle longer than the TTL. It
// returns when the context is cancelled.
func (s *Server) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(s.config.Conversation.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.conversations.Sweep(ctx, s.config.Conversation.TTL)
			if err != nil {
				s.logger.Warn("conversation sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				s.logger.Info("swept idle conversations", zap.Int("removed", removed))
			}
		}
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "No message received")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "No message received")
		return
	}

	resp, err := s.processChat(r.Context(), req)
	if err != nil {
		s.logger.Error("chat request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.respondJSON(w, resp)
}

// processChat runs one chat turn: resolve the conversation, capture the
// user's name if we don't have it yet, otherwise answer through the RAG
// pipeline. Shared by the HTTP and WebSocket endpoints.
func (s *Server) processChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = defaultConversationID
	}

	conv, err := s.conversations.Touch(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	userName := conv.UserName
	if userName == "" {
		if name, ok := conversation.ExtractName(req.Message); ok {
			if err := s.conversations.SetUserName(ctx, conversationID, name); err != nil {
				return nil, fmt.Errorf("failed to store user name: %w", err)
			}

			reply := fmt.Sprintf(nameCapturedReplyFormat, name)
			return &ChatResponse{
				Reply:          linkify.Rewrite(reply),
				RawReply:       reply,
				RelevantFAQs:   []rag.RetrievedFAQ{},
				NameCaptured:   true,
				ConversationID: conversationID,
			}, nil
		}

		// Greetings get a greeting back, anything else just the question.
		reply := askNameReply
		if conversation.IsGreeting(req.Message) {
			reply = greetingAskNameReply
		}
		return &ChatResponse{
			Reply:          reply,
			RawReply:       reply,
			RelevantFAQs:   []rag.RetrievedFAQ{},
			AskingForName:  true,
			ConversationID: conversationID,
		}, nil
	}

	result, err := s.engine.Answer(ctx, req.Message, userName)
	if err != nil {
		return nil, err
	}

	s.updateStats(result.TotalTime.Milliseconds(), result.TokensUsed, !result.Degraded)

	return &ChatResponse{
		Reply:          result.Reply,
		RawReply:       result.RawReply,
		RelevantFAQs:   result.RelevantFAQs,
		ContextUsed:    result.ContextUsed,
		UserName:       userName,
		ConversationID: conversationID,
	}, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "No query provided")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "No query provided")
		return
	}

	faqs, err := s.engine.Retrieve(r.Context(), req.Query, s.config.Retrieval.SearchTopK)
	if err != nil {
		s.logger.Error("search request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.respondJSON(w, SearchResponse{FAQs: faqs})
}

func (s *Server) handleProcessText(w http.ResponseWriter, r *http.Request) {
	var req ProcessTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "No text provided")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "No text provided")
		return
	}

	s.respondJSON(w, ProcessTextResponse{
		OriginalText:  req.Text,
		ProcessedText: linkify.Rewrite(req.Text),
	})
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	// The body is optional; an empty one resets the default conversation.
	var req ResetSessionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = defaultConversationID
	}

	if err := s.conversations.Delete(r.Context(), conversationID); err != nil {
		s.logger.Error("session reset failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.respondJSON(w, MessageResponse{Message: "Session reset successfully"})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID == "" {
		conversationID = defaultConversationID
	}

	conv, err := s.conversations.Get(r.Context(), conversationID)
	if err != nil {
		s.logger.Error("session lookup failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := SessionResponse{}
	if conv != nil && conv.UserName != "" {
		resp.UserName = &conv.UserName
		resp.HasName = true
	}

	s.respondJSON(w, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:              "healthy",
		RAGSystem:           "operational",
		TotalFAQs:           len(faq.KnowledgeBase()),
		HyperlinkProcessing: "enabled",
		SessionSupport:      "enabled",
	}

	indexed, err := s.engine.IndexedCount(r.Context())
	if err != nil {
		s.logger.Warn("vector store unreachable", zap.Error(err))
		resp.RAGSystem = "degraded"
	} else {
		resp.IndexedFAQs = indexed
	}

	s.respondJSON(w, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	indexed, err := s.engine.IndexedCount(r.Context())
	if err != nil {
		s.logger.Warn("failed to count indexed faqs", zap.Error(err))
	}

	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()

	var avgTime int64
	var successRate float64

	if s.stats.QueryCount > 0 {
		avgTime = s.stats.TotalTime / s.stats.QueryCount
		successRate = float64(s.stats.SuccessCount) / float64(s.stats.QueryCount) * 100
	} else {
		successRate = 100
	}

	s.respondJSON(w, StatsResponse{
		SystemStats: s.stats,
		AverageTime: avgTime,
		SuccessRate: successRate,
		Model:       s.config.Groq.Model,
		TopK:        s.config.Retrieval.TopK,
		IndexedFAQs: indexed,
	})
}

// handleWebSocket serves the chat flow over a WebSocket. Each incoming JSON
// message gets one JSON response, mirroring the POST /chat contract.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		var req ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket closed", zap.Error(err))
			}
			return
		}

		if req.Message == "" {
			if err := conn.WriteJSON(ErrorResponse{Error: "No message received"}); err != nil {
				return
			}
			continue
		}

		resp, err := s.processChat(r.Context(), req)
		if err != nil {
			s.logger.Error("websocket chat failed", zap.Error(err))
			if err := conn.WriteJSON(ErrorResponse{Error: "Internal server error"}); err != nil {
				return
			}
			continue
		}

		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) updateStats(processingTime int64, tokens int, success bool) {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()

	s.stats.QueryCount++
	s.stats.TotalTime += processingTime
	s.stats.TokensGenerated += int64(tokens)
	if success {
		s.stats.SuccessCount++
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
