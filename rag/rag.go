// Package rag orchestrates the retrieval pipeline: embed the query, find
// the closest FAQ entries, and ask the model for a grounded reply.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Eriayomide/vreg-chatbot/embedding"
	"github.com/Eriayomide/vreg-chatbot/faq"
	"github.com/Eriayomide/vreg-chatbot/groq"
	"github.com/Eriayomide/vreg-chatbot/linkify"
	"github.com/Eriayomide/vreg-chatbot/vectorstore"
)

// FallbackReply is returned when generation fails. Users get a contact
// address instead of an error page.
const FallbackReply = "I apologize, but I'm having trouble processing your request right now. Please contact support@vreg.gov.ng for assistance."

// Fixed seed so the same FAQ entry always maps to the same point ID.
var pointSeed = uuid.MustParse("e1b86a4c-7e54-4c1d-9c6d-3f8a20b5d1a7")

const systemPromptTemplate = `You are a helpful AI assistant for the VREG (National Vehicle Registry) platform in Nigeria.

%s

Your role is to help users with vehicle registration, VIN validation, payment issues, customs clearance, and other VREG-related queries.

INSTRUCTIONS:
1. Use the provided knowledge base to answer questions when relevant
2. If the user's question is covered in your knowledge base, use that information as your primary source
3. Be helpful, professional, and specific in your responses
4. If you don't have specific information, guide users to contact support@vreg.gov.ng or payments@vreg.gov.ng for payment issues
5. Always maintain a helpful and courteous tone
6. Provide step-by-step instructions when applicable
7. When mentioning websites or email addresses, use the exact format provided (e.g., www.vreg.gov.ng, support@vreg.gov.ng)
8. Continue conversations naturally - do not ask for the user's name again if you already know it
9. Use names ONLY in the initial greeting. After that, avoid using names entirely unless the conversation has been going on for a very long time and you want to add a personal touch
10. Avoid using their name in every response as it sounds robotic
11. When referencing your knowledge base, use natural phrases like "based on the information available to me," "from what I can see," or "according to our system" - never mention FAQs, documentation, or knowledge base directly
12. Keep responses concise but warm - aim for 2-3 short paragraphs maximum
13. Use friendly, conversational language with phrases like "I'd be happy to help" and "Let me know if..."
14. Show empathy when users have problems ("I'm sorry to hear..." "Let me help you sort this out")
15. Ask follow-up questions in a caring way to gather specific details
16. After the first greeting, use warm transitions like "I'd be happy to help with..." instead of formal re-introductions
17. End responses with supportive offers like "I'm here to help" or "Let me know if you need anything else"
18. Avoid repetitive greetings - after the first interaction, jump straight to helping
19. When users say "thank you," "thanks," or are clearly ending the conversation, keep responses brief and natural - just acknowledge their thanks and offer future help in 1-2 sentences maximum
20. Avoid adding website links, contact information, or promotional text when users are simply expressing gratitude or saying goodbye
21. For thank you/goodbye responses, use simple phrases like: "You're very welcome!" "Happy to help!" "Take care!" followed by only "Feel free to reach out if you need anything else"
22. Do not repeat contact information or website details unless the user specifically asks for it

IMPORTANT CONTACT INFORMATION:
- General support: support@vreg.gov.ng
- Payment issues: payments@vreg.gov.ng
- Website: www.vreg.gov.ng
- TIN validation: www.trade.gov.ng (Agencies > FIRS)`

// ChatClient is the slice of the Groq client the engine needs.
type ChatClient interface {
	ChatCompletion(ctx context.Context, req *groq.ChatRequest) (*groq.ChatResponse, error)
}

// Options holds retrieval and generation settings.
type Options struct {
	// Retrieval settings
	TopK       int     // FAQs fed to the model as context
	SearchTopK int     // Results returned by direct FAQ searches
	MinScore   float32 // Minimum similarity score, 0 disables the cutoff

	// Generation settings
	MaxTokens        int
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:             3,
		SearchTopK:       5,
		MinScore:         0,
		MaxTokens:        800,
		Temperature:      0.1, // Lower temperature for more consistent responses
		TopP:             0.9,
		FrequencyPenalty: 0.1,
	}
}

// RetrievedFAQ is one knowledge base match, with a pre-linkified answer for
// direct rendering.
type RetrievedFAQ struct {
	Question        string  `json:"question"`
	Answer          string  `json:"answer"`
	AnswerWithLinks string  `json:"answer_with_links"`
	Category        string  `json:"category"`
	RelevanceScore  float32 `json:"relevance_score"`
}

// Result is a complete answer produced by the pipeline.
type Result struct {
	Reply          string         // Hyperlinked reply for rendering
	RawReply       string         // Model output before link rewriting
	RelevantFAQs   []RetrievedFAQ // FAQs used as context
	ContextUsed    bool
	Degraded       bool // True when the reply is the fallback message
	RetrievalTime  time.Duration
	GenerationTime time.Duration
	TotalTime      time.Duration
	TokensUsed     int
}

// Engine ties the embedding client, the vector store and the chat model
// together.
type Engine struct {
	embedder embedding.Client
	store    vectorstore.Store
	llm      ChatClient
	options  Options
	logger   *zap.Logger
}

// NewEngine creates a RAG engine.
func NewEngine(embedder embedding.Client, store vectorstore.Store, llm ChatClient, options Options, logger *zap.Logger) *Engine {
	if options.TopK <= 0 {
		options.TopK = 3
	}
	if options.SearchTopK <= 0 {
		options.SearchTopK = 5
	}

	return &Engine{
		embedder: embedder,
		store:    store,
		llm:      llm,
		options:  options,
		logger:   logger,
	}
}

// IndexKnowledgeBase embeds every FAQ entry and upserts it into the vector
// store. Point IDs are deterministic, so re-indexing overwrites in place.
func (e *Engine) IndexKnowledgeBase(ctx context.Context) (int, error) {
	entries := faq.KnowledgeBase()

	documents := make([]string, len(entries))
	for i, entry := range entries {
		documents[i] = entry.Document()
	}

	vectors, err := e.embedder.EmbedBatch(ctx, documents)
	if err != nil {
		return 0, fmt.Errorf("failed to embed knowledge base: %w", err)
	}

	points := make([]vectorstore.Point, len(entries))
	for i, entry := range entries {
		points[i] = vectorstore.Point{
			ID:     pointID(entry, e.embedder.ModelName()),
			Vector: vectors[i],
			Entry:  entry,
		}
	}

	if err := e.store.Upsert(ctx, points); err != nil {
		return 0, fmt.Errorf("failed to index knowledge base: %w", err)
	}

	e.logger.Info("knowledge base indexed",
		zap.Int("entries", len(points)),
		zap.String("model", e.embedder.ModelName()))
	return len(points), nil
}

// IndexedCount reports how many entries the vector store holds.
func (e *Engine) IndexedCount(ctx context.Context) (int, error) {
	return e.store.Count(ctx)
}

// Retrieve returns the FAQ entries closest to the query, best match first.
func (e *Engine) Retrieve(ctx context.Context, query string, limit int) ([]RetrievedFAQ, error) {
	if limit <= 0 {
		limit = e.options.SearchTopK
	}

	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := e.store.Search(ctx, vector, vectorstore.Filter{MinScore: e.options.MinScore}, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search knowledge base: %w", err)
	}

	faqs := make([]RetrievedFAQ, len(results))
	for i, result := range results {
		faqs[i] = RetrievedFAQ{
			Question:        result.Entry.Question,
			Answer:          result.Entry.Answer,
			AnswerWithLinks: linkify.Rewrite(result.Entry.Answer),
			Category:        result.Entry.Category,
			RelevanceScore:  result.Score,
		}
	}
	return faqs, nil
}

// Answer runs the full pipeline for one user message. Failures degrade to a
// fallback reply pointing at support rather than an error, so the chat UI
// always has something to show.
func (e *Engine) Answer(ctx context.Context, query, userName string) (*Result, error) {
	startTime := time.Now()

	retrievalStart := time.Now()
	relevantFAQs, err := e.Retrieve(ctx, query, e.options.TopK)
	if err != nil {
		// Generation can still answer from the model's own knowledge.
		e.logger.Warn("retrieval failed, answering without context", zap.Error(err))
		relevantFAQs = nil
	}
	retrievalTime := time.Since(retrievalStart)

	contextBlock := buildContext(relevantFAQs)

	var userPrompt string
	if contextBlock != "" {
		userPrompt = fmt.Sprintf("%s\n\nUser Question: %s\n\nPlease provide a helpful response based on the FAQ context above and your knowledge of VREG processes.", contextBlock, query)
	} else {
		userPrompt = fmt.Sprintf("User Question: %s\n\nPlease provide a helpful response about VREG processes.", query)
	}

	generationStart := time.Now()
	resp, err := e.llm.ChatCompletion(ctx, &groq.ChatRequest{
		Messages: []groq.Message{
			{Role: "system", Content: buildSystemPrompt(userName)},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:        &e.options.MaxTokens,
		Temperature:      &e.options.Temperature,
		TopP:             &e.options.TopP,
		FrequencyPenalty: &e.options.FrequencyPenalty,
	})
	if err != nil || len(resp.Choices) == 0 {
		if err == nil {
			err = fmt.Errorf("model returned no choices")
		}
		e.logger.Error("generation failed", zap.Error(err))
		return &Result{
			Reply:          linkify.Rewrite(FallbackReply),
			RawReply:       FallbackReply,
			RelevantFAQs:   []RetrievedFAQ{},
			ContextUsed:    false,
			Degraded:       true,
			RetrievalTime:  retrievalTime,
			GenerationTime: time.Since(generationStart),
			TotalTime:      time.Since(startTime),
		}, nil
	}
	generationTime := time.Since(generationStart)

	rawReply := resp.Choices[0].Message.Content

	if relevantFAQs == nil {
		relevantFAQs = []RetrievedFAQ{}
	}

	result := &Result{
		Reply:          linkify.Rewrite(rawReply),
		RawReply:       rawReply,
		RelevantFAQs:   relevantFAQs,
		ContextUsed:    contextBlock != "",
		RetrievalTime:  retrievalTime,
		GenerationTime: generationTime,
		TotalTime:      time.Since(startTime),
		TokensUsed:     resp.Usage.TotalTokens,
	}

	e.logger.Info("query answered",
		zap.Duration("total", result.TotalTime),
		zap.Duration("retrieval", retrievalTime),
		zap.Duration("generation", generationTime),
		zap.Int("faqs", len(relevantFAQs)),
		zap.Int("tokens", result.TokensUsed))

	return result, nil
}

func buildSystemPrompt(userName string) string {
	nameContext := ""
	if userName != "" {
		nameContext = fmt.Sprintf("The user's name is %s. Use their name naturally in your responses when appropriate.", userName)
	}
	return fmt.Sprintf(systemPromptTemplate, nameContext)
}

func buildContext(faqs []RetrievedFAQ) string {
	if len(faqs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Here are some relevant FAQs from the VREG knowledge base:\n\n")
	for i, f := range faqs {
		fmt.Fprintf(&b, "%d. Q: %s\n   A: %s\n\n", i+1, f.Question, f.Answer)
	}
	return b.String()
}

func pointID(entry faq.Entry, model string) string {
	return uuid.NewSHA1(pointSeed, []byte(entry.Question+"_"+model)).String()
}
