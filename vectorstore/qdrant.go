package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Eriayomide/vreg-chatbot/faq"
)

// QdrantConfig holds connection settings for the qdrant driver.
type QdrantConfig struct {
	Host           string
	Port           int
	CollectionName string
	VectorSize     int    // Dimension of the embeddings
	Distance       string // "Cosine", "Euclidean", or "Dot"
}

// DefaultQdrantConfig returns settings for a local qdrant instance.
func DefaultQdrantConfig() QdrantConfig {
	return QdrantConfig{
		Host:           "localhost",
		Port:           6334, // Default Qdrant gRPC port
		CollectionName: "vreg_faqs",
		VectorSize:     384, // all-minilm dimension
		Distance:       "Cosine",
	}
}

// QdrantStore talks to a qdrant instance over gRPC.
type QdrantStore struct {
	collectionsClient qdrant.CollectionsClient
	pointsClient      qdrant.PointsClient
	conn              *grpc.ClientConn
	config            QdrantConfig
	collection        string
	logger            *zap.Logger
}

// NewQdrantStore connects to qdrant. Call InitializeCollection before the
// first Upsert.
func NewQdrantStore(config QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	conn, err := grpc.NewClient(
		fmt.Sprintf("%s:%d", config.Host, config.Port),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantStore{
		collectionsClient: qdrant.NewCollectionsClient(conn),
		pointsClient:      qdrant.NewPointsClient(conn),
		conn:              conn,
		config:            config,
		collection:        config.CollectionName,
		logger:            logger,
	}, nil
}

// InitializeCollection creates the collection if it doesn't exist.
func (s *QdrantStore) InitializeCollection(ctx context.Context) error {
	collections, err := s.collectionsClient.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, collection := range collections.Collections {
		if collection.Name == s.collection {
			s.logger.Debug("collection already exists", zap.String("collection", s.collection))
			return nil
		}
	}

	s.logger.Info("creating collection",
		zap.String("collection", s.collection),
		zap.Int("vector_size", s.config.VectorSize))

	var distance qdrant.Distance
	switch s.config.Distance {
	case "Cosine":
		distance = qdrant.Distance_Cosine
	case "Euclidean":
		distance = qdrant.Distance_Euclid
	case "Dot":
		distance = qdrant.Distance_Dot
	default:
		distance = qdrant.Distance_Cosine
	}

	_, err = s.collectionsClient.Create(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(s.config.VectorSize),
					Distance: distance,
				},
			},
		},
		HnswConfig: &qdrant.HnswConfigDiff{
			M:                 uint64Ptr(16),
			EfConstruct:       uint64Ptr(100),
			FullScanThreshold: uint64Ptr(10000), // Full scan is faster for small collections
		},
		OptimizersConfig: &qdrant.OptimizersConfigDiff{
			DefaultSegmentNumber: uint64Ptr(2),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// Upsert inserts or replaces points by ID, batching for larger loads.
func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		qdrantPoints[i] = &qdrant.PointStruct{
			Id: &qdrant.PointId{
				PointIdOptions: &qdrant.PointId_Uuid{Uuid: p.ID},
			},
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{
					Vector: &qdrant.Vector{Data: p.Vector},
				},
			},
			Payload: map[string]*qdrant.Value{
				"question": qdrant.NewValueString(p.Entry.Question),
				"answer":   qdrant.NewValueString(p.Entry.Answer),
				"category": qdrant.NewValueString(p.Entry.Category),
			},
		}
	}

	batchSize := 100
	for i := 0; i < len(qdrantPoints); i += batchSize {
		end := i + batchSize
		if end > len(qdrantPoints) {
			end = len(qdrantPoints)
		}

		_, err := s.pointsClient.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         qdrantPoints[i:end],
		})
		if err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	s.logger.Info("indexed points",
		zap.Int("count", len(points)),
		zap.String("collection", s.collection))
	return nil
}

// Search performs semantic search against the collection.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, filter Filter, limit int) ([]SearchResult, error) {
	var qdrantFilter *qdrant.Filter
	if filter.Category != "" {
		qdrantFilter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				{
					ConditionOneOf: &qdrant.Condition_Field{
						Field: &qdrant.FieldCondition{
							Key: "category",
							Match: &qdrant.Match{
								MatchValue: &qdrant.Match_Keyword{Keyword: filter.Category},
							},
						},
					},
				},
			},
		}
	}

	var scoreThreshold *float32
	if filter.MinScore > 0 {
		scoreThreshold = &filter.MinScore
	}

	resp, err := s.pointsClient.Search(ctx, &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		Filter:         qdrantFilter,
		ScoreThreshold: scoreThreshold,
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
		Params: &qdrant.SearchParams{
			HnswEf: uint64Ptr(128), // Higher values = more accurate but slower
		},
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]SearchResult, len(resp.Result))
	for i, point := range resp.Result {
		results[i] = SearchResult{
			ID:    point.Id.GetUuid(),
			Score: point.Score,
			Entry: faq.Entry{
				Question: payloadString(point.Payload, "question"),
				Answer:   payloadString(point.Payload, "answer"),
				Category: payloadString(point.Payload, "category"),
			},
		}
	}
	return results, nil
}

// Count reports how many points the collection holds.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	info, err := s.collectionsClient.Get(ctx, &qdrant.GetCollectionInfoRequest{
		CollectionName: s.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get collection info: %w", err)
	}
	return int(info.Result.GetPointsCount()), nil
}

// Reset drops the collection and recreates it empty.
func (s *QdrantStore) Reset(ctx context.Context) error {
	_, err := s.collectionsClient.Delete(ctx, &qdrant.DeleteCollection{
		CollectionName: s.collection,
	})
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return s.InitializeCollection(ctx)
}

// Close closes the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.conn.Close()
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func uint64Ptr(v uint64) *uint64 { return &v }
