package conversation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreType represents the type of conversation store.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// NewStore creates a conversation Store of the given type.
// Supports "memory" and "redis" driver types.
// For Redis, requires the WithRedisClient option.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	config := &storeConfig{}

	for _, opt := range opts {
		opt(config)
	}

	switch storeType {
	case StoreTypeMemory:
		return &inMemoryStore{
			conversations: make(map[string]*Conversation),
		}, nil

	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		ttl := config.redisTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		return &redisStore{
			client: config.redisClient,
			ttl:    ttl,
		}, nil

	default:
		return nil, ErrInvalidStoreType
	}
}

// inMemoryStore implements Store using a mutex-guarded map.
type inMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
}

// Touch implements Store.
func (s *inMemoryStore) Touch(ctx context.Context, id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	conv, exists := s.conversations[id]
	if !exists {
		conv = &Conversation{
			ID:           id,
			CreatedAt:    now,
			LastActivity: now,
		}
		s.conversations[id] = conv
	} else {
		conv.LastActivity = now
	}

	copied := *conv
	return &copied, nil
}

// Get implements Store.
func (s *inMemoryStore) Get(ctx context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, exists := s.conversations[id]
	if !exists {
		return nil, nil
	}
	copied := *conv
	return &copied, nil
}

// SetUserName implements Store.
func (s *inMemoryStore) SetUserName(ctx context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[id]
	if !exists {
		return ErrNotFound
	}
	conv.UserName = name
	conv.LastActivity = time.Now()
	return nil
}

// Delete implements Store.
func (s *inMemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conversations, id)
	return nil
}

// Sweep implements Store.
func (s *inMemoryStore) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, conv := range s.conversations {
		if conv.LastActivity.Before(cutoff) {
			delete(s.conversations, id)
			removed++
		}
	}
	return removed, nil
}

// Close implements Store.
func (s *inMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = nil
	return nil
}

// redisStore implements Store using Redis. Idle expiry rides on the key TTL,
// which every operation refreshes.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func conversationKey(id string) string {
	return "conversation:" + id
}

// Touch implements Store.
func (s *redisStore) Touch(ctx context.Context, id string) (*Conversation, error) {
	key := conversationKey(id)

	val, err := s.client.Get(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	now := time.Now()
	var conv Conversation
	if err == redis.Nil {
		conv = Conversation{
			ID:           id,
			CreatedAt:    now,
			LastActivity: now,
		}
	} else {
		if err := json.Unmarshal([]byte(val), &conv); err != nil {
			return nil, err
		}
		conv.LastActivity = now
	}

	data, err := json.Marshal(&conv)
	if err != nil {
		return nil, err
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return nil, err
	}

	return &conv, nil
}

// Get implements Store.
func (s *redisStore) Get(ctx context.Context, id string) (*Conversation, error) {
	val, err := s.client.Get(ctx, conversationKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var conv Conversation
	if err := json.Unmarshal([]byte(val), &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// SetUserName implements Store.
func (s *redisStore) SetUserName(ctx context.Context, id, name string) error {
	key := conversationKey(id)

	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var conv Conversation
	if err := json.Unmarshal([]byte(val), &conv); err != nil {
		return err
	}
	conv.UserName = name
	conv.LastActivity = time.Now()

	data, err := json.Marshal(&conv)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, s.ttl).Err()
}

// Delete implements Store.
func (s *redisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, conversationKey(id)).Err()
}

// Sweep implements Store. Redis expires idle conversations via the key TTL.
func (s *redisStore) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	return 0, nil
}

// Close implements Store.
func (s *redisStore) Close() error {
	return s.client.Close()
}
