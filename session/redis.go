package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/jubilee/core"
	"github.com/redis/go-redis/v9"
)

// RedisStore persists histories as JSON strings under prefix+id.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps client. A zero ttl keeps sessions forever.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "jubilee:session:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, id string) (*core.ChatHistory, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	raw, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.NewChatHistory(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis load session %s: %w", id, err)
	}
	var msgs []core.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("redis decode session %s: %w", id, err)
	}
	return core.NewChatHistory(msgs...), nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, id string, history *core.ChatHistory) error {
	if id == "" {
		return ErrEmptyID
	}
	raw, err := json.Marshal(history.Messages())
	if err != nil {
		return fmt.Errorf("redis encode session %s: %w", id, err)
	}
	if err := s.client.Set(ctx, s.prefix+id, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis save session %s: %w", id, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.prefix+id).Err(); err != nil {
		return fmt.Errorf("redis delete session %s: %w", id, err)
	}
	return nil
}
