package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisConfig describes the Redis connection of a RedisStore.
type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore keeps each task's summaries in a Redis list capped with LTRIM.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address must not be empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewRedisStoreFromClient(client, cfg.KeyPrefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "jubilee:task:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(taskID int64) string {
	return s.prefix + strconv.FormatInt(taskID, 10) + ":sessions"
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, taskID int64) ([]SessionSummary, error) {
	if err := validateID(taskID); err != nil {
		return nil, err
	}
	values, err := s.client.LRange(ctx, s.key(taskID), -MaxEntries, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load task %d: %w", taskID, err)
	}
	out := make([]SessionSummary, 0, len(values))
	for _, v := range values {
		var summary SessionSummary
		if err := json.Unmarshal([]byte(v), &summary); err != nil {
			return nil, fmt.Errorf("redis decode task %d: %w", taskID, err)
		}
		out = append(out, summary)
	}
	return out, nil
}

// Append implements Store. RPUSH and LTRIM run in one MULTI/EXEC so the list
// never exceeds MaxEntries.
func (s *RedisStore) Append(ctx context.Context, taskID int64, summary SessionSummary) error {
	if err := validateID(taskID); err != nil {
		return err
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("redis encode task %d: %w", taskID, err)
	}
	key := s.key(taskID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, raw)
		pipe.LTrim(ctx, key, -MaxEntries, -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append task %d: %w", taskID, err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
