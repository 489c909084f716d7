package sagaflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the list key RedisSink uses when none is configured.
const DefaultRedisKey = "sagaflow:deadletters"

// RedisSink appends dead letters as JSON to a Redis list.
type RedisSink struct {
	client redis.Cmdable
	key    string
}

// NewRedisSink creates a sink writing to key on the given client.
func NewRedisSink(client redis.Cmdable, key string) *RedisSink {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSink{client: client, key: key}
}

// Report pushes the letter onto the tail of the list.
func (r *RedisSink) Report(ctx context.Context, letter DeadLetter) error {
	data, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}
	if err := r.client.RPush(ctx, r.key, data).Err(); err != nil {
		return fmt.Errorf("failed to push dead letter to %s: %w", r.key, err)
	}
	return nil
}

// List returns every letter on the list, oldest first.
func (r *RedisSink) List(ctx context.Context) ([]DeadLetter, error) {
	raw, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letters from %s: %w", r.key, err)
	}

	letters := make([]DeadLetter, 0, len(raw))
	for _, item := range raw {
		var letter DeadLetter
		if err := json.Unmarshal([]byte(item), &letter); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dead letter: %w", err)
		}
		letters = append(letters, letter)
	}
	return letters, nil
}
