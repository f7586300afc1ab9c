package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"studypad/backend/internal/services"
)

const (
	// maxHistoryMessages caps the window sent back to the model.
	maxHistoryMessages = 20
	historyTTL         = 24 * time.Hour
)

// RedisHistory keeps conversation history in a Redis list per key.
type RedisHistory struct {
	rdb *redis.Client
}

func NewRedisHistory() (*RedisHistory, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil, fmt.Errorf("REDIS_ADDR environment variable not set")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisHistory{rdb: rdb}, nil
}

func (h *RedisHistory) Load(ctx context.Context, key string) ([]services.ChatMessage, error) {
	raw, err := h.rdb.LRange(ctx, key, int64(-maxHistoryMessages), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", key, err)
	}
	msgs := make([]services.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var m services.ChatMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (h *RedisHistory) Append(ctx context.Context, key string, msgs ...services.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal history message: %w", err)
		}
		values = append(values, b)
	}
	pipe := h.rdb.Pipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, int64(-maxHistoryMessages), -1)
	pipe.Expire(ctx, key, historyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append history %s: %w", key, err)
	}
	return nil
}

var _ History = (*RedisHistory)(nil)
