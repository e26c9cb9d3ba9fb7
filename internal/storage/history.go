package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"pulse/backend/internal/config"
	"pulse/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// HistoryStore keeps the most recent chat messages in a capped Redis list,
// newest first.
type HistoryStore struct {
	rdb   *redis.Client
	key   string
	limit int64
}

func NewHistoryStore(rdb *redis.Client, limit int64) *HistoryStore {
	if limit <= 0 {
		limit = config.DefaultHistoryLimit
	}
	return &HistoryStore{rdb: rdb, key: config.HistoryKey, limit: limit}
}

// Limit is the number of entries retained after each trim.
func (h *HistoryStore) Limit() int64 {
	return h.limit
}

// Record pushes env to the head of the list and trims it to the limit. Under
// concurrent writers the list may briefly exceed the limit until the next trim.
func (h *HistoryStore) Record(ctx context.Context, env models.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}

	_, err = h.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, h.key, data)
		pipe.LTrim(ctx, h.key, 0, h.limit-1)
		return nil
	})
	return err
}

// Recent returns up to n entries, most recent first. n <= 0 or above the limit
// returns the whole buffer.
func (h *HistoryStore) Recent(ctx context.Context, n int64) ([]models.Envelope, error) {
	if n <= 0 || n > h.limit {
		n = h.limit
	}

	raw, err := h.rdb.LRange(ctx, h.key, 0, n-1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]models.Envelope, 0, len(raw))
	for _, item := range raw {
		var env models.Envelope
		if err := json.Unmarshal([]byte(item), &env); err != nil {
			log.Printf("WARNING: skipping undecodable history entry: %v", err)
			continue
		}
		out = append(out, env)
	}
	return out, nil
}

func (h *HistoryStore) Len(ctx context.Context) (int64, error) {
	return h.rdb.LLen(ctx, h.key).Result()
}

func (h *HistoryStore) Clear(ctx context.Context) error {
	return h.rdb.Del(ctx, h.key).Err()
}
