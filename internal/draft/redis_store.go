// Package draft stashes unsaved editor trees in Redis so an interrupted
// editing session can be recovered.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL applies when SaveDraft is given a non-positive ttl.
const DefaultTTL = 24 * time.Hour

// Draft is the latest unsaved tree of a page.
type Draft struct {
	SessionID string          `json:"session_id"`
	Author    string          `json:"author"`
	Content   json.RawMessage `json:"content"`
	Revision  int             `json:"revision"`
	SavedAt   time.Time       `json:"saved_at"`
}

// RedisStore keeps one draft per page under a prefixed key.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redisURL and checks the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client), nil
}

func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "draft:",
	}
}

func (s *RedisStore) key(pageID string) string {
	return s.prefix + pageID
}

// SaveDraft replaces the draft of a page. Concurrent writers are last write
// wins.
func (s *RedisStore) SaveDraft(ctx context.Context, pageID string, d Draft, ttl time.Duration) error {
	if d.SavedAt.IsZero() {
		d.SavedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := s.client.Set(ctx, s.key(pageID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// LoadDraft returns the draft of a page. The bool is false when none exists
// or it expired.
func (s *RedisStore) LoadDraft(ctx context.Context, pageID string) (Draft, bool, error) {
	payload, err := s.client.Get(ctx, s.key(pageID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Draft{}, false, nil
	}
	if err != nil {
		return Draft{}, false, fmt.Errorf("load draft: %w", err)
	}
	var d Draft
	if err := json.Unmarshal(payload, &d); err != nil {
		return Draft{}, false, fmt.Errorf("unmarshal draft: %w", err)
	}
	return d, true, nil
}

func (s *RedisStore) DeleteDraft(ctx context.Context, pageID string) error {
	if err := s.client.Del(ctx, s.key(pageID)).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
