package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/analystmesh/core"
)

// RedisOptions configures a RedisSink.
type RedisOptions struct {
	// KeyPrefix namespaces all keys. Defaults to "analystmesh:".
	KeyPrefix string
	// TTL expires records. Zero keeps them forever.
	TTL time.Duration
}

// RedisSink stores records as JSON documents and keeps a sorted index of
// session ids by start time.
type RedisSink struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisSink creates a sink on client.
func NewRedisSink(client redis.UniversalClient, optFns ...func(o *RedisOptions)) *RedisSink {
	opts := RedisOptions{KeyPrefix: "analystmesh:"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RedisSink{
		client:    client,
		keyPrefix: opts.KeyPrefix + "session:",
		ttl:       opts.TTL,
	}
}

func (s *RedisSink) recordKey(sessionID string) string { return s.keyPrefix + "data:" + sessionID }

func (s *RedisSink) indexKey() string { return s.keyPrefix + "index" }

// Save upserts rec.
func (s *RedisSink) Save(ctx context.Context, rec core.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.recordKey(rec.SessionID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(rec.StartedAt.UnixNano()),
		Member: rec.SessionID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session %s: %w", rec.SessionID, err)
	}
	return nil
}

// Get loads the record for sessionID.
func (s *RedisSink) Get(ctx context.Context, sessionID string) (core.SessionRecord, error) {
	data, err := s.client.Get(ctx, s.recordKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.SessionRecord{}, ErrNotFound
	}
	if err != nil {
		return core.SessionRecord{}, err
	}
	var rec core.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return core.SessionRecord{}, fmt.Errorf("failed to unmarshal session record: %w", err)
	}
	return rec, nil
}

// Recent returns up to n session ids, newest first.
func (s *RedisSink) Recent(ctx context.Context, n int64) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	return s.client.ZRevRange(ctx, s.indexKey(), 0, n-1).Result()
}

// Ping checks the connection.
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
