// Package redisstore keeps chat transcripts in Redis so several server
// instances share one history.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/suPer8Hu/guruji-chat/internal/history"
)

const keyPrefix = "guruji:chat:"

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(addr, password string, db int, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func sessionKey(id string) string { return keyPrefix + "session:" + id }
func historyKey(id string) string { return keyPrefix + "history:" + id }

func (s *Store) Create(ctx context.Context, sessionID string) (time.Time, error) {
	at := time.Now().UTC()
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, sessionKey(sessionID), at.Format(time.RFC3339Nano), s.ttl)
	pipe.Del(ctx, historyKey(sessionID))
	if _, err := pipe.Exec(ctx); err != nil {
		return time.Time{}, fmt.Errorf("redisstore: create %s: %w", sessionID, err)
	}
	return at, nil
}

func (s *Store) Append(ctx context.Context, sessionID string, entries ...history.Entry) error {
	values := make([]any, 0, len(entries))
	for _, e := range entries {
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		values = append(values, b)
	}

	pipe := s.rdb.TxPipeline()
	pipe.SetNX(ctx, sessionKey(sessionID), time.Now().UTC().Format(time.RFC3339Nano), s.ttl)
	if len(values) > 0 {
		pipe.RPush(ctx, historyKey(sessionID), values...)
	}
	pipe.Expire(ctx, sessionKey(sessionID), s.ttl)
	pipe.Expire(ctx, historyKey(sessionID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore: append %s: %w", sessionID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, sessionID string) ([]history.Entry, error) {
	if _, err := s.rdb.Get(ctx, sessionKey(sessionID)).Result(); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, history.ErrNotFound
		}
		return nil, err
	}

	raw, err := s.rdb.LRange(ctx, historyKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	// sliding expiry
	pipe := s.rdb.Pipeline()
	pipe.Expire(ctx, sessionKey(sessionID), s.ttl)
	pipe.Expire(ctx, historyKey(sessionID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	out := make([]history.Entry, 0, len(raw))
	for _, r := range raw {
		var e history.Entry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("redisstore: decode entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, sessionKey(sessionID), historyKey(sessionID)).Err()
}
