package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ashureev/tutorlabs/internal/domain"
)

const redisKeyPrefix = "tutorlabs:session:"

// RedisConfig holds the connection settings of the redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps sessions as JSON values whose TTL is refreshed on every
// save, so redis itself expires idle sessions.
type RedisStore struct {
	rdb     *redis.Client
	timeout time.Duration
	now     func() time.Time
}

// NewRedis connects to redis and verifies the connection.
func NewRedis(cfg RedisConfig, timeout time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{rdb: rdb, timeout: orDefault(timeout), now: time.Now}, nil
}

func redisKey(id string) string { return redisKeyPrefix + id }

// Get loads a session. Keys expire in redis, so a session past its
// timeout is normally reported as ErrNotFound; ErrExpired only shows up
// when the clock and the key TTL disagree.
func (r *RedisStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	raw, err := r.rdb.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var s domain.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	if expired(&s, r.timeout, r.now()) {
		_ = r.Delete(ctx, id)
		return nil, ErrExpired
	}
	return &s, nil
}

// Save writes the session and resets its TTL.
func (r *RedisStore) Save(ctx context.Context, s *domain.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.rdb.Set(ctx, redisKey(s.SessionID), raw, r.timeout).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a session.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: redis expires keys itself.
func (r *RedisStore) DeleteExpired(context.Context) ([]string, error) { return nil, nil }

// Count scans the session keyspace.
func (r *RedisStore) Count(ctx context.Context) (int, error) {
	var n int
	iter := r.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	return n, nil
}

// Ping checks if redis is reachable.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the redis connection.
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
