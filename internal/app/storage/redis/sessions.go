// Package redis provides a session store backed by Redis. Sessions are plain
// token-hash → user-id entries with a TTL, so no sweeper is needed: expired
// refresh tokens vanish on their own.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/SilverCare-Net/care_layer/internal/app/storage"
)

const keyPrefix = "care:session:"

// SessionStore implements storage.SessionStore on a Redis client.
type SessionStore struct {
	client *redis.Client
}

var _ storage.SessionStore = (*SessionStore)(nil)

// New creates a SessionStore. The client is owned by the caller.
func New(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// Open dials Redis and verifies the connection before returning a store.
func Open(ctx context.Context, addr, password string, db int) (*SessionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(client), nil
}

func (s *SessionStore) SaveSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, keyPrefix+tokenHash, userID, ttl).Err()
}

func (s *SessionStore) GetSession(ctx context.Context, tokenHash string) (string, error) {
	userID, err := s.client.Get(ctx, keyPrefix+tokenHash).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, tokenHash string) error {
	return s.client.Del(ctx, keyPrefix+tokenHash).Err()
}

// Close releases the underlying client.
func (s *SessionStore) Close() error {
	return s.client.Close()
}
