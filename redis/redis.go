package redis

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore keeps issued session tokens in Redis so that logout can revoke
// them before they expire. When Redis is unavailable the store degrades to a
// no-op and tokens are accepted on signature alone.
type TokenStore struct {
	client *redis.Client
}

func NewTokenStore(address string) *TokenStore {
	client := redis.NewClient(&redis.Options{
		Addr: address,
	})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		log.Println("Redis not available. Running without Redis.")
		return &TokenStore{}
	}

	log.Println("Redis connected successfully.")
	return &TokenStore{client: client}
}

// NewTokenStoreWithClient wraps an existing client (used in tests).
func NewTokenStoreWithClient(client *redis.Client) *TokenStore {
	return &TokenStore{client: client}
}

func (s *TokenStore) Save(ctx context.Context, token string, userID string, ttl time.Duration) error {
	if s.client == nil {
		return nil
	}
	return s.client.Set(ctx, token, userID, ttl).Err()
}

// Exists reports whether the token is still live. Without Redis every
// signed token is considered live.
func (s *TokenStore) Exists(ctx context.Context, token string) (bool, error) {
	if s.client == nil {
		return true, nil
	}
	n, err := s.client.Exists(ctx, token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, token).Err()
}

func (s *TokenStore) Close() {
	if s.client != nil {
		_ = s.client.Close()
	}
}
