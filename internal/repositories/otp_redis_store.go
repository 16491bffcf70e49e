package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOTPStore is a Redis-backed implementation of OTPStore. Expiry is
// delegated to Redis key TTLs, so codes survive process restarts and are
// shared across instances.
type RedisOTPStore struct {
	client *redis.Client
}

// NewRedisOTPStore creates a new instance of RedisOTPStore.
func NewRedisOTPStore(client *redis.Client) *RedisOTPStore {
	return &RedisOTPStore{
		client: client,
	}
}

func otpKey(email string) string {
	return fmt.Sprintf("otp:%s", email)
}

// Set stores a code with a TTL, overwriting any previous one.
func (s *RedisOTPStore) Set(ctx context.Context, email, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, otpKey(email), code, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store otp for %s: %w", email, err)
	}
	return nil
}

// Get returns the live code for an email.
func (s *RedisOTPStore) Get(ctx context.Context, email string) (string, error) {
	code, err := s.client.Get(ctx, otpKey(email)).Result()
	if err == redis.Nil {
		return "", ErrOTPNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch otp for %s: %w", email, err)
	}
	return code, nil
}

// Delete removes the code for an email.
func (s *RedisOTPStore) Delete(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, otpKey(email)).Err(); err != nil {
		return fmt.Errorf("failed to delete otp for %s: %w", email, err)
	}
	return nil
}
