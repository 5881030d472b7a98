package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const revokedKeyPrefix = "girder:revoked:"

// RedisBlacklist implements Blacklist over a shared Redis instance so that a
// logout on one process is visible to every other. Entries rely on Redis key
// TTLs for expiry; there is nothing to sweep.
type RedisBlacklist struct {
	client *redis.Client
}

// NewRedisBlacklist connects to the given Redis URL and verifies the
// connection before returning.
func NewRedisBlacklist(url string) (*RedisBlacklist, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisBlacklist{client: client}, nil
}

// Revoke stores a tombstone for the token with the given TTL.
func (b *RedisBlacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if token == "" || ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, revokedKey(token), "1", ttl).Err()
}

// IsRevoked reports whether a live tombstone exists for the token.
func (b *RedisBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	n, err := b.client.Exists(ctx, revokedKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Close releases the underlying connection pool.
func (b *RedisBlacklist) Close() error {
	return b.client.Close()
}

// Tokens are long and contain the signed payload; hashing keeps key sizes
// bounded and keeps raw credentials out of the keyspace.
func revokedKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return revokedKeyPrefix + hex.EncodeToString(sum[:])
}
