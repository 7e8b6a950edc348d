package redisclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and checks connectivity
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func tokenKey(token string) string {
	return "token:" + digest(token)
}

func failedImageKey(url string) string {
	return "img:failed:" + digest(url)
}

func batchKey(id string) string {
	return fmt.Sprintf("batch:%s", id)
}

// SetToken caches a verified token payload. Only the token digest is stored.
func (c *Client) SetToken(ctx context.Context, token string, payload []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, tokenKey(token), payload, ttl).Err()
}

// GetToken returns the cached payload for token, or false on a miss
func (c *Client) GetToken(ctx context.Context, token string) ([]byte, bool, error) {
	payload, err := c.rdb.Get(ctx, tokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// MarkImageFailed remembers that url failed permanently
func (c *Client) MarkImageFailed(ctx context.Context, url, reason string, ttl time.Duration) error {
	return c.rdb.Set(ctx, failedImageKey(url), reason, ttl).Err()
}

// IsImageFailed reports whether url is in the negative cache
func (c *Client) IsImageFailed(ctx context.Context, url string) (bool, error) {
	n, err := c.rdb.Exists(ctx, failedImageKey(url)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClaimBatch records a batch id and reports whether this caller is the first to see it
func (c *Client) ClaimBatch(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, batchKey(id), "1", ttl).Result()
}

// ReleaseBatch forgets a batch id so a redelivery is processed again
func (c *Client) ReleaseBatch(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, batchKey(id)).Err()
}
