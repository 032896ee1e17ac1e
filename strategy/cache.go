package strategy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rcc-sub005/llmrouter/core"
)

// ResponseCache backs the cached_response fallback action: a Redis-stored
// mapping from a deterministic request fingerprint to its last known-good
// response, adapted from the teacher's idempotency.Manager (which caches
// a successful call's result keyed by its deterministic inputs) repurposed
// here for fallback-on-failure rather than dedup-on-retry.
type ResponseCache struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewResponseCache builds a ResponseCache. A nil client makes every method
// a safe no-op, so the Strategy Manager can treat the cache as optional.
func NewResponseCache(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *ResponseCache {
	if prefix == "" {
		prefix = "llmrouter:response-cache:"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResponseCache{redis: client, prefix: prefix, ttl: ttl, logger: logger}
}

// Fingerprint hashes the deterministic parts of a request (model + messages
// + tools) so that temperature/top_p/stream do not fragment the cache key,
// matching the teacher's generateIdempotencyKey exclusion list.
func Fingerprint(req *core.Request) (string, error) {
	deterministic := struct {
		Model    string         `json:"model"`
		Messages []core.Message `json:"messages"`
		Tools    []core.ToolSchema `json:"tools,omitempty"`
	}{Model: req.Model, Messages: req.Messages, Tools: req.Tools}

	data, err := json.Marshal(deterministic)
	if err != nil {
		return "", fmt.Errorf("fingerprint request: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Get returns the cached response for key, if present and unexpired.
func (c *ResponseCache) Get(ctx context.Context, key string) (*core.Response, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("response cache get failed", zap.Error(err))
		}
		return nil, false
	}
	var resp core.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Warn("response cache unmarshal failed", zap.Error(err))
		return nil, false
	}
	return &resp, true
}

// Set stores resp under key with the cache's configured TTL.
func (c *ResponseCache) Set(ctx context.Context, key string, resp *core.Response) {
	if c == nil || c.redis == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Warn("response cache marshal failed", zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("response cache set failed", zap.Error(err))
	}
}
