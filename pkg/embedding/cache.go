package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"pedia-assist-go/pkg/log"
)

type cachedClient struct {
	next  Client
	rdb   *redis.Client
	model string
	ttl   time.Duration
}

// NewCachedClient 用 Redis 缓存查询向量，相同的模型与文本只调用一次 Embedding API。
// Redis 异常时直接调用下游客户端，不影响查询。
func NewCachedClient(next Client, rdb *redis.Client, model string, ttl time.Duration) Client {
	return &cachedClient{next: next, rdb: rdb, model: model, ttl: ttl}
}

func (c *cachedClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(c.model, text)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vec []float32
		if jsonErr := json.Unmarshal(raw, &vec); jsonErr == nil && len(vec) > 0 {
			return vec, nil
		}
		log.Warnf("[EmbeddingCache] 缓存内容无法解析, key: %s", key)
	case !errors.Is(err, redis.Nil):
		log.Warnf("[EmbeddingCache] 读取缓存失败, 直接调用 Embedding API: %v", err)
	}

	vec, err := c.next.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(vec); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			log.Warnf("[EmbeddingCache] 写入缓存失败: %v", err)
		}
	}
	return vec, nil
}

// CacheKey 返回模型与文本对应的缓存键。
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding:" + model + ":" + hex.EncodeToString(sum[:])
}
