package database

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"pedia-assist-go/internal/config"
	"pedia-assist-go/pkg/log"
)

// RDB 承载查询向量缓存与导入任务的失败计数，二者都容忍 Redis 短暂不可用。
var RDB *redis.Client

// InitRedis 连接 Redis，启动时无法连通则退出。
func InitRedis(cfg config.RedisConfig) {
	RDB = redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := RDB.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to redis at %s: %v", cfg.Addr, err)
	}
	log.Infof("Redis client connected, addr: %s, db: %d", cfg.Addr, cfg.DB)
}
