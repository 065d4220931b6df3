package scheduler

import (
	redis "github.com/redis/go-redis/v9"

	"github.com/invobook/invobook/internal/config"
)

// ProvideLocker builds the distributed job lock. Without a redis
// address the scheduler runs unlocked, which is fine for a single
// instance.
func ProvideLocker(cfg config.Config) *Locker {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return NewLocker(client)
}
