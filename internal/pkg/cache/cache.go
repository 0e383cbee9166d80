package cache

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/monkey-island/yookassa-payments/internal/pkg/env"
)

// NewClientFromEnv connects to the Redis instance shared with the bot
// processes. The client is handed to the message publisher explicitly
// rather than kept as a package singleton.
func NewClientFromEnv() *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", env.MustGetEnv("REDIS_HOST"), env.GetEnv("REDIS_PORT", "6379")),
		Password: env.GetEnv("REDIS_PASSWORD", ""),
		DB:       0, // use default DB
	})

	pong, err := client.Ping(context.Background()).Result()
	if err != nil {
		log.Printf("Warning: Could not connect to Redis: %v", err)
	} else {
		log.Printf("Successfully connected to Redis: %s", pong)
	}

	return client
}
