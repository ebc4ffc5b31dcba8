package config

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses REDIS_URL into a client. It does not dial.
func NewRedisClient(opts RedisOptions) (*redis.Client, error) {
	parsed, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return redis.NewClient(parsed), nil
}
