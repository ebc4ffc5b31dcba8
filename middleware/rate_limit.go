package middleware

import (
	"net/http"

	"ngo-report-api/config"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const rateLimitPrefix = "ngo_reports:ratelimit"

// NewRateLimitStore picks the limiter store. The redis store falls back to memory
// when no client is available.
func NewRateLimitStore(opts config.RateLimitOptions, client *redis.Client) limiter.Store {
	if opts.Storage == "redis" && client != nil {
		store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: rateLimitPrefix})
		if err == nil {
			return store
		}
		config.Logger.WithError(err).Warn("Failed to create Redis store for rate limiting, falling back to memory")
	}
	return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: rateLimitPrefix})
}

// RateLimit limits requests per client IP at the configured rate, e.g. "120-M".
func RateLimit(opts config.RateLimitOptions, store limiter.Store) (gin.HandlerFunc, error) {
	rate, err := limiter.NewRateFromFormatted(opts.Rate)
	if err != nil {
		return nil, err
	}
	return mgin.NewMiddleware(limiter.New(store, rate),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
		}),
	), nil
}
