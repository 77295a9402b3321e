package httpapi

import (
	"net/http"
	"time"

	"maintenance-platform/internal/auth"
	"maintenance-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// MutationCap bounds the number of in-flight mutating calls per user. A stuck
// client retrying a transition in a tight loop gets 429s instead of stacking
// lock contention on the request row.
type MutationCap struct {
	Redis *redis.Client
	Limit int
	TTL   time.Duration
}

func (m MutationCap) Middleware() gin.HandlerFunc {
	limit := m.Limit
	if limit <= 0 {
		limit = 4
	}
	ttl := m.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return func(c *gin.Context) {
		if m.Redis == nil {
			c.Next()
			return
		}
		userID, err := auth.UserID(c.Request.Context())
		if err != nil {
			c.Next() // unauthenticated calls are rejected downstream
			return
		}
		key := "lifecycle:mutcap:" + userID

		ok, err := utils.AcquireConcurrencyCap(c.Request.Context(), m.Redis, key, limit, ttl)
		if err != nil {
			// Redis trouble must not take the write path down.
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many concurrent requests"})
			return
		}
		defer func() { _ = utils.ReleaseConcurrencyCap(c.Request.Context(), m.Redis, key) }()
		c.Next()
	}
}
