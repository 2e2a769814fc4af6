package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/formatexp/formatexp/pkg/credits"
)

const (
	defaultGenerateRateLimit = 10
	rateLimitWindow          = time.Minute
)

// rateLimitGenerate enforces a fixed-window per-account limit on
// generation requests, backed by Redis so multiple server instances
// share one counter. Requests pass through when Redis is unavailable;
// the credit debit is the real backstop.
func (s *Server) rateLimitGenerate(next http.Handler) http.Handler {
	if s.redis == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		window := time.Now().Unix() / int64(rateLimitWindow.Seconds())
		key := fmt.Sprintf("formatexp:ratelimit:generate:%s:%d", accountID(ctx), window)

		count, err := s.redis.Incr(ctx, key).Result()
		if err != nil {
			s.logger.Warn("rate limit check failed, allowing request",
				credits.Field{Key: "error", Value: err.Error()},
			)
			next.ServeHTTP(w, r)
			return
		}
		if count == 1 {
			s.redis.Expire(ctx, key, 2*rateLimitWindow)
		}
		if count > int64(s.generateRateLimit) {
			writeError(w, http.StatusTooManyRequests, "too many generation requests, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}
