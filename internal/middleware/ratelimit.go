package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/capitalize-ai/project-onboarding/internal/model"
)

// RateLimit limits requests per authenticated user within a tenant, falling
// back to the client IP for unauthenticated routes.
func RateLimit(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	retryAfter := int(windowLength.Seconds())
	return httprate.Limit(
		requestLimit,
		windowLength,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			tenantID, userID := GetTenantID(r.Context()), GetUserID(r.Context())
			if tenantID != "" && userID != "" {
				return "user:" + tenantID + "/" + userID, nil
			}
			return httprate.KeyByRealIP(r)
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(&model.ErrorEvent{
				Code:       "rate_limited",
				Message:    "rate limit exceeded",
				RetryAfter: retryAfter,
			})
		}),
	)
}
