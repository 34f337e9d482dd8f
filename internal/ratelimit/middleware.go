package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hypveg/chat-gateway/internal/httputil"
	"github.com/hypveg/chat-gateway/internal/session"
	"github.com/hypveg/chat-gateway/internal/telemetry"
)

const deniedMessage = "请求太频繁，请稍后再试。"

const (
	headerRateLimitRequests          = "X-RateLimit-Limit-Requests"
	headerRateLimitRemainingRequests = "X-RateLimit-Remaining-Requests"
	headerRateLimitReset             = "X-RateLimit-Reset-Requests"
	headerRetryAfter                 = "Retry-After"
)

// Middleware enforces both gateway policies before the handler runs.
// A denial is a local decision: the upstream is never contacted.
func Middleware(limiter *Limiter, metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := w.Header().Get("X-Request-ID")

			identityID := ""
			auth := "anon"
			if id, ok := session.IdentityFromContext(r.Context()); ok {
				identityID = id.ID
				auth = "user"
			}

			decision, err := limiter.Admit(r.Context(), identityID, clientAddr(r))
			if err != nil {
				// Counting failure never blocks the request.
				slog.Error("rate limit check failed", "request_id", reqID, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			userPolicy := limiter.UserPolicy()
			w.Header().Set(headerRateLimitRequests, strconv.FormatInt(userPolicy.Limit, 10))
			w.Header().Set(headerRateLimitRemainingRequests, strconv.FormatInt(decision.User.Remaining, 10))
			w.Header().Set(headerRateLimitReset, decision.User.ResetAt.Format(time.RFC3339))

			if !decision.Allowed {
				slog.Warn("rate limit exceeded",
					"request_id", reqID,
					"policy", decision.Denied,
					"auth", auth,
				)
				if metrics != nil {
					metrics.RecordRateLimitDenied(decision.Denied)
				}
				retryAfter := int(decision.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set(headerRetryAfter, strconv.Itoa(retryAfter))
				httputil.WriteMessage(w, reqID, http.StatusTooManyRequests, deniedMessage)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr is the caller network address without the port. With RealIP
// middleware ahead of us this is the forwarded-for address.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
