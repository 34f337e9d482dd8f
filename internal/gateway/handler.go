package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/hypveg/chat-gateway/internal/config"
	"github.com/hypveg/chat-gateway/internal/httputil"
	"github.com/hypveg/chat-gateway/internal/relay"
	"github.com/hypveg/chat-gateway/internal/session"
	"github.com/hypveg/chat-gateway/internal/telemetry"
	"github.com/hypveg/chat-gateway/internal/upstream"
)

const maxPromptChars = 3000

// Caller-facing messages. Raw upstream error text never reaches the caller;
// it is logged with the correlation ID instead.
const (
	msgEmptyPrompt   = "请输入有效的问题。"
	msgPromptTooLong = "消息太长，最多 3000 字"
	msgUpstreamDown  = "❌ 模型服务暂时不可用，请稍后再试。"
	msgUpstreamBusy  = "模型服务繁忙，请稍后再试。"
	msgMisconfigured = "服务暂时不可用，请联系管理员。"
)

// Handler holds dependencies for the gateway HTTP handlers.
type Handler struct {
	upstream *upstream.Client
	cfg      func() *config.Config
	metrics  *telemetry.Metrics
}

func NewHandler(client *upstream.Client, cfg func() *config.Config, metrics *telemetry.Metrics) *Handler {
	return &Handler{
		upstream: client,
		cfg:      cfg,
		metrics:  metrics,
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// Generate handles POST /generate.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()

	auth := "anon"
	userID := ""
	if id, ok := session.IdentityFromContext(r.Context()); ok {
		auth = "user"
		userID = id.ID
	}

	var req generateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		h.finish(w, reqID, http.StatusBadRequest, msgEmptyPrompt, auth, receivedAt)
		return
	}
	defer r.Body.Close()

	if req.Prompt == "" {
		h.finish(w, reqID, http.StatusBadRequest, msgEmptyPrompt, auth, receivedAt)
		return
	}
	if utf8.RuneCountInString(req.Prompt) > maxPromptChars {
		h.finish(w, reqID, http.StatusBadRequest, msgPromptTooLong, auth, receivedAt)
		return
	}

	if req.Stream {
		h.generateStream(w, r, reqID, req.Prompt, auth, userID, receivedAt)
		return
	}

	text, err := h.upstream.Complete(r.Context(), req.Prompt)
	if err != nil {
		status, msg := h.classify(reqID, err)
		h.finish(w, reqID, status, msg, auth, receivedAt)
		return
	}

	slog.Info("request completed",
		"request_id", reqID,
		"auth", auth,
		"user_id", userID,
		"stream", false,
		"duration_ms", time.Since(receivedAt).Milliseconds(),
		"status_code", http.StatusOK,
	)
	h.finish(w, reqID, http.StatusOK, text, auth, receivedAt)
}

func (h *Handler) generateStream(w http.ResponseWriter, r *http.Request, reqID, prompt, auth, userID string, receivedAt time.Time) {
	if h.metrics != nil {
		h.metrics.ActiveStreams.Inc()
		defer h.metrics.ActiveStreams.Dec()
	}

	// Operator-forced buffered mode: same outward event shape, one upstream
	// buffered call under the hood.
	if h.cfg().Upstream.BufferedStreams {
		text, err := h.upstream.Complete(r.Context(), prompt)
		if err != nil {
			status, msg := h.classify(reqID, err)
			h.finish(w, reqID, status, msg, auth, receivedAt)
			return
		}
		wr, err := relay.NewWriter(w, reqID)
		if err != nil {
			h.finish(w, reqID, http.StatusInternalServerError, msgUpstreamDown, auth, receivedAt)
			return
		}
		relay.RunBuffered(text, h.counted(wr.Emit))
		h.logStream(reqID, auth, userID, receivedAt, nil)
		return
	}

	// The request context cancels on caller disconnect, tearing down the
	// upstream connection with it.
	lines, err := h.upstream.Stream(r.Context(), prompt)
	if err != nil {
		// Headers are not committed yet; fail at the HTTP level.
		status, msg := h.classify(reqID, err)
		h.finish(w, reqID, status, msg, auth, receivedAt)
		return
	}
	defer lines.Close()

	wr, err := relay.NewWriter(w, reqID)
	if err != nil {
		h.finish(w, reqID, http.StatusInternalServerError, msgUpstreamDown, auth, receivedAt)
		return
	}

	runErr := relay.Run(lines, msgUpstreamDown, h.counted(wr.Emit))
	if runErr != nil {
		slog.Warn("caller disconnected mid-stream",
			"request_id", reqID,
			"error", runErr,
		)
	}
	if err := lines.Err(); err != nil {
		slog.Error("upstream stream failed",
			"request_id", reqID,
			"error", err,
		)
		if h.metrics != nil {
			h.metrics.RecordUpstreamError(upstream.KindNetwork.String())
		}
	}
	h.logStream(reqID, auth, userID, receivedAt, runErr)
}

// counted wraps an emit func with per-event metrics.
func (h *Handler) counted(emit func(relay.Event) error) func(relay.Event) error {
	if h.metrics == nil {
		return emit
	}
	return func(ev relay.Event) error {
		h.metrics.RecordStreamEvent(ev.Type.String())
		return emit(ev)
	}
}

func (h *Handler) logStream(reqID, auth, userID string, receivedAt time.Time, runErr error) {
	slog.Info("stream completed",
		"request_id", reqID,
		"auth", auth,
		"user_id", userID,
		"stream", true,
		"caller_disconnected", runErr != nil,
		"duration_ms", time.Since(receivedAt).Milliseconds(),
	)
}

// classify maps an upstream failure onto the caller-safe response table and
// records it server-side.
func (h *Handler) classify(reqID string, err error) (int, string) {
	kind, _ := upstream.KindOf(err)
	if h.metrics != nil {
		h.metrics.RecordUpstreamError(kind.String())
	}

	switch kind {
	case upstream.KindAuth:
		// Credential misconfiguration on our side. Elevated severity; the
		// caller sees only a generic message.
		slog.Error("upstream rejected credentials, check API key configuration",
			"request_id", reqID,
			"error", err,
		)
		return http.StatusInternalServerError, msgMisconfigured
	case upstream.KindRateLimited:
		slog.Warn("upstream rate limited", "request_id", reqID, "error", err)
		return http.StatusTooManyRequests, msgUpstreamBusy
	case upstream.KindTimeout:
		slog.Error("upstream timeout", "request_id", reqID, "error", err)
		return http.StatusServiceUnavailable, msgUpstreamDown
	case upstream.KindMalformed:
		slog.Error("upstream response malformed", "request_id", reqID, "error", err)
		return http.StatusServiceUnavailable, msgUpstreamDown
	default:
		slog.Error("upstream call failed", "request_id", reqID, "error", err)
		return http.StatusServiceUnavailable, msgUpstreamDown
	}
}

func (h *Handler) finish(w http.ResponseWriter, reqID string, status int, msg, auth string, receivedAt time.Time) {
	if h.metrics != nil {
		h.metrics.RecordRequest("/generate", strconv.Itoa(status), auth, float64(time.Since(receivedAt).Milliseconds()))
	}
	httputil.WriteMessage(w, reqID, status, msg)
}

// GetUser handles GET /get-user.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	id, ok := session.IdentityFromContext(r.Context())
	if !ok {
		httputil.WriteJSON(w, reqID, http.StatusUnauthorized, map[string]any{"email": nil})
		return
	}
	httputil.WriteJSON(w, reqID, http.StatusOK, map[string]string{
		"email": id.Email,
		"name":  id.Name,
		"id":    id.ID,
	})
}

// Logout handles GET /logout: clears the session and redirects home.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	session.ClearCookie(w, h.cfg().Session.CookieSecure)
	http.Redirect(w, r, "/", http.StatusFound)
}

// Health handles GET /health. Liveness only, no dependency checks.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("OK"))
}
