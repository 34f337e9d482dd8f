package oauth

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hypveg/chat-gateway/internal/httputil"
	"github.com/hypveg/chat-gateway/internal/session"
)

// Handler serves the login and callback endpoints. The authorization-code
// exchange itself is delegated to golang.org/x/oauth2; this layer only
// verifies state, fetches the user info, and mints the session.
type Handler struct {
	registry *Registry
	codec    *session.Codec
	secure   bool
	client   *http.Client
}

func NewHandler(registry *Registry, codec *session.Codec, secure bool) *Handler {
	return &Handler{
		registry: registry,
		codec:    codec,
		secure:   secure,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Login redirects to the provider's authorization page.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	provider, ok := h.registry.Get(chi.URLParam(r, "provider"))
	if !ok {
		httputil.WriteMessage(w, reqID, http.StatusNotFound, "未知的登录方式。")
		return
	}

	state := randomState()
	setStateCookie(w, state, h.secure)
	http.Redirect(w, r, provider.Config.AuthCodeURL(state), http.StatusFound)
}

// Callback completes the flow: state check, code exchange, userinfo fetch,
// session mint.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	provider, ok := h.registry.Get(chi.URLParam(r, "provider"))
	if !ok {
		httputil.WriteMessage(w, reqID, http.StatusNotFound, "未知的登录方式。")
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		slog.Warn("oauth state mismatch", "request_id", reqID, "provider", provider.Name)
		httputil.WriteMessage(w, reqID, http.StatusBadRequest, "登录验证失败，请重新登录。")
		return
	}
	clearStateCookie(w, h.secure)

	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.WriteMessage(w, reqID, http.StatusBadRequest, "登录验证失败，请重新登录。")
		return
	}

	token, err := provider.Config.Exchange(r.Context(), code)
	if err != nil {
		slog.Error("oauth code exchange failed", "request_id", reqID, "provider", provider.Name, "error", err)
		httputil.WriteMessage(w, reqID, http.StatusBadGateway, "登录失败，请稍后再试。")
		return
	}

	identity, err := h.fetchIdentity(r, provider, token.AccessToken)
	if err != nil {
		slog.Error("oauth userinfo fetch failed", "request_id", reqID, "provider", provider.Name, "error", err)
		httputil.WriteMessage(w, reqID, http.StatusBadGateway, "登录失败，请稍后再试。")
		return
	}

	sessionToken, err := h.codec.Mint(*identity)
	if err != nil {
		slog.Error("session mint failed", "request_id", reqID, "error", err)
		httputil.WriteMessage(w, reqID, http.StatusInternalServerError, "登录失败，请稍后再试。")
		return
	}
	session.SetCookie(w, sessionToken, h.secure)

	slog.Info("user logged in", "request_id", reqID, "provider", provider.Name, "user_id", identity.ID)
	http.Redirect(w, r, "/", http.StatusFound)
}

// userInfo covers the two common shapes: OIDC ("sub") and plain REST ("id",
// possibly numeric).
type userInfo struct {
	ID    json.Number `json:"id"`
	Sub   string      `json:"sub"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
}

func (h *Handler) fetchIdentity(r *http.Request, provider *Provider, accessToken string) (*session.Identity, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, provider.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}

	id := info.Sub
	if id == "" {
		id = info.ID.String()
	}
	if id == "" {
		return nil, fmt.Errorf("userinfo has no subject")
	}

	return &session.Identity{ID: id, Email: info.Email, Name: info.Name}, nil
}

func randomState() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
