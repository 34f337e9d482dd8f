package oauth

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hypveg/chat-gateway/internal/config"
	"github.com/hypveg/chat-gateway/internal/session"
)

func newTestRouter(t *testing.T, tokenURL, userInfoURL string, codec *session.Codec) chi.Router {
	t.Helper()
	registry := NewRegistry(config.OAuthConfig{
		Providers: map[string]config.OAuthProviderConfig{
			"test": {
				ClientID:     "client-id",
				ClientSecret: "client-secret",
				AuthURL:      "https://provider.test/authorize",
				TokenURL:     tokenURL,
				UserInfoURL:  userInfoURL,
				RedirectURL:  "http://gateway.test/auth/test/callback",
				Scopes:       []string{"openid", "email"},
			},
		},
	})
	h := NewHandler(registry, codec, false)

	r := chi.NewRouter()
	r.Get("/login/{provider}", h.Login)
	r.Get("/auth/{provider}/callback", h.Callback)
	return r
}

func TestLogin_RedirectsWithState(t *testing.T) {
	codec := session.NewCodec([]byte("secret"))
	router := newTestRouter(t, "https://provider.test/token", "https://provider.test/userinfo", codec)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login/test", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "https://provider.test/authorize") {
		t.Errorf("unexpected redirect target: %s", loc)
	}
	if !strings.Contains(loc, "state=") {
		t.Error("redirect must carry a state parameter")
	}

	var stateCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == stateCookieName {
			stateCookie = c
		}
	}
	if stateCookie == nil || stateCookie.Value == "" {
		t.Fatal("expected state cookie to be set")
	}
	if !strings.Contains(loc, "state="+stateCookie.Value) {
		t.Error("state cookie and redirect state must match")
	}
}

func TestLogin_UnknownProvider(t *testing.T) {
	codec := session.NewCodec([]byte("secret"))
	router := newTestRouter(t, "https://provider.test/token", "https://provider.test/userinfo", codec)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestCallback_StateMismatch(t *testing.T) {
	codec := session.NewCodec([]byte("secret"))
	router := newTestRouter(t, "https://provider.test/token", "https://provider.test/userinfo", codec)

	req := httptest.NewRequest(http.MethodGet, "/auth/test/callback?state=evil&code=abc", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "expected"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 on state mismatch, got %d", rec.Code)
	}
}

func TestCallback_MissingStateCookie(t *testing.T) {
	codec := session.NewCodec([]byte("secret"))
	router := newTestRouter(t, "https://provider.test/token", "https://provider.test/userinfo", codec)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/test/callback?state=x&code=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without state cookie, got %d", rec.Code)
	}
}

func TestCallback_MintsSessionAndRedirects(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"provider-token","token_type":"bearer"}`)
	}))
	defer tokenSrv.Close()

	userInfoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer provider-token" {
			t.Errorf("unexpected userinfo Authorization header: %s", auth)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":12345,"email":"alice@example.com","name":"Alice"}`)
	}))
	defer userInfoSrv.Close()

	codec := session.NewCodec([]byte("secret"))
	router := newTestRouter(t, tokenSrv.URL, userInfoSrv.URL, codec)

	req := httptest.NewRequest(http.MethodGet, "/auth/test/callback?state=good&code=abc", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "good"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var sessionToken string
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			sessionToken = c.Value
		}
	}
	if sessionToken == "" {
		t.Fatal("expected session cookie to be set")
	}

	id := codec.Verify(sessionToken)
	if id == nil {
		t.Fatal("minted session token does not verify")
	}
	if id.ID != "12345" || id.Email != "alice@example.com" || id.Name != "Alice" {
		t.Errorf("unexpected identity: %+v", id)
	}
}
