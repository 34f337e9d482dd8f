package oauth

import (
	"net/http"
	"time"

	"github.com/hypveg/chat-gateway/internal/config"
	"golang.org/x/oauth2"
)

// Provider is one configured identity provider.
type Provider struct {
	Name        string
	Config      *oauth2.Config
	UserInfoURL string
}

// Registry holds the providers built from configuration.
type Registry struct {
	providers map[string]*Provider
}

func NewRegistry(cfg config.OAuthConfig) *Registry {
	providers := make(map[string]*Provider, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		providers[name] = &Provider{
			Name: name,
			Config: &oauth2.Config{
				ClientID:     pc.ClientID,
				ClientSecret: pc.ClientSecret,
				RedirectURL:  pc.RedirectURL,
				Scopes:       pc.Scopes,
				Endpoint: oauth2.Endpoint{
					AuthURL:  pc.AuthURL,
					TokenURL: pc.TokenURL,
				},
			},
			UserInfoURL: pc.UserInfoURL,
		}
	}
	return &Registry{providers: providers}
}

func (r *Registry) Get(name string) (*Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

const stateCookieName = "oauth_state"

func setStateCookie(w http.ResponseWriter, state string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearStateCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
