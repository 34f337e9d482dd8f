package session

import "net/http"

// Middleware resolves the session identity into the request context.
// Verification failure is never fatal: the request proceeds as anonymous and
// the dead cookie is cleared.
func Middleware(codec *Codec, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			id := codec.Verify(token)
			if id == nil {
				ClearCookie(w, secure)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}
