package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"finitefield.org/acesso/internal/acesso/observability"
)

// RequireUser lets the request through only when the session carries a signed-in user.
// Anonymous visitors are sent to loginPath.
func RequireUser(loginPath string) func(http.Handler) http.Handler {
	if loginPath == "" {
		loginPath = "/login"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := SessionFromContext(r.Context())
			if !ok || sess.User() == nil {
				observability.FromContext(r.Context()).Debug("anonymous request redirected", zap.String("login", loginPath))
				Redirect(w, r, loginPath)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RedirectSignedIn sends visitors that already have a session user to homePath. It guards
// the login form so a signed-in user is not asked for credentials again.
func RedirectSignedIn(homePath string) func(http.Handler) http.Handler {
	if homePath == "" {
		homePath = "/"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sess, ok := SessionFromContext(r.Context()); ok && sess.User() != nil && r.Method == http.MethodGet {
				Redirect(w, r, homePath)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NoStore disables caching of responses that embed per-user state.
func NoStore() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store, max-age=0")
			w.Header().Set("Pragma", "no-cache")
			next.ServeHTTP(w, r)
		})
	}
}
