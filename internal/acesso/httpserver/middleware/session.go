package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"finitefield.org/acesso/internal/acesso/observability"
	appsession "finitefield.org/acesso/internal/acesso/session"
)

type sessionContextKey string

const requestSessionKey sessionContextKey = "acesso.session"

// SessionStore abstracts the session manager for middleware integration.
type SessionStore interface {
	Load(*http.Request) (*appsession.Session, error)
	New() *appsession.Session
	Save(http.ResponseWriter, *appsession.Session) error
	Destroy(http.ResponseWriter)
}

// Session attaches the decoded session to the request context. Changes are written back as a
// cookie just before the response headers go out, so handlers that redirect still persist
// the session.
func Session(store SessionStore) func(http.Handler) http.Handler {
	if store == nil {
		panic("session store is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := observability.FromContext(r.Context())
			sess, err := store.Load(r)
			switch {
			case errors.Is(err, appsession.ErrExpired):
				logger.Info("session expired; resetting")
				store.Destroy(w)
				sess = store.New()
			case err != nil || sess == nil:
				if err != nil {
					logger.Warn("session load failed", zap.Error(err))
				}
				sess = store.New()
			}

			sw := &sessionWriter{ResponseWriter: w, save: func(w http.ResponseWriter) {
				if err := store.Save(w, sess); err != nil {
					logger.Error("session save failed", zap.Error(err))
				}
			}}

			ctx := context.WithValue(r.Context(), requestSessionKey, sess)
			next.ServeHTTP(sw, r.WithContext(ctx))
			sw.flush()
		})
	}
}

// SessionFromContext retrieves the session attached to this request.
func SessionFromContext(ctx context.Context) (*appsession.Session, bool) {
	if ctx == nil {
		return nil, false
	}
	sess, ok := ctx.Value(requestSessionKey).(*appsession.Session)
	return sess, ok && sess != nil
}

type sessionWriter struct {
	http.ResponseWriter
	save  func(http.ResponseWriter)
	saved bool
}

func (w *sessionWriter) flush() {
	if w.saved {
		return
	}
	w.saved = true
	w.save(w.ResponseWriter)
}

func (w *sessionWriter) WriteHeader(status int) {
	w.flush()
	w.ResponseWriter.WriteHeader(status)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.flush()
	return w.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *sessionWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
