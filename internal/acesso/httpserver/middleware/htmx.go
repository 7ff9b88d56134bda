package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const htmxContextKey contextKey = "htmx.info"

// HTMXInfo captures request metadata from HX-* headers.
type HTMXInfo struct {
	IsHTMX      bool
	IsBoosted   bool
	CurrentURL  string
	Target      string
	TriggerName string
}

// HTMX returns middleware that inspects HX-* headers and annotates the context.
func HTMX() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := HTMXInfo{
				IsHTMX:      strings.EqualFold(r.Header.Get("HX-Request"), "true"),
				IsBoosted:   strings.EqualFold(r.Header.Get("HX-Boosted"), "true"),
				CurrentURL:  r.Header.Get("HX-Current-URL"),
				Target:      r.Header.Get("HX-Target"),
				TriggerName: r.Header.Get("HX-Trigger-Name"),
			}
			w.Header().Add("Vary", "HX-Request")

			ctx := context.WithValue(r.Context(), htmxContextKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HTMXInfoFromContext retrieves HTMX metadata; returns zero value if absent.
func HTMXInfoFromContext(ctx context.Context) HTMXInfo {
	val, ok := ctx.Value(htmxContextKey).(HTMXInfo)
	if !ok {
		return HTMXInfo{}
	}
	return val
}

// IsHTMXRequest returns true when the current request was initiated by htmx.
func IsHTMXRequest(ctx context.Context) bool {
	return HTMXInfoFromContext(ctx).IsHTMX
}

// IsFragmentRequest reports an htmx request that expects a partial swap rather than a full
// page. Boosted navigations receive full documents.
func IsFragmentRequest(ctx context.Context) bool {
	info := HTMXInfoFromContext(ctx)
	return info.IsHTMX && !info.IsBoosted
}

// Redirect sends the client to location. htmx requests receive HX-Redirect with 204 so the
// browser performs a full navigation; others get 303 See Other.
func Redirect(w http.ResponseWriter, r *http.Request, location string) {
	if IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Redirect", location)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
