package middleware

import (
	"context"
	"net/http"
	"path"
	"strings"
)

type requestInfoKeyType int

const requestInfoKey requestInfoKeyType = iota

// RequestInfo holds request metadata exposed to views.
type RequestInfo struct {
	BasePath    string
	Environment string
}

// URL joins elem onto the base path.
func (i *RequestInfo) URL(elem string) string {
	base := "/"
	if i != nil && i.BasePath != "" {
		base = i.BasePath
	}
	joined := path.Join(base, elem)
	if strings.HasSuffix(elem, "/") && joined != "/" {
		joined += "/"
	}
	return joined
}

// RequestInfoMiddleware annotates the context with the base path and the deployment
// environment label.
func RequestInfoMiddleware(basePath, environment string) func(http.Handler) http.Handler {
	base := NormalizeBasePath(basePath)
	env := strings.ToLower(strings.TrimSpace(environment))
	if env == "" {
		env = "local"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := &RequestInfo{
				BasePath:    base,
				Environment: env,
			}
			ctx := context.WithValue(r.Context(), requestInfoKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestInfoFromContext returns the request metadata stored by RequestInfoMiddleware.
func RequestInfoFromContext(ctx context.Context) (*RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey).(*RequestInfo)
	return info, ok && info != nil
}

// NormalizeBasePath returns base with a leading slash and no trailing slash; "" becomes "/".
func NormalizeBasePath(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return "/"
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	if base != "/" {
		base = strings.TrimRight(base, "/")
		if base == "" {
			return "/"
		}
	}
	return base
}
