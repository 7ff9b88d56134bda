package helpers

import (
	"context"

	"finitefield.org/acesso/internal/acesso/httpserver/middleware"
)

// URL joins elem onto the base path of the current request.
func URL(ctx context.Context, elem string) string {
	info, _ := middleware.RequestInfoFromContext(ctx)
	return info.URL(elem)
}

// Environment returns the deployment label, or "" for local runs.
func Environment(ctx context.Context) string {
	info, ok := middleware.RequestInfoFromContext(ctx)
	if !ok || info.Environment == "local" {
		return ""
	}
	return info.Environment
}
