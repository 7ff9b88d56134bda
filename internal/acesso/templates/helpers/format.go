package helpers

import (
	"context"
	"io"
	"time"

	"github.com/a-h/templ"
	g "maragu.dev/gomponents"

	"finitefield.org/acesso/internal/acesso/httpserver/middleware"
)

// T translates key into the language negotiated for the request.
func T(ctx context.Context, key string, args ...any) string {
	return middleware.BundleFromContext(ctx).T(middleware.LanguageFromContext(ctx), key, args...)
}

// Lang returns the BCP 47 tag of the negotiated language.
func Lang(ctx context.Context) string {
	return middleware.LanguageFromContext(ctx).String()
}

// Date formats the timestamp in the provided layout (defaults to 2006-01-02 15:04 MST).
func Date(ts time.Time, layout string) string {
	if layout == "" {
		layout = "2006-01-02 15:04 MST"
	}
	return ts.In(time.Local).Format(layout)
}

// ButtonClass returns classes for form buttons.
func ButtonClass(primary, disabled bool) string {
	class := "btn btn-secondary"
	if primary {
		class = "btn btn-primary"
	}
	if disabled {
		class += " btn-disabled"
	}
	return class
}

// AlertClass maps semantic tones to alert classes.
func AlertClass(tone string) string {
	switch tone {
	case "success":
		return "alert alert-success"
	case "danger":
		return "alert alert-danger"
	default:
		return "alert alert-info"
	}
}

// Component exposes a gomponents node as a templ component so it can be served through
// templ.Handler.
func Component(node g.Node) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if node == nil {
			return nil
		}
		return node.Render(w)
	})
}
