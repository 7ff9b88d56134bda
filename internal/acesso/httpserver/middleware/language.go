package middleware

import (
	"context"
	"net/http"

	"golang.org/x/text/language"

	"finitefield.org/acesso/internal/acesso/i18n"
)

type (
	languageContextKey struct{}
	bundleContextKey   struct{}
)

// LanguageQueryParam switches the UI language and remembers the choice in the session.
const LanguageQueryParam = "lang"

// Language negotiates the UI language. Precedence: ?lang= query, the session choice, then the
// Accept-Language header matched against the loaded catalogs.
func Language(bundle *i18n.Bundle) func(http.Handler) http.Handler {
	if bundle == nil {
		bundle = i18n.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tag := negotiate(bundle, r)
			w.Header().Set("Content-Language", tag.String())
			w.Header().Add("Vary", "Accept-Language")
			ctx := context.WithValue(r.Context(), languageContextKey{}, tag)
			ctx = context.WithValue(ctx, bundleContextKey{}, bundle)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func negotiate(bundle *i18n.Bundle, r *http.Request) language.Tag {
	sess, hasSession := SessionFromContext(r.Context())

	if requested := r.URL.Query().Get(LanguageQueryParam); requested != "" {
		if tag, err := language.Parse(requested); err == nil {
			matched := bundle.Match(tag)
			if hasSession {
				sess.SetLanguage(matched.String())
			}
			return matched
		}
	}
	if hasSession && sess.Language() != "" {
		if tag, err := language.Parse(sess.Language()); err == nil {
			return bundle.Match(tag)
		}
	}
	return bundle.Resolve(r.Header.Get("Accept-Language"))
}

// LanguageFromContext returns the negotiated tag, or i18n.DefaultLanguage.
func LanguageFromContext(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(languageContextKey{}).(language.Tag); ok {
		return tag
	}
	return i18n.DefaultLanguage
}

// BundleFromContext returns the catalog bundle used for negotiation, or the embedded default.
func BundleFromContext(ctx context.Context) *i18n.Bundle {
	if bundle, ok := ctx.Value(bundleContextKey{}).(*i18n.Bundle); ok && bundle != nil {
		return bundle
	}
	return i18n.Default()
}
