package helpers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"

	"finitefield.org/acesso/internal/acesso/httpserver/middleware"
)

func requestContext(t *testing.T, target, acceptLanguage string) context.Context {
	t.Helper()

	var captured context.Context
	handler := middleware.RequestInfoMiddleware("/auth", "staging")(
		middleware.Language(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = r.Context()
		})),
	)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if acceptLanguage != "" {
		req.Header.Set("Accept-Language", acceptLanguage)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if captured == nil {
		t.Fatalf("handler did not run")
	}
	return captured
}

func TestTranslateUsesNegotiatedLanguage(t *testing.T) {
	t.Parallel()

	en := requestContext(t, "/auth/login", "en-US,en;q=0.9")
	if got := T(en, "form.submit"); got != "Sign in" {
		t.Fatalf("expected english label, got %q", got)
	}
	if got := Lang(en); got != "en" {
		t.Fatalf("expected en, got %q", got)
	}

	pt := requestContext(t, "/auth/login", "")
	if got := T(pt, "form.submit"); got != "Entrar" {
		t.Fatalf("expected portuguese label, got %q", got)
	}
	if got := T(pt, "home.signed_in_as", "a@b.com"); got != "Conectado como a@b.com" {
		t.Fatalf("unexpected formatted message %q", got)
	}
	if got := T(pt, "missing.key"); got != "missing.key" {
		t.Fatalf("expected key fallback, got %q", got)
	}
}

func TestNavigationHelpers(t *testing.T) {
	t.Parallel()

	ctx := requestContext(t, "/auth//login/", "")
	if got := URL(ctx, "signup"); got != "/auth/signup" {
		t.Fatalf("unexpected url %q", got)
	}
	if got := Environment(ctx); got != "staging" {
		t.Fatalf("unexpected environment %q", got)
	}

	if got := URL(context.Background(), "login"); got != "/login" {
		t.Fatalf("expected root-relative url without request info, got %q", got)
	}
	if got := Environment(context.Background()); got != "" {
		t.Fatalf("expected empty environment, got %q", got)
	}
}

func TestButtonClass(t *testing.T) {
	t.Parallel()

	if got := ButtonClass(true, false); got != "btn btn-primary" {
		t.Fatalf("unexpected primary class %q", got)
	}
	if got := ButtonClass(false, true); got != "btn btn-secondary btn-disabled" {
		t.Fatalf("unexpected disabled secondary class %q", got)
	}
}

func TestComponentRendersNode(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := Component(h.P(h.Class("note"), g.Text("a < b"))).Render(context.Background(), &buf)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := buf.String(); got != `<p class="note">a &lt; b</p>` {
		t.Fatalf("unexpected markup %q", got)
	}

	buf.Reset()
	if err := Component(nil).Render(context.Background(), &buf); err != nil || buf.Len() != 0 {
		t.Fatalf("nil node should render nothing")
	}
}
