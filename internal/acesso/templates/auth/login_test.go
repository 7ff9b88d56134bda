package auth

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"finitefield.org/acesso/internal/acesso/httpserver/middleware"
)

func buildContext(t *testing.T, acceptLanguage string) context.Context {
	t.Helper()
	return buildContextAt(t, "/", acceptLanguage)
}

func buildContextAt(t *testing.T, basePath, acceptLanguage string) context.Context {
	t.Helper()

	var ctx context.Context
	handler := middleware.RequestInfoMiddleware(basePath, "local")(
		middleware.Language(nil)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			ctx = r.Context()
		})),
	)
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("Accept-Language", acceptLanguage)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, ctx)
	return ctx
}

func renderForm(t *testing.T, ctx context.Context, form FormView) *goquery.Document {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, LoginForm(ctx, form).Render(&buf))
	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)
	return doc
}

func baseForm() FormView {
	return FormView{CSRFToken: "token-123"}
}

func TestLoginFormIdleState(t *testing.T) {
	t.Parallel()

	form := baseForm()
	form.Email = "a@b.com"
	doc := renderForm(t, buildContext(t, "pt-BR"), form)

	formSel := doc.Find("form#" + FormID)
	require.Equal(t, 1, formSel.Length())
	require.Equal(t, "/login", formSel.AttrOr("hx-post", ""))
	require.Equal(t, "outerHTML", formSel.AttrOr("hx-swap", ""))
	require.Equal(t, "a@b.com", doc.Find("input[name='email']").AttrOr("value", ""))
	require.Equal(t, "", doc.Find("input[name='password']").AttrOr("value", ""))
	require.Equal(t, "token-123", doc.Find("input[name='csrf_token']").AttrOr("value", ""))
	require.Equal(t, 0, doc.Find("input[name='next']").Length())

	submit := doc.Find("[data-submit]")
	require.Equal(t, "Entrar", strings.TrimSpace(submit.Find(".label-idle").Text()))
	_, disabled := submit.Attr("disabled")
	require.False(t, disabled)

	signup := doc.Find("[data-signup]")
	require.Equal(t, "Criar Nova Conta", strings.TrimSpace(signup.Text()))
	require.Equal(t, "/signup", signup.AttrOr("hx-post", ""))
	require.Equal(t, "/signup", signup.AttrOr("formaction", ""))

	require.Equal(t, 0, doc.Find("[data-form-error]").Length(), "error area hidden without a message")
}

func TestLoginFormLoadingState(t *testing.T) {
	t.Parallel()

	form := baseForm()
	form.Loading = true
	doc := renderForm(t, buildContext(t, "pt-BR"), form)

	submit := doc.Find("[data-submit]")
	require.Equal(t, "Entrando...", strings.TrimSpace(submit.Find(".label-idle").Text()))
	_, submitDisabled := submit.Attr("disabled")
	require.True(t, submitDisabled)
	_, signupDisabled := doc.Find("[data-signup]").Attr("disabled")
	require.True(t, signupDisabled)
	require.Equal(t, "true", doc.Find("form").AttrOr("aria-busy", ""))
}

func TestLoginFormActionsFollowBasePath(t *testing.T) {
	t.Parallel()

	doc := renderForm(t, buildContextAt(t, "/auth", "pt-BR"), baseForm())

	formSel := doc.Find("form#" + FormID)
	require.Equal(t, "/auth/login", formSel.AttrOr("action", ""))
	require.Equal(t, "/auth/login", formSel.AttrOr("hx-post", ""))
	signup := doc.Find("[data-signup]")
	require.Equal(t, "/auth/signup", signup.AttrOr("formaction", ""))
	require.Equal(t, "/auth/signup", signup.AttrOr("hx-post", ""))
}

func TestLoginFormErrorArea(t *testing.T) {
	t.Parallel()

	msg := "E-mail ou senha inválidos."
	form := baseForm()
	form.ErrorMessage = &msg
	form.Next = "/reports"
	doc := renderForm(t, buildContext(t, "pt-BR"), form)

	errorArea := doc.Find("[data-form-error]")
	require.Equal(t, 1, errorArea.Length())
	require.Equal(t, msg, strings.TrimSpace(errorArea.Text()))
	require.Equal(t, "alert", errorArea.AttrOr("role", ""))
	require.Equal(t, "/reports", doc.Find("input[name='next']").AttrOr("value", ""))
}

func TestLoginPageEnglish(t *testing.T) {
	t.Parallel()

	ctx := buildContext(t, "en")
	var buf bytes.Buffer
	require.NoError(t, LoginPage(ctx, LoginPageData{Form: baseForm(), Flash: "You have been signed out."}).Render(&buf))
	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)

	require.Equal(t, "Sign in | Acesso", doc.Find("title").Text())
	require.Equal(t, "en", doc.Find("html").AttrOr("lang", ""))
	require.Equal(t, "You have been signed out.", strings.TrimSpace(doc.Find("[data-flash]").Text()))
	require.Equal(t, "Sign in", strings.TrimSpace(doc.Find("[data-submit] .label-idle").Text()))
	require.Equal(t, 0, doc.Find("[data-environment-badge]").Length())
}
