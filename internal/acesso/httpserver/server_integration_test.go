package httpserver_test

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"finitefield.org/acesso/internal/acesso/authstate"
	"finitefield.org/acesso/internal/acesso/testutil"
)

type browser struct {
	t      *testing.T
	ts     *httptest.Server
	client *http.Client
}

func newBrowser(t *testing.T, ts *httptest.Server) *browser {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:  t,
		ts: ts,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) do(req *http.Request) (*http.Response, []byte) {
	b.t.Helper()

	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return resp, body
}

func (b *browser) get(path string, headers map[string]string) (*http.Response, []byte) {
	b.t.Helper()

	req, err := http.NewRequest(http.MethodGet, b.ts.URL+path, nil)
	require.NoError(b.t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return b.do(req)
}

func (b *browser) post(path string, form url.Values, headers map[string]string) (*http.Response, []byte) {
	b.t.Helper()

	req, err := http.NewRequest(http.MethodPost, b.ts.URL+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return b.do(req)
}

// csrfToken loads a page and returns the token embedded in its form.
func (b *browser) csrfToken(path string) string {
	b.t.Helper()

	resp, body := b.get(path, nil)
	require.Equal(b.t, http.StatusOK, resp.StatusCode)
	token := testutil.ParseHTML(b.t, body).Find("input[name='csrf_token']").First().AttrOr("value", "")
	require.NotEmpty(b.t, token)
	return token
}

func credentials(token, email, password string) url.Values {
	return url.Values{
		"csrf_token": {token},
		"email":      {email},
		"password":   {password},
	}
}

func formError(t *testing.T, body []byte) string {
	t.Helper()
	return strings.TrimSpace(testutil.ParseHTML(t, body).Find("[data-form-error]").Text())
}

func TestHomeRedirectsWithoutSession(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	b := newBrowser(t, ts)

	resp, _ := b.get("/", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestLoginPageRendersForm(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	b := newBrowser(t, ts)

	resp, body := b.get("/login", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	require.Equal(t, "no-store, max-age=0", resp.Header.Get("Cache-Control"))

	doc := testutil.ParseHTML(t, body)
	require.Equal(t, "Entrar | Acesso", doc.Find("title").Text())
	require.Equal(t, "Entrar", strings.TrimSpace(doc.Find("[data-submit] .label-idle").Text()))
	require.Equal(t, "Criar Nova Conta", strings.TrimSpace(doc.Find("[data-signup]").Text()))
	require.Equal(t, 0, doc.Find("[data-form-error]").Length())
	require.Equal(t, 1, doc.Find("input[name='email']").Length())
	require.Equal(t, 1, doc.Find("input[name='password'][type='password']").Length())
}

func TestLoginPageHonoursLanguageSelection(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	b := newBrowser(t, ts)

	resp, body := b.get("/login?lang=en", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "en", resp.Header.Get("Content-Language"))
	require.Equal(t, "Sign in", strings.TrimSpace(testutil.ParseHTML(t, body).Find("[data-submit] .label-idle").Text()))

	// The choice sticks through the session.
	_, body = b.get("/login", nil)
	require.Equal(t, "Create New Account", strings.TrimSpace(testutil.ParseHTML(t, body).Find("[data-signup]").Text()))
}

func TestSignupLoginLogoutFlow(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	b := newBrowser(t, ts)

	token := b.csrfToken("/login")

	resp, body := b.post("/signup", credentials(token, "ana@example.com", "123"), nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, "A senha deve ter pelo menos 6 caracteres.", formError(t, body))
	doc := testutil.ParseHTML(t, body)
	require.Equal(t, "ana@example.com", doc.Find("input[name='email']").AttrOr("value", ""))
	require.Equal(t, "", doc.Find("input[name='password']").AttrOr("value", ""), "password is never echoed")
	_, disabled := doc.Find("[data-submit]").Attr("disabled")
	require.False(t, disabled, "submit is enabled again after the attempt")

	resp, _ = b.post("/signup", credentials(token, "ana@example.com", "s3cret!"), nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))

	resp, body = b.get("/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc = testutil.ParseHTML(t, body)
	require.Equal(t, "Conectado como ana@example.com", strings.TrimSpace(doc.Find("[data-signed-in-as]").Text()))
	require.Equal(t, "Conta criada e login realizado com sucesso!", strings.TrimSpace(doc.Find("[data-flash]").Text()))

	// Flash is shown once.
	_, body = b.get("/", nil)
	require.Equal(t, 0, testutil.ParseHTML(t, body).Find("[data-flash]").Length())

	// Signed-in users skip the login form.
	resp, _ = b.get("/login", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))

	resp, _ = b.post("/logout", url.Values{"csrf_token": {token}}, nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))

	resp, body = b.get("/login", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Você saiu da sua conta.", strings.TrimSpace(testutil.ParseHTML(t, body).Find("[data-flash]").Text()))

	resp, _ = b.get("/", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, body = b.post("/login", credentials(token, "ana@example.com", "wrong-pass"), nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "E-mail ou senha inválidos.", formError(t, body))

	resp, _ = b.post("/login", credentials(token, "ana@example.com", "s3cret!"), nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	_, body = b.get("/", nil)
	require.Equal(t, "Login realizado com sucesso!", strings.TrimSpace(testutil.ParseHTML(t, body).Find("[data-flash]").Text()))
}

func TestLoginErrorMessages(t *testing.T) {
	t.Parallel()

	client := testutil.NewMemoryClient(t)
	require.NoError(t, client.Seed("taken@example.com", "s3cret!"))
	ts := testutil.NewServer(t, testutil.WithClient(client))
	b := newBrowser(t, ts)
	token := b.csrfToken("/login")

	cases := []struct {
		name     string
		path     string
		email    string
		password string
		status   int
		message  string
	}{
		{"unknown user", "/login", "nobody@example.com", "whatever", http.StatusUnauthorized, "E-mail ou senha inválidos."},
		{"malformed email", "/login", "not-an-email", "whatever", http.StatusUnauthorized, "O formato do e-mail é inválido."},
		{"email in use", "/signup", "taken@example.com", "another1", http.StatusUnprocessableEntity, "Este e-mail já está em uso."},
		{"malformed signup email", "/signup", "bad", "another1", http.StatusUnprocessableEntity, "O formato do e-mail é inválido."},
	}
	for _, tc := range cases {
		resp, body := b.post(tc.path, credentials(token, tc.email, tc.password), nil)
		require.Equal(t, tc.status, resp.StatusCode, tc.name)
		require.Equal(t, tc.message, formError(t, body), tc.name)
	}
}

func TestEnglishErrorMessages(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	b := newBrowser(t, ts)
	token := b.csrfToken("/login")

	resp, body := b.post("/login", credentials(token, "nobody@example.com", "whatever"), map[string]string{
		"Accept-Language": "en-US,en;q=0.8",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "invalid email or password", formError(t, body))
}

func TestSubmitWithoutCSRFTokenIsRejected(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	b := newBrowser(t, ts)
	b.csrfToken("/login")

	resp, _ := b.post("/login", credentials("", "a@b.com", "s3cret!"), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = b.post("/login", credentials("forged", "a@b.com", "s3cret!"), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHTMXSubmissions(t *testing.T) {
	t.Parallel()

	client := testutil.NewMemoryClient(t)
	require.NoError(t, client.Seed("ana@example.com", "s3cret!"))
	ts := testutil.NewServer(t, testutil.WithClient(client))
	b := newBrowser(t, ts)
	token := b.csrfToken("/login")
	headers := map[string]string{
		"HX-Request":   "true",
		"X-CSRF-Token": token,
	}

	resp, body := b.post("/login", url.Values{"email": {"ana@example.com"}, "password": {"nope"}}, headers)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	require.NoError(t, err)
	require.Equal(t, 0, doc.Find("title").Length(), "htmx failures receive the form fragment only")
	require.Equal(t, 1, doc.Find("form#auth-form").Length())
	require.Equal(t, "E-mail ou senha inválidos.", strings.TrimSpace(doc.Find("[data-form-error]").Text()))

	resp, body = b.post("/login", url.Values{"email": {"ana@example.com"}, "password": {"s3cret!"}}, headers)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("HX-Redirect"))
	require.Empty(t, body)

	resp, _ = b.get("/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNextTargetIsSanitised(t *testing.T) {
	t.Parallel()

	client := testutil.NewMemoryClient(t)
	require.NoError(t, client.Seed("ana@example.com", "s3cret!"))
	ts := testutil.NewServer(t, testutil.WithClient(client), testutil.WithBasePath("/auth"))

	b := newBrowser(t, ts)
	_, body := b.get("/auth/login?next=/auth/reports", nil)
	doc := testutil.ParseHTML(t, body)
	require.Equal(t, "/auth/reports", doc.Find("input[name='next']").AttrOr("value", ""))
	token := doc.Find("input[name='csrf_token']").AttrOr("value", "")

	form := credentials(token, "ana@example.com", "s3cret!")
	form.Set("next", "/auth/reports")
	resp, _ := b.post("/auth/login", form, nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/auth/reports", resp.Header.Get("Location"))

	other := newBrowser(t, ts)
	token = other.csrfToken("/auth/login")
	form = credentials(token, "ana@example.com", "s3cret!")
	form.Set("next", "https://evil.example.com/")
	resp, _ = other.post("/auth/login", form, nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/auth/", resp.Header.Get("Location"))
}

func TestBasePathRoutes(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t, testutil.WithBasePath("/auth"), testutil.WithEnvironment("staging"))
	b := newBrowser(t, ts)

	resp, _ := b.get("/auth/", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/auth/login", resp.Header.Get("Location"))

	resp, body := b.get("/auth/login", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := testutil.ParseHTML(t, body)
	require.Equal(t, "/auth/login", doc.Find("form#auth-form").AttrOr("action", ""))
	require.Equal(t, "/auth/signup", doc.Find("[data-signup]").AttrOr("hx-post", ""))
	require.Equal(t, "STAGING", strings.TrimSpace(doc.Find("[data-environment-badge]").Text()))
}

func TestStaticAndHealth(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	b := newBrowser(t, ts)

	resp, body := b.get("/public/static/app.css", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), ".htmx-request")

	resp, body = b.get("/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))
}

func TestLogoutResetsProcessWideStateButKeepsOtherSessions(t *testing.T) {
	t.Parallel()

	client := testutil.NewMemoryClient(t)
	require.NoError(t, client.Seed("ana@example.com", "s3cret!"))
	require.NoError(t, client.Seed("bia@example.com", "s3cret!"))
	observer := authstate.Register(client, zap.NewNop())
	t.Cleanup(observer.Close)

	ts := testutil.NewServer(t, testutil.WithClient(client))
	ana := newBrowser(t, ts)
	bia := newBrowser(t, ts)

	anaToken := ana.csrfToken("/login")
	resp, _ := ana.post("/login", credentials(anaToken, "ana@example.com", "s3cret!"), nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	biaToken := bia.csrfToken("/login")
	resp, _ = bia.post("/login", credentials(biaToken, "bia@example.com", "s3cret!"), nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.True(t, observer.LoggedIn())
	require.Equal(t, "bia@example.com", observer.Email())

	resp, _ = ana.post("/logout", url.Values{"csrf_token": {anaToken}}, nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.False(t, observer.LoggedIn(), "the client state tracks the last auth event in the process")

	resp, body := bia.get("/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Conectado como bia@example.com", strings.TrimSpace(testutil.ParseHTML(t, body).Find("[data-signed-in-as]").Text()))

	resp, _ = ana.get("/", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
}
