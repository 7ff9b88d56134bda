package httpserver

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/a-h/templ"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	g "maragu.dev/gomponents"

	"finitefield.org/acesso/internal/acesso/authclient"
	"finitefield.org/acesso/internal/acesso/authform"
	custommw "finitefield.org/acesso/internal/acesso/httpserver/middleware"
	"finitefield.org/acesso/internal/acesso/i18n"
	"finitefield.org/acesso/internal/acesso/observability"
	appsession "finitefield.org/acesso/internal/acesso/session"
	"finitefield.org/acesso/internal/acesso/templates/auth"
	"finitefield.org/acesso/internal/acesso/templates/helpers"
	"finitefield.org/acesso/internal/acesso/templates/home"
)

const (
	flashLoginSuccess  = "flash.login_success"
	flashSignupSuccess = "flash.signup_success"
	flashLoggedOut     = "flash.logged_out"
)

type authHandlers struct {
	client authclient.Client
	bundle *i18n.Bundle
	meter  metric.Meter
	now    func() time.Time

	basePath   string
	homePath   string
	loginPath  string
	signupPath string
	logoutPath string
}

func newAuthHandlers(client authclient.Client, bundle *i18n.Bundle, meter metric.Meter, basePath string) *authHandlers {
	if client == nil {
		panic("auth: client is required")
	}
	if bundle == nil {
		bundle = i18n.Default()
	}
	base := custommw.NormalizeBasePath(basePath)
	homePath := base
	if base != "/" {
		homePath = base + "/"
	}
	return &authHandlers{
		client:     client,
		bundle:     bundle,
		meter:      meter,
		now:        time.Now,
		basePath:   base,
		homePath:   homePath,
		loginPath:  path.Join(base, "login"),
		signupPath: path.Join(base, "signup"),
		logoutPath: path.Join(base, "logout"),
	}
}

func (h *authHandlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	sess, _ := custommw.SessionFromContext(r.Context())
	data := auth.LoginPageData{
		Form:  h.formView(r, authform.FormState{}, h.normalizeNext(r.URL.Query().Get("next"))),
		Flash: h.takeFlash(r.Context(), sess),
	}
	h.render(w, r, auth.LoginPage(r.Context(), data), http.StatusOK)
}

func (h *authHandlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, authform.OperationLogin)
}

func (h *authHandlers) SignupSubmit(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, authform.OperationSignup)
}

// submit drives a request-scoped form controller. The rendered form reflects the controller
// cells as observed through a binding, never a recomputed state.
func (h *authHandlers) submit(w http.ResponseWriter, r *http.Request, op authform.Operation) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)
	lang := custommw.LanguageFromContext(ctx)

	if err := r.ParseForm(); err != nil {
		logger.Warn("auth form parse failed", zap.Error(err))
		msg := h.bundle.T(lang, authform.KeyGeneric)
		h.renderForm(w, r, authform.FormState{ErrorMessage: &msg}, "", http.StatusBadRequest)
		return
	}

	next := h.normalizeNext(r.PostFormValue("next"))
	sess, _ := custommw.SessionFromContext(ctx)

	controller, err := authform.NewController(h.client,
		authform.WithLogger(logger),
		authform.WithMeter(h.meter),
		authform.WithErrorMapper(authform.NewErrorMapper(h.bundle, lang)),
		authform.WithAuthenticated(func(_ context.Context, done authform.Operation, result *authclient.Session) {
			if sess == nil {
				return
			}
			sess.SignIn(appsession.User{UID: result.UID, Email: result.Email}, h.now())
			sess.SetFlash(successFlash(done))
		}),
	)
	if err != nil {
		logger.Error("auth form controller unavailable", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	binding := bindForm(controller, logger)
	controller.SetEmail(strings.TrimSpace(r.PostFormValue("email")))
	controller.SetPassword(r.PostFormValue("password"))

	var outcome authform.Outcome
	switch op {
	case authform.OperationSignup:
		outcome = controller.Signup(ctx)
	default:
		outcome = controller.Login(ctx)
	}
	state := binding.Close()

	if outcome.Succeeded() {
		custommw.Redirect(w, r, h.redirectTarget(next))
		return
	}

	status := http.StatusUnauthorized
	if op == authform.OperationSignup {
		status = http.StatusUnprocessableEntity
	}
	h.renderForm(w, r, state, next, status)
}

// Logout ends the caller's cookie session. The provider client is signed out as well, which
// resets the process-wide auth state without affecting other sessions.
func (h *authHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.client.SignOut(ctx); err != nil {
		observability.FromContext(ctx).Warn("provider sign out failed", zap.Error(err))
	}
	if sess, ok := custommw.SessionFromContext(ctx); ok {
		sess.SignOut()
		sess.SetFlash(flashLoggedOut)
	}
	custommw.Redirect(w, r, h.loginPath)
}

func (h *authHandlers) Home(w http.ResponseWriter, r *http.Request) {
	sess, ok := custommw.SessionFromContext(r.Context())
	if !ok || sess.User() == nil {
		custommw.Redirect(w, r, h.loginPath)
		return
	}
	user := sess.User()
	data := home.PageData{
		Email:      user.Email,
		UID:        user.UID,
		SignedInAt: user.SignedInAt,
		Flash:      h.takeFlash(r.Context(), sess),
		CSRFToken:  custommw.CSRFTokenFromContext(r.Context()),
	}
	h.render(w, r, home.Page(r.Context(), data), http.StatusOK)
}

// renderForm answers htmx swaps with the form fragment and everything else with the full page.
func (h *authHandlers) renderForm(w http.ResponseWriter, r *http.Request, state authform.FormState, next string, status int) {
	form := h.formView(r, state, next)
	if custommw.IsFragmentRequest(r.Context()) {
		h.render(w, r, auth.LoginForm(r.Context(), form), status)
		return
	}
	h.render(w, r, auth.LoginPage(r.Context(), auth.LoginPageData{Form: form}), status)
}

func (h *authHandlers) render(w http.ResponseWriter, r *http.Request, node g.Node, status int) {
	templ.Handler(helpers.Component(node), templ.WithStatus(status)).ServeHTTP(w, r)
}

func (h *authHandlers) formView(r *http.Request, state authform.FormState, next string) auth.FormView {
	return auth.FormView{
		Email:        state.Email,
		ErrorMessage: state.ErrorMessage,
		Loading:      state.IsLoading,
		CSRFToken:    custommw.CSRFTokenFromContext(r.Context()),
		Next:         next,
	}
}

func (h *authHandlers) takeFlash(ctx context.Context, sess *appsession.Session) string {
	if sess == nil {
		return ""
	}
	flash, ok := sess.TakeFlash()
	if !ok {
		return ""
	}
	return h.bundle.T(custommw.LanguageFromContext(ctx), flash.Key, flash.Args...)
}

func successFlash(op authform.Operation) string {
	if op == authform.OperationSignup {
		return flashSignupSuccess
	}
	return flashLoginSuccess
}

func (h *authHandlers) redirectTarget(raw string) string {
	if next := h.normalizeNext(raw); next != "" {
		return next
	}
	return h.homePath
}

func (h *authHandlers) normalizeNext(raw string) string {
	sanitized := sanitizeNextTarget(h.basePath, raw)
	if sanitized == "" {
		return ""
	}
	target := pathOnly(sanitized)
	if samePath(target, h.loginPath) || samePath(target, h.signupPath) || samePath(target, h.logoutPath) {
		return ""
	}
	return sanitized
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return custommw.NormalizeBasePath(a) == custommw.NormalizeBasePath(b)
}

// sanitizeNextTarget accepts only same-origin absolute paths below basePath.
func sanitizeNextTarget(basePath, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "" || parsed.Host != "" {
		return ""
	}

	pathValue := parsed.Path
	if pathValue == "" {
		pathValue = "/"
	}

	unescaped, err := url.PathUnescape(pathValue)
	if err != nil {
		return ""
	}
	if strings.Contains(unescaped, "\\") {
		return ""
	}

	cleaned := path.Clean(unescaped)
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	if strings.HasPrefix(cleaned, "//") {
		return ""
	}

	base := custommw.NormalizeBasePath(basePath)
	if base != "/" && !hasSafePrefix(cleaned, base) {
		return ""
	}

	target := cleaned
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}
	if parsed.Fragment != "" {
		target += "#" + parsed.Fragment
	}
	return target
}

func hasSafePrefix(pathValue, base string) bool {
	if base == "/" {
		return strings.HasPrefix(pathValue, "/")
	}
	if !strings.HasPrefix(pathValue, base) {
		return false
	}
	if len(pathValue) == len(base) {
		return true
	}
	return pathValue[len(base)] == '/'
}

func pathOnly(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Path
}
