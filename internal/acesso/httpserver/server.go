package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"finitefield.org/acesso/internal/acesso/authclient"
	custommw "finitefield.org/acesso/internal/acesso/httpserver/middleware"
	"finitefield.org/acesso/internal/acesso/i18n"
	"finitefield.org/acesso/internal/acesso/observability"
	"finitefield.org/acesso/public"
)

const (
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultIdleTimeout    = 60 * time.Second
	defaultRequestTimeout = 60 * time.Second
)

// Config holds runtime options for the HTTP server.
type Config struct {
	Address        string
	BasePath       string
	Environment    string
	TraceProjectID string

	Client   authclient.Client
	Sessions custommw.SessionStore
	Bundle   *i18n.Bundle
	Logger   *zap.Logger
	Meter    metric.Meter

	CSRFCookieName string
	CSRFHeaderName string
	CookieSecure   bool

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// New constructs the HTTP server with middleware stack and embedded assets.
func New(cfg Config) (*http.Server, error) {
	if cfg.Client == nil {
		return nil, errors.New("httpserver: auth client is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("httpserver: session store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(observability.TraceMiddleware(cfg.TraceProjectID))
	router.Use(observability.RequestLogger(logger))
	router.Use(observability.Recoverer(logger))
	router.Use(chimw.Timeout(durationOr(cfg.RequestTimeout, defaultRequestTimeout)))

	staticContent, err := public.StaticFS()
	if err != nil {
		return nil, fmt.Errorf("httpserver: embed static: %w", err)
	}
	router.Handle("/public/static/*", http.StripPrefix("/public/static/", http.FileServer(http.FS(staticContent))))
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	basePath := custommw.NormalizeBasePath(cfg.BasePath)
	handlers := newAuthHandlers(cfg.Client, cfg.Bundle, cfg.Meter, basePath)

	mountAuthRoutes(router, basePath, routeOptions{
		Handlers:    handlers,
		Sessions:    cfg.Sessions,
		Bundle:      handlers.bundle,
		Environment: cfg.Environment,
		CSRF: custommw.CSRFConfig{
			CookieName: cfg.CSRFCookieName,
			CookiePath: basePath,
			HeaderName: cfg.CSRFHeaderName,
			Secure:     cfg.CookieSecure,
		},
	})

	return &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  durationOr(cfg.ReadTimeout, defaultReadTimeout),
		WriteTimeout: durationOr(cfg.WriteTimeout, defaultWriteTimeout),
		IdleTimeout:  durationOr(cfg.IdleTimeout, defaultIdleTimeout),
		ErrorLog:     zap.NewStdLog(logger.Named("http")),
	}, nil
}

type routeOptions struct {
	Handlers    *authHandlers
	Sessions    custommw.SessionStore
	Bundle      *i18n.Bundle
	Environment string
	CSRF        custommw.CSRFConfig
}

func mountAuthRoutes(router chi.Router, base string, opts routeOptions) {
	h := opts.Handlers

	router.Route(base, func(r chi.Router) {
		r.Use(custommw.RequestInfoMiddleware(base, opts.Environment))
		r.Use(custommw.HTMX())
		r.Use(custommw.Session(opts.Sessions))
		r.Use(custommw.Language(opts.Bundle))
		r.Use(custommw.CSRF(opts.CSRF))
		r.Use(custommw.NoStore())

		r.With(custommw.RedirectSignedIn(h.homePath)).Get("/login", h.LoginForm)
		r.Post("/login", h.LoginSubmit)
		r.Post("/signup", h.SignupSubmit)
		r.Post("/logout", h.Logout)
		r.With(custommw.RequireUser(h.loginPath)).Get("/", h.Home)
	})
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}
