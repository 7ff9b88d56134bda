package testutil

import (
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"finitefield.org/acesso/internal/acesso/authclient"
	"finitefield.org/acesso/internal/acesso/httpserver"
	"finitefield.org/acesso/internal/acesso/session"
)

// ServerOption customises the HTTP server configuration for tests.
type ServerOption func(*httpserver.Config)

// WithClient overrides the auth client used by the server.
func WithClient(client authclient.Client) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Client = client
	}
}

// WithBasePath sets a custom base path for the routes.
func WithBasePath(path string) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.BasePath = path
	}
}

// WithEnvironment sets the deployment label shown in the page chrome.
func WithEnvironment(env string) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Environment = env
	}
}

// NewMemoryClient returns an in-memory client with cheap password hashing.
func NewMemoryClient(t testing.TB) *authclient.Memory {
	t.Helper()
	return authclient.NewMemory(
		authclient.WithMemoryLogger(zaptest.NewLogger(t)),
		authclient.WithMemoryHashCost(bcrypt.MinCost),
	)
}

// NewSessionManager returns a cookie session manager with random keys.
func NewSessionManager(t testing.TB) *session.Manager {
	t.Helper()

	mgr, err := session.NewManager(session.Config{
		CookieName:  "acesso_session",
		HashKey:     session.GenerateKey(32),
		BlockKey:    session.GenerateKey(32),
		IdleTimeout: 30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	return mgr
}

// NewServer constructs an httptest server running the HTTP stack with sensible defaults.
func NewServer(t testing.TB, opts ...ServerOption) *httptest.Server {
	t.Helper()

	cfg := httpserver.Config{
		Address:        ":0",
		BasePath:       "/",
		CSRFCookieName: "acesso_csrf",
		CSRFHeaderName: "X-CSRF-Token",
		Sessions:       NewSessionManager(t),
		Logger:         zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Client == nil {
		cfg.Client = NewMemoryClient(t)
	}

	srv, err := httpserver.New(cfg)
	if err != nil {
		t.Fatalf("httpserver.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}
