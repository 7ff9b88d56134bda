// Package config loads runtime configuration from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
)

const (
	defaultEnvFile         = ".env"
	defaultAddr            = ":8080"
	defaultBasePath        = "/"
	defaultEnvironment     = "local"
	defaultAuthBackend     = BackendFirebase
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultRequestTimeout  = 20 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultSessionCookie   = "acesso_session"
	defaultCSRFCookie      = "acesso_csrf"
	defaultSessionIdle     = 30 * time.Minute
	defaultSecretsFallback = ".secrets.local"
)

// Auth backends.
const (
	BackendFirebase = "firebase"
	BackendMemory   = "memory"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment     string
	DefaultLanguage language.Tag
	Server          ServerConfig
	Auth            AuthConfig
	Session         SessionConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string
	BasePath        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig selects and configures the identity provider.
type AuthConfig struct {
	Backend         string
	ProjectID       string
	APIKey          string
	EmulatorHost    string
	CredentialsFile string
}

// SessionConfig controls the cookie session and CSRF cookie.
type SessionConfig struct {
	CookieName     string
	CSRFCookieName string
	HashKey        string
	BlockKey       string
	Secure         bool
	IdleTimeout    time.Duration
}

// SecretsConfig controls Secret Manager lookups. It is read by LoadSecrets before Load, since
// Load needs the resolver it configures.
type SecretsConfig struct {
	ProjectID       string
	FallbackFile    string
	CredentialsFile string
}

// SecretResolver resolves secret:// and sm:// references.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret calls f.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes a failed secret reference.
type SecretError struct {
	Field string
	Ref   string
	Err   error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for %s (ref %q): %v", e.Field, e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the dotenv file path. An empty path skips the file.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap supplies values that take precedence over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv ignores the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load reads configuration with precedence: explicit map, process environment, dotenv file.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	lookup, err := newLookup(options)
	if err != nil {
		return Config{}, err
	}

	var invalid []string
	cfg := Config{
		Environment: strings.ToLower(stringWithDefault(lookup, "ACESSO_ENVIRONMENT", defaultEnvironment)),
		Server: ServerConfig{
			Addr:            stringWithDefault(lookup, "ACESSO_HTTP_ADDR", defaultAddr),
			BasePath:        normalizeBasePath(stringWithDefault(lookup, "ACESSO_BASE_PATH", defaultBasePath)),
			ReadTimeout:     durationWithDefault(lookup, "ACESSO_HTTP_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "ACESSO_HTTP_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "ACESSO_HTTP_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout:  durationWithDefault(lookup, "ACESSO_HTTP_REQUEST_TIMEOUT", defaultRequestTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "ACESSO_HTTP_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Auth: AuthConfig{
			Backend:         strings.ToLower(stringWithDefault(lookup, "ACESSO_AUTH_BACKEND", defaultAuthBackend)),
			ProjectID:       stringWithDefault(lookup, "ACESSO_FIREBASE_PROJECT_ID", ""),
			APIKey:          stringWithDefault(lookup, "ACESSO_FIREBASE_API_KEY", ""),
			EmulatorHost:    stringWithDefault(lookup, "ACESSO_FIREBASE_AUTH_EMULATOR_HOST", ""),
			CredentialsFile: stringWithDefault(lookup, "ACESSO_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Session: SessionConfig{
			CookieName:     stringWithDefault(lookup, "ACESSO_SESSION_COOKIE_NAME", defaultSessionCookie),
			CSRFCookieName: stringWithDefault(lookup, "ACESSO_CSRF_COOKIE_NAME", defaultCSRFCookie),
			HashKey:        stringWithDefault(lookup, "ACESSO_SESSION_HASH_KEY", ""),
			BlockKey:       stringWithDefault(lookup, "ACESSO_SESSION_BLOCK_KEY", ""),
			Secure:         boolWithDefault(lookup, "ACESSO_SESSION_SECURE", false),
			IdleTimeout:    durationWithDefault(lookup, "ACESSO_SESSION_IDLE_TIMEOUT", defaultSessionIdle),
		},
	}

	tag, err := language.Parse(stringWithDefault(lookup, "ACESSO_DEFAULT_LANGUAGE", language.BrazilianPortuguese.String()))
	if err != nil {
		invalid = append(invalid, "DefaultLanguage")
		tag = language.BrazilianPortuguese
	}
	cfg.DefaultLanguage = tag

	secretFields := []struct {
		name  string
		field *string
	}{
		{"Auth.APIKey", &cfg.Auth.APIKey},
		{"Session.HashKey", &cfg.Session.HashKey},
		{"Session.BlockKey", &cfg.Session.BlockKey},
	}
	for _, target := range secretFields {
		resolved, err := resolveSecret(ctx, target.name, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = resolved
	}

	if err := validateConfig(cfg, invalid); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// HasSecretReferences reports whether any secret-bearing key in the environment refers to
// Secret Manager, so callers only construct a resolver when one is needed.
func HasSecretReferences(opts ...Option) (bool, error) {
	lookup, err := newLookup(newLoaderOptions(opts))
	if err != nil {
		return false, err
	}
	for _, key := range []string{"ACESSO_FIREBASE_API_KEY", "ACESSO_SESSION_HASH_KEY", "ACESSO_SESSION_BLOCK_KEY"} {
		if value, ok := lookup(key); ok && isSecretReference(value) {
			return true, nil
		}
	}
	return false, nil
}

// LoadSecrets reads the Secret Manager settings with the same precedence as Load. The project
// defaults to the Firebase project.
func LoadSecrets(opts ...Option) (SecretsConfig, error) {
	lookup, err := newLookup(newLoaderOptions(opts))
	if err != nil {
		return SecretsConfig{}, err
	}
	cfg := SecretsConfig{
		ProjectID:       stringWithDefault(lookup, "ACESSO_SECRETS_PROJECT_ID", ""),
		FallbackFile:    stringWithDefault(lookup, "ACESSO_SECRETS_FALLBACK_FILE", defaultSecretsFallback),
		CredentialsFile: stringWithDefault(lookup, "ACESSO_FIREBASE_CREDENTIALS_FILE", ""),
	}
	if cfg.ProjectID == "" {
		cfg.ProjectID = stringWithDefault(lookup, "ACESSO_FIREBASE_PROJECT_ID", "")
	}
	return cfg, nil
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func newLookup(options loaderOptions) (func(string) (string, bool), error) {
	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	return func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}, nil
}

func resolveSecret(ctx context.Context, field, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	ref := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Field: field, Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Field: field, Ref: ref, Err: err}
	}
	return strings.TrimSpace(secret), nil
}

func validateConfig(cfg Config, invalid []string) error {
	missing := append([]string(nil), invalid...)

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		missing = append(missing, "Server.Addr")
	}
	if cfg.Server.RequestTimeout <= 0 {
		missing = append(missing, "Server.RequestTimeout")
	}
	switch cfg.Auth.Backend {
	case BackendFirebase:
		if cfg.Auth.ProjectID == "" {
			missing = append(missing, "Auth.ProjectID")
		}
		if cfg.Auth.APIKey == "" && cfg.Auth.EmulatorHost == "" {
			missing = append(missing, "Auth.APIKey")
		}
	case BackendMemory:
	default:
		missing = append(missing, "Auth.Backend")
	}
	if cfg.Session.CookieName == "" {
		missing = append(missing, "Session.CookieName")
	}
	if cfg.Session.CSRFCookieName == "" {
		missing = append(missing, "Session.CSRFCookieName")
	}
	if cfg.Session.HashKey != "" && len(cfg.Session.HashKey) < 32 {
		missing = append(missing, "Session.HashKey")
	}
	switch len(cfg.Session.BlockKey) {
	case 0, 16, 24, 32:
	default:
		missing = append(missing, "Session.BlockKey")
	}
	if cfg.Environment == "production" && cfg.Session.HashKey == "" {
		missing = append(missing, "Session.HashKey")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return values, nil
}

func normalizeBasePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || path == "/" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(path, "/")
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return parsed
		}
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "yes", "on":
			return true
		case "no", "off":
			return false
		}
	}
	return fallback
}
