// Package secrets resolves secret:// references through Google Secret Manager.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultFallbackPath = ".secrets.local"

// ErrNotFound reports a reference that neither Secret Manager nor the fallback file can serve.
var ErrNotFound = errors.New("secrets: secret not found")

var clientFactory = func(ctx context.Context, opts ...option.ClientOption) (secretManagerClient, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Resolver fetches and caches secret values.
type Resolver struct {
	client     secretManagerClient
	ownsClient bool
	logger     *zap.Logger
	projectID  string

	fallbackPath string
	fallbackOnce sync.Once
	fallbackVals map[string]string
	fallbackErr  error

	mu    sync.RWMutex
	cache map[string]string
}

type resolverConfig struct {
	logger       *zap.Logger
	projectID    string
	fallbackPath string
	client       secretManagerClient
	clientOpts   []option.ClientOption
	skipRemote   bool
}

// Option customises Resolver construction.
type Option func(*resolverConfig)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *resolverConfig) {
		cfg.logger = logger
	}
}

// WithProject sets the project used when a reference carries no ?project= override.
func WithProject(projectID string) Option {
	return func(cfg *resolverConfig) {
		cfg.projectID = strings.TrimSpace(projectID)
	}
}

// WithFallbackFile overrides the local dotenv file consulted when Secret Manager is
// unreachable or no project is configured. An empty path disables the fallback.
func WithFallbackFile(path string) Option {
	return func(cfg *resolverConfig) {
		cfg.fallbackPath = strings.TrimSpace(path)
	}
}

// WithSecretManagerClient injects a preconfigured client.
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(cfg *resolverConfig) {
		cfg.client = client
	}
}

// WithClientOptions forwards options to the Secret Manager client constructor.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *resolverConfig) {
		cfg.clientOpts = append(cfg.clientOpts, opts...)
	}
}

// WithoutRemote serves references from the fallback file only.
func WithoutRemote() Option {
	return func(cfg *resolverConfig) {
		cfg.skipRemote = true
	}
}

// NewResolver builds a Resolver. A Secret Manager client that cannot be constructed leaves the
// resolver in fallback-only mode.
func NewResolver(ctx context.Context, opts ...Option) (*Resolver, error) {
	cfg := resolverConfig{
		logger:       zap.NewNop(),
		fallbackPath: defaultFallbackPath,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	r := &Resolver{
		logger:       cfg.logger,
		projectID:    cfg.projectID,
		fallbackPath: cfg.fallbackPath,
		cache:        make(map[string]string),
	}
	switch {
	case cfg.client != nil:
		r.client = cfg.client
	case cfg.skipRemote:
	default:
		client, err := clientFactory(ctx, cfg.clientOpts...)
		if err != nil {
			cfg.logger.Warn("secrets: secret manager client unavailable; operating in fallback mode", zap.Error(err))
		} else {
			r.client = client
			r.ownsClient = true
		}
	}
	return r, nil
}

// Close releases the Secret Manager client when the resolver created it.
func (r *Resolver) Close() error {
	if r.ownsClient && r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ResolveSecret returns the value for ref. sm:// is accepted as an alias of secret://.
func (r *Resolver) ResolveSecret(ctx context.Context, ref string) (string, error) {
	parsed, err := parseReference(ref)
	if err != nil {
		return "", err
	}
	key := parsed.canonical + "#" + parsed.version

	r.mu.RLock()
	value, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return value, nil
	}

	projectID := parsed.project
	if projectID == "" {
		projectID = r.projectID
	}
	if r.client != nil && projectID != "" {
		value, err := r.fetchRemote(ctx, projectID, parsed)
		switch {
		case err == nil:
			r.store(key, value)
			return value, nil
		case status.Code(err) == codes.NotFound:
			return "", fmt.Errorf("%w: %s", ErrNotFound, parsed.canonical)
		case !isFallbackError(err):
			return "", fmt.Errorf("secrets: fetch %s: %w", parsed.canonical, err)
		}
		r.logger.Debug("secrets: falling back to local secrets", zap.String("ref", parsed.canonical), zap.Error(err))
	}

	value, ok = r.lookupFallback(parsed)
	if !ok {
		if r.fallbackErr != nil {
			return "", r.fallbackErr
		}
		return "", fmt.Errorf("%w: %s", ErrNotFound, parsed.canonical)
	}
	r.store(key, value)
	return value, nil
}

func (r *Resolver) fetchRemote(ctx context.Context, projectID string, ref parsedReference) (string, error) {
	name := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", projectID, ref.secret, ref.version)
	resp, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", err
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("secrets: empty payload for %s", name)
	}
	return string(resp.GetPayload().GetData()), nil
}

func (r *Resolver) store(key, value string) {
	r.mu.Lock()
	r.cache[key] = value
	r.mu.Unlock()
}

func (r *Resolver) lookupFallback(ref parsedReference) (string, bool) {
	r.fallbackOnce.Do(r.loadFallback)
	value, ok := r.fallbackVals[FallbackKey(ref.secret)]
	return value, ok
}

// loadFallback reads the dotenv-formatted fallback file. Versions are not distinguished.
func (r *Resolver) loadFallback() {
	r.fallbackVals = map[string]string{}
	if r.fallbackPath == "" {
		return
	}
	values, err := godotenv.Read(r.fallbackPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.fallbackErr = fmt.Errorf("secrets: read fallback file %s: %w", r.fallbackPath, err)
		}
		return
	}
	r.fallbackVals = values
}

// FallbackKey is the fallback file key for a secret name: upper case with every character
// outside [A-Z0-9] replaced by an underscore.
func FallbackKey(secret string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, secret)
}

type parsedReference struct {
	canonical string
	secret    string
	version   string
	project   string
}

func parseReference(ref string) (parsedReference, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return parsedReference{}, errors.New("secrets: empty reference")
	}
	if strings.HasPrefix(trimmed, "sm://") {
		trimmed = "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return parsedReference{}, fmt.Errorf("secrets: invalid reference %q: %w", ref, err)
	}
	if u.Scheme != "secret" {
		return parsedReference{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}
	name := strings.Trim(u.Host+u.Path, "/")
	if name == "" {
		return parsedReference{}, fmt.Errorf("secrets: missing secret name in %q", ref)
	}

	query := u.Query()
	out := parsedReference{
		canonical: "secret://" + name,
		secret:    name,
		version:   strings.TrimSpace(query.Get("version")),
		project:   strings.TrimSpace(query.Get("project")),
	}
	if out.version == "" {
		out.version = "latest"
	}
	return out, nil
}

// IsReference reports whether value uses a scheme ResolveSecret understands.
func IsReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func isFallbackError(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
