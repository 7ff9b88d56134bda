package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	firebase "firebase.google.com/go/v4"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"finitefield.org/acesso/internal/acesso/authclient"
	"finitefield.org/acesso/internal/acesso/authstate"
	"finitefield.org/acesso/internal/acesso/config"
	"finitefield.org/acesso/internal/acesso/httpserver"
	"finitefield.org/acesso/internal/acesso/i18n"
	"finitefield.org/acesso/internal/acesso/observability"
	"finitefield.org/acesso/internal/acesso/secrets"
	"finitefield.org/acesso/internal/acesso/session"
)

const meterName = "finitefield.org/acesso"

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("acesso")
	ctx = observability.WithLogger(ctx, logger)

	var loadOpts []config.Option
	hasRefs, err := config.HasSecretReferences()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}
	if hasRefs {
		resolver, err := newSecretResolver(ctx, logger)
		if err != nil {
			logger.Fatal("failed to initialise secret resolver", zap.Error(err))
		}
		defer func() {
			if err := resolver.Close(); err != nil {
				logger.Warn("secret resolver close error", zap.Error(err))
			}
		}()
		loadOpts = append(loadOpts, config.WithSecretResolver(resolver))
	}

	cfg, err := config.Load(ctx, loadOpts...)
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	bundle, err := i18n.LoadEmbedded(cfg.DefaultLanguage)
	if err != nil {
		logger.Fatal("failed to load message catalogs", zap.Error(err))
	}

	client, err := buildAuthClient(ctx, logger.Named("auth"), cfg.Auth)
	if err != nil {
		logger.Fatal("failed to initialise auth client", zap.Error(err))
	}
	observer := authstate.Register(client, logger)
	defer observer.Close()

	sessions, err := buildSessionManager(logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialise session manager", zap.Error(err))
	}

	server, err := httpserver.New(httpserver.Config{
		Address:        cfg.Server.Addr,
		BasePath:       cfg.Server.BasePath,
		Environment:    cfg.Environment,
		TraceProjectID: cfg.Auth.ProjectID,
		Client:         client,
		Sessions:       sessions,
		Bundle:         bundle,
		Logger:         logger,
		Meter:          otel.GetMeterProvider().Meter(meterName),
		CSRFCookieName: cfg.Session.CSRFCookieName,
		CookieSecure:   cfg.Session.Secure,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	if err != nil {
		logger.Fatal("failed to initialise http server", zap.Error(err))
	}

	shutdown, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("acesso listening",
			zap.String("base_path", cfg.Server.BasePath),
			zap.String("auth_backend", cfg.Auth.Backend),
			zap.String("environment", cfg.Environment),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown.Done()
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newSecretResolver(ctx context.Context, logger *zap.Logger) (*secrets.Resolver, error) {
	cfg, err := config.LoadSecrets()
	if err != nil {
		return nil, err
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(cfg.ProjectID),
		secrets.WithFallbackFile(cfg.FallbackFile),
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(cfg.CredentialsFile)))
	}
	if cfg.ProjectID == "" {
		logger.Warn("no secret project configured; resolving from fallback file only")
		opts = append(opts, secrets.WithoutRemote())
	}
	return secrets.NewResolver(ctx, opts...)
}

func buildAuthClient(ctx context.Context, logger *zap.Logger, cfg config.AuthConfig) (authclient.Client, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory auth backend; accounts are lost on restart")
		return authclient.NewMemory(authclient.WithMemoryLogger(logger)), nil
	case config.BackendFirebase:
		return buildFirebaseClient(ctx, logger, cfg)
	default:
		return nil, fmt.Errorf("unknown auth backend %q", cfg.Backend)
	}
}

func buildFirebaseClient(ctx context.Context, logger *zap.Logger, cfg config.AuthConfig) (authclient.Client, error) {
	var appOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		appOpts = append(appOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	toolkitOpts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		// The Admin SDK reads the emulator address from the environment.
		if err := os.Setenv("FIREBASE_AUTH_EMULATOR_HOST", host); err != nil {
			return nil, fmt.Errorf("set emulator host: %w", err)
		}
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "emulator"
		}
		toolkitOpts = []option.ClientOption{
			option.WithAPIKey(apiKey),
			option.WithEndpoint("http://" + host + "/www.googleapis.com/identitytoolkit/v3/relyingparty/"),
		}
		logger.Info("firebase auth emulator enabled", zap.String("host", host))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, appOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}
	verifier, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}
	passwords, err := authclient.NewIdentityToolkit(ctx, toolkitOpts...)
	if err != nil {
		return nil, err
	}

	client, err := authclient.NewFirebase(passwords,
		authclient.WithTokenVerifier(verifier),
		authclient.WithFirebaseLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	logger.Info("firebase auth enabled", zap.String("project", cfg.ProjectID))
	return client, nil
}

func buildSessionManager(logger *zap.Logger, cfg config.Config) (*session.Manager, error) {
	hashKey := []byte(cfg.Session.HashKey)
	blockKey := []byte(cfg.Session.BlockKey)
	if len(hashKey) == 0 {
		if cfg.Environment == "production" {
			return nil, errors.New("session hash key is required in production")
		}
		logger.Warn("session keys not configured; generating ephemeral keys")
		hashKey = session.GenerateKey(64)
		if len(blockKey) == 0 {
			blockKey = session.GenerateKey(32)
		}
	}

	return session.NewManager(session.Config{
		CookieName:   cfg.Session.CookieName,
		HashKey:      hashKey,
		BlockKey:     blockKey,
		CookiePath:   cfg.Server.BasePath,
		CookieSecure: cfg.Session.Secure,
		IdleTimeout:  cfg.Session.IdleTimeout,
	})
}
