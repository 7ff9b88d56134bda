package authclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// ProviderTokens is the subset of the Identity Toolkit response the client needs.
type ProviderTokens struct {
	LocalID      string
	Email        string
	IDToken      string
	RefreshToken string
}

// PasswordAuthenticator performs email/password calls against the provider REST surface.
type PasswordAuthenticator interface {
	VerifyPassword(ctx context.Context, email, password string) (*ProviderTokens, error)
	SignUp(ctx context.Context, email, password string) (*ProviderTokens, error)
}

// TokenVerifier abstracts the Firebase Admin SDK client for testability.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Firebase implements Client on top of Firebase Authentication.
type Firebase struct {
	passwords PasswordAuthenticator
	verifier  TokenVerifier
	state     *broadcaster
	logger    *zap.Logger
	now       func() time.Time
}

// FirebaseOption customises the Firebase client.
type FirebaseOption func(*Firebase)

// WithTokenVerifier verifies every issued ID token through the Admin SDK before publishing it.
func WithTokenVerifier(verifier TokenVerifier) FirebaseOption {
	return func(f *Firebase) {
		f.verifier = verifier
	}
}

// WithFirebaseLogger sets the logger used for provider diagnostics.
func WithFirebaseLogger(logger *zap.Logger) FirebaseOption {
	return func(f *Firebase) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithFirebaseClock overrides the clock used for session timestamps.
func WithFirebaseClock(now func() time.Time) FirebaseOption {
	return func(f *Firebase) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFirebase constructs a Client backed by the supplied password authenticator.
func NewFirebase(passwords PasswordAuthenticator, opts ...FirebaseOption) (*Firebase, error) {
	if passwords == nil {
		return nil, fmt.Errorf("%w: password authenticator is required", ErrNotConfigured)
	}
	f := &Firebase{
		passwords: passwords,
		state:     newBroadcaster(),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// SignIn implements Client.
func (f *Firebase) SignIn(ctx context.Context, email, password string) (*Session, error) {
	tokens, err := f.passwords.VerifyPassword(ctx, email, password)
	if err != nil {
		return nil, classifyProviderError(err)
	}
	return f.establish(ctx, tokens, email)
}

// CreateAccount implements Client.
func (f *Firebase) CreateAccount(ctx context.Context, email, password string) (*Session, error) {
	tokens, err := f.passwords.SignUp(ctx, email, password)
	if err != nil {
		return nil, classifyProviderError(err)
	}
	return f.establish(ctx, tokens, email)
}

// SignOut implements Client. Provider-side revocation is not performed.
func (f *Firebase) SignOut(context.Context) error {
	f.state.publish(nil)
	return nil
}

// ObserveAuthState implements Client.
func (f *Firebase) ObserveAuthState(fn StateListener) Unsubscribe {
	return f.state.subscribe(fn)
}

func (f *Firebase) establish(ctx context.Context, tokens *ProviderTokens, submittedEmail string) (*Session, error) {
	if tokens == nil || strings.TrimSpace(tokens.IDToken) == "" {
		return nil, NewAuthError(CodeUnknown, "empty-token", errors.New("provider returned no id token"))
	}

	sess := &Session{
		UID:          tokens.LocalID,
		Email:        firstNonEmpty(tokens.Email, strings.TrimSpace(submittedEmail)),
		IDToken:      tokens.IDToken,
		RefreshToken: tokens.RefreshToken,
		IssuedAt:     f.now().UTC(),
	}

	if f.verifier != nil {
		verified, err := f.verifier.VerifyIDToken(ctx, tokens.IDToken)
		if err != nil {
			f.logger.Warn("firebase: issued id token failed verification", zap.Error(err))
			return nil, NewAuthError(CodeUnknown, "invalid-id-token", err)
		}
		if verified.UID != "" {
			sess.UID = verified.UID
		}
		if email, ok := verified.Claims["email"].(string); ok && strings.TrimSpace(email) != "" {
			sess.Email = strings.TrimSpace(email)
		}
		if verified.IssuedAt > 0 {
			sess.IssuedAt = time.Unix(verified.IssuedAt, 0).UTC()
		}
	}

	f.state.publish(sess)
	return sess, nil
}

// classifyProviderError maps Identity Toolkit error messages onto the Code enumeration.
// The provider reports reasons as upper-case tags, optionally followed by " : detail".
func classifyProviderError(err error) error {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return err
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return NewAuthError(CodeUnknown, "transport", err)
	}

	reason := apiErr.Message
	if reason == "" && len(apiErr.Errors) > 0 {
		reason = apiErr.Errors[0].Message
	}
	if idx := strings.Index(reason, ":"); idx >= 0 {
		reason = reason[:idx]
	}
	reason = strings.ToUpper(strings.TrimSpace(reason))

	switch reason {
	case "EMAIL_NOT_FOUND":
		return NewAuthError(CodeUserNotFound, reason, err)
	case "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return NewAuthError(CodeWrongPassword, reason, err)
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return NewAuthError(CodeInvalidEmail, reason, err)
	case "WEAK_PASSWORD":
		return NewAuthError(CodeWeakPassword, reason, err)
	case "EMAIL_EXISTS":
		return NewAuthError(CodeEmailAlreadyInUse, reason, err)
	default:
		return NewAuthError(CodeUnknown, reason, err)
	}
}

type identityToolkit struct {
	relyingParty *identitytoolkit.RelyingpartyService
}

// NewIdentityToolkit builds a PasswordAuthenticator over the Identity Toolkit API. Callers
// usually pass option.WithAPIKey and, for the emulator, option.WithEndpoint.
func NewIdentityToolkit(ctx context.Context, opts ...option.ClientOption) (PasswordAuthenticator, error) {
	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("authclient: identity toolkit: %w", err)
	}
	return &identityToolkit{relyingParty: svc.Relyingparty}, nil
}

func (t *identityToolkit) VerifyPassword(ctx context.Context, email, password string) (*ProviderTokens, error) {
	resp, err := t.relyingParty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return &ProviderTokens{
		LocalID:      resp.LocalId,
		Email:        resp.Email,
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
	}, nil
}

func (t *identityToolkit) SignUp(ctx context.Context, email, password string) (*ProviderTokens, error) {
	resp, err := t.relyingParty.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return &ProviderTokens{
		LocalID:      resp.LocalId,
		Email:        resp.Email,
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
