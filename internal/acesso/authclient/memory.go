package authclient

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength mirrors the provider's password policy.
const MinPasswordLength = 6

type memoryUser struct {
	uid  string
	hash []byte
}

// Memory is an in-process Client used for local development and tests. It enforces the same
// validation rules and error codes as the hosted provider.
type Memory struct {
	mu       sync.Mutex
	users    map[string]memoryUser
	validate *validator.Validate
	state    *broadcaster
	logger   *zap.Logger
	now      func() time.Time
	cost     int
}

// MemoryOption customises the in-memory client.
type MemoryOption func(*Memory)

// WithMemoryLogger sets the logger used for diagnostics.
func WithMemoryLogger(logger *zap.Logger) MemoryOption {
	return func(m *Memory) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMemoryClock overrides the clock used for session timestamps.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// WithMemoryHashCost sets the bcrypt cost; tests use bcrypt.MinCost.
func WithMemoryHashCost(cost int) MemoryOption {
	return func(m *Memory) {
		m.cost = cost
	}
}

// NewMemory constructs an empty in-memory client.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		users:    make(map[string]memoryUser),
		validate: validator.New(),
		state:    newBroadcaster(),
		logger:   zap.NewNop(),
		now:      time.Now,
		cost:     bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Seed registers an account directly, bypassing the signup flow.
func (m *Memory) Seed(email, password string) error {
	_, err := m.register(email, password)
	return err
}

// SignIn implements Client.
func (m *Memory) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewAuthError(CodeUnknown, "request-cancelled", err)
	}
	if err := m.validateEmail(email); err != nil {
		return nil, err
	}

	key := normalizeEmail(email)
	m.mu.Lock()
	user, ok := m.users[key]
	m.mu.Unlock()
	if !ok {
		return nil, NewAuthError(CodeUserNotFound, "", nil)
	}
	if err := bcrypt.CompareHashAndPassword(user.hash, []byte(password)); err != nil {
		return nil, NewAuthError(CodeWrongPassword, "", nil)
	}

	sess := m.newSession(user.uid, key)
	m.logger.Debug("memory: signed in", zap.String("uid", user.uid))
	m.state.publish(sess)
	return sess, nil
}

// CreateAccount implements Client. A successful signup also signs the new user in.
func (m *Memory) CreateAccount(ctx context.Context, email, password string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewAuthError(CodeUnknown, "request-cancelled", err)
	}
	user, err := m.register(email, password)
	if err != nil {
		return nil, err
	}

	sess := m.newSession(user.uid, normalizeEmail(email))
	m.logger.Debug("memory: account created", zap.String("uid", user.uid))
	m.state.publish(sess)
	return sess, nil
}

// SignOut implements Client.
func (m *Memory) SignOut(context.Context) error {
	m.state.publish(nil)
	return nil
}

// ObserveAuthState implements Client.
func (m *Memory) ObserveAuthState(fn StateListener) Unsubscribe {
	return m.state.subscribe(fn)
}

// CurrentSession returns the most recently published session.
func (m *Memory) CurrentSession() *Session {
	return m.state.currentSession()
}

func (m *Memory) register(email, password string) (memoryUser, error) {
	if err := m.validateEmail(email); err != nil {
		return memoryUser{}, err
	}
	if len(password) < MinPasswordLength {
		return memoryUser{}, NewAuthError(CodeWeakPassword, "", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return memoryUser{}, NewAuthError(CodeUnknown, "hash-failed", err)
	}

	key := normalizeEmail(email)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[key]; exists {
		return memoryUser{}, NewAuthError(CodeEmailAlreadyInUse, "", nil)
	}
	user := memoryUser{uid: uuid.NewString(), hash: hash}
	m.users[key] = user
	return user, nil
}

func (m *Memory) validateEmail(email string) error {
	if err := m.validate.Var(strings.TrimSpace(email), "required,email"); err != nil {
		return NewAuthError(CodeInvalidEmail, "", err)
	}
	return nil
}

func (m *Memory) newSession(uid, email string) *Session {
	return &Session{
		UID:          uid,
		Email:        email,
		IDToken:      uuid.NewString(),
		RefreshToken: uuid.NewString(),
		IssuedAt:     m.now().UTC(),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
