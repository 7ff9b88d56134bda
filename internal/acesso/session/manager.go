// Package session persists the signed-in identity, language choice and one-shot flash message
// in a signed and optionally encrypted cookie.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
)

const (
	defaultCookieName  = "acesso_session"
	defaultCookiePath  = "/"
	defaultLifetime    = 12 * time.Hour
	defaultIdleTimeout = 30 * time.Minute
)

// ErrExpired indicates the stored session is no longer valid due to idle or absolute expiry.
var ErrExpired = errors.New("session expired")

// ErrInvalidConfig indicates the manager was initialised with missing or invalid options.
var ErrInvalidConfig = errors.New("session: invalid config")

// User is the authenticated identity recorded after a successful login or signup.
type User struct {
	UID        string    `json:"uid"`
	Email      string    `json:"email,omitempty"`
	SignedInAt time.Time `json:"signedInAt"`
}

// Flash is a catalog key rendered once on the next page view.
type Flash struct {
	Key  string `json:"key"`
	Args []any  `json:"args,omitempty"`
}

// Data represents the full persisted session payload.
type Data struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
	ExpiresAt  time.Time `json:"expiresAt,omitempty"`
	User       *User     `json:"user,omitempty"`
	Flash      *Flash    `json:"flash,omitempty"`
	Language   string    `json:"lang,omitempty"`
}

// Session holds mutable state for the current request lifecycle.
type Session struct {
	data  Data
	dirty bool
	cfg   *Config
}

// Config controls cookie encoding and lifecycle limits for the session manager.
type Config struct {
	CookieName     string
	HashKey        []byte
	BlockKey       []byte
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite

	IdleTimeout time.Duration
	Lifetime    time.Duration
	Now         func() time.Time
}

// Manager decodes and persists session state via signed cookies.
type Manager struct {
	cfg   Config
	codec *securecookie.SecureCookie
	now   func() time.Time
}

// NewManager constructs a Manager using the provided configuration.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.HashKey) == 0 {
		return nil, fmt.Errorf("%w: hash key is required", ErrInvalidConfig)
	}
	switch len(cfg.BlockKey) {
	case 0, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: block key must be 16, 24 or 32 bytes", ErrInvalidConfig)
	}

	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = defaultCookiePath
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = defaultLifetime
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.CookieSameSite == http.SameSiteDefaultMode {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	codec := securecookie.New(cfg.HashKey, cfg.BlockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(cfg.Lifetime / time.Second))

	return &Manager{cfg: cfg, codec: codec, now: nowFn}, nil
}

// GenerateKey returns random key material suitable for HashKey or BlockKey.
func GenerateKey(length int) []byte {
	return securecookie.GenerateRandomKey(length)
}

// CookieName reports the configured session cookie name.
func (m *Manager) CookieName() string {
	return m.cfg.CookieName
}

// Load retrieves the session from the incoming request or creates a new one. A cookie that
// fails to decode is treated as absent.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return m.New(), nil
	}

	var stored Data
	if err := m.codec.Decode(m.cfg.CookieName, cookie.Value, &stored); err != nil {
		return m.New(), nil
	}

	sess := m.sessionFromData(stored)
	if m.isExpired(sess, m.now()) {
		return nil, ErrExpired
	}
	return sess, nil
}

// Save writes the session back to the response as a cookie. A clean session is only rewritten
// once half of the idle timeout has passed since it was last stored.
func (m *Manager) Save(w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return errors.New("session: nil session")
	}
	now := m.now()
	if !sess.Dirty() && now.UTC().Sub(sess.data.LastActive) < m.cfg.IdleTimeout/2 {
		return nil
	}

	sess.touch(now)
	encoded, err := m.codec.Encode(m.cfg.CookieName, sess.data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	cookie := &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    encoded,
		Path:     m.cfg.CookiePath,
		Domain:   m.cfg.CookieDomain,
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: m.cfg.CookieSameSite,
	}
	if expiry := sess.data.ExpiresAt; !expiry.IsZero() {
		cookie.Expires = expiry.UTC()
		remaining := expiry.Sub(m.now())
		if remaining <= 0 {
			cookie.MaxAge = -1
		} else {
			cookie.MaxAge = int(remaining.Round(time.Second).Seconds())
		}
	}

	http.SetCookie(w, cookie)
	return nil
}

// Destroy invalidates the session cookie immediately.
func (m *Manager) Destroy(w http.ResponseWriter) {
	http.SetCookie(w, m.expiredCookie())
}

// New returns a new empty session.
func (m *Manager) New() *Session {
	now := m.now().UTC()
	return &Session{
		data: Data{
			ID:         uuid.NewString(),
			CreatedAt:  now,
			LastActive: now,
			ExpiresAt:  m.cfg.expiryFrom(now),
		},
		dirty: true,
		cfg:   &m.cfg,
	}
}

func (m *Manager) sessionFromData(d Data) *Session {
	if d.ID == "" {
		d.ID = uuid.NewString()
		d.CreatedAt = m.now().UTC()
		d.LastActive = d.CreatedAt
		d.ExpiresAt = m.cfg.expiryFrom(d.CreatedAt)
	}
	return &Session{data: d, cfg: &m.cfg}
}

func (m *Manager) isExpired(sess *Session, now time.Time) bool {
	now = now.UTC()
	if !sess.data.ExpiresAt.IsZero() && now.After(sess.data.ExpiresAt.UTC()) {
		return true
	}
	last := sess.data.LastActive
	if last.IsZero() {
		last = sess.data.CreatedAt
	}
	return !last.IsZero() && now.Sub(last) > m.cfg.IdleTimeout
}

func (m *Manager) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     m.cfg.CookiePath,
		Domain:   m.cfg.CookieDomain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: m.cfg.CookieSameSite,
	}
}

// User returns the signed-in identity, if any.
func (s *Session) User() *User {
	if s.data.User == nil {
		return nil
	}
	copied := *s.data.User
	return &copied
}

// SignIn records user and rotates the session identifier and absolute expiry.
func (s *Session) SignIn(user User, now time.Time) {
	now = now.UTC()
	if user.SignedInAt.IsZero() {
		user.SignedInAt = now
	}
	s.data.User = &user
	s.data.ID = uuid.NewString()
	s.data.CreatedAt = now
	s.data.ExpiresAt = s.cfg.expiryFrom(now)
	s.dirty = true
}

// SignOut clears the identity but keeps the session so a flash can still be delivered.
func (s *Session) SignOut() {
	if s.data.User == nil {
		return
	}
	s.data.User = nil
	s.dirty = true
}

// SetFlash stores a message key shown on the next render.
func (s *Session) SetFlash(key string, args ...any) {
	if key == "" {
		return
	}
	s.data.Flash = &Flash{Key: key, Args: args}
	s.dirty = true
}

// TakeFlash returns and clears the pending flash.
func (s *Session) TakeFlash() (Flash, bool) {
	if s.data.Flash == nil {
		return Flash{}, false
	}
	flash := *s.data.Flash
	s.data.Flash = nil
	s.dirty = true
	return flash, true
}

// Language returns the explicitly chosen UI language tag, or "".
func (s *Session) Language() string { return s.data.Language }

// SetLanguage records an explicit UI language choice.
func (s *Session) SetLanguage(tag string) {
	if s.data.Language == tag {
		return
	}
	s.data.Language = tag
	s.dirty = true
}

// touch updates the last active timestamp.
func (s *Session) touch(now time.Time) {
	now = now.UTC()
	if now.After(s.data.LastActive) {
		s.data.LastActive = now
		s.dirty = true
	}
}

// Dirty indicates whether the session contents have changed during this request.
func (s *Session) Dirty() bool { return s.dirty }

func (cfg *Config) expiryFrom(from time.Time) time.Time {
	if cfg == nil || cfg.Lifetime <= 0 {
		return time.Time{}
	}
	return from.UTC().Add(cfg.Lifetime)
}
