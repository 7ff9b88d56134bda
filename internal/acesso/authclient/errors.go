package authclient

import (
	"errors"
	"strings"
)

// Code enumerates the provider failure reasons the form knows how to present.
type Code int

const (
	// CodeUnknown covers every provider tag without a dedicated variant.
	CodeUnknown Code = iota
	CodeUserNotFound
	CodeWrongPassword
	CodeInvalidEmail
	CodeWeakPassword
	CodeEmailAlreadyInUse
)

var codeTags = map[Code]string{
	CodeUnknown:           "unknown",
	CodeUserNotFound:      "user-not-found",
	CodeWrongPassword:     "wrong-password",
	CodeInvalidEmail:      "invalid-email",
	CodeWeakPassword:      "weak-password",
	CodeEmailAlreadyInUse: "email-already-in-use",
}

// String returns the provider tag without the "auth/" namespace.
func (c Code) String() string {
	if tag, ok := codeTags[c]; ok {
		return tag
	}
	return codeTags[CodeUnknown]
}

// ParseCode converts a provider tag such as "auth/wrong-password" into a Code.
// Tags outside the enumeration resolve to CodeUnknown.
func ParseCode(tag string) Code {
	normalized := strings.ToLower(strings.TrimSpace(tag))
	normalized = strings.TrimPrefix(normalized, "auth/")
	switch normalized {
	case "user-not-found":
		return CodeUserNotFound
	case "wrong-password":
		return CodeWrongPassword
	case "invalid-email":
		return CodeInvalidEmail
	case "weak-password":
		return CodeWeakPassword
	case "email-already-in-use":
		return CodeEmailAlreadyInUse
	default:
		return CodeUnknown
	}
}

// ErrNotConfigured is returned when a client is constructed without its provider dependencies.
var ErrNotConfigured = errors.New("authclient: provider not configured")

// AuthError is the single failure kind surfaced by Client implementations.
type AuthError struct {
	Code Code
	// Raw keeps the provider's own tag for diagnostics; it is never shown to users.
	Raw string
	Err error
}

// NewAuthError constructs an AuthError for the given code.
func NewAuthError(code Code, raw string, err error) *AuthError {
	return &AuthError{Code: code, Raw: raw, Err: err}
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	msg := "auth/" + e.Code.String()
	if e.Raw != "" && e.Raw != e.Code.String() {
		msg += " (" + e.Raw + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the Code carried by err, or CodeUnknown when err is not an AuthError.
func CodeOf(err error) Code {
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr != nil {
		return authErr.Code
	}
	return CodeUnknown
}
