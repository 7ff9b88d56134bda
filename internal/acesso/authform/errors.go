package authform

import (
	"golang.org/x/text/language"

	"finitefield.org/acesso/internal/acesso/authclient"
	"finitefield.org/acesso/internal/acesso/i18n"
)

// Catalog keys for user-facing failure messages.
const (
	KeyInvalidCredentials = "error.invalid_credentials"
	KeyInvalidEmail       = "error.invalid_email"
	KeyWeakPassword       = "error.weak_password"
	KeyEmailInUse         = "error.email_in_use"
	KeyGeneric            = "error.generic"
)

var defaultLanguage = language.English

// MessageKey selects the catalog key for code. Every code without a dedicated message,
// CodeUnknown included, falls through to the generic retry message.
func MessageKey(code authclient.Code) string {
	switch code {
	case authclient.CodeUserNotFound, authclient.CodeWrongPassword:
		return KeyInvalidCredentials
	case authclient.CodeInvalidEmail:
		return KeyInvalidEmail
	case authclient.CodeWeakPassword:
		return KeyWeakPassword
	case authclient.CodeEmailAlreadyInUse:
		return KeyEmailInUse
	default:
		return KeyGeneric
	}
}

// ErrorMapper turns provider failures into messages in a single language.
type ErrorMapper struct {
	bundle *i18n.Bundle
	lang   language.Tag
}

// NewErrorMapper builds a mapper for lang. A nil bundle selects the embedded catalogs.
func NewErrorMapper(bundle *i18n.Bundle, lang language.Tag) ErrorMapper {
	if bundle == nil {
		bundle = i18n.Default()
	}
	return ErrorMapper{bundle: bundle, lang: lang}
}

// Map returns the message for code.
func (m ErrorMapper) Map(code authclient.Code) string {
	bundle := m.bundle
	if bundle == nil {
		bundle = i18n.Default()
	}
	return bundle.T(m.lang, MessageKey(code))
}

// MapErr returns the message for any error returned by a Client. Errors that carry no
// provider code map to the generic message.
func (m ErrorMapper) MapErr(err error) string {
	return m.Map(authclient.CodeOf(err))
}

// MapError maps code using the English catalog.
func MapError(code authclient.Code) string {
	return NewErrorMapper(nil, language.English).Map(code)
}
