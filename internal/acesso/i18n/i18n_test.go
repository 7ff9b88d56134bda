package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestDefaultBundleLoadsEmbeddedCatalogs(t *testing.T) {
	b := Default()

	require.Equal(t, language.BrazilianPortuguese, b.Fallback())
	require.Equal(t, []language.Tag{language.BrazilianPortuguese, language.English}, b.Supported())
	require.Equal(t, "Entrar", b.T(language.BrazilianPortuguese, "form.submit"))
	require.Equal(t, "Entrando...", b.T(language.BrazilianPortuguese, "form.submitting"))
	require.Equal(t, "malformed email format", b.T(language.English, "error.invalid_email"))
}

func TestCatalogsDefineTheSameKeys(t *testing.T) {
	b := Default()
	pt := b.dict[language.BrazilianPortuguese]
	en := b.dict[language.English]

	require.Equal(t, len(pt), len(en))
	for key := range pt {
		_, ok := en[key]
		require.True(t, ok, "english catalog missing %s", key)
	}
}

func TestResolveAcceptLanguage(t *testing.T) {
	b := Default()

	cases := map[string]language.Tag{
		"":                       language.BrazilianPortuguese,
		"en-US,en;q=0.9":         language.English,
		"pt-PT,pt;q=0.8":         language.BrazilianPortuguese,
		"ja,en;q=0.5":            language.English,
		"de":                     language.BrazilianPortuguese,
		"not a header;;;":        language.BrazilianPortuguese,
		"fr;q=0.9, pt-BR;q=0.95": language.BrazilianPortuguese,
	}
	for header, want := range cases {
		require.Equal(t, want, b.Resolve(header), "header %q", header)
	}
}

func TestTFallsBackToKey(t *testing.T) {
	b := Default()
	require.Equal(t, "missing.key", b.T(language.English, "missing.key"))
	require.False(t, b.Has("missing.key"))
	require.True(t, b.Has("error.generic"))
}

func TestTFormatsArguments(t *testing.T) {
	b := Default()
	require.Equal(t, "Signed in as a@b.com", b.T(language.English, "home.signed_in_as", "a@b.com"))
	require.Equal(t, "Conectado como a@b.com", b.T(language.BrazilianPortuguese, "home.signed_in_as", "a@b.com"))
}

func TestLoadFallsBackToDefaultLanguageForMissingKeys(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en.yaml":    {Data: []byte("greeting: \"hello\"\nfarewell: \"bye\"\n")},
		"locales/pt-BR.yaml": {Data: []byte("greeting: \"olá\"\n")},
	}
	b, err := Load(fsys, language.English)
	require.NoError(t, err)

	require.Equal(t, "olá", b.T(language.BrazilianPortuguese, "greeting"))
	require.Equal(t, "bye", b.T(language.BrazilianPortuguese, "farewell"))
}

func TestLoadRequiresFallbackLocale(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en.yaml": {Data: []byte("greeting: hello\n")},
	}
	_, err := Load(fsys, language.Japanese)
	require.ErrorContains(t, err, "fallback locale ja not loaded")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en.yaml": {Data: []byte("greeting: [unterminated\n")},
	}
	_, err := Load(fsys, language.English)
	require.Error(t, err)
}

func TestLoadEmbeddedWithEnglishFallback(t *testing.T) {
	b, err := LoadEmbedded(language.English)
	require.NoError(t, err)

	require.Equal(t, language.English, b.Fallback())
	require.Equal(t, language.English, b.Resolve("de-DE"))
	require.Equal(t, "Sign in", b.T(language.German, "form.submit"))
}

func TestLoadEmbeddedRejectsUnknownFallback(t *testing.T) {
	_, err := LoadEmbedded(language.Japanese)
	require.Error(t, err)
}
