// Package i18n loads the embedded message catalogs and negotiates the UI language.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// DefaultLanguage is the product language used when negotiation finds no better match.
var DefaultLanguage = language.BrazilianPortuguese

// Bundle holds every loaded catalog and a printer per supported language.
type Bundle struct {
	dict      map[language.Tag]map[string]string
	fallback  language.Tag
	supported []language.Tag
	matcher   language.Matcher
	printers  map[language.Tag]*message.Printer
}

// Load parses every locales/<tag>.yaml file in fsys. The fallback language must be present
// and is preferred by the matcher when the Accept-Language header has no usable entry.
func Load(fsys fs.FS, fallback language.Tag) (*Bundle, error) {
	entries, err := fs.ReadDir(fsys, "locales")
	if err != nil {
		return nil, fmt.Errorf("i18n: read locales: %w", err)
	}

	b := &Bundle{
		dict:     make(map[language.Tag]map[string]string),
		fallback: fallback,
		printers: make(map[language.Tag]*message.Printer),
	}
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".yaml" {
			continue
		}
		tag, err := language.Parse(strings.TrimSuffix(entry.Name(), ".yaml"))
		if err != nil {
			return nil, fmt.Errorf("i18n: locale file %s: %w", entry.Name(), err)
		}
		raw, err := fs.ReadFile(fsys, path.Join("locales", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", entry.Name(), err)
		}
		var messages map[string]string
		if err := yaml.Unmarshal(raw, &messages); err != nil {
			return nil, fmt.Errorf("i18n: unmarshal %s: %w", entry.Name(), err)
		}
		b.dict[tag] = messages
	}
	if _, ok := b.dict[fallback]; !ok {
		return nil, fmt.Errorf("i18n: fallback locale %s not loaded", fallback)
	}

	builder := catalog.NewBuilder(catalog.Fallback(fallback))
	for tag, messages := range b.dict {
		for key, msg := range messages {
			if err := builder.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("i18n: catalog %s/%s: %w", tag, key, err)
			}
		}
	}

	// The fallback goes first so the matcher picks it for unmatched preferences.
	b.supported = append(b.supported, fallback)
	others := make([]language.Tag, 0, len(b.dict))
	for tag := range b.dict {
		if tag != fallback {
			others = append(others, tag)
		}
	}
	sort.Slice(others, func(i, j int) bool { return others[i].String() < others[j].String() })
	b.supported = append(b.supported, others...)
	b.matcher = language.NewMatcher(b.supported)

	for _, tag := range b.supported {
		b.printers[tag] = message.NewPrinter(tag, message.Catalog(builder))
	}
	return b, nil
}

// LoadEmbedded builds a bundle from the embedded catalogs with a custom fallback language.
func LoadEmbedded(fallback language.Tag) (*Bundle, error) {
	return Load(localeFS, fallback)
}

var (
	defaultOnce   sync.Once
	defaultBundle *Bundle
)

// Default returns the bundle built from the embedded catalogs.
func Default() *Bundle {
	defaultOnce.Do(func() {
		b, err := Load(localeFS, DefaultLanguage)
		if err != nil {
			panic(err)
		}
		defaultBundle = b
	})
	return defaultBundle
}

// Fallback returns the configured fallback language.
func (b *Bundle) Fallback() language.Tag { return b.fallback }

// Supported lists the loaded languages, fallback first.
func (b *Bundle) Supported() []language.Tag {
	out := make([]language.Tag, len(b.supported))
	copy(out, b.supported)
	return out
}

// Match returns the supported language closest to tag.
func (b *Bundle) Match(tag language.Tag) language.Tag {
	_, idx, confidence := b.matcher.Match(tag)
	if confidence == language.No {
		return b.fallback
	}
	return b.supported[idx]
}

// Resolve picks the best supported language for an Accept-Language header value.
func (b *Bundle) Resolve(acceptLanguage string) language.Tag {
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return b.fallback
	}
	_, idx, confidence := b.matcher.Match(prefs...)
	if confidence == language.No {
		return b.fallback
	}
	return b.supported[idx]
}

// Has reports whether key exists in the fallback catalog.
func (b *Bundle) Has(key string) bool {
	_, ok := b.dict[b.fallback][key]
	return ok
}

// T translates key into lang, falling back to the default language and finally to the key itself.
func (b *Bundle) T(lang language.Tag, key string, args ...any) string {
	tag := b.Match(lang)
	if _, ok := b.dict[tag][key]; !ok {
		tag = b.fallback
		if _, ok := b.dict[tag][key]; !ok {
			return key
		}
	}
	return b.printers[tag].Sprintf(key, args...)
}
