package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

var (
	mu     sync.RWMutex
	bundle *goi18n.Bundle
	tags   []language.Tag
)

func init() {
	if err := Init("en"); err != nil {
		panic(err)
	}
}

// Init reloads the translation bundle with lang as the fallback language.
func Init(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("parse language %q: %w", lang, err)
	}

	b := goi18n.NewBundle(tag)
	b.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := b.ParseMessageFileBytes(data, e.Name()); err != nil {
			return fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
	}

	mu.Lock()
	bundle = b
	tags = b.LanguageTags()
	mu.Unlock()
	return nil
}

// Languages lists the loaded locales, fallback first.
func Languages() []language.Tag {
	mu.RLock()
	defer mu.RUnlock()
	return append([]language.Tag(nil), tags...)
}

// NewLocalizer picks the best loaded locale for the given preferences, which
// may be tags or raw Accept-Language header values.
func NewLocalizer(langs ...string) *goi18n.Localizer {
	mu.RLock()
	defer mu.RUnlock()
	return goi18n.NewLocalizer(bundle, langs...)
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *goi18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

func localizerFromCtx(ctx context.Context) *goi18n.Localizer {
	if ctx != nil {
		if loc, ok := ctx.Value(ctxKey{}).(*goi18n.Localizer); ok {
			return loc
		}
	}
	return NewLocalizer()
}

// T translates a message by ID, returning the ID itself when missing.
func T(ctx context.Context, msgID string) string {
	s, err := localizerFromCtx(ctx).Localize(&goi18n.LocalizeConfig{MessageID: msgID})
	if err != nil {
		log.Warn().Str("id", msgID).Err(err).Msg("missing translation")
		return msgID
	}
	return s
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	s, err := localizerFromCtx(ctx).Localize(&goi18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: data,
	})
	if err != nil {
		log.Warn().Str("id", msgID).Err(err).Msg("missing translation")
		return msgID
	}
	return s
}

// Tp translates a pluralized message by ID. Count is available to the
// template as {{.Count}}.
func Tp(ctx context.Context, msgID string, count int, data map[string]any) string {
	td := map[string]any{"Count": count}
	for k, v := range data {
		td[k] = v
	}
	s, err := localizerFromCtx(ctx).Localize(&goi18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: td,
	})
	if err != nil {
		log.Warn().Str("id", msgID).Err(err).Msg("missing translation")
		return msgID
	}
	return s
}
