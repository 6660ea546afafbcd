package generator

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tartampluch/go-congrats/internal/client"
	"github.com/tartampluch/go-congrats/internal/config"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Catalog is the static table of greeting templates, wishes and subjects,
// localized through a go-i18n bundle. It is read-only after construction.
type Catalog struct {
	lang      string
	localizer *i18n.Localizer
	known     map[string]bool
	wishIDs   []string
	languages []string
}

// NewCatalog loads every embedded locale and selects lang for lookups.
// Missing messages fall back to English.
func NewCatalog(lang string) (*Catalog, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir(config.LocalesDir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrLocalesAccess, err)
	}

	c := &Catalog{known: make(map[string]bool)}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, config.LocalePrefix) || !strings.HasSuffix(name, config.LocaleExt) {
			slog.Debug(config.MsgLocaleSkip,
				config.LogKeyComponent, config.CompCatalog,
				config.LogKeyFile, name,
			)
			continue
		}

		mf, err := bundle.LoadMessageFileFS(localeFS, config.LocalesDir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", config.ErrLocaleLoad, name, err)
		}
		for _, m := range mf.Messages {
			c.known[m.ID] = true
		}

		langCode := strings.TrimSuffix(strings.TrimPrefix(name, config.LocalePrefix), config.LocaleExt)
		c.languages = append(c.languages, langCode)
		slog.Debug(config.MsgLocaleLoaded,
			config.LogKeyComponent, config.CompCatalog,
			config.LogKeyLang, langCode,
			config.LogKeyFile, name,
		)
	}

	for id := range c.known {
		if strings.HasPrefix(id, config.TKeyWishPrefix) {
			c.wishIDs = append(c.wishIDs, id)
		}
	}
	sort.Strings(c.wishIDs)

	if lang == "" {
		lang = config.DefaultLocale
	}
	c.lang = lang
	c.localizer = i18n.NewLocalizer(bundle, lang)
	return c, nil
}

// Lang returns the requested language code.
func (c *Catalog) Lang() string { return c.lang }

// Languages lists the embedded locales.
func (c *Catalog) Languages() []string { return c.languages }

// Has reports whether a message ID exists in any locale.
func (c *Catalog) Has(id string) bool { return c.known[id] }

// TemplateID resolves the template for an event type and segment bucket:
// the exact pair, then the event default, then the generic default.
func (c *Catalog) TemplateID(eventType string, bucket client.Bucket) string {
	for _, id := range templateChain(eventType, bucket) {
		if c.known[id] {
			return id
		}
	}
	return config.TKeyTmplDefault
}

// Greeting renders the resolved template with data. It never fails:
// when every candidate template errors, a fixed greeting is returned.
func (c *Catalog) Greeting(eventType string, bucket client.Bucket, data map[string]any) string {
	for _, id := range templateChain(eventType, bucket) {
		if !c.known[id] {
			continue
		}
		text, err := c.Render(id, data)
		if err == nil {
			return text
		}
		slog.Warn(config.MsgRenderFallback,
			config.LogKeyComponent, config.CompCatalog,
			config.LogKeyKey, id,
			config.LogKeyError, err,
		)
	}
	name, _ := data[ctxFullName].(string)
	return fmt.Sprintf(config.FallbackGreeting, name)
}

// Render executes one message with data.
func (c *Catalog) Render(id string, data map[string]any) (string, error) {
	msg, err := c.localizer.Localize(&i18n.LocalizeConfig{MessageID: id, TemplateData: data})
	if err != nil {
		// A message served from the default language still carries a not-found error.
		var nf *i18n.MessageNotFoundErr
		if !errors.As(err, &nf) || msg == "" {
			return "", fmt.Errorf("%s %s: %w", config.ErrTemplateRender, id, err)
		}
	}
	return msg, nil
}

// Text renders a parameterless message, returning fallback when it is missing.
func (c *Catalog) Text(id, fallback string) string {
	msg, err := c.Render(id, nil)
	if err != nil || msg == "" {
		return fallback
	}
	return msg
}

// Wishes returns the supplemental wish pool in a stable order.
func (c *Catalog) Wishes() []string {
	out := make([]string, 0, len(c.wishIDs))
	for _, id := range c.wishIDs {
		if w := c.Text(id, ""); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// JubileeNote returns the anniversary sentence for age.
func (c *Catalog) JubileeNote(age int) string {
	msg, err := c.Render(config.TKeyJubilee, map[string]any{ctxAge: age})
	if err != nil {
		return ""
	}
	return msg
}

// AIMarker is the provenance line appended to AI-path output.
func (c *Catalog) AIMarker() string {
	return c.Text(config.TKeyAIMarker, "")
}

// Subject renders the email subject for an event type.
func (c *Catalog) Subject(eventType string, data map[string]any) string {
	id := config.TKeySubjectPrefix + eventType
	if !c.known[id] {
		id = config.TKeySubjectDef
	}
	msg, err := c.Render(id, data)
	if err != nil {
		return ""
	}
	return msg
}

func templateChain(eventType string, bucket client.Bucket) []string {
	return []string{
		config.TKeyTmplPrefix + eventType + "_" + string(bucket),
		config.TKeyTmplPrefix + eventType + "_" + config.LocaleDefault,
		config.TKeyTmplDefault,
	}
}
