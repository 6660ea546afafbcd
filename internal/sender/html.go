package sender

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/osteele/liquid"
	"github.com/tartampluch/go-congrats/internal/config"
	"github.com/tartampluch/go-congrats/internal/engine"
	"github.com/tartampluch/go-congrats/internal/generator"
)

//go:embed templates/congratulation.liquid
var congratulationTemplate string

// Header icons per event type.
var eventIcons = map[string]string{
	config.EventBirthday:     "🎂",
	config.EventProfessional: "🏅",
}

const defaultIcon = "🎁"

// HTMLRenderer builds the HTML email body from a liquid layout.
// The parsed template is reused across calls.
type HTMLRenderer struct {
	tpl          *liquid.Template
	catalog      *generator.Catalog
	organization string
	clock        engine.Clock
}

// NewHTMLRenderer parses the embedded layout.
func NewHTMLRenderer(catalog *generator.Catalog, organization string, clock engine.Clock) (*HTMLRenderer, error) {
	tpl, err := liquid.NewEngine().ParseString(congratulationTemplate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrEmailRender, err)
	}
	if organization == "" {
		organization = config.DefaultOrg
	}
	if clock == nil {
		clock = engine.RealClock{}
	}
	return &HTMLRenderer{tpl: tpl, catalog: catalog, organization: organization, clock: clock}, nil
}

// Render returns the HTML document for text. Line breaks in text are kept.
func (h *HTMLRenderer) Render(eventType, text string) (string, error) {
	signature, err := h.catalog.Render(config.TKeyEmailSign, map[string]any{"organization": h.organization})
	if err != nil {
		signature = h.organization
	}

	out, err := h.tpl.RenderString(liquid.Bindings{
		"lang":         h.catalog.Lang(),
		"header":       h.header(eventType),
		"icon":         icon(eventType),
		"lines":        strings.Split(text, "\n"),
		"signature":    strings.Split(signature, "\n"),
		"notice":       h.catalog.Text(config.TKeyEmailNotice, ""),
		"organization": h.organization,
		"year":         h.clock.Now().Year(),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrEmailRender, err)
	}
	return out, nil
}

func (h *HTMLRenderer) header(eventType string) string {
	id := config.TKeyEmailHeader + eventType
	if !h.catalog.Has(id) {
		id = config.TKeyEmailHeadDef
	}
	return h.catalog.Text(id, "")
}

func icon(eventType string) string {
	if i, ok := eventIcons[eventType]; ok {
		return i
	}
	return defaultIcon
}
