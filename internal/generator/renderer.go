package generator

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tartampluch/go-congrats/internal/config"
)

// paragraphSep joins appended notes, wishes and markers to the body.
const paragraphSep = "\n\n"

// Renderer turns a context into greeting text and reports the method used.
type Renderer interface {
	Render(ctx context.Context, rc RenderContext) (text, method string)
}

// TemplateRenderer renders from the Catalog. Output is deterministic for a given context.
type TemplateRenderer struct {
	Catalog *Catalog
}

// Render implements Renderer.
func (t *TemplateRenderer) Render(_ context.Context, rc RenderContext) (string, string) {
	text := t.Catalog.Greeting(rc.EventType, rc.Bucket, rc.Data())
	if rc.EventType == config.EventBirthday && rc.IsJubilee && rc.Age != nil {
		if note := t.Catalog.JubileeNote(*rc.Age); note != "" {
			text = appendParagraph(text, note)
		}
	}
	return text, config.MethodTemplate
}

// Completer is an external text-completion backend.
type Completer interface {
	Complete(ctx context.Context, rc RenderContext) (string, error)
}

// errNoCompleter is reported when no backend is wired.
var errNoCompleter = errors.New(config.ErrAIUnavailable)

// AIRenderer asks a Completer for text and degrades to the template
// renderer, tagged with the AI marker, when the backend is absent or fails.
type AIRenderer struct {
	Completer Completer
	Fallback  *TemplateRenderer
}

// Render implements Renderer.
func (a *AIRenderer) Render(ctx context.Context, rc RenderContext) (string, string) {
	err := errNoCompleter
	if a.Completer != nil {
		var text string
		text, err = a.Completer.Complete(ctx, rc)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, config.MethodAI
		}
	}

	slog.Debug(config.MsgAIFallback,
		config.LogKeyComponent, config.CompGenerator,
		config.LogKeyClientID, rc.ClientID,
		config.LogKeyError, err,
	)
	text, _ := a.Fallback.Render(ctx, rc)
	if marker := a.Fallback.Catalog.AIMarker(); marker != "" {
		text = appendParagraph(text, marker)
	}
	return text, config.MethodAI
}

func appendParagraph(text, para string) string {
	return strings.TrimRight(text, " \t\r\n") + paragraphSep + para
}
