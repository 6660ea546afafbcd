// Package generator renders personalized congratulation texts from
// segment and tone driven templates, with a per-key result cache.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tartampluch/go-congrats/internal/client"
	"github.com/tartampluch/go-congrats/internal/config"
	"github.com/tartampluch/go-congrats/internal/engine"
	"golang.org/x/sync/singleflight"
)

// Result is one generated congratulation.
type Result struct {
	Text        string        `json:"text"`
	ClientID    int64         `json:"client_id"`
	ClientName  string        `json:"client_name"`
	EventType   string        `json:"event_type"`
	Segment     client.Bucket `json:"segment"`
	GeneratedAt time.Time     `json:"generated_at"`
	Method      string        `json:"method"`
	Tone        string        `json:"tone"`
	Length      int           `json:"length"`
	Context     RenderContext `json:"context"`
}

// NotFoundError reports a client id with no record. It matches client.ErrNotFound.
type NotFoundError struct {
	ClientID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf(config.HTTPMsgClientMissing, e.ClientID)
}

func (e *NotFoundError) Unwrap() error { return client.ErrNotFound }

// ClientGetter is the part of client.Repository the generator needs.
type ClientGetter interface {
	Get(ctx context.Context, id int64) (*client.Client, error)
}

// Options tune one generation. The zero value generates a birthday
// greeting with the segment tone and serves cached results.
type Options struct {
	EventType string
	Tone      string
	SkipCache bool
}

// Config wires a Generator. Only Clients and Catalog are required.
type Config struct {
	Clients     ClientGetter
	Catalog     *Catalog
	Cache       Cache
	Renderer    Renderer
	Clock       engine.Clock
	Rand        Rand
	DefaultTone string
}

// Generator produces congratulation texts. It is safe for concurrent use.
type Generator struct {
	clients     ClientGetter
	catalog     *Catalog
	cache       Cache
	renderer    Renderer
	clock       engine.Clock
	rand        Rand
	defaultTone string
	fallbacks   Fallbacks

	inflight singleflight.Group
}

// New creates a Generator. Missing collaborators get in-process defaults:
// a MemoryCache, the template renderer, the real clock and a global random source.
func New(cfg Config) *Generator {
	g := &Generator{
		clients:     cfg.Clients,
		catalog:     cfg.Catalog,
		cache:       cfg.Cache,
		renderer:    cfg.Renderer,
		clock:       cfg.Clock,
		rand:        cfg.Rand,
		defaultTone: cfg.DefaultTone,
	}
	if g.cache == nil {
		g.cache = NewMemoryCache()
	}
	if g.renderer == nil {
		g.renderer = &TemplateRenderer{Catalog: cfg.Catalog}
	}
	if g.clock == nil {
		g.clock = engine.RealClock{}
	}
	if g.rand == nil {
		g.rand = globalRand{}
	}
	if g.defaultTone == "" {
		g.defaultTone = config.DefaultTone
	}
	g.fallbacks = Fallbacks{
		Company:  cfg.Catalog.Text(config.TKeyFbCompany, config.FallbackCompany),
		Position: cfg.Catalog.Text(config.TKeyFbPosition, config.FallbackPosition),
		Segment:  cfg.Catalog.Text(config.TKeyFbSegment, config.FallbackSegment),
	}
	return g
}

// NewRenderer picks the AI renderer when AI generation is enabled and
// configured, the template renderer otherwise.
func NewRenderer(catalog *Catalog, settings config.GeneratorSettings, completer Completer) Renderer {
	tmpl := &TemplateRenderer{Catalog: catalog}
	if !settings.AIConfigured() {
		return tmpl
	}
	return &AIRenderer{Completer: completer, Fallback: tmpl}
}

// GenerateForClient returns the congratulation for one client.
// A cached result is returned unchanged unless opts.SkipCache is set;
// a fresh result always replaces the cached one.
func (g *Generator) GenerateForClient(ctx context.Context, clientID int64, opts Options) (Result, error) {
	if opts.EventType == "" {
		opts.EventType = config.EventBirthday
	}
	key := CacheKey{ClientID: clientID, EventType: opts.EventType, Tone: opts.Tone}

	if opts.SkipCache {
		return g.generateAndStore(ctx, key)
	}

	if r, ok := g.lookup(ctx, key); ok {
		return r, nil
	}

	// Concurrent misses on one key share a single generation.
	v, err, _ := g.inflight.Do(key.Format(""), func() (any, error) {
		if r, ok := g.lookup(ctx, key); ok {
			return r, nil
		}
		return g.generateAndStore(ctx, key)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

// BatchItem is one entry of a batch: a result or an error.
type BatchItem struct {
	ClientID int64   `json:"client_id"`
	Success  bool    `json:"success"`
	Result   *Result `json:"result,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// BatchResult collects a batch in input order.
type BatchResult struct {
	Results    []BatchItem `json:"results"`
	Successful int         `json:"successful"`
	Failed     int         `json:"failed"`
}

// BatchGenerate generates fresh results for every id in order.
// A failing id becomes an error entry; the batch never aborts.
func (g *Generator) BatchGenerate(ctx context.Context, clientIDs []int64, eventType string) BatchResult {
	out := BatchResult{Results: make([]BatchItem, 0, len(clientIDs))}
	for _, id := range clientIDs {
		r, err := g.GenerateForClient(ctx, id, Options{EventType: eventType, SkipCache: true})
		if err != nil {
			slog.Warn(config.MsgBatchItemFailed,
				config.LogKeyComponent, config.CompGenerator,
				config.LogKeyClientID, id,
				config.LogKeyError, err,
			)
			out.Results = append(out.Results, BatchItem{ClientID: id, Error: err.Error()})
			out.Failed++
			continue
		}
		out.Results = append(out.Results, BatchItem{ClientID: id, Success: true, Result: &r})
		out.Successful++
	}

	slog.Info(config.MsgBatchDone,
		config.LogKeyComponent, config.CompGenerator,
		config.LogKeySuccess, out.Successful,
		config.LogKeyFailed, out.Failed,
	)
	return out
}

// ClearCache drops every cached result.
func (g *Generator) ClearCache(ctx context.Context) error {
	if err := g.cache.Clear(ctx); err != nil {
		return err
	}
	slog.Info(config.MsgCacheCleared, config.LogKeyComponent, config.CompGenerator)
	return nil
}

// Invalidate drops the cached results of one client, e.g. after its record changed.
func (g *Generator) Invalidate(ctx context.Context, clientID int64) error {
	return g.cache.Invalidate(ctx, clientID)
}

// Catalog exposes the template catalog, e.g. for email subjects.
func (g *Generator) Catalog() *Catalog { return g.catalog }

// lookup treats cache backend failures as misses.
func (g *Generator) lookup(ctx context.Context, key CacheKey) (Result, bool) {
	r, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		slog.Warn(config.MsgCacheFailed,
			config.LogKeyComponent, config.CompCache,
			config.LogKeyError, err,
		)
		return Result{}, false
	}
	if ok {
		slog.Debug(config.MsgCacheHit,
			config.LogKeyComponent, config.CompGenerator,
			config.LogKeyClientID, key.ClientID,
			config.LogKeyEvent, key.EventType,
		)
	}
	return r, ok
}

func (g *Generator) generateAndStore(ctx context.Context, key CacheKey) (Result, error) {
	r, err := g.generate(ctx, key)
	if err != nil {
		return Result{}, err
	}
	if err := g.cache.Set(ctx, key, r); err != nil {
		slog.Warn(config.MsgCacheFailed,
			config.LogKeyComponent, config.CompCache,
			config.LogKeyError, err,
		)
	}
	return r, nil
}

func (g *Generator) generate(ctx context.Context, key CacheKey) (Result, error) {
	c, err := g.clients.Get(ctx, key.ClientID)
	if errors.Is(err, client.ErrNotFound) {
		return Result{}, &NotFoundError{ClientID: key.ClientID}
	}
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", config.ErrGenerationFailed, err)
	}

	now := g.clock.Now()
	rc := BuildContext(*c, key.EventType, key.Tone, g.defaultTone, now, g.fallbacks)
	text, method := g.renderer.Render(ctx, rc)
	text = g.maybeAddWish(text)

	r := Result{
		Text:        text,
		ClientID:    c.ID,
		ClientName:  c.FullName(),
		EventType:   key.EventType,
		Segment:     rc.Bucket,
		GeneratedAt: now,
		Method:      method,
		Tone:        rc.Tone,
		Length:      utf8.RuneCountInString(text),
		Context:     rc,
	}

	slog.Info(config.MsgGenerated,
		config.LogKeyComponent, config.CompGenerator,
		config.LogKeyClientID, r.ClientID,
		config.LogKeyEvent, r.EventType,
		config.LogKeyMethod, r.Method,
		config.LogKeyTone, r.Tone,
	)
	return r, nil
}

// maybeAddWish appends a pooled wish when the draw exceeds config.WishProbability.
func (g *Generator) maybeAddWish(text string) string {
	if g.rand.Float64() <= config.WishProbability {
		return text
	}
	wishes := g.catalog.Wishes()
	if len(wishes) == 0 {
		return text
	}
	return strings.TrimRight(text, " \t\r\n") + paragraphSep + wishes[g.rand.IntN(len(wishes))]
}
