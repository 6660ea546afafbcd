package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tartampluch/go-congrats/internal/client"
	"github.com/tartampluch/go-congrats/internal/config"
	"github.com/tartampluch/go-congrats/internal/engine"
)

// feedItem stores the rendered calendar and its metadata for HTTP caching.
type feedItem struct {
	data         []byte
	etag         string
	lastModified string // RFC1123 format required by HTTP headers
	builtAt      time.Time
}

// Feed serves the upcoming-birthday calendar. Reads are lock-free; the
// calendar is rebuilt lazily when the roster changed or the TTL elapsed.
type Feed struct {
	cache atomic.Pointer[feedItem]
	stale atomic.Bool

	// rebuild serializes concurrent refreshes.
	rebuild sync.Mutex

	clients  client.Repository
	detector *engine.Detector
	clock    engine.Clock
	ttl      time.Duration
}

// NewFeed creates an empty feed. Nothing is built until Refresh or the first request.
func NewFeed(clients client.Repository, detector *engine.Detector, clock engine.Clock, ttl time.Duration) *Feed {
	if clock == nil {
		clock = engine.RealClock{}
	}
	if ttl <= 0 {
		ttl = config.DefaultFeedTTL
	}
	return &Feed{clients: clients, detector: detector, clock: clock, ttl: ttl}
}

// MarkStale forces a rebuild on the next request.
func (f *Feed) MarkStale() {
	f.stale.Store(true)
}

// Refresh rebuilds the calendar from the current roster.
func (f *Feed) Refresh(ctx context.Context) error {
	f.rebuild.Lock()
	defer f.rebuild.Unlock()
	return f.build(ctx)
}

// refreshIfNeeded rebuilds unless a concurrent request already did.
func (f *Feed) refreshIfNeeded(ctx context.Context) error {
	f.rebuild.Lock()
	defer f.rebuild.Unlock()
	if !f.needsRebuild(f.cache.Load()) {
		return nil
	}
	return f.build(ctx)
}

func (f *Feed) build(ctx context.Context) error {
	// Cleared before reading so a change during the rebuild marks it stale again.
	f.stale.Store(false)

	all, err := f.clients.ListAll(ctx)
	if err != nil {
		f.stale.Store(true)
		return err
	}
	now := f.clock.Now()
	events := f.detector.DetectUpcoming(all, config.FeedDaysAhead)
	data, err := engine.Calendar(events, now, config.DefaultReminderTrigger)
	if err != nil {
		f.stale.Store(true)
		return err
	}
	f.Update(data)

	slog.Info(config.MsgFeedUpdated,
		config.LogKeyComponent, config.CompServer,
		config.LogKeyCount, len(events),
	)
	return nil
}

// Update atomically replaces the served content.
func (f *Feed) Update(data []byte) {
	hash := sha256.Sum256(data)
	etag := fmt.Sprintf(config.FormatETag, hex.EncodeToString(hash[:]))
	now := f.clock.Now()

	// Any concurrent reader sees either the old or the new complete item.
	f.cache.Store(&feedItem{
		data:         data,
		etag:         etag,
		lastModified: now.UTC().Format(http.TimeFormat),
		builtAt:      now,
	})

	slog.Debug(config.MsgFeedUpdated,
		config.LogKeyComponent, config.CompServer,
		config.LogKeySizeBytes, len(data),
		config.LogKeyETag, etag,
	)
}

func (f *Feed) needsRebuild(item *feedItem) bool {
	return item == nil || f.stale.Load() || f.clock.Now().Sub(item.builtAt) >= f.ttl
}

// ServeHTTP serves the ICS content with HTTP caching support.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	item := f.cache.Load()
	if f.needsRebuild(item) {
		if err := f.refreshIfNeeded(r.Context()); err != nil {
			slog.Error(config.MsgFeedFailed,
				config.LogKeyComponent, config.CompServer,
				config.LogKeyError, err,
			)
		}
		item = f.cache.Load()
	}

	// A failed first build leaves nothing to serve.
	if item == nil {
		w.Header().Set(config.HeaderRetryAfter, config.RetryAfterSeconds)
		http.Error(w, config.HTTPMsgFeedNotReady, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set(config.HeaderContentType, config.MimeTextCalendar)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.Header().Set(config.HeaderCacheControl, config.CacheControlPrivate)
	w.Header().Set(config.HeaderETag, item.etag)
	w.Header().Set(config.HeaderLastModified, item.lastModified)

	if match := r.Header.Get(config.HeaderIfNoneMatch); match == item.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if since := r.Header.Get(config.HeaderIfModifiedSince); since != "" {
		if clientTime, err := time.Parse(http.TimeFormat, since); err == nil {
			if serverTime, err := time.Parse(http.TimeFormat, item.lastModified); err == nil {
				if !serverTime.After(clientTime) {
					w.WriteHeader(http.StatusNotModified)
					return
				}
			}
		}
	}

	if r.Method == http.MethodGet {
		if _, err := io.Copy(w, bytes.NewReader(item.data)); err != nil {
			slog.Error(config.ErrWriteResp,
				config.LogKeyComponent, config.CompServer,
				config.LogKeyError, err,
			)
		}
	}
}
