// Package server exposes the congratulation API and the birthday calendar feed over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tartampluch/go-congrats/internal/client"
	"github.com/tartampluch/go-congrats/internal/config"
	"github.com/tartampluch/go-congrats/internal/engine"
	"github.com/tartampluch/go-congrats/internal/generator"
	"github.com/tartampluch/go-congrats/internal/history"
	"github.com/tartampluch/go-congrats/internal/roster"
	"github.com/tartampluch/go-congrats/internal/sender"
)

// Deps are the collaborators the handlers use. All but Ping are required.
type Deps struct {
	Settings  *config.Settings
	Clients   client.Repository
	History   history.Store
	Detector  *engine.Detector
	Generator *generator.Generator
	Sender    *sender.EmailSender
	Importer  *roster.Importer
	Clock     engine.Clock

	// Ping checks the database. Nil means in-memory storage.
	Ping func(ctx context.Context) error
}

// Server routes API requests to the domain packages.
type Server struct {
	deps   Deps
	feed   *Feed
	router chi.Router
}

// New wires the router.
func New(d Deps) *Server {
	if d.Clock == nil {
		d.Clock = engine.RealClock{}
	}
	s := &Server{
		deps: d,
		feed: NewFeed(d.Clients, d.Detector, d.Clock, config.DefaultFeedTTL),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Feed returns the calendar feed.
func (s *Server) Feed() *Feed {
	return s.feed
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	origins := s.deps.Settings.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         config.CORSMaxAge,
	}))

	r.Get(config.RouteHealth, s.handleHealth)
	r.Get(config.RouteConfig, s.handleConfig)
	r.Get(config.RouteCalendar, s.feed.ServeHTTP)
	r.Head(config.RouteCalendar, s.feed.ServeHTTP)

	r.Route(config.RouteAPI, func(r chi.Router) {
		r.Route(config.RouteClients, func(r chi.Router) {
			r.Get("/", s.handleListClients)
			r.Post("/", s.handleCreateClient)
			r.Post(config.RouteImport, s.handleImport)
			r.Get(config.RouteID, s.handleGetClient)
			r.Put(config.RouteID, s.handleUpdateClient)
			r.Delete(config.RouteID, s.handleDeleteClient)
		})
		r.Route(config.RouteEvents, func(r chi.Router) {
			r.Get(config.RouteUpcoming, s.handleUpcoming)
			r.Get(config.RouteToday, s.handleToday)
			r.Get(config.RouteDate, s.handleOnDate)
			r.Get(config.RouteStats, s.handleStats)
		})
		r.Route(config.RouteCongrats, func(r chi.Router) {
			r.Get("/", s.handleHistory)
			r.Post(config.RouteGenerate, s.handleGenerate)
			r.Post(config.RouteBatch, s.handleBatch)
			r.Post(config.RouteGenToday, s.handleGenerateToday)
			r.Post(config.RouteSend, s.handleSend)
			r.Delete(config.RouteCache, s.handleClearCache)
			r.Get(config.RouteID, s.handleGetCongratulation)
		})
	})
	return r
}

// Start builds the calendar feed, then serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if err := s.feed.Refresh(ctx); err != nil {
		slog.Warn(config.MsgFeedFailed,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
	}

	srv := &http.Server{
		Addr:         s.deps.Settings.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverError := make(chan error, config.ChannelBufferSize)

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyAddr, srv.Addr,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info(config.MsgServerStop, config.LogKeyComponent, config.CompServer)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
		}
		return nil

	case err := <-serverError:
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	}
}

// rosterChanged drops derived state after a client record changed.
func (s *Server) rosterChanged(ctx context.Context, clientID int64) {
	s.feed.MarkStale()
	if clientID == 0 {
		return
	}
	if err := s.deps.Generator.Invalidate(ctx, clientID); err != nil {
		slog.Warn(config.MsgCacheFailed,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyClientID, clientID,
			config.LogKeyError, err,
		)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	db := config.HTTPMsgMemory
	if s.deps.Ping != nil {
		db = config.HTTPMsgHealthy
		if err := s.deps.Ping(r.Context()); err != nil {
			db = config.HTTPMsgUnhealthy + ": " + err.Error()
		}
	}
	mode := config.HTTPMsgModeProd
	if s.deps.Settings.Debug {
		mode = config.HTTPMsgModeDev
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   config.HTTPMsgOK,
		"database": db,
		"email":    s.deps.Sender.CheckConnection(r.Context()),
		"mode":     mode,
		"version":  config.Version,
	})
}

// handleConfig shows non-secret settings in debug mode only.
func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	st := s.deps.Settings
	if !st.Debug {
		writeError(w, http.StatusForbidden, config.HTTPMsgConfigOff)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"debug":               st.Debug,
		"database_url":        redactURL(st.DatabaseURL),
		"redis_url":           redactURL(st.RedisURL),
		"use_real_ai":         st.Generator.UseAI,
		"ai_configured":       st.Generator.AIConfigured(),
		"birthday_days_ahead": st.Generator.DaysAhead,
		"default_tone":        st.Generator.DefaultTone,
		"locale":              st.Generator.Locale,
		"email_configured":    s.deps.Sender.Configured(),
	})
}
