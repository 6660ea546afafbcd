package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tartampluch/go-congrats/internal/client"
	"github.com/tartampluch/go-congrats/internal/config"
	"github.com/tartampluch/go-congrats/internal/engine"
)

// snapshot loads the full roster for in-memory detection.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) ([]client.Client, bool) {
	all, err := s.deps.Clients.ListAll(r.Context())
	if err != nil {
		internalError(w, r, err)
		return nil, false
	}
	return all, true
}

func (s *Server) today() client.Date {
	now := s.deps.Clock.Now()
	return client.NewDate(now.Year(), now.Month(), now.Day())
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	days, ok := queryInt(w, r, config.QueryDays, s.deps.Detector.DaysAhead, config.MinUpcomingDays, config.MaxUpcomingDays)
	if !ok {
		return
	}
	all, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	events := s.deps.Detector.DetectUpcoming(all, days)
	writeJSON(w, http.StatusOK, map[string]any{
		"period_days": days,
		"today":       s.today(),
		"total":       len(events),
		"events":      nonNil(events),
	})
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	all, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	events := s.deps.Detector.DetectToday(all)
	writeJSON(w, http.StatusOK, map[string]any{
		"date":   s.today(),
		"total":  len(events),
		"events": nonNil(events),
	})
}

func (s *Server) handleOnDate(w http.ResponseWriter, r *http.Request) {
	target, err := time.ParseInLocation(config.DateFormatFullDash, chi.URLParam(r, config.ParamDate), s.deps.Clock.Now().Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, config.HTTPMsgBadDate)
		return
	}
	all, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	events := s.deps.Detector.DetectOnDate(all, target)
	writeJSON(w, http.StatusOK, map[string]any{
		"date":   client.NewDate(target.Year(), target.Month(), target.Day()),
		"total":  len(events),
		"events": nonNil(events),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	all, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Detector.Statistics(all))
}

// nonNil keeps empty results encoded as [] rather than null.
func nonNil(events []engine.EventDescriptor) []engine.EventDescriptor {
	if events == nil {
		return []engine.EventDescriptor{}
	}
	return events
}
