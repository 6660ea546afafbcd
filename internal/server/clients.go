package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/tartampluch/go-congrats/internal/client"
	"github.com/tartampluch/go-congrats/internal/config"
	"github.com/tartampluch/go-congrats/internal/history"
	"github.com/tartampluch/go-congrats/internal/roster"
)

// clientView adds derived fields to a client record.
type clientView struct {
	client.Client
	FullName string `json:"full_name"`
}

func viewOf(c client.Client) clientView {
	return clientView{Client: c, FullName: c.FullName()}
}

// clientInput is the create/update payload.
type clientInput struct {
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	Email       string      `json:"email"`
	Phone       string      `json:"phone"`
	CompanyName string      `json:"company_name"`
	Position    string      `json:"position"`
	Segment     string      `json:"segment"`
	Birthday    client.Date `json:"birthday"`
}

func (in clientInput) apply(c *client.Client) {
	c.FirstName = in.FirstName
	c.LastName = in.LastName
	c.Email = in.Email
	c.Phone = in.Phone
	c.CompanyName = in.CompanyName
	c.Position = in.Position
	c.Segment = in.Segment
	c.Birthday = in.Birthday
}

// historyEntry is the short form of a congratulation shown with its client.
type historyEntry struct {
	ID        int64     `json:"id"`
	EventType string    `json:"event_type"`
	Channel   string    `json:"sent_via"`
	Status    string    `json:"status"`
	SentAt    time.Time `json:"sent_at"`
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	skip, ok := queryInt(w, r, config.QuerySkip, 0, 0, math.MaxInt)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, config.QueryLimit, config.DefaultListLimit, 1, config.MaxListLimit)
	if !ok {
		return
	}

	q := r.URL.Query()
	list, total, err := s.deps.Clients.List(r.Context(), client.Filter{
		Search:  q.Get(config.QuerySearch),
		Segment: q.Get(config.QuerySegment),
		Offset:  skip,
		Limit:   limit,
	})
	if err != nil {
		internalError(w, r, err)
		return
	}

	views := make([]clientView, 0, len(list))
	for _, c := range list {
		views = append(views, viewOf(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":   total,
		"skip":    skip,
		"limit":   limit,
		"clients": views,
	})
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := s.deps.Clients.Get(r.Context(), id)
	if errors.Is(err, client.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf(config.HTTPMsgClientMissing, id))
		return
	}
	if err != nil {
		internalError(w, r, err)
		return
	}

	recent, total, err := s.deps.History.List(r.Context(), history.Filter{ClientID: id, Limit: config.RecentHistoryLimit})
	if err != nil {
		internalError(w, r, err)
		return
	}
	entries := make([]historyEntry, 0, len(recent))
	for _, h := range recent {
		entries = append(entries, historyEntry{ID: h.ID, EventType: h.EventType, Channel: h.Channel, Status: h.Status, SentAt: h.SentAt})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"client":                  viewOf(*c),
		"congratulations_history": entries,
		"total_congratulations":   total,
	})
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var in clientInput
	if !decodeJSON(w, r, &in) {
		return
	}
	var c client.Client
	in.apply(&c)
	if strings.TrimSpace(c.Segment) == "" {
		c.Segment = config.DefaultSegment
	}
	if !s.saveClient(w, r, &c, s.deps.Clients.Create) {
		return
	}

	s.rosterChanged(r.Context(), 0)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":   config.HTTPMsgCreated,
		"client_id": c.ID,
		"full_name": c.FullName(),
		"client":    viewOf(c),
	})
}

func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in clientInput
	if !decodeJSON(w, r, &in) {
		return
	}
	c := client.Client{ID: id}
	in.apply(&c)
	if !s.saveClient(w, r, &c, s.deps.Clients.Update) {
		return
	}

	s.rosterChanged(r.Context(), id)
	writeJSON(w, http.StatusOK, viewOf(c))
}

// saveClient validates c and stores it with save, answering every failure itself.
func (s *Server) saveClient(w http.ResponseWriter, r *http.Request, c *client.Client, save func(ctx context.Context, c *client.Client) error) bool {
	if err := c.Validate(s.deps.Clock.Now()); err != nil {
		var ve *client.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Error(), Details: ve})
			return false
		}
		internalError(w, r, err)
		return false
	}

	err := save(r.Context(), c)
	switch {
	case err == nil:
		return true
	case errors.Is(err, client.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf(config.HTTPMsgClientMissing, c.ID))
	case errors.Is(err, client.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, config.ErrDuplicateEmail)
	default:
		internalError(w, r, err)
	}
	return false
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := s.deps.Clients.Delete(r.Context(), id)
	if errors.Is(err, client.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf(config.HTTPMsgClientMissing, id))
		return
	}
	if err != nil {
		internalError(w, r, err)
		return
	}

	s.rosterChanged(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

// importRequest names a remote vCard source. Local paths are accepted on the command line only.
type importRequest struct {
	Source   string `json:"source"`
	User     string `json:"user"`
	Password string `json:"password"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var in importRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	src := roster.Source{Location: strings.TrimSpace(in.Source), User: in.User, Pass: in.Password}
	if src.Location == "" {
		writeError(w, http.StatusBadRequest, config.HTTPMsgNoSource)
		return
	}
	if !src.IsRemote() {
		writeError(w, http.StatusBadRequest, config.HTTPMsgRemoteOnly)
		return
	}
	if src.User == "" {
		src.User = s.deps.Settings.Roster.User
		src.Pass = s.deps.Settings.Roster.Password
	}

	res, err := s.deps.Importer.Import(r.Context(), src)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Details: res})
		return
	}
	s.rosterChanged(r.Context(), 0)
	writeJSON(w, http.StatusOK, res)
}
