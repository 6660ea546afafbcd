package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tartampluch/go-congrats/internal/client"
	"github.com/tartampluch/go-congrats/internal/config"
	"github.com/tartampluch/go-congrats/internal/generator"
	"github.com/tartampluch/go-congrats/internal/history"
	"github.com/tartampluch/go-congrats/internal/sender"
)

var channels = []string{config.ChannelEmail, config.ChannelTelegram, config.ChannelSMS}

type generateRequest struct {
	ClientID  int64  `json:"client_id"`
	EventType string `json:"event_type"`
	Tone      string `json:"tone"`
	UseCache  *bool  `json:"use_cache"`
}

// generatedView is a result with its preview.
type generatedView struct {
	generator.Result
	Preview string `json:"preview"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var in generateRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	useCache := in.UseCache == nil || *in.UseCache

	res, err := s.deps.Generator.GenerateForClient(r.Context(), in.ClientID, generator.Options{
		EventType: in.EventType,
		Tone:      in.Tone,
		SkipCache: !useCache,
	})
	if errors.Is(err, client.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"congratulation": generatedView{Result: res, Preview: preview(res.Text, config.PreviewLength)},
	})
}

type batchRequest struct {
	ClientIDs []int64 `json:"client_ids"`
	EventType string  `json:"event_type"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var in batchRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	switch {
	case len(in.ClientIDs) == 0:
		writeError(w, http.StatusBadRequest, config.HTTPMsgNoClientIDs)
		return
	case len(in.ClientIDs) > config.MaxBatchSize:
		writeError(w, http.StatusBadRequest, fmt.Sprintf(config.HTTPMsgBatchTooLarge, config.MaxBatchSize))
		return
	}

	// Unknown ids reject the whole request before any generation.
	var missing []string
	for _, id := range in.ClientIDs {
		_, err := s.deps.Clients.Get(r.Context(), id)
		if errors.Is(err, client.ErrNotFound) {
			missing = append(missing, strconv.FormatInt(id, 10))
			continue
		}
		if err != nil {
			internalError(w, r, err)
			return
		}
	}
	if len(missing) > 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf(config.HTTPMsgMissingIDs, strings.Join(missing, ", ")))
		return
	}

	batch := s.deps.Generator.BatchGenerate(r.Context(), in.ClientIDs, in.EventType)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"total":      len(batch.Results),
		"successful": batch.Successful,
		"failed":     batch.Failed,
		"results":    batch.Results,
	})
}

type todayRequest struct {
	MaxClients int  `json:"max_clients"`
	Send       bool `json:"send"`
}

type todaySuccess struct {
	ClientID   int64  `json:"client_id"`
	ClientName string `json:"client_name"`
	Preview    string `json:"preview"`
}

type todayFailure struct {
	ClientID int64  `json:"client_id"`
	Error    string `json:"error"`
}

// handleGenerateToday generates fresh congratulations for today's birthdays,
// highest priority first. An empty body uses the default client limit.
// With send set, every generated text is also emailed and recorded.
func (s *Server) handleGenerateToday(w http.ResponseWriter, r *http.Request) {
	in := todayRequest{MaxClients: config.DefaultTodayClients}
	if r.ContentLength != 0 && !decodeJSON(w, r, &in) {
		return
	}
	if in.MaxClients < 1 || in.MaxClients > config.MaxTodayClients {
		writeError(w, http.StatusBadRequest, fmt.Sprintf(config.HTTPMsgBadQuery, "max_clients"))
		return
	}

	all, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	events := s.deps.Detector.DetectToday(all)
	if len(events) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"message":   config.HTTPMsgNoBirthdays,
			"total":     0,
			"generated": 0,
		})
		return
	}

	limited := events[:min(len(events), in.MaxClients)]
	ids := make([]int64, 0, len(limited))
	for _, e := range limited {
		ids = append(ids, e.ClientID)
	}
	batch := s.deps.Generator.BatchGenerate(r.Context(), ids, config.EventBirthday)

	successful := []todaySuccess{}
	failed := []todayFailure{}
	for _, item := range batch.Results {
		if !item.Success {
			failed = append(failed, todayFailure{ClientID: item.ClientID, Error: item.Error})
			continue
		}
		successful = append(successful, todaySuccess{
			ClientID:   item.ClientID,
			ClientName: item.Result.ClientName,
			Preview:    preview(item.Result.Text, config.TodayPreviewLength),
		})
	}

	resp := map[string]any{
		"success":       true,
		"total_clients": len(events),
		"processed":     len(limited),
		"generated":     len(successful),
		"failed":        len(failed),
		"successful":    successful,
		"failed_list":   failed,
		"generated_at":  s.deps.Clock.Now(),
	}
	if in.Send {
		sent, err := s.sendGenerated(r.Context(), batch.Results)
		if err != nil {
			internalError(w, r, fmt.Errorf("%s: %w", config.MsgHistoryFailed, err))
			return
		}
		resp["sent"] = sent
	}
	writeJSON(w, http.StatusOK, resp)
}

// sendGenerated emails the successful items of a batch and records one
// history entry per delivery. It returns how many were not failures.
func (s *Server) sendGenerated(ctx context.Context, items []generator.BatchItem) (int, error) {
	var (
		reqs []sender.Request
		ids  []int64
	)
	for _, item := range items {
		if !item.Success {
			continue
		}
		res := item.Result
		reqs = append(reqs, sender.Request{
			To:         res.Context.Email,
			ClientName: res.ClientName,
			FirstName:  res.Context.FirstName,
			Text:       res.Text,
			EventType:  res.EventType,
		})
		ids = append(ids, item.ClientID)
	}

	sent := 0
	for i, d := range s.deps.Sender.SendBulk(ctx, reqs) {
		if d.Status != config.StatusFailed {
			sent++
		}
		if d.Timestamp.IsZero() {
			d.Timestamp = s.deps.Clock.Now()
		}
		rec := &history.Congratulation{
			ClientID:  ids[i],
			EventType: reqs[i].EventType,
			Text:      reqs[i].Text,
			Channel:   config.ChannelEmail,
			Status:    d.Status,
			MessageID: d.MessageID,
			SentAt:    d.Timestamp,
		}
		if err := s.deps.History.Create(ctx, rec); err != nil {
			return sent, err
		}
	}
	return sent, nil
}

type sendRequest struct {
	ClientID      int64  `json:"client_id"`
	Text          string `json:"text"`
	Channel       string `json:"channel"`
	EventType     string `json:"event_type"`
	SaveToHistory *bool  `json:"save_to_history"`
}

// handleSend delivers a text to a client. Email goes through the sender;
// other channels have no transport yet and are recorded as simulated.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var in sendRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.Channel == "" {
		in.Channel = config.ChannelEmail
	}
	if in.EventType == "" {
		in.EventType = config.EventBirthday
	}
	if !slices.Contains(channels, in.Channel) {
		writeError(w, http.StatusBadRequest, config.HTTPMsgBadChannel)
		return
	}
	if utf8.RuneCountInString(in.EventType) > config.MaxEventTypeLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf(config.HTTPMsgEventTooLong, config.MaxEventTypeLength))
		return
	}

	c, err := s.deps.Clients.Get(r.Context(), in.ClientID)
	if errors.Is(err, client.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf(config.HTTPMsgClientMissing, in.ClientID))
		return
	}
	if err != nil {
		internalError(w, r, err)
		return
	}

	text := strings.TrimSpace(in.Text)
	if utf8.RuneCountInString(text) < config.MinMessageLength {
		writeError(w, http.StatusBadRequest, config.HTTPMsgTextTooShort)
		return
	}

	delivery := s.deliver(r.Context(), c, in.Channel, in.EventType, text)

	resp := map[string]any{
		"success":      delivery.Status != config.StatusFailed,
		"message":      fmt.Sprintf(config.HTTPMsgSent, c.FullName(), delivery.Status),
		"client_email": c.Email,
		"channel":      in.Channel,
		"status":       delivery.Status,
		"sent_at":      delivery.Timestamp,
		"delivery":     delivery,
	}

	if in.SaveToHistory == nil || *in.SaveToHistory {
		rec := &history.Congratulation{
			ClientID:  c.ID,
			EventType: in.EventType,
			Text:      text,
			Channel:   in.Channel,
			Status:    delivery.Status,
			MessageID: delivery.MessageID,
			SentAt:    delivery.Timestamp,
		}
		if err := s.deps.History.Create(r.Context(), rec); err != nil {
			internalError(w, r, fmt.Errorf("%s: %w", config.MsgHistoryFailed, err))
			return
		}
		resp["congratulation_id"] = rec.ID
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) deliver(ctx context.Context, c *client.Client, channel, eventType, text string) sender.Delivery {
	if channel != config.ChannelEmail {
		return sender.Delivery{
			Status:    config.StatusSimulated,
			To:        c.FullName(),
			Method:    config.DeliverySimulation,
			Timestamp: s.deps.Clock.Now(),
		}
	}
	d, err := s.deps.Sender.Send(ctx, sender.Request{
		To:         c.Email,
		ClientName: c.FullName(),
		FirstName:  c.FirstName,
		Text:       text,
		EventType:  eventType,
	})
	if err != nil {
		d.Status = config.StatusFailed
		d.Error = err.Error()
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = s.deps.Clock.Now()
	}
	return d
}

// historyView is one congratulation in the history list.
type historyView struct {
	ID          int64      `json:"id"`
	ClientID    int64      `json:"client_id"`
	ClientName  string     `json:"client_name"`
	EventType   string     `json:"event_type"`
	TextPreview string     `json:"text_preview"`
	Channel     string     `json:"sent_via"`
	Status      string     `json:"status"`
	SentAt      time.Time  `json:"sent_at"`
	Opened      bool       `json:"opened"`
	OpenedAt    *time.Time `json:"opened_at"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	skip, ok := queryInt(w, r, config.QuerySkip, 0, 0, math.MaxInt)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, config.QueryLimit, config.DefaultHistoryLimit, 1, config.MaxHistoryLimit)
	if !ok {
		return
	}
	clientID, ok := queryInt(w, r, config.QueryClientID, 0, 0, math.MaxInt)
	if !ok {
		return
	}

	q := r.URL.Query()
	list, total, err := s.deps.History.List(r.Context(), history.Filter{
		ClientID: int64(clientID),
		Status:   q.Get(config.QueryStatus),
		Channel:  q.Get(config.QueryChannel),
		Offset:   skip,
		Limit:    limit,
	})
	if err != nil {
		internalError(w, r, err)
		return
	}

	names := map[int64]string{}
	views := make([]historyView, 0, len(list))
	for _, h := range list {
		name, seen := names[h.ClientID]
		if !seen {
			name = s.clientName(r.Context(), h.ClientID)
			names[h.ClientID] = name
		}
		views = append(views, historyView{
			ID:          h.ID,
			ClientID:    h.ClientID,
			ClientName:  name,
			EventType:   h.EventType,
			TextPreview: h.Preview(config.PreviewLength),
			Channel:     h.Channel,
			Status:      h.Status,
			SentAt:      h.SentAt,
			Opened:      h.Opened,
			OpenedAt:    h.OpenedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":           total,
		"skip":            skip,
		"limit":           limit,
		"congratulations": views,
	})
}

func (s *Server) clientName(ctx context.Context, id int64) string {
	c, err := s.deps.Clients.Get(ctx, id)
	if err != nil {
		return config.HTTPMsgUnknownClient
	}
	return c.FullName()
}

type historyClient struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
}

func (s *Server) handleGetCongratulation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	h, err := s.deps.History.Get(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf(config.HTTPMsgCongratGone, id))
		return
	}
	if err != nil {
		internalError(w, r, err)
		return
	}

	var owner *historyClient
	if c, err := s.deps.Clients.Get(r.Context(), h.ClientID); err == nil {
		owner = &historyClient{ID: c.ID, Name: c.FullName(), Email: c.Email, Company: c.CompanyName}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":         h.ID,
		"client":     owner,
		"event_type": h.EventType,
		"text":       h.Text,
		"sent_via":   h.Channel,
		"status":     h.Status,
		"message_id": h.MessageID,
		"sent_at":    h.SentAt,
		"opened":     h.Opened,
		"opened_at":  h.OpenedAt,
	})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Generator.ClearCache(r.Context()); err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": config.HTTPMsgCacheCleared,
	})
}
