package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/tartampluch/go-congrats/internal/config"
)

// errorResponse is the error envelope of every API failure.
type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set(config.HeaderContentType, config.MimeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error(config.ErrWriteResp,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// internalError logs err and answers with a generic message.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), config.HTTPMsgInternalErr,
		config.LogKeyComponent, config.CompServer,
		config.LogKeyURL, r.URL.Path,
		config.LogKeyError, err,
	)
	writeError(w, http.StatusInternalServerError, config.HTTPMsgInternalErr)
}

// decodeJSON reads a bounded JSON body into dst, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: config.HTTPMsgBadJSON, Details: err.Error()})
		return false
	}
	return true
}

// pathID parses the {id} URL parameter, answering 400 when it is not a positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, config.ParamID), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, config.HTTPMsgBadID)
		return 0, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter within [lo, hi].
func queryInt(w http.ResponseWriter, r *http.Request, key string, def, lo, hi int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		writeError(w, http.StatusBadRequest, fmt.Sprintf(config.HTTPMsgBadQuery, key))
		return 0, false
	}
	return n, true
}

// preview cuts text to n runes, marking the cut with an ellipsis.
func preview(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n]) + config.SubjectEllipsis
}

// redactURL hides credentials and shortens long connection strings.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	if u, err := url.Parse(raw); err == nil {
		raw = u.Redacted()
	}
	return preview(raw, config.ConfigURLPreview)
}
