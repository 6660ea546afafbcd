// Package sender delivers congratulations by email. Real delivery goes
// through SES when configured; otherwise messages are written to disk as
// HTML files so they can be inspected during development.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/tartampluch/go-congrats/internal/config"
	"github.com/tartampluch/go-congrats/internal/engine"
	"github.com/tartampluch/go-congrats/internal/generator"
)

// ErrNotConfigured is returned when real delivery was requested without credentials.
var ErrNotConfigured = errors.New(config.ErrSenderNotConfig)

// Message is a fully rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string

	// Error carries the failure of a previous real attempt into a simulated delivery.
	Error string
}

// Delivery reports the outcome of one message.
type Delivery struct {
	Status    string    `json:"status"`
	To        string    `json:"to"`
	Method    string    `json:"method,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	File      string    `json:"log_file,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Transport moves a rendered message to its recipient.
type Transport interface {
	Deliver(ctx context.Context, msg Message) (Delivery, error)
}

// Checker is implemented by transports that can verify their backend.
type Checker interface {
	Check(ctx context.Context) error
}

// Request describes one congratulation to send.
type Request struct {
	To         string
	ClientName string
	FirstName  string
	Text       string
	EventType  string

	// Subject overrides the localized event subject when set.
	Subject string
}

// Config wires an EmailSender.
type Config struct {
	Catalog  *generator.Catalog
	Settings config.EmailSettings
	Debug    bool

	// Real is the production transport; nil means every message is simulated.
	Real  Transport
	Clock engine.Clock
}

// EmailSender renders and delivers congratulation emails.
type EmailSender struct {
	catalog  *generator.Catalog
	settings config.EmailSettings
	debug    bool
	real     Transport
	sim      *SimulatedTransport
	html     *HTMLRenderer
	clock    engine.Clock
}

// New creates an EmailSender.
func New(cfg Config) (*EmailSender, error) {
	clock := cfg.Clock
	if clock == nil {
		clock = engine.RealClock{}
	}
	html, err := NewHTMLRenderer(cfg.Catalog, cfg.Settings.Organization, clock)
	if err != nil {
		return nil, err
	}
	if cfg.Real == nil {
		slog.Warn(config.MsgSMTPNotConfig, config.LogKeyComponent, config.CompSender)
	}
	return &EmailSender{
		catalog:  cfg.Catalog,
		settings: cfg.Settings,
		debug:    cfg.Debug,
		real:     cfg.Real,
		sim:      &SimulatedTransport{Dir: cfg.Settings.SimulateDir, Clock: clock},
		html:     html,
		clock:    clock,
	}, nil
}

// Configured reports whether real delivery is wired.
func (s *EmailSender) Configured() bool {
	return s.real != nil
}

// Send renders and delivers one congratulation. Real delivery is used only
// outside debug mode; a failed real send is simulated with the error attached.
func (s *EmailSender) Send(ctx context.Context, req Request) (Delivery, error) {
	if req.To == "" {
		return Delivery{Status: config.StatusFailed, Error: config.ErrNoRecipient, Timestamp: s.clock.Now()}, errors.New(config.ErrNoRecipient)
	}
	if req.EventType == "" {
		req.EventType = config.EventBirthday
	}

	body, err := s.html.Render(req.EventType, req.Text)
	if err != nil {
		return Delivery{Status: config.StatusFailed, To: req.To, Error: err.Error(), Timestamp: s.clock.Now()}, err
	}
	msg := Message{
		To:      req.To,
		Subject: s.subject(req),
		HTML:    body,
		Text:    req.Text,
	}

	if s.real != nil && !s.debug {
		d, err := s.real.Deliver(ctx, msg)
		if err == nil {
			slog.Info(config.MsgEmailSent,
				config.LogKeyComponent, config.CompSender,
				config.LogKeyEmail, config.RedactEmail(req.To),
				config.LogKeyMessageID, d.MessageID,
			)
			return d, nil
		}
		slog.Error(config.MsgEmailFallback,
			config.LogKeyComponent, config.CompSender,
			config.LogKeyEmail, config.RedactEmail(req.To),
			config.LogKeyError, err,
		)
		msg.Error = err.Error()
	}

	d, err := s.sim.Deliver(ctx, msg)
	if err != nil {
		slog.Warn(config.MsgEmailFailed,
			config.LogKeyComponent, config.CompSender,
			config.LogKeyEmail, config.RedactEmail(req.To),
			config.LogKeyError, err,
		)
		return d, err
	}
	slog.Info(config.MsgEmailSimulated,
		config.LogKeyComponent, config.CompSender,
		config.LogKeyEmail, config.RedactEmail(req.To),
		config.LogKeyPath, d.File,
	)
	return d, nil
}

// SendBulk sends each request in order. A failing recipient yields a failed
// Delivery and does not stop the rest.
func (s *EmailSender) SendBulk(ctx context.Context, reqs []Request) []Delivery {
	out := make([]Delivery, 0, len(reqs))
	failed := 0
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			out = append(out, Delivery{Status: config.StatusFailed, To: req.To, Error: err.Error(), Timestamp: s.clock.Now()})
			failed++
			continue
		}
		d, err := s.Send(ctx, req)
		if err != nil {
			d.Status = config.StatusFailed
			d.To = req.To
			d.Error = err.Error()
			failed++
		}
		out = append(out, d)
	}
	slog.Info(config.MsgBulkDone,
		config.LogKeyComponent, config.CompSender,
		config.LogKeyTotal, len(reqs),
		config.LogKeyFailed, failed,
	)
	return out
}

// Connection states reported by CheckConnection.
const (
	ConnNotConfigured = "not_configured"
	ConnSuccess       = "success"
	ConnError         = "error"
)

// ConnectionStatus describes the real transport.
type ConnectionStatus struct {
	Status     string `json:"status"`
	Configured bool   `json:"configured"`
	Error      string `json:"error,omitempty"`
}

// CheckConnection reports whether real delivery is configured and reachable.
func (s *EmailSender) CheckConnection(ctx context.Context) ConnectionStatus {
	if s.real == nil {
		return ConnectionStatus{Status: ConnNotConfigured}
	}
	checker, ok := s.real.(Checker)
	if !ok {
		return ConnectionStatus{Status: ConnSuccess, Configured: true}
	}
	if err := checker.Check(ctx); err != nil {
		return ConnectionStatus{Status: ConnError, Configured: true, Error: err.Error()}
	}
	return ConnectionStatus{Status: ConnSuccess, Configured: true}
}

func (s *EmailSender) subject(req Request) string {
	subject := req.Subject
	if subject == "" {
		first := req.FirstName
		if first == "" {
			first = req.ClientName
		}
		subject = s.catalog.Subject(req.EventType, map[string]any{
			"first_name":   first,
			"full_name":    req.ClientName,
			"organization": s.settings.Organization,
		})
	}
	return capSubject(subject)
}

// capSubject keeps subjects within the RFC 2822 recommended line length.
func capSubject(s string) string {
	if utf8.RuneCountInString(s) <= config.MaxSubjectLength {
		return s
	}
	r := []rune(s)
	keep := config.MaxSubjectLength - utf8.RuneCountInString(config.SubjectEllipsis)
	return string(r[:keep]) + config.SubjectEllipsis
}
