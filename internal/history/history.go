// Package history records congratulations that were sent or simulated.
package history

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/tartampluch/go-congrats/internal/config"
)

// ErrNotFound is returned when no congratulation has the requested id.
var ErrNotFound = errors.New(config.ErrHistoryNotFound)

// Congratulation is one delivery attempt.
type Congratulation struct {
	ID        int64      `json:"id"`
	ClientID  int64      `json:"client_id"`
	EventType string     `json:"event_type"`
	Text      string     `json:"text"`
	Channel   string     `json:"sent_via"`
	Status    string     `json:"status"`
	MessageID string     `json:"message_id,omitempty"`
	SentAt    time.Time  `json:"sent_at"`
	Opened    bool       `json:"opened"`
	OpenedAt  *time.Time `json:"opened_at"`
}

// Preview returns the first n runes of the text, with "..." when cut.
func (c Congratulation) Preview(n int) string {
	if utf8.RuneCountInString(c.Text) <= n {
		return c.Text
	}
	return string([]rune(c.Text)[:n]) + config.SubjectEllipsis
}

// Normalize applies defaults and truncates the text to the stored maximum.
func (c *Congratulation) Normalize(now time.Time) {
	if c.EventType == "" {
		c.EventType = config.EventBirthday
	}
	if c.Channel == "" {
		c.Channel = config.ChannelEmail
	}
	if c.Status == "" {
		c.Status = config.StatusPending
	}
	if c.SentAt.IsZero() {
		c.SentAt = now
	}
	if utf8.RuneCountInString(c.Text) > config.MaxStoredTextLength {
		c.Text = string([]rune(c.Text)[:config.MaxStoredTextLength])
	}
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	ClientID int64
	Status   string
	Channel  string
	Offset   int
	Limit    int
}

// Store persists congratulations. List returns newest first with the total match count.
type Store interface {
	Create(ctx context.Context, c *Congratulation) error
	Get(ctx context.Context, id int64) (*Congratulation, error)
	List(ctx context.Context, f Filter) ([]Congratulation, int, error)
}
