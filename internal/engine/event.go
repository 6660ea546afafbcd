package engine

import (
	"github.com/tartampluch/go-congrats/internal/client"
	"github.com/tartampluch/go-congrats/internal/config"
)

// Priority ranks how urgently an event needs attention.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities high < medium < low. Unknown values sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// EventDescriptor is one detected occurrence of a client's annual event.
// Display fields are copied from the client at detection time.
type EventDescriptor struct {
	Type          string      `json:"type"`
	ClientID      int64       `json:"client_id"`
	ClientName    string      `json:"client_name"`
	ClientEmail   string      `json:"client_email"`
	ClientSegment string      `json:"client_segment"`
	Birthday      client.Date `json:"birthday"`

	// UpcomingDate is the soonest occurrence on or after today.
	// For date queries it is the requested date.
	UpcomingDate client.Date `json:"upcoming_date"`
	DaysUntil    int         `json:"days_until"`
	IsToday      bool        `json:"is_today"`
	Priority     Priority    `json:"priority"`
	Metadata     Metadata    `json:"metadata"`
}

// Metadata carries descriptive client fields. None of them drive logic.
type Metadata struct {
	Company  string `json:"company,omitempty"`
	Position string `json:"position,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Stats summarizes the roster for dashboards.
type Stats struct {
	TotalClients      int            `json:"total_clients"`
	BirthdaysToday    int            `json:"birthdays_today"`
	BirthdaysThisWeek int            `json:"birthdays_this_week"`
	Segments          map[string]int `json:"segments"`
	CheckedAt         client.Date    `json:"checked_at"`
}

func newDescriptor(c client.Client) EventDescriptor {
	return EventDescriptor{
		Type:          config.EventBirthday,
		ClientID:      c.ID,
		ClientName:    c.FullName(),
		ClientEmail:   c.Email,
		ClientSegment: c.Segment,
		Birthday:      c.Birthday,
		Metadata: Metadata{
			Company:  c.CompanyName,
			Position: c.Position,
			Phone:    c.Phone,
		},
	}
}
