// Package client holds the client record and its repository contract.
// Detection and generation treat records as read-only snapshots.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tartampluch/go-congrats/internal/config"
)

var (
	// ErrNotFound is returned when no client has the requested id.
	ErrNotFound = errors.New(config.ErrClientNotFound)
	// ErrDuplicateEmail is returned when creating a client whose email is taken.
	ErrDuplicateEmail = errors.New(config.ErrDuplicateEmail)
)

// Client is one contact to be congratulated.
type Client struct {
	ID          int64     `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	Position    string    `json:"position,omitempty"`
	Segment     string    `json:"segment"`
	Birthday    Date      `json:"birthday"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FullName joins first and last name with a single space.
func (c Client) FullName() string {
	return c.FirstName + " " + c.LastName
}

// Repository is the storage collaborator for client records.
type Repository interface {
	ListAll(ctx context.Context) ([]Client, error)
	List(ctx context.Context, f Filter) ([]Client, int, error)
	Get(ctx context.Context, id int64) (*Client, error)
	Create(ctx context.Context, c *Client) error
	Update(ctx context.Context, c *Client) error
	Delete(ctx context.Context, id int64) error
}

// Filter narrows List results. Search matches names and email, case-insensitively.
type Filter struct {
	Search  string
	Segment string
	Offset  int
	Limit   int
}

// Date is a calendar date serialised as YYYY-MM-DD, or --MM-DD when the
// birth year is unknown. Year-less dates are held in config.DefaultLeapYear
// so Feb 29 stays valid; callers must check YearKnown before using the year.
type Date struct {
	time.Time
	NoYear bool
}

// NewDate builds a Date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// NewYearlessDate builds a month and day without a known year.
func NewYearlessDate(month time.Month, day int) Date {
	return Date{Time: time.Date(config.DefaultLeapYear, month, day, 0, 0, 0, 0, time.UTC), NoYear: true}
}

// ParseDate parses a YYYY-MM-DD or --MM-DD string.
func ParseDate(s string) (Date, error) {
	if t, err := time.Parse(config.DateFormatFullDash, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(config.DateFormatNoYearD, s)
	if err != nil {
		return Date{}, fmt.Errorf("%s: %w", config.ErrDateParse, err)
	}
	return NewYearlessDate(t.Month(), t.Day()), nil
}

// YearKnown reports whether the year is a real birth year.
func (d Date) YearKnown() bool {
	return !d.IsZero() && !d.NoYear
}

// String returns the YYYY-MM-DD form, or --MM-DD without a year.
func (d Date) String() string {
	if d.NoYear {
		return d.Format(config.DateFormatNoYearD)
	}
	return d.Format(config.DateFormatFullDash)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ValidationError reports malformed record fields.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate checks the fields the repository requires. now bounds the birthday.
// Lengths are counted in characters and match the relational schema.
func (c *Client) Validate(now time.Time) error {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.TrimSpace(c.Email)

	switch {
	case c.FirstName == "":
		return &ValidationError{Field: "first_name", Message: "is required"}
	case c.LastName == "":
		return &ValidationError{Field: "last_name", Message: "is required"}
	case c.Email == "":
		return &ValidationError{Field: "email", Message: "is required"}
	case c.Birthday.IsZero():
		return &ValidationError{Field: "birthday", Message: "is required"}
	}

	limits := []struct {
		field string
		value string
		max   int
	}{
		{"first_name", c.FirstName, config.MaxNameLength},
		{"last_name", c.LastName, config.MaxNameLength},
		{"email", c.Email, config.MaxEmailLength},
		{"phone", c.Phone, config.MaxPhoneLength},
		{"company_name", c.CompanyName, config.MaxCompanyLength},
		{"position", c.Position, config.MaxPositionLength},
		{"segment", c.Segment, config.MaxSegmentLength},
	}
	for _, l := range limits {
		if utf8.RuneCountInString(l.value) > l.max {
			return &ValidationError{Field: l.field, Message: fmt.Sprintf("exceeds %d characters", l.max)}
		}
	}

	if _, err := mail.ParseAddress(c.Email); err != nil {
		return &ValidationError{Field: "email", Message: "is not a valid address"}
	}
	if c.Birthday.After(now) {
		return &ValidationError{Field: "birthday", Message: "is in the future"}
	}
	return nil
}
