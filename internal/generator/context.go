package generator

import (
	"time"

	"github.com/tartampluch/go-congrats/internal/client"
	"github.com/tartampluch/go-congrats/internal/config"
	"github.com/tartampluch/go-congrats/internal/engine"
)

// Template data keys.
const (
	ctxFullName     = "full_name"
	ctxFirstName    = "first_name"
	ctxLastName     = "last_name"
	ctxEmail        = "email"
	ctxCompany      = "company"
	ctxPosition     = "position"
	ctxSegment      = "segment"
	ctxPhone        = "phone"
	ctxEventType    = "event_type"
	ctxTone         = "tone"
	ctxAge          = "age"
	ctxIsJubilee    = "is_jubilee"
	ctxAgeAdjective = "age_adjective"
)

// Age band adjectives.
const (
	AdjectiveYoung     = "young"
	AdjectiveMature    = "mature"
	AdjectiveRespected = "respected"
)

// RenderContext is everything a template may reference for one client and event.
type RenderContext struct {
	ClientID     int64         `json:"client_id"`
	FullName     string        `json:"full_name"`
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	Email        string        `json:"email"`
	Company      string        `json:"company"`
	Position     string        `json:"position"`
	Segment      string        `json:"segment"`
	Phone        string        `json:"phone,omitempty"`
	EventType    string        `json:"event_type"`
	Tone         string        `json:"tone"`
	Age          *int          `json:"age"`
	IsJubilee    bool          `json:"is_jubilee"`
	AgeAdjective string        `json:"age_adjective,omitempty"`
	Bucket       client.Bucket `json:"bucket"`
}

// Data exposes the context to text templates.
func (rc RenderContext) Data() map[string]any {
	data := map[string]any{
		ctxFullName:  rc.FullName,
		ctxFirstName: rc.FirstName,
		ctxLastName:  rc.LastName,
		ctxEmail:     rc.Email,
		ctxCompany:   rc.Company,
		ctxPosition:  rc.Position,
		ctxSegment:   rc.Segment,
		ctxPhone:     rc.Phone,
		ctxEventType: rc.EventType,
		ctxTone:      rc.Tone,
		ctxIsJubilee: rc.IsJubilee,
		ctxAge:       nil,
	}
	if rc.Age != nil {
		data[ctxAge] = *rc.Age
	}
	if rc.AgeAdjective != "" {
		data[ctxAgeAdjective] = rc.AgeAdjective
	}
	return data
}

// Fallbacks fill optional client fields that are empty.
type Fallbacks struct {
	Company  string
	Position string
	Segment  string
}

// BuildContext derives the render context for c. tone overrides the
// segment-derived tone when non-empty.
func BuildContext(c client.Client, eventType, tone, defaultTone string, today time.Time, fb Fallbacks) RenderContext {
	bucket := c.Bucket()
	if tone == "" {
		tone = ToneFor(bucket, defaultTone)
	}

	rc := RenderContext{
		ClientID:  c.ID,
		FullName:  c.FullName(),
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Company:   orDefault(c.CompanyName, fb.Company),
		Position:  orDefault(c.Position, fb.Position),
		Segment:   orDefault(c.Segment, fb.Segment),
		Phone:     c.Phone,
		EventType: eventType,
		Tone:      tone,
		Bucket:    bucket,
	}

	if eventType == config.EventBirthday {
		if age, ok := engine.AgeOf(today, c.Birthday); ok {
			rc.Age = &age
			rc.IsJubilee = IsJubilee(age)
			rc.AgeAdjective = AgeAdjective(age)
		}
	}
	return rc
}

// ToneFor maps a segment bucket to its tone. The default bucket uses defaultTone.
func ToneFor(bucket client.Bucket, defaultTone string) string {
	switch bucket {
	case client.BucketVIP:
		return config.ToneFormal
	case client.BucketLoyal:
		return config.ToneFriendly
	case client.BucketNew:
		return config.ToneWelcoming
	default:
		if defaultTone == "" {
			return config.DefaultTone
		}
		return defaultTone
	}
}

// IsJubilee reports round anniversaries: 30, 40, 50...
func IsJubilee(age int) bool {
	return age >= config.JubileeMinAge && age%config.JubileeStep == 0
}

// AgeAdjective returns the age band label used by templates.
func AgeAdjective(age int) string {
	switch {
	case age < config.AgeBandMature:
		return AdjectiveYoung
	case age < config.AgeBandRespected:
		return AdjectiveMature
	default:
		return AdjectiveRespected
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
