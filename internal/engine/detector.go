// Package engine detects date-based client events and publishes them as a calendar feed.
package engine

import (
	"log/slog"
	"sort"
	"time"

	"github.com/tartampluch/go-congrats/internal/client"
	"github.com/tartampluch/go-congrats/internal/config"
)

// Detector scans client snapshots for upcoming birthdays.
// It holds no state besides its configuration and is safe for concurrent use.
type Detector struct {
	Clock Clock

	// DaysAhead is the lookahead used when a caller passes a negative window.
	DaysAhead int
}

// NewDetector creates a Detector. A nil clock means the real clock.
func NewDetector(clock Clock, daysAhead int) *Detector {
	if clock == nil {
		clock = RealClock{}
	}
	if daysAhead < 0 {
		daysAhead = config.DefaultDaysAhead
	}
	return &Detector{Clock: clock, DaysAhead: daysAhead}
}

// DetectUpcoming returns the clients whose next birthday falls within
// [today, today+daysAhead], sorted by priority then proximity.
// A negative daysAhead selects the configured default.
func (d *Detector) DetectUpcoming(clients []client.Client, daysAhead int) []EventDescriptor {
	if daysAhead < 0 {
		daysAhead = d.DaysAhead
	}
	today := StartOfDay(d.Clock.Now())

	var events []EventDescriptor
	for _, c := range clients {
		if c.Birthday.IsZero() {
			continue
		}
		next := NextOccurrence(today, c.Birthday.Time)
		days := daysBetween(today, next)
		if days < 0 || days > daysAhead {
			continue
		}

		e := newDescriptor(c)
		e.UpcomingDate = client.NewDate(next.Year(), next.Month(), next.Day())
		e.DaysUntil = days
		e.IsToday = days == 0
		e.Priority = PriorityOf(c, days)
		events = append(events, e)
	}

	sort.SliceStable(events, func(i, j int) bool {
		ri, rj := events[i].Priority.Rank(), events[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return events[i].DaysUntil < events[j].DaysUntil
	})

	slog.Debug(config.MsgDetectDone,
		config.LogKeyComponent, config.CompEngine,
		config.LogKeyDaysAhead, daysAhead,
		slog.Group(config.LogKeyStats,
			slog.Int(config.LogKeyTotal, len(clients)),
			slog.Int(config.LogKeyFound, len(events)),
		),
	)
	return events
}

// DetectToday returns the clients whose birthday is today.
// Every entry is high priority.
func (d *Detector) DetectToday(clients []client.Client) []EventDescriptor {
	today := StartOfDay(d.Clock.Now())

	var events []EventDescriptor
	for _, c := range clients {
		if !OccursOn(c.Birthday.Time, today) {
			continue
		}
		e := newDescriptor(c)
		e.UpcomingDate = client.NewDate(today.Year(), today.Month(), today.Day())
		e.IsToday = true
		e.Priority = PriorityHigh
		events = append(events, e)

		slog.Info(config.MsgBdayToday,
			config.LogKeyComponent, config.CompEngine,
			config.LogKeyClientID, c.ID)
	}
	return events
}

// DetectOnDate returns the clients whose birthday falls on target's month and day.
// DaysUntil counts from today and is zero for dates already past.
func (d *Detector) DetectOnDate(clients []client.Client, target time.Time) []EventDescriptor {
	today := StartOfDay(d.Clock.Now())
	target = StartOfDay(target)
	days := max(daysBetween(today, target), 0)

	var events []EventDescriptor
	for _, c := range clients {
		if !OccursOn(c.Birthday.Time, target) {
			continue
		}
		e := newDescriptor(c)
		e.UpcomingDate = client.NewDate(target.Year(), target.Month(), target.Day())
		e.DaysUntil = days
		e.IsToday = sameDay(today, target)
		e.Priority = PriorityOf(c, 0)
		events = append(events, e)
	}
	return events
}

// Statistics summarizes the roster. Segment labels are counted raw;
// clients without one are grouped under config.SegmentUnspecified.
func (d *Detector) Statistics(clients []client.Client) Stats {
	today := StartOfDay(d.Clock.Now())
	segments := make(map[string]int)
	for _, c := range clients {
		seg := c.Segment
		if seg == "" {
			seg = config.SegmentUnspecified
		}
		segments[seg]++
	}
	return Stats{
		TotalClients:      len(clients),
		BirthdaysToday:    len(d.DetectToday(clients)),
		BirthdaysThisWeek: len(d.DetectUpcoming(clients, config.StatsWindowDays)),
		Segments:          segments,
		CheckedAt:         client.NewDate(today.Year(), today.Month(), today.Day()),
	}
}

// PriorityOf classifies an event days away for the given client.
func PriorityOf(c client.Client, daysUntil int) Priority {
	bucket := c.Bucket()
	switch {
	case daysUntil == 0:
		return PriorityHigh
	case bucket == client.BucketVIP && daysUntil <= 3:
		return PriorityHigh
	case bucket == client.BucketLoyal && daysUntil <= 2:
		return PriorityMedium
	case daysUntil <= 1:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// NextOccurrence returns the soonest occurrence of birthday's month and day
// on or after today. Feb 29 becomes Mar 1 in non-leap years.
func NextOccurrence(today, birthday time.Time) time.Time {
	today = StartOfDay(today)
	candidate := occurrenceIn(today.Year(), birthday, today.Location())
	if candidate.Before(today) {
		candidate = occurrenceIn(today.Year()+1, birthday, today.Location())
	}
	return candidate
}

// OccursOn reports whether the birthday is celebrated on day.
// It uses the same leap-day normalization as NextOccurrence.
func OccursOn(birthday, day time.Time) bool {
	if birthday.IsZero() {
		return false
	}
	occ := occurrenceIn(day.Year(), birthday, day.Location())
	return occ.Month() == day.Month() && occ.Day() == day.Day()
}

// Age returns the age reached on or before today, or false when
// the birthday is unknown or lies after today.
func Age(today, birthday time.Time) (int, bool) {
	if birthday.IsZero() {
		return 0, false
	}
	today = StartOfDay(today)
	age := today.Year() - birthday.Year()
	if occurrenceIn(today.Year(), birthday, today.Location()).After(today) {
		age--
	}
	if age < 0 {
		return 0, false
	}
	return age, true
}

// AgeOf is Age for a client birthday. It reports false when the birth
// year is unknown.
func AgeOf(today time.Time, birthday client.Date) (int, bool) {
	if !birthday.YearKnown() {
		return 0, false
	}
	return Age(today, birthday.Time)
}

// occurrenceIn relies on time.Date normalization for Feb 29.
func occurrenceIn(year int, birthday time.Time, loc *time.Location) time.Time {
	return time.Date(year, birthday.Month(), birthday.Day(), 0, 0, 0, 0, loc)
}

// daysBetween counts calendar days, ignoring DST shifts of the local zone.
func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
