package engine

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/emersion/go-ical"
	"github.com/tartampluch/go-congrats/internal/config"
)

// icalPriority maps event priority onto the RFC 5545 PRIORITY scale.
var icalPriority = map[Priority]int{
	PriorityHigh:   1,
	PriorityMedium: 5,
	PriorityLow:    9,
}

// Calendar encodes detected events as an iCalendar feed.
// Each event becomes one all-day VEVENT; reminderTrigger, when set,
// adds a DISPLAY alarm (e.g. "-P1D").
func Calendar(events []EventDescriptor, now time.Time, reminderTrigger string) ([]byte, error) {
	if len(events) == 0 {
		// Clients flag an empty VCALENDAR as invalid; serve the stub instead.
		var buf bytes.Buffer
		buf.WriteString(config.StubVCalendar)
		return buf.Bytes(), nil
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(config.PropVersion, config.ICalVersion)
	cal.Props.SetText(config.PropProdid, config.ICalProdid)
	cal.Props.SetText(config.PropXWRCalName, config.ICalCalName)
	cal.Props.SetText(config.PropCalScale, config.ICalScale)
	cal.Props.SetText(config.PropMethod, config.ICalMethod)

	// RFC 7986: suggest a refresh interval.
	refreshProp := ical.NewProp(config.PropRefresh)
	refreshProp.SetDuration(config.DefaultICalRefresh)
	cal.Props.Set(refreshProp)

	dtStampProp := ical.NewProp(config.PropDTStamp)
	dtStampProp.SetDateTime(now.UTC())

	for _, e := range events {
		event := ical.NewEvent()
		event.Props.SetText(config.PropUID,
			fmt.Sprintf(config.FormatUID, e.ClientID, e.UpcomingDate.Format(config.DateFormatFullBasic), config.ICalDomain))

		summary := eventSummary(e)
		event.Props.SetText(config.PropSummary, summary)
		event.Props.Set(dtStampProp)

		dtStartProp := ical.NewProp(config.PropDTStart)
		dtStartProp.SetDate(e.UpcomingDate.Time)
		event.Props.Set(dtStartProp)

		if n, ok := icalPriority[e.Priority]; ok {
			prio := ical.NewProp(config.PropPriority)
			prio.Value = strconv.Itoa(n)
			event.Props.Set(prio)
		}
		if e.ClientSegment != "" {
			event.Props.SetText(config.PropCategories, e.ClientSegment)
		}
		if reminderTrigger != "" {
			addAlarm(event, reminderTrigger, summary)
		}

		cal.Children = append(cal.Children, event.Component)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}

	slog.Debug(config.MsgFeedUpdated,
		config.LogKeyComponent, config.CompEngine,
		config.LogKeyCount, len(events),
		config.LogKeySizeBytes, buf.Len())
	return buf.Bytes(), nil
}

// eventSummary includes the age reached on the event date when it is known.
func eventSummary(e EventDescriptor) string {
	if age, ok := AgeOf(e.UpcomingDate.Time, e.Birthday); ok && age > 0 {
		return fmt.Sprintf(config.FormatEventSummaryAge, e.ClientName, age)
	}
	return fmt.Sprintf(config.FormatEventSummary, e.ClientName)
}

// addAlarm appends a DISPLAY alarm (notification) to the event.
func addAlarm(event *ical.Event, trigger, description string) {
	alarm := ical.NewComponent(config.ICalComponent)
	alarm.Props.SetText(config.PropAction, config.ICalAction)
	alarm.Props.SetText(config.PropDescription, description)

	// Set trigger manually to avoid "VALUE=TEXT" param
	triggerProp := ical.NewProp(config.PropTrigger)
	triggerProp.Value = trigger
	alarm.Props.Set(triggerProp)

	event.Children = append(event.Children, alarm)
}
