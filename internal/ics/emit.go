// Package ics serializes normalized calendar events into the iCalendar
// text format.
package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"rostercal/internal/model"
)

const productID = "-//rostercal//Roster Converter//EN"

// Options controls calendar serialization.
type Options struct {
	// Generated stamps each VEVENT's DTSTAMP. Output is byte-identical
	// for identical input and Generated; the zero value means time.Now.
	Generated time.Time
}

// Encode serializes the given events, in order, into an iCalendar byte
// stream: one VEVENT per event, DTSTART/DTEND in UTC with the "Z" suffix,
// all-day events as date values. It enforces the UID-uniqueness and
// start/end ordering invariants and produces no partial output on error.
func Encode(events []model.CalendarEvent, opts Options) ([]byte, error) {
	cal, err := buildCalendar(events, opts)
	if err != nil {
		return nil, err
	}
	return []byte(cal.Serialize()), nil
}

func buildCalendar(events []model.CalendarEvent, opts Options) (*ical.Calendar, error) {
	generated := opts.Generated
	if generated.IsZero() {
		generated = time.Now()
	}
	generated = generated.UTC()

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	seen := make(map[string]bool, len(events))
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			return nil, fmt.Errorf("ics: %w", err)
		}
		if seen[ev.UID] {
			return nil, fmt.Errorf("ics: duplicate UID %s", ev.UID)
		}
		seen[ev.UID] = true

		ve := cal.AddEvent(ev.UID)
		ve.SetDtStampTime(generated)
		if ev.AllDay {
			ve.SetAllDayStartAt(ev.Start)
			ve.SetAllDayEndAt(ev.End)
		} else {
			ve.SetStartAt(ev.Start.UTC())
			ve.SetEndAt(ev.End.UTC())
		}
		ve.SetSummary(ev.Summary)
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.URL != "" {
			ve.SetURL(ev.URL)
		}
		if ev.RepeatDays > 1 {
			rule, err := dailyRule(ev.RepeatDays)
			if err != nil {
				return nil, err
			}
			ve.AddRrule(rule)
		}
	}

	return cal, nil
}

// Filename names the output file after the roster period, matching the
// <start>_<end>_flights.ics convention.
func Filename(period model.Period, eventCount int) string {
	if eventCount == 0 || period.Start.IsZero() {
		return "flights.ics"
	}
	return period.Start.Format("20060102") + "_" + period.End.Format("20060102") + "_flights.ics"
}
