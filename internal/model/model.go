package model

import (
	"errors"
	"fmt"
	"time"
)

// DutyKind classifies one roster entry.
type DutyKind string

const (
	DutyFlight  DutyKind = "flight"
	DutyStandby DutyKind = "standby"
	DutyOff     DutyKind = "off"
)

// LocalClock is a wall-clock time of day as printed on a roster (no date,
// no zone attached).
type LocalClock struct {
	Hour   int
	Minute int
}

func (c LocalClock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Valid reports whether the clock is a real time of day.
func (c LocalClock) Valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

// DutyRecord is one scheduled activity parsed from a roster: a flight leg,
// a standby block, or a day off. Times are local wall-clock values in the
// roster's source timezone; Date carries the calendar day the duty starts.
type DutyRecord struct {
	Kind DutyKind

	// FlightNumber is set for flight duties, e.g. "LO135".
	FlightNumber string

	// Departure / Arrival are IATA airport codes. For standby duties,
	// Departure holds the base airport and Arrival is empty.
	Departure string
	Arrival   string

	// Date is the local calendar day the duty starts.
	Date time.Time

	// Start / End are local wall-clock times. Unused for off days.
	Start LocalClock
	End   LocalClock

	// Timezone is the IANA identifier the clock times are local to.
	Timezone string
}

// Validate checks the per-kind field requirements and the ordering
// invariant on the clock times.
func (r DutyRecord) Validate() error {
	switch r.Kind {
	case DutyOff:
		return nil
	case DutyStandby:
		if r.Departure == "" {
			return errors.New("standby duty missing base airport")
		}
	case DutyFlight:
		if r.FlightNumber == "" {
			return errors.New("flight duty missing flight number")
		}
		if r.Departure == "" || r.Arrival == "" {
			return errors.New("flight duty missing airport code")
		}
	default:
		return fmt.Errorf("unknown duty kind %q", r.Kind)
	}
	if !r.Start.Valid() {
		return fmt.Errorf("invalid start time %s", r.Start)
	}
	if !r.End.Valid() {
		return fmt.Errorf("invalid end time %s", r.End)
	}
	return nil
}

// EndsNextDay reports whether the duty's end clock time falls on the day
// after Date. An end at or before the start is an overnight leg.
func (r DutyRecord) EndsNextDay() bool {
	if r.Kind == DutyOff {
		return false
	}
	if r.End.Hour != r.Start.Hour {
		return r.End.Hour < r.Start.Hour
	}
	return r.End.Minute <= r.Start.Minute
}

// Route is a display form of the leg, e.g. "WAW-LHR".
func (r DutyRecord) Route() string {
	if r.Arrival == "" {
		return r.Departure
	}
	return r.Departure + "-" + r.Arrival
}

// CalendarEvent is one emitted VEVENT, fully normalized: Start and End are
// UTC instants.
type CalendarEvent struct {
	UID     string
	Summary string

	Start time.Time
	End   time.Time

	Location    string
	Description string
	URL         string

	// AllDay marks date-valued events (off days).
	AllDay bool

	// RepeatDays > 1 means the event carries a daily RRULE spanning that
	// many consecutive days (collapsed standby/off block).
	RepeatDays int
}

// Validate checks the start/end ordering invariant.
func (e CalendarEvent) Validate() error {
	if e.UID == "" {
		return errors.New("event missing UID")
	}
	if e.End.Before(e.Start) {
		return fmt.Errorf("event %s ends before it starts", e.UID)
	}
	return nil
}

// Period is the roster's validity window together with the production
// (minimum cutoff) date from the document header.
type Period struct {
	Start    time.Time
	End      time.Time
	Produced time.Time
}
