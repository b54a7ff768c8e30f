// Package tzconv anchors local roster wall-clock times to UTC instants.
package tzconv

import (
	"time"

	"rostercal/internal/model"
)

// TimezoneError reports an IANA timezone identifier that the system's zone
// database does not know.
type TimezoneError struct {
	Name string
	Err  error
}

func (e *TimezoneError) Error() string {
	return "tzconv: unknown timezone " + e.Name + ": " + e.Err.Error()
}

func (e *TimezoneError) Unwrap() error { return e.Err }

// Location resolves an IANA zone name, wrapping failures in TimezoneError.
func Location(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &TimezoneError{Name: name, Err: err}
	}
	return loc, nil
}

// Normalize converts a duty record's local start and end clocks into UTC
// instants, applying whatever offset (including daylight saving) the zone
// mandates on the record's date. Pure: the record is not modified.
//
// Off days carry no clock times; they come back as date values (midnight
// UTC) spanning one day.
func Normalize(r model.DutyRecord, zone string) (start, end time.Time, err error) {
	if r.Kind == model.DutyOff {
		day := time.Date(r.Date.Year(), r.Date.Month(), r.Date.Day(), 0, 0, 0, 0, time.UTC)
		return day, day.AddDate(0, 0, 1), nil
	}

	loc, err := Location(zone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	start = time.Date(r.Date.Year(), r.Date.Month(), r.Date.Day(),
		r.Start.Hour, r.Start.Minute, 0, 0, loc).UTC()

	endDay := r.Date
	if r.EndsNextDay() {
		endDay = endDay.AddDate(0, 0, 1)
	}
	end = time.Date(endDay.Year(), endDay.Month(), endDay.Day(),
		r.End.Hour, r.End.Minute, 0, 0, loc).UTC()

	return start, end, nil
}
