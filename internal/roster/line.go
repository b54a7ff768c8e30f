package roster

import (
	"errors"
	"regexp"
	"strconv"
	"time"

	"rostercal/internal/model"
)

// ErrNotARecord is returned by ParseLine for lines that match no record
// notation. Such lines are skippable, not malformed.
var ErrNotARecord = errors.New("roster: line matches no record notation")

// Compact single-line notation. This is the canonical serialized form of a
// DutyRecord:
//
//	LO135 WAW-LHR 08:00-10:30
//	RES WAW 06:00-14:00
//	OFF
var (
	compactFlightRe  = regexp.MustCompile(`^([A-Z]{2}\d{1,5}) ([A-Z]{3})-([A-Z]{3}) (\d{2}):(\d{2})-(\d{2}):(\d{2})$`)
	compactStandbyRe = regexp.MustCompile(`^(?:RES|SBY) ([A-Z]{3}) (\d{2}):(\d{2})-(\d{2}):(\d{2})$`)
	compactOffRe     = regexp.MustCompile(`^(?:OFF|DO)$`)
)

// ParseLine parses one compact-notation roster line into a DutyRecord for
// the given calendar day. It returns ErrNotARecord when the line matches
// none of the notations, and a *ParseError when a matched line carries a
// malformed field.
func ParseLine(line string, date time.Time, tz string) (model.DutyRecord, error) {
	line = collapseSpaces(line)

	if m := compactFlightRe.FindStringSubmatch(line); m != nil {
		start, err := parseSplitClock(m[4], m[5], "departure time", line)
		if err != nil {
			return model.DutyRecord{}, err
		}
		end, err := parseSplitClock(m[6], m[7], "arrival time", line)
		if err != nil {
			return model.DutyRecord{}, err
		}
		return model.DutyRecord{
			Kind:         model.DutyFlight,
			FlightNumber: m[1],
			Departure:    m[2],
			Arrival:      m[3],
			Date:         date,
			Start:        start,
			End:          end,
			Timezone:     tz,
		}, nil
	}

	if m := compactStandbyRe.FindStringSubmatch(line); m != nil {
		start, err := parseSplitClock(m[2], m[3], "standby start time", line)
		if err != nil {
			return model.DutyRecord{}, err
		}
		end, err := parseSplitClock(m[4], m[5], "standby end time", line)
		if err != nil {
			return model.DutyRecord{}, err
		}
		return model.DutyRecord{
			Kind:      model.DutyStandby,
			Departure: m[1],
			Date:      date,
			Start:     start,
			End:       end,
			Timezone:  tz,
		}, nil
	}

	if compactOffRe.MatchString(line) {
		return model.DutyRecord{
			Kind:     model.DutyOff,
			Date:     date,
			Timezone: tz,
		}, nil
	}

	return model.DutyRecord{}, ErrNotARecord
}

// FormatLine serializes a DutyRecord back to the compact notation.
// ParseLine(FormatLine(r), r.Date, r.Timezone) reproduces r.
func FormatLine(r model.DutyRecord) string {
	switch r.Kind {
	case model.DutyFlight:
		return r.FlightNumber + " " + r.Departure + "-" + r.Arrival +
			" " + r.Start.String() + "-" + r.End.String()
	case model.DutyStandby:
		return "RES " + r.Departure + " " + r.Start.String() + "-" + r.End.String()
	default:
		return "OFF"
	}
}

func parseSplitClock(hh, mm, field, text string) (model.LocalClock, error) {
	hour, _ := strconv.Atoi(hh)
	minute, _ := strconv.Atoi(mm)
	c := model.LocalClock{Hour: hour, Minute: minute}
	if !c.Valid() {
		return model.LocalClock{}, &ParseError{
			Text:   text,
			Field:  field,
			Reason: hh + ":" + mm + " is not a time of day",
		}
	}
	return c, nil
}
