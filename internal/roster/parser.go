package roster

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	appLog "rostercal/internal/log"
	"rostercal/internal/model"
)

// headerDateLayout is the roster header date form, e.g. "02Jan06".
const headerDateLayout = "02Jan06"

// Row patterns for the NetLine-style roster layout. Whitespace is collapsed
// before matching, so runs of spaces from PDF extraction do not matter.
var (
	checkInRe  = regexp.MustCompile(`^(\d{1,2})\. ([A-Za-z]{3}) C/I (\d{4}) ([A-Z]{3})`)
	checkOutRe = regexp.MustCompile(`\bC/O (\d{4})`)
	flightRe   = regexp.MustCompile(`^(\d{1,2})\. ([A-Za-z]{3}) LO (\d{1,5}) ([A-Z]{3}) (\d{4}) (\d{4}) ([A-Z]{3})\b`)
	standbyRe  = regexp.MustCompile(`^(\d{1,2})\. ([A-Za-z]{3}) (?:RES|SBY) (\d{4}) (\d{4})(?: ([A-Z]{3}))?`)
	offRe      = regexp.MustCompile(`^(\d{1,2})\. ([A-Za-z]{3}) (?:OFF|DO)\b`)

	// wrappedFlightRe spots a flight row that lost its "D. Mon" prefix to
	// PDF line wrapping; the current day is re-attached before matching.
	wrappedFlightRe = regexp.MustCompile(`^LO \d{1,5}\b`)
)

// ParseDocument turns extracted roster text lines into the roster period
// and its duty records. Times on the records are local wall-clock values;
// tz names the IANA zone they are local to.
//
// Lines that match no known row pattern are skipped. A line that matches a
// row pattern but carries a malformed field aborts the parse with a
// *ParseError, so a bad roster never yields a partial record set.
func ParseDocument(lines []string, tz string) (model.Period, []model.DutyRecord, error) {
	period, err := parsePeriod(lines)
	if err != nil {
		return model.Period{}, nil, err
	}

	records := make([]model.DutyRecord, 0)

	var (
		currentDay     string
		currentWeekday string
		collecting     bool

		prevDay      int
		usePeriodEnd bool
	)

	for i := 3; i < len(lines); i++ {
		lineNum := i + 1
		line := collapseSpaces(lines[i])
		if line == "" {
			continue
		}

		if m := checkInRe.FindStringSubmatch(line); m != nil {
			currentDay = m[1]
			currentWeekday = m[2]
			collecting = true
			continue
		}
		if checkOutRe.MatchString(line) {
			collecting = false
			continue
		}

		// Re-attach the day prefix to wrapped flight rows inside a duty
		// section.
		if collecting && currentDay != "" && wrappedFlightRe.MatchString(line) {
			line = currentDay + ". " + currentWeekday + " " + line
		}

		if m := flightRe.FindStringSubmatch(line); m != nil {
			day, err := parseDayOfMonth(m[1], lineNum, line)
			if err != nil {
				return model.Period{}, nil, err
			}
			start, err := parseRosterClock(m[5], "departure time", lineNum, line)
			if err != nil {
				return model.Period{}, nil, err
			}
			end, err := parseRosterClock(m[6], "arrival time", lineNum, line)
			if err != nil {
				return model.Period{}, nil, err
			}

			usePeriodEnd = usePeriodEnd || rolledOver(prevDay, day)
			prevDay = day

			records = append(records, model.DutyRecord{
				Kind:         model.DutyFlight,
				FlightNumber: "LO" + m[3],
				Departure:    m[4],
				Arrival:      m[7],
				Date:         dateForDay(day, period, usePeriodEnd),
				Start:        start,
				End:          end,
				Timezone:     tz,
			})
			continue
		}

		if m := standbyRe.FindStringSubmatch(line); m != nil {
			day, err := parseDayOfMonth(m[1], lineNum, line)
			if err != nil {
				return model.Period{}, nil, err
			}
			start, err := parseRosterClock(m[3], "standby start time", lineNum, line)
			if err != nil {
				return model.Period{}, nil, err
			}
			end, err := parseRosterClock(m[4], "standby end time", lineNum, line)
			if err != nil {
				return model.Period{}, nil, err
			}

			usePeriodEnd = usePeriodEnd || rolledOver(prevDay, day)
			prevDay = day

			records = append(records, model.DutyRecord{
				Kind:      model.DutyStandby,
				Departure: m[5],
				Date:      dateForDay(day, period, usePeriodEnd),
				Start:     start,
				End:       end,
				Timezone:  tz,
			})
			continue
		}

		if m := offRe.FindStringSubmatch(line); m != nil {
			day, err := parseDayOfMonth(m[1], lineNum, line)
			if err != nil {
				return model.Period{}, nil, err
			}

			usePeriodEnd = usePeriodEnd || rolledOver(prevDay, day)
			prevDay = day

			records = append(records, model.DutyRecord{
				Kind:     model.DutyOff,
				Date:     dateForDay(day, period, usePeriodEnd),
				Timezone: tz,
			})
			continue
		}

		// Anything else (column headers, totals, hotel rows, ...) is noise.
	}

	appLog.Debug("roster document parsed",
		"period_start", period.Start.Format("2006-01-02"),
		"period_end", period.End.Format("2006-01-02"),
		"records", len(records),
	)
	return period, records, nil
}

// parsePeriod reads the roster production date from the first header line
// and the validity period from the second.
func parsePeriod(lines []string) (model.Period, error) {
	if len(lines) < 3 {
		return model.Period{}, &StructureError{Reason: "document too short to contain a roster header"}
	}

	head := strings.Fields(lines[0])
	if len(head) < 6 {
		return model.Period{}, &ParseError{Line: 1, Text: lines[0], Field: "header", Reason: "production date not found"}
	}
	produced, err := time.Parse(headerDateLayout, head[5])
	if err != nil {
		return model.Period{}, &ParseError{Line: 1, Text: lines[0], Field: "production date", Reason: err.Error()}
	}

	per := strings.Fields(lines[1])
	if len(per) < 3 {
		return model.Period{}, &ParseError{Line: 2, Text: lines[1], Field: "period", Reason: "expected start and end dates"}
	}
	start, err := time.Parse(headerDateLayout, per[1])
	if err != nil {
		return model.Period{}, &ParseError{Line: 2, Text: lines[1], Field: "period start", Reason: err.Error()}
	}
	end, err := time.Parse(headerDateLayout, per[2])
	if err != nil {
		return model.Period{}, &ParseError{Line: 2, Text: lines[1], Field: "period end", Reason: err.Error()}
	}
	if end.Before(start) {
		return model.Period{}, &ParseError{Line: 2, Text: lines[1], Field: "period", Reason: "end date precedes start date"}
	}

	return model.Period{Start: start, End: end, Produced: produced}, nil
}

// rolledOver reports the month boundary inside a period: day-of-month
// going backwards means the remaining rows belong to the period-end month.
func rolledOver(prevDay, day int) bool {
	return prevDay > 0 && day < prevDay
}

func dateForDay(day int, period model.Period, usePeriodEnd bool) time.Time {
	base := period.Start
	if usePeriodEnd {
		base = period.End
	}
	return time.Date(base.Year(), base.Month(), day, 0, 0, 0, 0, time.UTC)
}

func parseDayOfMonth(s string, lineNum int, text string) (int, error) {
	day, err := strconv.Atoi(s)
	if err != nil || day < 1 || day > 31 {
		return 0, &ParseError{Line: lineNum, Text: text, Field: "day of month", Reason: "value " + s + " out of range"}
	}
	return day, nil
}

// parseRosterClock parses the roster's HHMM form.
func parseRosterClock(s, field string, lineNum int, text string) (model.LocalClock, error) {
	if len(s) != 4 {
		return model.LocalClock{}, &ParseError{Line: lineNum, Text: text, Field: field, Reason: "expected HHMM, got " + s}
	}
	hour, _ := strconv.Atoi(s[:2])
	minute, _ := strconv.Atoi(s[2:])
	c := model.LocalClock{Hour: hour, Minute: minute}
	if !c.Valid() {
		return model.LocalClock{}, &ParseError{Line: lineNum, Text: text, Field: field, Reason: s + " is not a time of day"}
	}
	return c, nil
}

// collapseSpaces normalizes runs of whitespace to single spaces. PDF text
// extraction pads columns unpredictably; the row patterns assume single
// spacing.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
