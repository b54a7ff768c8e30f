// Package convert runs the roster-to-calendar pipeline: extract duty
// records, anchor them to UTC, emit iCalendar bytes. One roster in, one
// calendar out; any stage error aborts the run with no partial output.
package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"rostercal/internal/ics"
	appLog "rostercal/internal/log"
	"rostercal/internal/model"
	"rostercal/internal/roster"
	"rostercal/internal/tzconv"
)

// DefaultTrackerBaseURL is where flight tracker links point unless
// configured otherwise.
const DefaultTrackerBaseURL = "https://www.flightradar24.com"

// Options parameterizes one conversion run.
type Options struct {
	// Timezone is the IANA zone the roster's clock times are local to.
	Timezone string

	// Cutoff excludes duties dated before it. The zero value, or any
	// value before the roster's production date, means the production
	// date applies.
	Cutoff time.Time

	// TrackerBaseURL overrides DefaultTrackerBaseURL.
	TrackerBaseURL string

	// Generated is passed through to the emitter's DTSTAMP. Zero means
	// time.Now; fix it for byte-identical output.
	Generated time.Time
}

// Result is the outcome of a conversion run.
type Result struct {
	Period   model.Period
	Records  []model.DutyRecord
	Events   []model.CalendarEvent
	ICS      []byte
	Filename string
}

// Run converts extracted roster text lines into a calendar.
func Run(lines []string, opts Options) (*Result, error) {
	if opts.Timezone == "" {
		opts.Timezone = "Europe/Warsaw"
	}
	if opts.TrackerBaseURL == "" {
		opts.TrackerBaseURL = DefaultTrackerBaseURL
	}

	// An empty document is not an error: it converts to a valid calendar
	// with zero events.
	if allBlank(lines) {
		body, err := ics.Encode(nil, ics.Options{Generated: opts.Generated})
		if err != nil {
			return nil, err
		}
		return &Result{ICS: body, Filename: ics.Filename(model.Period{}, 0)}, nil
	}

	if err := roster.ValidateStructure(lines); err != nil {
		return nil, err
	}
	period, records, err := roster.ParseDocument(lines, opts.Timezone)
	if err != nil {
		return nil, err
	}

	cutoff := effectiveCutoff(opts.Cutoff, period)
	kept := records[:0:0]
	for _, r := range records {
		if r.Date.Before(cutoff) {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) < len(records) {
		appLog.Info("cutoff filtering applied",
			"cutoff", cutoff.Format("2006-01-02"),
			"dropped", len(records)-len(kept),
		)
	}

	events, err := projectEvents(kept, opts)
	if err != nil {
		return nil, err
	}

	body, err := ics.Encode(events, ics.Options{Generated: opts.Generated})
	if err != nil {
		return nil, err
	}

	res := &Result{
		Period:   period,
		Records:  kept,
		Events:   events,
		ICS:      body,
		Filename: ics.Filename(period, len(events)),
	}
	appLog.Info("roster converted",
		"records", len(kept),
		"events", len(events),
		"filename", res.Filename,
	)
	return res, nil
}

// RunFile converts an on-disk roster document. PDFs go through the text
// extractor; anything else is treated as already-extracted text.
func RunFile(path string, extractor roster.TextExtractor, opts Options) (*Result, error) {
	var lines []string

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("convert: open %s: %w", path, err)
		}
		defer f.Close()
		st, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("convert: stat %s: %w", path, err)
		}
		lines, err = extractor.ExtractLines(f, st.Size())
		if err != nil {
			return nil, err
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("convert: read %s: %w", path, err)
		}
		lines = strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	}

	return Run(lines, opts)
}

func allBlank(lines []string) bool {
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			return false
		}
	}
	return true
}

// effectiveCutoff clamps a requested cutoff up to the roster's production
// date; duties the document itself marks as already flown never make it
// into the calendar.
func effectiveCutoff(requested time.Time, period model.Period) time.Time {
	cutoff := period.Produced
	if !requested.IsZero() && requested.After(cutoff) {
		cutoff = requested
	}
	return time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)
}

// dutyBlock is a run of consecutive days sharing one duty shape.
type dutyBlock struct {
	rec  model.DutyRecord
	days int
}

// groupBlocks collapses consecutive standby days with an identical time
// window and consecutive off days into single blocks. Flights are never
// grouped.
func groupBlocks(records []model.DutyRecord) []dutyBlock {
	blocks := make([]dutyBlock, 0, len(records))
	for _, r := range records {
		if n := len(blocks); n > 0 && extendsBlock(blocks[n-1], r) {
			blocks[n-1].days++
			continue
		}
		blocks = append(blocks, dutyBlock{rec: r, days: 1})
	}
	return blocks
}

func extendsBlock(b dutyBlock, r model.DutyRecord) bool {
	prev := b.rec
	if r.Kind != prev.Kind || r.Kind == model.DutyFlight {
		return false
	}
	if r.Kind == model.DutyStandby {
		if r.Departure != prev.Departure || r.Start != prev.Start || r.End != prev.End {
			return false
		}
	}
	return r.Date.Equal(prev.Date.AddDate(0, 0, b.days))
}

// projectEvents normalizes duty blocks into calendar events with stable,
// collision-free UIDs.
func projectEvents(records []model.DutyRecord, opts Options) ([]model.CalendarEvent, error) {
	blocks := groupBlocks(records)

	events := make([]model.CalendarEvent, 0, len(blocks))
	seenKeys := make(map[string]int, len(blocks))

	for _, b := range blocks {
		r := b.rec
		start, end, err := tzconv.Normalize(r, r.Timezone)
		if err != nil {
			return nil, err
		}

		// Collisions are counted per key and day, so a duty's UID never
		// depends on which other days survived the cutoff.
		key := uidKey(r)
		dayKey := key + ":" + r.Date.Format("20060102")
		seenKeys[dayKey]++
		if n := seenKeys[dayKey]; n > 1 {
			key = fmt.Sprintf("%s-%d", key, n)
		}

		ev := model.CalendarEvent{
			UID:        ics.EventUID(key, r.Date),
			Start:      start,
			End:        end,
			RepeatDays: b.days,
		}

		switch r.Kind {
		case model.DutyFlight:
			ev.Summary = r.FlightNumber + " " + r.Departure + " → " + r.Arrival
			ev.Location = r.Departure + " → " + r.Arrival
			ev.URL = trackerURL(opts.TrackerBaseURL, r.FlightNumber)
			ev.Description = flightDescription(r, ev.URL)
		case model.DutyStandby:
			ev.Summary = "Standby (" + r.Departure + ")"
			ev.Location = r.Departure
			ev.Description = "Standby " + r.Start.String() + "–" + r.End.String() +
				" (" + r.Timezone + ")"
		case model.DutyOff:
			ev.Summary = "Day off"
			ev.AllDay = true
		}

		events = append(events, ev)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].UID < events[j].UID
	})

	return events, nil
}

func uidKey(r model.DutyRecord) string {
	switch r.Kind {
	case model.DutyFlight:
		return r.FlightNumber
	case model.DutyStandby:
		return "RES-" + r.Departure
	default:
		return "OFF"
	}
}

func trackerURL(base, flightNumber string) string {
	return strings.TrimSuffix(base, "/") + "/data/flights/" + strings.ToLower(flightNumber)
}

func flightDescription(r model.DutyRecord, url string) string {
	return "Flight: " + r.FlightNumber + "\n" +
		"Route: " + r.Departure + " → " + r.Arrival + "\n" +
		"Departure: " + r.Start.String() + " (" + r.Timezone + ")\n" +
		"Arrival: " + r.End.String() + " (" + r.Timezone + ")\n" +
		"Tracker: " + url
}
