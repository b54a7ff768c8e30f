package ics

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"rostercal/internal/model"
)

// dailyRule builds the RRULE value for a block of consecutive duty days.
func dailyRule(days int) (string, error) {
	r, err := rrule.NewRRule(rrule.ROption{Freq: rrule.DAILY, Count: days})
	if err != nil {
		return "", fmt.Errorf("ics: build daily rule for %d days: %w", days, err)
	}
	return r.String(), nil
}

// BlockDays expands a (possibly collapsed) event into the start instant of
// each day it covers.
func BlockDays(ev model.CalendarEvent) ([]time.Time, error) {
	if ev.RepeatDays <= 1 {
		return []time.Time{ev.Start}, nil
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Count:   ev.RepeatDays,
		Dtstart: ev.Start,
	})
	if err != nil {
		return nil, fmt.Errorf("ics: expand block %s: %w", ev.UID, err)
	}
	return r.All(), nil
}
