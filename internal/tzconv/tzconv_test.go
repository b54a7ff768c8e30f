package tzconv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rostercal/internal/model"
)

func flightOn(date time.Time, start, end model.LocalClock) model.DutyRecord {
	return model.DutyRecord{
		Kind:         model.DutyFlight,
		FlightNumber: "LO135",
		Departure:    "WAW",
		Arrival:      "LHR",
		Date:         date,
		Start:        start,
		End:          end,
		Timezone:     "Europe/Warsaw",
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		date      time.Time
		start     model.LocalClock
		end       model.LocalClock
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			// Warsaw is CET (UTC+1) before the late-March DST switch.
			name:      "CET before DST switch",
			date:      time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
			start:     model.LocalClock{Hour: 8, Minute: 0},
			end:       model.LocalClock{Hour: 10, Minute: 30},
			wantStart: time.Date(2024, 3, 20, 7, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 3, 20, 9, 30, 0, 0, time.UTC),
		},
		{
			// DST starts 2024-03-31 in Poland; the same wall clock is
			// CEST (UTC+2) that day.
			name:      "CEST on DST switch day",
			date:      time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
			start:     model.LocalClock{Hour: 8, Minute: 0},
			end:       model.LocalClock{Hour: 10, Minute: 30},
			wantStart: time.Date(2024, 3, 31, 6, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 3, 31, 8, 30, 0, 0, time.UTC),
		},
		{
			// Arrival clock at or before departure means an overnight leg.
			name:      "overnight arrival rolls to next day",
			date:      time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC),
			start:     model.LocalClock{Hour: 23, Minute: 30},
			end:       model.LocalClock{Hour: 1, Minute: 25},
			wantStart: time.Date(2024, 7, 10, 21, 30, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 7, 10, 23, 25, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := flightOn(tt.date, tt.start, tt.end)
			start, end, err := Normalize(rec, rec.Timezone)
			require.NoError(t, err)
			assert.True(t, start.Equal(tt.wantStart), "start: got %s want %s", start, tt.wantStart)
			assert.True(t, end.Equal(tt.wantEnd), "end: got %s want %s", end, tt.wantEnd)
			assert.True(t, start.Before(end))
		})
	}
}

// Converting to UTC and reading the instant back in the source zone
// recovers the original wall clock.
func TestNormalizeRoundTrip(t *testing.T) {
	dates := []time.Time{
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 10, 27, 0, 0, 0, 0, time.UTC),
	}

	loc, err := Location("Europe/Warsaw")
	require.NoError(t, err)

	for _, date := range dates {
		rec := flightOn(date, model.LocalClock{Hour: 8, Minute: 0}, model.LocalClock{Hour: 10, Minute: 30})
		start, _, err := Normalize(rec, rec.Timezone)
		require.NoError(t, err)

		local := start.In(loc)
		assert.Equal(t, 8, local.Hour(), "date %s", date)
		assert.Equal(t, 0, local.Minute(), "date %s", date)
		assert.Equal(t, date.Day(), local.Day(), "date %s", date)
	}
}

func TestNormalizeOffDay(t *testing.T) {
	rec := model.DutyRecord{
		Kind:     model.DutyOff,
		Date:     time.Date(2024, 3, 22, 0, 0, 0, 0, time.UTC),
		Timezone: "Europe/Warsaw",
	}

	start, end, err := Normalize(rec, rec.Timezone)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 22, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 23, 0, 0, 0, 0, time.UTC), end)
}

func TestNormalizeUnknownZone(t *testing.T) {
	rec := flightOn(time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
		model.LocalClock{Hour: 8, Minute: 0}, model.LocalClock{Hour: 10, Minute: 30})

	_, _, err := Normalize(rec, "Europe/Atlantis")
	require.Error(t, err)

	var tzErr *TimezoneError
	require.ErrorAs(t, err, &tzErr)
	assert.Equal(t, "Europe/Atlantis", tzErr.Name)
}

func TestLocation(t *testing.T) {
	loc, err := Location("Europe/Warsaw")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Warsaw", loc.String())

	_, err = Location("Not/AZone")
	var tzErr *TimezoneError
	require.ErrorAs(t, err, &tzErr)
}
