package schedule

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocalTime(t *testing.T) {
	cases := map[string]LocalTime{
		"09:30":    {9, 30},
		"00:00":    {0, 0},
		"23:59":    {23, 59},
		"9:30 AM":  {9, 30},
		"12:00 am": {0, 0},
		"12:15 PM": {12, 15},
		"1:05pm":   {13, 5},
	}
	for in, want := range cases {
		got, err := ParseLocalTime(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "9:30", "24:00", "10:60", "13:00 PM", "0:30 AM", "ten", "10:5"} {
		_, err := ParseLocalTime(bad)
		assert.ErrorIs(t, err, ErrInvalidTime, bad)
	}
}

func TestParseCalendarDate(t *testing.T) {
	d, err := ParseCalendarDate("2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, NewCalendarDate(2024, time.June, 1), d)
	assert.Equal(t, "2024-06-01", d.String())

	for _, bad := range []string{"2024-6-1", "01/06/2024", "2024-02-30", ""} {
		_, err := ParseCalendarDate(bad)
		assert.ErrorIs(t, err, ErrInvalidDate, bad)
	}
}

func TestStringOrderIsChronological(t *testing.T) {
	dates := []CalendarDate{
		NewCalendarDate(2024, time.October, 2),
		NewCalendarDate(2024, time.January, 10),
		NewCalendarDate(2023, time.December, 31),
		NewCalendarDate(2024, time.October, 1),
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	for i := 1; i < len(dates); i++ {
		prev := time.Date(dates[i-1].Year, dates[i-1].Month, dates[i-1].Day, 0, 0, 0, 0, time.UTC)
		cur := time.Date(dates[i].Year, dates[i].Month, dates[i].Day, 0, 0, 0, 0, time.UTC)
		assert.True(t, prev.Before(cur))
	}

	assert.True(t, NewLocalTime(9, 0).Before(NewLocalTime(10, 0)))
	assert.False(t, NewLocalTime(10, 0).Before(NewLocalTime(9, 59)))
}

func TestToComparableInstantIsUTCLiteral(t *testing.T) {
	got := ToComparableInstant(NewCalendarDate(2024, time.June, 1), NewLocalTime(9, 30))

	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, "2024-06-01T09:30:00Z", got.Format(time.RFC3339))
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), StartOfDay(NewCalendarDate(2024, time.June, 1)))
}

func TestTimeSlotJSON(t *testing.T) {
	var s TimeSlot
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2024-06-01","start_time":"09:00","end_time":"9:30 AM"}`), &s))
	assert.Equal(t, TimeSlot{
		Date:      NewCalendarDate(2024, time.June, 1),
		StartTime: NewLocalTime(9, 0),
		EndTime:   NewLocalTime(9, 30),
	}, s)

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-06-01","start_time":"09:00","end_time":"09:30"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"date":"June 1"}`), &s))
}
