package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidDate = errors.New("date must be formatted as YYYY-MM-DD")
	ErrInvalidTime = errors.New("time must be formatted as HH:MM or h:MM AM/PM")
)

const dateLayout = "2006-01-02"

// CalendarDate is a day on the calendar with no zone attached.
// Its String form is always zero padded, so string order is chronological order.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

func NewCalendarDate(year int, month time.Month, day int) CalendarDate {
	return CalendarDate{Year: year, Month: month, Day: day}
}

// DateOf returns the calendar date of t as seen in t's own location.
func DateOf(t time.Time) CalendarDate {
	y, m, d := t.Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

func ParseCalendarDate(s string) (CalendarDate, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return CalendarDate{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

func (d CalendarDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d CalendarDate) IsZero() bool {
	return d == CalendarDate{}
}

func (d CalendarDate) Before(other CalendarDate) bool {
	return d.String() < other.String()
}

func (d CalendarDate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *CalendarDate) UnmarshalText(b []byte) error {
	parsed, err := ParseCalendarDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// LocalTime is a wall clock time of day with minute precision.
type LocalTime struct {
	Hour   int
	Minute int
}

func NewLocalTime(hour, minute int) LocalTime {
	return LocalTime{Hour: hour, Minute: minute}
}

// ParseLocalTime accepts "HH:MM" (24 hour) and "h:MM AM" / "h:MM pm" (12 hour).
func ParseLocalTime(s string) (LocalTime, error) {
	raw := strings.TrimSpace(s)
	upper := strings.ToUpper(raw)

	meridiem := ""
	switch {
	case strings.HasSuffix(upper, "AM"):
		meridiem = "AM"
	case strings.HasSuffix(upper, "PM"):
		meridiem = "PM"
	}
	if meridiem != "" {
		upper = strings.TrimSpace(strings.TrimSuffix(upper, meridiem))
	}

	hh, mm, ok := strings.Cut(upper, ":")
	if !ok || len(mm) != 2 || hh == "" || len(hh) > 2 {
		return LocalTime{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return LocalTime{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return LocalTime{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	if meridiem != "" {
		if hour < 1 || hour > 12 {
			return LocalTime{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		hour %= 12
		if meridiem == "PM" {
			hour += 12
		}
	} else if len(hh) != 2 || hour < 0 || hour > 23 {
		return LocalTime{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	return LocalTime{Hour: hour, Minute: minute}, nil
}

// ClockOf returns the wall clock of t in t's own location, truncated to the minute.
func ClockOf(t time.Time) LocalTime {
	return LocalTime{Hour: t.Hour(), Minute: t.Minute()}
}

func (t LocalTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t LocalTime) Before(other LocalTime) bool {
	return t.String() < other.String()
}

func (t LocalTime) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *LocalTime) UnmarshalText(b []byte) error {
	parsed, err := ParseLocalTime(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ToComparableInstant is the only place a date and a wall clock are combined
// into an instant. The pair is always read as a UTC literal, whatever zone the
// caller is in, so every stored start/end is compared on the same footing.
func ToComparableInstant(date CalendarDate, clock LocalTime) time.Time {
	literal := date.String() + "T" + clock.String() + ":00Z"
	t, err := time.Parse(time.RFC3339, literal)
	if err != nil {
		// Only reachable for out-of-range fields, which the parsers above reject.
		return time.Date(date.Year, date.Month, date.Day, clock.Hour, clock.Minute, 0, 0, time.UTC)
	}
	return t
}

// StartOfDay is midnight of date as a UTC literal.
func StartOfDay(date CalendarDate) time.Time {
	var midnight LocalTime
	return ToComparableInstant(date, midnight)
}
