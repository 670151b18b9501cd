package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrInvalidSlot = errors.New("invalid time slot")

// TimeSlot is a single calendar window picked by a user before merging.
type TimeSlot struct {
	Date      CalendarDate `json:"date"`
	StartTime LocalTime    `json:"start_time"`
	EndTime   LocalTime    `json:"end_time"`
}

// Interval is one or more contiguous slots coalesced into a bookable range.
type Interval struct {
	Date      CalendarDate `json:"date"`
	StartTime LocalTime    `json:"start_time"`
	EndTime   LocalTime    `json:"end_time"`
}

// Bounds returns the half-open instant range [start, end) of the interval.
func (iv Interval) Bounds() (time.Time, time.Time) {
	return ToComparableInstant(iv.Date, iv.StartTime), ToComparableInstant(iv.Date, iv.EndTime)
}

func (s TimeSlot) sortKey() string {
	return s.Date.String() + " " + s.StartTime.String()
}

// ValidateSlots reports the first slot with a missing date or a non-positive length.
// MergeSlots does not validate, callers run this first.
func ValidateSlots(slots []TimeSlot) error {
	for i, s := range slots {
		if s.Date.IsZero() {
			return fmt.Errorf("%w: slot %d has no date", ErrInvalidSlot, i)
		}
		if !s.StartTime.Before(s.EndTime) {
			return fmt.Errorf("%w: slot %d starts at %s but ends at %s", ErrInvalidSlot, i, s.StartTime, s.EndTime)
		}
	}
	return nil
}

// MergeSlots coalesces same-date slots whose boundaries touch into the fewest
// continuous intervals. Output is chronological. A slot already covered by the
// open interval (a repeated selection) is dropped instead of emitted twice.
func MergeSlots(slots []TimeSlot) []Interval {
	merged := make([]Interval, 0, len(slots))
	if len(slots) == 0 {
		return merged
	}

	sorted := make([]TimeSlot, len(slots))
	copy(sorted, slots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].sortKey() < sorted[j].sortKey()
	})

	open := Interval{Date: sorted[0].Date, StartTime: sorted[0].StartTime, EndTime: sorted[0].EndTime}
	for _, s := range sorted[1:] {
		switch {
		case s.Date == open.Date && s.StartTime == open.EndTime:
			open.EndTime = s.EndTime
		case s.Date == open.Date && covers(open, s):
			continue
		default:
			merged = append(merged, open)
			open = Interval{Date: s.Date, StartTime: s.StartTime, EndTime: s.EndTime}
		}
	}
	merged = append(merged, open)

	return merged
}

// covers assumes s sorts at or after open.StartTime.
func covers(open Interval, s TimeSlot) bool {
	return !open.EndTime.Before(s.EndTime)
}
