package schedule

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusOffered   Status = "offered"
	StatusConfirmed Status = "confirmed"
	StatusDeclined  Status = "declined"
	StatusCancelled Status = "cancelled"
	StatusComplete  Status = "complete"
)

// Blocks reports whether an appointment in this status holds its engineer's time.
func (s Status) Blocks() bool {
	return s == StatusConfirmed || s == StatusOffered
}

// Booked is the slice of an appointment record the resolver reads.
type Booked struct {
	ID         uuid.UUID
	Start      time.Time
	End        time.Time
	Status     Status
	EngineerID *uuid.UUID
}

type Engineer struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type EngineerSet map[uuid.UUID]struct{}

func (s EngineerSet) Has(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the members in a stable order.
func (s EngineerSet) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids
}

type BusyOptions struct {
	// ExcludeAppointmentID is the record under edit; it never conflicts with itself.
	ExcludeAppointmentID *uuid.UUID
}

// Overlaps tests [s1,e1) against [s2,e2). Touching endpoints do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && e1.After(s2)
}

// ComputeBusyEngineers returns every engineer holding a confirmed or offered
// appointment that overlaps candidate. A nil or empty existing slice means
// nobody is busy.
func ComputeBusyEngineers(candidate Interval, existing []Booked, opts BusyOptions) EngineerSet {
	start, end := candidate.Bounds()
	return busyBetween(start, end, existing, opts)
}

func busyBetween(start, end time.Time, existing []Booked, opts BusyOptions) EngineerSet {
	busy := make(EngineerSet)
	for _, b := range existing {
		if opts.ExcludeAppointmentID != nil && b.ID == *opts.ExcludeAppointmentID {
			continue
		}
		if !b.Status.Blocks() || b.EngineerID == nil {
			continue
		}
		if Overlaps(start, end, b.Start, b.End) {
			busy[*b.EngineerID] = struct{}{}
		}
	}
	return busy
}

// IsEngineerBusy is true when the engineer is busy in any of the candidates.
// It is used for new bookings, so nothing is excluded.
func IsEngineerBusy(engineerID uuid.UUID, candidates []Interval, existing []Booked) bool {
	for _, c := range candidates {
		if ComputeBusyEngineers(c, existing, BusyOptions{}).Has(engineerID) {
			return true
		}
	}
	return false
}

type Availability string

const (
	Available Availability = "available"
	Busy      Availability = "busy"
)

type EngineerAvailability struct {
	Engineer
	Status     Availability `json:"status"`
	Selectable bool         `json:"selectable"`
}

// Classify labels each roster entry against a busy set, keeping roster order.
func Classify(roster []Engineer, busy EngineerSet) []EngineerAvailability {
	out := make([]EngineerAvailability, 0, len(roster))
	for _, e := range roster {
		ea := EngineerAvailability{Engineer: e, Status: Available, Selectable: true}
		if busy.Has(e.ID) {
			ea.Status = Busy
			ea.Selectable = false
		}
		out = append(out, ea)
	}
	return out
}

// Window returns the smallest instant range covering every candidate.
func Window(candidates []Interval) (time.Time, time.Time) {
	var from, to time.Time
	for i, c := range candidates {
		s, e := c.Bounds()
		if i == 0 || s.Before(from) {
			from = s
		}
		if i == 0 || e.After(to) {
			to = e
		}
	}
	return from, to
}
