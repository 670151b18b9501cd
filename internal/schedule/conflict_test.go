package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 6, 1, hour, minute, 0, 0, time.UTC)
}

func confirmedFor(engineer uuid.UUID, start, end time.Time) Booked {
	return Booked{ID: uuid.New(), Start: start, End: end, Status: StatusConfirmed, EngineerID: &engineer}
}

func TestOverlapsHalfOpen(t *testing.T) {
	cases := []struct {
		name           string
		s1, e1, s2, e2 time.Time
		want           bool
	}{
		{"touching end to start", at(10, 0), at(11, 0), at(11, 0), at(12, 0), false},
		{"partial", at(9, 30), at(10, 30), at(9, 0), at(10, 0), true},
		{"contained", at(9, 15), at(9, 45), at(9, 0), at(10, 0), true},
		{"identical", at(9, 0), at(10, 0), at(9, 0), at(10, 0), true},
		{"disjoint", at(8, 0), at(8, 30), at(9, 0), at(10, 0), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(tc.s1, tc.e1, tc.s2, tc.e2))
			assert.Equal(t, tc.want, Overlaps(tc.s2, tc.e2, tc.s1, tc.e1), "overlap must be symmetric")
		})
	}
}

func TestComputeBusyEngineersScenarios(t *testing.T) {
	engineer := uuid.New()
	existing := confirmedFor(engineer, at(9, 0), at(10, 0))

	t.Run("overlapping candidate marks engineer busy", func(t *testing.T) {
		busy := ComputeBusyEngineers(interval(t, "2024-06-01", "09:30", "10:30"), []Booked{existing}, BusyOptions{})
		assert.True(t, busy.Has(engineer))
	})

	t.Run("touching candidate leaves engineer free", func(t *testing.T) {
		busy := ComputeBusyEngineers(interval(t, "2024-06-01", "10:00", "10:30"), []Booked{existing}, BusyOptions{})
		assert.False(t, busy.Has(engineer))
	})

	t.Run("excluding the edited appointment leaves engineer free", func(t *testing.T) {
		busy := ComputeBusyEngineers(interval(t, "2024-06-01", "09:30", "10:30"), []Booked{existing}, BusyOptions{ExcludeAppointmentID: &existing.ID})
		assert.False(t, busy.Has(engineer))
		assert.Empty(t, busy)
	})
}

func TestComputeBusyEngineersStatusFiltering(t *testing.T) {
	candidate := interval(t, "2024-06-01", "09:00", "10:00")

	for _, tc := range []struct {
		status Status
		busy   bool
	}{
		{StatusConfirmed, true},
		{StatusOffered, true},
		{StatusPending, false},
		{StatusDeclined, false},
		{StatusCancelled, false},
		{StatusComplete, false},
	} {
		t.Run(string(tc.status), func(t *testing.T) {
			engineer := uuid.New()
			b := confirmedFor(engineer, at(9, 0), at(10, 0))
			b.Status = tc.status

			busy := ComputeBusyEngineers(candidate, []Booked{b}, BusyOptions{})
			assert.Equal(t, tc.busy, busy.Has(engineer))
		})
	}
}

func TestComputeBusyEngineersSkipsUnassigned(t *testing.T) {
	b := Booked{ID: uuid.New(), Start: at(9, 0), End: at(10, 0), Status: StatusConfirmed}

	busy := ComputeBusyEngineers(interval(t, "2024-06-01", "09:00", "10:00"), []Booked{b}, BusyOptions{})
	assert.Empty(t, busy)
}

func TestComputeBusyEngineersWithNoData(t *testing.T) {
	candidate := interval(t, "2024-06-01", "09:00", "10:00")

	assert.NotPanics(t, func() {
		assert.Empty(t, ComputeBusyEngineers(candidate, nil, BusyOptions{}))
		assert.Empty(t, ComputeBusyEngineers(candidate, []Booked{}, BusyOptions{}))
	})
}

func TestComputeBusyEngineersCollectsSeveral(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	existing := []Booked{
		confirmedFor(a, at(9, 0), at(10, 0)),
		confirmedFor(b, at(9, 45), at(11, 0)),
		confirmedFor(c, at(12, 0), at(13, 0)),
	}

	busy := ComputeBusyEngineers(interval(t, "2024-06-01", "09:30", "10:30"), existing, BusyOptions{})
	assert.ElementsMatch(t, []uuid.UUID{a, b}, busy.IDs())
}

func TestIsEngineerBusyAcrossIntervals(t *testing.T) {
	engineer := uuid.New()
	existing := []Booked{confirmedFor(engineer, at(14, 0), at(15, 0))}

	free := []Interval{
		interval(t, "2024-06-01", "09:00", "10:00"),
		interval(t, "2024-06-01", "15:00", "16:00"),
	}
	assert.False(t, IsEngineerBusy(engineer, free, existing))

	oneClash := append(free, interval(t, "2024-06-01", "14:30", "15:00"))
	assert.True(t, IsEngineerBusy(engineer, oneClash, existing))

	assert.False(t, IsEngineerBusy(uuid.New(), oneClash, existing))
	assert.False(t, IsEngineerBusy(engineer, nil, existing))
}

func TestClassify(t *testing.T) {
	alice := Engineer{ID: uuid.New(), Name: "Alice"}
	bob := Engineer{ID: uuid.New(), Name: "Bob"}

	got := Classify([]Engineer{alice, bob}, EngineerSet{bob.ID: {}})

	assert.Equal(t, []EngineerAvailability{
		{Engineer: alice, Status: Available, Selectable: true},
		{Engineer: bob, Status: Busy, Selectable: false},
	}, got)
}

func TestClassifyKeepsEditedAssignmentSelectable(t *testing.T) {
	engineer := Engineer{ID: uuid.New(), Name: "Eve"}
	own := confirmedFor(engineer.ID, at(9, 0), at(10, 0))
	candidate := interval(t, "2024-06-01", "09:30", "10:30")

	locked := Classify([]Engineer{engineer}, ComputeBusyEngineers(candidate, []Booked{own}, BusyOptions{}))
	assert.False(t, locked[0].Selectable)

	editing := Classify([]Engineer{engineer}, ComputeBusyEngineers(candidate, []Booked{own}, BusyOptions{ExcludeAppointmentID: &own.ID}))
	assert.True(t, editing[0].Selectable)
	assert.Equal(t, Available, editing[0].Status)
}

func TestWindow(t *testing.T) {
	from, to := Window([]Interval{
		interval(t, "2024-06-02", "09:00", "10:00"),
		interval(t, "2024-06-01", "13:00", "14:00"),
	})
	assert.Equal(t, time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC), to)
}
