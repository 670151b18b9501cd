package redisclient

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/fieldline/engineer-scheduling/internal/schedule"
)

func TestLockKeysAreSortedAndUnique(t *testing.T) {
	engineer := uuid.MustParse("7c0e0b6e-8f55-4c2b-9d3e-0d7a1f6f2a10")
	jun1 := schedule.NewCalendarDate(2024, time.June, 1)
	jun2 := schedule.NewCalendarDate(2024, time.June, 2)

	keys := lockKeys("acme", engineer, []schedule.CalendarDate{jun2, jun1, jun2})

	assert.Equal(t, []string{
		"lock:acme:engineer:7c0e0b6e-8f55-4c2b-9d3e-0d7a1f6f2a10:2024-06-01",
		"lock:acme:engineer:7c0e0b6e-8f55-4c2b-9d3e-0d7a1f6f2a10:2024-06-02",
	}, keys)
}

func TestLockKeyIsTenantScoped(t *testing.T) {
	engineer := uuid.New()
	day := schedule.NewCalendarDate(2024, time.June, 1)

	assert.NotEqual(t, LockKey("a", engineer, day), LockKey("b", engineer, day))
}
