package orgtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoment_UsesOrganizationTimezone(t *testing.T) {
	loc, err := Location("America/New_York")
	require.NoError(t, err)

	// 2026-10-14 02:30 UTC is still Tuesday 2026-10-13 22:30 in New York.
	now := time.Date(2026, 10, 14, 2, 30, 0, 0, time.UTC)
	m := At(now, loc)

	assert.Equal(t, "2026-10-13", m.Date())
	assert.Equal(t, 2, m.Weekday())
	assert.Equal(t, "22:30", m.TimeOfDay())
}

func TestLocation_Rejects(t *testing.T) {
	_, err := Location("")
	assert.Error(t, err)

	_, err = Location("Mars/Olympus_Mons")
	assert.Error(t, err)
}

func TestSlotInstant(t *testing.T) {
	loc, err := Location("America/New_York")
	require.NoError(t, err)

	at, err := SlotInstant("2026-10-13", "09:00", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 13, 13, 0, 0, 0, time.UTC), at.UTC())

	_, err = SlotInstant("2026-10-13", "9am", loc)
	assert.Error(t, err)
}

func TestNextMidnight(t *testing.T) {
	loc, err := Location("America/New_York")
	require.NoError(t, err)

	testCases := []struct {
		name     string
		now      time.Time
		expected time.Time
	}{
		{name: "Late evening", now: time.Date(2026, 10, 14, 3, 59, 30, 0, time.UTC), expected: time.Date(2026, 10, 14, 4, 0, 0, 0, time.UTC)},
		{name: "Exactly midnight", now: time.Date(2026, 10, 14, 4, 0, 0, 0, time.UTC), expected: time.Date(2026, 10, 15, 4, 0, 0, 0, time.UTC)},
		{name: "Day the clocks go back", now: time.Date(2026, 11, 1, 17, 0, 0, 0, time.UTC), expected: time.Date(2026, 11, 2, 5, 0, 0, 0, time.UTC)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NextMidnight(tc.now, loc).UTC())
		})
	}
}
