package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carevoice-backend/internal/wire"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenCache("")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_Schedule(t *testing.T) {
	c := newTestCache(t)

	_, err := c.LoadSchedule("dev-1", "2026-10-13")
	assert.ErrorIs(t, err, ErrNoCache)

	require.NoError(t, c.SaveSchedule(payload("2026-10-13", slotItem("morning", "09:00"))))

	got, err := c.LoadSchedule("dev-1", "2026-10-13")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-13", got.Date)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "09:00", got.Items[0].TimeOfDay)
	assert.Equal(t, "morning now.", *got.Items[0].Announcement.Text)

	_, err = c.LoadSchedule("dev-2", "2026-10-13")
	assert.ErrorIs(t, err, ErrNoCache)
}

func TestCache_StaleScheduleIsDiscarded(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.SaveSchedule(payload("2026-10-12", slotItem("morning", "09:00"))))

	_, err := c.LoadSchedule("dev-1", "2026-10-13")
	assert.ErrorIs(t, err, ErrStale)

	_, err = c.LoadSchedule("dev-1", "2026-10-12")
	assert.ErrorIs(t, err, ErrNoCache)
}

func TestCache_SaveOverwrites(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.SaveSchedule(payload("2026-10-13", slotItem("a", "09:00"))))
	require.NoError(t, c.SaveSchedule(payload("2026-10-13", slotItem("b", "10:00"), slotItem("c", "11:00"))))

	got, err := c.LoadSchedule("dev-1", "2026-10-13")
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)
}

func TestCache_RequiresDeviceID(t *testing.T) {
	c := newTestCache(t)
	assert.Error(t, c.SaveSchedule(&wire.ScheduleResponse{Date: "2026-10-13"}))
}

func TestCache_Identity(t *testing.T) {
	c := newTestCache(t)

	_, err := c.Identity()
	assert.ErrorIs(t, err, ErrNotPaired)

	paired := &wire.PairResponse{
		DeviceID:     "dev-1",
		DeviceName:   "Lobby TV",
		Room:         &wire.Room{ID: "room-1", Name: "Lobby"},
		Organization: wire.Organization{ID: "org-1", Name: "Maple Grove", Timezone: "America/New_York"},
	}
	now := time.Date(2026, 10, 13, 13, 0, 0, 0, time.UTC)
	require.NoError(t, c.SaveIdentity(IdentityFromPairing(paired, now)))

	id, err := c.Identity()
	require.NoError(t, err)
	assert.Equal(t, "dev-1", id.DeviceID)
	assert.Equal(t, "Lobby", id.RoomName)
	assert.Equal(t, "America/New_York", id.Timezone)
	assert.True(t, now.Equal(id.PairedAt))
}
