package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carevoice-backend/config"
	"carevoice-backend/internal/api"
	"carevoice-backend/internal/auth"
	"carevoice-backend/internal/device"
	"carevoice-backend/internal/emergency"
	"carevoice-backend/internal/model"
	"carevoice-backend/internal/player"
	"carevoice-backend/internal/schedule"
	"carevoice-backend/internal/store"
	"carevoice-backend/internal/testutil"
	"carevoice-backend/internal/wire"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type recordingSpeaker struct{ spoken []string }

func (s *recordingSpeaker) Speak(_ context.Context, text, _ string) error {
	s.spoken = append(s.spoken, text)
	return nil
}

func (s *recordingSpeaker) PlayFile(_ context.Context, url string) error {
	s.spoken = append(s.spoken, url)
	return nil
}

// TestDeviceLifecycle drives a device from pairing through scheduled and
// emergency playback and then through a backend outage.
func TestDeviceLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	// --- Test Setup ---

	gormDB := testutil.NewSQLite(t)
	s := store.NewGormStore(gormDB)
	fx := testutil.Seed(t, gormDB, "America/New_York")
	// 08:59 on Tuesday 2026-10-13 in New York.
	clk := &clock{now: time.Date(2026, 10, 13, 12, 59, 0, 0, time.UTC)}
	log := zap.NewNop()

	handler := api.NewHandler(api.Deps{
		Store:     s,
		Resolver:  schedule.NewResolver(s),
		Devices:   device.NewService(s, clk, 3, log),
		Emergency: emergency.NewChannel(s, clk, nil, log),
		Clock:     clk,
		Billing:   config.BillingConfig{MaxRooms: 3, MaxDevices: 3},
		Log:       log,
	})
	tokens, err := auth.NewManager("integration-secret", time.Hour)
	require.NoError(t, err)
	owner, err := tokens.Issue(fx.Org.ID, "owner-1", auth.RoleOwner)
	require.NoError(t, err)

	server := httptest.NewServer(api.NewRouter(handler, &config.ServerConfig{
		RateLimitPerSec:  1000,
		RateLimitBurst:   1000,
		ScheduleCacheTTL: time.Second,
	}, tokens))
	defer server.Close()

	admin := func(method, path string, body any) *http.Response {
		t.Helper()
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req, err := http.NewRequest(method, server.URL+path, &buf)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+owner)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	// --- Admin configures the organization ---

	resp := admin("POST", "/api/admin/announcements", gin.H{"title": "Morning meds", "type": "TTS", "text": "Morning medication is ready."})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var meds model.Announcement
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&meds))

	resp = admin("POST", "/api/admin/schedules", gin.H{"name": "Weekdays"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var sched model.Schedule
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sched))

	resp = admin("POST", "/api/admin/schedules/"+sched.ID+"/items", gin.H{"announcementId": meds.ID, "timeOfDay": "09:00", "daysOfWeek": []int{1, 2, 3, 4, 5}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = admin("POST", "/api/admin/devices", gin.H{"name": "Dining TV", "roomId": fx.RoomA.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var registered model.Device
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&registered))
	require.NotNil(t, registered.PairingCode)

	// --- The device pairs ---

	client := player.NewClient(server.URL, 2*time.Second, config.BreakerConfig{FailureThreshold: 2, OpenSeconds: 60}, log)
	cache, err := player.OpenCache("")
	require.NoError(t, err)
	defer cache.Close()

	paired, err := client.Pair(ctx, *registered.PairingCode)
	require.NoError(t, err)
	require.NoError(t, cache.SaveIdentity(player.IdentityFromPairing(paired, clk.now)))
	identity, err := cache.Identity()
	require.NoError(t, err)
	assert.Equal(t, registered.ID, identity.DeviceID)
	assert.Equal(t, "Dining Hall", identity.RoomName)
	assert.Equal(t, "America/New_York", identity.Timezone)

	require.NoError(t, client.Heartbeat(ctx, identity.DeviceID))
	stored, err := s.GetDevice(ctx, identity.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, model.DevicePaired, stored.Status)
	assert.True(t, device.IsOnline(stored.LastSeenAt, clk.now))

	// --- Scheduled playback ---

	engine, err := player.NewEngine(identity.Timezone)
	require.NoError(t, err)
	speaker := &recordingSpeaker{}

	payload, err := client.Schedule(ctx, identity.DeviceID)
	require.NoError(t, err)
	require.NoError(t, cache.SaveSchedule(payload))
	assert.Equal(t, "2026-10-13", payload.Date)
	require.Len(t, payload.Items, 1)
	assert.Nil(t, engine.Tick(clk.now, payload, nil), "nothing is due at 08:59")

	clk.now = clk.now.Add(time.Minute)
	p := engine.Tick(clk.now, payload, nil)
	require.NotNil(t, p)
	require.NoError(t, player.Play(ctx, speaker, p.Announcement))
	engine.Finish()

	entry := wire.LogRequest{DeviceID: identity.DeviceID, AnnouncementID: p.Announcement.ID, ScheduledAt: p.ScheduledAt, Status: wire.StatusPlayed}
	require.NoError(t, client.Log(ctx, entry))
	// A retried report for the same slot collapses into the same row.
	require.NoError(t, client.Log(ctx, entry))

	assert.Nil(t, engine.Tick(clk.now.Add(30*time.Second), payload, nil))
	assert.Equal(t, []string{"Morning medication is ready."}, speaker.spoken)

	logs, err := s.ListPlayLogs(ctx, fx.Org.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.PlayPlayed, logs[0].Status)
	assert.True(t, time.Date(2026, 10, 13, 13, 0, 0, 0, time.UTC).Equal(logs[0].ScheduledAt))

	// --- Emergency override ---

	resp = admin("POST", "/api/admin/emergency", gin.H{"announcementId": meds.ID, "durationMinutes": 15})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	em, err := client.Emergency(ctx, identity.DeviceID)
	require.NoError(t, err)
	require.True(t, em.Active)
	p = engine.Tick(clk.now, payload, em)
	require.NotNil(t, p)
	assert.Equal(t, player.KindEmergency, p.Kind)
	engine.Finish()
	assert.Nil(t, engine.Tick(clk.now.Add(15*time.Second), payload, em), "an emergency plays once per session")

	clk.now = clk.now.Add(16 * time.Minute)
	em, err = client.Emergency(ctx, identity.DeviceID)
	require.NoError(t, err)
	assert.False(t, em.Active, "the broadcast expires without a cancel")

	// --- Backend outage ---

	server.Close()
	for i := 0; i < 3; i++ {
		_, err = client.Schedule(ctx, identity.DeviceID)
		assert.Error(t, err)
	}
	assert.True(t, client.Open())

	cached, err := cache.LoadSchedule(identity.DeviceID, "2026-10-13")
	require.NoError(t, err)
	assert.Len(t, cached.Items, 1)

	_, err = cache.LoadSchedule(identity.DeviceID, "2026-10-14")
	assert.ErrorIs(t, err, player.ErrStale)
}
