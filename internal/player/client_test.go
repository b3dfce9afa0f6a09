package player

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carevoice-backend/config"
	"carevoice-backend/internal/wire"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 2*time.Second, config.BreakerConfig{FailureThreshold: 3, OpenSeconds: 60}, zap.NewNop())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_Schedule(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/player/schedule", r.URL.Path)
		assert.Equal(t, "dev-1", r.URL.Query().Get("deviceId"))
		assert.Equal(t, "dev-1", r.Header.Get(wire.DeviceHeader))
		writeJSON(w, http.StatusOK, payload("2026-10-13", slotItem("morning", "09:00")))
	})

	got, err := c.Schedule(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-13", got.Date)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "morning", got.Items[0].ID)
}

func TestClient_Emergency(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/player/emergency", r.URL.Path)
		writeJSON(w, http.StatusOK, wire.EmergencyResponse{Active: true, ID: "b-1", Announcement: &wire.Announcement{ID: "fire", Title: "Fire drill"}})
	})

	got, err := c.Emergency(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.Equal(t, "Fire drill", got.Announcement.Title)
}

func TestClient_HeartbeatAndLog(t *testing.T) {
	var heartbeat wire.HeartbeatRequest
	var entry wire.LogRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		switch r.URL.Path {
		case "/api/player/heartbeat":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&heartbeat))
			writeJSON(w, http.StatusOK, wire.HeartbeatResponse{OK: true})
		case "/api/player/log":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&entry))
			writeJSON(w, http.StatusOK, wire.LogResponse{ID: "log-1", Status: entry.Status})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	require.NoError(t, c.Heartbeat(context.Background(), "dev-1"))
	assert.Equal(t, "dev-1", heartbeat.DeviceID)

	at := time.Date(2026, 10, 13, 13, 0, 0, 0, time.UTC)
	require.NoError(t, c.Log(context.Background(), wire.LogRequest{DeviceID: "dev-1", AnnouncementID: "ann-1", ScheduledAt: at, Status: wire.StatusPlayed}))
	assert.Equal(t, "ann-1", entry.AnnouncementID)
	assert.True(t, at.Equal(entry.ScheduledAt))
}

func TestClient_Pair(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		expected error
	}{
		{name: "Unknown code", status: http.StatusNotFound, expected: ErrCodeNotFound},
		{name: "Expired code", status: http.StatusGone, expected: ErrCodeExpired},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, wire.ErrorResponse{Error: "nope"})
			})
			_, err := c.Pair(context.Background(), "123456")
			assert.ErrorIs(t, err, tc.expected)
		})
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req wire.PairRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "123456", req.PairingCode)
		writeJSON(w, http.StatusOK, wire.PairResponse{
			DeviceID:     "dev-1",
			DeviceName:   "Lobby TV",
			Organization: wire.Organization{ID: "org-1", Name: "Maple Grove", Timezone: "America/New_York"},
		})
	})
	got, err := c.Pair(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, "dev-1", got.DeviceID)
	assert.Equal(t, "America/New_York", got.Organization.Timezone)
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusInternalServerError, wire.ErrorResponse{Error: "internal error"})
	})

	for i := 0; i < 3; i++ {
		_, err := c.Schedule(context.Background(), "dev-1")
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusInternalServerError, se.Code)
		assert.Equal(t, "internal error", se.Message)
	}
	assert.True(t, c.Open())

	_, err := c.Schedule(context.Background(), "dev-1")
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load(), "open breaker must not reach the backend")
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, wire.ErrorResponse{Error: "record not found"})
	})

	for i := 0; i < 5; i++ {
		_, err := c.Schedule(context.Background(), "missing")
		assert.Error(t, err)
	}
	assert.False(t, c.Open())
}
