// Package metrics holds the Prometheus collectors of the backend and the
// player. Both binaries expose them on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carevoice_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	ScheduleCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carevoice_schedule_cache_hits_total",
			Help: "Total number of schedule responses served from cache",
		},
	)

	ScheduleCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carevoice_schedule_cache_misses_total",
			Help: "Total number of schedule responses computed",
		},
	)

	// Device sessions
	PairingAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carevoice_pairing_attempts_total",
			Help: "Total number of pairing code redemptions by outcome",
		},
		[]string{"outcome"}, // "paired", "not_found", "expired", "error"
	)

	Heartbeats = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carevoice_heartbeats_total",
			Help: "Total number of device heartbeats accepted",
		},
	)

	// Emergency
	EmergencyBroadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carevoice_emergency_broadcasts_total",
			Help: "Total number of emergency broadcast state changes",
		},
		[]string{"action"}, // "create", "cancel"
	)

	PushNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carevoice_push_notifications_total",
			Help: "Total number of web push deliveries by result",
		},
		[]string{"result"}, // "sent", "gone", "error"
	)

	PlayLogs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carevoice_play_logs_total",
			Help: "Total number of play log reports by status",
		},
		[]string{"status"},
	)

	SweeperRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carevoice_sweeper_rows_total",
			Help: "Total number of rows changed by the background sweeper",
		},
		[]string{"task"}, // "broadcasts", "pairing_codes"
	)

	// Player
	PlayerPlaybacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carevoice_player_playbacks_total",
			Help: "Total number of playback attempts on this device",
		},
		[]string{"kind", "status"}, // kind: "schedule", "emergency"
	)

	PlayerPlaybackDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "carevoice_player_playback_duration_seconds",
			Help:    "Duration of playback attempts in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	PlayerFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carevoice_player_fetch_failures_total",
			Help: "Total number of failed backend calls from the player",
		},
		[]string{"call"}, // "schedule", "emergency", "heartbeat", "log"
	)

	PlayerConnectivity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "carevoice_player_connectivity_healthy",
			Help: "1 when the last schedule fetch succeeded, 0 when degraded",
		},
	)

	PlayerCacheFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carevoice_player_cache_fallbacks_total",
			Help: "Total number of schedule fetch failures by cache outcome",
		},
		[]string{"outcome"}, // "hit", "stale", "miss", "error"
	)
)

// ObservePlayback records one playback attempt.
func ObservePlayback(kind string, ok bool, d time.Duration) {
	status := "played"
	if !ok {
		status = "failed"
	}
	PlayerPlaybacks.WithLabelValues(kind, status).Inc()
	PlayerPlaybackDuration.Observe(d.Seconds())
}

// SetConnectivity sets the player connectivity gauge.
func SetConnectivity(healthy bool) {
	if healthy {
		PlayerConnectivity.Set(1)
		return
	}
	PlayerConnectivity.Set(0)
}
