package player

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"carevoice-backend/config"
	"carevoice-backend/internal/metrics"
	"carevoice-backend/internal/orgtime"
	"carevoice-backend/internal/wire"
)

const (
	// TickInterval is how often the engine is asked for a decision.
	TickInterval = time.Second
	// StaleRetryInterval spaces out refetches of a payload dated for another
	// day, which happens right after the org-local date rolls over.
	StaleRetryInterval = 5 * time.Second
)

// Backend is the subset of Client the runner calls.
type Backend interface {
	Schedule(ctx context.Context, deviceID string) (*wire.ScheduleResponse, error)
	Emergency(ctx context.Context, deviceID string) (*wire.EmergencyResponse, error)
	Heartbeat(ctx context.Context, deviceID string) error
	Log(ctx context.Context, entry wire.LogRequest) error
}

// ScheduleCache is the subset of Cache the runner calls.
type ScheduleCache interface {
	SaveSchedule(s *wire.ScheduleResponse) error
	LoadSchedule(deviceID, today string) (*wire.ScheduleResponse, error)
}

type scheduleResult struct {
	payload *wire.ScheduleResponse
	err     error
}

type emergencyResult struct {
	payload *wire.EmergencyResponse
	err     error
}

type playResult struct {
	playback *Playback
	err      error
	took     time.Duration
}

// Runner is the device session loop. All session state is owned by the
// goroutine running Run; network calls and playback run on their own
// goroutines and report back over channels.
type Runner struct {
	cfg      *config.PlayerConfig
	identity Identity
	backend  Backend
	cache    ScheduleCache
	speaker  Speaker
	clock    orgtime.Clock
	log      *zap.Logger

	engine    *Engine
	schedule  *wire.ScheduleResponse
	emergency *wire.EmergencyResponse
	healthy   bool

	fetching   bool
	staleFetch time.Time

	schedules   chan scheduleResult
	emergencies chan emergencyResult
	finished    chan playResult
}

// NewRunner creates the session loop for a paired device.
func NewRunner(cfg *config.PlayerConfig, identity Identity, backend Backend, cache ScheduleCache, speaker Speaker, clock orgtime.Clock, log *zap.Logger) (*Runner, error) {
	engine, err := NewEngine(identity.Timezone)
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:         cfg,
		identity:    identity,
		backend:     backend,
		cache:       cache,
		speaker:     speaker,
		clock:       clock,
		log:         log.With(zap.String("device_id", identity.DeviceID)),
		engine:      engine,
		healthy:     true,
		schedules:   make(chan scheduleResult, 1),
		emergencies: make(chan emergencyResult, 1),
		finished:    make(chan playResult, 1),
	}, nil
}

// Run polls, ticks and plays until ctx is done. It never returns early
// because of a backend or playback failure.
func (r *Runner) Run(ctx context.Context) {
	r.log.Info("player starting",
		zap.String("device", r.identity.DeviceName),
		zap.String("organization", r.identity.OrganizationName),
		zap.String("timezone", r.identity.Timezone))
	metrics.SetConnectivity(true)

	r.fetchSchedule(ctx)
	r.fetchEmergency(ctx)
	r.sendHeartbeat(ctx)

	scheduleTicker := time.NewTicker(r.cfg.ScheduleInterval)
	defer scheduleTicker.Stop()
	emergencyTicker := time.NewTicker(r.cfg.EmergencyInterval)
	defer emergencyTicker.Stop()
	heartbeatTicker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer heartbeatTicker.Stop()
	clockTicker := time.NewTicker(TickInterval)
	defer clockTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("player shutting down")
			return
		case <-scheduleTicker.C:
			r.fetchSchedule(ctx)
		case <-emergencyTicker.C:
			r.fetchEmergency(ctx)
		case <-heartbeatTicker.C:
			r.sendHeartbeat(ctx)
		case res := <-r.schedules:
			r.applySchedule(res)
		case res := <-r.emergencies:
			r.applyEmergency(res)
		case res := <-r.finished:
			r.finish(ctx, res)
		case <-clockTicker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.cfg.RequestTimeout)
}

func (r *Runner) fetchSchedule(ctx context.Context) {
	r.fetching = true
	go func() {
		callCtx, cancel := r.callContext(ctx)
		defer cancel()
		payload, err := r.backend.Schedule(callCtx, r.identity.DeviceID)
		select {
		case r.schedules <- scheduleResult{payload: payload, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (r *Runner) fetchEmergency(ctx context.Context) {
	go func() {
		callCtx, cancel := r.callContext(ctx)
		defer cancel()
		payload, err := r.backend.Emergency(callCtx, r.identity.DeviceID)
		select {
		case r.emergencies <- emergencyResult{payload: payload, err: err}:
		case <-ctx.Done():
		}
	}()
}

// sendHeartbeat is fire-and-forget.
func (r *Runner) sendHeartbeat(ctx context.Context) {
	go func() {
		callCtx, cancel := r.callContext(ctx)
		defer cancel()
		if err := r.backend.Heartbeat(callCtx, r.identity.DeviceID); err != nil {
			r.log.Debug("heartbeat failed", zap.Error(err))
		}
	}()
}

// report is fire-and-forget.
func (r *Runner) report(ctx context.Context, entry wire.LogRequest) {
	go func() {
		callCtx, cancel := r.callContext(ctx)
		defer cancel()
		if err := r.backend.Log(callCtx, entry); err != nil {
			r.log.Debug("play log failed", zap.String("announcement_id", entry.AnnouncementID), zap.Error(err))
		}
	}()
}

func (r *Runner) setHealthy(healthy bool) {
	if healthy != r.healthy {
		if healthy {
			r.log.Info("backend reachable again")
		} else {
			r.log.Warn("backend unreachable, running from cache")
		}
	}
	r.healthy = healthy
	metrics.SetConnectivity(healthy)
}

func (r *Runner) applySchedule(res scheduleResult) {
	r.fetching = false
	if res.err == nil && res.payload != nil {
		r.setHealthy(true)
		r.schedule = res.payload
		if err := r.cache.SaveSchedule(res.payload); err != nil {
			r.log.Error("failed to cache schedule", zap.Error(err))
		}
		r.logNext()
		return
	}

	r.setHealthy(false)
	r.log.Debug("schedule fetch failed", zap.Error(res.err))

	today := orgtime.At(r.clock.Now(), r.engine.Location()).Date()
	cached, err := r.cache.LoadSchedule(r.identity.DeviceID, today)
	switch {
	case err == nil:
		metrics.PlayerCacheFallbacks.WithLabelValues("hit").Inc()
		r.schedule = cached
	case errors.Is(err, ErrStale):
		metrics.PlayerCacheFallbacks.WithLabelValues("stale").Inc()
		r.log.Warn("discarded cached schedule from another day")
		r.schedule = nil
	case errors.Is(err, ErrNoCache):
		metrics.PlayerCacheFallbacks.WithLabelValues("miss").Inc()
		r.schedule = nil
	default:
		metrics.PlayerCacheFallbacks.WithLabelValues("error").Inc()
		r.log.Error("failed to read cached schedule", zap.Error(err))
		r.schedule = nil
	}
}

// applyEmergency fails open: an unreachable backend means no emergency.
func (r *Runner) applyEmergency(res emergencyResult) {
	if res.err != nil {
		r.log.Debug("emergency poll failed", zap.Error(res.err))
		r.emergency = nil
		return
	}
	r.emergency = res.payload
}

// refetchIfStale asks for a new payload when the one held is dated for
// another day, so items early in the new day are not left to the next poll.
func (r *Runner) refetchIfStale(ctx context.Context, now time.Time) {
	if r.schedule == nil || r.fetching {
		return
	}
	if r.schedule.Date == orgtime.At(now, r.engine.Location()).Date() {
		return
	}
	if now.Sub(r.staleFetch) < StaleRetryInterval {
		return
	}
	r.staleFetch = now
	r.log.Info("schedule is for another day, refetching", zap.String("date", r.schedule.Date))
	r.fetchSchedule(ctx)
}

func (r *Runner) tick(ctx context.Context) {
	now := r.clock.Now()
	r.refetchIfStale(ctx, now)

	p := r.engine.Tick(now, r.schedule, r.emergency)
	if p == nil {
		return
	}
	r.log.Info("playing announcement",
		zap.String("kind", p.Kind),
		zap.String("title", p.Announcement.Title),
		zap.Time("scheduled_at", p.ScheduledAt))

	go func() {
		start := time.Now()
		err := Play(ctx, r.speaker, p.Announcement)
		select {
		case r.finished <- playResult{playback: p, err: err, took: time.Since(start)}:
		case <-ctx.Done():
		}
	}()
}

func (r *Runner) finish(ctx context.Context, res playResult) {
	r.engine.Finish()
	metrics.ObservePlayback(res.playback.Kind, res.err == nil, res.took)

	status := wire.StatusPlayed
	if res.err != nil {
		status = wire.StatusFailed
		r.log.Error("playback failed",
			zap.String("title", res.playback.Announcement.Title),
			zap.Error(res.err))
	}
	r.report(ctx, wire.LogRequest{
		DeviceID:       r.identity.DeviceID,
		AnnouncementID: res.playback.Announcement.ID,
		ScheduledAt:    res.playback.ScheduledAt.UTC().Truncate(time.Second),
		Status:         status,
	})
	r.logNext()
}

func (r *Runner) logNext() {
	if next := r.engine.Next(r.clock.Now(), r.schedule); next != nil {
		r.log.Info("next announcement",
			zap.String("time", next.TimeOfDay),
			zap.String("title", next.Announcement.Title))
	}
}
