package player

import (
	"fmt"
	"time"

	"carevoice-backend/internal/orgtime"
	"carevoice-backend/internal/wire"
)

const (
	KindSchedule  = "schedule"
	KindEmergency = "emergency"
)

// Playback is one announcement the engine decided to play.
type Playback struct {
	Kind string
	// SourceID is the schedule item id or the broadcast id.
	SourceID     string
	Announcement wire.Announcement
	ScheduledAt  time.Time
}

// Engine decides, once per tick, whether anything should start playing.
// It is not safe for concurrent use; the runner owns it.
type Engine struct {
	timezone string
	loc      *time.Location

	date        string
	played      map[string]struct{}
	emergencies map[string]struct{}
	playing     *Playback
}

// NewEngine creates an engine that reads wall-clock time in timezone.
func NewEngine(timezone string) (*Engine, error) {
	loc, err := orgtime.Location(timezone)
	if err != nil {
		return nil, err
	}
	return &Engine{
		timezone:    timezone,
		loc:         loc,
		played:      make(map[string]struct{}),
		emergencies: make(map[string]struct{}),
	}, nil
}

// Location returns the organization timezone the engine decides in.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// setTimezone follows a timezone change reported by the backend.
func (e *Engine) setTimezone(tz string) {
	if tz == "" || tz == e.timezone {
		return
	}
	if loc, err := orgtime.Location(tz); err == nil {
		e.timezone, e.loc = tz, loc
	}
}

// Playing reports whether a playback is in progress.
func (e *Engine) Playing() bool {
	return e.playing != nil
}

// Tick returns the playback to start at now, or nil. A returned playback is
// already marked as played and in progress; call Finish when it ends.
//
// An unplayed active emergency wins over scheduled items. Scheduled items
// play only when their time of day equals the current minute and the
// payload is for the current org-local date.
func (e *Engine) Tick(now time.Time, sched *wire.ScheduleResponse, em *wire.EmergencyResponse) *Playback {
	if sched != nil {
		e.setTimezone(sched.Timezone)
	}
	m := orgtime.At(now, e.loc)
	if m.Date() != e.date {
		e.date = m.Date()
		clear(e.played)
	}
	if e.playing != nil {
		return nil
	}

	if p := e.emergency(now, em); p != nil {
		e.emergencies[p.SourceID] = struct{}{}
		e.playing = p
		return p
	}

	if sched == nil || sched.Date != m.Date() {
		return nil
	}
	current := m.TimeOfDay()
	for _, item := range sched.Items {
		if item.TimeOfDay != current {
			continue
		}
		key := slotKey(m.Date(), item.ID)
		if _, done := e.played[key]; done {
			continue
		}
		at, err := orgtime.SlotInstant(m.Date(), item.TimeOfDay, e.loc)
		if err != nil {
			continue
		}
		e.played[key] = struct{}{}
		e.playing = &Playback{
			Kind:         KindSchedule,
			SourceID:     item.ID,
			Announcement: item.Announcement,
			ScheduledAt:  at,
		}
		return e.playing
	}
	return nil
}

func (e *Engine) emergency(now time.Time, em *wire.EmergencyResponse) *Playback {
	if em == nil || !em.Active || em.ID == "" || em.Announcement == nil {
		return nil
	}
	if _, done := e.emergencies[em.ID]; done {
		return nil
	}
	if em.ExpiresAt != nil && !em.ExpiresAt.After(now) {
		return nil
	}
	at := now
	if em.CreatedAt != nil {
		at = *em.CreatedAt
	}
	return &Playback{
		Kind:         KindEmergency,
		SourceID:     em.ID,
		Announcement: *em.Announcement,
		ScheduledAt:  at,
	}
}

// Finish clears the in-progress playback.
func (e *Engine) Finish() {
	e.playing = nil
}

// Next returns the first item of today's payload strictly after the
// current minute, or nil when the day is exhausted.
func (e *Engine) Next(now time.Time, sched *wire.ScheduleResponse) *wire.ScheduleItem {
	m := orgtime.At(now, e.loc)
	if sched == nil || sched.Date != m.Date() {
		return nil
	}
	current := m.TimeOfDay()
	for i := range sched.Items {
		if sched.Items[i].TimeOfDay > current {
			return &sched.Items[i]
		}
	}
	return nil
}

func slotKey(date, itemID string) string {
	return fmt.Sprintf("%s|%s", date, itemID)
}
