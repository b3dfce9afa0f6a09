package api

import (
	"time"

	"carevoice-backend/internal/model"
	"carevoice-backend/internal/schedule"
	"carevoice-backend/internal/wire"
)

func wireOrganization(o *model.Organization) wire.Organization {
	if o == nil {
		return wire.Organization{}
	}
	return wire.Organization{ID: o.ID, Name: o.Name, Timezone: o.Timezone}
}

func wireRoom(r *model.Room) *wire.Room {
	if r == nil {
		return nil
	}
	return &wire.Room{ID: r.ID, Name: r.Name}
}

func wireAnnouncement(a *model.Announcement) wire.Announcement {
	return wire.Announcement{
		ID:       a.ID,
		Title:    a.Title,
		Type:     string(a.Type),
		Text:     a.Text,
		AudioURL: a.AudioURL,
		Language: a.Language,
		Voice:    a.Voice,
	}
}

func wireSchedule(d *model.Device, day *schedule.Day) wire.ScheduleResponse {
	items := make([]wire.ScheduleItem, 0, len(day.Slots))
	for _, s := range day.Slots {
		items = append(items, wire.ScheduleItem{
			ID:           s.ItemID,
			ScheduleID:   s.ScheduleID,
			ScheduleName: s.ScheduleName,
			TimeOfDay:    s.TimeOfDay,
			DaysOfWeek:   s.DaysOfWeek,
			Order:        s.Order,
			Room:         wireRoom(s.Room),
			Announcement: wireAnnouncement(&s.Announcement),
		})
	}
	return wire.ScheduleResponse{
		Device:       wire.Device{ID: d.ID, Name: d.Name, Room: wireRoom(d.Room)},
		Organization: wireOrganization(&day.Organization),
		Timezone:     day.Timezone,
		Date:         day.Date,
		DayOfWeek:    day.Weekday,
		Items:        items,
	}
}

func wireEmergency(b *model.EmergencyBroadcast) wire.EmergencyResponse {
	if b == nil {
		return wire.EmergencyResponse{Active: false}
	}
	resp := wire.EmergencyResponse{Active: true, ID: b.ID, ExpiresAt: b.ExpiresAt}
	created := b.CreatedAt
	resp.CreatedAt = &created
	if b.Announcement != nil {
		a := wireAnnouncement(b.Announcement)
		resp.Announcement = &a
	}
	return resp
}

// deviceView is the admin representation of a device with derived liveness.
type deviceView struct {
	model.Device
	Online bool `json:"online"`
}

func newDeviceView(d model.Device, online func(*time.Time) bool) deviceView {
	return deviceView{Device: d, Online: online(d.LastSeenAt)}
}
