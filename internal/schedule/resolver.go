// Package schedule computes the announcement slots a device should hear on
// the organization's current day.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"carevoice-backend/internal/model"
	"carevoice-backend/internal/orgtime"
)

// Slot is one schedule item that applies today.
type Slot struct {
	ItemID       string
	ScheduleID   string
	ScheduleName string
	TimeOfDay    string
	DaysOfWeek   []int
	Order        int
	Room         *model.Room
	Announcement model.Announcement
}

// Day is the resolved schedule for one device on one org-local date.
type Day struct {
	Organization model.Organization
	Timezone     string
	Date         string
	Weekday      int
	Slots        []Slot
}

// Source is the slice of the entity store the resolver reads.
type Source interface {
	GetOrganization(ctx context.Context, orgID string) (*model.Organization, error)
	ActiveSchedulesForRoom(ctx context.Context, orgID string, roomID *string) ([]model.Schedule, error)
}

// Resolver resolves today's schedule for a room.
type Resolver struct {
	source Source
}

func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// ResolveToday returns the ordered slots for roomID on the organization's
// local date at now. Either the full list or an error is returned.
func (r *Resolver) ResolveToday(ctx context.Context, orgID string, roomID *string, now time.Time) (*Day, error) {
	org, err := r.source.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("resolve schedule: %w", err)
	}
	loc, err := orgtime.Location(org.Timezone)
	if err != nil {
		return nil, fmt.Errorf("resolve schedule for org %s: %w", orgID, err)
	}
	schedules, err := r.source.ActiveSchedulesForRoom(ctx, orgID, roomID)
	if err != nil {
		return nil, fmt.Errorf("resolve schedule: %w", err)
	}

	m := orgtime.At(now, loc)
	return &Day{
		Organization: *org,
		Timezone:     org.Timezone,
		Date:         m.Date(),
		Weekday:      m.Weekday(),
		Slots:        Resolve(schedules, roomID, m.Weekday()),
	}, nil
}

// Resolve flattens the items of every active schedule that are enabled,
// target all rooms or roomID, and run on weekday. The result is sorted by
// time of day, then order; item id breaks any remaining tie.
func Resolve(schedules []model.Schedule, roomID *string, weekday int) []Slot {
	seen := make(map[string]struct{})
	slots := make([]Slot, 0)

	for _, s := range schedules {
		if !s.Active {
			continue
		}
		for _, item := range s.Items {
			if !item.Enabled || !item.RunsOn(weekday) || !targets(item.RoomID, roomID) {
				continue
			}
			if item.Announcement == nil {
				continue
			}
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}

			slots = append(slots, Slot{
				ItemID:       item.ID,
				ScheduleID:   s.ID,
				ScheduleName: s.Name,
				TimeOfDay:    item.TimeOfDay,
				DaysOfWeek:   append([]int(nil), item.DaysOfWeek...),
				Order:        item.Order,
				Room:         item.Room,
				Announcement: *item.Announcement,
			})
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.TimeOfDay != b.TimeOfDay {
			return a.TimeOfDay < b.TimeOfDay
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ItemID < b.ItemID
	})
	return slots
}

// targets reports whether an item aimed at itemRoom applies to a device in
// deviceRoom. Items without a room apply everywhere; a device without a room
// only receives those.
func targets(itemRoom, deviceRoom *string) bool {
	if itemRoom == nil {
		return true
	}
	return deviceRoom != nil && *itemRoom == *deviceRoom
}
