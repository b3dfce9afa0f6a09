package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Schedule owns an ordered collection of items. Only active schedules are
// considered when resolving a device's day.
type Schedule struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	OrganizationID string    `gorm:"size:36;index;not null" json:"organizationId"`
	Name           string    `gorm:"size:100;not null" json:"name"`
	Active         bool      `gorm:"not null" json:"active"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	// Associations
	Organization *Organization `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Items        []ScheduleItem `gorm:"foreignKey:ScheduleID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (s *Schedule) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = newID()
	}
	return nil
}

// ScheduleItem plays one announcement at TimeOfDay (org-local "HH:MM") on
// each weekday in DaysOfWeek (0=Sunday..6=Saturday). A nil RoomID targets
// every room of the organization.
type ScheduleItem struct {
	ID             string                   `gorm:"primaryKey;size:36" json:"id"`
	ScheduleID     string                   `gorm:"size:36;index;not null" json:"scheduleId"`
	AnnouncementID string                   `gorm:"size:36;index;not null" json:"announcementId"`
	RoomID         *string                  `gorm:"size:36;index" json:"roomId"`
	TimeOfDay      string                   `gorm:"size:5;not null" json:"timeOfDay"`
	DaysOfWeek     datatypes.JSONSlice[int] `gorm:"not null" json:"daysOfWeek"`
	Enabled        bool                     `gorm:"not null" json:"enabled"`
	Order          int                      `gorm:"column:sort_order;not null;default:0" json:"order"`
	CreatedAt      time.Time                `json:"createdAt"`
	UpdatedAt      time.Time                `json:"updatedAt"`

	// Associations
	Announcement *Announcement `gorm:"constraint:OnDelete:CASCADE" json:"announcement,omitempty"`
	Room         *Room         `gorm:"constraint:OnDelete:SET NULL" json:"room,omitempty"`
}

// RunsOn reports whether the item is scheduled on weekday (0=Sunday).
func (i ScheduleItem) RunsOn(weekday int) bool {
	for _, d := range i.DaysOfWeek {
		if d == weekday {
			return true
		}
	}
	return false
}

func (i *ScheduleItem) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = newID()
	}
	return nil
}
