package model

import (
	"time"

	"gorm.io/gorm"
)

// Room groups devices inside an organization.
type Room struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	OrganizationID string    `gorm:"size:36;index;not null" json:"organizationId"`
	Name           string    `gorm:"size:100;not null" json:"name"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	// Associations
	Organization *Organization `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (r *Room) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = newID()
	}
	return nil
}
