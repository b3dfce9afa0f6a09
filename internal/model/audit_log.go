package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog captures before/after snapshots of administrative actions.
type AuditLog struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	OrganizationID string         `gorm:"size:36;index;not null" json:"organizationId"`
	ActorID        string         `gorm:"size:64" json:"actorId"`
	Action         string         `gorm:"size:64;not null" json:"action"`
	EntityType     string         `gorm:"size:64;not null" json:"entityType"`
	EntityID       string         `gorm:"size:36;not null" json:"entityId"`
	OldValue       datatypes.JSON `json:"oldValue"`
	NewValue       datatypes.JSON `json:"newValue"`
	CreatedAt      time.Time      `json:"createdAt"`
}

func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = newID()
	}
	return nil
}
