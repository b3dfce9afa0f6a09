package model

import "time"

// PushSubscription holds a browser push endpoint registered by an
// organization admin to receive emergency alerts.
type PushSubscription struct {
	Endpoint       string    `gorm:"primaryKey"`
	OrganizationID string    `gorm:"size:36;index;not null"`
	UserID         string    `gorm:"size:64"`
	P256DH         string    `gorm:"column:p256dh;not null"`
	Auth           string    `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
}
