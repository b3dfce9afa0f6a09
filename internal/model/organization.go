package model

import (
	"time"

	"gorm.io/gorm"
)

// SubscriptionStatus mirrors the billing state of an organization.
type SubscriptionStatus string

const (
	SubscriptionTrial    SubscriptionStatus = "TRIAL"
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionCanceled SubscriptionStatus = "CANCELED"
)

// AllowsMutation reports whether child entities of the organization may be changed.
func (s SubscriptionStatus) AllowsMutation() bool {
	return s == SubscriptionTrial || s == SubscriptionActive
}

// Organization is the tenant root.
type Organization struct {
	ID                 string             `gorm:"primaryKey;size:36" json:"id"`
	Name               string             `gorm:"size:128;not null" json:"name"`
	Timezone           string             `gorm:"size:64;not null;default:America/New_York" json:"timezone"`
	SubscriptionStatus SubscriptionStatus `gorm:"size:16;not null;default:TRIAL" json:"subscriptionStatus"`
	TrialEndsAt        *time.Time         `json:"trialEndsAt"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

func (o *Organization) BeforeCreate(*gorm.DB) error {
	if o.ID == "" {
		o.ID = newID()
	}
	if o.SubscriptionStatus == "" {
		o.SubscriptionStatus = SubscriptionTrial
	}
	return nil
}
