package model

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// AnnouncementType discriminates the payload of an announcement.
type AnnouncementType string

const (
	AnnouncementTTS AnnouncementType = "TTS"
	AnnouncementMP3 AnnouncementType = "MP3"
)

// Announcement is either spoken text (TTS) or an uploaded audio file (MP3).
// Exactly one of Text and AudioURL is set, according to Type.
type Announcement struct {
	ID             string           `gorm:"primaryKey;size:36" json:"id"`
	OrganizationID string           `gorm:"size:36;index;not null" json:"organizationId"`
	Title          string           `gorm:"size:100;not null" json:"title"`
	Type           AnnouncementType `gorm:"size:8;not null" json:"type"`
	Text           *string          `json:"text"`
	AudioURL       *string          `gorm:"column:audio_url" json:"audioUrl"`
	Language       string           `gorm:"size:16;not null;default:en-US" json:"language"`
	Voice          *string          `gorm:"size:64" json:"voice"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`

	// Associations
	Organization *Organization `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Normalize clears the field that does not belong to the type and checks
// that the one that does is present.
func (a *Announcement) Normalize() error {
	switch a.Type {
	case AnnouncementTTS:
		if a.Text == nil || *a.Text == "" {
			return errors.New("TTS announcement requires text")
		}
		a.AudioURL = nil
	case AnnouncementMP3:
		if a.AudioURL == nil || *a.AudioURL == "" {
			return errors.New("MP3 announcement requires audioUrl")
		}
		a.Text = nil
	default:
		return errors.New("announcement type must be TTS or MP3")
	}
	if a.Language == "" {
		a.Language = "en-US"
	}
	return nil
}

func (a *Announcement) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = newID()
	}
	return nil
}
