// Package wire defines the JSON bodies exchanged between the backend and
// playback devices.
package wire

import "time"

const (
	TypeTTS = "TTS"
	TypeMP3 = "MP3"

	StatusPlayed = "PLAYED"
	StatusFailed = "FAILED"

	// DeviceHeader carries the device id on player requests.
	DeviceHeader = "X-Device-ID"
)

type Organization struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

type Room struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Room *Room  `json:"room"`
}

type Announcement struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Type     string  `json:"type"`
	Text     *string `json:"text"`
	AudioURL *string `json:"audioUrl"`
	Language string  `json:"language"`
	Voice    *string `json:"voice"`
}

type ScheduleItem struct {
	ID           string       `json:"id"`
	ScheduleID   string       `json:"scheduleId"`
	ScheduleName string       `json:"scheduleName"`
	TimeOfDay    string       `json:"timeOfDay"`
	DaysOfWeek   []int        `json:"daysOfWeek"`
	Order        int          `json:"order"`
	Room         *Room        `json:"room"`
	Announcement Announcement `json:"announcement"`
}

// ScheduleResponse is today's resolved schedule for one device. Date and
// DayOfWeek are org-local.
type ScheduleResponse struct {
	Device       Device         `json:"device"`
	Organization Organization   `json:"organization"`
	Timezone     string         `json:"timezone"`
	Date         string         `json:"date"`
	DayOfWeek    int            `json:"dayOfWeek"`
	Items        []ScheduleItem `json:"items"`
}

type EmergencyResponse struct {
	Active       bool          `json:"active"`
	ID           string        `json:"id,omitempty"`
	Announcement *Announcement `json:"announcement,omitempty"`
	ExpiresAt    *time.Time    `json:"expiresAt,omitempty"`
	CreatedAt    *time.Time    `json:"createdAt,omitempty"`
}

type HeartbeatRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
}

type HeartbeatResponse struct {
	OK         bool      `json:"ok"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

type LogRequest struct {
	DeviceID       string    `json:"deviceId" binding:"required"`
	AnnouncementID string    `json:"announcementId" binding:"required"`
	ScheduledAt    time.Time `json:"scheduledAt" binding:"required"`
	Status         string    `json:"status" binding:"required,oneof=PLAYED SKIPPED FAILED"`
}

type LogResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type PairRequest struct {
	PairingCode string `json:"pairingCode" binding:"required,len=6,numeric"`
}

type PairResponse struct {
	DeviceID     string       `json:"deviceId"`
	DeviceName   string       `json:"deviceName"`
	Room         *Room        `json:"room"`
	Organization Organization `json:"organization"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
