package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"carevoice-backend/internal/model"
)

// Store defines every persistence operation. All queries except the
// player-facing device lookups are scoped by organization id.
type Store interface {
	DB() *gorm.DB

	CreateOrganization(ctx context.Context, org *model.Organization) error
	GetOrganization(ctx context.Context, orgID string) (*model.Organization, error)
	SetSubscriptionStatus(ctx context.Context, orgID string, status model.SubscriptionStatus) error

	ListRooms(ctx context.Context, orgID string) ([]model.Room, error)
	GetRoom(ctx context.Context, orgID, roomID string) (*model.Room, error)
	CreateRoom(ctx context.Context, room *model.Room, maxRooms int) error
	RenameRoom(ctx context.Context, orgID, roomID, name string) (*model.Room, error)
	DeleteRoom(ctx context.Context, orgID, roomID string) error

	ListDevices(ctx context.Context, orgID string) ([]model.Device, error)
	GetDevice(ctx context.Context, deviceID string) (*model.Device, error)
	GetOrgDevice(ctx context.Context, orgID, deviceID string) (*model.Device, error)
	CreateDevice(ctx context.Context, device *model.Device, maxDevices int) error
	UpdateDevice(ctx context.Context, orgID, deviceID string, name *string, roomID **string) (*model.Device, error)
	DeleteDevice(ctx context.Context, orgID, deviceID string) error
	PairingCodeInUse(ctx context.Context, code string) (bool, error)
	SetPairingCode(ctx context.Context, orgID, deviceID, code string, expiresAt time.Time) (*model.Device, error)
	FindByPairingCode(ctx context.Context, code string) (*model.Device, error)
	MarkPaired(ctx context.Context, deviceID, code string, now time.Time) error
	TouchDevice(ctx context.Context, deviceID string, now time.Time) error
	ClearExpiredPairingCodes(ctx context.Context, before time.Time) (int64, error)

	ListAnnouncements(ctx context.Context, orgID string) ([]model.Announcement, error)
	GetAnnouncement(ctx context.Context, orgID, announcementID string) (*model.Announcement, error)
	CreateAnnouncement(ctx context.Context, a *model.Announcement) error
	SaveAnnouncement(ctx context.Context, a *model.Announcement) error
	DeleteAnnouncement(ctx context.Context, orgID, announcementID string) error

	ListSchedules(ctx context.Context, orgID string) ([]model.Schedule, error)
	GetSchedule(ctx context.Context, orgID, scheduleID string) (*model.Schedule, error)
	CreateSchedule(ctx context.Context, s *model.Schedule) error
	UpdateSchedule(ctx context.Context, orgID, scheduleID string, name *string, active *bool) (*model.Schedule, error)
	DeleteSchedule(ctx context.Context, orgID, scheduleID string) error
	GetScheduleItem(ctx context.Context, orgID, scheduleID, itemID string) (*model.ScheduleItem, error)
	CreateScheduleItem(ctx context.Context, orgID string, item *model.ScheduleItem) error
	SaveScheduleItem(ctx context.Context, orgID string, item *model.ScheduleItem) error
	DeleteScheduleItem(ctx context.Context, orgID, scheduleID, itemID string) error
	ReorderScheduleItems(ctx context.Context, orgID, scheduleID string, order map[string]int) error
	ActiveSchedulesForRoom(ctx context.Context, orgID string, roomID *string) ([]model.Schedule, error)

	CreateBroadcast(ctx context.Context, b *model.EmergencyBroadcast, actorID string) error
	CancelBroadcast(ctx context.Context, orgID, broadcastID, actorID string) (bool, error)
	ActiveBroadcast(ctx context.Context, orgID string, now time.Time) (*model.EmergencyBroadcast, error)
	GetBroadcast(ctx context.Context, broadcastID string) (*model.EmergencyBroadcast, error)
	DeactivateExpiredBroadcasts(ctx context.Context, now time.Time) (int64, error)

	UpsertPlayLog(ctx context.Context, entry *model.PlayLog) error
	ListPlayLogs(ctx context.Context, orgID string, limit int) ([]model.PlayLog, error)

	ListAuditLogs(ctx context.Context, orgID string, limit int) ([]model.AuditLog, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
