// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"carevoice-backend/internal/db"
	"carevoice-backend/internal/model"
)

// NewSQLite opens a private in-memory database with all migrations applied.
func NewSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}

// Fixture is a minimal tenant: one organization with two rooms.
type Fixture struct {
	Org   model.Organization
	RoomA model.Room
	RoomB model.Room
}

// Seed creates an organization in tz with two rooms.
func Seed(t *testing.T, gormDB *gorm.DB, tz string) Fixture {
	t.Helper()

	f := Fixture{Org: model.Organization{Name: "Maple Grove", Timezone: tz, SubscriptionStatus: model.SubscriptionActive}}
	require.NoError(t, gormDB.Create(&f.Org).Error)
	f.RoomA = model.Room{OrganizationID: f.Org.ID, Name: "Dining Hall"}
	f.RoomB = model.Room{OrganizationID: f.Org.ID, Name: "East Wing"}
	require.NoError(t, gormDB.Create(&f.RoomA).Error)
	require.NoError(t, gormDB.Create(&f.RoomB).Error)
	return f
}

// TTS creates a text-to-speech announcement.
func TTS(t *testing.T, gormDB *gorm.DB, orgID, title string) model.Announcement {
	t.Helper()

	text := title + " now."
	a := model.Announcement{OrganizationID: orgID, Title: title, Type: model.AnnouncementTTS, Text: &text, Language: "en-US"}
	require.NoError(t, gormDB.Create(&a).Error)
	return a
}

// PairedDevice creates a device already paired into roomID.
func PairedDevice(t *testing.T, gormDB *gorm.DB, orgID string, roomID *string, name string) model.Device {
	t.Helper()

	seen := time.Now().UTC()
	d := model.Device{OrganizationID: orgID, RoomID: roomID, Name: name, Status: model.DevicePaired, LastSeenAt: &seen}
	require.NoError(t, gormDB.Create(&d).Error)
	return d
}
