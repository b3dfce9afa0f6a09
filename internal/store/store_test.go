package store_test

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"carevoice-backend/internal/model"
	"carevoice-backend/internal/store"
	"carevoice-backend/internal/testutil"
)

// A helper function to create a mock database connection.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}

func TestGormStore_TouchDevice_SQL(t *testing.T) {
	now := time.Date(2026, 10, 13, 13, 0, 0, 0, time.UTC)

	testCases := []struct {
		name        string
		rowsUpdated int64
		expectedErr error
	}{
		{name: "Known device updates last_seen_at only", rowsUpdated: 1},
		{name: "Unknown device is not found", rowsUpdated: 0, expectedErr: store.ErrNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newMockDB(t)
			s := store.NewGormStore(gormDB)

			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta(`UPDATE "devices" SET "last_seen_at"=$1,"updated_at"=$2 WHERE id = $3`)).
				WithArgs(now, Any{}, "dev-1").
				WillReturnResult(sqlmock.NewResult(0, tc.rowsUpdated))
			mock.ExpectCommit()

			err := s.TouchDevice(context.Background(), "dev-1", now)
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_DeactivateExpiredBroadcasts_SQL(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := store.NewGormStore(gormDB)
	now := time.Date(2026, 10, 13, 13, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "emergency_broadcasts" SET "active"=$1 WHERE active = $2 AND expires_at IS NOT NULL AND expires_at <= $3`)).
		WithArgs(false, true, now).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	n, err := s.DeactivateExpiredBroadcasts(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_UpsertPlayLog_CollapsesDuplicates(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	s := store.NewGormStore(gormDB)
	f := testutil.Seed(t, gormDB, "America/New_York")
	ann := testutil.TTS(t, gormDB, f.Org.ID, "Lunch")
	dev := testutil.PairedDevice(t, gormDB, f.Org.ID, &f.RoomA.ID, "Dining TV")
	ctx := context.Background()

	slot := time.Date(2026, 10, 13, 13, 0, 0, 0, time.UTC)

	first := model.PlayLog{OrganizationID: f.Org.ID, DeviceID: dev.ID, AnnouncementID: ann.ID, ScheduledAt: slot, Status: model.PlayFailed}
	require.NoError(t, s.UpsertPlayLog(ctx, &first))

	playedAt := slot.Add(3 * time.Second)
	second := model.PlayLog{OrganizationID: f.Org.ID, DeviceID: dev.ID, AnnouncementID: ann.ID, ScheduledAt: slot.Add(400 * time.Millisecond), Status: model.PlayPlayed, PlayedAt: &playedAt}
	require.NoError(t, s.UpsertPlayLog(ctx, &second))

	var count int64
	require.NoError(t, gormDB.Model(&model.PlayLog{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, first.ID, second.ID, "second write must update the first row")
	assert.Equal(t, model.PlayPlayed, second.Status)

	logs, err := s.ListPlayLogs(ctx, f.Org.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.PlayPlayed, logs[0].Status)
}

func TestGormStore_CreateBroadcast_SingleActive(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	s := store.NewGormStore(gormDB)
	f := testutil.Seed(t, gormDB, "UTC")
	fire := testutil.TTS(t, gormDB, f.Org.ID, "Fire drill")
	storm := testutil.TTS(t, gormDB, f.Org.ID, "Storm warning")
	ctx := context.Background()

	first := model.EmergencyBroadcast{OrganizationID: f.Org.ID, AnnouncementID: fire.ID}
	require.NoError(t, s.CreateBroadcast(ctx, &first, "user-1"))
	second := model.EmergencyBroadcast{OrganizationID: f.Org.ID, AnnouncementID: storm.ID}
	require.NoError(t, s.CreateBroadcast(ctx, &second, "user-1"))

	var active []model.EmergencyBroadcast
	require.NoError(t, gormDB.Where("organization_id = ? AND active = ?", f.Org.ID, true).Find(&active).Error)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	audits, err := s.ListAuditLogs(ctx, f.Org.ID, 10)
	require.NoError(t, err)
	require.Len(t, audits, 2)
	for _, a := range audits {
		assert.Equal(t, store.AuditEmergencyCreate, a.Action)
		assert.NotEmpty(t, a.NewValue)
	}
}

func TestGormStore_CreateBroadcast_UnknownOrganization(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	s := store.NewGormStore(gormDB)

	err := s.CreateBroadcast(context.Background(), &model.EmergencyBroadcast{OrganizationID: "missing", AnnouncementID: "x"}, "u")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGormStore_CancelBroadcast_Idempotent(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	s := store.NewGormStore(gormDB)
	f := testutil.Seed(t, gormDB, "UTC")
	ann := testutil.TTS(t, gormDB, f.Org.ID, "Lockdown")
	ctx := context.Background()

	b := model.EmergencyBroadcast{OrganizationID: f.Org.ID, AnnouncementID: ann.ID}
	require.NoError(t, s.CreateBroadcast(ctx, &b, "user-1"))

	changed, err := s.CancelBroadcast(ctx, f.Org.ID, b.ID, "user-1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.CancelBroadcast(ctx, f.Org.ID, b.ID, "user-1")
	require.NoError(t, err)
	assert.False(t, changed)

	var cancels int64
	require.NoError(t, gormDB.Model(&model.AuditLog{}).Where("action = ?", store.AuditEmergencyCancel).Count(&cancels).Error)
	assert.Equal(t, int64(1), cancels)

	_, err = s.CancelBroadcast(ctx, "other-org", b.ID, "user-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGormStore_ActiveBroadcast_LazyExpiry(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	s := store.NewGormStore(gormDB)
	f := testutil.Seed(t, gormDB, "UTC")
	ann := testutil.TTS(t, gormDB, f.Org.ID, "Evacuate")
	ctx := context.Background()

	now := time.Now().UTC()
	expires := now.Add(15 * time.Minute)
	b := model.EmergencyBroadcast{OrganizationID: f.Org.ID, AnnouncementID: ann.ID, ExpiresAt: &expires}
	require.NoError(t, s.CreateBroadcast(ctx, &b, "user-1"))

	got, err := s.ActiveBroadcast(ctx, f.Org.ID, now)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	require.NotNil(t, got.Announcement)
	assert.Equal(t, "Evacuate", got.Announcement.Title)

	_, err = s.ActiveBroadcast(ctx, f.Org.ID, now.Add(16*time.Minute))
	assert.ErrorIs(t, err, store.ErrNotFound)

	n, err := s.DeactivateExpiredBroadcasts(ctx, now.Add(16*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGormStore_ActiveSchedulesForRoom(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	s := store.NewGormStore(gormDB)
	f := testutil.Seed(t, gormDB, "UTC")
	ann := testutil.TTS(t, gormDB, f.Org.ID, "Meds")
	ctx := context.Background()

	active := model.Schedule{OrganizationID: f.Org.ID, Name: "Weekdays", Active: true}
	require.NoError(t, s.CreateSchedule(ctx, &active))
	inactive := model.Schedule{OrganizationID: f.Org.ID, Name: "Old", Active: true}
	require.NoError(t, s.CreateSchedule(ctx, &inactive))
	_, err := s.UpdateSchedule(ctx, f.Org.ID, inactive.ID, nil, boolPtr(false))
	require.NoError(t, err)

	items := []model.ScheduleItem{
		{ScheduleID: active.ID, AnnouncementID: ann.ID, TimeOfDay: "9:00", DaysOfWeek: []int{1}, Enabled: true},
		{ScheduleID: active.ID, AnnouncementID: ann.ID, TimeOfDay: "10:00", DaysOfWeek: []int{1}, Enabled: true, RoomID: &f.RoomA.ID},
		{ScheduleID: active.ID, AnnouncementID: ann.ID, TimeOfDay: "11:00", DaysOfWeek: []int{1}, Enabled: true, RoomID: &f.RoomB.ID},
		{ScheduleID: inactive.ID, AnnouncementID: ann.ID, TimeOfDay: "12:00", DaysOfWeek: []int{1}, Enabled: true},
	}
	for i := range items {
		require.NoError(t, s.CreateScheduleItem(ctx, f.Org.ID, &items[i]))
	}
	assert.Equal(t, "09:00", items[0].TimeOfDay, "time of day is normalised on write")

	disabled := model.ScheduleItem{ScheduleID: active.ID, AnnouncementID: ann.ID, TimeOfDay: "13:00", DaysOfWeek: []int{1}, Enabled: true}
	require.NoError(t, s.CreateScheduleItem(ctx, f.Org.ID, &disabled))
	disabled.Enabled = false
	require.NoError(t, s.SaveScheduleItem(ctx, f.Org.ID, &disabled))

	schedules, err := s.ActiveSchedulesForRoom(ctx, f.Org.ID, &f.RoomA.ID)
	require.NoError(t, err)
	require.Len(t, schedules, 1)

	var times []string
	for _, it := range schedules[0].Items {
		times = append(times, it.TimeOfDay)
		require.NotNil(t, it.Announcement)
	}
	assert.ElementsMatch(t, []string{"09:00", "10:00"}, times)

	schedules, err = s.ActiveSchedulesForRoom(ctx, f.Org.ID, nil)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	require.Len(t, schedules[0].Items, 1)
	assert.Equal(t, "09:00", schedules[0].Items[0].TimeOfDay)
}

func TestGormStore_CreateScheduleItem_Validation(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	s := store.NewGormStore(gormDB)
	f := testutil.Seed(t, gormDB, "UTC")
	ann := testutil.TTS(t, gormDB, f.Org.ID, "Meds")
	ctx := context.Background()

	sched := model.Schedule{OrganizationID: f.Org.ID, Name: "Daily", Active: true}
	require.NoError(t, s.CreateSchedule(ctx, &sched))

	err := s.CreateScheduleItem(ctx, f.Org.ID, &model.ScheduleItem{ScheduleID: sched.ID, AnnouncementID: ann.ID, TimeOfDay: "25:00", DaysOfWeek: []int{1}})
	assert.ErrorIs(t, err, store.ErrInvalid)

	err = s.CreateScheduleItem(ctx, f.Org.ID, &model.ScheduleItem{ScheduleID: sched.ID, AnnouncementID: ann.ID, TimeOfDay: "08:00"})
	assert.ErrorIs(t, err, store.ErrInvalid)

	err = s.CreateScheduleItem(ctx, f.Org.ID, &model.ScheduleItem{ScheduleID: sched.ID, AnnouncementID: "nope", TimeOfDay: "08:00", DaysOfWeek: []int{1}})
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.CreateScheduleItem(ctx, "other-org", &model.ScheduleItem{ScheduleID: sched.ID, AnnouncementID: ann.ID, TimeOfDay: "08:00", DaysOfWeek: []int{1}})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGormStore_PlanLimits(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	s := store.NewGormStore(gormDB)
	f := testutil.Seed(t, gormDB, "UTC") // two rooms already
	ctx := context.Background()

	require.NoError(t, s.CreateRoom(ctx, &model.Room{OrganizationID: f.Org.ID, Name: "Chapel"}, 3))
	err := s.CreateRoom(ctx, &model.Room{OrganizationID: f.Org.ID, Name: "Garden"}, 3)
	assert.ErrorIs(t, err, store.ErrLimitReached)

	for i := 0; i < 2; i++ {
		require.NoError(t, s.CreateDevice(ctx, &model.Device{OrganizationID: f.Org.ID, Name: "TV", Status: model.DevicePending}, 2))
	}
	err = s.CreateDevice(ctx, &model.Device{OrganizationID: f.Org.ID, Name: "TV", Status: model.DevicePending}, 2)
	assert.ErrorIs(t, err, store.ErrLimitReached)
}

func TestGormStore_DeleteRoom_DetachesReferences(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	s := store.NewGormStore(gormDB)
	f := testutil.Seed(t, gormDB, "UTC")
	dev := testutil.PairedDevice(t, gormDB, f.Org.ID, &f.RoomA.ID, "Dining TV")
	ctx := context.Background()

	require.NoError(t, s.DeleteRoom(ctx, f.Org.ID, f.RoomA.ID))

	got, err := s.GetOrgDevice(ctx, f.Org.ID, dev.ID)
	require.NoError(t, err)
	assert.Nil(t, got.RoomID)

	assert.ErrorIs(t, s.DeleteRoom(ctx, f.Org.ID, f.RoomA.ID), store.ErrNotFound)
}

func TestGormStore_PairingCodeIsUnique(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	s := store.NewGormStore(gormDB)
	f := testutil.Seed(t, gormDB, "UTC")
	ctx := context.Background()

	code, other := "482913", "771204"
	expires := time.Date(2026, 10, 13, 13, 15, 0, 0, time.UTC)
	pending := func(c string) *model.Device {
		return &model.Device{OrganizationID: f.Org.ID, Name: "TV", Status: model.DevicePending, PairingCode: &c, PairingExpiresAt: &expires}
	}

	require.NoError(t, s.CreateDevice(ctx, pending(code), 0))

	err := s.CreateDevice(ctx, pending(code), 0)
	assert.ErrorIs(t, err, store.ErrCodeTaken)
	assert.ErrorIs(t, err, store.ErrConflict)

	second := pending(other)
	require.NoError(t, s.CreateDevice(ctx, second, 0))
	_, err = s.SetPairingCode(ctx, f.Org.ID, second.ID, code, expires)
	assert.ErrorIs(t, err, store.ErrCodeTaken)

	got, err := s.GetOrgDevice(ctx, f.Org.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, other, *got.PairingCode, "a rejected reissue leaves the old code")

	devices, err := s.ListDevices(ctx, f.Org.ID)
	require.NoError(t, err)
	assert.Len(t, devices, 2)
}

func boolPtr(b bool) *bool { return &b }
