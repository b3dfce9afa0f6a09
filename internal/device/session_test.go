package device

import (
	"bytes"
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carevoice-backend/internal/model"
	"carevoice-backend/internal/orgtime"
	"carevoice-backend/internal/store"
	"carevoice-backend/internal/testutil"
)

type mutableClock struct{ now time.Time }

func (c *mutableClock) Now() time.Time { return c.now }

func newService(t *testing.T) (*Service, store.Store, testutil.Fixture, *mutableClock) {
	t.Helper()
	gormDB := testutil.NewSQLite(t)
	s := store.NewGormStore(gormDB)
	f := testutil.Seed(t, gormDB, "America/New_York")
	clock := &mutableClock{now: time.Date(2026, 10, 13, 13, 0, 0, 0, time.UTC)}
	return NewService(s, clock, 3, zap.NewNop()), s, f, clock
}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateCode(rand.Reader)
		require.NoError(t, err)
		assert.True(t, IsValidCode(code), code)
	}
}

func TestGenerateCode_KeepsLeadingZerosAndRejectsBias(t *testing.T) {
	// 250..255 are discarded; 0, 10, 20 map to '0'.
	src := bytes.NewReader([]byte{250, 255, 0, 10, 20, 1, 2, 3, 4, 5, 6, 7, 8, 9, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	code, err := GenerateCode(src)
	require.NoError(t, err)
	assert.Equal(t, "000123", code)
}

func TestGenerateCode_ShortReader(t *testing.T) {
	_, err := GenerateCode(bytes.NewReader([]byte{1, 2}))
	assert.Error(t, err)
}

func TestIsValidCode(t *testing.T) {
	testCases := []struct {
		code  string
		valid bool
	}{
		{"000000", true},
		{"123456", true},
		{"12345", false},
		{"1234567", false},
		{"12a456", false},
		{"", false},
	}
	for _, tc := range testCases {
		t.Run(tc.code, func(t *testing.T) {
			assert.Equal(t, tc.valid, IsValidCode(tc.code))
		})
	}
}

func TestIsOnline(t *testing.T) {
	now := time.Date(2026, 10, 13, 13, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time { v := now.Add(-d); return &v }

	assert.False(t, IsOnline(nil, now))
	assert.True(t, IsOnline(at(0), now))
	assert.True(t, IsOnline(at(119*time.Second), now))
	assert.False(t, IsOnline(at(2*time.Minute), now))
	assert.False(t, IsOnline(at(time.Hour), now))
}

func TestService_RegisterAndRedeem(t *testing.T) {
	svc, _, f, clock := newService(t)
	ctx := context.Background()

	d, err := svc.Register(ctx, f.Org.ID, "Dining TV", &f.RoomA.ID)
	require.NoError(t, err)
	require.NotNil(t, d.PairingCode)
	assert.Equal(t, model.DevicePending, d.Status)
	assert.Equal(t, clock.now.Add(CodeTTL), d.PairingExpiresAt.UTC())

	clock.now = clock.now.Add(14 * time.Minute)
	paired, err := svc.Redeem(ctx, *d.PairingCode)
	require.NoError(t, err)
	assert.Equal(t, d.ID, paired.ID)
	assert.Equal(t, model.DevicePaired, paired.Status)
	assert.Nil(t, paired.PairingCode)
	assert.Nil(t, paired.PairingExpiresAt)
	require.NotNil(t, paired.LastSeenAt)
	assert.True(t, paired.LastSeenAt.Equal(clock.now))
	require.NotNil(t, paired.Organization)
	assert.Equal(t, "America/New_York", paired.Organization.Timezone)
	require.NotNil(t, paired.Room)
	assert.Equal(t, "Dining Hall", paired.Room.Name)

	// The code is single use.
	_, err = svc.Redeem(ctx, *d.PairingCode)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_Redeem_ExpiredVersusUnknown(t *testing.T) {
	svc, _, f, clock := newService(t)
	ctx := context.Background()

	d, err := svc.Register(ctx, f.Org.ID, "Lobby TV", nil)
	require.NoError(t, err)

	clock.now = clock.now.Add(CodeTTL)
	_, err = svc.Redeem(ctx, *d.PairingCode)
	assert.ErrorIs(t, err, store.ErrExpired)

	unknown := "999999"
	if *d.PairingCode == unknown {
		unknown = "999998"
	}
	_, err = svc.Redeem(ctx, unknown)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.Redeem(ctx, "abc")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_RegenerateCode(t *testing.T) {
	svc, _, f, clock := newService(t)
	ctx := context.Background()

	d, err := svc.Register(ctx, f.Org.ID, "Lobby TV", nil)
	require.NoError(t, err)

	clock.now = clock.now.Add(time.Hour)
	again, err := svc.RegenerateCode(ctx, f.Org.ID, d.ID)
	require.NoError(t, err)
	require.NotNil(t, again.PairingCode)
	assert.Equal(t, clock.now.Add(CodeTTL), again.PairingExpiresAt.UTC())
	assert.Equal(t, model.DevicePending, again.Status)

	_, err = svc.Redeem(ctx, *again.PairingCode)
	require.NoError(t, err)

	_, err = svc.RegenerateCode(ctx, f.Org.ID, d.ID)
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = svc.RegenerateCode(ctx, "other-org", d.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// racingStore loses the first n pairing code writes to another device.
type racingStore struct {
	store.Store
	lost int
}

func (r *racingStore) CreateDevice(ctx context.Context, d *model.Device, maxDevices int) error {
	if r.lost > 0 {
		r.lost--
		return store.ErrCodeTaken
	}
	return r.Store.CreateDevice(ctx, d, maxDevices)
}

func (r *racingStore) SetPairingCode(ctx context.Context, orgID, deviceID, code string, expiresAt time.Time) (*model.Device, error) {
	if r.lost > 0 {
		r.lost--
		return nil, store.ErrCodeTaken
	}
	return r.Store.SetPairingCode(ctx, orgID, deviceID, code, expiresAt)
}

func TestService_RetriesLostPairingCode(t *testing.T) {
	_, s, f, clock := newService(t)
	racing := &racingStore{Store: s, lost: 2}
	svc := NewService(racing, clock, 3, zap.NewNop())
	ctx := context.Background()

	d, err := svc.Register(ctx, f.Org.ID, "Lobby TV", nil)
	require.NoError(t, err)
	require.NotNil(t, d.PairingCode)
	assert.Zero(t, racing.lost)

	racing.lost = 1
	again, err := svc.RegenerateCode(ctx, f.Org.ID, d.ID)
	require.NoError(t, err)
	require.NotNil(t, again.PairingCode)

	racing.lost = maxCodeAttempts
	_, err = svc.Register(ctx, f.Org.ID, "Hall TV", nil)
	assert.ErrorIs(t, err, store.ErrConflict)

	devices, err := s.ListDevices(ctx, f.Org.ID)
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}

func TestService_Heartbeat(t *testing.T) {
	svc, s, f, clock := newService(t)
	ctx := context.Background()

	dev := model.Device{OrganizationID: f.Org.ID, Name: "Chapel TV", Status: model.DevicePaired}
	require.NoError(t, s.CreateDevice(ctx, &dev, 0))

	seen, err := svc.Heartbeat(ctx, dev.ID)
	require.NoError(t, err)
	assert.True(t, seen.Equal(clock.now))

	got, err := s.GetDevice(ctx, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DevicePaired, got.Status)
	require.NotNil(t, got.LastSeenAt)
	assert.True(t, IsOnline(got.LastSeenAt, clock.now.Add(time.Minute)))

	_, err = svc.Heartbeat(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

var _ orgtime.Clock = (*mutableClock)(nil)
