package emergency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carevoice-backend/internal/model"
	"carevoice-backend/internal/store"
	"carevoice-backend/internal/testutil"
)

type mutableClock struct{ now time.Time }

func (c *mutableClock) Now() time.Time { return c.now }

type recordingNotifier struct {
	mu  sync.Mutex
	ids []string
}

func (n *recordingNotifier) Dispatch(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, id)
}

type fixture struct {
	channel  *Channel
	store    store.Store
	clock    *mutableClock
	notifier *recordingNotifier
	org      testutil.Fixture
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gormDB := testutil.NewSQLite(t)
	s := store.NewGormStore(gormDB)
	clock := &mutableClock{now: time.Now().UTC().Truncate(time.Second)}
	n := &recordingNotifier{}
	return fixture{
		channel:  NewChannel(s, clock, n, zap.NewNop()),
		store:    s,
		clock:    clock,
		notifier: n,
		org:      testutil.Seed(t, gormDB, "UTC"),
	}
}

func TestChannel_ExpiresLazily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann := testutil.TTS(t, f.store.DB(), f.org.Org.ID, "Shelter in place")

	expires := f.clock.now.Add(15 * time.Minute)
	b, err := f.channel.Create(ctx, f.org.Org.ID, "user-1", ann.ID, &expires)
	require.NoError(t, err)
	assert.True(t, b.Active)
	assert.Equal(t, []string{b.ID}, f.notifier.ids)

	active, err := f.channel.Active(ctx, f.org.Org.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, b.ID, active.ID)

	f.clock.now = f.clock.now.Add(16 * time.Minute)
	active, err = f.channel.Active(ctx, f.org.Org.ID)
	require.NoError(t, err)
	assert.Nil(t, active, "expired broadcast must read as inactive without a cancel")
}

func TestChannel_SecondBroadcastReplacesFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fire := testutil.TTS(t, f.store.DB(), f.org.Org.ID, "Fire")
	flood := testutil.TTS(t, f.store.DB(), f.org.Org.ID, "Flood")

	first, err := f.channel.Create(ctx, f.org.Org.ID, "user-1", fire.ID, nil)
	require.NoError(t, err)
	second, err := f.channel.Create(ctx, f.org.Org.ID, "user-2", flood.ID, nil)
	require.NoError(t, err)

	active, err := f.channel.Active(ctx, f.org.Org.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)
	assert.NotEqual(t, first.ID, active.ID)

	var count int64
	require.NoError(t, f.store.DB().Model(&model.EmergencyBroadcast{}).Where("active = ?", true).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestChannel_CancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann := testutil.TTS(t, f.store.DB(), f.org.Org.ID, "All clear")

	b, err := f.channel.Create(ctx, f.org.Org.ID, "user-1", ann.ID, nil)
	require.NoError(t, err)

	changed, err := f.channel.Cancel(ctx, f.org.Org.ID, b.ID, "user-1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.channel.Cancel(ctx, f.org.Org.ID, b.ID, "user-1")
	require.NoError(t, err)
	assert.False(t, changed)

	active, err := f.channel.Active(ctx, f.org.Org.ID)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestChannel_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann := testutil.TTS(t, f.store.DB(), f.org.Org.ID, "Test")

	past := f.clock.now.Add(-time.Minute)
	_, err := f.channel.Create(ctx, f.org.Org.ID, "user-1", ann.ID, &past)
	assert.ErrorIs(t, err, store.ErrInvalid)

	_, err = f.channel.Create(ctx, f.org.Org.ID, "user-1", "missing", nil)
	assert.ErrorIs(t, err, store.ErrNotFound)

	other := testutil.Seed(t, f.store.DB(), "UTC")
	_, err = f.channel.Create(ctx, other.Org.ID, "user-1", ann.ID, nil)
	assert.ErrorIs(t, err, store.ErrNotFound, "announcements of another organization are invisible")

	assert.Empty(t, f.notifier.ids)
}
