package player

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"carevoice-backend/internal/wire"
)

const (
	scheduleKeyPrefix = "schedule:"
	identityKey       = "identity"
)

var (
	// ErrNoCache means no schedule has been stored for the device.
	ErrNoCache = errors.New("no cached schedule")
	// ErrStale means the cached schedule was computed for another date.
	ErrStale = errors.New("cached schedule is not for today")
	// ErrNotPaired means the device has no stored identity.
	ErrNotPaired = errors.New("device is not paired")
)

// Identity is what the device remembers after pairing.
type Identity struct {
	DeviceID         string    `json:"deviceId"`
	DeviceName       string    `json:"deviceName"`
	RoomID           string    `json:"roomId,omitempty"`
	RoomName         string    `json:"roomName,omitempty"`
	OrganizationID   string    `json:"organizationId"`
	OrganizationName string    `json:"organizationName"`
	Timezone         string    `json:"timezone"`
	PairedAt         time.Time `json:"pairedAt"`
}

// IdentityFromPairing builds the identity stored after a successful pairing.
func IdentityFromPairing(p *wire.PairResponse, now time.Time) Identity {
	id := Identity{
		DeviceID:         p.DeviceID,
		DeviceName:       p.DeviceName,
		OrganizationID:   p.Organization.ID,
		OrganizationName: p.Organization.Name,
		Timezone:         p.Organization.Timezone,
		PairedAt:         now.UTC(),
	}
	if p.Room != nil {
		id.RoomID = p.Room.ID
		id.RoomName = p.Room.Name
	}
	return id
}

// Cache persists the last good schedule and the paired identity in badger.
type Cache struct {
	db *badger.DB
}

// OpenCache opens the badger directory dir. An empty dir keeps everything
// in memory.
func OpenCache(dir string) (*Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache %q: %w", dir, err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// get decodes key into v and reports whether it was present.
func (c *Cache) get(key string, v any) (bool, error) {
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	return true, nil
}

// SaveSchedule overwrites the cached schedule of the payload's device.
func (c *Cache) SaveSchedule(s *wire.ScheduleResponse) error {
	if s.Device.ID == "" {
		return errors.New("schedule payload has no device id")
	}
	return c.put(scheduleKeyPrefix+s.Device.ID, s)
}

// LoadSchedule returns the cached schedule for deviceID if it was computed
// for today. A schedule for any other date is removed and ErrStale returned.
func (c *Cache) LoadSchedule(deviceID, today string) (*wire.ScheduleResponse, error) {
	key := scheduleKeyPrefix + deviceID
	var s wire.ScheduleResponse
	found, err := c.get(key, &s)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNoCache
	}
	if s.Date != today {
		_ = c.db.Update(func(txn *badger.Txn) error {
			return txn.Delete([]byte(key))
		})
		return nil, ErrStale
	}
	return &s, nil
}

// SaveIdentity stores the paired identity.
func (c *Cache) SaveIdentity(id Identity) error {
	return c.put(identityKey, id)
}

// Identity returns the stored identity or ErrNotPaired.
func (c *Cache) Identity() (*Identity, error) {
	var id Identity
	found, err := c.get(identityKey, &id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotPaired
	}
	return &id, nil
}
