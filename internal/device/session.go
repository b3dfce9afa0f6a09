// Package device implements the device session lifecycle: pairing codes,
// redemption, heartbeats and derived liveness.
package device

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"carevoice-backend/internal/metrics"
	"carevoice-backend/internal/model"
	"carevoice-backend/internal/orgtime"
	"carevoice-backend/internal/store"
)

const (
	CodeLength     = 6
	CodeTTL        = 15 * time.Minute
	LivenessWindow = 2 * time.Minute

	maxCodeAttempts = 10
)

// Store is the part of the entity store used by device sessions.
type Store interface {
	CreateDevice(ctx context.Context, device *model.Device, maxDevices int) error
	GetDevice(ctx context.Context, deviceID string) (*model.Device, error)
	PairingCodeInUse(ctx context.Context, code string) (bool, error)
	SetPairingCode(ctx context.Context, orgID, deviceID, code string, expiresAt time.Time) (*model.Device, error)
	FindByPairingCode(ctx context.Context, code string) (*model.Device, error)
	MarkPaired(ctx context.Context, deviceID, code string, now time.Time) error
	TouchDevice(ctx context.Context, deviceID string, now time.Time) error
}

// Service drives devices through UNPAIRED -> PENDING -> PAIRED.
type Service struct {
	store      Store
	clock      orgtime.Clock
	maxDevices int
	random     io.Reader
	log        *zap.Logger
}

func NewService(s Store, clock orgtime.Clock, maxDevices int, log *zap.Logger) *Service {
	return &Service{store: s, clock: clock, maxDevices: maxDevices, random: rand.Reader, log: log}
}

// GenerateCode returns CodeLength independent, uniformly distributed decimal
// digits read from r. Leading zeros are kept.
func GenerateCode(r io.Reader) (string, error) {
	code := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength*2)
	for len(code) < CodeLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			// 250 is the largest multiple of 10 that fits in a byte.
			if b >= 250 {
				continue
			}
			code = append(code, '0'+b%10)
			if len(code) == CodeLength {
				break
			}
		}
	}
	return string(code), nil
}

// IsValidCode reports whether s has the shape of a pairing code.
func IsValidCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// IsOnline derives liveness from the last heartbeat. It is display-only.
func IsOnline(lastSeenAt *time.Time, now time.Time) bool {
	return lastSeenAt != nil && now.Sub(*lastSeenAt) < LivenessWindow
}

func (s *Service) freshCode(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := GenerateCode(s.random)
		if err != nil {
			return "", err
		}
		inUse, err := s.store.PairingCodeInUse(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check pairing code: %w", err)
		}
		if !inUse {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: could not allocate a unique pairing code", store.ErrConflict)
}

// Register creates a PENDING device holding a fresh pairing code. A code
// lost to a concurrent registration is replaced and the insert retried.
func (s *Service) Register(ctx context.Context, orgID, name string, roomID *string) (*model.Device, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := s.freshCode(ctx)
		if err != nil {
			return nil, err
		}
		expires := s.clock.Now().Add(CodeTTL).UTC()
		d := &model.Device{
			OrganizationID:   orgID,
			RoomID:           roomID,
			Name:             name,
			PairingCode:      &code,
			PairingExpiresAt: &expires,
			Status:           model.DevicePending,
		}
		err = s.store.CreateDevice(ctx, d, s.maxDevices)
		if errors.Is(err, store.ErrCodeTaken) {
			s.log.Debug("pairing code collision, retrying", zap.String("org_id", orgID))
			continue
		}
		if err != nil {
			return nil, err
		}
		s.log.Info("device registered", zap.String("org_id", orgID), zap.String("device_id", d.ID))
		return d, nil
	}
	return nil, fmt.Errorf("%w: could not allocate a unique pairing code", store.ErrConflict)
}

// RegenerateCode reissues the code and expiry of a device that has not been
// paired yet. Paired devices are rejected with store.ErrConflict.
func (s *Service) RegenerateCode(ctx context.Context, orgID, deviceID string) (*model.Device, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := s.freshCode(ctx)
		if err != nil {
			return nil, err
		}
		d, err := s.store.SetPairingCode(ctx, orgID, deviceID, code, s.clock.Now().Add(CodeTTL))
		if errors.Is(err, store.ErrCodeTaken) {
			continue
		}
		return d, err
	}
	return nil, fmt.Errorf("%w: could not allocate a unique pairing code", store.ErrConflict)
}

// Redeem pairs the device holding code. A code that never existed fails
// with store.ErrNotFound; one whose window has passed with store.ErrExpired.
func (s *Service) Redeem(ctx context.Context, code string) (*model.Device, error) {
	now := s.clock.Now()
	if !IsValidCode(code) {
		metrics.PairingAttempts.WithLabelValues("not_found").Inc()
		return nil, store.ErrNotFound
	}

	d, err := s.store.FindByPairingCode(ctx, code)
	if err != nil {
		metrics.PairingAttempts.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}
	if d.PairingExpiresAt == nil || !now.Before(*d.PairingExpiresAt) {
		metrics.PairingAttempts.WithLabelValues("expired").Inc()
		return nil, store.ErrExpired
	}

	if err := s.store.MarkPaired(ctx, d.ID, code, now); err != nil {
		metrics.PairingAttempts.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}
	metrics.PairingAttempts.WithLabelValues("paired").Inc()
	s.log.Info("device paired", zap.String("org_id", d.OrganizationID), zap.String("device_id", d.ID))

	return s.store.GetDevice(ctx, d.ID)
}

// Heartbeat stamps last-seen for a known device and returns the timestamp.
func (s *Service) Heartbeat(ctx context.Context, deviceID string) (time.Time, error) {
	now := s.clock.Now().UTC()
	if err := s.store.TouchDevice(ctx, deviceID, now); err != nil {
		return time.Time{}, err
	}
	metrics.Heartbeats.Inc()
	return now, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrExpired):
		return "expired"
	default:
		return "error"
	}
}
