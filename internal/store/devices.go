package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"carevoice-backend/internal/model"
)

func (s *gormStore) ListDevices(ctx context.Context, orgID string) ([]model.Device, error) {
	var devices []model.Device
	err := s.db.WithContext(ctx).
		Preload("Room").
		Where("organization_id = ?", orgID).
		Order("created_at DESC").
		Find(&devices).Error
	return devices, err
}

// GetDevice looks a device up by id alone. It is used by the player
// endpoints, where the device id is the only credential presented.
func (s *gormStore) GetDevice(ctx context.Context, deviceID string) (*model.Device, error) {
	var device model.Device
	err := s.db.WithContext(ctx).
		Preload("Organization").
		Preload("Room").
		First(&device, "id = ?", deviceID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &device, nil
}

func (s *gormStore) GetOrgDevice(ctx context.Context, orgID, deviceID string) (*model.Device, error) {
	var device model.Device
	err := s.db.WithContext(ctx).
		Preload("Room").
		First(&device, "id = ? AND organization_id = ?", deviceID, orgID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &device, nil
}

// CreateDevice inserts device within the plan limit. A pairing code held by
// another device fails with ErrCodeTaken.
func (s *gormStore) CreateDevice(ctx context.Context, device *model.Device, maxDevices int) error {
	var insertErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Device{}).Where("organization_id = ?", device.OrganizationID).Count(&count).Error; err != nil {
			return fmt.Errorf("count devices: %w", err)
		}
		if maxDevices > 0 && count >= int64(maxDevices) {
			return fmt.Errorf("%w: max %d devices", ErrLimitReached, maxDevices)
		}
		if device.RoomID != nil {
			if err := tx.First(&model.Room{}, "id = ? AND organization_id = ?", *device.RoomID, device.OrganizationID).Error; err != nil {
				return fmt.Errorf("room: %w", notFound(err))
			}
		}
		if insertErr = tx.Create(device).Error; insertErr != nil {
			return fmt.Errorf("create device: %w", insertErr)
		}
		return nil
	})
	if insertErr != nil && device.PairingCode != nil {
		return s.codeConflict(ctx, err, *device.PairingCode, device.ID)
	}
	return err
}

// codeConflict turns a failed write of code into ErrCodeTaken when another
// device holds it. It runs after the failed transaction has been rolled back.
func (s *gormStore) codeConflict(ctx context.Context, err error, code, deviceID string) error {
	var holders int64
	lookup := s.db.WithContext(ctx).Model(&model.Device{}).
		Where("pairing_code = ? AND id <> ?", code, deviceID).
		Count(&holders).Error
	if lookup == nil && holders > 0 {
		return ErrCodeTaken
	}
	return err
}

// UpdateDevice changes the name and/or room. A non-nil roomID pointing at
// nil moves the device to "no room".
func (s *gormStore) UpdateDevice(ctx context.Context, orgID, deviceID string, name *string, roomID **string) (*model.Device, error) {
	updates := map[string]any{}
	if name != nil {
		updates["name"] = *name
	}
	if roomID != nil {
		if *roomID != nil {
			if _, err := s.GetRoom(ctx, orgID, **roomID); err != nil {
				return nil, fmt.Errorf("room: %w", err)
			}
		}
		updates["room_id"] = *roomID
	}
	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&model.Device{}).
			Where("id = ? AND organization_id = ?", deviceID, orgID).
			Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("update device: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return s.GetOrgDevice(ctx, orgID, deviceID)
}

func (s *gormStore) DeleteDevice(ctx context.Context, orgID, deviceID string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND organization_id = ?", deviceID, orgID).Delete(&model.Device{})
	if res.Error != nil {
		return fmt.Errorf("delete device: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) PairingCodeInUse(ctx context.Context, code string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Device{}).Where("pairing_code = ?", code).Count(&count).Error
	return count > 0, err
}

// SetPairingCode reissues the code of a device that is not yet paired.
// Paired devices are rejected with ErrConflict and left untouched; a code
// held by another device fails with ErrCodeTaken.
func (s *gormStore) SetPairingCode(ctx context.Context, orgID, deviceID, code string, expiresAt time.Time) (*model.Device, error) {
	var updateErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var device model.Device
		if err := tx.First(&device, "id = ? AND organization_id = ?", deviceID, orgID).Error; err != nil {
			return notFound(err)
		}
		if device.Status == model.DevicePaired {
			return fmt.Errorf("%w: device %s is already paired", ErrConflict, deviceID)
		}
		res := tx.Model(&model.Device{}).
			Where("id = ? AND status <> ?", deviceID, model.DevicePaired).
			Updates(map[string]any{
				"pairing_code":       code,
				"pairing_expires_at": expiresAt.UTC(),
				"status":             model.DevicePending,
			})
		if updateErr = res.Error; updateErr != nil {
			return fmt.Errorf("set pairing code: %w", updateErr)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: device %s is already paired", ErrConflict, deviceID)
		}
		return nil
	})
	if updateErr != nil {
		return nil, s.codeConflict(ctx, err, code, deviceID)
	}
	if err != nil {
		return nil, err
	}
	return s.GetOrgDevice(ctx, orgID, deviceID)
}

// FindByPairingCode returns the PENDING device holding code, expired or not.
func (s *gormStore) FindByPairingCode(ctx context.Context, code string) (*model.Device, error) {
	var device model.Device
	err := s.db.WithContext(ctx).
		Preload("Organization").
		Preload("Room").
		First(&device, "pairing_code = ? AND status = ?", code, model.DevicePending).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &device, nil
}

// MarkPaired transitions a PENDING device holding code to PAIRED. The code
// match in the WHERE clause makes concurrent redemptions of the same code
// succeed at most once.
func (s *gormStore) MarkPaired(ctx context.Context, deviceID, code string, now time.Time) error {
	res := s.db.WithContext(ctx).Model(&model.Device{}).
		Where("id = ? AND status = ? AND pairing_code = ?", deviceID, model.DevicePending, code).
		Updates(map[string]any{
			"status":             model.DevicePaired,
			"pairing_code":       nil,
			"pairing_expires_at": nil,
			"last_seen_at":       now.UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("mark paired: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchDevice records a heartbeat. Status is never changed.
func (s *gormStore) TouchDevice(ctx context.Context, deviceID string, now time.Time) error {
	res := s.db.WithContext(ctx).Model(&model.Device{}).
		Where("id = ?", deviceID).
		Update("last_seen_at", now.UTC())
	if res.Error != nil {
		return fmt.Errorf("touch device: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearExpiredPairingCodes frees codes that expired before the cutoff.
// Callers keep a grace period so that a late redemption still reports
// ErrExpired rather than ErrNotFound.
func (s *gormStore) ClearExpiredPairingCodes(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.Device{}).
		Where("status = ? AND pairing_expires_at IS NOT NULL AND pairing_expires_at <= ?", model.DevicePending, before.UTC()).
		Updates(map[string]any{"pairing_code": nil, "pairing_expires_at": nil})
	return res.RowsAffected, res.Error
}
