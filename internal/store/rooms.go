package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"carevoice-backend/internal/model"
)

func (s *gormStore) ListRooms(ctx context.Context, orgID string) ([]model.Room, error) {
	var rooms []model.Room
	err := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("name ASC").
		Find(&rooms).Error
	return rooms, err
}

func (s *gormStore) GetRoom(ctx context.Context, orgID, roomID string) (*model.Room, error) {
	var room model.Room
	if err := s.db.WithContext(ctx).First(&room, "id = ? AND organization_id = ?", roomID, orgID).Error; err != nil {
		return nil, notFound(err)
	}
	return &room, nil
}

func (s *gormStore) CreateRoom(ctx context.Context, room *model.Room, maxRooms int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Room{}).Where("organization_id = ?", room.OrganizationID).Count(&count).Error; err != nil {
			return fmt.Errorf("count rooms: %w", err)
		}
		if maxRooms > 0 && count >= int64(maxRooms) {
			return fmt.Errorf("%w: max %d rooms", ErrLimitReached, maxRooms)
		}
		if err := tx.Create(room).Error; err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		return nil
	})
}

func (s *gormStore) RenameRoom(ctx context.Context, orgID, roomID, name string) (*model.Room, error) {
	res := s.db.WithContext(ctx).Model(&model.Room{}).
		Where("id = ? AND organization_id = ?", roomID, orgID).
		Update("name", name)
	if res.Error != nil {
		return nil, fmt.Errorf("rename room: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetRoom(ctx, orgID, roomID)
}

// DeleteRoom removes a room. Devices and schedule items that pointed at it
// fall back to "all rooms" / "no room" instead of being deleted.
func (s *gormStore) DeleteRoom(ctx context.Context, orgID, roomID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Device{}).Where("room_id = ?", roomID).Update("room_id", nil).Error; err != nil {
			return fmt.Errorf("detach devices: %w", err)
		}
		if err := tx.Model(&model.ScheduleItem{}).Where("room_id = ?", roomID).Update("room_id", nil).Error; err != nil {
			return fmt.Errorf("detach schedule items: %w", err)
		}
		res := tx.Where("id = ? AND organization_id = ?", roomID, orgID).Delete(&model.Room{})
		if res.Error != nil {
			return fmt.Errorf("delete room: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
