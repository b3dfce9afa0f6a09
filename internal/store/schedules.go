package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"carevoice-backend/internal/model"
	"carevoice-backend/internal/parse"
)

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("time_of_day ASC").Order("sort_order ASC")
}

func (s *gormStore) ListSchedules(ctx context.Context, orgID string) ([]model.Schedule, error) {
	var schedules []model.Schedule
	err := s.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Where("organization_id = ?", orgID).
		Order("created_at ASC").
		Find(&schedules).Error
	return schedules, err
}

func (s *gormStore) GetSchedule(ctx context.Context, orgID, scheduleID string) (*model.Schedule, error) {
	var schedule model.Schedule
	err := s.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Preload("Items.Announcement").
		Preload("Items.Room").
		First(&schedule, "id = ? AND organization_id = ?", scheduleID, orgID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &schedule, nil
}

func (s *gormStore) CreateSchedule(ctx context.Context, schedule *model.Schedule) error {
	if err := s.db.WithContext(ctx).Omit("Items").Create(schedule).Error; err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

func (s *gormStore) UpdateSchedule(ctx context.Context, orgID, scheduleID string, name *string, active *bool) (*model.Schedule, error) {
	updates := map[string]any{}
	if name != nil {
		updates["name"] = *name
	}
	if active != nil {
		updates["active"] = *active
	}
	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&model.Schedule{}).
			Where("id = ? AND organization_id = ?", scheduleID, orgID).
			Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("update schedule: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return s.GetSchedule(ctx, orgID, scheduleID)
}

func (s *gormStore) DeleteSchedule(ctx context.Context, orgID, scheduleID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND organization_id = ?", scheduleID, orgID).Delete(&model.Schedule{})
		if res.Error != nil {
			return fmt.Errorf("delete schedule: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("schedule_id = ?", scheduleID).Delete(&model.ScheduleItem{}).Error
	})
}

func (s *gormStore) GetScheduleItem(ctx context.Context, orgID, scheduleID, itemID string) (*model.ScheduleItem, error) {
	if _, err := s.scheduleInOrg(ctx, s.db, orgID, scheduleID); err != nil {
		return nil, err
	}
	var item model.ScheduleItem
	err := s.db.WithContext(ctx).
		Preload("Announcement").
		Preload("Room").
		First(&item, "id = ? AND schedule_id = ?", itemID, scheduleID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

// CreateScheduleItem validates the item against its schedule's organization
// (announcement and room must belong to it) and inserts it.
func (s *gormStore) CreateScheduleItem(ctx context.Context, orgID string, item *model.ScheduleItem) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkItem(ctx, tx, orgID, item); err != nil {
			return err
		}
		if err := tx.Omit("Announcement", "Room").Create(item).Error; err != nil {
			return fmt.Errorf("create schedule item: %w", err)
		}
		return nil
	})
}

// SaveScheduleItem writes every mutable column of an existing item.
func (s *gormStore) SaveScheduleItem(ctx context.Context, orgID string, item *model.ScheduleItem) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkItem(ctx, tx, orgID, item); err != nil {
			return err
		}
		res := tx.Model(&model.ScheduleItem{}).
			Where("id = ? AND schedule_id = ?", item.ID, item.ScheduleID).
			Select("announcement_id", "room_id", "time_of_day", "days_of_week", "enabled", "sort_order").
			Updates(item)
		if res.Error != nil {
			return fmt.Errorf("save schedule item: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *gormStore) DeleteScheduleItem(ctx context.Context, orgID, scheduleID, itemID string) error {
	if _, err := s.scheduleInOrg(ctx, s.db, orgID, scheduleID); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("id = ? AND schedule_id = ?", itemID, scheduleID).Delete(&model.ScheduleItem{})
	if res.Error != nil {
		return fmt.Errorf("delete schedule item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) ReorderScheduleItems(ctx context.Context, orgID, scheduleID string, order map[string]int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.scheduleInOrg(ctx, tx, orgID, scheduleID); err != nil {
			return err
		}
		for itemID, pos := range order {
			res := tx.Model(&model.ScheduleItem{}).
				Where("id = ? AND schedule_id = ?", itemID, scheduleID).
				Update("sort_order", pos)
			if res.Error != nil {
				return fmt.Errorf("reorder item %s: %w", itemID, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
			}
		}
		return nil
	})
}

// ActiveSchedulesForRoom returns the organization's active schedules with
// their enabled items that target either every room or roomID. A nil roomID
// (device not assigned to a room) only sees "all rooms" items. Weekday
// filtering and ordering are left to the resolver.
func (s *gormStore) ActiveSchedulesForRoom(ctx context.Context, orgID string, roomID *string) ([]model.Schedule, error) {
	itemScope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("enabled = ?", true)
		if roomID == nil {
			return db.Where("room_id IS NULL")
		}
		return db.Where("room_id IS NULL OR room_id = ?", *roomID)
	}

	var schedules []model.Schedule
	err := s.db.WithContext(ctx).
		Preload("Items", itemScope).
		Preload("Items.Announcement").
		Preload("Items.Room").
		Where("organization_id = ? AND active = ?", orgID, true).
		Order("created_at ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, fmt.Errorf("load active schedules: %w", err)
	}
	return schedules, nil
}

func (s *gormStore) scheduleInOrg(ctx context.Context, tx *gorm.DB, orgID, scheduleID string) (*model.Schedule, error) {
	var schedule model.Schedule
	if err := tx.WithContext(ctx).First(&schedule, "id = ? AND organization_id = ?", scheduleID, orgID).Error; err != nil {
		return nil, fmt.Errorf("schedule: %w", notFound(err))
	}
	return &schedule, nil
}

func (s *gormStore) checkItem(ctx context.Context, tx *gorm.DB, orgID string, item *model.ScheduleItem) error {
	if _, err := s.scheduleInOrg(ctx, tx, orgID, item.ScheduleID); err != nil {
		return err
	}
	tod, err := parse.TimeOfDay(item.TimeOfDay)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	item.TimeOfDay = tod
	days, err := parse.Weekdays(item.DaysOfWeek)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	item.DaysOfWeek = days

	if err := tx.First(&model.Announcement{}, "id = ? AND organization_id = ?", item.AnnouncementID, orgID).Error; err != nil {
		return fmt.Errorf("announcement: %w", notFound(err))
	}
	if item.RoomID != nil {
		if err := tx.First(&model.Room{}, "id = ? AND organization_id = ?", *item.RoomID, orgID).Error; err != nil {
			return fmt.Errorf("room: %w", notFound(err))
		}
	}
	return nil
}
