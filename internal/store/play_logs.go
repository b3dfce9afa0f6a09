package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"carevoice-backend/internal/model"
)

// UpsertPlayLog inserts a play log or, when a row for the same
// (device, announcement, scheduledAt) already exists, overwrites its status
// and playedAt. The unique index idx_play_log_slot makes this a single atomic
// statement, so concurrent retries from a device collapse into one row.
// On return entry holds the stored row.
func (s *gormStore) UpsertPlayLog(ctx context.Context, entry *model.PlayLog) error {
	entry.ScheduledAt = entry.ScheduledAt.UTC().Truncate(time.Second)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}, {Name: "announcement_id"}, {Name: "scheduled_at"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "played_at", "updated_at"}),
		}).Omit("Organization").Create(entry).Error; err != nil {
			return fmt.Errorf("upsert play log: %w", err)
		}
		var stored model.PlayLog
		if err := tx.First(&stored, "device_id = ? AND announcement_id = ? AND scheduled_at = ?",
			entry.DeviceID, entry.AnnouncementID, entry.ScheduledAt).Error; err != nil {
			return fmt.Errorf("reload play log: %w", err)
		}
		*entry = stored
		return nil
	})
	return err
}

func (s *gormStore) ListPlayLogs(ctx context.Context, orgID string, limit int) ([]model.PlayLog, error) {
	var logs []model.PlayLog
	err := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("scheduled_at DESC").
		Limit(clampLimit(limit)).
		Find(&logs).Error
	return logs, err
}
