package store

import (
	"context"

	"carevoice-backend/internal/model"
)

func (s *gormStore) ListAuditLogs(ctx context.Context, orgID string, limit int) ([]model.AuditLog, error) {
	var logs []model.AuditLog
	err := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at DESC").
		Limit(clampLimit(limit)).
		Find(&logs).Error
	return logs, err
}
