package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"carevoice-backend/internal/model"
)

const (
	AuditEmergencyCreate = "emergency.create"
	AuditEmergencyCancel = "emergency.cancel"
)

// CreateBroadcast deactivates every active broadcast of the organization and
// inserts b as the single active one, in one transaction. On postgres the
// organization row is locked first so concurrent creates serialize; the
// partial unique index idx_emergency_one_active is the backstop.
func (s *gormStore) CreateBroadcast(ctx context.Context, b *model.EmergencyBroadcast, actorID string) error {
	b.Active = true
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var org model.Organization
		q := tx.Select("id")
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&org, "id = ?", b.OrganizationID).Error; err != nil {
			return fmt.Errorf("organization: %w", notFound(err))
		}

		var previous []model.EmergencyBroadcast
		if err := tx.Where("organization_id = ? AND active = ?", b.OrganizationID, true).Find(&previous).Error; err != nil {
			return fmt.Errorf("load active broadcasts: %w", err)
		}
		if len(previous) > 0 {
			if err := tx.Model(&model.EmergencyBroadcast{}).
				Where("organization_id = ? AND active = ?", b.OrganizationID, true).
				Update("active", false).Error; err != nil {
				return fmt.Errorf("deactivate broadcasts: %w", err)
			}
		}

		if err := tx.Omit("Announcement", "Organization").Create(b).Error; err != nil {
			return fmt.Errorf("create broadcast: %w", err)
		}

		var before any
		if len(previous) > 0 {
			before = previous
		}
		return writeAudit(tx, b.OrganizationID, actorID, AuditEmergencyCreate, b.ID, before, b)
	})
}

// CancelBroadcast deactivates a broadcast. It reports false, without writing
// an audit entry, when the broadcast was already inactive.
func (s *gormStore) CancelBroadcast(ctx context.Context, orgID, broadcastID, actorID string) (bool, error) {
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b model.EmergencyBroadcast
		if err := tx.First(&b, "id = ? AND organization_id = ?", broadcastID, orgID).Error; err != nil {
			return notFound(err)
		}
		if !b.Active {
			return nil
		}
		res := tx.Model(&model.EmergencyBroadcast{}).
			Where("id = ? AND active = ?", broadcastID, true).
			Update("active", false)
		if res.Error != nil {
			return fmt.Errorf("cancel broadcast: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true
		after := b
		after.Active = false
		return writeAudit(tx, orgID, actorID, AuditEmergencyCancel, broadcastID, b, after)
	})
	return changed, err
}

// ActiveBroadcast returns the organization's broadcast in effect at now.
// Rows still flagged active but past their expiry are ignored.
func (s *gormStore) ActiveBroadcast(ctx context.Context, orgID string, now time.Time) (*model.EmergencyBroadcast, error) {
	var b model.EmergencyBroadcast
	err := s.db.WithContext(ctx).
		Preload("Announcement").
		Where("organization_id = ? AND active = ?", orgID, true).
		Where("expires_at IS NULL OR expires_at > ?", now.UTC()).
		Order("created_at DESC").
		First(&b).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (s *gormStore) GetBroadcast(ctx context.Context, broadcastID string) (*model.EmergencyBroadcast, error) {
	var b model.EmergencyBroadcast
	if err := s.db.WithContext(ctx).Preload("Announcement").First(&b, "id = ?", broadcastID).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// DeactivateExpiredBroadcasts flips the active flag on broadcasts whose expiry
// has passed. Reads never depend on it having run.
func (s *gormStore) DeactivateExpiredBroadcasts(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.EmergencyBroadcast{}).
		Where("active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now.UTC()).
		Update("active", false)
	return res.RowsAffected, res.Error
}

func writeAudit(tx *gorm.DB, orgID, actorID, action, entityID string, oldValue, newValue any) error {
	entry := model.AuditLog{
		OrganizationID: orgID,
		ActorID:        actorID,
		Action:         action,
		EntityType:     "EmergencyBroadcast",
		EntityID:       entityID,
	}
	var err error
	if entry.OldValue, err = snapshot(oldValue); err != nil {
		return err
	}
	if entry.NewValue, err = snapshot(newValue); err != nil {
		return err
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

func snapshot(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return datatypes.JSON(raw), nil
}
