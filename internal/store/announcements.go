package store

import (
	"context"
	"fmt"

	"carevoice-backend/internal/model"
)

func (s *gormStore) ListAnnouncements(ctx context.Context, orgID string) ([]model.Announcement, error) {
	var list []model.Announcement
	err := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (s *gormStore) GetAnnouncement(ctx context.Context, orgID, announcementID string) (*model.Announcement, error) {
	var a model.Announcement
	if err := s.db.WithContext(ctx).First(&a, "id = ? AND organization_id = ?", announcementID, orgID).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *gormStore) CreateAnnouncement(ctx context.Context, a *model.Announcement) error {
	if err := a.Normalize(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// SaveAnnouncement persists a full announcement record after re-checking the
// TTS/MP3 invariant.
func (s *gormStore) SaveAnnouncement(ctx context.Context, a *model.Announcement) error {
	if err := a.Normalize(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	res := s.db.WithContext(ctx).
		Model(&model.Announcement{}).
		Where("id = ? AND organization_id = ?", a.ID, a.OrganizationID).
		Select("title", "type", "text", "audio_url", "language", "voice").
		Updates(a)
	if res.Error != nil {
		return fmt.Errorf("save announcement: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) DeleteAnnouncement(ctx context.Context, orgID, announcementID string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND organization_id = ?", announcementID, orgID).Delete(&model.Announcement{})
	if res.Error != nil {
		return fmt.Errorf("delete announcement: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
