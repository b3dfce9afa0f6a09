package store

import (
	"context"
	"fmt"

	"carevoice-backend/internal/model"
	"carevoice-backend/internal/orgtime"
)

func (s *gormStore) CreateOrganization(ctx context.Context, org *model.Organization) error {
	if _, err := orgtime.Location(org.Timezone); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := s.db.WithContext(ctx).Create(org).Error; err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

func (s *gormStore) GetOrganization(ctx context.Context, orgID string) (*model.Organization, error) {
	var org model.Organization
	if err := s.db.WithContext(ctx).First(&org, "id = ?", orgID).Error; err != nil {
		return nil, notFound(err)
	}
	return &org, nil
}

func (s *gormStore) SetSubscriptionStatus(ctx context.Context, orgID string, status model.SubscriptionStatus) error {
	res := s.db.WithContext(ctx).Model(&model.Organization{}).
		Where("id = ?", orgID).
		Update("subscription_status", status)
	if res.Error != nil {
		return fmt.Errorf("update subscription status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
