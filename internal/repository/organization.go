package repository

import (
	"context"

	"github.com/chatrelay/relay/internal/models"
	"github.com/chatrelay/relay/internal/storage"
	"gorm.io/gorm"
)

type OrganizationRepository struct {
	db *storage.Postgres
}

func NewOrganizationRepository(db *storage.Postgres) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	return r.db.DB.WithContext(ctx).Create(org).Error
}

func (r *OrganizationRepository) FindByID(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.DB.WithContext(ctx).
		Where("id = ?", id).
		First(&org).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &org, err
}

func (r *OrganizationRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Organization, error) {
	var orgs []models.Organization
	err := r.db.DB.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&orgs).Error

	return orgs, err
}

// FetchTier implements ratelimit.TierSource.
func (r *OrganizationRepository) FetchTier(ctx context.Context, organizationID string) (string, error) {
	var org models.Organization
	err := r.db.DB.WithContext(ctx).
		Select("subscription_tier").
		Where("id = ?", organizationID).
		First(&org).Error

	if err != nil {
		return "", err
	}

	return org.SubscriptionTier, nil
}

func (r *OrganizationRepository) Delete(ctx context.Context, id string) error {
	return r.db.DB.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Organization{}).Error
}

func (r *OrganizationRepository) CreateMember(ctx context.Context, member *models.OrganizationMember) error {
	return r.db.DB.WithContext(ctx).Create(member).Error
}

func (r *OrganizationRepository) FindMemberships(ctx context.Context, userID string) ([]models.OrganizationMember, error) {
	var memberships []models.OrganizationMember
	err := r.db.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&memberships).Error

	return memberships, err
}
