package repository

import (
	"context"

	"github.com/chatrelay/relay/internal/models"
	"github.com/chatrelay/relay/internal/storage"
)

type ContactRepository struct {
	db *storage.Postgres
}

func NewContactRepository(db *storage.Postgres) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) Create(ctx context.Context, contact *models.Contact) error {
	return r.db.DB.WithContext(ctx).Create(contact).Error
}

func (r *ContactRepository) ListByOrganization(ctx context.Context, organizationID string) ([]models.Contact, error) {
	var contacts []models.Contact
	err := r.db.DB.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("created_at DESC").
		Find(&contacts).Error

	return contacts, err
}
