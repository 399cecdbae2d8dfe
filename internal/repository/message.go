package repository

import (
	"context"

	"github.com/chatrelay/relay/internal/models"
	"github.com/chatrelay/relay/internal/storage"
	"gorm.io/gorm"
)

type MessageRepository struct {
	db *storage.Postgres
}

func NewMessageRepository(db *storage.Postgres) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.DB.WithContext(ctx).Create(message).Error
}

func (r *MessageRepository) FindByID(ctx context.Context, id, organizationID string) (*models.Message, error) {
	var message models.Message
	err := r.db.DB.WithContext(ctx).
		Where("id = ? AND organization_id = ?", id, organizationID).
		First(&message).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &message, err
}

func (r *MessageRepository) ListByOrganization(ctx context.Context, organizationID string, limit, offset int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.DB.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("sent_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error

	return messages, err
}
