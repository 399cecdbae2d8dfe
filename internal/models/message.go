package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MessageServiceSMS      = "sms"
	MessageServiceIMessage = "imessage"
)

const (
	MessageStatusPending   = "pending"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusFailed    = "failed"
)

type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;index;not null" json:"organization_id"`
	UserID         string    `gorm:"index" json:"user_id"`
	MessageGUID    string    `gorm:"index" json:"message_guid"` // gateway-side identifier
	Recipient      string    `gorm:"not null" json:"recipient"`
	Text           string    `gorm:"not null" json:"text"`
	Service        string    `gorm:"not null" json:"service"`
	Status         string    `gorm:"default:'pending'" json:"status"`
	SMSFallback    bool      `gorm:"default:false" json:"sms_fallback"`
	SentAt         time.Time `json:"sent_at"`
	CreatedAt      time.Time `json:"created_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (Message) TableName() string {
	return "messages"
}
