package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/chatrelay/relay/internal/gateway"
	"github.com/chatrelay/relay/internal/metrics"
	"github.com/chatrelay/relay/internal/models"
	"github.com/chatrelay/relay/internal/repository"
	"github.com/google/uuid"
)

var (
	ErrInvalidRecipient = errors.New("invalid phone number")
	ErrEmptyText        = errors.New("message text cannot be empty")
	ErrSendFailed       = errors.New("failed to send message")
)

// E.164 without a phone-metadata library; the gateway does the real
// number resolution.
var phonePattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

type MessageService struct {
	repository *repository.MessageRepository
	gateway    *gateway.Client
}

func NewMessageService(repo *repository.MessageRepository, gw *gateway.Client) *MessageService {
	return &MessageService{
		repository: repo,
		gateway:    gw,
	}
}

type SendRequest struct {
	OrganizationID uuid.UUID
	UserID         string
	To             string
	Text           string
	Service        string // requested service; defaults to imessage
}

// Send validates the request, forwards the message through the chat
// gateway (falling back to SMS when iMessage cannot reach the recipient)
// and persists the record. The caller has already passed admission control.
func (s *MessageService) Send(ctx context.Context, req SendRequest) (*models.Message, error) {
	if !phonePattern.MatchString(req.To) {
		return nil, ErrInvalidRecipient
	}

	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	requested := req.Service
	if requested == "" {
		requested = models.MessageServiceIMessage
	}

	available := false
	if requested == models.MessageServiceIMessage {
		available = s.gateway.CheckIMessageAvailability(ctx, req.To)
	}

	service := models.MessageServiceSMS
	if requested == models.MessageServiceIMessage && available {
		service = models.MessageServiceIMessage
	}

	messageGUID, err := s.deliver(ctx, service, req.To, req.Text)
	if err != nil {
		log.Printf("Failed to deliver message to %s: %v", req.To, err)
		return nil, ErrSendFailed
	}

	smsFallback := requested == models.MessageServiceIMessage && !available

	message := &models.Message{
		OrganizationID: req.OrganizationID,
		UserID:         req.UserID,
		MessageGUID:    messageGUID,
		Recipient:      req.To,
		Text:           req.Text,
		Service:        service,
		Status:         models.MessageStatusSent,
		SMSFallback:    smsFallback,
		SentAt:         time.Now().UTC(),
	}

	if err := s.repository.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	metrics.MessagesSentTotal.WithLabelValues(service).Inc()

	return message, nil
}

func (s *MessageService) deliver(ctx context.Context, service, recipient, text string) (string, error) {
	servicePrefix := "SMS"
	if service == models.MessageServiceIMessage {
		servicePrefix = "iMessage"
	}

	chatGUID, err := s.gateway.GetChat(ctx, fmt.Sprintf("%s;-;%s", servicePrefix, recipient))
	if err != nil {
		log.Printf("Chat lookup failed for %s: %v", recipient, err)
	}

	if chatGUID != "" {
		return s.gateway.SendText(ctx, chatGUID, text)
	}

	return s.gateway.CreateChat(ctx, recipient, text)
}

func (s *MessageService) Get(ctx context.Context, id, organizationID string) (*models.Message, error) {
	return s.repository.FindByID(ctx, id, organizationID)
}

func (s *MessageService) List(ctx context.Context, organizationID string, limit, offset int) ([]models.Message, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	return s.repository.ListByOrganization(ctx, organizationID, limit, offset)
}
