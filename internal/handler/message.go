package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/chatrelay/relay/internal/models"
	"github.com/chatrelay/relay/internal/ratelimit"
	"github.com/chatrelay/relay/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MessageHandler struct {
	service *service.MessageService
	limiter *ratelimit.Limiter
}

func NewMessageHandler(svc *service.MessageService, limiter *ratelimit.Limiter) *MessageHandler {
	return &MessageHandler{
		service: svc,
		limiter: limiter,
	}
}

type sendMessageRequest struct {
	To      string `json:"to" binding:"required"`
	Text    string `json:"text" binding:"required"`
	Service string `json:"service"`
}

// Handles POST /messages. Admission control has already run in middleware.
func (h *MessageHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	organizationID, err := uuid.Parse(c.GetString("organization_id"))
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid organization"})
		return
	}

	message, err := h.service.Send(c.Request.Context(), service.SendRequest{
		OrganizationID: organizationID,
		UserID:         c.GetString("user_id"),
		To:             req.To,
		Text:           req.Text,
		Service:        req.Service,
	})

	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRecipient), errors.Is(err, service.ErrEmptyText):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		}
		return
	}

	c.JSON(http.StatusOK, messageResponse(message))
}

// Handles GET /messages/limits
func (h *MessageHandler) GetLimits(c *gin.Context) {
	status := h.limiter.Status(c.Request.Context(), c.GetString("organization_id"))
	c.JSON(http.StatusOK, gin.H{"limits": status})
}

// Handles GET /messages/:id
func (h *MessageHandler) Get(c *gin.Context) {
	message, err := h.service.Get(c.Request.Context(), c.Param("id"), c.GetString("organization_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch message"})
		return
	}

	if message == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}

	c.JSON(http.StatusOK, messageResponse(message))
}

// Handles GET /messages
func (h *MessageHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.service.List(c.Request.Context(), c.GetString("organization_id"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}

	responses := make([]gin.H, 0, len(messages))
	for i := range messages {
		responses = append(responses, messageResponse(&messages[i]))
	}

	c.JSON(http.StatusOK, responses)
}

func messageResponse(m *models.Message) gin.H {
	return gin.H{
		"id":           m.ID,
		"recipient":    m.Recipient,
		"text":         m.Text,
		"service":      m.Service,
		"status":       m.Status,
		"sent_at":      m.SentAt,
		"sms_fallback": m.SMSFallback,
	}
}
