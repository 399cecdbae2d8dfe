package handler

import (
	"errors"
	"net/http"

	"github.com/chatrelay/relay/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type APIKeyHandler struct {
	service *service.APIKeyService
}

func NewAPIKeyHandler(svc *service.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{service: svc}
}

type createAPIKeyRequest struct {
	Name       string `json:"name" binding:"required"`
	Permission string `json:"permission"`
}

// Handles POST /api-keys
func (h *APIKeyHandler) Create(c *gin.Context) {
	var req createAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}

	organizationID, err := uuid.Parse(c.GetString("organization_id"))
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid organization"})
		return
	}

	key, apiKey, err := h.service.Create(c.Request.Context(), organizationID, c.GetString("user_id"), req.Name, req.Permission)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create API key"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"api_key":    key,
		"created_at": apiKey.CreatedAt,
	})
}

// Handles GET /api-keys
func (h *APIKeyHandler) List(c *gin.Context) {
	keys, err := h.service.List(c.Request.Context(), c.GetString("organization_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch API keys"})
		return
	}

	c.JSON(http.StatusOK, keys)
}

// Handles DELETE /api-keys/:id
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	err := h.service.Revoke(c.Request.Context(), c.Param("id"), c.GetString("organization_id"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidAPIKey) {
			c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke API key"})
		return
	}

	c.Status(http.StatusNoContent)
}
