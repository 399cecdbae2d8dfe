package handler

import (
	"net/http"

	"github.com/chatrelay/relay/internal/repository"
	"github.com/gin-gonic/gin"
)

type ContactHandler struct {
	repository *repository.ContactRepository
}

func NewContactHandler(repo *repository.ContactRepository) *ContactHandler {
	return &ContactHandler{repository: repo}
}

// Handles GET /contacts
func (h *ContactHandler) List(c *gin.Context) {
	contacts, err := h.repository.ListByOrganization(c.Request.Context(), c.GetString("organization_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch contacts"})
		return
	}

	c.JSON(http.StatusOK, contacts)
}
