package handler

import (
	"errors"
	"net/http"

	"github.com/chatrelay/relay/internal/service"
	"github.com/gin-gonic/gin"
)

type OrganizationHandler struct {
	service *service.OrganizationService
}

func NewOrganizationHandler(svc *service.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{service: svc}
}

type createOrganizationRequest struct {
	Name string `json:"name" binding:"required"`
}

// Handles POST /organizations
func (h *OrganizationHandler) Create(c *gin.Context) {
	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Organization name is required"})
		return
	}

	org, err := h.service.Create(c.Request.Context(), req.Name, c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create organization"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         org.ID,
		"name":       org.Name,
		"role":       service.RoleOwner,
		"created_at": org.CreatedAt,
		"updated_at": org.UpdatedAt,
	})
}

// Handles GET /organizations
func (h *OrganizationHandler) List(c *gin.Context) {
	orgs, roles, err := h.service.ListForUser(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch organizations"})
		return
	}

	responses := make([]gin.H, 0, len(orgs))
	for _, org := range orgs {
		responses = append(responses, gin.H{
			"id":         org.ID,
			"name":       org.Name,
			"role":       roles[org.ID.String()],
			"created_at": org.CreatedAt,
			"updated_at": org.UpdatedAt,
		})
	}

	c.JSON(http.StatusOK, responses)
}

// Handles DELETE /organizations/:id
func (h *OrganizationHandler) Delete(c *gin.Context) {
	err := h.service.Delete(c.Request.Context(), c.Param("id"), c.GetString("user_id"))
	if err != nil {
		if errors.Is(err, service.ErrNotOwner) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only organization owners can delete the organization"})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete organization"})
		return
	}

	c.Status(http.StatusNoContent)
}
