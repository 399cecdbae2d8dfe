package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
)

// IdentityHandler issues an HMAC of the caller's user ID for identity
// verification with third-party support widgets.
type IdentityHandler struct {
	secret []byte
}

func NewIdentityHandler(secret string) *IdentityHandler {
	return &IdentityHandler{secret: []byte(secret)}
}

// Handles GET /identity
func (h *IdentityHandler) Get(c *gin.Context) {
	if len(h.secret) == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Identity verification is not configured"})
		return
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(c.GetString("user_id")))

	c.JSON(http.StatusOK, gin.H{
		"hash": hex.EncodeToString(mac.Sum(nil)),
	})
}
