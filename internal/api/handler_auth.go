package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"slope-monitor-backend/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	Token string `json:"token,omitempty"`
	auth.Session
}

// Login exchanges credentials for a session token. Only admins get one.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	gate := auth.NewGate(h.auth)
	token, err := gate.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, sessionResponse{Token: token, Session: gate.Session()})
	case errors.Is(err, auth.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		log.Printf("Error signing in %s: %v", req.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-in failed"})
	}
}

// Logout revokes the bearer token. It succeeds for missing or invalid tokens.
func (h *Handler) Logout(c *gin.Context) {
	if token, ok := auth.BearerToken(c.GetHeader("Authorization")); ok {
		h.auth.SignOut(token)
	}
	c.Status(http.StatusNoContent)
}

// GetSession reports the session of the bearer token; signed out when the
// token is missing, invalid or lacks the admin claim.
func (h *Handler) GetSession(c *gin.Context) {
	gate := auth.NewGate(h.auth)
	if token, ok := auth.BearerToken(c.GetHeader("Authorization")); ok {
		_ = gate.Restore(token)
	}
	c.JSON(http.StatusOK, sessionResponse{Session: gate.Session()})
}
