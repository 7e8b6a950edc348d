package api

import (
	"errors"
	"net/http"

	"catalog-service/internal/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// credentialsRequest is the body of /auth/login and /auth/register
type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, "Invalid request body", err)
		return
	}

	tokens, err := h.opts.Identity.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.providerError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, "Invalid request body", err)
		return
	}

	if err := h.opts.Identity.Register(c.Request.Context(), req.Email, req.Password); err != nil {
		h.providerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User created successfully."})
}

// providerError passes the provider's payload through as a 400 detail
func (h *Handler) providerError(c *gin.Context, err error) {
	var perr *auth.ProviderError
	if errors.As(err, &perr) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": perr.Body})
		return
	}

	h.logger.Error("Identity provider call failed", zap.Error(err))
	c.JSON(http.StatusBadGateway, gin.H{"detail": "Identity provider unavailable"})
}
