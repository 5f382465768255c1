package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tripconnect/tripchat-server/internal/auth"
)

// AuthHandlers serves the register/login/guest endpoints.
type AuthHandlers struct {
	auth *auth.Service
	log  *zerolog.Logger
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id,omitempty"`
}

// Register creates a new account and returns a JWT token.
func (h *AuthHandlers) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username and password are required"})
		return
	}

	token, err := h.auth.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidPassword):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		case errors.Is(err, auth.ErrUserExists):
			c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		default:
			h.log.Error().Err(err).Msg("register failed")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "registration failed"})
		}
		return
	}

	c.JSON(http.StatusOK, tokenResponse{Token: token})
}

// Login validates credentials and returns a JWT token.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username and password are required"})
		return
	}

	token, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.log.Error().Err(err).Msg("login failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "login failed"})
		return
	}

	c.JSON(http.StatusOK, tokenResponse{Token: token})
}

// Guest creates a temporary guest account and returns a JWT token.
func (h *AuthHandlers) Guest(c *gin.Context) {
	token, sessionID, err := h.auth.CreateGuestUser(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("guest creation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "guest creation failed"})
		return
	}

	c.JSON(http.StatusOK, tokenResponse{Token: token, SessionID: sessionID})
}
