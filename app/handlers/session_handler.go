package handlers

import (
	"errors"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/middleware"
	"github.com/amirphl/leadflow/app/services"
	"github.com/gofiber/fiber/v3"
)

// SessionHandler rotates and revokes console tokens
type SessionHandler struct {
	baseHandler
	tokenService services.TokenService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(tokenService services.TokenService) *SessionHandler {
	return &SessionHandler{
		baseHandler:  newBaseHandler(),
		tokenService: tokenService,
	}
}

// Refresh
// @Summary Refresh session
// @Description Exchange a refresh token for a new access and refresh token. A refresh token can be used once.
// @Tags Session
// @Accept json
// @Produce json
// @Param request body dto.RefreshSessionRequest true "Refresh token"
// @Success 200 {object} dto.APIResponse{data=dto.SessionTokensResponse} "Tokens issued"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Invalid, expired or revoked refresh token"
// @Router /api/v1/session/refresh [post]
func (h *SessionHandler) Refresh(c fiber.Ctx) error {
	var req dto.RefreshSessionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	access, refresh, err := h.tokenService.RefreshToken(req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTokenExpired):
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Refresh token has expired", "TOKEN_EXPIRED", nil)
		case errors.Is(err, services.ErrTokenRevoked):
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Refresh token has been revoked", "TOKEN_REVOKED", nil)
		default:
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid refresh token", "TOKEN_INVALID", nil)
		}
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Tokens refreshed successfully", dto.SessionTokensResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
	})
}

// Logout
// @Summary Logout
// @Description Revoke the presented access token
// @Tags Session
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse "Token revoked"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/session/logout [post]
func (h *SessionHandler) Logout(c fiber.Ctx) error {
	token, ok := c.Locals(middleware.LocalAccessToken).(string)
	if !ok || token == "" {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Access token is required", "MISSING_ACCESS_TOKEN", nil)
	}
	if err := h.tokenService.RevokeToken(token); err != nil {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid access token", "TOKEN_INVALID", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Logged out successfully", nil)
}
