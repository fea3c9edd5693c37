package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"otp_expense_tracker/internal/middleware"
	"otp_expense_tracker/internal/model"
	"otp_expense_tracker/internal/service"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	service       service.AuthService
	otpInResponse bool
	logger        *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. otpInResponse echoes issued
// codes back to the caller and must stay off outside test setups.
func NewAuthHandler(s service.AuthService, otpInResponse bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: s, otpInResponse: otpInResponse, logger: logger}
}

// RequestOTP handles POST /auth/request-otp.
func (h *AuthHandler) RequestOTP(c *gin.Context) {
	var req model.RequestOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	issue, err := h.service.RequestOTP(c.Request.Context(), normalizePhone(req.Phone), req.Name)
	if err != nil {
		respondError(c, h.logger, err, "Error requesting OTP")
		return
	}

	resp := gin.H{"success": true, "message": "OTP sent successfully"}
	if h.otpInResponse {
		resp["otp"] = issue.Code
	}
	c.JSON(http.StatusOK, resp)
}

// VerifyOTP handles POST /auth/verify-otp.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req model.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, token, err := h.service.VerifyOTP(c.Request.Context(), normalizePhone(req.Phone), req.OTP)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondMessage(c, http.StatusBadRequest, service.ErrUserNotFound.Message)
			return
		}
		respondError(c, h.logger, err, "Error verifying OTP")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "OTP verified successfully",
		"token":   token,
		"user":    user.Public(),
	})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondMessage(c, http.StatusUnauthorized, "Not authorized")
		return
	}
	respondOK(c, http.StatusOK, user)
}

// UpdateMe handles PUT /auth/me.
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondMessage(c, http.StatusUnauthorized, "Not authorized")
		return
	}

	var req model.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	updated, err := h.service.UpdateProfile(c.Request.Context(), user.ID, req)
	if err != nil {
		respondError(c, h.logger, err, "Error updating user")
		return
	}
	respondOK(c, http.StatusOK, updated)
}

// RegisterAuthRoutes registers auth routes. /me answers 404 when the token's
// identity is gone, every other gated route answers 401.
func (h *AuthHandler) RegisterAuthRoutes(rg *gin.RouterGroup, resolver middleware.IdentityResolver) {
	meGate := middleware.JWTAuthMiddleware(resolver,
		middleware.WithMissingIdentity(http.StatusNotFound, service.ErrUserNotFound.Message),
		middleware.WithGateLogger(h.logger),
	)

	authGroup := rg.Group("/auth")
	{
		authGroup.POST("/request-otp", h.RequestOTP)
		authGroup.POST("/verify-otp", h.VerifyOTP)
		authGroup.GET("/me", meGate, h.Me)
		authGroup.PUT("/me", meGate, h.UpdateMe)
	}
}
