package handler

import (
	aentity "github.com/datachef-lab/taskify-backend/internal/analytics/entity"
	"github.com/datachef-lab/taskify-backend/internal/task/entity"
	"github.com/datachef-lab/taskify-backend/internal/task/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuthHandler login and token endpoints
type AuthHandler struct {
	authSvc    *service.AuthService
	activities service.ActivityRecorder
}

func NewAuthHandler(authSvc *service.AuthService, activities service.ActivityRecorder) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, activities: activities}
}

// LoginResponse token pair plus the signed-in user
type LoginResponse struct {
	*service.TokenPair
	User *entity.User `json:"user"`
}

// Login POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, tokens, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		HandleError(c, err)
		return
	}

	if h.activities != nil {
		h.activities.LogAsync(&aentity.ActivityLog{
			ID:           uuid.New().String(),
			ActivityType: aentity.ActivityLogin,
			EntityType:   aentity.EntityUser,
			EntityID:     user.ID,
			UserID:       user.ID,
			IPAddress:    c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
			Description:  "user logged in",
		})
	}

	Success(c, LoginResponse{TokenPair: tokens, User: user})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}

	tokens, err := h.authSvc.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		Unauthorized(c, "invalid refresh token")
		return
	}
	Success(c, tokens)
}

// Me GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authSvc.GetCurrentUser(c.Request.Context(), GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, user)
}
