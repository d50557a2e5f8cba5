package handler

import (
	"github.com/gin-gonic/gin"

	"foerderscout/internal/app"
	"foerderscout/internal/transport/http/response"
)

type AuthHandler struct {
	authService *app.AuthService
}

type RegisterRequest struct {
	Email           string `json:"email" binding:"required,email,max=255"`
	Password        string `json:"password" binding:"required,min=8,max=72"`
	FullName        string `json:"full_name" binding:"max=255"`
	CompanyName     string `json:"company_name" binding:"required,max=255"`
	CompanySize     *int   `json:"company_size" binding:"omitempty,min=1"`
	Industry        string `json:"industry" binding:"max=128"`
	AnnualRevenue   *int64 `json:"annual_revenue" binding:"omitempty,min=0"`
	Location        string `json:"location" binding:"max=255"`
	TechnologyStack string `json:"technology_stack" binding:"max=512"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	FullName        *string `json:"full_name" binding:"omitempty,max=255"`
	CompanyName     *string `json:"company_name" binding:"omitempty,max=255"`
	CompanySize     *int    `json:"company_size" binding:"omitempty,min=1"`
	Industry        *string `json:"industry" binding:"omitempty,max=128"`
	AnnualRevenue   *int64  `json:"annual_revenue" binding:"omitempty,min=0"`
	Location        *string `json:"location" binding:"omitempty,max=255"`
	TechnologyStack *string `json:"technology_stack" binding:"omitempty,max=512"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
}

func NewAuthHandler(authService *app.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}

	result, err := h.authService.Register(app.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		FullName:        req.FullName,
		CompanyName:     req.CompanyName,
		CompanySize:     req.CompanySize,
		Industry:        req.Industry,
		AnnualRevenue:   req.AnnualRevenue,
		Location:        req.Location,
		TechnologyStack: req.TechnologyStack,
	})
	if err != nil {
		writeError(c, err, "register failed")
		return
	}

	response.Created(c, tokenPayload(result))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}

	result, err := h.authService.Login(app.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, err, "login failed")
		return
	}

	response.OK(c, tokenPayload(result))
}

// Refresh trades a still valid token for a new one.
func (h *AuthHandler) Refresh(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	result, err := h.authService.Refresh(userID)
	if err != nil {
		writeError(c, err, "refresh token failed")
		return
	}

	response.OK(c, tokenPayload(result))
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		writeError(c, err, "fetch current user failed")
		return
	}

	response.OK(c, user)
}

func (h *AuthHandler) UpdateMe(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}

	user, err := h.authService.UpdateProfile(userID, app.ProfileUpdate{
		FullName:        req.FullName,
		CompanyName:     req.CompanyName,
		CompanySize:     req.CompanySize,
		Industry:        req.Industry,
		AnnualRevenue:   req.AnnualRevenue,
		Location:        req.Location,
		TechnologyStack: req.TechnologyStack,
	})
	if err != nil {
		writeError(c, err, "update profile failed")
		return
	}

	response.OK(c, user)
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}

	if err := h.authService.ChangePassword(app.ChangePasswordInput{
		UserID:          userID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	}); err != nil {
		writeError(c, err, "change password failed")
		return
	}

	response.OK(c, gin.H{"changed": true})
}

func (h *AuthHandler) Stats(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	stats, err := h.authService.Stats(userID)
	if err != nil {
		writeError(c, err, "fetch statistics failed")
		return
	}

	response.OK(c, stats)
}

func tokenPayload(result *app.AuthResult) gin.H {
	return gin.H{
		"access_token": result.Token,
		"token_type":   "bearer",
		"expires_in":   result.ExpiresIn,
		"user":         result.User,
	}
}
