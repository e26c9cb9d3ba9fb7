package handler

import (
	"errors"
	"net/http"

	"pulse/backend/internal/api/middleware"
	"pulse/backend/internal/auth"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required,min=2"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, err)
		return
	}

	user, token, err := h.accounts.Register(c.Request.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if errors.Is(err, auth.ErrEmailTaken) {
		fail(c, http.StatusBadRequest, "Email already registered")
		return
	}
	if err != nil {
		h.internalError(c, err, "Registration failed")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    gin.H{"user": user, "token": token},
		"message": "Registration successful",
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, err)
		return
	}

	user, token, err := h.accounts.Login(c.Request.Context(), auth.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	case errors.Is(err, auth.ErrPasswordLogin):
		fail(c, http.StatusUnauthorized, "Please use Google login")
		return
	case errors.Is(err, auth.ErrUserBlocked):
		fail(c, http.StatusForbidden, "User is blocked")
		return
	default:
		h.internalError(c, err, "Login failed")
		return
	}

	ok(c, http.StatusOK, gin.H{"user": user, "token": token})
}

func (h *Handler) Me(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	ok(c, http.StatusOK, user)
}

func (h *Handler) Logout(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	if err := h.accounts.Logout(c.Request.Context(), user.ID); err != nil {
		h.internalError(c, err, "Logout failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
}
