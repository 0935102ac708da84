package user

import (
	"collaborative-text-editor/auth"
	"collaborative-text-editor/internal/errors"
	"collaborative-text-editor/redis"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for users
type Handler struct {
	service Service
	jwt     *auth.JWT
	tokens  *redis.TokenStore
	ttl     time.Duration
}

// NewHandler creates a new user handler
func NewHandler(service Service, jwt *auth.JWT, tokens *redis.TokenStore, ttl time.Duration) *Handler {
	return &Handler{service: service, jwt: jwt, tokens: tokens, ttl: ttl}
}

// FormLogin represents login form data
type FormLogin struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// FormRegister represents registration form data
type FormRegister struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// Register handles user registration
func (h *Handler) Register(c *gin.Context) {
	var form FormRegister
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.BadRequest("Invalid input", err))
		return
	}

	u := &User{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
	}

	if err := h.service.Register(c.Request.Context(), u); err != nil {
		c.Error(err)
		return
	}

	token, err := h.issueToken(c, u)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token, "user": u.ToSafeUser()})
}

// Login handles user login
func (h *Handler) Login(c *gin.Context) {
	var form FormLogin
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.BadRequest("Invalid input", err))
		return
	}

	u, err := h.service.Login(c.Request.Context(), form.Email, form.Password)
	if err != nil {
		c.Error(err)
		return
	}

	token, err := h.issueToken(c, u)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": u.ToSafeUser()})
}

// Logout revokes the current token
func (h *Handler) Logout(c *gin.Context) {
	token := c.GetString("jwt_token")
	if err := h.tokens.Revoke(c.Request.Context(), token); err != nil {
		c.Error(errors.Unavailable("Can't revoke token", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// GetProfile returns the authenticated user
func (h *Handler) GetProfile(c *gin.Context) {
	userID := c.GetString("user_id")
	u, err := h.service.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		c.Error(errors.NotFound("User not found", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u.ToSafeUser()})
}

func (h *Handler) issueToken(c *gin.Context, u *User) (string, error) {
	token, err := h.jwt.GenerateToken(u.ID, u.Username)
	if err != nil {
		return "", errors.Internal(err)
	}
	if err := h.tokens.Save(c.Request.Context(), token, u.ID, h.ttl); err != nil {
		return "", errors.Unavailable("Can't store token", err)
	}
	return token, nil
}
