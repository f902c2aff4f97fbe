package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/stream-queue-system/pkg/jwt"
	"github.com/stream-queue-system/pkg/models"
	"github.com/stream-queue-system/pkg/redis"
)

type UserStore interface {
	UpsertUserByEmail(ctx context.Context, email, name string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type Handler struct {
	users        UserStore
	sessions     SessionStore
	tokens       *jwt.Manager
	devLogin     bool
	secureCookie bool
}

func NewHandler(users UserStore, sessions SessionStore, tokens *jwt.Manager, devLogin, secureCookie bool) *Handler {
	return &Handler{
		users:        users,
		sessions:     sessions,
		tokens:       tokens,
		devLogin:     devLogin,
		secureCookie: secureCookie,
	}
}

// Middleware returns the authentication middleware bound to this handler's
// token manager and session store.
func (h *Handler) Middleware() gin.HandlerFunc {
	return AuthMiddleware(h.tokens, h.sessions)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		// Public routes
		auth.POST("/login", h.login)

		// Protected routes (require authentication)
		protected := auth.Group("", h.Middleware())
		protected.POST("/logout", h.logout)
		protected.GET("/me", h.me)
	}
}

type LoginRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name"`
}

// login issues a session for an email address without verification.
// Development only; gated by AUTH_DEV_LOGIN.
func (h *Handler) login(c *gin.Context) {
	if !h.devLogin {
		c.JSON(http.StatusNotFound, gin.H{"error": "login is disabled"})
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.UpsertUserByEmail(ctx, req.Email, req.Name)
	if err != nil {
		log.Error().Err(err).Msg("failed to upsert user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	sessionID := uuid.NewString()
	session := &redis.SessionInfo{
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: time.Now().Add(h.tokens.TTL()).UTC(),
	}
	if err := h.sessions.StoreSession(ctx, sessionID, session); err != nil {
		log.Error().Err(err).Msg("failed to store session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store session"})
		return
	}

	token, err := h.tokens.GenerateToken(user.ID, sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.sessions.DeleteSession(c.Request.Context(), c.GetString(sessionIDKey)); err != nil {
		log.Error().Err(err).Msg("failed to delete session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log out"})
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	id := IdentityFrom(c)
	user, err := h.users.GetUserByID(c.Request.Context(), id.UserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", id.UserID).Msg("failed to load user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user no longer exists"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}
