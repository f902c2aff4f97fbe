package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/stream-queue-system/pkg/jwt"
	"github.com/stream-queue-system/pkg/redis"
)

const (
	cookieName   = "auth_token"
	sessionIDKey = "session_id"
)

type SessionStore interface {
	StoreSession(ctx context.Context, sessionID string, session *redis.SessionInfo) error
	GetSession(ctx context.Context, sessionID string) (*redis.SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// AuthMiddleware resolves the caller from the auth cookie, a bearer header or
// a token query parameter (websocket clients), in that order.
func AuthMiddleware(tokens *jwt.Manager, sessions SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		claims, err := tokens.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		session, err := sessions.GetSession(c.Request.Context(), claims.SessionID)
		if err != nil {
			if !errors.Is(err, redis.ErrSessionNotFound) {
				log.Error().Err(err).Str("session_id", claims.SessionID).Msg("session lookup failed")
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}
		if session.UserID != claims.UserID {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		SetIdentity(c, Identity{UserID: session.UserID, Email: session.Email})
		c.Set(sessionIDKey, claims.SessionID)
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return c.Query("token")
}
