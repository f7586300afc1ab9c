package middleware

import (
	"context"
	"net/http"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studypad/backend/internal/auth/token"
)

// A private key for context access
type contextKey string

const userContextKey = contextKey("userId")

// AuthMiddleware verifies the bearer token: a Firebase ID token first, then
// one of our own API JWTs. The resolved user ID is placed on the request
// context for handlers.
func AuthMiddleware(client *fbauth.Client, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.Request.Header.Get("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}
		tokenString := strings.Replace(authHeader, "Bearer ", "", 1)

		var userID string
		if idToken, err := client.VerifyIDToken(c.Request.Context(), tokenString); err == nil {
			userID = idToken.UID
		} else if claims, jwtErr := token.Parse(tokenString); jwtErr == nil {
			userID = claims.Subject
		} else {
			log.Debugw("token rejected", "firebaseError", err, "jwtError", jwtErr)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid auth token"})
			return
		}

		ctx := context.WithValue(c.Request.Context(), userContextKey, userID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ForContext returns the authenticated user ID, or "" if absent.
func ForContext(ctx context.Context) string {
	id, _ := ctx.Value(userContextKey).(string)
	return id
}

// WithUser injects a user ID into a context; used by tests and internal calls.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey, userID)
}
