package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"lpg-backend/internal/apperr"
	"lpg-backend/internal/models"
	"lpg-backend/internal/store"
)

// Context keys set by Authenticate.
const (
	UserIDKey = "userId"
	RoleKey   = "role"
)

const userLookupTimeout = 3 * time.Second

// Authenticate validates the bearer token and resolves the user it names.
// Tokens for deleted or deactivated users are rejected even if unexpired.
func Authenticate(secret string, users store.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			log.Println("[AUTH] [ERROR] missing or malformed token")
			abortUnauthorized(c, "missing token")
			return
		}

		userID, err := parseUserToken(secret, raw)
		if err != nil {
			log.Println("[AUTH] [ERROR] token validation failed:", err)
			abortUnauthorized(c, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), userLookupTimeout)
		defer cancel()

		user, err := users.FindByID(ctx, userID)
		if errors.Is(err, apperr.ErrNotFound) {
			log.Printf("[AUTH] [WARN] token for unknown user %s", userID.Hex())
			abortUnauthorized(c, "unauthorized")
			return
		}
		if err != nil {
			log.Printf("[AUTH] [ERROR] user lookup failed: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "code": "internal_error"})
			return
		}
		if !user.IsActive {
			log.Printf("[AUTH] [WARN] inactive user %s rejected", userID.Hex())
			abortUnauthorized(c, "account is deactivated")
			return
		}

		c.Set(UserIDKey, user.ID)
		c.Set(RoleKey, user.Role)
		c.Next()
	}
}

// RequireRole must run after Authenticate.
func RequireRole(allowed ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(RoleKey)
		for _, r := range allowed {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "code": "forbidden"})
	}
}

// CurrentUser returns the identity stored by Authenticate.
func CurrentUser(c *gin.Context) (primitive.ObjectID, models.Role, bool) {
	value, ok := c.Get(UserIDKey)
	if !ok {
		return primitive.NilObjectID, "", false
	}
	userID, ok := value.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, "", false
	}
	role, _ := c.Get(RoleKey)
	r, _ := role.(models.Role)
	return userID, r, true
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message, "code": "unauthorized"})
}
