package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"lpg-backend/internal/apperr"
	"lpg-backend/internal/middleware"
	"lpg-backend/internal/store"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login exchanges email and password for an access token.
func Login(users store.Users, jwtSecret string, accessTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "AUTH"
		defer handlePanic(c, route)

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		user, err := users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
		if errors.Is(err, apperr.ErrNotFound) {
			respondWithError(c, http.StatusUnauthorized, route, codeUnauthorized, "invalid credentials")
			return
		}
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			respondWithError(c, http.StatusUnauthorized, route, codeUnauthorized, "invalid credentials")
			return
		}
		if !user.IsActive {
			respondWithError(c, http.StatusForbidden, route, codeForbidden, "account is deactivated")
			return
		}

		token, err := middleware.IssueToken(jwtSecret, user, accessTTL)
		if err != nil {
			logInternal(c, route, err)
			respondWithError(c, http.StatusInternalServerError, route, codeInternal, "token generation failed")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":     token,
			"expiresIn": int64(accessTTL.Seconds()),
			"user":      user,
		})
	}
}
