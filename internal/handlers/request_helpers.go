package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"lpg-backend/internal/config"
	"lpg-backend/internal/middleware"
	"lpg-backend/internal/models"
	"lpg-backend/internal/store"
)

const defaultRequestTimeout = 5 * time.Second

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		log.Printf("[%s] [ERROR] panic recovered request=%s: %v", route, c.GetString(middleware.RequestIDKey), r)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "code": codeInternal})
	}
}

func ensureDBConnection(ctx context.Context, db store.Store) error {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return db.Ping(checkCtx)
}

func respondWithError(c *gin.Context, status int, route, code, message string) {
	log.Printf("[%s] returning error %d (%s) request=%s: %s", route, status, code, c.GetString(middleware.RequestIDKey), message)
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	timeout := config.AppEnv.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}

// requireDB answers 503 and returns false when the store does not respond.
func requireDB(c *gin.Context, db store.Store, route string) bool {
	if err := ensureDBConnection(c.Request.Context(), db); err != nil {
		respondWithError(c, http.StatusServiceUnavailable, route, codeUnavailable, "database unavailable")
		return false
	}
	return true
}

// currentUser reads the identity set by middleware.Authenticate.
func currentUser(c *gin.Context, route string) (primitive.ObjectID, bool, bool) {
	userID, role, ok := middleware.CurrentUser(c)
	if !ok {
		respondWithError(c, http.StatusUnauthorized, route, codeUnauthorized, "unauthorized")
		return primitive.NilObjectID, false, false
	}
	return userID, role == models.RoleAdmin, true
}

func objectIDParam(c *gin.Context, route, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, route, codeInvalidID, "invalid "+name)
		return primitive.NilObjectID, false
	}
	return id, true
}

func respondWithBody(c *gin.Context, status int, route string, body gin.H) {
	log.Printf("[%s] returning error %d (%v) request=%s: %v", route, status, body["code"], c.GetString(middleware.RequestIDKey), body["error"])
	c.AbortWithStatusJSON(status, body)
}

func logInternal(c *gin.Context, route string, err error) {
	log.Printf("[%s] [ERROR] request=%s: %v", route, c.GetString(middleware.RequestIDKey), err)
}
