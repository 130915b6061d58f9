package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lpg-backend/internal/checkout"
	"lpg-backend/internal/idempotency"
	"lpg-backend/internal/models"
	"lpg-backend/internal/store"
)

type CheckoutRequest struct {
	EmptyCylinderReturned bool       `json:"emptyCylinderReturned"`
	DeliveryType          string     `json:"deliveryType" binding:"omitempty,oneof=ASAP Scheduled"`
	ScheduledDate         *time.Time `json:"scheduledDate"`
}

// Checkout converts the caller's cart into an order. A replayed
// Idempotency-Key answers 200 with the first order instead of 201.
func Checkout(db store.Store, svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "CHECKOUT"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondValidationError(c, route, err)
			return
		}

		if !requireDB(c, db, route) {
			return
		}
		ctx, cancel := requestContext(c)
		defer cancel()

		res, err := svc.Checkout(ctx, userID, checkout.Request{
			EmptyCylinderReturned: req.EmptyCylinderReturned,
			DeliveryType:          models.DeliveryType(req.DeliveryType),
			ScheduledDate:         req.ScheduledDate,
			IdempotencyKey:        c.GetHeader(idempotency.Header),
		})
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}

		if res.Replayed {
			c.Header(idempotency.ReplayHeader, "true")
			c.JSON(http.StatusOK, res.Order)
			return
		}
		c.JSON(http.StatusCreated, res.Order)
	}
}
