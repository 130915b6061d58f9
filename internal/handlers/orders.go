package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"lpg-backend/internal/models"
	"lpg-backend/internal/orders"
	"lpg-backend/internal/store"
)

type CreateOrderItemRequest struct {
	ProductID             string `json:"productId" binding:"required,objectid"`
	Quantity              int    `json:"quantity"`
	EmptyCylinderReturned bool   `json:"emptyCylinderReturned"`
}

type CreateOrderRequest struct {
	Items                 []CreateOrderItemRequest `json:"items" binding:"required,min=1,dive"`
	EmptyCylinderReturned bool                     `json:"emptyCylinderReturned"`
	DeliveryType          string                   `json:"deliveryType" binding:"omitempty,oneof=ASAP Scheduled"`
	ScheduledDate         *time.Time               `json:"scheduledDate"`
}

// UpdateOrderStatusRequest leaves status unchecked so that a missing and an
// unknown value both answer invalid_status.
type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"paymentStatus" binding:"required"`
}

// CreateOrder places an order from an explicit item list. Stock is taken
// when an admin moves the order to processing.
func CreateOrder(db store.Store, svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ORDERS"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		items := make([]orders.ItemRequest, 0, len(req.Items))
		for _, item := range req.Items {
			productID, _ := primitive.ObjectIDFromHex(item.ProductID)
			items = append(items, orders.ItemRequest{
				ProductID:             productID,
				Quantity:              item.Quantity,
				EmptyCylinderReturned: item.EmptyCylinderReturned,
			})
		}

		if !requireDB(c, db, route) {
			return
		}
		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := svc.Create(ctx, userID, orders.CreateRequest{
			Items:                 items,
			EmptyCylinderReturned: req.EmptyCylinderReturned,
			DeliveryType:          models.DeliveryType(req.DeliveryType),
			ScheduledDate:         req.ScheduledDate,
		})
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

// ListOrders pages through orders newest first. Non-admins only see their own.
func ListOrders(db store.Store, svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ORDERS"
		defer handlePanic(c, route)

		userID, admin, ok := currentUser(c, route)
		if !ok {
			return
		}

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, codeValidation, err.Error())
			return
		}

		if !requireDB(c, db, route) {
			return
		}
		ctx, cancel := requestContext(c)
		defer cancel()

		result, err := svc.List(ctx, orders.Actor{UserID: userID, Admin: admin}, orders.ListRequest{
			Page:   page,
			Limit:  limit,
			Status: models.OrderStatus(c.Query("status")),
		})
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func GetOrder(db store.Store, svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ORDERS"
		defer handlePanic(c, route)

		userID, admin, ok := currentUser(c, route)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, route, "id")
		if !ok || !requireDB(c, db, route) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := svc.Get(ctx, orders.Actor{UserID: userID, Admin: admin}, id)
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func UpdateOrderStatus(db store.Store, svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ADMIN_ORDERS"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req UpdateOrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondValidationError(c, route, err)
			return
		}

		if !requireDB(c, db, route) {
			return
		}
		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := svc.SetStatus(ctx, id, models.OrderStatus(req.Status))
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func UpdatePaymentStatus(db store.Store, svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ADMIN_ORDERS"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req UpdatePaymentStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		if !requireDB(c, db, route) {
			return
		}
		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := svc.SetPaymentStatus(ctx, id, models.PaymentStatus(req.PaymentStatus))
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func DeleteOrder(db store.Store, svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ADMIN_ORDERS"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok || !requireDB(c, db, route) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := svc.Delete(ctx, id); err != nil {
			respondWithAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
