package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"lpg-backend/internal/cart"
	"lpg-backend/internal/store"
)

type AddCartItemRequest struct {
	ProductID string `json:"productId" binding:"required,objectid"`
	Quantity  int    `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func GetCart(db store.Store, carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "CART"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok || !requireDB(c, db, route) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := carts.View(ctx, userID)
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// AddCartItem merges quantity into the line for productId. A missing or
// zero quantity is rejected as invalid_quantity.
func AddCartItem(db store.Store, carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "CART"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req AddCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}
		productID, _ := primitive.ObjectIDFromHex(req.ProductID)

		if !requireDB(c, db, route) {
			return
		}
		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := carts.AddItem(ctx, userID, productID, req.Quantity)
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func UpdateCartItem(db store.Store, carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "CART"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}
		itemID, ok := objectIDParam(c, route, "itemId")
		if !ok {
			return
		}

		var req UpdateCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		if !requireDB(c, db, route) {
			return
		}
		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := carts.UpdateItem(ctx, userID, itemID, req.Quantity)
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func RemoveCartItem(db store.Store, carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "CART"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}
		itemID, ok := objectIDParam(c, route, "itemId")
		if !ok || !requireDB(c, db, route) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := carts.RemoveItem(ctx, userID, itemID)
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func ClearCart(db store.Store, carts *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "CART"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok || !requireDB(c, db, route) {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := carts.Clear(ctx, userID); err != nil {
			respondWithAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "cart cleared"})
	}
}
