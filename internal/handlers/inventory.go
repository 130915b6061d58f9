package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lpg-backend/internal/apperr"
	"lpg-backend/internal/inventory"
	"lpg-backend/internal/store"
)

type RestockRequest struct {
	Quantity int `json:"quantity"`
}

// ProductAvailability reports whether quantity units (default 1) can be
// bought right now. Stock failures are answered with available=false.
func ProductAvailability(db store.Store, ledger *inventory.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "INVENTORY"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		quantity := 1
		if raw := c.Query("quantity"); raw != "" {
			q, err := strconv.Atoi(raw)
			if err != nil || q < 1 {
				respondWithError(c, http.StatusBadRequest, route, codeInvalidQuantity, apperr.ErrInvalidQuantity.Error())
				return
			}
			quantity = q
		}

		if !requireDB(c, db, route) {
			return
		}
		ctx, cancel := requestContext(c)
		defer cancel()

		product, err := ledger.CheckAvailable(ctx, db.Repositories().Products, id, quantity)
		var stockErr *apperr.StockError
		switch {
		case errors.As(err, &stockErr):
			code := codeProductUnavailable
			if stockErr.Short {
				code = codeInsufficientStock
			}
			c.JSON(http.StatusOK, gin.H{
				"productId":     id.Hex(),
				"requested":     quantity,
				"available":     false,
				"stockQuantity": product.StockQuantity,
				"reason":        code,
			})
		case err != nil:
			respondWithAppError(c, route, err)
		default:
			c.JSON(http.StatusOK, gin.H{
				"productId":     id.Hex(),
				"requested":     quantity,
				"available":     true,
				"stockQuantity": product.StockQuantity,
			})
		}
	}
}

// RestockProduct returns units to stock, e.g. after a cylinder return.
func RestockProduct(db store.Store, ledger *inventory.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ADMIN_INVENTORY"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req RestockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}
		if req.Quantity < 1 {
			respondWithAppError(c, route, apperr.ErrInvalidQuantity)
			return
		}

		if !requireDB(c, db, route) {
			return
		}
		ctx, cancel := requestContext(c)
		defer cancel()

		product, err := ledger.Release(ctx, db.Repositories().Products, id, req.Quantity)
		if err != nil {
			respondWithAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}
