package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"lpg-backend/internal/apperr"
)

// Error codes returned in the "code" field of every error body.
const (
	codeValidation         = "validation_error"
	codeInvalidID          = "invalid_id"
	codeInvalidQuantity    = "invalid_quantity"
	codeInvalidStatus      = "invalid_status"
	codeInvalidTransition  = "invalid_transition"
	codeEmptyCart          = "empty_cart"
	codeProductUnavailable = "product_unavailable"
	codeInsufficientStock  = "insufficient_stock"
	codeCheckoutInProgress = "checkout_in_progress"
	codeConflict           = "conflict"
	codeNotFound           = "not_found"
	codeUnauthorized       = "unauthorized"
	codeForbidden          = "forbidden"
	codeUnavailable        = "database_unavailable"
	codeInternal           = "internal_error"
)

// respondWithAppError maps an error from the service layer onto a status
// and body. Stock failures also carry the product and quantities.
func respondWithAppError(c *gin.Context, route string, err error) {
	var stockErr *apperr.StockError
	if errors.As(err, &stockErr) {
		code := codeProductUnavailable
		if stockErr.Short {
			code = codeInsufficientStock
		}
		body := gin.H{
			"error":     stockErr.Error(),
			"code":      code,
			"productId": stockErr.ProductID.Hex(),
			"requested": stockErr.Requested,
		}
		if stockErr.Short {
			body["available"] = stockErr.Available
		}
		respondWithBody(c, http.StatusConflict, route, body)
		return
	}

	status, code := classify(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = http.StatusText(status)
	}
	respondWithError(c, status, route, code, message)
	if status == http.StatusInternalServerError {
		logInternal(c, route, err)
	}
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, apperr.ErrInvalidQuantity):
		return http.StatusBadRequest, codeInvalidQuantity
	case errors.Is(err, apperr.ErrInvalidStatus):
		return http.StatusBadRequest, codeInvalidStatus
	case errors.Is(err, apperr.ErrEmptyCart):
		return http.StatusBadRequest, codeEmptyCart
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized, codeUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden, codeForbidden
	case errors.Is(err, apperr.ErrInvalidTransition):
		return http.StatusConflict, codeInvalidTransition
	case errors.Is(err, apperr.ErrCheckoutInProgress):
		return http.StatusConflict, codeCheckoutInProgress
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, codeConflict
	case errors.Is(err, context.DeadlineExceeded),
		mongo.IsNetworkError(err),
		mongo.IsTimeout(err),
		errors.Is(err, mongo.ErrClientDisconnected):
		return http.StatusServiceUnavailable, codeUnavailable
	}
	return http.StatusInternalServerError, codeInternal
}
