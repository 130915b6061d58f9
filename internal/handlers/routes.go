package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"lpg-backend/internal/cart"
	"lpg-backend/internal/checkout"
	"lpg-backend/internal/inventory"
	"lpg-backend/internal/metrics"
	"lpg-backend/internal/middleware"
	"lpg-backend/internal/models"
	"lpg-backend/internal/orders"
	"lpg-backend/internal/store"
)

// Deps carries everything the HTTP layer calls into.
type Deps struct {
	Store          store.Store
	Ledger         *inventory.Ledger
	Carts          *cart.Service
	Checkout       *checkout.Service
	Orders         *orders.Service
	Metrics        *metrics.Metrics
	JWTSecret      string
	AccessTokenTTL time.Duration
}

func Register(r *gin.Engine, d Deps) {
	RegisterValidators()

	r.Use(middleware.RequestID(), d.Metrics.Middleware())

	r.GET("/healthz", Health(d.Store))
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	r.POST("/auth/login", Login(d.Store.Repositories().Users, d.JWTSecret, d.AccessTokenTTL))
	r.GET("/products/:id/availability", ProductAvailability(d.Store, d.Ledger))

	authed := r.Group("/")
	authed.Use(middleware.Authenticate(d.JWTSecret, d.Store.Repositories().Users))
	{
		authed.GET("/cart", GetCart(d.Store, d.Carts))
		authed.POST("/cart", AddCartItem(d.Store, d.Carts))
		authed.DELETE("/cart", ClearCart(d.Store, d.Carts))
		authed.POST("/cart/checkout", Checkout(d.Store, d.Checkout))
		authed.PUT("/cart/:itemId", UpdateCartItem(d.Store, d.Carts))
		authed.DELETE("/cart/:itemId", RemoveCartItem(d.Store, d.Carts))

		authed.GET("/orders", ListOrders(d.Store, d.Orders))
		authed.POST("/orders", CreateOrder(d.Store, d.Orders))
		authed.GET("/orders/:id", GetOrder(d.Store, d.Orders))
	}

	admin := authed.Group("/")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	{
		admin.PUT("/orders/:id/status", UpdateOrderStatus(d.Store, d.Orders))
		admin.PUT("/orders/:id/payment", UpdatePaymentStatus(d.Store, d.Orders))
		admin.DELETE("/orders/:id", DeleteOrder(d.Store, d.Orders))
		admin.POST("/products/:id/restock", RestockProduct(d.Store, d.Ledger))
	}
}
