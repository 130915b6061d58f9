// Package store defines the persistence capabilities consumed by the
// checkout core. Implementations guarantee that Transaction runs fn with
// all-or-nothing semantics: when fn returns an error no write made through
// the supplied Repositories is visible afterwards.
package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"lpg-backend/internal/models"
)

type Products interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Product, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error)
	// DecrementStock removes quantity units only if the product is
	// purchasable and holds at least quantity units at write time. It
	// returns the updated product or an *apperr.StockError.
	DecrementStock(ctx context.Context, id primitive.ObjectID, quantity int) (models.Product, error)
	IncrementStock(ctx context.Context, id primitive.ObjectID, quantity int) (models.Product, error)
}

type Carts interface {
	// FindByUser returns apperr.ErrNotFound when the user never created a cart.
	FindByUser(ctx context.Context, userID primitive.ObjectID) (models.Cart, error)
	// Save upserts the cart keyed by its user.
	Save(ctx context.Context, cart *models.Cart) error
	Clear(ctx context.Context, userID primitive.ObjectID) error
}

type OrderFilter struct {
	UserID *primitive.ObjectID
	Status models.OrderStatus
	Page   int64
	Limit  int64
}

// OrderUpdate is applied only while the order is still in Expect status.
type OrderUpdate struct {
	Expect         models.OrderStatus
	Status         models.OrderStatus
	PaymentStatus  models.PaymentStatus
	StockCommitted bool
	UpdatedAt      time.Time
}

type Orders interface {
	Insert(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Order, error)
	FindByIdempotencyKey(ctx context.Context, userID primitive.ObjectID, key string) (models.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error)
	// Update returns apperr.ErrConflict when the order left Expect status.
	Update(ctx context.Context, id primitive.ObjectID, update OrderUpdate) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type Users interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

// Repositories groups the collections one unit of work can touch.
type Repositories struct {
	Products Products
	Carts    Carts
	Orders   Orders
	Users    Users
}

type Store interface {
	// Repositories returns repositories that act outside any transaction.
	Repositories() Repositories
	Transaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	Ping(ctx context.Context) error
}
