// Package inventory guards stock counts. Every decrement is a conditional
// write in the store, so stockQuantity never goes negative no matter how
// many requests race for the last cylinder.
package inventory

import (
	"context"
	"errors"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"lpg-backend/internal/apperr"
	"lpg-backend/internal/events"
	"lpg-backend/internal/metrics"
	"lpg-backend/internal/models"
	"lpg-backend/internal/store"
)

const DefaultLowStockThreshold = 5

type Ledger struct {
	threshold int
	publisher events.Publisher
	metrics   *metrics.Metrics
}

func NewLedger(threshold int, publisher events.Publisher, m *metrics.Metrics) *Ledger {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return &Ledger{threshold: threshold, publisher: publisher, metrics: m}
}

func (l *Ledger) Threshold() int {
	return l.threshold
}

// Check reports whether product p, looked up as id, can supply quantity.
// found is false when the lookup missed. A listed product that is sold out
// is short, not unavailable.
func Check(p models.Product, found bool, id primitive.ObjectID, quantity int) error {
	if quantity < 1 {
		return apperr.ErrInvalidQuantity
	}
	if !found || !p.Listed() {
		return apperr.Unavailable(id, quantity)
	}
	if p.StockQuantity < quantity {
		return apperr.Insufficient(id, p.StockQuantity, quantity)
	}
	return nil
}

// CheckAvailable loads the product and applies Check.
func (l *Ledger) CheckAvailable(ctx context.Context, products store.Products, id primitive.ObjectID, quantity int) (models.Product, error) {
	p, err := products.FindByID(ctx, id)
	found := err == nil
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return models.Product{}, err
	}
	if err := Check(p, found, id, quantity); err != nil {
		return p, err
	}
	return p, nil
}

// Reservation is the outcome of one successful Reserve. It is acted on
// only after the enclosing transaction commits.
type Reservation struct {
	Product  models.Product
	Quantity int
	LowStock bool
}

// Reserve removes quantity units with a single conditional decrement.
func (l *Ledger) Reserve(ctx context.Context, products store.Products, id primitive.ObjectID, quantity int) (Reservation, error) {
	updated, err := products.DecrementStock(ctx, id, quantity)
	if err != nil {
		return Reservation{}, err
	}
	return Reservation{
		Product:  updated,
		Quantity: quantity,
		LowStock: l.crossedThreshold(updated, quantity),
	}, nil
}

// Release puts quantity units back, for cancellations and cylinder returns.
func (l *Ledger) Release(ctx context.Context, products store.Products, id primitive.ObjectID, quantity int) (models.Product, error) {
	return products.IncrementStock(ctx, id, quantity)
}

// crossedThreshold is true only for the decrement that moved an approved
// product from at-or-above the threshold to below it.
func (l *Ledger) crossedThreshold(after models.Product, quantity int) bool {
	before := after.StockQuantity + quantity
	return after.ApprovalStatus == models.ApprovalApproved &&
		before >= l.threshold &&
		after.StockQuantity < l.threshold
}

// Committed records metrics and low stock alerts for reservations whose
// transaction has committed.
func (l *Ledger) Committed(ctx context.Context, reservations []Reservation) {
	units := 0
	for _, r := range reservations {
		units += r.Quantity
		if !r.LowStock {
			continue
		}
		log.Printf("[INVENTORY] [WARN] low stock product=%s name=%q stock=%d threshold=%d",
			r.Product.ID.Hex(), r.Product.Name, r.Product.StockQuantity, l.threshold)
		l.metrics.ObserveLowStock()
		events.Emit(ctx, l.publisher, r.Product.ID.Hex(), events.New(events.TypeInventoryLowStock, events.LowStock{
			ProductID:     r.Product.ID,
			Name:          r.Product.Name,
			StockQuantity: r.Product.StockQuantity,
			Threshold:     l.threshold,
		}))
	}
	l.metrics.AddReservedUnits(units)
}
