// Package checkout turns a user's cart into an order. Validation, pricing,
// the order insert, every stock decrement and the cart reset commit together
// or not at all.
package checkout

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"lpg-backend/internal/apperr"
	"lpg-backend/internal/events"
	"lpg-backend/internal/idempotency"
	"lpg-backend/internal/inventory"
	"lpg-backend/internal/metrics"
	"lpg-backend/internal/models"
	"lpg-backend/internal/pricing"
	"lpg-backend/internal/store"
)

var tracer = otel.Tracer("lpg-backend/checkout")

type Request struct {
	EmptyCylinderReturned bool
	DeliveryType          models.DeliveryType
	ScheduledDate         *time.Time
	IdempotencyKey        string
}

type Result struct {
	Order    models.Order
	Replayed bool
}

type Config struct {
	Store     store.Store
	Ledger    *inventory.Ledger
	Rules     pricing.Rules
	Guard     idempotency.Guard
	Publisher events.Publisher
	Metrics   *metrics.Metrics
}

type Service struct {
	store     store.Store
	ledger    *inventory.Ledger
	rules     pricing.Rules
	guard     idempotency.Guard
	publisher events.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(cfg Config) *Service {
	guard := cfg.Guard
	if guard == nil {
		guard = idempotency.Noop{}
	}
	return &Service{
		store:     cfg.Store,
		ledger:    cfg.Ledger,
		rules:     cfg.Rules,
		guard:     guard,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		now:       time.Now,
	}
}

func (s *Service) Checkout(ctx context.Context, userID primitive.ObjectID, req Request) (res Result, err error) {
	ctx, span := tracer.Start(ctx, "checkout.Checkout")
	span.SetAttributes(attribute.String("user.id", userID.Hex()))
	defer span.End()

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.String("order.id", res.Order.ID.Hex()),
				attribute.Bool("checkout.replayed", res.Replayed),
			)
		}
		switch {
		case err == nil && res.Replayed:
			s.metrics.ObserveCheckout(metrics.OutcomeReplayed)
		case err == nil:
			s.metrics.ObserveCheckout(metrics.OutcomeSuccess)
		default:
			s.metrics.ObserveCheckout(outcomeOf(err))
		}
	}()

	deliveryType, scheduled, err := models.NormalizeDelivery(req.DeliveryType, req.ScheduledDate, s.now())
	if err != nil {
		return Result{}, err
	}
	req.DeliveryType, req.ScheduledDate = deliveryType, scheduled
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if len(req.IdempotencyKey) > idempotency.MaxKeyLength {
		return Result{}, apperr.Validation("%s must be at most %d characters", idempotency.Header, idempotency.MaxKeyLength)
	}

	if req.IdempotencyKey == "" {
		order, err := s.place(ctx, userID, req)
		return Result{Order: order}, err
	}
	return s.placeOnce(ctx, userID, req)
}

// placeOnce wraps place with the idempotency guard. When the guard is
// unreachable the unique order index on (userId, idempotencyKey) still
// prevents a duplicate order.
func (s *Service) placeOnce(ctx context.Context, userID primitive.ObjectID, req Request) (Result, error) {
	scope, key := userID.Hex(), req.IdempotencyKey

	claim, err := s.guard.Begin(ctx, scope, key)
	if err != nil {
		log.Printf("[CHECKOUT] [WARN] idempotency guard unavailable, relying on order index: %v", err)
		claim = idempotency.Claim{State: idempotency.Acquired}
	}

	switch claim.State {
	case idempotency.InProgress:
		// The holder may have committed its order and then failed to record
		// it in the guard.
		replayed, err := s.replay(ctx, userID, key)
		if err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				log.Printf("[CHECKOUT] [WARN] idempotency lookup failed: %v", err)
			}
			return Result{}, apperr.ErrCheckoutInProgress
		}
		s.complete(ctx, scope, key, replayed.Order.ID)
		return replayed, nil
	case idempotency.Completed:
		return s.replay(ctx, userID, key)
	}

	order, err := s.place(ctx, userID, req)
	if errors.Is(err, apperr.ErrConflict) {
		if replayed, rerr := s.replay(ctx, userID, key); rerr == nil {
			s.complete(ctx, scope, key, replayed.Order.ID)
			return replayed, nil
		}
	}
	if err != nil {
		if aerr := s.guard.Abandon(ctx, scope, key); aerr != nil {
			log.Printf("[CHECKOUT] [WARN] release idempotency key failed: %v", aerr)
		}
		return Result{}, err
	}

	s.complete(ctx, scope, key, order.ID)
	return Result{Order: order}, nil
}

func (s *Service) complete(ctx context.Context, scope, key string, orderID primitive.ObjectID) {
	if err := s.guard.Complete(ctx, scope, key, orderID.Hex()); err != nil {
		log.Printf("[CHECKOUT] [WARN] record idempotency key failed: %v", err)
	}
}

func (s *Service) replay(ctx context.Context, userID primitive.ObjectID, key string) (Result, error) {
	order, err := s.store.Repositories().Orders.FindByIdempotencyKey(ctx, userID, key)
	if err != nil {
		return Result{}, err
	}
	return Result{Order: order, Replayed: true}, nil
}

func (s *Service) place(ctx context.Context, userID primitive.ObjectID, req Request) (models.Order, error) {
	var (
		order        models.Order
		reservations []inventory.Reservation
	)

	err := s.store.Transaction(ctx, func(ctx context.Context, repos store.Repositories) error {
		reservations = nil

		cart, err := repos.Carts.FindByUser(ctx, userID)
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.ErrEmptyCart
		}
		if err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return apperr.ErrEmptyCart
		}

		products, err := repos.Products.FindByIDs(ctx, cart.ProductIDs())
		if err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(cart.Items))
		lines := make([]pricing.Line, 0, len(cart.Items))
		for _, item := range cart.Items {
			p, ok := products[item.ProductID]
			if err := inventory.Check(p, ok, item.ProductID, item.Quantity); err != nil {
				return err
			}
			items = append(items, models.OrderItem{
				ProductID:             p.ID,
				Name:                  p.Name,
				UnitPrice:             p.Price,
				Quantity:              item.Quantity,
				EmptyCylinderReturned: req.EmptyCylinderReturned,
			})
			lines = append(lines, pricing.Line{UnitPrice: p.Price, Quantity: item.Quantity})
		}

		quote := s.rules.Quote(lines)
		now := s.now()
		order = models.Order{
			ID:                    primitive.NewObjectID(),
			UserID:                userID,
			Items:                 items,
			Subtotal:              quote.Subtotal,
			DeliveryFee:           quote.DeliveryFee,
			TotalAmount:           quote.Total,
			Status:                models.OrderPending,
			PaymentStatus:         models.PaymentPending,
			DeliveryType:          req.DeliveryType,
			ScheduledDate:         req.ScheduledDate,
			EmptyCylinderReturned: req.EmptyCylinderReturned,
			StockCommitted:        true,
			IdempotencyKey:        req.IdempotencyKey,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if err := repos.Orders.Insert(ctx, &order); err != nil {
			return err
		}

		for _, item := range cart.Items {
			r, err := s.ledger.Reserve(ctx, repos.Products, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			reservations = append(reservations, r)
		}

		return repos.Carts.Clear(ctx, userID)
	})
	if err != nil {
		return models.Order{}, err
	}

	log.Printf("[CHECKOUT] [INFO] order=%s user=%s items=%d total=%.2f",
		order.ID.Hex(), userID.Hex(), len(order.Items), order.TotalAmount)
	s.ledger.Committed(ctx, reservations)
	events.Emit(ctx, s.publisher, order.ID.Hex(), events.NewOrderCreated(order))
	return order, nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, apperr.ErrEmptyCart):
		return metrics.OutcomeEmptyCart
	case errors.Is(err, apperr.ErrInsufficientStock):
		return metrics.OutcomeInsufficient
	case errors.Is(err, apperr.ErrProductUnavailable):
		return metrics.OutcomeUnavailable
	case errors.Is(err, apperr.ErrCheckoutInProgress):
		return metrics.OutcomeInProgress
	default:
		return metrics.OutcomeError
	}
}
