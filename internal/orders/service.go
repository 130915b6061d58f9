package orders

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"lpg-backend/internal/apperr"
	"lpg-backend/internal/events"
	"lpg-backend/internal/inventory"
	"lpg-backend/internal/models"
	"lpg-backend/internal/pricing"
	"lpg-backend/internal/store"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Actor is the authenticated caller. Non-admins only see their own orders.
type Actor struct {
	UserID primitive.ObjectID
	Admin  bool
}

type ItemRequest struct {
	ProductID             primitive.ObjectID
	Quantity              int
	EmptyCylinderReturned bool
}

type CreateRequest struct {
	Items                 []ItemRequest
	EmptyCylinderReturned bool
	DeliveryType          models.DeliveryType
	ScheduledDate         *time.Time
}

type ListRequest struct {
	Page   int64
	Limit  int64
	Status models.OrderStatus
}

type Page struct {
	Orders []models.Order `json:"orders"`
	Total  int64          `json:"total"`
	Page   int64          `json:"page"`
	Limit  int64          `json:"limit"`
	Pages  int64          `json:"pages"`
}

type Config struct {
	Store     store.Store
	Ledger    *inventory.Ledger
	Rules     pricing.Rules
	Publisher events.Publisher
}

type Service struct {
	store     store.Store
	ledger    *inventory.Ledger
	rules     pricing.Rules
	publisher events.Publisher
	now       func() time.Time
}

func NewService(cfg Config) *Service {
	return &Service{
		store:     cfg.Store,
		ledger:    cfg.Ledger,
		rules:     cfg.Rules,
		publisher: cfg.Publisher,
		now:       time.Now,
	}
}

// Create places an order from an explicit item list. Prices come from the
// catalog and availability is checked now, but stock is only taken when
// the order moves to processing.
func (s *Service) Create(ctx context.Context, userID primitive.ObjectID, req CreateRequest) (models.Order, error) {
	if len(req.Items) == 0 {
		return models.Order{}, apperr.Validation("order must contain at least one item")
	}
	deliveryType, scheduled, err := models.NormalizeDelivery(req.DeliveryType, req.ScheduledDate, s.now())
	if err != nil {
		return models.Order{}, err
	}

	ids := make([]primitive.ObjectID, 0, len(req.Items))
	wanted := make(map[primitive.ObjectID]int, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return models.Order{}, apperr.ErrInvalidQuantity
		}
		if _, seen := wanted[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		wanted[item.ProductID] += item.Quantity
	}

	var order models.Order
	err = s.store.Transaction(ctx, func(ctx context.Context, repos store.Repositories) error {
		products, err := repos.Products.FindByIDs(ctx, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			p, ok := products[id]
			if err := inventory.Check(p, ok, id, wanted[id]); err != nil {
				return err
			}
		}

		items := make([]models.OrderItem, 0, len(req.Items))
		priced := make([]pricing.Line, 0, len(req.Items))
		for _, item := range req.Items {
			p := products[item.ProductID]
			items = append(items, models.OrderItem{
				ProductID:             p.ID,
				Name:                  p.Name,
				UnitPrice:             p.Price,
				Quantity:              item.Quantity,
				EmptyCylinderReturned: item.EmptyCylinderReturned || req.EmptyCylinderReturned,
			})
			priced = append(priced, pricing.Line{UnitPrice: p.Price, Quantity: item.Quantity})
		}

		quote := s.rules.Quote(priced)
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
			DeliveryType:          deliveryType,
			ScheduledDate:         scheduled,
			EmptyCylinderReturned: req.EmptyCylinderReturned,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		return repos.Orders.Insert(ctx, &order)
	})
	if err != nil {
		return models.Order{}, err
	}

	log.Printf("[ORDERS] [INFO] order=%s user=%s placed directly total=%.2f", order.ID.Hex(), userID.Hex(), order.TotalAmount)
	events.Emit(ctx, s.publisher, order.ID.Hex(), events.NewOrderCreated(order))
	return order, nil
}

func (s *Service) Get(ctx context.Context, actor Actor, id primitive.ObjectID) (models.Order, error) {
	order, err := s.store.Repositories().Orders.FindByID(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if !actor.Admin && order.UserID != actor.UserID {
		return models.Order{}, apperr.ErrForbidden
	}
	return order, nil
}

func (s *Service) List(ctx context.Context, actor Actor, req ListRequest) (Page, error) {
	if req.Status != "" && !req.Status.Valid() {
		return Page{}, apperr.ErrInvalidStatus
	}
	page, limit := req.Page, req.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	filter := store.OrderFilter{Status: req.Status, Page: page, Limit: limit}
	if !actor.Admin {
		userID := actor.UserID
		filter.UserID = &userID
	}

	list, total, err := s.store.Repositories().Orders.List(ctx, filter)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Orders: list,
		Total:  total,
		Page:   page,
		Limit:  limit,
		Pages:  (total + limit - 1) / limit,
	}, nil
}

// SetStatus drives the order state machine. Moving an order whose stock is
// not yet committed into processing reserves every line; cancelling a
// committed order puts its stock back.
func (s *Service) SetStatus(ctx context.Context, id primitive.ObjectID, next models.OrderStatus) (models.Order, error) {
	if !next.Valid() {
		return models.Order{}, apperr.ErrInvalidStatus
	}

	var (
		order        models.Order
		previous     models.OrderStatus
		reservations []inventory.Reservation
	)
	err := s.store.Transaction(ctx, func(ctx context.Context, repos store.Repositories) error {
		reservations = nil

		var err error
		order, err = repos.Orders.FindByID(ctx, id)
		if err != nil {
			return err
		}
		previous = order.Status
		if order.Status == next {
			return nil
		}
		if !order.Status.CanTransitionTo(next) {
			return apperr.ErrInvalidTransition
		}

		committed := order.StockCommitted
		switch {
		case next == models.OrderProcessing && !committed:
			for _, line := range lines(order) {
				r, err := s.ledger.Reserve(ctx, repos.Products, line.productID, line.quantity)
				if err != nil {
					return err
				}
				reservations = append(reservations, r)
			}
			committed = true
		case next == models.OrderCancelled && committed:
			for _, line := range lines(order) {
				if _, err := s.ledger.Release(ctx, repos.Products, line.productID, line.quantity); err != nil {
					return err
				}
			}
			committed = false
		}

		now := s.now()
		if err := repos.Orders.Update(ctx, id, store.OrderUpdate{
			Expect:         order.Status,
			Status:         next,
			PaymentStatus:  order.PaymentStatus,
			StockCommitted: committed,
			UpdatedAt:      now,
		}); err != nil {
			return err
		}
		order.Status, order.StockCommitted, order.UpdatedAt = next, committed, now
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}
	if previous == next {
		return order, nil
	}

	log.Printf("[ORDERS] [INFO] order=%s status %s -> %s", id.Hex(), previous, next)
	s.ledger.Committed(ctx, reservations)
	events.Emit(ctx, s.publisher, id.Hex(), events.New(events.TypeOrderStatusChanged, events.OrderStatusChanged{
		OrderID: id,
		From:    previous,
		To:      next,
	}))
	return order, nil
}

func (s *Service) SetPaymentStatus(ctx context.Context, id primitive.ObjectID, status models.PaymentStatus) (models.Order, error) {
	if !status.Valid() {
		return models.Order{}, apperr.Validation("paymentStatus must be one of pending, paid, failed, refunded")
	}

	var order models.Order
	err := s.store.Transaction(ctx, func(ctx context.Context, repos store.Repositories) error {
		var err error
		order, err = repos.Orders.FindByID(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		if err := repos.Orders.Update(ctx, id, store.OrderUpdate{
			Expect:         order.Status,
			Status:         order.Status,
			PaymentStatus:  status,
			StockCommitted: order.StockCommitted,
			UpdatedAt:      now,
		}); err != nil {
			return err
		}
		order.PaymentStatus, order.UpdatedAt = status, now
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}
	return order, nil
}

// Delete removes an order. Units still held by an order that never left
// the warehouse are returned to stock.
func (s *Service) Delete(ctx context.Context, id primitive.ObjectID) error {
	return s.store.Transaction(ctx, func(ctx context.Context, repos store.Repositories) error {
		order, err := repos.Orders.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if order.StockCommitted && (order.Status == models.OrderPending || order.Status == models.OrderProcessing) {
			for _, line := range lines(order) {
				if _, err := s.ledger.Release(ctx, repos.Products, line.productID, line.quantity); err != nil {
					return err
				}
			}
		}
		return repos.Orders.Delete(ctx, id)
	})
}

type stockLine struct {
	productID primitive.ObjectID
	quantity  int
}

// lines merges order items per product, keeping first-seen order so stock
// errors are reported deterministically.
func lines(order models.Order) []stockLine {
	totals := order.Quantities()
	out := make([]stockLine, 0, len(totals))
	seen := make(map[primitive.ObjectID]bool, len(totals))
	for _, item := range order.Items {
		if seen[item.ProductID] {
			continue
		}
		seen[item.ProductID] = true
		out = append(out, stockLine{productID: item.ProductID, quantity: totals[item.ProductID]})
	}
	return out
}
