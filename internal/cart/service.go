package cart

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"lpg-backend/internal/apperr"
	"lpg-backend/internal/inventory"
	"lpg-backend/internal/models"
	"lpg-backend/internal/pricing"
	"lpg-backend/internal/store"
)

// ViewItem is a cart line resolved against the live catalog. Product is nil
// when the product no longer exists.
type ViewItem struct {
	ID        primitive.ObjectID `json:"id"`
	ProductID primitive.ObjectID `json:"productId"`
	Quantity  int                `json:"quantity"`
	AddedAt   time.Time          `json:"addedAt"`
	Product   *models.Product    `json:"product"`
	LineTotal float64            `json:"lineTotal"`
	Available bool               `json:"available"`
}

type View struct {
	UserID primitive.ObjectID `json:"userId"`
	Items  []ViewItem         `json:"items"`
	pricing.Quote
}

type Service struct {
	store  store.Store
	ledger *inventory.Ledger
	rules  pricing.Rules
	now    func() time.Time
}

func NewService(s store.Store, ledger *inventory.Ledger, rules pricing.Rules) *Service {
	return &Service{store: s, ledger: ledger, rules: rules, now: time.Now}
}

// View returns the cart with live product data and a pricing quote. A user
// without a cart gets an empty view.
func (s *Service) View(ctx context.Context, userID primitive.ObjectID) (View, error) {
	repos := s.store.Repositories()

	cart, err := repos.Carts.FindByUser(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		cart = models.Cart{UserID: userID}
	} else if err != nil {
		return View{}, err
	}

	products, err := repos.Products.FindByIDs(ctx, cart.ProductIDs())
	if err != nil {
		return View{}, err
	}

	view := View{UserID: userID, Items: make([]ViewItem, 0, len(cart.Items))}
	lines := make([]pricing.Line, 0, len(cart.Items))
	for _, item := range cart.Items {
		vi := ViewItem{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		}
		if p, ok := products[item.ProductID]; ok {
			product := p
			vi.Product = &product
			vi.Available = p.CanSupply(item.Quantity)
			vi.LineTotal = pricing.Round(p.Price * float64(item.Quantity))
			lines = append(lines, pricing.Line{UnitPrice: p.Price, Quantity: item.Quantity})
		}
		view.Items = append(view.Items, vi)
	}
	// Nothing to deliver, nothing to charge.
	if len(lines) > 0 {
		view.Quote = s.rules.Quote(lines)
	}
	return view, nil
}

// AddItem adds quantity units of a product, merging with an existing line.
// The merged quantity must be available right now.
func (s *Service) AddItem(ctx context.Context, userID, productID primitive.ObjectID, quantity int) (View, error) {
	if quantity < 1 {
		return View{}, apperr.ErrInvalidQuantity
	}

	err := s.store.Transaction(ctx, func(ctx context.Context, repos store.Repositories) error {
		cart, err := loadOrNew(ctx, repos.Carts, userID)
		if err != nil {
			return err
		}

		idx, exists := cart.ItemByProduct(productID)
		merged := quantity
		if exists {
			merged += cart.Items[idx].Quantity
		}
		if _, err := s.ledger.CheckAvailable(ctx, repos.Products, productID, merged); err != nil {
			return err
		}

		if exists {
			cart.Items[idx].Quantity = merged
		} else {
			cart.Items = append(cart.Items, models.CartItem{
				ID:        primitive.NewObjectID(),
				ProductID: productID,
				Quantity:  quantity,
				AddedAt:   s.now(),
			})
		}
		return repos.Carts.Save(ctx, &cart)
	})
	if err != nil {
		return View{}, err
	}
	return s.View(ctx, userID)
}

// UpdateItem sets the quantity of one line.
func (s *Service) UpdateItem(ctx context.Context, userID, itemID primitive.ObjectID, quantity int) (View, error) {
	if quantity < 1 {
		return View{}, apperr.ErrInvalidQuantity
	}

	err := s.store.Transaction(ctx, func(ctx context.Context, repos store.Repositories) error {
		cart, idx, err := findItem(ctx, repos.Carts, userID, itemID)
		if err != nil {
			return err
		}
		if _, err := s.ledger.CheckAvailable(ctx, repos.Products, cart.Items[idx].ProductID, quantity); err != nil {
			return err
		}
		cart.Items[idx].Quantity = quantity
		return repos.Carts.Save(ctx, &cart)
	})
	if err != nil {
		return View{}, err
	}
	return s.View(ctx, userID)
}

func (s *Service) RemoveItem(ctx context.Context, userID, itemID primitive.ObjectID) (View, error) {
	err := s.store.Transaction(ctx, func(ctx context.Context, repos store.Repositories) error {
		cart, idx, err := findItem(ctx, repos.Carts, userID, itemID)
		if err != nil {
			return err
		}
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		return repos.Carts.Save(ctx, &cart)
	})
	if err != nil {
		return View{}, err
	}
	return s.View(ctx, userID)
}

func (s *Service) Clear(ctx context.Context, userID primitive.ObjectID) error {
	return s.store.Repositories().Carts.Clear(ctx, userID)
}

func loadOrNew(ctx context.Context, carts store.Carts, userID primitive.ObjectID) (models.Cart, error) {
	cart, err := carts.FindByUser(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Cart{UserID: userID, Items: []models.CartItem{}}, nil
	}
	return cart, err
}

func findItem(ctx context.Context, carts store.Carts, userID, itemID primitive.ObjectID) (models.Cart, int, error) {
	cart, err := carts.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.Cart{}, -1, apperr.NotFound("cart item")
		}
		return models.Cart{}, -1, err
	}
	idx, ok := cart.ItemByID(itemID)
	if !ok {
		return models.Cart{}, -1, apperr.NotFound("cart item")
	}
	return cart, idx, nil
}
