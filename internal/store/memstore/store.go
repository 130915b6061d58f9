// Package memstore is an in-memory store.Store used by tests and local runs
// without MongoDB. Transactions are serialized: fn works on a private copy
// of the data that replaces the shared copy only when fn succeeds.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"lpg-backend/internal/apperr"
	"lpg-backend/internal/models"
	"lpg-backend/internal/store"
)

type state struct {
	products map[primitive.ObjectID]models.Product
	carts    map[primitive.ObjectID]models.Cart
	orders   map[primitive.ObjectID]models.Order
	users    map[primitive.ObjectID]models.User
}

func newState() *state {
	return &state{
		products: make(map[primitive.ObjectID]models.Product),
		carts:    make(map[primitive.ObjectID]models.Cart),
		orders:   make(map[primitive.ObjectID]models.Order),
		users:    make(map[primitive.ObjectID]models.User),
	}
}

func (s *state) clone() *state {
	out := newState()
	for id, p := range s.products {
		out.products[id] = p
	}
	for id, c := range s.carts {
		out.carts[id] = copyCart(c)
	}
	for id, o := range s.orders {
		out.orders[id] = copyOrder(o)
	}
	for id, u := range s.users {
		out.users[id] = u
	}
	return out
}

type Store struct {
	mu      sync.Mutex
	data    *state
	pingErr error
}

func New() *Store {
	return &Store{data: newState()}
}

func (s *Store) Repositories() store.Repositories {
	return bind(&repo{store: s})
}

func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context, repos store.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.data.clone()
	if err := fn(ctx, bind(&repo{tx: working})); err != nil {
		return err
	}
	s.data = working
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pingErr
}

// SetPingError makes Ping report err, simulating a lost database.
func (s *Store) SetPingError(err error) {
	s.mu.Lock()
	s.pingErr = err
	s.mu.Unlock()
}

// PutProduct stores p, assigning an ID when it has none.
func (s *Store) PutProduct(p models.Product) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.data.products[p.ID] = p
	return p
}

// PutUser stores u, assigning an ID when it has none.
func (s *Store) PutUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	s.data.users[u.ID] = u
	return u
}

// repo serves every repository interface. Inside a transaction tx is the
// private working copy; otherwise each call locks the store for its duration.
type repo struct {
	store *Store
	tx    *state
}

func bind(r *repo) store.Repositories {
	return store.Repositories{
		Products: productRepo{r},
		Carts:    cartRepo{r},
		Orders:   orderRepo{r},
		Users:    userRepo{r},
	}
}

func (r *repo) acquire() (*state, func()) {
	if r.tx != nil {
		return r.tx, func() {}
	}
	r.store.mu.Lock()
	return r.store.data, r.store.mu.Unlock
}

type productRepo struct{ *repo }

func (r productRepo) FindByID(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	st, release := r.acquire()
	defer release()
	p, ok := st.products[id]
	if !ok {
		return models.Product{}, apperr.NotFound("product")
	}
	return p, nil
}

func (r productRepo) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	st, release := r.acquire()
	defer release()
	out := make(map[primitive.ObjectID]models.Product, len(ids))
	for _, id := range ids {
		if p, ok := st.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r productRepo) DecrementStock(ctx context.Context, id primitive.ObjectID, quantity int) (models.Product, error) {
	if quantity < 1 {
		return models.Product{}, apperr.ErrInvalidQuantity
	}
	st, release := r.acquire()
	defer release()

	p, ok := st.products[id]
	if !ok || !p.Listed() {
		return models.Product{}, apperr.Unavailable(id, quantity)
	}
	if p.StockQuantity < quantity {
		return models.Product{}, apperr.Insufficient(id, p.StockQuantity, quantity)
	}
	p.StockQuantity -= quantity
	p.UpdatedAt = time.Now()
	st.products[id] = p
	return p, nil
}

func (r productRepo) IncrementStock(ctx context.Context, id primitive.ObjectID, quantity int) (models.Product, error) {
	if quantity < 1 {
		return models.Product{}, apperr.ErrInvalidQuantity
	}
	st, release := r.acquire()
	defer release()

	p, ok := st.products[id]
	if !ok {
		return models.Product{}, apperr.NotFound("product")
	}
	p.StockQuantity += quantity
	p.UpdatedAt = time.Now()
	st.products[id] = p
	return p, nil
}

type cartRepo struct{ *repo }

func (r cartRepo) FindByUser(ctx context.Context, userID primitive.ObjectID) (models.Cart, error) {
	st, release := r.acquire()
	defer release()
	c, ok := st.carts[userID]
	if !ok {
		return models.Cart{}, apperr.NotFound("cart")
	}
	return copyCart(c), nil
}

func (r cartRepo) Save(ctx context.Context, cart *models.Cart) error {
	st, release := r.acquire()
	defer release()

	now := time.Now()
	if existing, ok := st.carts[cart.UserID]; ok {
		cart.ID = existing.ID
		cart.CreatedAt = existing.CreatedAt
	} else {
		cart.ID = primitive.NewObjectID()
		cart.CreatedAt = now
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	cart.UpdatedAt = now
	st.carts[cart.UserID] = copyCart(*cart)
	return nil
}

func (r cartRepo) Clear(ctx context.Context, userID primitive.ObjectID) error {
	st, release := r.acquire()
	defer release()
	c, ok := st.carts[userID]
	if !ok {
		return nil
	}
	c.Items = []models.CartItem{}
	c.UpdatedAt = time.Now()
	st.carts[userID] = c
	return nil
}

type orderRepo struct{ *repo }

func (r orderRepo) Insert(ctx context.Context, order *models.Order) error {
	st, release := r.acquire()
	defer release()

	if order.IdempotencyKey != "" {
		for _, existing := range st.orders {
			if existing.UserID == order.UserID && existing.IdempotencyKey == order.IdempotencyKey {
				return apperr.ErrConflict
			}
		}
	}
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	if _, taken := st.orders[order.ID]; taken {
		return apperr.ErrConflict
	}
	st.orders[order.ID] = copyOrder(*order)
	return nil
}

func (r orderRepo) FindByID(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	st, release := r.acquire()
	defer release()
	o, ok := st.orders[id]
	if !ok {
		return models.Order{}, apperr.NotFound("order")
	}
	return copyOrder(o), nil
}

func (r orderRepo) FindByIdempotencyKey(ctx context.Context, userID primitive.ObjectID, key string) (models.Order, error) {
	st, release := r.acquire()
	defer release()
	for _, o := range st.orders {
		if o.UserID == userID && key != "" && o.IdempotencyKey == key {
			return copyOrder(o), nil
		}
	}
	return models.Order{}, apperr.NotFound("order")
}

func (r orderRepo) List(ctx context.Context, f store.OrderFilter) ([]models.Order, int64, error) {
	st, release := r.acquire()
	defer release()

	matched := make([]models.Order, 0, len(st.orders))
	for _, o := range st.orders {
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		matched = append(matched, copyOrder(o))
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.Hex() > matched[j].ID.Hex()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if f.Limit <= 0 {
		return matched, total, nil
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * f.Limit
	if start >= total {
		return []models.Order{}, total, nil
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r orderRepo) Update(ctx context.Context, id primitive.ObjectID, u store.OrderUpdate) error {
	st, release := r.acquire()
	defer release()

	o, ok := st.orders[id]
	if !ok {
		return apperr.NotFound("order")
	}
	if o.Status != u.Expect {
		return apperr.ErrConflict
	}
	o.Status = u.Status
	o.PaymentStatus = u.PaymentStatus
	o.StockCommitted = u.StockCommitted
	o.UpdatedAt = u.UpdatedAt
	st.orders[id] = o
	return nil
}

func (r orderRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	st, release := r.acquire()
	defer release()
	if _, ok := st.orders[id]; !ok {
		return apperr.NotFound("order")
	}
	delete(st.orders, id)
	return nil
}

type userRepo struct{ *repo }

func (r userRepo) FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	st, release := r.acquire()
	defer release()
	u, ok := st.users[id]
	if !ok {
		return models.User{}, apperr.NotFound("user")
	}
	return u, nil
}

func (r userRepo) FindByEmail(ctx context.Context, email string) (models.User, error) {
	st, release := r.acquire()
	defer release()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range st.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, apperr.NotFound("user")
}

func copyCart(c models.Cart) models.Cart {
	if c.Items != nil {
		items := make([]models.CartItem, len(c.Items))
		copy(items, c.Items)
		c.Items = items
	}
	return c
}

func copyOrder(o models.Order) models.Order {
	if o.Items != nil {
		items := make([]models.OrderItem, len(o.Items))
		copy(items, o.Items)
		o.Items = items
	}
	if o.ScheduledDate != nil {
		d := *o.ScheduledDate
		o.ScheduledDate = &d
	}
	return o
}
