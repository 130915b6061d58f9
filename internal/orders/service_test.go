package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"lpg-backend/internal/apperr"
	"lpg-backend/internal/events"
	"lpg-backend/internal/inventory"
	"lpg-backend/internal/models"
	"lpg-backend/internal/pricing"
	"lpg-backend/internal/store/memstore"
)

func newTestService(t *testing.T) (*Service, *memstore.Store, *events.Recorder) {
	t.Helper()
	mem := memstore.New()
	rec := &events.Recorder{}
	svc := NewService(Config{
		Store:     mem,
		Ledger:    inventory.NewLedger(5, rec, nil),
		Rules:     pricing.DefaultRules(),
		Publisher: rec,
	})
	return svc, mem, rec
}

func seedProduct(mem *memstore.Store, price float64, stock int) models.Product {
	return mem.PutProduct(models.Product{
		Name:           "13kg ola-gas",
		Brand:          models.BrandOlaGas,
		CylinderSize:   models.Cylinder13kg,
		Price:          price,
		StockQuantity:  stock,
		Availability:   true,
		ApprovalStatus: models.ApprovalApproved,
	})
}

func stockOf(t *testing.T, mem *memstore.Store, id primitive.ObjectID) int {
	t.Helper()
	p, err := mem.Repositories().Products.FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

func TestCreateDoesNotTouchStock(t *testing.T) {
	svc, mem, rec := newTestService(t)
	ctx := context.Background()
	userID := primitive.NewObjectID()
	a := seedProduct(mem, 2000, 10)
	b := seedProduct(mem, 500, 10)

	order, err := svc.Create(ctx, userID, CreateRequest{Items: []ItemRequest{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 1, EmptyCylinderReturned: true},
	}})
	require.NoError(t, err)

	assert.Equal(t, 5000.0, order.TotalAmount)
	assert.Equal(t, 500.0, order.DeliveryFee)
	assert.False(t, order.StockCommitted)
	assert.True(t, order.Items[1].EmptyCylinderReturned)
	assert.Equal(t, 10, stockOf(t, mem, a.ID))
	assert.Len(t, rec.OfType(events.TypeOrderCreated), 1)
}

func TestCreateValidation(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()
	userID := primitive.NewObjectID()
	p := seedProduct(mem, 1000, 3)

	_, err := svc.Create(ctx, userID, CreateRequest{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Create(ctx, userID, CreateRequest{Items: []ItemRequest{{ProductID: p.ID, Quantity: 0}}})
	assert.ErrorIs(t, err, apperr.ErrInvalidQuantity)

	// Duplicate lines are checked against their combined quantity.
	_, err = svc.Create(ctx, userID, CreateRequest{Items: []ItemRequest{
		{ProductID: p.ID, Quantity: 2},
		{ProductID: p.ID, Quantity: 2},
	}})
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)

	_, err = svc.Create(ctx, userID, CreateRequest{Items: []ItemRequest{{ProductID: primitive.NewObjectID(), Quantity: 1}}})
	assert.ErrorIs(t, err, apperr.ErrProductUnavailable)
}

func TestGetIsOwnerScoped(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()
	owner := primitive.NewObjectID()
	p := seedProduct(mem, 1000, 3)

	order, err := svc.Create(ctx, owner, CreateRequest{Items: []ItemRequest{{ProductID: p.ID, Quantity: 1}}})
	require.NoError(t, err)

	_, err = svc.Get(ctx, Actor{UserID: owner}, order.ID)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, Actor{UserID: primitive.NewObjectID()}, order.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.Get(ctx, Actor{UserID: primitive.NewObjectID(), Admin: true}, order.ID)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, Actor{UserID: owner}, primitive.NewObjectID())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListScopesAndPaginates(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()
	alice, bob := primitive.NewObjectID(), primitive.NewObjectID()
	p := seedProduct(mem, 1000, 100)

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, alice, CreateRequest{Items: []ItemRequest{{ProductID: p.ID, Quantity: 1}}})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, bob, CreateRequest{Items: []ItemRequest{{ProductID: p.ID, Quantity: 1}}})
	require.NoError(t, err)

	page, err := svc.List(ctx, Actor{UserID: alice}, ListRequest{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, int64(2), page.Pages)
	assert.Len(t, page.Orders, 2)

	all, err := svc.List(ctx, Actor{Admin: true}, ListRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.Total)
	assert.Equal(t, int64(DefaultPageSize), all.Limit)

	_, err = svc.List(ctx, Actor{UserID: alice}, ListRequest{Status: "lost"})
	assert.ErrorIs(t, err, apperr.ErrInvalidStatus)
}

func TestSetStatusFollowsGraph(t *testing.T) {
	svc, mem, rec := newTestService(t)
	ctx := context.Background()
	p := seedProduct(mem, 1000, 10)
	order, err := svc.Create(ctx, primitive.NewObjectID(), CreateRequest{Items: []ItemRequest{{ProductID: p.ID, Quantity: 1}}})
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, order.ID, models.OrderDelivered)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = svc.SetStatus(ctx, order.ID, "teleported")
	assert.ErrorIs(t, err, apperr.ErrInvalidStatus)

	got, err := svc.Get(ctx, Actor{Admin: true}, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, got.Status)

	for _, next := range []models.OrderStatus{models.OrderProcessing, models.OrderShipped, models.OrderDelivered} {
		updated, err := svc.SetStatus(ctx, order.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, updated.Status)
	}

	_, err = svc.SetStatus(ctx, order.ID, models.OrderCancelled)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.Len(t, rec.OfType(events.TypeOrderStatusChanged), 3)
}

func TestSetStatusSameStatusIsNoop(t *testing.T) {
	svc, mem, rec := newTestService(t)
	ctx := context.Background()
	p := seedProduct(mem, 1000, 10)
	order, err := svc.Create(ctx, primitive.NewObjectID(), CreateRequest{Items: []ItemRequest{{ProductID: p.ID, Quantity: 1}}})
	require.NoError(t, err)

	got, err := svc.SetStatus(ctx, order.ID, models.OrderPending)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, got.Status)
	assert.Empty(t, rec.OfType(events.TypeOrderStatusChanged))
}

func TestProcessingCommitsStockForDirectOrders(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()
	a := seedProduct(mem, 1000, 10)
	b := seedProduct(mem, 800, 1)

	order, err := svc.Create(ctx, primitive.NewObjectID(), CreateRequest{Items: []ItemRequest{
		{ProductID: a.ID, Quantity: 3},
		{ProductID: b.ID, Quantity: 1},
	}})
	require.NoError(t, err)

	// Stock for b is sold elsewhere before the order is processed.
	_, err = mem.Repositories().Products.DecrementStock(ctx, b.ID, 1)
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, order.ID, models.OrderProcessing)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, 10, stockOf(t, mem, a.ID))

	_, err = mem.Repositories().Products.IncrementStock(ctx, b.ID, 1)
	require.NoError(t, err)

	updated, err := svc.SetStatus(ctx, order.ID, models.OrderProcessing)
	require.NoError(t, err)
	assert.True(t, updated.StockCommitted)
	assert.Equal(t, 7, stockOf(t, mem, a.ID))
	assert.Equal(t, 0, stockOf(t, mem, b.ID))
}

func TestProcessingDoesNotDoubleCommit(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()
	p := seedProduct(mem, 1000, 10)

	// A checkout order arrives with its stock already taken.
	order := &models.Order{
		UserID:         primitive.NewObjectID(),
		Items:          []models.OrderItem{{ProductID: p.ID, Quantity: 2, UnitPrice: 1000}},
		Status:         models.OrderPending,
		PaymentStatus:  models.PaymentPending,
		StockCommitted: true,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, mem.Repositories().Orders.Insert(ctx, order))

	updated, err := svc.SetStatus(ctx, order.ID, models.OrderProcessing)
	require.NoError(t, err)
	assert.True(t, updated.StockCommitted)
	assert.Equal(t, 10, stockOf(t, mem, p.ID))
}

func TestCancelReleasesCommittedStock(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()
	p := seedProduct(mem, 1000, 10)

	order, err := svc.Create(ctx, primitive.NewObjectID(), CreateRequest{Items: []ItemRequest{{ProductID: p.ID, Quantity: 4}}})
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, order.ID, models.OrderProcessing)
	require.NoError(t, err)
	assert.Equal(t, 6, stockOf(t, mem, p.ID))

	cancelled, err := svc.SetStatus(ctx, order.ID, models.OrderCancelled)
	require.NoError(t, err)
	assert.False(t, cancelled.StockCommitted)
	assert.Equal(t, 10, stockOf(t, mem, p.ID))
}

func TestCancelUncommittedOrderLeavesStock(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()
	p := seedProduct(mem, 1000, 10)

	order, err := svc.Create(ctx, primitive.NewObjectID(), CreateRequest{Items: []ItemRequest{{ProductID: p.ID, Quantity: 4}}})
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, order.ID, models.OrderCancelled)
	require.NoError(t, err)
	assert.Equal(t, 10, stockOf(t, mem, p.ID))
}

func TestSetPaymentStatus(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()
	p := seedProduct(mem, 1000, 10)
	order, err := svc.Create(ctx, primitive.NewObjectID(), CreateRequest{Items: []ItemRequest{{ProductID: p.ID, Quantity: 1}}})
	require.NoError(t, err)

	updated, err := svc.SetPaymentStatus(ctx, order.ID, models.PaymentPaid)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, updated.PaymentStatus)
	assert.Equal(t, models.OrderPending, updated.Status)

	_, err = svc.SetPaymentStatus(ctx, order.ID, "maybe")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.SetPaymentStatus(ctx, primitive.NewObjectID(), models.PaymentPaid)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteReturnsHeldStock(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()
	p := seedProduct(mem, 1000, 10)
	order, err := svc.Create(ctx, primitive.NewObjectID(), CreateRequest{Items: []ItemRequest{{ProductID: p.ID, Quantity: 2}}})
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, order.ID, models.OrderProcessing)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, order.ID))
	assert.Equal(t, 10, stockOf(t, mem, p.ID))

	assert.ErrorIs(t, svc.Delete(ctx, order.ID), apperr.ErrNotFound)
}
