package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"lpg-backend/internal/apperr"
	"lpg-backend/internal/models"
	"lpg-backend/internal/store"
)

func approvedProduct(stock int) models.Product {
	return models.Product{
		Name:           "13kg refill",
		Brand:          models.BrandTotal,
		CylinderSize:   models.Cylinder13kg,
		Price:          1500,
		StockQuantity:  stock,
		Availability:   true,
		ApprovalStatus: models.ApprovalApproved,
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	s := New()
	p := s.PutProduct(approvedProduct(5))
	userID := primitive.NewObjectID()
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(ctx context.Context, repos store.Repositories) error {
		if _, err := repos.Products.DecrementStock(ctx, p.ID, 3); err != nil {
			return err
		}
		if err := repos.Carts.Save(ctx, &models.Cart{UserID: userID}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Repositories().Products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.StockQuantity)

	_, err = s.Repositories().Carts.FindByUser(ctx, userID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTransactionCommitsOnSuccess(t *testing.T) {
	s := New()
	p := s.PutProduct(approvedProduct(5))
	ctx := context.Background()

	err := s.Transaction(ctx, func(ctx context.Context, repos store.Repositories) error {
		_, err := repos.Products.DecrementStock(ctx, p.ID, 2)
		return err
	})
	require.NoError(t, err)

	got, err := s.Repositories().Products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.StockQuantity)
}

func TestDecrementStockConditions(t *testing.T) {
	s := New()
	ctx := context.Background()
	repos := s.Repositories()

	inStock := s.PutProduct(approvedProduct(2))
	hidden := approvedProduct(10)
	hidden.Availability = false
	hidden = s.PutProduct(hidden)
	pendingReview := approvedProduct(10)
	pendingReview.ApprovalStatus = models.ApprovalPending
	pendingReview = s.PutProduct(pendingReview)

	t.Run("short", func(t *testing.T) {
		_, err := repos.Products.DecrementStock(ctx, inStock.ID, 3)
		var stockErr *apperr.StockError
		require.True(t, errors.As(err, &stockErr))
		assert.True(t, stockErr.Short)
		assert.Equal(t, 2, stockErr.Available)
		assert.Equal(t, 3, stockErr.Requested)
		assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	})

	t.Run("unavailable", func(t *testing.T) {
		for _, id := range []primitive.ObjectID{hidden.ID, pendingReview.ID, primitive.NewObjectID()} {
			_, err := repos.Products.DecrementStock(ctx, id, 1)
			assert.ErrorIs(t, err, apperr.ErrProductUnavailable)
			assert.NotErrorIs(t, err, apperr.ErrInsufficientStock)
		}
	})

	t.Run("sold out is short", func(t *testing.T) {
		soldOut := s.PutProduct(approvedProduct(0))
		_, err := repos.Products.DecrementStock(ctx, soldOut.ID, 1)
		assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
		var stockErr *apperr.StockError
		require.True(t, errors.As(err, &stockErr))
		assert.Equal(t, 0, stockErr.Available)
	})

	t.Run("invalid quantity", func(t *testing.T) {
		_, err := repos.Products.DecrementStock(ctx, inStock.ID, 0)
		assert.ErrorIs(t, err, apperr.ErrInvalidQuantity)
	})

	t.Run("exact", func(t *testing.T) {
		updated, err := repos.Products.DecrementStock(ctx, inStock.ID, 2)
		require.NoError(t, err)
		assert.Equal(t, 0, updated.StockQuantity)
	})
}

func TestOrderUpdateIsGuardedByStatus(t *testing.T) {
	s := New()
	ctx := context.Background()
	orders := s.Repositories().Orders

	order := &models.Order{UserID: primitive.NewObjectID(), Status: models.OrderPending, CreatedAt: time.Now()}
	require.NoError(t, orders.Insert(ctx, order))

	err := orders.Update(ctx, order.ID, store.OrderUpdate{Expect: models.OrderPending, Status: models.OrderProcessing})
	require.NoError(t, err)

	err = orders.Update(ctx, order.ID, store.OrderUpdate{Expect: models.OrderPending, Status: models.OrderCancelled})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	err = orders.Update(ctx, primitive.NewObjectID(), store.OrderUpdate{Expect: models.OrderPending})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestOrderIdempotencyKeyIsUniquePerUser(t *testing.T) {
	s := New()
	ctx := context.Background()
	orders := s.Repositories().Orders
	userID := primitive.NewObjectID()

	require.NoError(t, orders.Insert(ctx, &models.Order{UserID: userID, IdempotencyKey: "k1"}))
	assert.ErrorIs(t, orders.Insert(ctx, &models.Order{UserID: userID, IdempotencyKey: "k1"}), apperr.ErrConflict)
	assert.NoError(t, orders.Insert(ctx, &models.Order{UserID: primitive.NewObjectID(), IdempotencyKey: "k1"}))

	found, err := orders.FindByIdempotencyKey(ctx, userID, "k1")
	require.NoError(t, err)
	assert.Equal(t, userID, found.UserID)
}

func TestListOrdersPaginatesNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	orders := s.Repositories().Orders
	userID := primitive.NewObjectID()
	base := time.Now()

	for i := 0; i < 5; i++ {
		status := models.OrderPending
		if i%2 == 1 {
			status = models.OrderCancelled
		}
		require.NoError(t, orders.Insert(ctx, &models.Order{
			UserID:    userID,
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, orders.Insert(ctx, &models.Order{UserID: primitive.NewObjectID(), CreatedAt: base}))

	page, total, err := orders.List(ctx, store.OrderFilter{UserID: &userID, Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))
	assert.Equal(t, base.Add(4*time.Minute), page[0].CreatedAt)

	last, _, err := orders.List(ctx, store.OrderFilter{UserID: &userID, Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, last, 1)

	beyond, _, err := orders.List(ctx, store.OrderFilter{UserID: &userID, Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond)

	cancelled, total, err := orders.List(ctx, store.OrderFilter{Status: models.OrderCancelled})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, cancelled, 2)
}

func TestCartClearKeepsDocument(t *testing.T) {
	s := New()
	ctx := context.Background()
	carts := s.Repositories().Carts
	userID := primitive.NewObjectID()

	cart := &models.Cart{UserID: userID, Items: []models.CartItem{{ID: primitive.NewObjectID(), ProductID: primitive.NewObjectID(), Quantity: 1}}}
	require.NoError(t, carts.Save(ctx, cart))
	require.NoError(t, carts.Clear(ctx, userID))

	got, err := carts.FindByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, got.ID)
	assert.Empty(t, got.Items)
	assert.NotNil(t, got.Items)
}
