package mongostore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"lpg-backend/internal/apperr"
	"lpg-backend/internal/database"
	"lpg-backend/internal/models"
	"lpg-backend/internal/store"
)

// setupTestStore connects to the replica set named by MONGO_TEST_URI and
// skips when it is unset.
func setupTestStore(t *testing.T) (*Store, *mongo.Database) {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set, skipping MongoDB integration test")
	}

	client, err := database.Connect(uri)
	require.NoError(t, err)

	db := client.Database(fmt.Sprintf("lpg_test_%d", time.Now().UnixNano()))
	database.EnsureAll(db)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return New(db), db
}

func insertProduct(t *testing.T, db *mongo.Database, stock int) models.Product {
	t.Helper()
	p := models.Product{
		ID:             primitive.NewObjectID(),
		Name:           "6kg refill",
		Brand:          models.BrandKGas,
		CylinderSize:   models.Cylinder6kg,
		Price:          900,
		StockQuantity:  stock,
		Availability:   true,
		ApprovalStatus: models.ApprovalApproved,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	_, err := db.Collection(database.ProductsCollection).InsertOne(context.Background(), p)
	require.NoError(t, err)
	return p
}

func TestMongoDecrementStock(t *testing.T) {
	s, db := setupTestStore(t)
	ctx := context.Background()
	p := insertProduct(t, db, 3)

	updated, err := s.Repositories().Products.DecrementStock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.StockQuantity)

	_, err = s.Repositories().Products.DecrementStock(ctx, p.ID, 2)
	var stockErr *apperr.StockError
	require.True(t, errors.As(err, &stockErr))
	assert.True(t, stockErr.Short)
	assert.Equal(t, 1, stockErr.Available)

	_, err = s.Repositories().Products.DecrementStock(ctx, primitive.NewObjectID(), 1)
	assert.ErrorIs(t, err, apperr.ErrProductUnavailable)

	_, err = s.Repositories().Products.DecrementStock(ctx, p.ID, 1)
	require.NoError(t, err)
	_, err = s.Repositories().Products.DecrementStock(ctx, p.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
}

func TestMongoTransactionRollback(t *testing.T) {
	s, db := setupTestStore(t)
	ctx := context.Background()
	p := insertProduct(t, db, 5)
	userID := primitive.NewObjectID()

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(ctx context.Context, repos store.Repositories) error {
		if _, err := repos.Products.DecrementStock(ctx, p.ID, 5); err != nil {
			return err
		}
		if err := repos.Orders.Insert(ctx, &models.Order{UserID: userID, Status: models.OrderPending}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Repositories().Products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.StockQuantity)

	_, total, err := s.Repositories().Orders.List(ctx, store.OrderFilter{UserID: &userID})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestMongoConcurrentDecrementsNeverOversell(t *testing.T) {
	s, db := setupTestStore(t)
	ctx := context.Background()
	p := insertProduct(t, db, 4)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Transaction(ctx, func(ctx context.Context, repos store.Repositories) error {
				_, err := repos.Products.DecrementStock(ctx, p.ID, 1)
				return err
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := s.Repositories().Products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, succeeded)
	assert.Equal(t, 0, got.StockQuantity)
}

func TestMongoCartUpsertAndClear(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	carts := s.Repositories().Carts
	userID := primitive.NewObjectID()

	cart := &models.Cart{UserID: userID, Items: []models.CartItem{{
		ID: primitive.NewObjectID(), ProductID: primitive.NewObjectID(), Quantity: 2, AddedAt: time.Now(),
	}}}
	require.NoError(t, carts.Save(ctx, cart))
	assert.False(t, cart.ID.IsZero())

	require.NoError(t, carts.Clear(ctx, userID))
	got, err := carts.FindByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
}

func TestMongoOrderUpdateConflict(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	orders := s.Repositories().Orders

	order := &models.Order{UserID: primitive.NewObjectID(), Status: models.OrderPending, CreatedAt: time.Now()}
	require.NoError(t, orders.Insert(ctx, order))

	require.NoError(t, orders.Update(ctx, order.ID, store.OrderUpdate{
		Expect: models.OrderPending, Status: models.OrderCancelled, PaymentStatus: models.PaymentPending, UpdatedAt: time.Now(),
	}))
	err := orders.Update(ctx, order.ID, store.OrderUpdate{Expect: models.OrderPending, Status: models.OrderProcessing})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}
