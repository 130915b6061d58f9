// Package mongostore implements store.Store on MongoDB. Transactions use a
// client session, so every repository call made with the context handed to
// the transaction callback joins the same transaction.
package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"lpg-backend/internal/database"
	"lpg-backend/internal/store"
)

type Store struct {
	db    *mongo.Database
	repos store.Repositories
}

func New(db *mongo.Database) *Store {
	return &Store{
		db: db,
		repos: store.Repositories{
			Products: &products{coll: db.Collection(database.ProductsCollection)},
			Carts:    &carts{coll: db.Collection(database.CartsCollection)},
			Orders:   &orders{coll: db.Collection(database.OrdersCollection)},
			Users:    &users{coll: db.Collection(database.UsersCollection)},
		},
	}
}

func (s *Store) Repositories() store.Repositories {
	return s.repos
}

// Transaction runs fn inside session.WithTransaction. The driver retries fn
// on transient transaction errors, so fn must not keep state across calls.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context, repos store.Repositories) error) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx, s.repos)
	}, txnOpts)
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}
