package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureProductIndexes(db *mongo.Database) error {
	return ensureIndexes(db, ProductsCollection, mongo.IndexModel{
		Keys:    bson.D{{Key: "brand", Value: 1}, {Key: "cylinderSize", Value: 1}},
		Options: options.Index().SetName("brand_cylinderSize"),
	})
}

func EnsureUserIndexes(db *mongo.Database) error {
	return ensureIndexes(db, UsersCollection, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetName("email_unique").
			SetUnique(true),
	})
}

func EnsureCartIndexes(db *mongo.Database) error {
	return ensureIndexes(db, CartsCollection, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().
			SetName("userId_unique").
			SetUnique(true),
	})
}

func EnsureOrderIndexes(db *mongo.Database) error {
	return ensureIndexes(db, OrdersCollection,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("userId_createdAt"),
		},
		mongo.IndexModel{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "idempotencyKey", Value: 1}},
			Options: options.Index().
				SetName("idempotencyKey_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"idempotencyKey": bson.M{"$type": "string"},
				}),
		},
	)
}

// EnsureAll creates every index the service relies on, logging failures
// without aborting so one bad index does not block startup.
func EnsureAll(db *mongo.Database) {
	ensure := map[string]func(*mongo.Database) error{
		ProductsCollection: EnsureProductIndexes,
		UsersCollection:    EnsureUserIndexes,
		CartsCollection:    EnsureCartIndexes,
		OrdersCollection:   EnsureOrderIndexes,
	}
	for name, fn := range ensure {
		if err := fn(db); err != nil {
			log.Printf("⚠️ %s index warning: %v", name, err)
		}
	}
}

func ensureIndexes(db *mongo.Database, collection string, models ...mongo.IndexModel) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	names, err := db.Collection(collection).Indexes().CreateMany(ctx, models)
	if err != nil {
		log.Printf("ensureIndexes: %s index error: %v", collection, err)
		return err
	}
	log.Printf("ensureIndexes: %s indexes ready: %v", collection, names)
	return nil
}
