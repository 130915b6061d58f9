package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"lpg-backend/internal/apperr"
	"lpg-backend/internal/models"
)

type carts struct {
	coll *mongo.Collection
}

func (c *carts) FindByUser(ctx context.Context, userID primitive.ObjectID) (models.Cart, error) {
	var cart models.Cart
	err := c.coll.FindOne(ctx, bson.M{"userId": userID}).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Cart{}, apperr.NotFound("cart")
	}
	return cart, err
}

func (c *carts) Save(ctx context.Context, cart *models.Cart) error {
	now := time.Now()
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}

	res, err := c.coll.UpdateOne(ctx,
		bson.M{"userId": cart.UserID},
		bson.M{
			"$set":         bson.M{"items": cart.Items, "updatedAt": now},
			"$setOnInsert": bson.M{"createdAt": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return err
	}

	if id, ok := res.UpsertedID.(primitive.ObjectID); ok {
		cart.ID = id
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now
	return nil
}

func (c *carts) Clear(ctx context.Context, userID primitive.ObjectID) error {
	_, err := c.coll.UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{"$set": bson.M{"items": []models.CartItem{}, "updatedAt": time.Now()}},
	)
	return err
}
