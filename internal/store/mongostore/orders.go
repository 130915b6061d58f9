package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"lpg-backend/internal/apperr"
	"lpg-backend/internal/models"
	"lpg-backend/internal/store"
)

type orders struct {
	coll *mongo.Collection
}

func (o *orders) Insert(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	_, err := o.coll.InsertOne(ctx, order)
	if mongo.IsDuplicateKeyError(err) {
		return apperr.ErrConflict
	}
	return err
}

func (o *orders) FindByID(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	return o.findOne(ctx, bson.M{"_id": id})
}

func (o *orders) FindByIdempotencyKey(ctx context.Context, userID primitive.ObjectID, key string) (models.Order, error) {
	return o.findOne(ctx, bson.M{"userId": userID, "idempotencyKey": key})
}

func (o *orders) findOne(ctx context.Context, filter bson.M) (models.Order, error) {
	var order models.Order
	err := o.coll.FindOne(ctx, filter).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Order{}, apperr.NotFound("order")
	}
	return order, err
}

func (o *orders) List(ctx context.Context, f store.OrderFilter) ([]models.Order, int64, error) {
	filter := bson.M{}
	if f.UserID != nil {
		filter["userId"] = *f.UserID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	total, err := o.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		findOptions.SetSkip((page - 1) * f.Limit).SetLimit(f.Limit)
	}

	cursor, err := o.coll.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	out := make([]models.Order, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (o *orders) Update(ctx context.Context, id primitive.ObjectID, u store.OrderUpdate) error {
	res, err := o.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": u.Expect},
		bson.M{"$set": bson.M{
			"status":         u.Status,
			"paymentStatus":  u.PaymentStatus,
			"stockCommitted": u.StockCommitted,
			"updatedAt":      u.UpdatedAt,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}

	if _, err := o.FindByID(ctx, id); err != nil {
		return err
	}
	return apperr.ErrConflict
}

func (o *orders) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := o.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("order")
	}
	return nil
}
