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

type products struct {
	coll *mongo.Collection
}

func (p *products) FindByID(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	var product models.Product
	err := p.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Product{}, apperr.NotFound("product")
	}
	return product, err
}

func (p *products) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	out := make(map[primitive.ObjectID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cursor, err := p.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var found []models.Product
	if err := cursor.All(ctx, &found); err != nil {
		return nil, err
	}
	for _, product := range found {
		out[product.ID] = product
	}
	return out, nil
}

// DecrementStock guards the $inc with the purchasable filter so two racing
// writers can never take the count below zero.
func (p *products) DecrementStock(ctx context.Context, id primitive.ObjectID, quantity int) (models.Product, error) {
	if quantity < 1 {
		return models.Product{}, apperr.ErrInvalidQuantity
	}

	filter := bson.M{
		"_id":            id,
		"availability":   true,
		"approvalStatus": models.ApprovalApproved,
		"stockQuantity":  bson.M{"$gte": quantity},
	}
	update := bson.M{
		"$inc": bson.M{"stockQuantity": -quantity},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Product
	err := p.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Product{}, err
	}

	current, err := p.FindByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Product{}, apperr.Unavailable(id, quantity)
	}
	if err != nil {
		return models.Product{}, err
	}
	if !current.Listed() {
		return models.Product{}, apperr.Unavailable(id, quantity)
	}
	return models.Product{}, apperr.Insufficient(id, current.StockQuantity, quantity)
}

func (p *products) IncrementStock(ctx context.Context, id primitive.ObjectID, quantity int) (models.Product, error) {
	if quantity < 1 {
		return models.Product{}, apperr.ErrInvalidQuantity
	}

	update := bson.M{
		"$inc": bson.M{"stockQuantity": quantity},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Product
	err := p.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Product{}, apperr.NotFound("product")
	}
	return updated, err
}
