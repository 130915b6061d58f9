package mongostore

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"lpg-backend/internal/apperr"
	"lpg-backend/internal/models"
)

type users struct {
	coll *mongo.Collection
}

func (u *users) FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	return u.findOne(ctx, bson.M{"_id": id})
}

func (u *users) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return u.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (u *users) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var user models.User
	err := u.coll.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, apperr.NotFound("user")
	}
	return user, err
}
