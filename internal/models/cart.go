package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartItem is one product line in a cart. ID is stable across updates so
// clients can address the line directly.
type CartItem struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	AddedAt   time.Time          `bson:"addedAt" json:"addedAt"`
}

// Cart is the single pre-checkout basket owned by a user.
type Cart struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Items     []CartItem         `bson:"items" json:"items"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (c *Cart) ItemByID(itemID primitive.ObjectID) (int, bool) {
	for i, item := range c.Items {
		if item.ID == itemID {
			return i, true
		}
	}
	return -1, false
}

func (c *Cart) ItemByProduct(productID primitive.ObjectID) (int, bool) {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i, true
		}
	}
	return -1, false
}

// ProductIDs returns the distinct products referenced by the cart in line order.
func (c *Cart) ProductIDs() []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(c.Items))
	ids := make([]primitive.ObjectID, 0, len(c.Items))
	for _, item := range c.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}
