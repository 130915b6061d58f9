package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// orderTransitions lists the forward edges of the order state machine.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range orderTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

type DeliveryType string

const (
	DeliveryASAP      DeliveryType = "ASAP"
	DeliveryScheduled DeliveryType = "Scheduled"
)

func (d DeliveryType) Valid() bool {
	return d == DeliveryASAP || d == DeliveryScheduled
}

// OrderItem is the priced snapshot of one ordered product.
type OrderItem struct {
	ProductID             primitive.ObjectID `bson:"productId" json:"productId"`
	Name                  string             `bson:"name" json:"name"`
	UnitPrice             float64            `bson:"unitPrice" json:"unitPrice"`
	Quantity              int                `bson:"quantity" json:"quantity"`
	EmptyCylinderReturned bool               `bson:"emptyCylinderReturned" json:"emptyCylinderReturned"`
}

// Order defines the persisted order document. Amounts are frozen at creation.
type Order struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID                primitive.ObjectID `bson:"userId" json:"userId"`
	Items                 []OrderItem        `bson:"items" json:"items"`
	Subtotal              float64            `bson:"subtotal" json:"subtotal"`
	DeliveryFee           float64            `bson:"deliveryFee" json:"deliveryFee"`
	TotalAmount           float64            `bson:"totalAmount" json:"totalAmount"`
	Status                OrderStatus        `bson:"status" json:"status"`
	PaymentStatus         PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	DeliveryType          DeliveryType       `bson:"deliveryType" json:"deliveryType"`
	ScheduledDate         *time.Time         `bson:"scheduledDate,omitempty" json:"scheduledDate,omitempty"`
	EmptyCylinderReturned bool               `bson:"emptyCylinderReturned" json:"emptyCylinderReturned"`
	// StockCommitted is true once the ordered quantities have left stock.
	StockCommitted bool      `bson:"stockCommitted" json:"stockCommitted"`
	IdempotencyKey string    `bson:"idempotencyKey,omitempty" json:"-"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Quantities sums ordered units per product.
func (o Order) Quantities() map[primitive.ObjectID]int {
	out := make(map[primitive.ObjectID]int, len(o.Items))
	for _, item := range o.Items {
		out[item.ProductID] += item.Quantity
	}
	return out
}
