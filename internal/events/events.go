// Package events publishes order lifecycle and inventory envelopes after
// the owning transaction commits. Delivery is best effort.
package events

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"lpg-backend/internal/models"
)

const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
	TypeInventoryLowStock  = "inventory.low_stock"
)

const publishTimeout = 3 * time.Second

type Event struct {
	ID         string    `json:"eventId"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

func New(eventType string, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type OrderCreated struct {
	OrderID        primitive.ObjectID `json:"orderId"`
	UserID         primitive.ObjectID `json:"userId"`
	Items          []models.OrderItem `json:"items"`
	TotalAmount    float64            `json:"totalAmount"`
	DeliveryType   string             `json:"deliveryType"`
	StockCommitted bool               `json:"stockCommitted"`
}

func NewOrderCreated(order models.Order) Event {
	return New(TypeOrderCreated, OrderCreated{
		OrderID:        order.ID,
		UserID:         order.UserID,
		Items:          order.Items,
		TotalAmount:    order.TotalAmount,
		DeliveryType:   string(order.DeliveryType),
		StockCommitted: order.StockCommitted,
	})
}

type OrderStatusChanged struct {
	OrderID primitive.ObjectID `json:"orderId"`
	From    models.OrderStatus `json:"from"`
	To      models.OrderStatus `json:"to"`
}

type LowStock struct {
	ProductID     primitive.ObjectID `json:"productId"`
	Name          string             `json:"name"`
	StockQuantity int                `json:"stockQuantity"`
	Threshold     int                `json:"threshold"`
}

type Publisher interface {
	Publish(ctx context.Context, key string, event Event) error
	Close() error
}

// Emit publishes without letting a broker failure reach the caller. The
// request context may already be finishing, so publishing runs detached
// from its cancellation with a short timeout of its own.
func Emit(ctx context.Context, p Publisher, key string, event Event) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.Publish(ctx, key, event); err != nil {
		log.Printf("[EVENTS] [ERROR] publish %s key=%s failed: %v", event.Type, key, err)
	}
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher writes events to the process log when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, key string, event Event) error {
	log.Printf("[EVENTS] [INFO] %s key=%s id=%s", event.Type, key, event.ID)
	return nil
}

func (LogPublisher) Close() error { return nil }

// Recorder keeps published events in memory for assertions.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, _ string, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events with the given type.
func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
