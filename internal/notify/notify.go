// Package notify publishes fire-and-forget order notifications to Kafka.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/retailhub/order-service/internal/domain/order"
	"github.com/retailhub/order-service/internal/domain/user"
)

// Notification is the event payload consumed by the notification service.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	FromEmail string    `json:"fromEmail"`
	ToEmail   string    `json:"toEmail"`
	CreatedOn time.Time `json:"createdOn"`
	CreatedBy string    `json:"createdBy"`
}

// MessageWriter is the slice of *kafka.Writer the emitter needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

var _ order.Notifier = (*Emitter)(nil)

// Emitter publishes order status notifications. Publishing is best-effort by
// contract: the caller logs and swallows any returned error.
type Emitter struct {
	writer    MessageWriter
	users     user.Directory
	fromEmail string
}

// NewEmitter creates an Emitter publishing to the given topic on brokers.
func NewEmitter(brokers []string, topic, fromEmail string, users user.Directory) *Emitter {
	return &Emitter{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		users:     users,
		fromEmail: fromEmail,
	}
}

// NewEmitterWithWriter creates an Emitter over an existing writer. Used by
// tests and by callers that manage the writer lifecycle themselves.
func NewEmitterWithWriter(w MessageWriter, fromEmail string, users user.Directory) *Emitter {
	return &Emitter{writer: w, users: users, fromEmail: fromEmail}
}

// Close releases the underlying writer when the emitter owns one.
func (e *Emitter) Close() error {
	if w, ok := e.writer.(*kafka.Writer); ok {
		return w.Close()
	}
	return nil
}

// OrderStatusChanged publishes a notification describing the order's new
// status to its retailer. The recipient address is the retailer's login ID;
// an unknown retailer leaves it empty rather than failing the publish.
func (e *Emitter) OrderStatusChanged(ctx context.Context, o *order.Order) error {
	toEmail := ""
	if users, err := e.users.ByIDs(ctx, []string{o.RetailerID}); err == nil {
		if u, ok := users[o.RetailerID]; ok {
			toEmail = u.LoginID
		}
	}

	n := Notification{
		ID:        uuid.New().String(),
		UserID:    o.RetailerID,
		Subject:   fmt.Sprintf("Order %s %s", o.ID, o.Status),
		Message:   fmt.Sprintf("Your order %s is now %s.", o.ID, o.Status),
		FromEmail: e.fromEmail,
		ToEmail:   toEmail,
		CreatedOn: time.Now().UTC(),
		CreatedBy: o.RetailerID,
	}

	value, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "encode notification")
	}

	err = e.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.ID),
		Value: value,
		Time:  n.CreatedOn,
	})
	if err != nil {
		return errors.Wrap(err, "publish notification")
	}
	return nil
}

// Nop is a Notifier that drops every event. It stands in for the emitter when
// no Kafka brokers are configured.
type Nop struct{}

var _ order.Notifier = Nop{}

func (Nop) OrderStatusChanged(context.Context, *order.Order) error { return nil }
