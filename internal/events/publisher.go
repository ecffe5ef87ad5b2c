// Package events publishes transaction state changes to Kafka and user
// notifications to NATS.
package events

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"

	"github.com/jobfield/payment-engine/internal/models"
)

const StateTopic = "payments.transaction.state"

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers),
			Topic:    StateTopic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *KafkaPublisher) PublishStateChange(ctx context.Context, ev models.StateChangeEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.CheckoutID),
		Value: value,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

const NotificationSubject = "notifications.user"

type NatsNotifier struct {
	nc *nats.Conn
}

func NewNatsNotifier(nc *nats.Conn) *NatsNotifier {
	return &NatsNotifier{nc: nc}
}

func (n *NatsNotifier) Notify(ctx context.Context, note models.Notification) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return err
	}
	return n.nc.Publish(NotificationSubject, payload)
}
