package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	infra "github.com/giovaniif/vending-machine/infra"
	"github.com/giovaniif/vending-machine/infra/tracing"
	"github.com/giovaniif/vending-machine/protocols"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type EventPublisherKafka struct {
	writer messageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

func NewEventPublisherKafka(writer messageWriter) *EventPublisherKafka {
	return &EventPublisherKafka{writer: writer}
}

// Publish keys messages by selection so events for one selection stay ordered.
func (p *EventPublisherKafka) Publish(ctx context.Context, events ...protocols.VendEvent) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var headers []kafka.Header
	for k, v := range tracing.Inject(ctx) {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		value, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal %s event: %w", event.Type, err)
		}
		msgHeaders := make([]kafka.Header, 0, len(headers)+1)
		msgHeaders = append(msgHeaders, headers...)
		msgHeaders = append(msgHeaders, kafka.Header{Key: "type", Value: []byte(event.Type)})
		msgs = append(msgs, kafka.Message{
			Key:     []byte(event.Selection),
			Value:   value,
			Headers: msgHeaders,
		})
	}

	err := p.writer.WriteMessages(ctx, msgs...)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return infra.NewTimeoutError("timeout publishing vend events")
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return infra.NewNetworkError(fmt.Sprintf("publishing vend events: %v", err))
}

func (p *EventPublisherKafka) Close() error {
	return p.writer.Close()
}
