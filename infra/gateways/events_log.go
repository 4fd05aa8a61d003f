package gateways

import (
	"context"

	"github.com/giovaniif/vending-machine/infra/logging"
	"github.com/giovaniif/vending-machine/protocols"
	"go.uber.org/zap"
)

// EventPublisherLog writes events to the log when no broker is configured.
type EventPublisherLog struct {
	logger *zap.Logger
}

func NewEventPublisherLog(logger *zap.Logger) *EventPublisherLog {
	return &EventPublisherLog{logger: logger}
}

func (p *EventPublisherLog) Publish(ctx context.Context, events ...protocols.VendEvent) error {
	logger := logging.FromContext(ctx, p.logger)
	for _, event := range events {
		logger.Info("vend event",
			zap.String("event_id", event.Id),
			zap.String("type", string(event.Type)),
			zap.String("selection", event.Selection),
			zap.Stringer("quantity", event.Quantity),
			zap.Stringer("amount", event.Amount),
			zap.Stringer("balance", event.Balance),
			zap.String("reason", event.Reason),
		)
	}
	return nil
}
