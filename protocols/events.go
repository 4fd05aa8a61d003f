package protocols

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventVendSucceeded EventType = "vend.succeeded"
	EventVendFailed    EventType = "vend.failed"
	EventStockDepleted EventType = "stock.depleted"
	EventDeposited     EventType = "funds.deposited"
)

type VendEvent struct {
	Id         string          `json:"id"`
	Type       EventType       `json:"type"`
	RequestId  string          `json:"requestId,omitempty"`
	Selection  string          `json:"selection,omitempty"`
	Quantity   decimal.Decimal `json:"quantity"`
	Amount     decimal.Decimal `json:"amount"`
	Remaining  decimal.Decimal `json:"remaining"`
	Balance    decimal.Decimal `json:"balance"`
	Reason     string          `json:"reason,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

type EventPublisher interface {
	Publish(ctx context.Context, events ...VendEvent) error
}
