package protocols

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrIdempotencyKeyInProgress = errors.New("idempotency key is already being processed")
	ErrIdempotencyKeyMismatch   = errors.New("idempotency key was used for a different vend")
)

// VendIdempotencyResult is what a completed vend stored under its key.
type VendIdempotencyResult struct {
	Success    bool            `json:"success"`
	Selection  string          `json:"selection"`
	Quantity   decimal.Decimal `json:"quantity"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Remaining  decimal.Decimal `json:"remaining"`
	Balance    decimal.Decimal `json:"balance"`
}

type VendIdempotencyGateway interface {
	ReserveIdempotencyKey(ctx context.Context, idempotencyKey string) (*VendIdempotencyResult, error)
	MarkFailure(ctx context.Context, idempotencyKey string) error
	MarkSuccess(ctx context.Context, idempotencyKey string, result VendIdempotencyResult) error
}
