package vend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/giovaniif/vending-machine/domain/item"
	"github.com/giovaniif/vending-machine/domain/machine"
	"github.com/giovaniif/vending-machine/domain/selection"
	"github.com/giovaniif/vending-machine/infra/logging"
	"github.com/giovaniif/vending-machine/infra/metrics"
	"github.com/giovaniif/vending-machine/infra/requestid"
	"github.com/giovaniif/vending-machine/infra/tracing"
	"github.com/giovaniif/vending-machine/protocols"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// errTransact wraps failures of the transactor itself, as opposed to vend
// errors reported by the machine.
var errTransact = errors.New("vend transaction failed")

type Vend struct {
	machine            machine.Transactor
	idempotencyGateway protocols.VendIdempotencyGateway
	eventPublisher     protocols.EventPublisher
	logger             *zap.Logger
}

func NewVend(m machine.Transactor, idempotencyGateway protocols.VendIdempotencyGateway, eventPublisher protocols.EventPublisher, logger *zap.Logger) *Vend {
	return &Vend{
		machine:            m,
		idempotencyGateway: idempotencyGateway,
		eventPublisher:     eventPublisher,
		logger:             logger,
	}
}

type Input struct {
	Selection      selection.Selection
	Quantity       decimal.Decimal
	IdempotencyKey string
}

type Output struct {
	Selection  selection.Selection
	Quantity   decimal.Decimal
	TotalPrice decimal.Decimal
	Remaining  decimal.Decimal
	Balance    decimal.Decimal
	Replayed   bool
}

// Vend runs one vend against the shared machine. Vend errors from the
// machine are returned unchanged so callers can branch on them.
func (v *Vend) Vend(ctx context.Context, input Input) (Output, error) {
	ctx, span := tracing.Tracer().Start(ctx, "vend")
	defer span.End()
	span.SetAttributes(
		attribute.String("vend.selection", input.Selection.String()),
		attribute.String("vend.quantity", input.Quantity.String()),
	)
	logger := logging.FromContext(ctx, v.logger).With(
		zap.String("selection", input.Selection.String()),
		zap.Stringer("quantity", input.Quantity),
	)

	if input.IdempotencyKey != "" {
		result, err := v.idempotencyGateway.ReserveIdempotencyKey(ctx, input.IdempotencyKey)
		if err != nil {
			logger.Warn("failed to reserve idempotency key", zap.Error(err))
			span.SetStatus(codes.Error, err.Error())
			return Output{}, err
		}
		if result != nil {
			if result.Selection != input.Selection.String() || !result.Quantity.Equal(input.Quantity) {
				logger.Warn("idempotency key reused for a different vend", zap.String("stored_selection", result.Selection))
				span.SetStatus(codes.Error, protocols.ErrIdempotencyKeyMismatch.Error())
				return Output{}, protocols.ErrIdempotencyKeyMismatch
			}
			span.SetAttributes(attribute.Bool("vend.replayed", true))
			return Output{
				Selection:  input.Selection,
				Quantity:   result.Quantity,
				TotalPrice: result.TotalPrice,
				Remaining:  result.Remaining,
				Balance:    result.Balance,
				Replayed:   true,
			}, nil
		}
	}

	output, after, stocked, vendErr := v.vend(input)
	if errors.Is(vendErr, errTransact) {
		if input.IdempotencyKey != "" {
			if err := v.idempotencyGateway.MarkFailure(ctx, input.IdempotencyKey); err != nil {
				logger.Warn("failed to release idempotency key", zap.Error(err))
			}
		}
		logger.Error("vend transaction failed", zap.Error(vendErr))
		span.SetStatus(codes.Error, vendErr.Error())
		return Output{}, vendErr
	}

	if input.IdempotencyKey != "" {
		if vendErr == nil {
			err := v.idempotencyGateway.MarkSuccess(ctx, input.IdempotencyKey, protocols.VendIdempotencyResult{
				Success:    true,
				Selection:  output.Selection.String(),
				Quantity:   output.Quantity,
				TotalPrice: output.TotalPrice,
				Remaining:  output.Remaining,
				Balance:    output.Balance,
			})
			if err != nil {
				logger.Warn("failed to mark idempotency key", zap.Error(err))
			}
		} else if err := v.idempotencyGateway.MarkFailure(ctx, input.IdempotencyKey); err != nil {
			logger.Warn("failed to release idempotency key", zap.Error(err))
		}
	}

	outcome := outcomeOf(vendErr)
	metrics.VendTotal.WithLabelValues(input.Selection.String(), outcome).Inc()
	metrics.Balance.Set(output.Balance.InexactFloat64())
	if stocked {
		metrics.StockLevel.WithLabelValues(input.Selection.String()).Set(after.Quantity.InexactFloat64())
	}
	span.SetAttributes(
		attribute.String("vend.outcome", outcome),
		attribute.String("vend.balance", output.Balance.String()),
	)

	if vendErr != nil {
		span.SetStatus(codes.Error, vendErr.Error())
		logger.Info("vend rejected", zap.String("outcome", outcome), zap.Error(vendErr))
	} else {
		logger.Info("vend succeeded", zap.Stringer("total_price", output.TotalPrice), zap.Stringer("balance", output.Balance))
	}

	events := v.events(ctx, input, output, after, stocked, vendErr)
	if err := v.eventPublisher.Publish(ctx, events...); err != nil {
		logger.Error("failed to publish vend events", zap.Error(err))
	}

	return output, vendErr
}

// vend performs the machine call and reads the resulting state under one lock.
func (v *Vend) vend(input Input) (Output, item.Item, bool, error) {
	output := Output{Selection: input.Selection, Quantity: input.Quantity}
	var after item.Item
	var stocked bool

	var vendErr error
	err := v.machine.Transact(func(vm machine.VendingMachine) error {
		vendErr = vm.Vend(input.Selection, input.Quantity)
		after, stocked = vm.ItemForSelection(input.Selection)
		output.Balance = vm.AmountDeposited()
		return nil
	})
	if err != nil {
		return Output{}, item.Item{}, false, fmt.Errorf("%w: %w", errTransact, err)
	}

	if stocked {
		output.TotalPrice = after.TotalPrice(input.Quantity)
		output.Remaining = after.Quantity
	}
	return output, after, stocked, vendErr
}

func (v *Vend) events(ctx context.Context, input Input, output Output, after item.Item, stocked bool, vendErr error) []protocols.VendEvent {
	now := time.Now().UTC()
	base := protocols.VendEvent{
		RequestId:  requestid.FromContext(ctx),
		Selection:  input.Selection.String(),
		Quantity:   input.Quantity,
		Amount:     output.TotalPrice,
		Remaining:  output.Remaining,
		Balance:    output.Balance,
		OccurredAt: now,
	}

	first := base
	first.Id = uuid.NewString()
	first.Type = protocols.EventVendSucceeded
	if vendErr != nil {
		first.Type = protocols.EventVendFailed
		first.Reason = outcomeOf(vendErr)
	}
	events := []protocols.VendEvent{first}

	// Stock is only removed once the availability checks pass, i.e. on success
	// or on insufficient funds.
	removed := vendErr == nil || errors.Is(vendErr, machine.ErrInsufficientFunds)
	if stocked && removed && !after.HasAnyStock() {
		depleted := base
		depleted.Id = uuid.NewString()
		depleted.Type = protocols.EventStockDepleted
		events = append(events, depleted)
	}
	return events
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, machine.ErrInvalidSelection):
		return "invalid_selection"
	case errors.Is(err, machine.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, machine.ErrInsufficientFunds):
		return "insufficient_funds"
	default:
		return "error"
	}
}
