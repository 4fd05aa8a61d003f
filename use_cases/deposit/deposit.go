package deposit

import (
	"context"
	"time"

	"github.com/giovaniif/vending-machine/domain/machine"
	"github.com/giovaniif/vending-machine/infra/logging"
	"github.com/giovaniif/vending-machine/infra/metrics"
	"github.com/giovaniif/vending-machine/infra/requestid"
	"github.com/giovaniif/vending-machine/infra/tracing"
	"github.com/giovaniif/vending-machine/protocols"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type Deposit struct {
	machine        machine.Transactor
	eventPublisher protocols.EventPublisher
	logger         *zap.Logger
}

func NewDeposit(m machine.Transactor, eventPublisher protocols.EventPublisher, logger *zap.Logger) *Deposit {
	return &Deposit{
		machine:        m,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

type Input struct {
	Amount decimal.Decimal
}

type Output struct {
	Amount  decimal.Decimal
	Balance decimal.Decimal
}

// Deposit credits the machine with the given amount. The amount is not
// validated here; callers that face users reject non-positive amounts.
func (d *Deposit) Deposit(ctx context.Context, input Input) (Output, error) {
	ctx, span := tracing.Tracer().Start(ctx, "deposit")
	defer span.End()

	var balance decimal.Decimal
	err := d.machine.Transact(func(vm machine.VendingMachine) error {
		vm.Deposit(input.Amount)
		balance = vm.AmountDeposited()
		return nil
	})
	if err != nil {
		return Output{}, err
	}

	metrics.DepositTotal.Inc()
	metrics.Balance.Set(balance.InexactFloat64())
	span.SetAttributes(
		attribute.String("deposit.amount", input.Amount.String()),
		attribute.String("deposit.balance", balance.String()),
	)

	logger := logging.FromContext(ctx, d.logger)
	logger.Info("funds deposited", zap.Stringer("amount", input.Amount), zap.Stringer("balance", balance))

	event := protocols.VendEvent{
		Id:         uuid.NewString(),
		Type:       protocols.EventDeposited,
		RequestId:  requestid.FromContext(ctx),
		Amount:     input.Amount,
		Balance:    balance,
		OccurredAt: time.Now().UTC(),
	}
	if err := d.eventPublisher.Publish(ctx, event); err != nil {
		logger.Error("failed to publish deposit event", zap.Error(err))
	}

	return Output{Amount: input.Amount, Balance: balance}, nil
}
