package deposit

import (
	"context"
	"errors"
	"testing"

	"github.com/giovaniif/vending-machine/domain/item"
	"github.com/giovaniif/vending-machine/domain/machine"
	"github.com/giovaniif/vending-machine/protocols"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type mockEventPublisher struct {
	published  []protocols.VendEvent
	publishErr error
}

func (m *mockEventPublisher) Publish(ctx context.Context, events ...protocols.VendEvent) error {
	m.published = append(m.published, events...)
	return m.publishErr
}

func newUseCase(t *testing.T) (*Deposit, *machine.Synchronized, *mockEventPublisher) {
	t.Helper()
	m, err := machine.New(item.Inventory{})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	shared := machine.NewSynchronized(m)
	publisher := &mockEventPublisher{}
	return NewDeposit(shared, publisher, zap.NewNop()), shared, publisher
}

func TestDepositAddsToBalance(t *testing.T) {
	uc, shared, publisher := newUseCase(t)

	out, err := uc.Deposit(context.Background(), Input{Amount: decimal.RequireFromString("5.00")})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !out.Balance.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected balance 15, got %s", out.Balance)
	}
	if !shared.AmountDeposited().Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected machine balance 15, got %s", shared.AmountDeposited())
	}
	if len(publisher.published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(publisher.published))
	}
	ev := publisher.published[0]
	if ev.Type != protocols.EventDeposited || !ev.Amount.Equal(decimal.RequireFromString("5")) || ev.Id == "" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDepositAccumulates(t *testing.T) {
	uc, shared, _ := newUseCase(t)

	for i := 0; i < 3; i++ {
		if _, err := uc.Deposit(context.Background(), Input{Amount: decimal.RequireFromString("0.25")}); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	}
	if !shared.AmountDeposited().Equal(decimal.RequireFromString("10.75")) {
		t.Fatalf("expected balance 10.75, got %s", shared.AmountDeposited())
	}
}

func TestDepositNegativeAmountIsApplied(t *testing.T) {
	uc, _, _ := newUseCase(t)

	out, err := uc.Deposit(context.Background(), Input{Amount: decimal.NewFromInt(-4)})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !out.Balance.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("expected balance 6, got %s", out.Balance)
	}
}

func TestDepositPublishFailureDoesNotFailDeposit(t *testing.T) {
	uc, shared, publisher := newUseCase(t)
	publisher.publishErr = errors.New("broker down")

	if _, err := uc.Deposit(context.Background(), Input{Amount: decimal.NewFromInt(1)}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !shared.AmountDeposited().Equal(decimal.NewFromInt(11)) {
		t.Fatalf("expected balance 11, got %s", shared.AmountDeposited())
	}
}
