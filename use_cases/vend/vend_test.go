package vend

import (
	"context"
	"errors"
	"testing"

	"github.com/giovaniif/vending-machine/domain/item"
	"github.com/giovaniif/vending-machine/domain/machine"
	"github.com/giovaniif/vending-machine/domain/selection"
	"github.com/giovaniif/vending-machine/protocols"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type mockIdempotencyGateway struct {
	reserveResult *protocols.VendIdempotencyResult
	reserveErr    error

	reservedKeys   []string
	successKeys    []string
	successResults []protocols.VendIdempotencyResult
	failureKeys    []string
}

func (m *mockIdempotencyGateway) ReserveIdempotencyKey(ctx context.Context, idempotencyKey string) (*protocols.VendIdempotencyResult, error) {
	m.reservedKeys = append(m.reservedKeys, idempotencyKey)
	return m.reserveResult, m.reserveErr
}

func (m *mockIdempotencyGateway) MarkFailure(ctx context.Context, idempotencyKey string) error {
	m.failureKeys = append(m.failureKeys, idempotencyKey)
	return nil
}

func (m *mockIdempotencyGateway) MarkSuccess(ctx context.Context, idempotencyKey string, result protocols.VendIdempotencyResult) error {
	m.successKeys = append(m.successKeys, idempotencyKey)
	m.successResults = append(m.successResults, result)
	return nil
}

type mockEventPublisher struct {
	published  []protocols.VendEvent
	publishErr error
}

func (m *mockEventPublisher) Publish(ctx context.Context, events ...protocols.VendEvent) error {
	m.published = append(m.published, events...)
	return m.publishErr
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newUseCase(t *testing.T, inv item.Inventory, balance string) (*Vend, *machine.Synchronized, *mockIdempotencyGateway, *mockEventPublisher) {
	t.Helper()
	m, err := machine.New(inv, machine.WithInitialBalance(dec(balance)))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	shared := machine.NewSynchronized(m)
	idempotency := &mockIdempotencyGateway{}
	publisher := &mockEventPublisher{}
	return NewVend(shared, idempotency, publisher, zap.NewNop()), shared, idempotency, publisher
}

func TestVendSuccess(t *testing.T) {
	uc, shared, idempotency, publisher := newUseCase(t, item.Inventory{selection.Soda: {Price: dec("1.50"), Quantity: dec("5")}}, "10.0")

	out, err := uc.Vend(context.Background(), Input{Selection: selection.Soda, Quantity: dec("2"), IdempotencyKey: "key-1"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !out.TotalPrice.Equal(dec("3")) || !out.Balance.Equal(dec("7")) || !out.Remaining.Equal(dec("3")) {
		t.Fatalf("unexpected output: %+v", out)
	}
	if !shared.AmountDeposited().Equal(dec("7")) {
		t.Fatalf("expected machine balance 7, got %s", shared.AmountDeposited())
	}
	if len(idempotency.successKeys) != 1 || idempotency.successKeys[0] != "key-1" {
		t.Fatalf("expected MarkSuccess called with key-1, got %v", idempotency.successKeys)
	}
	if !idempotency.successResults[0].Balance.Equal(dec("7")) {
		t.Fatalf("expected stored balance 7, got %s", idempotency.successResults[0].Balance)
	}
	if len(idempotency.failureKeys) != 0 {
		t.Fatalf("expected MarkFailure not to be called, got %v", idempotency.failureKeys)
	}
	if len(publisher.published) != 1 || publisher.published[0].Type != protocols.EventVendSucceeded {
		t.Fatalf("expected one vend.succeeded event, got %+v", publisher.published)
	}
}

func TestVendWithoutIdempotencyKeySkipsGateway(t *testing.T) {
	uc, _, idempotency, _ := newUseCase(t, item.Inventory{selection.Soda: {Price: dec("1"), Quantity: dec("5")}}, "10")

	if _, err := uc.Vend(context.Background(), Input{Selection: selection.Soda, Quantity: dec("1")}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(idempotency.reservedKeys) != 0 || len(idempotency.successKeys) != 0 {
		t.Fatalf("expected idempotency gateway to be skipped")
	}
}

func TestVendInsufficientFunds(t *testing.T) {
	uc, shared, idempotency, publisher := newUseCase(t, item.Inventory{selection.Chips: {Price: dec("2.00"), Quantity: dec("1")}}, "1.0")

	out, err := uc.Vend(context.Background(), Input{Selection: selection.Chips, Quantity: dec("3"), IdempotencyKey: "key-2"})
	var fundsErr *machine.InsufficientFundsError
	if !errors.As(err, &fundsErr) || !fundsErr.Required.Equal(dec("5")) {
		t.Fatalf("expected 5 required, got %v", err)
	}
	if !out.Remaining.Equal(dec("-2")) {
		t.Fatalf("expected remaining -2, got %s", out.Remaining)
	}
	it, _ := shared.ItemForSelection(selection.Chips)
	if !it.Quantity.Equal(dec("-2")) {
		t.Fatalf("expected machine quantity -2, got %s", it.Quantity)
	}
	if len(idempotency.failureKeys) != 1 || idempotency.failureKeys[0] != "key-2" {
		t.Fatalf("expected MarkFailure called with key-2, got %v", idempotency.failureKeys)
	}
	if len(publisher.published) != 2 {
		t.Fatalf("expected failure and depletion events, got %+v", publisher.published)
	}
	if publisher.published[0].Type != protocols.EventVendFailed || publisher.published[0].Reason != "insufficient_funds" {
		t.Fatalf("unexpected first event: %+v", publisher.published[0])
	}
	if publisher.published[1].Type != protocols.EventStockDepleted {
		t.Fatalf("expected stock.depleted, got %+v", publisher.published[1])
	}
}

func TestVendInvalidSelection(t *testing.T) {
	uc, shared, _, publisher := newUseCase(t, item.Inventory{selection.Soda: {Price: dec("1"), Quantity: dec("1")}}, "10")

	_, err := uc.Vend(context.Background(), Input{Selection: selection.Gum, Quantity: dec("1")})
	if !errors.Is(err, machine.ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection, got %v", err)
	}
	if !shared.AmountDeposited().Equal(dec("10")) {
		t.Fatalf("expected balance untouched, got %s", shared.AmountDeposited())
	}
	if len(publisher.published) != 1 || publisher.published[0].Reason != "invalid_selection" {
		t.Fatalf("expected a single failure event, got %+v", publisher.published)
	}
}

func TestVendOutOfStockDoesNotReportDepletion(t *testing.T) {
	uc, _, _, publisher := newUseCase(t, item.Inventory{selection.Gum: {Price: dec("1"), Quantity: dec("0")}}, "10")

	_, err := uc.Vend(context.Background(), Input{Selection: selection.Gum, Quantity: dec("1")})
	if !errors.Is(err, machine.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	if len(publisher.published) != 1 || publisher.published[0].Reason != "out_of_stock" {
		t.Fatalf("expected a single failure event, got %+v", publisher.published)
	}
}

func TestVendLastUnitReportsDepletion(t *testing.T) {
	uc, _, _, publisher := newUseCase(t, item.Inventory{selection.Water: {Price: dec("1"), Quantity: dec("1")}}, "10")

	if _, err := uc.Vend(context.Background(), Input{Selection: selection.Water, Quantity: dec("1")}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(publisher.published) != 2 || publisher.published[1].Type != protocols.EventStockDepleted {
		t.Fatalf("expected vend.succeeded then stock.depleted, got %+v", publisher.published)
	}
}

func TestVendReplaysStoredResult(t *testing.T) {
	uc, shared, idempotency, publisher := newUseCase(t, item.Inventory{selection.Soda: {Price: dec("1"), Quantity: dec("5")}}, "10")
	idempotency.reserveResult = &protocols.VendIdempotencyResult{
		Success:    true,
		Selection:  "soda",
		Quantity:   dec("2"),
		TotalPrice: dec("2"),
		Remaining:  dec("3"),
		Balance:    dec("8"),
	}

	out, err := uc.Vend(context.Background(), Input{Selection: selection.Soda, Quantity: dec("2"), IdempotencyKey: "key-3"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !out.Replayed || !out.Balance.Equal(dec("8")) || !out.Remaining.Equal(dec("3")) || !out.Quantity.Equal(dec("2")) {
		t.Fatalf("expected stored output to be replayed, got %+v", out)
	}
	if !shared.AmountDeposited().Equal(dec("10")) {
		t.Fatalf("expected machine untouched on replay, got %s", shared.AmountDeposited())
	}
	if len(publisher.published) != 0 || len(idempotency.successKeys) != 0 {
		t.Fatalf("expected no events and no mark on replay")
	}
}

func TestVendIdempotencyKeyInProgress(t *testing.T) {
	uc, shared, idempotency, _ := newUseCase(t, item.Inventory{selection.Soda: {Price: dec("1"), Quantity: dec("5")}}, "10")
	idempotency.reserveErr = protocols.ErrIdempotencyKeyInProgress

	_, err := uc.Vend(context.Background(), Input{Selection: selection.Soda, Quantity: dec("1"), IdempotencyKey: "key-4"})
	if !errors.Is(err, protocols.ErrIdempotencyKeyInProgress) {
		t.Fatalf("expected ErrIdempotencyKeyInProgress, got %v", err)
	}
	if !shared.AmountDeposited().Equal(dec("10")) {
		t.Fatalf("expected machine untouched, got %s", shared.AmountDeposited())
	}
	if len(idempotency.failureKeys) != 0 {
		t.Fatalf("expected MarkFailure not to be called when key is processing")
	}
}

func TestVendPublishFailureDoesNotFailVend(t *testing.T) {
	uc, _, _, publisher := newUseCase(t, item.Inventory{selection.Soda: {Price: dec("1"), Quantity: dec("5")}}, "10")
	publisher.publishErr = errors.New("broker down")

	if _, err := uc.Vend(context.Background(), Input{Selection: selection.Soda, Quantity: dec("1")}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestVendRejectsKeyReusedForDifferentVend(t *testing.T) {
	uc, shared, idempotency, publisher := newUseCase(t, item.Inventory{
		selection.Soda:  {Price: dec("1.50"), Quantity: dec("5")},
		selection.Chips: {Price: dec("2.00"), Quantity: dec("5")},
	}, "10")
	idempotency.reserveResult = &protocols.VendIdempotencyResult{
		Success:    true,
		Selection:  "soda",
		Quantity:   dec("2"),
		TotalPrice: dec("3"),
		Remaining:  dec("3"),
		Balance:    dec("7"),
	}

	tests := []Input{
		{Selection: selection.Chips, Quantity: dec("2"), IdempotencyKey: "key-5"},
		{Selection: selection.Soda, Quantity: dec("1"), IdempotencyKey: "key-5"},
	}
	for _, input := range tests {
		_, err := uc.Vend(context.Background(), input)
		if !errors.Is(err, protocols.ErrIdempotencyKeyMismatch) {
			t.Fatalf("expected ErrIdempotencyKeyMismatch for %+v, got %v", input, err)
		}
	}
	if !shared.AmountDeposited().Equal(dec("10")) {
		t.Fatalf("expected machine untouched, got %s", shared.AmountDeposited())
	}
	if len(publisher.published) != 0 || len(idempotency.failureKeys) != 0 {
		t.Fatalf("expected no events and the stored result kept")
	}
}

type failingTransactor struct {
	err error
}

func (f *failingTransactor) Transact(fn func(machine.VendingMachine) error) error {
	return f.err
}

func TestVendTransactorFailure(t *testing.T) {
	transactErr := errors.New("machine unavailable")
	idempotency := &mockIdempotencyGateway{}
	publisher := &mockEventPublisher{}
	uc := NewVend(&failingTransactor{err: transactErr}, idempotency, publisher, zap.NewNop())

	_, err := uc.Vend(context.Background(), Input{Selection: selection.Soda, Quantity: dec("1"), IdempotencyKey: "key-6"})
	if !errors.Is(err, transactErr) {
		t.Fatalf("expected transactor error, got %v", err)
	}
	if len(idempotency.successKeys) != 0 || len(idempotency.failureKeys) != 1 {
		t.Fatalf("expected key released, got success=%v failure=%v", idempotency.successKeys, idempotency.failureKeys)
	}
	if len(publisher.published) != 0 {
		t.Fatalf("expected no events, got %+v", publisher.published)
	}
}
