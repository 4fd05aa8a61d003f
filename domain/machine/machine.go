package machine

import (
	"fmt"

	"github.com/giovaniif/vending-machine/domain/item"
	"github.com/giovaniif/vending-machine/domain/selection"
	"github.com/shopspring/decimal"
)

var DefaultInitialBalance = decimal.NewFromInt(10)

// VendingMachine is the capability set callers depend on. *Machine is the
// only real implementation; Synchronized decorates it for shared use.
type VendingMachine interface {
	Selections() []selection.Selection
	Inventory() item.Inventory
	AmountDeposited() decimal.Decimal
	ItemForSelection(s selection.Selection) (item.Item, bool)
	Deposit(amount decimal.Decimal)
	Vend(s selection.Selection, quantity decimal.Decimal) error
}

// Machine owns an inventory and the deposited balance. It does no locking.
type Machine struct {
	inventory       item.Inventory
	amountDeposited decimal.Decimal
}

type Option func(*Machine)

func WithInitialBalance(amount decimal.Decimal) Option {
	return func(m *Machine) {
		m.amountDeposited = amount
	}
}

func New(inventory item.Inventory, opts ...Option) (*Machine, error) {
	if inventory == nil {
		return nil, fmt.Errorf("%w: nil inventory", ErrCorruptInventory)
	}
	for s, it := range inventory {
		if !s.IsValid() {
			return nil, fmt.Errorf("%w: unknown selection %q", ErrCorruptInventory, s)
		}
		if it.Price.IsNegative() || it.Quantity.IsNegative() {
			return nil, fmt.Errorf("%w: negative price or quantity for %s", ErrCorruptInventory, s)
		}
	}

	m := &Machine{
		inventory:       inventory.Clone(),
		amountDeposited: DefaultInitialBalance,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Machine) Selections() []selection.Selection {
	return selection.All()
}

func (m *Machine) Inventory() item.Inventory {
	return m.inventory.Clone()
}

func (m *Machine) AmountDeposited() decimal.Decimal {
	return m.amountDeposited
}

func (m *Machine) ItemForSelection(s selection.Selection) (item.Item, bool) {
	it, ok := m.inventory[s]
	return it, ok
}

// Deposit adds amount to the balance as given; sign is not checked.
func (m *Machine) Deposit(amount decimal.Decimal) {
	m.amountDeposited = m.amountDeposited.Add(amount)
}

func (m *Machine) Vend(s selection.Selection, quantity decimal.Decimal) error {
	p, err := m.plan(s, quantity)
	if err != nil {
		return err
	}
	return m.apply(p)
}

type vendPlan struct {
	selection selection.Selection
	item      item.Item
	quantity  decimal.Decimal
}

// plan runs the checks that need no mutation: the selection must be stocked
// and have at least one unit on hand.
func (m *Machine) plan(s selection.Selection, quantity decimal.Decimal) (vendPlan, error) {
	it, ok := m.inventory[s]
	if !ok {
		return vendPlan{}, ErrInvalidSelection
	}
	if !it.HasAnyStock() {
		return vendPlan{}, ErrOutOfStock
	}
	return vendPlan{selection: s, item: it, quantity: quantity}, nil
}

// apply removes stock before checking funds and keeps the removal when funds
// fall short.
// TODO: move the funds check into plan once the product owner signs off on
// rolling back stock for underfunded vends.
func (m *Machine) apply(p vendPlan) error {
	it := p.item
	it.RemoveStock(p.quantity)
	m.inventory[p.selection] = it

	totalPrice := it.TotalPrice(p.quantity)
	if m.amountDeposited.LessThan(totalPrice) {
		return &InsufficientFundsError{Required: totalPrice.Sub(m.amountDeposited)}
	}
	m.amountDeposited = m.amountDeposited.Sub(totalPrice)
	return nil
}
