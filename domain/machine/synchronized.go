package machine

import (
	"sync"

	"github.com/giovaniif/vending-machine/domain/item"
	"github.com/giovaniif/vending-machine/domain/selection"
	"github.com/shopspring/decimal"
)

// Transactor runs fn with exclusive access to a machine.
type Transactor interface {
	Transact(fn func(VendingMachine) error) error
}

// Synchronized serializes every call to the wrapped machine so it can be
// shared between request handlers.
type Synchronized struct {
	mutex   sync.Mutex
	machine VendingMachine
}

func NewSynchronized(machine VendingMachine) *Synchronized {
	return &Synchronized{machine: machine}
}

func (s *Synchronized) Transact(fn func(VendingMachine) error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return fn(s.machine)
}

func (s *Synchronized) Selections() []selection.Selection {
	return s.machine.Selections()
}

func (s *Synchronized) Inventory() item.Inventory {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.machine.Inventory()
}

func (s *Synchronized) AmountDeposited() decimal.Decimal {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.machine.AmountDeposited()
}

func (s *Synchronized) ItemForSelection(sel selection.Selection) (item.Item, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.machine.ItemForSelection(sel)
}

func (s *Synchronized) Deposit(amount decimal.Decimal) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.machine.Deposit(amount)
}

func (s *Synchronized) Vend(sel selection.Selection, quantity decimal.Decimal) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.machine.Vend(sel, quantity)
}
