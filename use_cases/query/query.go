package query

import (
	"errors"
	"fmt"

	"github.com/giovaniif/vending-machine/domain/item"
	"github.com/giovaniif/vending-machine/domain/selection"
	"github.com/shopspring/decimal"
)

// ErrUnknownSelection is returned by Item when the selection is not stocked.
var ErrUnknownSelection = errors.New("selection not stocked")

type Reader interface {
	Selections() []selection.Selection
	Inventory() item.Inventory
	AmountDeposited() decimal.Decimal
	ItemForSelection(s selection.Selection) (item.Item, bool)
}

type Query struct {
	machine Reader
}

func NewQuery(m Reader) *Query {
	return &Query{machine: m}
}

type ItemView struct {
	Selection selection.Selection
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Stocked   bool
	Available bool
}

func (q *Query) Selections() []selection.Selection {
	return q.machine.Selections()
}

// Items lists every selection in canonical order, read from a single
// inventory snapshot. Selections the machine does not carry come back with
// Stocked false.
func (q *Query) Items() []ItemView {
	inv := q.machine.Inventory()
	selections := q.machine.Selections()
	views := make([]ItemView, 0, len(selections))
	for _, s := range selections {
		it, ok := inv[s]
		if !ok {
			views = append(views, ItemView{Selection: s})
			continue
		}
		views = append(views, view(s, it))
	}
	return views
}

func (q *Query) Item(s selection.Selection) (ItemView, error) {
	it, ok := q.machine.ItemForSelection(s)
	if !ok {
		return ItemView{}, fmt.Errorf("%w: %s", ErrUnknownSelection, s)
	}
	return view(s, it), nil
}

func (q *Query) Balance() decimal.Decimal {
	return q.machine.AmountDeposited()
}

func view(s selection.Selection, it item.Item) ItemView {
	return ItemView{
		Selection: s,
		Price:     it.Price,
		Quantity:  it.Quantity,
		Stocked:   true,
		Available: it.HasAnyStock(),
	}
}
