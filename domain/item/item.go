package item

import "github.com/shopspring/decimal"

// Item is the price and stock record for one selection.
type Item struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

func (i *Item) RemoveStock(quantity decimal.Decimal) {
	i.Quantity = i.Quantity.Sub(quantity)
}

// HasAnyStock reports whether at least one unit is on hand. Vending only
// requires this, not that the requested quantity is covered.
func (i Item) HasAnyStock() bool {
	return i.Quantity.IsPositive()
}

func (i Item) HasSufficientStock(quantity decimal.Decimal) bool {
	return i.Quantity.GreaterThanOrEqual(quantity)
}

func (i Item) TotalPrice(quantity decimal.Decimal) decimal.Decimal {
	return i.Price.Mul(quantity)
}
