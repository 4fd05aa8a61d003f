package item

import "github.com/giovaniif/vending-machine/domain/selection"

type Inventory map[selection.Selection]Item

func (inv Inventory) Clone() Inventory {
	cloned := make(Inventory, len(inv))
	for s, it := range inv {
		cloned[s] = it
	}
	return cloned
}
