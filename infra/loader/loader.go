// Package loader builds the inventory a machine starts with. Every error it
// returns is fatal to startup: a machine is never built from partial data.
package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/giovaniif/vending-machine/domain/item"
	"github.com/giovaniif/vending-machine/domain/selection"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidResource = errors.New("inventory resource not found")
	ErrConversion      = errors.New("inventory conversion failed")
	ErrInvalidKey      = errors.New("invalid inventory key")
)

type Source interface {
	Load(ctx context.Context) (item.Inventory, error)
}

// FromDictionary converts a decoded selection -> {price, quantity} mapping.
func FromDictionary(dictionary map[string]interface{}) (item.Inventory, error) {
	if dictionary == nil {
		return nil, fmt.Errorf("%w: empty document", ErrConversion)
	}

	inventory := make(item.Inventory, len(dictionary))
	for key, value := range dictionary {
		entry, ok := value.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: entry %q is not a dictionary", ErrConversion, key)
		}
		price, ok := toDecimal(entry["price"])
		if !ok {
			return nil, fmt.Errorf("%w: entry %q has no numeric price", ErrConversion, key)
		}
		quantity, ok := toDecimal(entry["quantity"])
		if !ok {
			return nil, fmt.Errorf("%w: entry %q has no numeric quantity", ErrConversion, key)
		}

		s, err := parseKey(key)
		if err != nil {
			return nil, err
		}
		inventory[s] = item.Item{Price: price, Quantity: quantity}
	}
	return inventory, nil
}

func parseKey(key string) (selection.Selection, error) {
	s, err := selection.Parse(key)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return s, nil
}

func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case uint64:
		return decimal.NewFromUint64(n), true
	default:
		return decimal.Decimal{}, false
	}
}
