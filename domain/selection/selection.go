package selection

import (
	"errors"
	"fmt"
)

var ErrUnknown = errors.New("unknown selection")

// Selection identifies a product kind sold by the machine.
type Selection string

const (
	Soda        Selection = "soda"
	DietSoda    Selection = "dietSoda"
	Chips       Selection = "chips"
	Cookie      Selection = "cookie"
	Sandwich    Selection = "sandwich"
	Wrap        Selection = "wrap"
	CandyBar    Selection = "candyBar"
	PopTart     Selection = "popTart"
	Water       Selection = "water"
	FruitJuice  Selection = "fruitJuice"
	SportsDrink Selection = "sportsDrink"
	Gum         Selection = "gum"
)

var canonical = [...]Selection{
	Soda,
	DietSoda,
	Chips,
	Cookie,
	Sandwich,
	Wrap,
	CandyBar,
	PopTart,
	Water,
	FruitJuice,
	SportsDrink,
	Gum,
}

// All returns every selection in display order. The slice is a copy.
func All() []Selection {
	all := make([]Selection, len(canonical))
	copy(all, canonical[:])
	return all
}

func Parse(raw string) (Selection, error) {
	s := Selection(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknown, raw)
	}
	return s, nil
}

func (s Selection) IsValid() bool {
	for _, known := range canonical {
		if known == s {
			return true
		}
	}
	return false
}

func (s Selection) String() string {
	return string(s)
}
