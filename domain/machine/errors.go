package machine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSelection  = errors.New("invalid selection")
	ErrOutOfStock        = errors.New("out of stock")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCorruptInventory signals a programmer error while building a machine.
	// It is not one of the recoverable vend outcomes.
	ErrCorruptInventory = errors.New("corrupt inventory")
)

// InsufficientFundsError carries the amount still owed for a rejected vend.
type InsufficientFundsError struct {
	Required decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s: %s required", ErrInsufficientFunds, e.Required)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// IsVendError reports whether err is one of the expected vend outcomes.
func IsVendError(err error) bool {
	return errors.Is(err, ErrInvalidSelection) ||
		errors.Is(err, ErrOutOfStock) ||
		errors.Is(err, ErrInsufficientFunds)
}
