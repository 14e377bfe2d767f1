package enums

import "fmt"

// OrderMode is the global switch controlling whether checkout enforces stock
// counters or accepts every order as a preorder.
type OrderMode string

const (
	OrderModeStockBased OrderMode = "stock_based"
	OrderModePreorder   OrderMode = "preorder"
)

var validOrderModes = []OrderMode{
	OrderModeStockBased,
	OrderModePreorder,
}

// String implements fmt.Stringer.
func (m OrderMode) String() string {
	return string(m)
}

// IsValid reports whether the value is a known OrderMode.
func (m OrderMode) IsValid() bool {
	for _, candidate := range validOrderModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseOrderMode converts raw input into an OrderMode.
func ParseOrderMode(value string) (OrderMode, error) {
	for _, candidate := range validOrderModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order mode %q", value)
}
