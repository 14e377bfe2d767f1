package enums

import "fmt"

// StockChangeReason labels every entry in the stock history ledger.
type StockChangeReason string

const (
	StockReasonOrderPlaced     StockChangeReason = "order placed"
	StockReasonOrderCanceled   StockChangeReason = "order canceled"
	StockReasonAdminAdjustment StockChangeReason = "admin adjustment"
	StockReasonInitialStock    StockChangeReason = "initial stock"
)

var validStockChangeReasons = []StockChangeReason{
	StockReasonOrderPlaced,
	StockReasonOrderCanceled,
	StockReasonAdminAdjustment,
	StockReasonInitialStock,
}

// String implements fmt.Stringer.
func (r StockChangeReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known StockChangeReason.
func (r StockChangeReason) IsValid() bool {
	for _, candidate := range validStockChangeReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseStockChangeReason converts raw input into a StockChangeReason.
func ParseStockChangeReason(value string) (StockChangeReason, error) {
	for _, candidate := range validStockChangeReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock change reason %q", value)
}
