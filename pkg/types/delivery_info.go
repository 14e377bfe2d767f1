package types

// DeliveryInfo carries the customer-facing delivery details collected at
// checkout. It is flattened onto the order row when the order is created.
type DeliveryInfo struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   string  `json:"phone"`
	Address string  `json:"address"`
	Notes   *string `json:"notes,omitempty"`
}
