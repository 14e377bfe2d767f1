package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/crumbsandco/crumbs-backend/pkg/enums"
)

// Filters describe the inputs supported by the admin orders list.
type Filters struct {
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	OrderMode     *enums.OrderMode
	Priority      *enums.OrderPriority
	DateFrom      *time.Time
	DateTo        *time.Time
	Query         string
}

// Summary is one row of the admin orders list.
type Summary struct {
	ID            uuid.UUID           `json:"id"`
	TrackingCode  string              `json:"tracking_code"`
	CustomerName  string              `json:"customer_name"`
	CustomerPhone string              `json:"customer_phone"`
	Status        enums.OrderStatus   `json:"status"`
	Priority      enums.OrderPriority `json:"priority"`
	OrderMode     enums.OrderMode     `json:"order_mode"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	TotalCents    int                 `json:"total_cents"`
	ItemCount     int                 `json:"item_count"`
	CreatedAt     time.Time           `json:"created_at"`
}

// List wraps the paginated summaries plus the next page cursor.
type List struct {
	Orders     []Summary `json:"orders"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// AssignmentInput carries the back-office routing fields an admin can set.
type AssignmentInput struct {
	DeliveryAgent *string
	Kitchen       *string
	Priority      *enums.OrderPriority
}
