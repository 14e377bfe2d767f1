package notifications

import (
	"context"
	"fmt"

	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
	"github.com/crumbsandco/crumbs-backend/pkg/logger"
	"github.com/crumbsandco/crumbs-backend/pkg/sms"
)

// Notifier sends customer-facing SMS updates. Every send is best effort:
// a gateway failure is logged and swallowed so it can never fail an order
// operation.
type Notifier struct {
	sender sms.Sender
	logger *logger.Logger
}

// NewNotifier builds the SMS notifier.
func NewNotifier(sender sms.Sender, logg *logger.Logger) (*Notifier, error) {
	if sender == nil {
		return nil, fmt.Errorf("sms sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Notifier{sender: sender, logger: logg}, nil
}

// OrderPlaced confirms a freshly committed order.
func (n *Notifier) OrderPlaced(ctx context.Context, order *models.Order) {
	message := fmt.Sprintf(
		"Thanks for your order! Track it with code %s. Total: %s.",
		order.TrackingCode, formatCents(order.TotalCents),
	)
	n.send(ctx, order, message)
}

// OrderStatusChanged notifies the customer about status milestones.
// Intermediate kitchen states stay internal.
func (n *Notifier) OrderStatusChanged(ctx context.Context, order *models.Order) {
	var message string
	switch order.Status {
	case enums.OrderStatusOutForDelivery:
		message = fmt.Sprintf("Your order %s is out for delivery!", order.TrackingCode)
	case enums.OrderStatusDelivered:
		message = fmt.Sprintf("Your order %s has been delivered. Enjoy!", order.TrackingCode)
	case enums.OrderStatusCanceled:
		message = fmt.Sprintf("Your order %s has been canceled.", order.TrackingCode)
	default:
		return
	}
	n.send(ctx, order, message)
}

func (n *Notifier) send(ctx context.Context, order *models.Order, message string) {
	if err := n.sender.Send(ctx, order.CustomerPhone, message); err != nil {
		n.logger.Error(n.logger.WithOrderID(ctx, order.ID.String()), "sending order sms", err)
	}
}

func formatCents(cents int) string {
	return fmt.Sprintf("EGP %d.%02d", cents/100, cents%100)
}
