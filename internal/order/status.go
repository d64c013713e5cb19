package order

import (
	"fmt"
	"time"

	"github.com/safar/tackle-shop/internal/models"
)

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:    {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing: {models.OrderStatusCompleted, models.OrderStatusCancelled},
}

var fulfillmentRoles = map[models.Role]bool{
	models.RoleStaff:    true,
	models.RoleSupplier: true,
	models.RoleAdmin:    true,
}

// CanTransition reports whether role may move an order from one status to another.
func CanTransition(from, to models.OrderStatus, role models.Role) bool {
	if !fulfillmentRoles[role] {
		return false
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses role may move an order to from its current one.
func NextStatuses(from models.OrderStatus, role models.Role) []models.OrderStatus {
	if !fulfillmentRoles[role] {
		return nil
	}
	return append([]models.OrderStatus(nil), transitions[from]...)
}

// Transition returns a copy of o with the new status. o itself is never
// modified, so a rejected transition leaves the caller's order intact.
func Transition(o *models.Order, to models.OrderStatus, role models.Role, at time.Time) (*models.Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrIllegalTransition, to)
	}
	if !CanTransition(o.Status, to, role) {
		return nil, fmt.Errorf("%w: %s -> %s by %s on order %s",
			models.ErrIllegalTransition, o.Status, to, role, o.OrderNumber)
	}

	next := o.Clone()
	next.Status = to
	next.UpdatedAt = at.UTC()
	next.Version = o.Version + 1
	return next, nil
}

// Customer-facing labels. The storefront only distinguishes shipped from
// not-yet-shipped; cancelled orders keep their own label.
const (
	LabelUnshipped = "unshipped"
	LabelShipped   = "shipped"
	LabelCancelled = "cancelled"
)

// CustomerLabel projects the internal status onto the storefront vocabulary.
func CustomerLabel(s models.OrderStatus) string {
	switch s {
	case models.OrderStatusPending, models.OrderStatusProcessing:
		return LabelUnshipped
	case models.OrderStatusCompleted:
		return LabelShipped
	case models.OrderStatusCancelled:
		return LabelCancelled
	default:
		return string(s)
	}
}
