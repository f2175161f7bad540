package service

import (
	"fmt"

	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
)

// Statuses an order can be moved to by a plain status update, keyed by the
// current status. In Progress and Ready to Serve depend on the order and
// are handled in allowedNext.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPending:          {enum.OrderStatusConfirmed, enum.OrderStatusCanceled},
	enum.OrderStatusConfirmed:        {enum.OrderStatusInProgress, enum.OrderStatusCanceled},
	enum.OrderStatusReadyForDelivery: {enum.OrderStatusOutForDelivery},
	enum.OrderStatusOutForDelivery:   {enum.OrderStatusDelivered, enum.OrderStatusReturned},
	enum.OrderStatusDelivered:        {enum.OrderStatusCompleted},
	enum.OrderStatusReadyForPickup:   {enum.OrderStatusCompleted},
}

var knownStatuses = map[string]bool{
	enum.OrderStatusPending:          true,
	enum.OrderStatusConfirmed:        true,
	enum.OrderStatusInProgress:       true,
	enum.OrderStatusReadyToServe:     true,
	enum.OrderStatusReadyForDelivery: true,
	enum.OrderStatusReadyForPickup:   true,
	enum.OrderStatusOutForDelivery:   true,
	enum.OrderStatusDelivered:        true,
	enum.OrderStatusCompleted:        true,
	enum.OrderStatusCanceled:         true,
	enum.OrderStatusReturned:         true,
}

// IsKnownStatus reports whether s is part of the order status vocabulary.
func IsKnownStatus(s string) bool {
	return knownStatuses[s]
}

// IsActiveStatus reports whether an order in status s still belongs to its
// table. Completed, Canceled and Returned orders are history.
func IsActiveStatus(s string) bool {
	switch s {
	case enum.OrderStatusCompleted, enum.OrderStatusCanceled, enum.OrderStatusReturned:
		return false
	}
	return knownStatuses[s]
}

// isTableOrder reports whether o was sent from a table draft.
func isTableOrder(o database.KitchenOrder) bool {
	return o.Source == enum.OrderSourceWaiter && o.TableID.Valid
}

func allowedNext(o database.KitchenOrder) []string {
	switch o.Status {
	case enum.OrderStatusInProgress:
		switch {
		case o.Source == enum.OrderSourceWaiter:
			return []string{enum.OrderStatusReadyToServe}
		case o.IsDelivery:
			return []string{enum.OrderStatusReadyForDelivery}
		default:
			return []string{enum.OrderStatusReadyForPickup}
		}
	case enum.OrderStatusReadyToServe:
		if o.IsDelivery {
			return []string{enum.OrderStatusDelivered, enum.OrderStatusReadyForDelivery, enum.OrderStatusReadyForPickup}
		}
		return []string{enum.OrderStatusDelivered}
	}
	return allowedTransitions[o.Status]
}

// NextStatuses lists the statuses o can move to from where it is now, in the
// order a client should offer them. Completed is left out for table orders
// since only closing the bill completes them.
func NextStatuses(o database.KitchenOrder) []string {
	next := allowedNext(o)
	out := make([]string, 0, len(next))
	for _, s := range next {
		if s == enum.OrderStatusCompleted && isTableOrder(o) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// validateStatusTransition checks that o may move to next.
func validateStatusTransition(o database.KitchenOrder, next string) error {
	for _, s := range allowedNext(o) {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, o.Status, next)
}

// cancelTarget is where a cancel request takes an order in status s.
func cancelTarget(s string) (string, error) {
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusConfirmed:
		return enum.OrderStatusCanceled, nil
	case enum.OrderStatusOutForDelivery:
		return enum.OrderStatusReturned, nil
	}
	return "", fmt.Errorf("%w: order is %s", ErrNotCancelable, s)
}
