package enum

// ── Group A: State machines (CHECK constrained in DB) ──

// Kitchen order statuses. The strings are shared with the online checkout
// path so reports never special-case an order's origin.
const (
	OrderStatusPending          = "Pending"
	OrderStatusConfirmed        = "Confirmed"
	OrderStatusInProgress       = "In Progress"
	OrderStatusReadyToServe     = "Ready to Serve"
	OrderStatusReadyForDelivery = "Ready for Delivery"
	OrderStatusReadyForPickup   = "Ready for Pickup"
	OrderStatusOutForDelivery   = "Out for Delivery"
	OrderStatusDelivered        = "Delivered"
	OrderStatusCompleted        = "Completed"
	OrderStatusCanceled         = "Canceled"
	OrderStatusReturned         = "Returned"
)

const (
	BillStatusPending   = "Pending"
	BillStatusCompleted = "Completed"
	BillStatusCanceled  = "Canceled"
)

// ── Group B: Derived (never persisted) ──

const (
	TableStatusFree         = "free"
	TableStatusActive       = "active"
	TableStatusUnsent       = "unsent"
	TableStatusPending      = "pending"
	TableStatusReadyToServe = "ready-to-serve"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	StaffRoleOwner   = "OWNER"
	StaffRoleWaiter  = "WAITER"
	StaffRoleKitchen = "KITCHEN"
	StaffRoleDriver  = "DRIVER"
)

// IsStaffRole reports whether role is one the staff table accepts.
func IsStaffRole(role string) bool {
	switch role {
	case StaffRoleOwner, StaffRoleWaiter, StaffRoleKitchen, StaffRoleDriver:
		return true
	}
	return false
}

const (
	OrderSourceWaiter         = "waiter"
	OrderSourceOnline         = "online"
	OrderSourceWaiterBill     = "waiter-bill"
	OrderSourceOnlineRecovery = "online-recovery"
)

// ── Group D: Configurable labels (no DB constraint) ──

const (
	PaymentMethodTogether  = "together"
	PaymentMethodSeparated = "separated"
	PaymentMethodSplit     = "split"
)

const (
	EventTableUpdated = "table.updated"
	EventOrderUpdated = "order.updated"
	EventBillClosed   = "bill.closed"
)
