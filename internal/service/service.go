package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Errors returned by the table, order and bill services.
var (
	ErrInvalidTable         = errors.New("table id must be > 0")
	ErrDraftNotFound        = errors.New("table has no open draft")
	ErrSeatNotFound         = errors.New("seat not found")
	ErrItemNotFound         = errors.New("item not found")
	ErrItemSubmitted        = errors.New("item was already sent to the kitchen")
	ErrTableInPayment       = errors.New("table is in payment")
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")
	ErrNothingToSubmit      = errors.New("no unsent items")

	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrDriverRequired      = errors.New("out for delivery requires an assigned driver")
	ErrStatusConflict      = errors.New("order status changed, please retry")
	ErrNotCancelable       = errors.New("order can no longer be canceled")
	ErrCompletedByCloseOut = errors.New("table orders are completed by closing the bill")
	ErrInvalidSource       = errors.New("invalid source")
	ErrMissingCheckout     = errors.New("checkout_session_id is required")
	ErrEmptyItems          = errors.New("items are required")

	ErrUnsentItemsExist       = errors.New("table has unsent items")
	ErrUndeliveredOrdersExist = errors.New("table has orders that were not delivered")
	ErrNothingToBill          = errors.New("table has no active orders")
	ErrBillNotFound           = errors.New("bill not found")
	ErrBillNotPending         = errors.New("bill is not pending")
	ErrBillTableMismatch      = errors.New("bill belongs to another table")
	ErrInvalidSplit           = errors.New("split must be at least 1 way")
	ErrCloseOutFailed         = errors.New("close-out failed")
	ErrNotInPayment           = errors.New("table is not in payment")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Notifier receives snapshots after a successful write. Implementations must
// not block; a slow subscriber never fails the operation that produced the
// snapshot.
type Notifier interface {
	TableUpdated(ctx context.Context, view TableView)
	OrderUpdated(ctx context.Context, order OrderView)
	BillClosed(ctx context.Context, bill BillView)
}

type nopNotifier struct{}

func (nopNotifier) TableUpdated(context.Context, TableView) {}
func (nopNotifier) OrderUpdated(context.Context, OrderView) {}
func (nopNotifier) BillClosed(context.Context, BillView)    {}

func orNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

func textOrNil(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func optionalText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func optionalUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

// notFound maps pgx.ErrNoRows to target and leaves other errors untouched.
func notFound(err, target error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return target
	}
	return err
}

// draftKey is the identity clients use for a table document.
func draftKey(tenantID uuid.UUID, tableID int32) string {
	return tenantID.String() + "_" + strconv.Itoa(int(tableID))
}
