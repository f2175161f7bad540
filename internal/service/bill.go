package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
	"github.com/mesa-pos/api/internal/logging"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PrepareBillRequest asks for the bill of a table. An empty PaymentMethod
// uses the one recorded on the draft.
type PrepareBillRequest struct {
	TenantID      uuid.UUID
	TableID       int32
	PaymentMethod string
	CreatedBy     uuid.UUID
}

// BillPresentation shows one bill three ways. None of it is stored.
type BillPresentation struct {
	Total string         `json:"total"`
	Seats []SeatSubtotal `json:"seats"`
	Split *SplitShare    `json:"split,omitempty"`
}

type SeatSubtotal struct {
	Seat     int32               `json:"seat"`
	Items    []database.BillLine `json:"items"`
	Subtotal string              `json:"subtotal"`
}

// SplitShare is the total divided by Ways, truncated to cents. Remainder is
// the cents left over so that Ways*PerPerson+Remainder equals the total.
type SplitShare struct {
	Ways      int    `json:"ways"`
	PerPerson string `json:"per_person"`
	Remainder string `json:"remainder"`
}

func validBillMethod(m string) bool {
	switch m {
	case enum.PaymentMethodTogether, enum.PaymentMethodSeparated, enum.PaymentMethodSplit:
		return true
	}
	return false
}

// PrepareBill puts a table into payment and records a pending bill holding
// every line of its active orders. The table must have no unsent items and
// every active order must have been delivered.
func (s *TableService) PrepareBill(ctx context.Context, req PrepareBillRequest) (*BillView, error) {
	if req.TableID <= 0 {
		return nil, ErrInvalidTable
	}
	if req.PaymentMethod != "" && !validBillMethod(req.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}

	bill, err := s.prepareBillTx(ctx, req)
	if err != nil {
		return nil, err
	}
	s.metrics.BillPrepared()
	s.RefreshTable(ctx, req.TenantID, req.TableID)

	view := toBillView(bill)
	return &view, nil
}

func (s *TableService) prepareBillTx(ctx context.Context, req PrepareBillRequest) (database.Bill, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Bill{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Concurrent requests for the same table queue on the draft row, so only
	// one of them sees it out of payment.
	draft, err := store.LockDraft(ctx, database.GetDraftParams{TenantID: req.TenantID, TableID: req.TableID})
	if err != nil {
		return database.Bill{}, notFound(err, ErrDraftNotFound)
	}
	if draft.IsInPayment {
		return database.Bill{}, ErrTableInPayment
	}
	for _, seat := range draft.Seats {
		for _, item := range seat.Items {
			if !item.Submitted {
				return database.Bill{}, ErrUnsentItemsExist
			}
		}
	}

	orders, err := store.ListActiveTableOrders(ctx, database.ListActiveTableOrdersParams{
		TenantID: req.TenantID,
		TableID:  req.TableID,
	})
	if err != nil {
		return database.Bill{}, fmt.Errorf("list table orders: %w", err)
	}
	if len(orders) == 0 {
		return database.Bill{}, ErrNothingToBill
	}

	var lines []database.BillLine
	total := decimal.Zero
	for _, o := range orders {
		if o.Status != enum.OrderStatusDelivered {
			return database.Bill{}, fmt.Errorf("%w: order %s is %s", ErrUndeliveredOrdersExist, o.ID, o.Status)
		}
		for _, line := range o.Items {
			lines = append(lines, database.BillLine{OrderLine: line, OrderID: o.ID})
		}
		total = total.Add(numericToDecimal(o.TotalAmount))
	}

	method := req.PaymentMethod
	if method == "" {
		method = draft.PaymentMethod
	}

	// A pending bill left behind by a failed close-out is superseded.
	if _, err := store.CancelPendingTableBills(ctx, database.CancelPendingTableBillsParams{
		TenantID: req.TenantID,
		TableID:  req.TableID,
	}); err != nil {
		return database.Bill{}, fmt.Errorf("cancel stale bills: %w", err)
	}

	if _, err := store.SetDraftInPayment(ctx, database.SetDraftInPaymentParams{
		TenantID:    req.TenantID,
		TableID:     req.TableID,
		IsInPayment: true,
	}); err != nil {
		return database.Bill{}, fmt.Errorf("mark table in payment: %w", err)
	}

	bill, err := store.CreateBill(ctx, database.CreateBillParams{
		TenantID:      req.TenantID,
		TableID:       req.TableID,
		Items:         lines,
		TotalAmount:   decimalToNumeric(total),
		PaymentMethod: method,
		Status:        enum.BillStatusPending,
		CreatedBy:     optionalUUID(req.CreatedBy),
	})
	if err != nil {
		return database.Bill{}, fmt.Errorf("create bill: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Bill{}, fmt.Errorf("commit tx: %w", err)
	}
	return bill, nil
}

// PresentBill renders a bill as a single total, per-seat subtotals and, when
// splitWays > 0, an even split. It reads only the stored bill.
func PresentBill(b database.Bill, splitWays int) (*BillPresentation, error) {
	if splitWays < 0 {
		return nil, ErrInvalidSplit
	}
	if splitWays == 0 && b.PaymentMethod == enum.PaymentMethodSplit {
		splitWays = 1
	}

	total := numericToDecimal(b.TotalAmount)
	p := &BillPresentation{Total: total.StringFixed(2), Seats: []SeatSubtotal{}}

	bySeat := make(map[int32][]database.BillLine)
	for _, line := range b.Items {
		bySeat[line.Seat] = append(bySeat[line.Seat], line)
	}
	seats := make([]int32, 0, len(bySeat))
	for id := range bySeat {
		seats = append(seats, id)
	}
	slices.Sort(seats)
	for _, id := range seats {
		sub := decimal.Zero
		for _, line := range bySeat[id] {
			sub = sub.Add(line.Price.Mul(decimal.NewFromInt32(line.Quantity)))
		}
		p.Seats = append(p.Seats, SeatSubtotal{Seat: id, Items: bySeat[id], Subtotal: sub.StringFixed(2)})
	}

	if splitWays > 0 {
		ways := decimal.NewFromInt(int64(splitWays))
		per := total.Div(ways).Truncate(2)
		p.Split = &SplitShare{
			Ways:      splitWays,
			PerPerson: per.StringFixed(2),
			Remainder: total.Sub(per.Mul(ways)).StringFixed(2),
		}
	}
	return p, nil
}

// CloseBill settles a pending bill: the bill is completed, every active
// order of the table is completed and the draft is deleted, all in one
// transaction. If that transaction fails the table is released from payment
// so it can be billed again.
func (s *TableService) CloseBill(ctx context.Context, tenantID, billID uuid.UUID, tableID int32) (*BillView, error) {
	bill, err := s.store.GetBill(ctx, database.GetBillParams{ID: billID, TenantID: tenantID})
	if err != nil {
		return nil, notFound(err, ErrBillNotFound)
	}
	if bill.TableID != tableID {
		return nil, ErrBillTableMismatch
	}
	if bill.Status != enum.BillStatusPending {
		return nil, ErrBillNotPending
	}

	closed, completed, err := s.closeBillTx(ctx, bill)
	if err != nil {
		if errors.Is(err, ErrBillNotPending) || errors.Is(err, ErrNotInPayment) {
			return nil, err
		}
		s.metrics.CloseOut("failed")
		if relErr := s.releasePayment(ctx, tenantID, tableID, err); relErr != nil {
			return nil, errors.Join(fmt.Errorf("%w: %w", ErrCloseOutFailed, err), relErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrCloseOutFailed, err)
	}
	s.metrics.CloseOut("ok")

	view := toBillView(closed)
	s.notifier.BillClosed(ctx, view)
	for _, o := range completed {
		o.Status = enum.OrderStatusCompleted
		s.notifier.OrderUpdated(ctx, toOrderView(o))
	}
	s.notifier.TableUpdated(ctx, buildTableView(tenantID, tableID, nil, nil))
	return &view, nil
}

func (s *TableService) closeBillTx(ctx context.Context, bill database.Bill) (database.Bill, []database.KitchenOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Bill{}, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Only the bill that put the table into payment may settle it. A pending
	// bill left over from a released checkout must not complete orders placed
	// after it.
	draft, err := store.LockDraft(ctx, database.GetDraftParams{TenantID: bill.TenantID, TableID: bill.TableID})
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return database.Bill{}, nil, fmt.Errorf("lock draft: %w", err)
	}
	if err != nil || !draft.IsInPayment {
		return database.Bill{}, nil, ErrNotInPayment
	}

	closed, err := store.UpdateBillStatus(ctx, database.UpdateBillStatusParams{
		ID:         bill.ID,
		TenantID:   bill.TenantID,
		Status:     enum.BillStatusCompleted,
		FromStatus: enum.BillStatusPending,
	})
	if err != nil {
		return database.Bill{}, nil, notFound(err, ErrBillNotPending)
	}

	orders, err := store.ListActiveTableOrders(ctx, database.ListActiveTableOrdersParams{
		TenantID: bill.TenantID,
		TableID:  bill.TableID,
	})
	if err != nil {
		return database.Bill{}, nil, fmt.Errorf("list table orders: %w", err)
	}
	if _, err := store.CompleteActiveTableOrders(ctx, database.CompleteActiveTableOrdersParams{
		TenantID: bill.TenantID,
		TableID:  bill.TableID,
	}); err != nil {
		return database.Bill{}, nil, fmt.Errorf("complete table orders: %w", err)
	}

	if _, err := store.DeleteDraft(ctx, database.DeleteDraftParams{
		TenantID: bill.TenantID,
		TableID:  bill.TableID,
	}); err != nil {
		return database.Bill{}, nil, fmt.Errorf("delete draft: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Bill{}, nil, fmt.Errorf("commit tx: %w", err)
	}
	return closed, orders, nil
}

// releasePayment clears the in-payment flag after a failed close-out. It runs
// outside the failed transaction and survives cancellation of ctx.
func (s *TableService) releasePayment(ctx context.Context, tenantID uuid.UUID, tableID int32, cause error) error {
	ctx = context.WithoutCancel(ctx)
	entry := logging.FromContext(ctx).WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"table_id":  tableID,
	})
	entry.WithError(cause).Warn("close-out failed, releasing table from payment")

	_, err := s.store.SetDraftInPayment(ctx, database.SetDraftInPaymentParams{
		TenantID:    tenantID,
		TableID:     tableID,
		IsInPayment: false,
	})
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		entry.WithError(err).Error("release table from payment")
		return fmt.Errorf("release table from payment: %w", err)
	}
	s.metrics.Compensation()
	s.RefreshTable(ctx, tenantID, tableID)
	return nil
}

// AbortPayment takes a table out of payment without settling: pending bills
// are canceled and the draft becomes editable again.
func (s *TableService) AbortPayment(ctx context.Context, tenantID uuid.UUID, tableID int32) (*TableView, error) {
	if tableID <= 0 {
		return nil, ErrInvalidTable
	}

	draft, err := s.abortPaymentTx(ctx, tenantID, tableID)
	if err != nil {
		return nil, err
	}
	view, err := s.viewOf(ctx, s.store, tenantID, tableID, &draft)
	if err != nil {
		return nil, err
	}
	s.notifier.TableUpdated(ctx, *view)
	return view, nil
}

func (s *TableService) abortPaymentTx(ctx context.Context, tenantID uuid.UUID, tableID int32) (database.Draft, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Draft{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	draft, err := store.LockDraft(ctx, database.GetDraftParams{TenantID: tenantID, TableID: tableID})
	if err != nil {
		return database.Draft{}, notFound(err, ErrDraftNotFound)
	}
	if !draft.IsInPayment {
		return database.Draft{}, ErrNotInPayment
	}

	if _, err := store.CancelPendingTableBills(ctx, database.CancelPendingTableBillsParams{
		TenantID: tenantID,
		TableID:  tableID,
	}); err != nil {
		return database.Draft{}, fmt.Errorf("cancel bills: %w", err)
	}
	released, err := store.SetDraftInPayment(ctx, database.SetDraftInPaymentParams{
		TenantID:    tenantID,
		TableID:     tableID,
		IsInPayment: false,
	})
	if err != nil {
		return database.Draft{}, fmt.Errorf("release table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Draft{}, fmt.Errorf("commit tx: %w", err)
	}
	return released, nil
}

// GetBill returns a bill with its presentation. splitWays follows PresentBill.
func (s *TableService) GetBill(ctx context.Context, tenantID, billID uuid.UUID, splitWays int) (*BillView, *BillPresentation, error) {
	bill, err := s.store.GetBill(ctx, database.GetBillParams{ID: billID, TenantID: tenantID})
	if err != nil {
		return nil, nil, notFound(err, ErrBillNotFound)
	}
	p, err := PresentBill(bill, splitWays)
	if err != nil {
		return nil, nil, err
	}
	view := toBillView(bill)
	return &view, p, nil
}

func (s *TableService) ListBills(ctx context.Context, arg database.ListBillsParams) ([]BillView, error) {
	bills, err := s.store.ListBills(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	out := make([]BillView, 0, len(bills))
	for _, b := range bills {
		out = append(out, toBillView(b))
	}
	return out, nil
}
