package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/logging"
	"github.com/mesa-pos/api/internal/metrics"
)

// TableStore defines the DB methods needed to run a table from first item to
// close-out. Satisfied by *database.Queries (and its WithTx variant).
type TableStore interface {
	GetDraft(ctx context.Context, arg database.GetDraftParams) (database.Draft, error)
	LockDraft(ctx context.Context, arg database.GetDraftParams) (database.Draft, error)
	ListDrafts(ctx context.Context, tenantID uuid.UUID) ([]database.Draft, error)
	UpsertDraft(ctx context.Context, arg database.UpsertDraftParams) (database.Draft, error)
	SetDraftInPayment(ctx context.Context, arg database.SetDraftInPaymentParams) (database.Draft, error)
	DeleteDraft(ctx context.Context, arg database.DeleteDraftParams) (int64, error)
	CreateKitchenOrder(ctx context.Context, arg database.CreateKitchenOrderParams) (database.KitchenOrder, error)
	ListActiveTableOrders(ctx context.Context, arg database.ListActiveTableOrdersParams) ([]database.KitchenOrder, error)
	ListActiveWaiterOrders(ctx context.Context, tenantID uuid.UUID) ([]database.KitchenOrder, error)
	CompleteActiveTableOrders(ctx context.Context, arg database.CompleteActiveTableOrdersParams) (int64, error)
	CreateBill(ctx context.Context, arg database.CreateBillParams) (database.Bill, error)
	GetBill(ctx context.Context, arg database.GetBillParams) (database.Bill, error)
	ListBills(ctx context.Context, arg database.ListBillsParams) ([]database.Bill, error)
	UpdateBillStatus(ctx context.Context, arg database.UpdateBillStatusParams) (database.Bill, error)
	CancelPendingTableBills(ctx context.Context, arg database.CancelPendingTableBillsParams) (int64, error)
}

// NewTableStore creates a TableStore from a DBTX (pool or tx).
type NewTableStore func(db database.DBTX) TableStore

// TableService owns the draft of every table and the steps that turn it into
// kitchen orders and, finally, a closed bill.
type TableService struct {
	pool     TxBeginner
	store    TableStore
	newStore NewTableStore
	notifier Notifier
	metrics  *metrics.Metrics
}

// NewTableService creates a TableService. store serves reads and
// single-statement writes; newStore is used inside transactions.
// notifier and m may be nil.
func NewTableService(pool TxBeginner, store TableStore, newStore NewTableStore, notifier Notifier, m *metrics.Metrics) *TableService {
	return &TableService{
		pool:     pool,
		store:    store,
		newStore: newStore,
		notifier: orNop(notifier),
		metrics:  m,
	}
}

// GetTable returns the snapshot of one table. A table without a draft is
// reported as free with a nil draft.
func (s *TableService) GetTable(ctx context.Context, tenantID uuid.UUID, tableID int32) (*TableView, error) {
	if tableID <= 0 {
		return nil, ErrInvalidTable
	}
	var draft *database.Draft
	d, err := s.store.GetDraft(ctx, database.GetDraftParams{TenantID: tenantID, TableID: tableID})
	switch {
	case err == nil:
		draft = &d
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return s.viewOf(ctx, s.store, tenantID, tableID, draft)
}

// ListTables returns a snapshot for every table that has a draft or an active
// waiter order, ordered by table id.
func (s *TableService) ListTables(ctx context.Context, tenantID uuid.UUID) ([]TableView, error) {
	drafts, err := s.store.ListDrafts(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	orders, err := s.store.ListActiveWaiterOrders(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}

	byTable := make(map[int32][]database.KitchenOrder)
	for _, o := range orders {
		if o.TableID.Valid {
			byTable[o.TableID.Int32] = append(byTable[o.TableID.Int32], o)
		}
	}
	draftByTable := make(map[int32]*database.Draft, len(drafts))
	for i := range drafts {
		draftByTable[drafts[i].TableID] = &drafts[i]
	}

	ids := make([]int32, 0, len(draftByTable)+len(byTable))
	seen := make(map[int32]bool)
	for _, d := range drafts {
		if !seen[d.TableID] {
			seen[d.TableID] = true
			ids = append(ids, d.TableID)
		}
	}
	for _, o := range orders {
		if o.TableID.Valid && !seen[o.TableID.Int32] {
			seen[o.TableID.Int32] = true
			ids = append(ids, o.TableID.Int32)
		}
	}
	slices.Sort(ids)

	views := make([]TableView, 0, len(ids))
	for _, id := range ids {
		views = append(views, buildTableView(tenantID, id, draftByTable[id], byTable[id]))
	}
	return views, nil
}

// RefreshTable publishes the current snapshot of a table. Failures are
// logged, not returned: the write that triggered the refresh already landed.
func (s *TableService) RefreshTable(ctx context.Context, tenantID uuid.UUID, tableID int32) {
	view, err := s.GetTable(ctx, tenantID, tableID)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("table_id", tableID).Warn("refresh table snapshot")
		return
	}
	s.notifier.TableUpdated(ctx, *view)
}

func (s *TableService) viewOf(ctx context.Context, store TableStore, tenantID uuid.UUID, tableID int32, draft *database.Draft) (*TableView, error) {
	orders, err := store.ListActiveTableOrders(ctx, database.ListActiveTableOrdersParams{
		TenantID: tenantID,
		TableID:  tableID,
	})
	if err != nil {
		return nil, fmt.Errorf("list table orders: %w", err)
	}
	view := buildTableView(tenantID, tableID, draft, orders)
	return &view, nil
}
