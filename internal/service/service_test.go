package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	store     *memStore
	snap      memState
	commitErr error
	unlock    []func()
	done      bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.done {
		return pgx.ErrTxClosed
	}
	m.done = true
	defer m.release()
	if m.commitErr != nil {
		m.store.restore(m.snap)
		return m.commitErr
	}
	return nil
}
func (m *mockTx) Rollback(ctx context.Context) error {
	if m.done {
		return pgx.ErrTxClosed
	}
	m.done = true
	defer m.release()
	m.store.restore(m.snap)
	return nil
}

// lock holds the row lock of a draft until the transaction ends. Every
// transaction locks its draft before writing, so the rollback point moves to
// the state left by whoever held the lock before.
func (m *mockTx) lock(k tableKey) {
	l := m.store.rowLock(k)
	l.Lock()
	m.unlock = append(m.unlock, l.Unlock)
	m.snap = m.store.snapshot()
}

func (m *mockTx) release() {
	for _, unlock := range m.unlock {
		unlock()
	}
	m.unlock = nil
}

func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner hands out transactions over a memStore. Rolling back
// restores the store to the state it had at Begin, or at the row lock.
// Concurrent transactions in one test must share a draft since a rollback
// restores the whole store.
type mockTxBeginner struct {
	store     *memStore
	err       error
	commitErr error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &mockTx{
		store:     m.store,
		snap:      m.store.snapshot(),
		commitErr: m.commitErr,
	}, nil
}

// --- In-memory store ---

type tableKey struct {
	tenant uuid.UUID
	table  int32
}

type memState struct {
	drafts map[tableKey]database.Draft
	orders map[uuid.UUID]database.KitchenOrder
	bills  map[uuid.UUID]database.Bill
	seq    []uuid.UUID
}

// memStore implements TableStore and OrderStore over maps. failOn makes the
// named method return the given error.
type memStore struct {
	mu     sync.Mutex
	state  memState
	now    time.Time
	failOn map[string]error
	locks  map[tableKey]*sync.Mutex
}

func newMemStore() *memStore {
	return &memStore{
		state: memState{
			drafts: map[tableKey]database.Draft{},
			orders: map[uuid.UUID]database.KitchenOrder{},
			bills:  map[uuid.UUID]database.Bill{},
		},
		now:    time.Date(2024, 3, 1, 19, 0, 0, 0, time.UTC),
		failOn: map[string]error{},
		locks:  map[tableKey]*sync.Mutex{},
	}
}

func cloneDraft(d database.Draft) database.Draft {
	seats := make([]database.Seat, len(d.Seats))
	for i, s := range d.Seats {
		seats[i] = s
		seats[i].Items = slices.Clone(s.Items)
		if seats[i].Items == nil {
			seats[i].Items = []database.DraftItem{}
		}
	}
	d.Seats = seats
	return d
}

func (m *memStore) snapshot() memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := memState{
		drafts: make(map[tableKey]database.Draft, len(m.state.drafts)),
		orders: make(map[uuid.UUID]database.KitchenOrder, len(m.state.orders)),
		bills:  make(map[uuid.UUID]database.Bill, len(m.state.bills)),
		seq:    slices.Clone(m.state.seq),
	}
	for k, v := range m.state.drafts {
		s.drafts[k] = cloneDraft(v)
	}
	for k, v := range m.state.orders {
		s.orders[k] = v
	}
	for k, v := range m.state.bills {
		s.bills[k] = v
	}
	return s
}

func (m *memStore) restore(s memState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

func (m *memStore) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

func (m *memStore) fail(name string) error {
	return m.failOn[name]
}

func (m *memStore) rowLock(k tableKey) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[k]
	if !ok {
		l = &sync.Mutex{}
		m.locks[k] = l
	}
	return l
}

func (m *memStore) factory() NewTableStore {
	return func(db database.DBTX) TableStore {
		if tx, ok := db.(*mockTx); ok {
			return &txStore{memStore: m, tx: tx}
		}
		return m
	}
}

// txStore is the memStore as seen from inside a transaction.
type txStore struct {
	*memStore
	tx *mockTx
}

func (s *txStore) LockDraft(ctx context.Context, arg database.GetDraftParams) (database.Draft, error) {
	s.tx.lock(tableKey{arg.TenantID, arg.TableID})
	return s.memStore.GetDraft(ctx, arg)
}

// draft returns a copy of the stored draft of a table.
func (m *memStore) draft(tenant uuid.UUID, table int32) (database.Draft, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.state.drafts[tableKey{tenant, table}]
	return cloneDraft(d), ok
}

func (m *memStore) order(id uuid.UUID) database.KitchenOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.orders[id]
}

func (m *memStore) bill(id uuid.UUID) database.Bill {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.bills[id]
}

func (m *memStore) billCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.bills)
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.orders)
}

// setOrderStatus forces an order into status, bypassing the lifecycle.
func (m *memStore) setOrderStatus(id uuid.UUID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.state.orders[id]
	o.Status = status
	m.state.orders[id] = o
}

func (m *memStore) GetDraft(ctx context.Context, arg database.GetDraftParams) (database.Draft, error) {
	if err := m.fail("GetDraft"); err != nil {
		return database.Draft{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.state.drafts[tableKey{arg.TenantID, arg.TableID}]
	if !ok {
		return database.Draft{}, pgx.ErrNoRows
	}
	return cloneDraft(d), nil
}

func (m *memStore) LockDraft(ctx context.Context, arg database.GetDraftParams) (database.Draft, error) {
	return m.GetDraft(ctx, arg)
}

func (m *memStore) ListDrafts(ctx context.Context, tenantID uuid.UUID) ([]database.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []database.Draft{}
	for k, d := range m.state.drafts {
		if k.tenant == tenantID {
			out = append(out, cloneDraft(d))
		}
	}
	slices.SortFunc(out, func(a, b database.Draft) int { return int(a.TableID - b.TableID) })
	return out, nil
}

func (m *memStore) UpsertDraft(ctx context.Context, arg database.UpsertDraftParams) (database.Draft, error) {
	if err := m.fail("UpsertDraft"); err != nil {
		return database.Draft{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d := cloneDraft(database.Draft{
		TenantID:      arg.TenantID,
		TableID:       arg.TableID,
		Seats:         arg.Seats,
		PaymentMethod: arg.PaymentMethod,
		IsInPayment:   arg.IsInPayment,
		LastActivity:  m.tick(),
	})
	m.state.drafts[tableKey{arg.TenantID, arg.TableID}] = d
	return cloneDraft(d), nil
}

func (m *memStore) SetDraftInPayment(ctx context.Context, arg database.SetDraftInPaymentParams) (database.Draft, error) {
	if err := m.fail("SetDraftInPayment"); err != nil {
		return database.Draft{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := tableKey{arg.TenantID, arg.TableID}
	d, ok := m.state.drafts[k]
	if !ok {
		return database.Draft{}, pgx.ErrNoRows
	}
	d.IsInPayment = arg.IsInPayment
	d.LastActivity = m.tick()
	m.state.drafts[k] = d
	return cloneDraft(d), nil
}

func (m *memStore) DeleteDraft(ctx context.Context, arg database.DeleteDraftParams) (int64, error) {
	if err := m.fail("DeleteDraft"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := tableKey{arg.TenantID, arg.TableID}
	if _, ok := m.state.drafts[k]; !ok {
		return 0, nil
	}
	delete(m.state.drafts, k)
	return 1, nil
}

func (m *memStore) CreateKitchenOrder(ctx context.Context, arg database.CreateKitchenOrderParams) (database.KitchenOrder, error) {
	if err := m.fail("CreateKitchenOrder"); err != nil {
		return database.KitchenOrder{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if arg.CheckoutSessionID.Valid {
		for _, o := range m.state.orders {
			if o.TenantID == arg.TenantID && o.CheckoutSessionID.Valid && o.CheckoutSessionID.String == arg.CheckoutSessionID.String {
				return database.KitchenOrder{}, &pgconn.PgError{
					Code:           "23505",
					ConstraintName: "kitchen_orders_checkout_session_key",
				}
			}
		}
	}
	now := m.tick()
	o := database.KitchenOrder{
		ID:                uuid.New(),
		TenantID:          arg.TenantID,
		TableID:           arg.TableID,
		Items:             slices.Clone(arg.Items),
		TotalAmount:       arg.TotalAmount,
		Status:            arg.Status,
		Source:            arg.Source,
		IsDelivery:        arg.IsDelivery,
		DeliveryAddress:   arg.DeliveryAddress,
		CustomerName:      arg.CustomerName,
		CheckoutSessionID: arg.CheckoutSessionID,
		CreatedBy:         arg.CreatedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	m.state.orders[o.ID] = o
	m.state.seq = append(m.state.seq, o.ID)
	return o, nil
}

func (m *memStore) ordersWhere(keep func(database.KitchenOrder) bool) []database.KitchenOrder {
	out := []database.KitchenOrder{}
	for _, id := range m.state.seq {
		if o, ok := m.state.orders[id]; ok && keep(o) {
			out = append(out, o)
		}
	}
	return out
}

func isActiveTableOrder(o database.KitchenOrder, tenant uuid.UUID, table int32) bool {
	return o.TenantID == tenant && o.Source == enum.OrderSourceWaiter &&
		o.TableID.Valid && o.TableID.Int32 == table && IsActiveStatus(o.Status)
}

func (m *memStore) ListActiveTableOrders(ctx context.Context, arg database.ListActiveTableOrdersParams) ([]database.KitchenOrder, error) {
	if err := m.fail("ListActiveTableOrders"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ordersWhere(func(o database.KitchenOrder) bool {
		return isActiveTableOrder(o, arg.TenantID, arg.TableID)
	}), nil
}

func (m *memStore) ListActiveWaiterOrders(ctx context.Context, tenantID uuid.UUID) ([]database.KitchenOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ordersWhere(func(o database.KitchenOrder) bool {
		return o.TenantID == tenantID && o.Source == enum.OrderSourceWaiter && o.TableID.Valid && IsActiveStatus(o.Status)
	}), nil
}

func (m *memStore) CompleteActiveTableOrders(ctx context.Context, arg database.CompleteActiveTableOrdersParams) (int64, error) {
	if err := m.fail("CompleteActiveTableOrders"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, o := range m.state.orders {
		if isActiveTableOrder(o, arg.TenantID, arg.TableID) {
			o.Status = enum.OrderStatusCompleted
			o.UpdatedAt = m.tick()
			m.state.orders[id] = o
			n++
		}
	}
	return n, nil
}

func (m *memStore) GetKitchenOrder(ctx context.Context, arg database.GetKitchenOrderParams) (database.KitchenOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[arg.ID]
	if !ok || o.TenantID != arg.TenantID {
		return database.KitchenOrder{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memStore) GetKitchenOrderByCheckoutSession(ctx context.Context, arg database.GetKitchenOrderByCheckoutSessionParams) (database.KitchenOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.state.orders {
		if o.TenantID == arg.TenantID && o.CheckoutSessionID.Valid && o.CheckoutSessionID.String == arg.CheckoutSessionID {
			return o, nil
		}
	}
	return database.KitchenOrder{}, pgx.ErrNoRows
}

func (m *memStore) ListKitchenOrders(ctx context.Context, arg database.ListKitchenOrdersParams) ([]database.KitchenOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ordersWhere(func(o database.KitchenOrder) bool {
		switch {
		case o.TenantID != arg.TenantID:
			return false
		case arg.Status.Valid && o.Status != arg.Status.String:
			return false
		case arg.Source.Valid && o.Source != arg.Source.String:
			return false
		case arg.TableID.Valid && (!o.TableID.Valid || o.TableID.Int32 != arg.TableID.Int32):
			return false
		case arg.DriverID.Valid && o.AssignedDriverID != arg.DriverID:
			return false
		}
		return true
	}), nil
}

func (m *memStore) UpdateKitchenOrderStatus(ctx context.Context, arg database.UpdateKitchenOrderStatusParams) (database.KitchenOrder, error) {
	if err := m.fail("UpdateKitchenOrderStatus"); err != nil {
		return database.KitchenOrder{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[arg.ID]
	if !ok || o.TenantID != arg.TenantID || o.Status != arg.FromStatus {
		return database.KitchenOrder{}, pgx.ErrNoRows
	}
	o.Status = arg.Status
	o.UpdatedAt = m.tick()
	m.state.orders[arg.ID] = o
	return o, nil
}

func (m *memStore) AssignKitchenOrderDriver(ctx context.Context, arg database.AssignKitchenOrderDriverParams) (database.KitchenOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[arg.ID]
	if !ok || o.TenantID != arg.TenantID || o.Status != enum.OrderStatusReadyForDelivery {
		return database.KitchenOrder{}, pgx.ErrNoRows
	}
	o.Status = enum.OrderStatusOutForDelivery
	o.AssignedDriverID = pgtype.UUID{Bytes: arg.DriverID, Valid: true}
	o.AssignedDriverName = pgtype.Text{String: arg.DriverName, Valid: true}
	o.UpdatedAt = m.tick()
	m.state.orders[arg.ID] = o
	return o, nil
}

func (m *memStore) CreateBill(ctx context.Context, arg database.CreateBillParams) (database.Bill, error) {
	if err := m.fail("CreateBill"); err != nil {
		return database.Bill{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if arg.Status == enum.BillStatusPending {
		for _, b := range m.state.bills {
			if b.TenantID == arg.TenantID && b.TableID == arg.TableID && b.Status == enum.BillStatusPending {
				return database.Bill{}, &pgconn.PgError{Code: "23505", ConstraintName: "bills_one_pending_per_table"}
			}
		}
	}
	b := database.Bill{
		ID:            uuid.New(),
		TenantID:      arg.TenantID,
		TableID:       arg.TableID,
		Items:         slices.Clone(arg.Items),
		TotalAmount:   arg.TotalAmount,
		PaymentMethod: arg.PaymentMethod,
		Status:        arg.Status,
		CreatedBy:     arg.CreatedBy,
		CreatedAt:     m.tick(),
	}
	m.state.bills[b.ID] = b
	return b, nil
}

func (m *memStore) GetBill(ctx context.Context, arg database.GetBillParams) (database.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.state.bills[arg.ID]
	if !ok || b.TenantID != arg.TenantID {
		return database.Bill{}, pgx.ErrNoRows
	}
	return b, nil
}

func (m *memStore) ListBills(ctx context.Context, arg database.ListBillsParams) ([]database.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []database.Bill{}
	for _, b := range m.state.bills {
		if b.TenantID == arg.TenantID && (!arg.TableID.Valid || b.TableID == arg.TableID.Int32) {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b database.Bill) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (m *memStore) UpdateBillStatus(ctx context.Context, arg database.UpdateBillStatusParams) (database.Bill, error) {
	if err := m.fail("UpdateBillStatus"); err != nil {
		return database.Bill{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.state.bills[arg.ID]
	if !ok || b.TenantID != arg.TenantID || b.Status != arg.FromStatus {
		return database.Bill{}, pgx.ErrNoRows
	}
	b.Status = arg.Status
	b.ClosedAt = pgtype.Timestamptz{Time: m.tick(), Valid: true}
	m.state.bills[arg.ID] = b
	return b, nil
}

func (m *memStore) CancelPendingTableBills(ctx context.Context, arg database.CancelPendingTableBillsParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, b := range m.state.bills {
		if b.TenantID == arg.TenantID && b.TableID == arg.TableID && b.Status == enum.BillStatusPending {
			b.Status = enum.BillStatusCanceled
			b.ClosedAt = pgtype.Timestamptz{Time: m.tick(), Valid: true}
			m.state.bills[id] = b
			n++
		}
	}
	return n, nil
}

// --- Notifier ---

type recordingNotifier struct {
	mu     sync.Mutex
	tables []TableView
	orders []OrderView
	bills  []BillView
}

func (r *recordingNotifier) TableUpdated(ctx context.Context, v TableView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables = append(r.tables, v)
}

func (r *recordingNotifier) OrderUpdated(ctx context.Context, v OrderView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, v)
}

func (r *recordingNotifier) BillClosed(ctx context.Context, v BillView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bills = append(r.bills, v)
}

func (r *recordingNotifier) lastTable() TableView {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.tables) == 0 {
		return TableView{}
	}
	return r.tables[len(r.tables)-1]
}

// --- Test helpers ---

type fixture struct {
	store    *memStore
	pool     *mockTxBeginner
	notifier *recordingNotifier
	tables   *TableService
	orders   *OrderService
	tenant   uuid.UUID
	waiter   uuid.UUID
}

func newFixture() *fixture {
	store := newMemStore()
	pool := &mockTxBeginner{store: store}
	n := &recordingNotifier{}
	tables := NewTableService(pool, store, store.factory(), n, nil)
	return &fixture{
		store:    store,
		pool:     pool,
		notifier: n,
		tables:   tables,
		orders:   NewOrderService(store, tables, n, nil),
		tenant:   uuid.New(),
		waiter:   uuid.New(),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pizza() database.DraftItem {
	return database.DraftItem{ProductID: "pizza", Name: "Pizza", Quantity: 1, Price: dec("30.00")}
}

func soda(qty int32) database.DraftItem {
	return database.DraftItem{ProductID: "soda", Name: "Soda", Quantity: qty, Price: dec("8.00")}
}

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	return numericToDecimal(n).Equal(dec(expected))
}

// addItems adds each item to seat 0 of the table.
func (f *fixture) addItems(table int32, items ...database.DraftItem) {
	for _, item := range items {
		if _, err := f.tables.AddItem(context.Background(), AddItemRequest{
			TenantID: f.tenant,
			TableID:  table,
			Item:     item,
		}); err != nil {
			panic(err)
		}
	}
}

// deliver walks a waiter order from In Progress to Delivered.
func (f *fixture) deliver(orderID uuid.UUID) {
	ctx := context.Background()
	for _, next := range []string{enum.OrderStatusReadyToServe, enum.OrderStatusDelivered} {
		if _, err := f.orders.UpdateStatus(ctx, f.tenant, orderID, next); err != nil {
			panic(err)
		}
	}
}
