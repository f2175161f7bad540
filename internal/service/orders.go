package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
	"github.com/mesa-pos/api/internal/metrics"
	"github.com/mesa-pos/api/internal/pricing"
	"github.com/shopspring/decimal"
)

// OrderStore defines the DB methods needed to move kitchen orders through
// their lifecycle. Satisfied by *database.Queries.
type OrderStore interface {
	GetKitchenOrder(ctx context.Context, arg database.GetKitchenOrderParams) (database.KitchenOrder, error)
	GetKitchenOrderByCheckoutSession(ctx context.Context, arg database.GetKitchenOrderByCheckoutSessionParams) (database.KitchenOrder, error)
	ListKitchenOrders(ctx context.Context, arg database.ListKitchenOrdersParams) ([]database.KitchenOrder, error)
	CreateKitchenOrder(ctx context.Context, arg database.CreateKitchenOrderParams) (database.KitchenOrder, error)
	UpdateKitchenOrderStatus(ctx context.Context, arg database.UpdateKitchenOrderStatusParams) (database.KitchenOrder, error)
	AssignKitchenOrderDriver(ctx context.Context, arg database.AssignKitchenOrderDriverParams) (database.KitchenOrder, error)
}

// TableRefresher republishes the snapshot of a table after one of its orders
// changed. *TableService implements it.
type TableRefresher interface {
	RefreshTable(ctx context.Context, tenantID uuid.UUID, tableID int32)
}

// OnlineOrderRequest records a paid checkout as a kitchen order.
type OnlineOrderRequest struct {
	TenantID          uuid.UUID
	CheckoutSessionID string
	Source            string
	CustomerName      string
	IsDelivery        bool
	DeliveryAddress   string
	Items             []database.DraftItem
}

// OrderService handles kitchen order status changes and orders that arrive
// from the online checkout.
type OrderService struct {
	store    OrderStore
	tables   TableRefresher
	notifier Notifier
	metrics  *metrics.Metrics
}

// NewOrderService creates a new OrderService. tables, notifier and m may be nil.
func NewOrderService(store OrderStore, tables TableRefresher, notifier Notifier, m *metrics.Metrics) *OrderService {
	return &OrderService{store: store, tables: tables, notifier: orNop(notifier), metrics: m}
}

func (s *OrderService) Get(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderView, error) {
	o, err := s.store.GetKitchenOrder(ctx, database.GetKitchenOrderParams{ID: orderID, TenantID: tenantID})
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	view := toOrderView(o)
	return &view, nil
}

func (s *OrderService) List(ctx context.Context, arg database.ListKitchenOrdersParams) ([]OrderView, error) {
	if arg.Status.Valid && !IsKnownStatus(arg.Status.String) {
		return nil, ErrInvalidStatus
	}
	if arg.Source.Valid && !isKnownSource(arg.Source.String) {
		return nil, ErrInvalidSource
	}
	orders, err := s.store.ListKitchenOrders(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return toOrderViews(orders), nil
}

// UpdateStatus moves an order to next. The write only lands if the order is
// still in the status it was read in; otherwise ErrStatusConflict.
func (s *OrderService) UpdateStatus(ctx context.Context, tenantID, orderID uuid.UUID, next string) (*OrderView, error) {
	if !IsKnownStatus(next) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}

	o, err := s.store.GetKitchenOrder(ctx, database.GetKitchenOrderParams{ID: orderID, TenantID: tenantID})
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}

	switch {
	case next == enum.OrderStatusOutForDelivery:
		return nil, ErrDriverRequired
	case next == enum.OrderStatusCompleted && isTableOrder(o):
		return nil, ErrCompletedByCloseOut
	}
	if err := validateStatusTransition(o, next); err != nil {
		return nil, err
	}

	return s.writeStatus(ctx, o, next)
}

// Cancel takes an order out of the flow. Orders not yet cooking are canceled;
// an order already on the road is returned. Items of a canceled table order
// stay sent.
func (s *OrderService) Cancel(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderView, error) {
	o, err := s.store.GetKitchenOrder(ctx, database.GetKitchenOrderParams{ID: orderID, TenantID: tenantID})
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	target, err := cancelTarget(o.Status)
	if err != nil {
		return nil, err
	}
	return s.writeStatus(ctx, o, target)
}

// AssignDriver hands a ready delivery order to a driver and moves it to
// Out for Delivery in the same write.
func (s *OrderService) AssignDriver(ctx context.Context, tenantID, orderID, driverID uuid.UUID, driverName string) (*OrderView, error) {
	driverName = strings.TrimSpace(driverName)
	if driverID == uuid.Nil || driverName == "" {
		return nil, ErrDriverRequired
	}

	o, err := s.store.GetKitchenOrder(ctx, database.GetKitchenOrderParams{ID: orderID, TenantID: tenantID})
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	if o.Status != enum.OrderStatusReadyForDelivery {
		return nil, fmt.Errorf("%w: cannot assign a driver to an order that is %s", ErrInvalidTransition, o.Status)
	}

	updated, err := s.store.AssignKitchenOrderDriver(ctx, database.AssignKitchenOrderDriverParams{
		ID:         orderID,
		TenantID:   tenantID,
		DriverID:   driverID,
		DriverName: driverName,
	})
	if err != nil {
		return nil, notFound(err, ErrStatusConflict)
	}
	return s.published(ctx, updated), nil
}

// CreateOnlineOrder records a paid checkout. A checkout session is recorded
// once: replaying it returns the existing order with created=false.
func (s *OrderService) CreateOnlineOrder(ctx context.Context, req OnlineOrderRequest) (view *OrderView, created bool, err error) {
	req.CheckoutSessionID = strings.TrimSpace(req.CheckoutSessionID)
	if req.CheckoutSessionID == "" {
		return nil, false, ErrMissingCheckout
	}
	if req.Source == "" {
		req.Source = enum.OrderSourceOnline
	}
	if req.Source != enum.OrderSourceOnline && req.Source != enum.OrderSourceOnlineRecovery {
		return nil, false, ErrInvalidSource
	}
	if len(req.Items) == 0 {
		return nil, false, ErrEmptyItems
	}

	existing, err := s.store.GetKitchenOrderByCheckoutSession(ctx, database.GetKitchenOrderByCheckoutSessionParams{
		TenantID:          req.TenantID,
		CheckoutSessionID: req.CheckoutSessionID,
	})
	if err == nil {
		v := toOrderView(existing)
		return &v, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("lookup checkout session: %w", err)
	}

	lines := make([]database.OrderLine, 0, len(req.Items))
	total := decimal.Zero
	for i, item := range req.Items {
		if err := pricing.Validate(item); err != nil {
			return nil, false, fmt.Errorf("item %d: %w", i, err)
		}
		lines = append(lines, orderLine(item, 0))
		total = total.Add(lineAmount(item))
	}

	o, err := s.store.CreateKitchenOrder(ctx, database.CreateKitchenOrderParams{
		TenantID:          req.TenantID,
		Items:             lines,
		TotalAmount:       decimalToNumeric(total),
		Status:            enum.OrderStatusPending,
		Source:            req.Source,
		IsDelivery:        req.IsDelivery,
		DeliveryAddress:   optionalText(strings.TrimSpace(req.DeliveryAddress)),
		CustomerName:      optionalText(strings.TrimSpace(req.CustomerName)),
		CheckoutSessionID: pgtype.Text{String: req.CheckoutSessionID, Valid: true},
	})
	if err != nil {
		if !isCheckoutSessionConflict(err) {
			return nil, false, fmt.Errorf("create online order: %w", err)
		}
		// A concurrent delivery of the same event won the insert.
		existing, err := s.store.GetKitchenOrderByCheckoutSession(ctx, database.GetKitchenOrderByCheckoutSessionParams{
			TenantID:          req.TenantID,
			CheckoutSessionID: req.CheckoutSessionID,
		})
		if err != nil {
			return nil, false, fmt.Errorf("lookup checkout session: %w", err)
		}
		v := toOrderView(existing)
		return &v, false, nil
	}

	s.metrics.OnlineOrder(req.Source)
	return s.published(ctx, o), true, nil
}

func (s *OrderService) writeStatus(ctx context.Context, o database.KitchenOrder, next string) (*OrderView, error) {
	updated, err := s.store.UpdateKitchenOrderStatus(ctx, database.UpdateKitchenOrderStatusParams{
		ID:         o.ID,
		TenantID:   o.TenantID,
		Status:     next,
		FromStatus: o.Status,
	})
	if err != nil {
		return nil, notFound(err, ErrStatusConflict)
	}
	s.metrics.StatusTransition(next)
	return s.published(ctx, updated), nil
}

// published notifies subscribers of o and, for table orders, of the table.
func (s *OrderService) published(ctx context.Context, o database.KitchenOrder) *OrderView {
	view := toOrderView(o)
	s.notifier.OrderUpdated(ctx, view)
	if s.tables != nil && isTableOrder(o) {
		s.tables.RefreshTable(ctx, o.TenantID, o.TableID.Int32)
	}
	return &view
}

func isKnownSource(src string) bool {
	switch src {
	case enum.OrderSourceWaiter, enum.OrderSourceOnline, enum.OrderSourceWaiterBill, enum.OrderSourceOnlineRecovery:
		return true
	}
	return false
}

// isCheckoutSessionConflict checks for a unique violation on the checkout
// session (pgconn error code 23505).
func isCheckoutSessionConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "checkout_session")
	}
	return false
}
