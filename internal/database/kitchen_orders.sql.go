package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const kitchenOrderColumns = `id, tenant_id, table_id, items, total_amount, status, source, is_delivery,
    delivery_address, customer_name, assigned_driver_id, assigned_driver_name,
    checkout_session_id, created_by, created_at, updated_at`

// Orders in these statuses are history only.
const terminalStatuses = `('Completed', 'Canceled', 'Returned')`

func scanKitchenOrder(row pgx.Row) (KitchenOrder, error) {
	var o KitchenOrder
	var items []byte
	if err := row.Scan(
		&o.ID,
		&o.TenantID,
		&o.TableID,
		&items,
		&o.TotalAmount,
		&o.Status,
		&o.Source,
		&o.IsDelivery,
		&o.DeliveryAddress,
		&o.CustomerName,
		&o.AssignedDriverID,
		&o.AssignedDriverName,
		&o.CheckoutSessionID,
		&o.CreatedBy,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return o, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("decode kitchen order items: %w", err)
	}
	return o, nil
}

func collectKitchenOrders(rows pgx.Rows) ([]KitchenOrder, error) {
	defer rows.Close()
	items := []KitchenOrder{}
	for rows.Next() {
		o, err := scanKitchenOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createKitchenOrder = `-- name: CreateKitchenOrder :one
INSERT INTO kitchen_orders (
    tenant_id, table_id, items, total_amount, status, source, is_delivery,
    delivery_address, customer_name, checkout_session_id, created_by
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + kitchenOrderColumns + `
`

type CreateKitchenOrderParams struct {
	TenantID          uuid.UUID
	TableID           pgtype.Int4
	Items             []OrderLine
	TotalAmount       pgtype.Numeric
	Status            string
	Source            string
	IsDelivery        bool
	DeliveryAddress   pgtype.Text
	CustomerName      pgtype.Text
	CheckoutSessionID pgtype.Text
	CreatedBy         pgtype.UUID
}

func (q *Queries) CreateKitchenOrder(ctx context.Context, arg CreateKitchenOrderParams) (KitchenOrder, error) {
	items, err := json.Marshal(arg.Items)
	if err != nil {
		return KitchenOrder{}, fmt.Errorf("encode kitchen order items: %w", err)
	}
	row := q.db.QueryRow(ctx, createKitchenOrder,
		arg.TenantID,
		arg.TableID,
		items,
		arg.TotalAmount,
		arg.Status,
		arg.Source,
		arg.IsDelivery,
		arg.DeliveryAddress,
		arg.CustomerName,
		arg.CheckoutSessionID,
		arg.CreatedBy,
	)
	return scanKitchenOrder(row)
}

const getKitchenOrder = `-- name: GetKitchenOrder :one
SELECT ` + kitchenOrderColumns + ` FROM kitchen_orders
WHERE id = $1 AND tenant_id = $2
`

type GetKitchenOrderParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetKitchenOrder(ctx context.Context, arg GetKitchenOrderParams) (KitchenOrder, error) {
	row := q.db.QueryRow(ctx, getKitchenOrder, arg.ID, arg.TenantID)
	return scanKitchenOrder(row)
}

const getKitchenOrderByCheckoutSession = `-- name: GetKitchenOrderByCheckoutSession :one
SELECT ` + kitchenOrderColumns + ` FROM kitchen_orders
WHERE tenant_id = $1 AND checkout_session_id = $2
`

type GetKitchenOrderByCheckoutSessionParams struct {
	TenantID          uuid.UUID
	CheckoutSessionID string
}

func (q *Queries) GetKitchenOrderByCheckoutSession(ctx context.Context, arg GetKitchenOrderByCheckoutSessionParams) (KitchenOrder, error) {
	row := q.db.QueryRow(ctx, getKitchenOrderByCheckoutSession, arg.TenantID, arg.CheckoutSessionID)
	return scanKitchenOrder(row)
}

const listKitchenOrders = `-- name: ListKitchenOrders :many
SELECT ` + kitchenOrderColumns + ` FROM kitchen_orders
WHERE tenant_id = $1
  AND ($2::text IS NULL OR status = $2)
  AND ($3::text IS NULL OR source = $3)
  AND ($4::int IS NULL OR table_id = $4)
  AND ($5::uuid IS NULL OR assigned_driver_id = $5)
ORDER BY created_at DESC
LIMIT $6 OFFSET $7
`

type ListKitchenOrdersParams struct {
	TenantID uuid.UUID
	Status   pgtype.Text
	Source   pgtype.Text
	TableID  pgtype.Int4
	DriverID pgtype.UUID
	Limit    int32
	Offset   int32
}

func (q *Queries) ListKitchenOrders(ctx context.Context, arg ListKitchenOrdersParams) ([]KitchenOrder, error) {
	rows, err := q.db.Query(ctx, listKitchenOrders,
		arg.TenantID,
		arg.Status,
		arg.Source,
		arg.TableID,
		arg.DriverID,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	return collectKitchenOrders(rows)
}

const listActiveTableOrders = `-- name: ListActiveTableOrders :many
SELECT ` + kitchenOrderColumns + ` FROM kitchen_orders
WHERE tenant_id = $1 AND source = 'waiter' AND table_id = $2
  AND status NOT IN ` + terminalStatuses + `
ORDER BY created_at
`

type ListActiveTableOrdersParams struct {
	TenantID uuid.UUID
	TableID  int32
}

func (q *Queries) ListActiveTableOrders(ctx context.Context, arg ListActiveTableOrdersParams) ([]KitchenOrder, error) {
	rows, err := q.db.Query(ctx, listActiveTableOrders, arg.TenantID, arg.TableID)
	if err != nil {
		return nil, err
	}
	return collectKitchenOrders(rows)
}

const listActiveWaiterOrders = `-- name: ListActiveWaiterOrders :many
SELECT ` + kitchenOrderColumns + ` FROM kitchen_orders
WHERE tenant_id = $1 AND source = 'waiter' AND table_id IS NOT NULL
  AND status NOT IN ` + terminalStatuses + `
ORDER BY table_id, created_at
`

func (q *Queries) ListActiveWaiterOrders(ctx context.Context, tenantID uuid.UUID) ([]KitchenOrder, error) {
	rows, err := q.db.Query(ctx, listActiveWaiterOrders, tenantID)
	if err != nil {
		return nil, err
	}
	return collectKitchenOrders(rows)
}

// The status predicate makes the write a compare-and-set: it only lands if
// nobody moved the order since it was read.
const updateKitchenOrderStatus = `-- name: UpdateKitchenOrderStatus :one
UPDATE kitchen_orders
SET status = $3, updated_at = now()
WHERE id = $1 AND tenant_id = $2 AND status = $4
RETURNING ` + kitchenOrderColumns + `
`

type UpdateKitchenOrderStatusParams struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Status     string
	FromStatus string
}

func (q *Queries) UpdateKitchenOrderStatus(ctx context.Context, arg UpdateKitchenOrderStatusParams) (KitchenOrder, error) {
	row := q.db.QueryRow(ctx, updateKitchenOrderStatus, arg.ID, arg.TenantID, arg.Status, arg.FromStatus)
	return scanKitchenOrder(row)
}

const assignKitchenOrderDriver = `-- name: AssignKitchenOrderDriver :one
UPDATE kitchen_orders
SET status = 'Out for Delivery',
    assigned_driver_id = $3,
    assigned_driver_name = $4,
    updated_at = now()
WHERE id = $1 AND tenant_id = $2 AND status = 'Ready for Delivery'
RETURNING ` + kitchenOrderColumns + `
`

type AssignKitchenOrderDriverParams struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	DriverID   uuid.UUID
	DriverName string
}

func (q *Queries) AssignKitchenOrderDriver(ctx context.Context, arg AssignKitchenOrderDriverParams) (KitchenOrder, error) {
	row := q.db.QueryRow(ctx, assignKitchenOrderDriver, arg.ID, arg.TenantID, arg.DriverID, arg.DriverName)
	return scanKitchenOrder(row)
}

const completeActiveTableOrders = `-- name: CompleteActiveTableOrders :execrows
UPDATE kitchen_orders
SET status = 'Completed', updated_at = now()
WHERE tenant_id = $1 AND source = 'waiter' AND table_id = $2
  AND status NOT IN ` + terminalStatuses + `
`

type CompleteActiveTableOrdersParams struct {
	TenantID uuid.UUID
	TableID  int32
}

func (q *Queries) CompleteActiveTableOrders(ctx context.Context, arg CompleteActiveTableOrdersParams) (int64, error) {
	result, err := q.db.Exec(ctx, completeActiveTableOrders, arg.TenantID, arg.TableID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
