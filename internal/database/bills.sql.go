package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const billColumns = `id, tenant_id, table_id, items, total_amount, payment_method, status,
    created_by, created_at, closed_at`

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	var items []byte
	if err := row.Scan(
		&b.ID,
		&b.TenantID,
		&b.TableID,
		&items,
		&b.TotalAmount,
		&b.PaymentMethod,
		&b.Status,
		&b.CreatedBy,
		&b.CreatedAt,
		&b.ClosedAt,
	); err != nil {
		return b, err
	}
	if err := json.Unmarshal(items, &b.Items); err != nil {
		return b, fmt.Errorf("decode bill items: %w", err)
	}
	return b, nil
}

const createBill = `-- name: CreateBill :one
INSERT INTO bills (tenant_id, table_id, items, total_amount, payment_method, status, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + billColumns + `
`

type CreateBillParams struct {
	TenantID      uuid.UUID
	TableID       int32
	Items         []BillLine
	TotalAmount   pgtype.Numeric
	PaymentMethod string
	Status        string
	CreatedBy     pgtype.UUID
}

func (q *Queries) CreateBill(ctx context.Context, arg CreateBillParams) (Bill, error) {
	items, err := json.Marshal(arg.Items)
	if err != nil {
		return Bill{}, fmt.Errorf("encode bill items: %w", err)
	}
	row := q.db.QueryRow(ctx, createBill,
		arg.TenantID,
		arg.TableID,
		items,
		arg.TotalAmount,
		arg.PaymentMethod,
		arg.Status,
		arg.CreatedBy,
	)
	return scanBill(row)
}

const getBill = `-- name: GetBill :one
SELECT ` + billColumns + ` FROM bills
WHERE id = $1 AND tenant_id = $2
`

type GetBillParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetBill(ctx context.Context, arg GetBillParams) (Bill, error) {
	row := q.db.QueryRow(ctx, getBill, arg.ID, arg.TenantID)
	return scanBill(row)
}

const listBills = `-- name: ListBills :many
SELECT ` + billColumns + ` FROM bills
WHERE tenant_id = $1
  AND ($2::int IS NULL OR table_id = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`

type ListBillsParams struct {
	TenantID uuid.UUID
	TableID  pgtype.Int4
	Limit    int32
	Offset   int32
}

func (q *Queries) ListBills(ctx context.Context, arg ListBillsParams) ([]Bill, error) {
	rows, err := q.db.Query(ctx, listBills, arg.TenantID, arg.TableID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Bill{}
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateBillStatus = `-- name: UpdateBillStatus :one
UPDATE bills
SET status = $3,
    closed_at = CASE WHEN $3 = 'Pending' THEN NULL ELSE now() END
WHERE id = $1 AND tenant_id = $2 AND status = $4
RETURNING ` + billColumns + `
`

type UpdateBillStatusParams struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Status     string
	FromStatus string
}

func (q *Queries) UpdateBillStatus(ctx context.Context, arg UpdateBillStatusParams) (Bill, error) {
	row := q.db.QueryRow(ctx, updateBillStatus, arg.ID, arg.TenantID, arg.Status, arg.FromStatus)
	return scanBill(row)
}

const cancelPendingTableBills = `-- name: CancelPendingTableBills :execrows
UPDATE bills
SET status = 'Canceled', closed_at = now()
WHERE tenant_id = $1 AND table_id = $2 AND status = 'Pending'
`

type CancelPendingTableBillsParams struct {
	TenantID uuid.UUID
	TableID  int32
}

func (q *Queries) CancelPendingTableBills(ctx context.Context, arg CancelPendingTableBillsParams) (int64, error) {
	result, err := q.db.Exec(ctx, cancelPendingTableBills, arg.TenantID, arg.TableID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
