package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const draftColumns = `tenant_id, table_id, seats, payment_method, is_in_payment, last_activity`

func scanDraft(row pgx.Row) (Draft, error) {
	var d Draft
	var seats []byte
	if err := row.Scan(
		&d.TenantID,
		&d.TableID,
		&seats,
		&d.PaymentMethod,
		&d.IsInPayment,
		&d.LastActivity,
	); err != nil {
		return d, err
	}
	if err := json.Unmarshal(seats, &d.Seats); err != nil {
		return d, fmt.Errorf("decode draft seats: %w", err)
	}
	return d, nil
}

const getDraft = `-- name: GetDraft :one
SELECT ` + draftColumns + ` FROM table_drafts
WHERE tenant_id = $1 AND table_id = $2
`

type GetDraftParams struct {
	TenantID uuid.UUID
	TableID  int32
}

func (q *Queries) GetDraft(ctx context.Context, arg GetDraftParams) (Draft, error) {
	row := q.db.QueryRow(ctx, getDraft, arg.TenantID, arg.TableID)
	return scanDraft(row)
}

const lockDraft = `-- name: LockDraft :one
SELECT ` + draftColumns + ` FROM table_drafts
WHERE tenant_id = $1 AND table_id = $2
FOR UPDATE
`

// LockDraft reads a draft and holds its row lock until the transaction ends.
func (q *Queries) LockDraft(ctx context.Context, arg GetDraftParams) (Draft, error) {
	row := q.db.QueryRow(ctx, lockDraft, arg.TenantID, arg.TableID)
	return scanDraft(row)
}

const listDrafts = `-- name: ListDrafts :many
SELECT ` + draftColumns + ` FROM table_drafts
WHERE tenant_id = $1
ORDER BY table_id
`

func (q *Queries) ListDrafts(ctx context.Context, tenantID uuid.UUID) ([]Draft, error) {
	rows, err := q.db.Query(ctx, listDrafts, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Draft{}
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Whole-document upsert: the last writer replaces every field.
const upsertDraft = `-- name: UpsertDraft :one
INSERT INTO table_drafts (tenant_id, table_id, seats, payment_method, is_in_payment, last_activity)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (tenant_id, table_id) DO UPDATE
SET seats = EXCLUDED.seats,
    payment_method = EXCLUDED.payment_method,
    is_in_payment = EXCLUDED.is_in_payment,
    last_activity = now()
RETURNING ` + draftColumns + `
`

type UpsertDraftParams struct {
	TenantID      uuid.UUID
	TableID       int32
	Seats         []Seat
	PaymentMethod string
	IsInPayment   bool
}

func (q *Queries) UpsertDraft(ctx context.Context, arg UpsertDraftParams) (Draft, error) {
	seats, err := json.Marshal(arg.Seats)
	if err != nil {
		return Draft{}, fmt.Errorf("encode draft seats: %w", err)
	}
	row := q.db.QueryRow(ctx, upsertDraft,
		arg.TenantID,
		arg.TableID,
		seats,
		arg.PaymentMethod,
		arg.IsInPayment,
	)
	return scanDraft(row)
}

const setDraftInPayment = `-- name: SetDraftInPayment :one
UPDATE table_drafts
SET is_in_payment = $3, last_activity = now()
WHERE tenant_id = $1 AND table_id = $2
RETURNING ` + draftColumns + `
`

type SetDraftInPaymentParams struct {
	TenantID    uuid.UUID
	TableID     int32
	IsInPayment bool
}

func (q *Queries) SetDraftInPayment(ctx context.Context, arg SetDraftInPaymentParams) (Draft, error) {
	row := q.db.QueryRow(ctx, setDraftInPayment, arg.TenantID, arg.TableID, arg.IsInPayment)
	return scanDraft(row)
}

const deleteDraft = `-- name: DeleteDraft :execrows
DELETE FROM table_drafts
WHERE tenant_id = $1 AND table_id = $2
`

type DeleteDraftParams struct {
	TenantID uuid.UUID
	TableID  int32
}

func (q *Queries) DeleteDraft(ctx context.Context, arg DeleteDraftParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteDraft, arg.TenantID, arg.TableID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
