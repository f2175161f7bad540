package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listMenuItems = `-- name: ListMenuItems :many
SELECT id, tenant_id, name, base_price, promotional_price, is_active, created_at
FROM menu_items
WHERE tenant_id = $1 AND is_active = true
ORDER BY name
`

func (q *Queries) ListMenuItems(ctx context.Context, tenantID uuid.UUID) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItems, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MenuItem{}
	for rows.Next() {
		var i MenuItem
		if err := rows.Scan(
			&i.ID,
			&i.TenantID,
			&i.Name,
			&i.BasePrice,
			&i.PromotionalPrice,
			&i.IsActive,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createMenuItem = `-- name: CreateMenuItem :one
INSERT INTO menu_items (tenant_id, name, base_price, promotional_price)
VALUES ($1, $2, $3, $4)
RETURNING id, tenant_id, name, base_price, promotional_price, is_active, created_at
`

type CreateMenuItemParams struct {
	TenantID         uuid.UUID
	Name             string
	BasePrice        pgtype.Numeric
	PromotionalPrice pgtype.Numeric
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, createMenuItem,
		arg.TenantID,
		arg.Name,
		arg.BasePrice,
		arg.PromotionalPrice,
	)
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.TenantID,
		&i.Name,
		&i.BasePrice,
		&i.PromotionalPrice,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

const deactivateMenuItem = `-- name: DeactivateMenuItem :execrows
UPDATE menu_items SET is_active = false
WHERE id = $1 AND tenant_id = $2 AND is_active = true
`

type DeactivateMenuItemParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) DeactivateMenuItem(ctx context.Context, arg DeactivateMenuItemParams) (int64, error) {
	result, err := q.db.Exec(ctx, deactivateMenuItem, arg.ID, arg.TenantID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
