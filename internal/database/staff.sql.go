package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createTenant = `-- name: CreateTenant :one
INSERT INTO tenants (name) VALUES ($1)
RETURNING id, name, created_at
`

func (q *Queries) CreateTenant(ctx context.Context, name string) (Tenant, error) {
	row := q.db.QueryRow(ctx, createTenant, name)
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.CreatedAt)
	return t, err
}

const getStaffByEmail = `-- name: GetStaffByEmail :one
SELECT id, tenant_id, email, password_hash, full_name, role, is_active, created_at
FROM staff
WHERE email = $1 AND is_active = true
`

func (q *Queries) GetStaffByEmail(ctx context.Context, email string) (Staff, error) {
	row := q.db.QueryRow(ctx, getStaffByEmail, email)
	var s Staff
	err := row.Scan(
		&s.ID,
		&s.TenantID,
		&s.Email,
		&s.PasswordHash,
		&s.FullName,
		&s.Role,
		&s.IsActive,
		&s.CreatedAt,
	)
	return s, err
}

const createStaff = `-- name: CreateStaff :one
INSERT INTO staff (tenant_id, email, password_hash, full_name, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, tenant_id, email, password_hash, full_name, role, is_active, created_at
`

type CreateStaffParams struct {
	TenantID     uuid.UUID
	Email        string
	PasswordHash string
	FullName     string
	Role         string
}

func (q *Queries) CreateStaff(ctx context.Context, arg CreateStaffParams) (Staff, error) {
	row := q.db.QueryRow(ctx, createStaff,
		arg.TenantID,
		arg.Email,
		arg.PasswordHash,
		arg.FullName,
		arg.Role,
	)
	var s Staff
	err := row.Scan(
		&s.ID,
		&s.TenantID,
		&s.Email,
		&s.PasswordHash,
		&s.FullName,
		&s.Role,
		&s.IsActive,
		&s.CreatedAt,
	)
	return s, err
}

const getStaffByID = `-- name: GetStaffByID :one
SELECT id, tenant_id, email, password_hash, full_name, role, is_active, created_at
FROM staff
WHERE id = $1 AND is_active = true
`

func (q *Queries) GetStaffByID(ctx context.Context, id uuid.UUID) (Staff, error) {
	row := q.db.QueryRow(ctx, getStaffByID, id)
	var s Staff
	err := row.Scan(
		&s.ID,
		&s.TenantID,
		&s.Email,
		&s.PasswordHash,
		&s.FullName,
		&s.Role,
		&s.IsActive,
		&s.CreatedAt,
	)
	return s, err
}

const listStaff = `-- name: ListStaff :many
SELECT id, tenant_id, email, password_hash, full_name, role, is_active, created_at
FROM staff
WHERE tenant_id = $1 AND is_active = true
  AND ($2::text IS NULL OR role = $2::text)
ORDER BY full_name
`

type ListStaffParams struct {
	TenantID uuid.UUID
	Role     pgtype.Text
}

func (q *Queries) ListStaff(ctx context.Context, arg ListStaffParams) ([]Staff, error) {
	rows, err := q.db.Query(ctx, listStaff, arg.TenantID, arg.Role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Staff{}
	for rows.Next() {
		var s Staff
		if err := rows.Scan(
			&s.ID,
			&s.TenantID,
			&s.Email,
			&s.PasswordHash,
			&s.FullName,
			&s.Role,
			&s.IsActive,
			&s.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deactivateStaff = `-- name: DeactivateStaff :one
UPDATE staff SET is_active = false
WHERE id = $1 AND tenant_id = $2 AND is_active = true
RETURNING id
`

type DeactivateStaffParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) DeactivateStaff(ctx context.Context, arg DeactivateStaffParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deactivateStaff, arg.ID, arg.TenantID)
	var id uuid.UUID
	err := row.Scan(&id)
	return id, err
}
