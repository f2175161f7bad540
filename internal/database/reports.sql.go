package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const salesBySource = `-- name: SalesBySource :many
SELECT source,
       COUNT(*)::bigint AS order_count,
       COALESCE(SUM(total_amount), 0)::numeric AS total_sales
FROM kitchen_orders
WHERE tenant_id = $1
  AND status = 'Completed'
  AND updated_at >= $2 AND updated_at < $3
GROUP BY source
ORDER BY source
`

type SalesBySourceParams struct {
	TenantID  uuid.UUID
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
}

type SalesBySourceRow struct {
	Source     string         `json:"source"`
	OrderCount int64          `json:"order_count"`
	TotalSales pgtype.Numeric `json:"total_sales"`
}

func (q *Queries) SalesBySource(ctx context.Context, arg SalesBySourceParams) ([]SalesBySourceRow, error) {
	rows, err := q.db.Query(ctx, salesBySource, arg.TenantID, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SalesBySourceRow{}
	for rows.Next() {
		var i SalesBySourceRow
		if err := rows.Scan(&i.Source, &i.OrderCount, &i.TotalSales); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
