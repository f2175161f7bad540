package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
	"github.com/mesa-pos/api/internal/pricing"
	"github.com/shopspring/decimal"
)

// lineAmount is what one draft line costs once it reaches the kitchen: the
// unit price rounded to cents, times quantity.
func lineAmount(item database.DraftItem) decimal.Decimal {
	return pricing.UnitPrice(item).Round(2).Mul(decimal.NewFromInt32(item.Quantity))
}

func orderLine(item database.DraftItem, seatID int32) database.OrderLine {
	return database.OrderLine{
		ProductID:          item.ProductID,
		Name:               item.Name,
		Quantity:           item.Quantity,
		Price:              pricing.UnitPrice(item).Round(2),
		Seat:               seatID,
		Notes:              item.Notes,
		Options:            pricing.Describe(item),
		RemovedIngredients: item.RemovedIngredients,
	}
}

// Submit sends every unsent item of a table to the kitchen as one order and
// marks those items as sent. Both writes share a transaction; an item that
// is already marked is never priced or sent again.
func (s *TableService) Submit(ctx context.Context, tenantID uuid.UUID, tableID int32, createdBy uuid.UUID) (*OrderView, error) {
	if tableID <= 0 {
		return nil, ErrInvalidTable
	}

	order, draft, err := s.submitTx(ctx, tenantID, tableID, createdBy)
	if err != nil {
		return nil, err
	}
	s.metrics.Submission()

	view := toOrderView(order)
	s.notifier.OrderUpdated(ctx, view)
	if tv, err := s.viewOf(ctx, s.store, tenantID, tableID, &draft); err == nil {
		s.notifier.TableUpdated(ctx, *tv)
	}
	return &view, nil
}

func (s *TableService) submitTx(ctx context.Context, tenantID uuid.UUID, tableID int32, createdBy uuid.UUID) (database.KitchenOrder, database.Draft, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.KitchenOrder{}, database.Draft{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	draft, err := store.LockDraft(ctx, database.GetDraftParams{TenantID: tenantID, TableID: tableID})
	if err != nil {
		return database.KitchenOrder{}, database.Draft{}, notFound(err, ErrNothingToSubmit)
	}
	if draft.IsInPayment {
		return database.KitchenOrder{}, database.Draft{}, ErrTableInPayment
	}

	var lines []database.OrderLine
	total := decimal.Zero
	for si := range draft.Seats {
		seat := &draft.Seats[si]
		for ii := range seat.Items {
			item := &seat.Items[ii]
			if item.Submitted {
				continue
			}
			lines = append(lines, orderLine(*item, seat.ID))
			total = total.Add(lineAmount(*item))
			item.Submitted = true
		}
	}
	if len(lines) == 0 {
		return database.KitchenOrder{}, database.Draft{}, ErrNothingToSubmit
	}

	order, err := store.CreateKitchenOrder(ctx, database.CreateKitchenOrderParams{
		TenantID:    tenantID,
		TableID:     pgtype.Int4{Int32: tableID, Valid: true},
		Items:       lines,
		TotalAmount: decimalToNumeric(total),
		Status:      enum.OrderStatusInProgress,
		Source:      enum.OrderSourceWaiter,
		CreatedBy:   optionalUUID(createdBy),
	})
	if err != nil {
		return database.KitchenOrder{}, database.Draft{}, fmt.Errorf("create kitchen order: %w", err)
	}

	saved, err := store.UpsertDraft(ctx, database.UpsertDraftParams{
		TenantID:      tenantID,
		TableID:       tableID,
		Seats:         draft.Seats,
		PaymentMethod: draft.PaymentMethod,
		IsInPayment:   draft.IsInPayment,
	})
	if err != nil {
		return database.KitchenOrder{}, database.Draft{}, fmt.Errorf("mark items submitted: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.KitchenOrder{}, database.Draft{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, saved, nil
}
