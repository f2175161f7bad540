package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
	"github.com/mesa-pos/api/internal/pricing"
)

// AddItemRequest adds one item to a seat. SeatID 0 means the first seat.
type AddItemRequest struct {
	TenantID uuid.UUID
	TableID  int32
	SeatID   int32
	Item     database.DraftItem
}

func newDraft(tenantID uuid.UUID, tableID int32) database.Draft {
	return database.Draft{
		TenantID:      tenantID,
		TableID:       tableID,
		Seats:         []database.Seat{{ID: 1, Items: []database.DraftItem{}}},
		PaymentMethod: enum.PaymentMethodTogether,
	}
}

func findSeat(d *database.Draft, seatID int32) (*database.Seat, error) {
	if len(d.Seats) == 0 {
		return nil, ErrSeatNotFound
	}
	if seatID == 0 {
		return &d.Seats[0], nil
	}
	for i := range d.Seats {
		if d.Seats[i].ID == seatID {
			return &d.Seats[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrSeatNotFound, seatID)
}

// AddItem validates item and appends it, unsent, to a seat. The draft is
// created with a single seat on first use.
func (s *TableService) AddItem(ctx context.Context, req AddItemRequest) (*TableView, error) {
	if err := pricing.Validate(req.Item); err != nil {
		return nil, err
	}
	item := req.Item
	item.LineID = uuid.New()
	item.Submitted = false

	return s.mutateDraft(ctx, req.TenantID, req.TableID, true, func(d *database.Draft) error {
		seat, err := findSeat(d, req.SeatID)
		if err != nil {
			return err
		}
		seat.Items = append(seat.Items, item)
		return nil
	})
}

// RemoveItem drops an unsent item. Items already sent to the kitchen are
// frozen.
func (s *TableService) RemoveItem(ctx context.Context, tenantID uuid.UUID, tableID, seatID int32, lineID uuid.UUID) (*TableView, error) {
	return s.mutateDraft(ctx, tenantID, tableID, false, func(d *database.Draft) error {
		seat, err := findSeat(d, seatID)
		if err != nil {
			return err
		}
		for i, item := range seat.Items {
			if item.LineID != lineID {
				continue
			}
			if item.Submitted {
				return ErrItemSubmitted
			}
			seat.Items = append(seat.Items[:i], seat.Items[i+1:]...)
			return nil
		}
		return ErrItemNotFound
	})
}

// AddSeat appends a seat whose id is one past the highest id in use.
func (s *TableService) AddSeat(ctx context.Context, tenantID uuid.UUID, tableID int32, name string) (*TableView, error) {
	return s.mutateDraft(ctx, tenantID, tableID, true, func(d *database.Draft) error {
		var maxID int32
		for _, seat := range d.Seats {
			if seat.ID > maxID {
				maxID = seat.ID
			}
		}
		d.Seats = append(d.Seats, database.Seat{
			ID:    maxID + 1,
			Name:  strings.TrimSpace(name),
			Items: []database.DraftItem{},
		})
		return nil
	})
}

func (s *TableService) RenameSeat(ctx context.Context, tenantID uuid.UUID, tableID, seatID int32, name string) (*TableView, error) {
	return s.mutateDraft(ctx, tenantID, tableID, false, func(d *database.Draft) error {
		seat, err := findSeat(d, seatID)
		if err != nil {
			return err
		}
		seat.Name = strings.TrimSpace(name)
		return nil
	})
}

// SetPaymentMethod records how the table intends to pay. Splitting by N is
// chosen when the bill is prepared, not here.
func (s *TableService) SetPaymentMethod(ctx context.Context, tenantID uuid.UUID, tableID int32, method string) (*TableView, error) {
	if method != enum.PaymentMethodTogether && method != enum.PaymentMethodSeparated {
		return nil, ErrInvalidPaymentMethod
	}
	return s.mutateDraft(ctx, tenantID, tableID, true, func(d *database.Draft) error {
		d.PaymentMethod = method
		return nil
	})
}

// ResetTable puts the draft back to a single empty seat. Orders already sent
// to the kitchen are not touched.
func (s *TableService) ResetTable(ctx context.Context, tenantID uuid.UUID, tableID int32) (*TableView, error) {
	return s.mutateDraft(ctx, tenantID, tableID, true, func(d *database.Draft) error {
		fresh := newDraft(tenantID, tableID)
		d.Seats = fresh.Seats
		d.PaymentMethod = fresh.PaymentMethod
		return nil
	})
}

// mutateDraft reads the whole draft, applies fn and writes the whole document
// back. Two writers racing on one table both succeed and the later write
// wins; there is no version check.
func (s *TableService) mutateDraft(ctx context.Context, tenantID uuid.UUID, tableID int32, create bool, fn func(*database.Draft) error) (*TableView, error) {
	if tableID <= 0 {
		return nil, ErrInvalidTable
	}

	draft, err := s.store.GetDraft(ctx, database.GetDraftParams{TenantID: tenantID, TableID: tableID})
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get draft: %w", err)
		}
		if !create {
			return nil, ErrDraftNotFound
		}
		draft = newDraft(tenantID, tableID)
	}
	if draft.IsInPayment {
		return nil, ErrTableInPayment
	}

	if err := fn(&draft); err != nil {
		return nil, err
	}

	saved, err := s.store.UpsertDraft(ctx, database.UpsertDraftParams{
		TenantID:      tenantID,
		TableID:       tableID,
		Seats:         draft.Seats,
		PaymentMethod: draft.PaymentMethod,
		IsInPayment:   draft.IsInPayment,
	})
	if err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}

	view, err := s.viewOf(ctx, s.store, tenantID, tableID, &saved)
	if err != nil {
		return nil, err
	}
	s.notifier.TableUpdated(ctx, *view)
	return view, nil
}
