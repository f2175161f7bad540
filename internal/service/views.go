package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/mesa-pos/api/internal/database"
	"github.com/shopspring/decimal"
)

// TableView is the snapshot of one table: its draft (nil when the table has
// none), its active waiter orders and the derived status.
type TableView struct {
	Key      string          `json:"key"`
	TenantID uuid.UUID       `json:"tenant_id"`
	TableID  int32           `json:"table_id"`
	Draft    *database.Draft `json:"draft"`
	Orders   []OrderView     `json:"orders"`
	Status   string          `json:"status"`
	// Total is what the table owes right now: unsent draft lines plus every
	// active order.
	Total string `json:"total"`
}

// OrderView is the client shape of a kitchen order.
type OrderView struct {
	ID                 uuid.UUID            `json:"id"`
	TenantID           uuid.UUID            `json:"tenant_id"`
	TableID            *int32               `json:"table_id"`
	Items              []database.OrderLine `json:"items"`
	TotalAmount        string               `json:"total_amount"`
	Status             string               `json:"status"`
	Source             string               `json:"source"`
	IsDelivery         bool                 `json:"is_delivery"`
	DeliveryAddress    *string              `json:"delivery_address"`
	CustomerName       *string              `json:"customer_name"`
	AssignedDriverID   *uuid.UUID           `json:"assigned_driver_id"`
	AssignedDriverName *string              `json:"assigned_driver_name"`
	CheckoutSessionID  *string              `json:"checkout_session_id"`
	NextStatuses       []string             `json:"next_statuses"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// BillView is the client shape of a bill.
type BillView struct {
	ID            uuid.UUID           `json:"id"`
	TenantID      uuid.UUID           `json:"tenant_id"`
	TableID       int32               `json:"table_id"`
	Items         []database.BillLine `json:"items"`
	TotalAmount   string              `json:"total_amount"`
	PaymentMethod string              `json:"payment_method"`
	Status        string              `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
	ClosedAt      *time.Time          `json:"closed_at"`
}

func toOrderView(o database.KitchenOrder) OrderView {
	v := OrderView{
		ID:                 o.ID,
		TenantID:           o.TenantID,
		Items:              o.Items,
		TotalAmount:        numericToDecimal(o.TotalAmount).StringFixed(2),
		Status:             o.Status,
		Source:             o.Source,
		IsDelivery:         o.IsDelivery,
		DeliveryAddress:    textOrNil(o.DeliveryAddress),
		CustomerName:       textOrNil(o.CustomerName),
		AssignedDriverName: textOrNil(o.AssignedDriverName),
		CheckoutSessionID:  textOrNil(o.CheckoutSessionID),
		NextStatuses:       NextStatuses(o),
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
	if v.Items == nil {
		v.Items = []database.OrderLine{}
	}
	if o.TableID.Valid {
		id := o.TableID.Int32
		v.TableID = &id
	}
	if o.AssignedDriverID.Valid {
		id := uuid.UUID(o.AssignedDriverID.Bytes)
		v.AssignedDriverID = &id
	}
	return v
}

func toOrderViews(orders []database.KitchenOrder) []OrderView {
	out := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderView(o))
	}
	return out
}

func toBillView(b database.Bill) BillView {
	v := BillView{
		ID:            b.ID,
		TenantID:      b.TenantID,
		TableID:       b.TableID,
		Items:         b.Items,
		TotalAmount:   numericToDecimal(b.TotalAmount).StringFixed(2),
		PaymentMethod: b.PaymentMethod,
		Status:        b.Status,
		CreatedAt:     b.CreatedAt,
	}
	if v.Items == nil {
		v.Items = []database.BillLine{}
	}
	if b.ClosedAt.Valid {
		t := b.ClosedAt.Time
		v.ClosedAt = &t
	}
	return v
}

// buildTableView assembles the snapshot of a table. draft may be nil.
func buildTableView(tenantID uuid.UUID, tableID int32, draft *database.Draft, orders []database.KitchenOrder) TableView {
	total := decimal.Zero
	if draft != nil {
		for _, seat := range draft.Seats {
			for _, item := range seat.Items {
				if !item.Submitted {
					total = total.Add(lineAmount(item))
				}
			}
		}
	}
	active := make([]database.KitchenOrder, 0, len(orders))
	for _, o := range orders {
		if IsActiveStatus(o.Status) {
			active = append(active, o)
			total = total.Add(numericToDecimal(o.TotalAmount))
		}
	}
	return TableView{
		Key:      draftKey(tenantID, tableID),
		TenantID: tenantID,
		TableID:  tableID,
		Draft:    draft,
		Orders:   toOrderViews(active),
		Status:   ProjectTableStatus(draft, active),
		Total:    total.StringFixed(2),
	}
}
