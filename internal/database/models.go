package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Staff struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type MenuItem struct {
	ID               uuid.UUID      `json:"id"`
	TenantID         uuid.UUID      `json:"tenant_id"`
	Name             string         `json:"name"`
	BasePrice        pgtype.Numeric `json:"base_price"`
	PromotionalPrice pgtype.Numeric `json:"promotional_price"`
	IsActive         bool           `json:"is_active"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Draft is the live document of one physical table.
type Draft struct {
	TenantID      uuid.UUID `json:"tenant_id"`
	TableID       int32     `json:"table_id"`
	Seats         []Seat    `json:"seats"`
	PaymentMethod string    `json:"payment_method"`
	IsInPayment   bool      `json:"is_in_payment"`
	LastActivity  time.Time `json:"last_activity"`
}

type Seat struct {
	ID    int32       `json:"id"`
	Name  string      `json:"name,omitempty"`
	Items []DraftItem `json:"items"`
}

// DraftItem is a snapshot of a menu item and the options picked for it.
// Prices are copied at the time the waiter adds the item.
type DraftItem struct {
	LineID               uuid.UUID          `json:"line_id"`
	ProductID            string             `json:"product_id"`
	Name                 string             `json:"name"`
	Quantity             int32              `json:"quantity"`
	Price                decimal.Decimal    `json:"price"`
	PromotionalPrice     *decimal.Decimal   `json:"promotional_price,omitempty"`
	Notes                string             `json:"notes,omitempty"`
	SelectedSize         *PricedOption      `json:"selected_size,omitempty"`
	SelectedAddons       []PricedOption     `json:"selected_addons,omitempty"`
	SelectedStuffedCrust *PricedOption      `json:"selected_stuffed_crust,omitempty"`
	SelectedFlavors      []FlavorShare      `json:"selected_flavors,omitempty"`
	FlavorCombination    *FlavorCombination `json:"flavor_combination,omitempty"`
	RemovedIngredients   []string           `json:"removed_ingredients,omitempty"`
	Submitted            bool               `json:"submitted"`
}

type PricedOption struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type FlavorShare struct {
	Name            string          `json:"name"`
	AdditionalPrice decimal.Decimal `json:"additional_price"`
	Percentage      decimal.Decimal `json:"percentage"`
}

type FlavorCombination struct {
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Flavors []FlavorShare   `json:"flavors,omitempty"`
}

// OrderLine is a priced line of a kitchen order. Price is the unit price.
type OrderLine struct {
	ProductID          string          `json:"product_id"`
	Name               string          `json:"name"`
	Quantity           int32           `json:"quantity"`
	Price              decimal.Decimal `json:"price"`
	Seat               int32           `json:"seat,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	Options            []string        `json:"options,omitempty"`
	RemovedIngredients []string        `json:"removed_ingredients,omitempty"`
}

// BillLine is an order line copied into a bill, tagged with its source order.
type BillLine struct {
	OrderLine
	OrderID uuid.UUID `json:"order_id"`
}

type KitchenOrder struct {
	ID                 uuid.UUID      `json:"id"`
	TenantID           uuid.UUID      `json:"tenant_id"`
	TableID            pgtype.Int4    `json:"table_id"`
	Items              []OrderLine    `json:"items"`
	TotalAmount        pgtype.Numeric `json:"total_amount"`
	Status             string         `json:"status"`
	Source             string         `json:"source"`
	IsDelivery         bool           `json:"is_delivery"`
	DeliveryAddress    pgtype.Text    `json:"delivery_address"`
	CustomerName       pgtype.Text    `json:"customer_name"`
	AssignedDriverID   pgtype.UUID    `json:"assigned_driver_id"`
	AssignedDriverName pgtype.Text    `json:"assigned_driver_name"`
	CheckoutSessionID  pgtype.Text    `json:"checkout_session_id"`
	CreatedBy          pgtype.UUID    `json:"created_by"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

type Bill struct {
	ID            uuid.UUID          `json:"id"`
	TenantID      uuid.UUID          `json:"tenant_id"`
	TableID       int32              `json:"table_id"`
	Items         []BillLine         `json:"items"`
	TotalAmount   pgtype.Numeric     `json:"total_amount"`
	PaymentMethod string             `json:"payment_method"`
	Status        string             `json:"status"`
	CreatedBy     pgtype.UUID        `json:"created_by"`
	CreatedAt     time.Time          `json:"created_at"`
	ClosedAt      pgtype.Timestamptz `json:"closed_at"`
}
