package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/database"
	"github.com/shopspring/decimal"
)

// MenuStore defines the database methods needed by menu handlers.
// Satisfied by *database.Queries.
type MenuStore interface {
	ListMenuItems(ctx context.Context, tenantID uuid.UUID) ([]database.MenuItem, error)
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	DeactivateMenuItem(ctx context.Context, arg database.DeactivateMenuItemParams) (int64, error)
}

// MenuHandler keeps the minimal menu used to flag unresolved order lines.
type MenuHandler struct {
	store MenuStore
}

func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

// RegisterRoutes registers read endpoints: /tenants/{tid}/menu-items
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

// RegisterOwnerRoutes registers write endpoints on the same mount.
func (h *MenuHandler) RegisterOwnerRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Delete("/{id}", h.Delete)
}

type createMenuItemRequest struct {
	Name             string  `json:"name"`
	BasePrice        string  `json:"base_price"`
	PromotionalPrice *string `json:"promotional_price"`
}

type menuItemResponse struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	BasePrice        string    `json:"base_price"`
	PromotionalPrice *string   `json:"promotional_price"`
}

func toMenuItemResponse(m database.MenuItem) menuItemResponse {
	resp := menuItemResponse{
		ID:        m.ID,
		Name:      m.Name,
		BasePrice: numericString(m.BasePrice),
	}
	if m.PromotionalPrice.Valid {
		s := numericString(m.PromotionalPrice)
		resp.PromotionalPrice = &s
	}
	return resp
}

// List handles GET /tenants/{tid}/menu-items.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		writeBadRequest(w, "invalid tenant ID")
		return
	}

	items, err := h.store.ListMenuItems(r.Context(), tenantID)
	if err != nil {
		writeError(w, r, "list menu items", err)
		return
	}
	resp := make([]menuItemResponse, len(items))
	for i, m := range items {
		resp[i] = toMenuItemResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /tenants/{tid}/menu-items.
func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		writeBadRequest(w, "invalid tenant ID")
		return
	}

	var req createMenuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}
	base, err := decimal.NewFromString(req.BasePrice)
	if err != nil || base.IsNegative() {
		writeBadRequest(w, "invalid base_price")
		return
	}
	params := database.CreateMenuItemParams{
		TenantID:  tenantID,
		Name:      req.Name,
		BasePrice: decimalToNumeric(base),
	}
	if req.PromotionalPrice != nil {
		promo, err := decimal.NewFromString(*req.PromotionalPrice)
		if err != nil || promo.IsNegative() {
			writeBadRequest(w, "invalid promotional_price")
			return
		}
		params.PromotionalPrice = decimalToNumeric(promo)
	}

	item, err := h.store.CreateMenuItem(r.Context(), params)
	if err != nil {
		writeError(w, r, "create menu item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMenuItemResponse(item))
}

// Delete handles DELETE /tenants/{tid}/menu-items/{id}. Items are
// deactivated, never removed, so old orders keep their reference.
func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		writeBadRequest(w, "invalid tenant ID")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid menu item ID")
		return
	}

	n, err := h.store.DeactivateMenuItem(r.Context(), database.DeactivateMenuItemParams{ID: id, TenantID: tenantID})
	if err != nil {
		writeError(w, r, "deactivate menu item", err)
		return
	}
	if n == 0 {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "menu item not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func numericString(n pgtype.Numeric) string {
	if !n.Valid || n.Int == nil {
		return "0.00"
	}
	return decimal.NewFromBigInt(n.Int, n.Exp).StringFixed(2)
}
