package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
	"github.com/mesa-pos/api/internal/logging"
	"github.com/mesa-pos/api/internal/middleware"
	"github.com/mesa-pos/api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Get(ctx context.Context, tenantID, orderID uuid.UUID) (*service.OrderView, error)
	List(ctx context.Context, arg database.ListKitchenOrdersParams) ([]service.OrderView, error)
	UpdateStatus(ctx context.Context, tenantID, orderID uuid.UUID, next string) (*service.OrderView, error)
	Cancel(ctx context.Context, tenantID, orderID uuid.UUID) (*service.OrderView, error)
	AssignDriver(ctx context.Context, tenantID, orderID, driverID uuid.UUID, driverName string) (*service.OrderView, error)
	CreateOnlineOrder(ctx context.Context, req service.OnlineOrderRequest) (*service.OrderView, bool, error)
}

// MenuLister lists the active menu of a tenant. Satisfied by *database.Queries.
type MenuLister interface {
	ListMenuItems(ctx context.Context, tenantID uuid.UUID) ([]database.MenuItem, error)
}

// OrderHandler serves the kitchen, orders and driver views.
type OrderHandler struct {
	svc  OrderServicer
	menu MenuLister
}

// NewOrderHandler creates a new OrderHandler. menu may be nil, in which case
// lines are never flagged as unresolved.
func NewOrderHandler(svc OrderServicer, menu MenuLister) *OrderHandler {
	return &OrderHandler{svc: svc, menu: menu}
}

// RegisterRoutes registers order endpoints.
// Expected to be mounted inside a tenant-scoped subrouter: /tenants/{tid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Post("/{id}/assign-driver", h.AssignDriver)
	r.Post("/{id}/cancel", h.Cancel)
}

// RegisterOwnerRoutes registers owner-only order endpoints on the same mount.
func (h *OrderHandler) RegisterOwnerRoutes(r chi.Router) {
	r.Post("/recover", h.Recover)
}

// --- Request / Response types ---

// orderResponse flags lines whose product no longer exists on the menu.
// Their stored price still applies.
type orderResponse struct {
	service.OrderView
	UnresolvedProducts []string `json:"unresolved_product_ids,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type assignDriverRequest struct {
	DriverID   string `json:"driver_id"`
	DriverName string `json:"driver_name"`
}

// --- Handlers ---

func orderScope(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	tenantID, err := tenantParam(r)
	if err != nil {
		writeBadRequest(w, "invalid tenant ID")
		return uuid.Nil, uuid.Nil, false
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid order ID")
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, orderID, true
}

// List handles GET /tenants/{tid}/orders?status=&source=&table=&driver=.
// driver=me selects the orders assigned to the caller.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		writeBadRequest(w, "invalid tenant ID")
		return
	}

	limit, offset := pagination(r)
	params := database.ListKitchenOrdersParams{TenantID: tenantID, Limit: limit, Offset: offset}

	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if s := q.Get("source"); s != "" {
		params.Source = pgtype.Text{String: s, Valid: true}
	}
	if s := q.Get("table"); s != "" {
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil || n <= 0 {
			writeBadRequest(w, "invalid table")
			return
		}
		params.TableID = pgtype.Int4{Int32: int32(n), Valid: true}
	}
	if s := q.Get("driver"); s != "" {
		driverID, ok := h.driverFilter(r, s)
		if !ok {
			writeBadRequest(w, "invalid driver")
			return
		}
		params.DriverID = pgtype.UUID{Bytes: driverID, Valid: true}
	}

	orders, err := h.svc.List(r.Context(), params)
	if err != nil {
		writeError(w, r, "list orders", err)
		return
	}

	menu := h.menuIndex(r, tenantID)
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o, menu)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) driverFilter(r *http.Request, s string) (uuid.UUID, bool) {
	if s == "me" {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			return uuid.Nil, false
		}
		return claims.UserID, true
	}
	id, err := uuid.Parse(s)
	return id, err == nil
}

// Get handles GET /tenants/{tid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, orderID, ok := orderScope(w, r)
	if !ok {
		return
	}

	order, err := h.svc.Get(r.Context(), tenantID, orderID)
	if err != nil {
		writeError(w, r, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(*order, h.menuIndex(r, tenantID)))
}

// UpdateStatus handles PATCH /tenants/{tid}/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, orderID, ok := orderScope(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Status == "" {
		writeBadRequest(w, "status is required")
		return
	}

	order, err := h.svc.UpdateStatus(r.Context(), tenantID, orderID, req.Status)
	if err != nil {
		writeError(w, r, "update order status", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// AssignDriver handles POST /tenants/{tid}/orders/{id}/assign-driver.
func (h *OrderHandler) AssignDriver(w http.ResponseWriter, r *http.Request) {
	tenantID, orderID, ok := orderScope(w, r)
	if !ok {
		return
	}

	var req assignDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	driverID, err := uuid.Parse(req.DriverID)
	if err != nil {
		writeBadRequest(w, "invalid driver_id")
		return
	}
	if req.DriverName == "" {
		writeBadRequest(w, "driver_name is required")
		return
	}

	order, err := h.svc.AssignDriver(r.Context(), tenantID, orderID, driverID, req.DriverName)
	if err != nil {
		writeError(w, r, "assign driver", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// Cancel handles POST /tenants/{tid}/orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenantID, orderID, ok := orderScope(w, r)
	if !ok {
		return
	}

	order, err := h.svc.Cancel(r.Context(), tenantID, orderID)
	if err != nil {
		writeError(w, r, "cancel order", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// Recover handles POST /tenants/{tid}/orders/recover: an owner re-records a
// paid checkout whose webhook never arrived.
func (h *OrderHandler) Recover(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		writeBadRequest(w, "invalid tenant ID")
		return
	}

	var p checkoutPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	order, created, err := h.svc.CreateOnlineOrder(r.Context(), p.request(tenantID, enum.OrderSourceOnlineRecovery))
	if err != nil {
		writeError(w, r, "recover online order", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, order)
}

// --- Helpers ---

// menuIndex returns the ids of the tenant's active menu items. A nil
// map disables flagging; lookup failures only cost the flag.
func (h *OrderHandler) menuIndex(r *http.Request, tenantID uuid.UUID) map[string]bool {
	if h.menu == nil {
		return nil
	}
	items, err := h.menu.ListMenuItems(r.Context(), tenantID)
	if err != nil {
		logging.FromContext(r.Context()).WithError(err).Warn("list menu items for unresolved flag")
		return nil
	}
	known := make(map[string]bool, len(items))
	for _, it := range items {
		known[it.ID.String()] = true
	}
	return known
}

func toOrderResponse(o service.OrderView, menu map[string]bool) orderResponse {
	resp := orderResponse{OrderView: o}
	if menu == nil {
		return resp
	}
	seen := map[string]bool{}
	for _, line := range o.Items {
		if !menu[line.ProductID] && !seen[line.ProductID] {
			seen[line.ProductID] = true
			resp.UnresolvedProducts = append(resp.UnresolvedProducts, line.ProductID)
		}
	}
	return resp
}
