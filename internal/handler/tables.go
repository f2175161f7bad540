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
	"github.com/mesa-pos/api/internal/middleware"
	"github.com/mesa-pos/api/internal/service"
)

// TableServicer defines the service methods needed by table and bill
// handlers. Satisfied by *service.TableService.
type TableServicer interface {
	GetTable(ctx context.Context, tenantID uuid.UUID, tableID int32) (*service.TableView, error)
	ListTables(ctx context.Context, tenantID uuid.UUID) ([]service.TableView, error)
	AddSeat(ctx context.Context, tenantID uuid.UUID, tableID int32, name string) (*service.TableView, error)
	RenameSeat(ctx context.Context, tenantID uuid.UUID, tableID, seatID int32, name string) (*service.TableView, error)
	AddItem(ctx context.Context, req service.AddItemRequest) (*service.TableView, error)
	RemoveItem(ctx context.Context, tenantID uuid.UUID, tableID, seatID int32, lineID uuid.UUID) (*service.TableView, error)
	SetPaymentMethod(ctx context.Context, tenantID uuid.UUID, tableID int32, method string) (*service.TableView, error)
	ResetTable(ctx context.Context, tenantID uuid.UUID, tableID int32) (*service.TableView, error)
	Submit(ctx context.Context, tenantID uuid.UUID, tableID int32, createdBy uuid.UUID) (*service.OrderView, error)
	PrepareBill(ctx context.Context, req service.PrepareBillRequest) (*service.BillView, error)
	AbortPayment(ctx context.Context, tenantID uuid.UUID, tableID int32) (*service.TableView, error)
	CloseBill(ctx context.Context, tenantID, billID uuid.UUID, tableID int32) (*service.BillView, error)
	GetBill(ctx context.Context, tenantID, billID uuid.UUID, splitWays int) (*service.BillView, *service.BillPresentation, error)
	ListBills(ctx context.Context, arg database.ListBillsParams) ([]service.BillView, error)
}

// TableHandler serves the waiter floor: drafts, submission and billing.
type TableHandler struct {
	svc TableServicer
}

func NewTableHandler(svc TableServicer) *TableHandler {
	return &TableHandler{svc: svc}
}

// RegisterRoutes registers table and bill endpoints.
// Expected to be mounted inside a tenant-scoped subrouter: /tenants/{tid}
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tables", h.List)
	r.Route("/tables/{table}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/seats", h.AddSeat)
		r.Patch("/seats/{seat}", h.RenameSeat)
		r.Post("/seats/{seat}/items", h.AddItem)
		r.Delete("/seats/{seat}/items/{lid}", h.RemoveItem)
		r.Put("/payment-method", h.SetPaymentMethod)
		r.Post("/reset", h.Reset)
		r.Post("/submit", h.Submit)
		r.Post("/bill", h.PrepareBill)
		r.Post("/bill/abort", h.AbortPayment)
	})

	r.Get("/bills", h.ListBills)
	r.Get("/bills/{id}", h.GetBill)
	r.Post("/bills/{id}/close", h.CloseBill)
}

// --- Request / Response types ---

type seatRequest struct {
	Name string `json:"name"`
}

type paymentMethodRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type prepareBillRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type closeBillRequest struct {
	TableID int32 `json:"table_id"`
}

type billResponse struct {
	Bill         *service.BillView         `json:"bill"`
	Presentation *service.BillPresentation `json:"presentation"`
}

// --- Handlers ---

// tableScope parses {tid} and {table}. It writes the 400 itself.
func tableScope(w http.ResponseWriter, r *http.Request) (uuid.UUID, int32, bool) {
	tenantID, err := tenantParam(r)
	if err != nil {
		writeBadRequest(w, "invalid tenant ID")
		return uuid.Nil, 0, false
	}
	tableID, err := tableParam(r)
	if err != nil {
		writeBadRequest(w, "invalid table ID")
		return uuid.Nil, 0, false
	}
	return tenantID, tableID, true
}

func seatParam(w http.ResponseWriter, r *http.Request) (int32, bool) {
	seatID, err := int32Param(r, "seat")
	if err != nil || seatID < 0 {
		writeBadRequest(w, "invalid seat ID")
		return 0, false
	}
	return seatID, true
}

// List handles GET /tenants/{tid}/tables.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		writeBadRequest(w, "invalid tenant ID")
		return
	}

	views, err := h.svc.ListTables(r.Context(), tenantID)
	if err != nil {
		writeError(w, r, "list tables", err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// Get handles GET /tenants/{tid}/tables/{table}.
func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, tableID, ok := tableScope(w, r)
	if !ok {
		return
	}

	view, err := h.svc.GetTable(r.Context(), tenantID, tableID)
	if err != nil {
		writeError(w, r, "get table", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// AddSeat handles POST /tenants/{tid}/tables/{table}/seats.
func (h *TableHandler) AddSeat(w http.ResponseWriter, r *http.Request) {
	tenantID, tableID, ok := tableScope(w, r)
	if !ok {
		return
	}

	var req seatRequest
	if err := decodeOptional(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	view, err := h.svc.AddSeat(r.Context(), tenantID, tableID, req.Name)
	if err != nil {
		writeError(w, r, "add seat", err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// RenameSeat handles PATCH /tenants/{tid}/tables/{table}/seats/{seat}.
func (h *TableHandler) RenameSeat(w http.ResponseWriter, r *http.Request) {
	tenantID, tableID, ok := tableScope(w, r)
	if !ok {
		return
	}
	seatID, ok := seatParam(w, r)
	if !ok {
		return
	}

	var req seatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	view, err := h.svc.RenameSeat(r.Context(), tenantID, tableID, seatID, req.Name)
	if err != nil {
		writeError(w, r, "rename seat", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// AddItem handles POST /tenants/{tid}/tables/{table}/seats/{seat}/items.
// The body is the item snapshot; seat 0 means the first seat.
func (h *TableHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	tenantID, tableID, ok := tableScope(w, r)
	if !ok {
		return
	}
	seatID, ok := seatParam(w, r)
	if !ok {
		return
	}

	var item database.DraftItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	view, err := h.svc.AddItem(r.Context(), service.AddItemRequest{
		TenantID: tenantID,
		TableID:  tableID,
		SeatID:   seatID,
		Item:     item,
	})
	if err != nil {
		writeError(w, r, "add item", err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// RemoveItem handles DELETE /tenants/{tid}/tables/{table}/seats/{seat}/items/{lid}.
func (h *TableHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	tenantID, tableID, ok := tableScope(w, r)
	if !ok {
		return
	}
	seatID, ok := seatParam(w, r)
	if !ok {
		return
	}
	lineID, err := uuid.Parse(chi.URLParam(r, "lid"))
	if err != nil {
		writeBadRequest(w, "invalid line ID")
		return
	}

	view, err := h.svc.RemoveItem(r.Context(), tenantID, tableID, seatID, lineID)
	if err != nil {
		writeError(w, r, "remove item", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SetPaymentMethod handles PUT /tenants/{tid}/tables/{table}/payment-method.
func (h *TableHandler) SetPaymentMethod(w http.ResponseWriter, r *http.Request) {
	tenantID, tableID, ok := tableScope(w, r)
	if !ok {
		return
	}

	var req paymentMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	view, err := h.svc.SetPaymentMethod(r.Context(), tenantID, tableID, req.PaymentMethod)
	if err != nil {
		writeError(w, r, "set payment method", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Reset handles POST /tenants/{tid}/tables/{table}/reset.
func (h *TableHandler) Reset(w http.ResponseWriter, r *http.Request) {
	tenantID, tableID, ok := tableScope(w, r)
	if !ok {
		return
	}

	view, err := h.svc.ResetTable(r.Context(), tenantID, tableID)
	if err != nil {
		writeError(w, r, "reset table", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Submit handles POST /tenants/{tid}/tables/{table}/submit.
func (h *TableHandler) Submit(w http.ResponseWriter, r *http.Request) {
	tenantID, tableID, ok := tableScope(w, r)
	if !ok {
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "not authenticated"})
		return
	}

	order, err := h.svc.Submit(r.Context(), tenantID, tableID, claims.UserID)
	if err != nil {
		writeError(w, r, "submit table", err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// PrepareBill handles POST /tenants/{tid}/tables/{table}/bill.
func (h *TableHandler) PrepareBill(w http.ResponseWriter, r *http.Request) {
	tenantID, tableID, ok := tableScope(w, r)
	if !ok {
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "not authenticated"})
		return
	}

	var req prepareBillRequest
	if err := decodeOptional(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	bill, err := h.svc.PrepareBill(r.Context(), service.PrepareBillRequest{
		TenantID:      tenantID,
		TableID:       tableID,
		PaymentMethod: req.PaymentMethod,
		CreatedBy:     claims.UserID,
	})
	if err != nil {
		writeError(w, r, "prepare bill", err)
		return
	}
	writeJSON(w, http.StatusCreated, bill)
}

// AbortPayment handles POST /tenants/{tid}/tables/{table}/bill/abort.
func (h *TableHandler) AbortPayment(w http.ResponseWriter, r *http.Request) {
	tenantID, tableID, ok := tableScope(w, r)
	if !ok {
		return
	}

	view, err := h.svc.AbortPayment(r.Context(), tenantID, tableID)
	if err != nil {
		writeError(w, r, "abort payment", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListBills handles GET /tenants/{tid}/bills?table=&limit=&offset=.
func (h *TableHandler) ListBills(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		writeBadRequest(w, "invalid tenant ID")
		return
	}

	limit, offset := pagination(r)
	params := database.ListBillsParams{TenantID: tenantID, Limit: limit, Offset: offset}
	if s := r.URL.Query().Get("table"); s != "" {
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			writeBadRequest(w, "invalid table")
			return
		}
		params.TableID = pgtype.Int4{Int32: int32(n), Valid: true}
	}

	bills, err := h.svc.ListBills(r.Context(), params)
	if err != nil {
		writeError(w, r, "list bills", err)
		return
	}
	writeJSON(w, http.StatusOK, bills)
}

// GetBill handles GET /tenants/{tid}/bills/{id}?split=N.
func (h *TableHandler) GetBill(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		writeBadRequest(w, "invalid tenant ID")
		return
	}
	billID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid bill ID")
		return
	}

	split := 0
	if s := r.URL.Query().Get("split"); s != "" {
		if split, err = strconv.Atoi(s); err != nil {
			writeBadRequest(w, "invalid split")
			return
		}
	}

	bill, p, err := h.svc.GetBill(r.Context(), tenantID, billID, split)
	if err != nil {
		writeError(w, r, "get bill", err)
		return
	}
	writeJSON(w, http.StatusOK, billResponse{Bill: bill, Presentation: p})
}

// CloseBill handles POST /tenants/{tid}/bills/{id}/close. The body names the
// table the waiter believes the bill belongs to.
func (h *TableHandler) CloseBill(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		writeBadRequest(w, "invalid tenant ID")
		return
	}
	billID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid bill ID")
		return
	}

	var req closeBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	bill, err := h.svc.CloseBill(r.Context(), tenantID, billID, req.TableID)
	if err != nil {
		writeError(w, r, "close bill", err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}
