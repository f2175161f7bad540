package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mesa-pos/api/internal/auth"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
	"github.com/mesa-pos/api/internal/handler"
	"github.com/mesa-pos/api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock OrderServicer ---

type mockOrderService struct {
	getFn          func(ctx context.Context, tenantID, orderID uuid.UUID) (*service.OrderView, error)
	listFn         func(ctx context.Context, arg database.ListKitchenOrdersParams) ([]service.OrderView, error)
	updateStatusFn func(ctx context.Context, tenantID, orderID uuid.UUID, next string) (*service.OrderView, error)
	cancelFn       func(ctx context.Context, tenantID, orderID uuid.UUID) (*service.OrderView, error)
	assignDriverFn func(ctx context.Context, tenantID, orderID, driverID uuid.UUID, driverName string) (*service.OrderView, error)
	createOnlineFn func(ctx context.Context, req service.OnlineOrderRequest) (*service.OrderView, bool, error)
}

func (m *mockOrderService) Get(ctx context.Context, tenantID, orderID uuid.UUID) (*service.OrderView, error) {
	if m.getFn != nil {
		return m.getFn(ctx, tenantID, orderID)
	}
	return nil, errNotMocked
}

func (m *mockOrderService) List(ctx context.Context, arg database.ListKitchenOrdersParams) ([]service.OrderView, error) {
	if m.listFn != nil {
		return m.listFn(ctx, arg)
	}
	return nil, errNotMocked
}

func (m *mockOrderService) UpdateStatus(ctx context.Context, tenantID, orderID uuid.UUID, next string) (*service.OrderView, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, tenantID, orderID, next)
	}
	return nil, errNotMocked
}

func (m *mockOrderService) Cancel(ctx context.Context, tenantID, orderID uuid.UUID) (*service.OrderView, error) {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, tenantID, orderID)
	}
	return nil, errNotMocked
}

func (m *mockOrderService) AssignDriver(ctx context.Context, tenantID, orderID, driverID uuid.UUID, driverName string) (*service.OrderView, error) {
	if m.assignDriverFn != nil {
		return m.assignDriverFn(ctx, tenantID, orderID, driverID, driverName)
	}
	return nil, errNotMocked
}

func (m *mockOrderService) CreateOnlineOrder(ctx context.Context, req service.OnlineOrderRequest) (*service.OrderView, bool, error) {
	if m.createOnlineFn != nil {
		return m.createOnlineFn(ctx, req)
	}
	return nil, false, errNotMocked
}

// --- Mock MenuLister ---

type mockMenu struct {
	items []database.MenuItem
	err   error
}

func (m *mockMenu) ListMenuItems(_ context.Context, _ uuid.UUID) ([]database.MenuItem, error) {
	return m.items, m.err
}

// --- Helpers ---

func setupOrderRouter(svc *mockOrderService, menu handler.MenuLister, claims *auth.Claims) *chi.Mux {
	h := handler.NewOrderHandler(svc, menu)
	return tenantRouter(claims, func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			h.RegisterRoutes(r)
			h.RegisterOwnerRoutes(r)
		})
	})
}

func ordersPath(tenantID uuid.UUID, rest string) string {
	return "/tenants/" + tenantID.String() + "/orders" + rest
}

func testOrder(tenantID uuid.UUID, status string, productIDs ...string) service.OrderView {
	o := service.OrderView{
		ID:          uuid.New(),
		TenantID:    tenantID,
		TotalAmount: "20.00",
		Status:      status,
		Source:      enum.OrderSourceOnline,
	}
	for _, id := range productIDs {
		o.Items = append(o.Items, database.OrderLine{ProductID: id, Name: id, Quantity: 1})
	}
	return o
}

// --- List tests ---

func TestListOrders_Filters(t *testing.T) {
	tenantID := uuid.New()
	claims := testClaims(tenantID, enum.StaffRoleDriver)
	var got database.ListKitchenOrdersParams
	svc := &mockOrderService{
		listFn: func(_ context.Context, arg database.ListKitchenOrdersParams) ([]service.OrderView, error) {
			got = arg
			return []service.OrderView{}, nil
		},
	}

	rr := doRequest(t, setupOrderRouter(svc, nil, claims), "GET",
		ordersPath(tenantID, "?status=Out+for+Delivery&source=online&driver=me&offset=20"), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	assert.Equal(t, tenantID, got.TenantID)
	assert.Equal(t, enum.OrderStatusOutForDelivery, got.Status.String)
	assert.Equal(t, enum.OrderSourceOnline, got.Source.String)
	require.True(t, got.DriverID.Valid)
	assert.Equal(t, claims.UserID, uuid.UUID(got.DriverID.Bytes))
	assert.False(t, got.TableID.Valid)
	assert.Equal(t, int32(20), got.Limit)
	assert.Equal(t, int32(20), got.Offset)
}

func TestListOrders_BadFilters(t *testing.T) {
	tenantID := uuid.New()
	router := setupOrderRouter(&mockOrderService{}, nil, nil)

	for _, q := range []string{"?table=0", "?table=x", "?driver=someone", "?driver=me"} {
		rr := doRequest(t, router, "GET", ordersPath(tenantID, q), nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestListOrders_FlagsUnresolvedProducts(t *testing.T) {
	tenantID := uuid.New()
	known := uuid.New()
	gone := uuid.New().String()
	svc := &mockOrderService{
		listFn: func(context.Context, database.ListKitchenOrdersParams) ([]service.OrderView, error) {
			return []service.OrderView{
				testOrder(tenantID, enum.OrderStatusPending, known.String(), gone, gone),
				testOrder(tenantID, enum.OrderStatusPending, known.String()),
			}, nil
		},
	}
	menu := &mockMenu{items: []database.MenuItem{{ID: known, TenantID: tenantID, Name: "Pizza"}}}

	rr := doRequest(t, setupOrderRouter(svc, menu, nil), "GET", ordersPath(tenantID, ""), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeList(t, rr)
	require.Len(t, resp, 2)

	assert.Equal(t, []interface{}{gone}, resp[0]["unresolved_product_ids"])
	_, flagged := resp[1]["unresolved_product_ids"]
	assert.False(t, flagged)
}

func TestListOrders_MenuFailureSkipsFlag(t *testing.T) {
	tenantID := uuid.New()
	svc := &mockOrderService{
		listFn: func(context.Context, database.ListKitchenOrdersParams) ([]service.OrderView, error) {
			return []service.OrderView{testOrder(tenantID, enum.OrderStatusPending, "anything")}, nil
		},
	}
	rr := doRequest(t, setupOrderRouter(svc, &mockMenu{err: errors.New("db down")}, nil), "GET", ordersPath(tenantID, ""), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeList(t, rr)
	_, flagged := resp[0]["unresolved_product_ids"]
	assert.False(t, flagged)
}

// --- Single order tests ---

func TestGetOrder_NotFound(t *testing.T) {
	svc := &mockOrderService{
		getFn: func(context.Context, uuid.UUID, uuid.UUID) (*service.OrderView, error) {
			return nil, service.ErrOrderNotFound
		},
	}
	router := setupOrderRouter(svc, nil, nil)
	tenantID := uuid.New()

	rr := doRequest(t, router, "GET", ordersPath(tenantID, "/"+uuid.NewString()), nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "order_not_found", decodeResponse(t, rr)["code"])

	rr = doRequest(t, router, "GET", ordersPath(tenantID, "/not-a-uuid"), nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateStatus(t *testing.T) {
	tenantID := uuid.New()
	orderID := uuid.New()
	svc := &mockOrderService{
		updateStatusFn: func(_ context.Context, tid, id uuid.UUID, next string) (*service.OrderView, error) {
			if next == enum.OrderStatusCompleted {
				return nil, service.ErrCompletedByCloseOut
			}
			o := testOrder(tid, next)
			o.ID = id
			return &o, nil
		},
	}
	router := setupOrderRouter(svc, nil, nil)
	path := ordersPath(tenantID, "/"+orderID.String()+"/status")

	rr := doRequest(t, router, "PATCH", path, map[string]string{"status": enum.OrderStatusConfirmed})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, enum.OrderStatusConfirmed, decodeResponse(t, rr)["status"])

	rr = doRequest(t, router, "PATCH", path, map[string]string{"status": enum.OrderStatusCompleted})
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "completed_by_close_out", decodeResponse(t, rr)["code"])

	rr = doRequest(t, router, "PATCH", path, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateStatus_ErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		code     string
	}{
		{service.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
		{service.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
		{service.ErrDriverRequired, http.StatusConflict, "driver_required"},
		{service.ErrStatusConflict, http.StatusConflict, "status_conflict"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			svc := &mockOrderService{
				updateStatusFn: func(context.Context, uuid.UUID, uuid.UUID, string) (*service.OrderView, error) {
					return nil, tt.err
				},
			}
			rr := doRequest(t, setupOrderRouter(svc, nil, nil), "PATCH", ordersPath(uuid.New(), "/"+uuid.NewString()+"/status"), map[string]string{"status": "x"})
			require.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, tt.code, decodeResponse(t, rr)["code"])
		})
	}
}

func TestAssignDriver(t *testing.T) {
	driverID := uuid.New()
	svc := &mockOrderService{
		assignDriverFn: func(_ context.Context, tid, id, driver uuid.UUID, name string) (*service.OrderView, error) {
			assert.Equal(t, driverID, driver)
			assert.Equal(t, "Dave", name)
			o := testOrder(tid, enum.OrderStatusReadyForDelivery)
			o.AssignedDriverID = &driver
			o.AssignedDriverName = &name
			return &o, nil
		},
	}
	router := setupOrderRouter(svc, nil, nil)
	path := ordersPath(uuid.New(), "/"+uuid.NewString()+"/assign-driver")

	rr := doRequest(t, router, "POST", path, map[string]string{"driver_id": driverID.String(), "driver_name": "Dave"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Dave", decodeResponse(t, rr)["assigned_driver_name"])

	rr = doRequest(t, router, "POST", path, map[string]string{"driver_id": "nope", "driver_name": "Dave"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, router, "POST", path, map[string]string{"driver_id": driverID.String()})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCancelOrder(t *testing.T) {
	svc := &mockOrderService{
		cancelFn: func(_ context.Context, tid, _ uuid.UUID) (*service.OrderView, error) {
			o := testOrder(tid, enum.OrderStatusReturned)
			return &o, nil
		},
	}
	rr := doRequest(t, setupOrderRouter(svc, nil, nil), "POST", ordersPath(uuid.New(), "/"+uuid.NewString()+"/cancel"), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, enum.OrderStatusReturned, decodeResponse(t, rr)["status"])

	svc.cancelFn = func(context.Context, uuid.UUID, uuid.UUID) (*service.OrderView, error) {
		return nil, service.ErrNotCancelable
	}
	rr = doRequest(t, setupOrderRouter(svc, nil, nil), "POST", ordersPath(uuid.New(), "/"+uuid.NewString()+"/cancel"), nil)
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "not_cancelable", decodeResponse(t, rr)["code"])
}

// --- Recovery tests ---

func TestRecover_MarksSource(t *testing.T) {
	tenantID := uuid.New()
	var got service.OnlineOrderRequest
	created := true
	svc := &mockOrderService{
		createOnlineFn: func(_ context.Context, req service.OnlineOrderRequest) (*service.OrderView, bool, error) {
			got = req
			o := testOrder(req.TenantID, enum.OrderStatusPending)
			o.Source = req.Source
			return &o, created, nil
		},
	}
	router := setupOrderRouter(svc, nil, testClaims(tenantID, enum.StaffRoleOwner))
	body := map[string]interface{}{
		"checkout_session_id": "cs_123",
		"customer_name":       "Rita",
		"items":               []map[string]interface{}{{"product_id": "p1", "name": "Soda", "quantity": 1, "price": "4.00"}},
	}

	rr := doRequest(t, router, "POST", ordersPath(tenantID, "/recover"), body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, tenantID, got.TenantID)
	assert.Equal(t, "cs_123", got.CheckoutSessionID)
	assert.Equal(t, enum.OrderSourceOnlineRecovery, got.Source)
	require.Len(t, got.Items, 1)

	created = false
	rr = doRequest(t, router, "POST", ordersPath(tenantID, "/recover"), body)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRecover_Validation(t *testing.T) {
	svc := &mockOrderService{
		createOnlineFn: func(context.Context, service.OnlineOrderRequest) (*service.OrderView, bool, error) {
			return nil, false, service.ErrMissingCheckout
		},
	}
	rr := doRequest(t, setupOrderRouter(svc, nil, nil), "POST", ordersPath(uuid.New(), "/recover"), map[string]interface{}{})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "missing_checkout_session", decodeResponse(t, rr)["code"])
}
