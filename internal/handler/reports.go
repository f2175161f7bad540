package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/database"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	SalesBySource(ctx context.Context, arg database.SalesBySourceParams) ([]database.SalesBySourceRow, error)
}

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	store ReportsStore
	now   func() time.Time
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(store ReportsStore) *ReportsHandler {
	return &ReportsHandler{store: store, now: time.Now}
}

// RegisterRoutes registers owner-only report endpoints.
// Expected to be mounted inside a tenant-scoped subrouter: /tenants/{tid}/reports
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sales", h.Sales)
}

type salesBySourceResponse struct {
	Source     string `json:"source"`
	OrderCount int64  `json:"order_count"`
	TotalSales string `json:"total_sales"`
}

type salesReportResponse struct {
	StartDate string                  `json:"start_date"`
	EndDate   string                  `json:"end_date"`
	Sources   []salesBySourceResponse `json:"sources"`
}

// Sales returns closed-out sales per order source. Only Completed orders
// count; canceled and returned orders never reach the totals.
func (h *ReportsHandler) Sales(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		writeBadRequest(w, "invalid tenant ID")
		return
	}

	startDate, endDate, err := parseDateRange(r, h.now())
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	rows, err := h.store.SalesBySource(r.Context(), database.SalesBySourceParams{
		TenantID:  tenantID,
		StartDate: pgtype.Timestamptz{Time: startDate, Valid: true},
		EndDate:   pgtype.Timestamptz{Time: endDate, Valid: true},
	})
	if err != nil {
		writeError(w, r, "sales by source", err)
		return
	}

	resp := salesReportResponse{
		StartDate: startDate.Format(dateLayout),
		EndDate:   endDate.AddDate(0, 0, -1).Format(dateLayout),
		Sources:   make([]salesBySourceResponse, len(rows)),
	}
	for i, row := range rows {
		resp.Sources[i] = salesBySourceResponse{
			Source:     row.Source,
			OrderCount: row.OrderCount,
			TotalSales: numericString(row.TotalSales),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

const dateLayout = "2006-01-02"

// parseDateRange parses start_date and end_date query params as UTC days.
// Defaults to the last 30 days. The returned end is exclusive (next day midnight).
func parseDateRange(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	startDate := today.AddDate(0, 0, -30)
	endDate := today.AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format: %w", err)
		}
		startDate = t
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format: %w", err)
		}
		endDate = t.AddDate(0, 0, 1)
	}

	if !startDate.Before(endDate) {
		return time.Time{}, time.Time{}, errors.New("start_date must not be after end_date")
	}
	return startDate, endDate, nil
}
