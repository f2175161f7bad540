package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mesa-pos/api/internal/logging"
	"github.com/mesa-pos/api/internal/pricing"
	"github.com/mesa-pos/api/internal/service"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorMappings is checked in order with errors.Is. Anything not listed is a
// 500.
var errorMappings = []errorMapping{
	// validation
	{service.ErrInvalidTable, http.StatusBadRequest, "invalid_table"},
	{service.ErrInvalidPaymentMethod, http.StatusBadRequest, "invalid_payment_method"},
	{service.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
	{service.ErrInvalidSource, http.StatusBadRequest, "invalid_source"},
	{service.ErrMissingCheckout, http.StatusBadRequest, "missing_checkout_session"},
	{service.ErrEmptyItems, http.StatusBadRequest, "empty_items"},
	{service.ErrInvalidSplit, http.StatusBadRequest, "invalid_split"},
	{pricing.ErrMissingProduct, http.StatusBadRequest, "missing_product"},
	{pricing.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{pricing.ErrNegativePrice, http.StatusBadRequest, "negative_price"},
	{pricing.ErrInvalidFlavorSplit, http.StatusBadRequest, "invalid_flavor_split"},

	// not found
	{service.ErrDraftNotFound, http.StatusNotFound, "draft_not_found"},
	{service.ErrSeatNotFound, http.StatusNotFound, "seat_not_found"},
	{service.ErrItemNotFound, http.StatusNotFound, "item_not_found"},
	{service.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{service.ErrBillNotFound, http.StatusNotFound, "bill_not_found"},

	// state
	{service.ErrItemSubmitted, http.StatusConflict, "item_submitted"},
	{service.ErrTableInPayment, http.StatusConflict, "table_in_payment"},
	{service.ErrNothingToSubmit, http.StatusConflict, "nothing_to_submit"},
	{service.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{service.ErrDriverRequired, http.StatusConflict, "driver_required"},
	{service.ErrStatusConflict, http.StatusConflict, "status_conflict"},
	{service.ErrNotCancelable, http.StatusConflict, "not_cancelable"},
	{service.ErrCompletedByCloseOut, http.StatusConflict, "completed_by_close_out"},
	{service.ErrUnsentItemsExist, http.StatusConflict, "unsent_items_exist"},
	{service.ErrUndeliveredOrdersExist, http.StatusConflict, "undelivered_orders_exist"},
	{service.ErrNothingToBill, http.StatusConflict, "nothing_to_bill"},
	{service.ErrBillNotPending, http.StatusConflict, "bill_not_pending"},
	{service.ErrBillTableMismatch, http.StatusConflict, "bill_table_mismatch"},
	{service.ErrNotInPayment, http.StatusConflict, "not_in_payment"},
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// writeError maps service errors to a status and code. Unknown errors are
// logged with op and reported as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, service.ErrCloseOutFailed) {
		logging.FromContext(r.Context()).WithError(err).Error(op)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error: "close-out failed; the table was released from payment",
			Code:  "close_out_failed",
		})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			writeJSON(w, m.status, errorBody{Error: m.err.Error(), Code: m.code})
			return
		}
	}

	logging.FromContext(r.Context()).WithError(err).Error(op)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
}

// decodeOptional decodes a JSON body that may be absent.
func decodeOptional(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func tenantParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "tid"))
}

func tableParam(r *http.Request) (int32, error) {
	return int32Param(r, "table")
}

func int32Param(r *http.Request, name string) (int32, error) {
	n, err := strconv.ParseInt(chi.URLParam(r, name), 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}

// pagination reads limit and offset, defaulting to 20 and capping at 100.
func pagination(r *http.Request) (limit, offset int32) {
	limit = 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = int32(min(v, 100))
		}
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = int32(v)
		}
	}
	return limit, offset
}
