package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
	"github.com/mesa-pos/api/internal/logging"
	"github.com/mesa-pos/api/internal/service"
	"github.com/sirupsen/logrus"
)

const (
	signatureHeader       = "X-Signature"
	eventCheckoutComplete = "checkout.session.completed"
	maxWebhookBody        = 1 << 20
)

// OnlineOrderCreator records paid checkouts. Satisfied by *service.OrderService.
type OnlineOrderCreator interface {
	CreateOnlineOrder(ctx context.Context, req service.OnlineOrderRequest) (*service.OrderView, bool, error)
}

// WebhookHandler receives payment provider callbacks.
type WebhookHandler struct {
	orders OnlineOrderCreator
	secret []byte
}

// NewWebhookHandler creates a new WebhookHandler. With an empty secret every
// delivery is rejected.
func NewWebhookHandler(orders OnlineOrderCreator, secret string) *WebhookHandler {
	return &WebhookHandler{orders: orders, secret: []byte(secret)}
}

// RegisterRoutes registers the public webhook endpoint.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/payments/{tid}", h.Payment)
}

// --- Request types ---

type webhookEvent struct {
	Type string          `json:"type"`
	Data checkoutPayload `json:"data"`
}

// checkoutPayload is a completed checkout as reported by the payment
// provider or re-entered by an owner.
type checkoutPayload struct {
	CheckoutSessionID string               `json:"checkout_session_id"`
	CustomerName      string               `json:"customer_name"`
	IsDelivery        bool                 `json:"is_delivery"`
	DeliveryAddress   string               `json:"delivery_address"`
	Items             []database.DraftItem `json:"items"`
}

func (p checkoutPayload) request(tenantID uuid.UUID, source string) service.OnlineOrderRequest {
	return service.OnlineOrderRequest{
		TenantID:          tenantID,
		CheckoutSessionID: p.CheckoutSessionID,
		Source:            source,
		CustomerName:      p.CustomerName,
		IsDelivery:        p.IsDelivery,
		DeliveryAddress:   p.DeliveryAddress,
		Items:             p.Items,
	}
}

// --- Handlers ---

// Payment handles POST /webhooks/payments/{tid}. The body must carry a
// hex HMAC-SHA256 signature in X-Signature. Deliveries are idempotent per
// checkout session.
func (h *WebhookHandler) Payment(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		writeBadRequest(w, "invalid tenant ID")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeBadRequest(w, "unreadable body")
		return
	}
	if !h.validSignature(body, r.Header.Get(signatureHeader)) {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid signature"})
		return
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	log := logging.FromContext(r.Context()).WithFields(logrus.Fields{
		"tenant_id":  tenantID,
		"event_type": ev.Type,
	})
	if ev.Type != eventCheckoutComplete {
		log.Debug("ignoring webhook event")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	order, created, err := h.orders.CreateOnlineOrder(r.Context(), ev.Data.request(tenantID, enum.OrderSourceOnline))
	if err != nil {
		writeError(w, r, "record checkout", err)
		return
	}

	log = log.WithField("order_id", order.ID)
	if !created {
		log.Info("checkout already recorded")
		writeJSON(w, http.StatusOK, order)
		return
	}
	log.Info("checkout recorded")
	writeJSON(w, http.StatusCreated, order)
}

func (h *WebhookHandler) validSignature(body []byte, signature string) bool {
	if len(h.secret) == 0 || signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
